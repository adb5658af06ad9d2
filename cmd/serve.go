package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/ingest"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/provider"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/sched"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ingestion API server and background scheduler",
	Long:  "Serves trigger and query endpoints for the dashboard and runs the timer-based daily cycle. Manual triggers and the scheduler share one orchestrator, so concurrent runs on the same provider are rejected.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		scheduler := sched.New(cfg.Scheduler, env.Orchestrator, env.DQ, env.Collector, env.Thresholds, env.Sender)
		go scheduler.Run(ctx)

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/api", func(r chi.Router) {
			r.Post("/ingest/daily", handleDaily(env))
			r.Post("/ingest/backfill", handleBackfill(env))
			r.Post("/ingest/probe", handleProbe(env))
			r.Get("/canonical", handleCanonical(env))
			r.Get("/runs", handleRuns(env))
			r.Post("/dq/run", handleDQRun(env))
			r.Get("/drift", handleDrift(env))
			r.Put("/sources/{id}/priority", handleSetPriority(env))
			r.Get("/alerts/thresholds", handleListThresholds(env))
			r.Put("/alerts/thresholds", handleUpsertThreshold(env))
			r.Post("/alerts/reload", handleReloadThresholds(env))
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func handleDaily(env *engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries := env.Orchestrator.Daily(r.Context())
		respondJSON(w, http.StatusOK, summaries)
	}
}

func handleBackfill(env *engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Provider string `json:"provider"`
			Start    string `json:"start"`
			End      string `json:"end"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		start, err := model.ParseDay(req.Start)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid start date")
			return
		}
		end, err := model.ParseDay(req.End)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid end date")
			return
		}

		sum, err := env.Orchestrator.Backfill(r.Context(), req.Provider, start, end)
		if err != nil {
			var notSupported *provider.NotSupportedError
			var contention *ingest.LockContentionError
			switch {
			case errors.As(err, &notSupported):
				respondError(w, http.StatusUnprocessableEntity, err.Error())
			case errors.As(err, &contention):
				respondError(w, http.StatusConflict, err.Error())
			default:
				respondError(w, http.StatusBadRequest, err.Error())
			}
			return
		}

		respondJSON(w, http.StatusOK, sum)
	}
}

func handleProbe(env *engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caps, err := env.Orchestrator.Probe(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, caps)
	}
}

// handleCanonical serves both point and range queries. With entity and date
// it resolves one key; with entity, start, and end it returns a time
// series; with dataset and date it returns the whole day's snapshot.
func handleCanonical(env *engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		ctx := r.Context()

		if dataset := q.Get("dataset"); dataset != "" {
			day, err := model.ParseDay(q.Get("date"))
			if err != nil {
				respondError(w, http.StatusBadRequest, "invalid date")
				return
			}
			rows, err := env.Canonicalizer.ResolveDatasetDay(ctx, dataset, day)
			if err != nil {
				respondError(w, http.StatusInternalServerError, err.Error())
				return
			}
			respondJSON(w, http.StatusOK, rows)
			return
		}

		entity, err := model.ParseEntityKey(q.Get("entity"))
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid entity key")
			return
		}

		if startRaw := q.Get("start"); startRaw != "" {
			start, err := model.ParseDay(startRaw)
			if err != nil {
				respondError(w, http.StatusBadRequest, "invalid start date")
				return
			}
			end, err := model.ParseDay(q.Get("end"))
			if err != nil {
				respondError(w, http.StatusBadRequest, "invalid end date")
				return
			}
			rows, err := env.Canonicalizer.ResolveRange(ctx, entity, start, end)
			if err != nil {
				respondError(w, http.StatusInternalServerError, err.Error())
				return
			}
			respondJSON(w, http.StatusOK, rows)
			return
		}

		day, err := model.ParseDay(q.Get("date"))
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid date")
			return
		}
		row, err := env.Canonicalizer.Resolve(ctx, entity, day)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if row == nil {
			respondError(w, http.StatusNotFound, "no observation for entity and day")
			return
		}
		respondJSON(w, http.StatusOK, row)
	}
}

func handleRuns(env *engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))

		runs, err := env.Store.ListRuns(r.Context(), store.RunFilter{
			Provider: q.Get("provider"),
			Status:   model.RunStatus(q.Get("status")),
			Kind:     model.RunKind(q.Get("kind")),
			Limit:    limit,
		})
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, runs)
	}
}

func handleDQRun(env *engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Date  string `json:"date"`
			Start string `json:"start"`
			End   string `json:"end"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if req.Date != "" {
			req.Start, req.End = req.Date, req.Date
		}
		start, err := model.ParseDay(req.Start)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid start date")
			return
		}
		end, err := model.ParseDay(req.End)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid end date")
			return
		}

		results, err := env.DQ.RunRules(r.Context(), start, end)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, results)
	}
}

func handleDrift(env *engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		signals, err := env.Monitor.Signals(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, signals)
	}
}

// handleSetPriority edits one source's rank and reloads the priority cache
// so later canonicalization calls see the change without a restart.
func handleSetPriority(env *engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid source id")
			return
		}

		var req struct {
			Priority int `json:"priority"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := env.Store.UpdateSourcePriority(r.Context(), id, req.Priority); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := env.Priorities.Reload(r.Context()); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"id": id, "priority": req.Priority})
	}
}

func handleListThresholds(env *engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		thresholds, err := env.Store.ListAlertThresholds(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, thresholds)
	}
}

func handleUpsertThreshold(env *engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var t model.AlertThreshold
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if t.AlertCode == "" {
			respondError(w, http.StatusBadRequest, "alert_code is required")
			return
		}

		if err := env.Store.UpsertAlertThreshold(r.Context(), t); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, t)
	}
}

func handleReloadThresholds(env *engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := env.Thresholds.Reload(r.Context()); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, map[string]int{"thresholds": len(env.Thresholds.Snapshot())})
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
