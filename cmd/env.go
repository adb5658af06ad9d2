package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/alert"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/canon"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/config"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/fetcher"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/ingest"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/provider"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/provider/adapters"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/quality"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/resilience"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "ratefeed.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// engine is the assembled ingestion stack shared by all commands.
type engine struct {
	Store         store.Store
	Registry      *provider.Registry
	Priorities    *canon.PriorityCache
	Canonicalizer *canon.Canonicalizer
	Monitor       *quality.Monitor
	DQ            *quality.Engine
	Orchestrator  *ingest.Orchestrator
	Thresholds    *alert.ThresholdCache
	Collector     *alert.Collector
	Sender        alert.Sender
}

func (e *engine) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close failed", zap.Error(err))
	}
}

// initEngine opens the store, migrates, applies source priority seeds, and
// wires every component. Both the one-shot commands and the server build
// the same graph so trigger paths share the per-provider locks.
func initEngine(ctx context.Context) (*engine, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}

	if err := applySourceSeeds(ctx, st); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	retry := resilience.DefaultRetryConfig()
	if cfg.Fetch.MaxRetries > 0 {
		retry.MaxAttempts = cfg.Fetch.MaxRetries
	}
	client := fetcher.New(fetcher.Options{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		Retry:        retry,
		RateLimiters: fetcher.DefaultRateLimiters(),
	})

	reg := provider.NewRegistry()
	reg.Register(adapters.NewSBVInterbank(client, ""))
	reg.Register(adapters.NewBondAuction(client, ""))
	reg.Register(adapters.NewDepositRates(client, adapters.DepositRatesOptions{
		Name:   "timo",
		URL:    "https://timo.vn/lai-suat-ngan-hang/",
		Series: "online",
	}))
	reg.Register(adapters.NewDepositRates(client, adapters.DepositRatesOptions{
		Name:       "24hmoney",
		URL:        "https://24hmoney.vn/lai-suat-ngan-hang",
		ArchiveURL: "https://24hmoney.vn/lai-suat-ngan-hang?date=%s",
		Series:     "online",
	}))

	prio := canon.NewPriorityCache(st)
	if err := prio.Reload(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "load source priorities")
	}
	canonicalizer := canon.New(st, prio)
	monitor := quality.NewMonitor(st)
	dq := quality.NewEngine(st, canonicalizer, cfg.Quality.Datasets)
	orch := ingest.New(st, reg, canonicalizer, monitor, cfg.Ingest)

	thresholds := alert.NewThresholdCache(st)
	if err := thresholds.Reload(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "load alert thresholds")
	}

	return &engine{
		Store:         st,
		Registry:      reg,
		Priorities:    prio,
		Canonicalizer: canonicalizer,
		Monitor:       monitor,
		DQ:            dq,
		Orchestrator:  orch,
		Thresholds:    thresholds,
		Collector:     alert.NewCollector(st),
		Sender:        alert.NewWebhookSender(cfg.Alert.WebhookURL),
	}, nil
}

// applySourceSeeds upserts the seed file's sources and priorities. Existing
// sources only have their priority updated; raw rows keep referencing them.
func applySourceSeeds(ctx context.Context, st store.Store) error {
	seeds, err := config.LoadSourceSeeds(cfg.Sources.SeedPath)
	if err != nil {
		return err
	}

	for _, seed := range seeds {
		src, err := st.EnsureSource(ctx, seed.Name, seed.URL, model.SourceKind(seed.Kind), seed.Priority)
		if err != nil {
			return eris.Wrapf(err, "seed source %s", seed.Name)
		}
		if src.Priority != seed.Priority {
			if err := st.UpdateSourcePriority(ctx, src.ID, seed.Priority); err != nil {
				return eris.Wrapf(err, "seed priority for %s", seed.Name)
			}
		}
	}
	return nil
}
