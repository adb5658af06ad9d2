package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
)

func testEvent(code string) model.AlertEvent {
	return model.AlertEvent{
		AlertCode: code,
		Severity:  "warning",
		Message:   "something drifted",
		Timestamp: time.Date(2026, 1, 6, 9, 0, 0, 0, time.UTC),
	}
}

func TestWebhookSender_PostsJSON(t *testing.T) {
	var received model.AlertEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := NewWebhookSender(srv.URL).Send(context.Background(), testEvent(CodeDriftFingerprint))
	require.NoError(t, err)
	assert.Equal(t, CodeDriftFingerprint, received.AlertCode)
	assert.Equal(t, "something drifted", received.Message)
}

func TestWebhookSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookSender(srv.URL).Send(context.Background(), testEvent(CodeRunFatal))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhookSender_EmptyURLDropsSilently(t *testing.T) {
	assert.NoError(t, NewWebhookSender("").Send(context.Background(), testEvent(CodeRunFatal)))
}

type flakySender struct {
	failOn map[string]bool
	sent   []string
}

func (s *flakySender) Send(_ context.Context, ev model.AlertEvent) error {
	if s.failOn[ev.AlertCode] {
		return eris.New("channel down")
	}
	s.sent = append(s.sent, ev.AlertCode)
	return nil
}

func TestDispatch_ContinuesPastFailures(t *testing.T) {
	sender := &flakySender{failOn: map[string]bool{CodeDQError: true}}
	events := []model.AlertEvent{
		testEvent(CodeDriftFingerprint),
		testEvent(CodeDQError),
		testEvent(CodeRunAnomaly),
	}

	sent := Dispatch(context.Background(), sender, events)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{CodeDriftFingerprint, CodeRunAnomaly}, sender.sent)
}
