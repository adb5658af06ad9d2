package model

import "time"

// AlertThreshold is mutable alerting configuration, keyed by alert code.
// Edits take effect on the next evaluation or an explicit reload.
type AlertThreshold struct {
	AlertCode string            `json:"alert_code"`
	Enabled   bool              `json:"enabled"`
	Severity  string            `json:"severity"`
	Params    map[string]string `json:"params,omitempty"`
}

// AlertEvent is an emitted notification, handed to a channel sender for
// delivery. The dispatcher itself never delivers anything.
type AlertEvent struct {
	AlertCode string         `json:"alert_code"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
