package model

import "time"

// PriorityUnset is the sentinel priority for sources without a registry
// entry. Lower priority wins during canonicalization, so an unset source
// ranks behind every configured one.
const PriorityUnset = 1<<31 - 1

// SourceKind classifies the transport/shape of an upstream origin.
type SourceKind string

const (
	SourceKindHTML SourceKind = "html"
	SourceKindJSON SourceKind = "json"
	SourceKindXLSX SourceKind = "xlsx"
)

// Source is one external data origin. Created on first successful fetch,
// never deleted (raw rows reference it); only priority is editable.
type Source struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	URL       string     `json:"url"`
	Kind      SourceKind `json:"kind"`
	Priority  int        `json:"priority"`
	CreatedAt time.Time  `json:"created_at"`
}
