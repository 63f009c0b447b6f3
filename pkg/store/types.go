package store

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a single-event lookup matches nothing.
var ErrNotFound = errors.New("store: event not found")

// EventType represents the kind of audit event.
type EventType string

const (
	EventTypeReportAccepted EventType = "report_accepted"
	EventTypeReportRejected EventType = "report_rejected"
	EventTypePlantRemoved   EventType = "plant_removed"
)

// EventID is a unique identifier for an audit event.
type EventID string

// AuditEvent records one report or administrative action that touched the
// collation caches.
type AuditEvent struct {
	EventID     EventID         `json:"eventID"`
	EventType   EventType       `json:"eventType"`
	ComponentID string          `json:"componentID"`
	Capability  string          `json:"capability,omitempty"`
	RequestID   string          `json:"requestID,omitempty"`
	Outcome     string          `json:"outcome,omitempty"`
	TsEvent     time.Time       `json:"tsEvent"`
	TsIngest    time.Time       `json:"tsIngest"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// EventFilter defines filters for querying audit events. Zero fields match
// everything; Limit <= 0 means no limit.
type EventFilter struct {
	ComponentID string
	EventTypes  []EventType
	From        time.Time
	To          time.Time
	Limit       int
}
