package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "itops.db")
	s, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "itops.db")

	store, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("database file was not created at %s", dbPath)
	}

	var tableName string
	err = store.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='audit_events'").Scan(&tableName)
	if err != nil {
		t.Fatalf("failed to query sqlite_master for audit_events table: %v", err)
	}

	var indexName string
	err = store.db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name='idx_audit_component_ts'").Scan(&indexName)
	if err != nil {
		t.Errorf("expected component index to exist: %v", err)
	}

	var mode string
	if err := store.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("failed to read journal mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("expected WAL journal mode, got %q", mode)
	}
}

func TestNewStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "itops.db")
	s, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if err := s.AppendEvent(context.Background(), &AuditEvent{EventID: "e1", EventType: EventTypeReportAccepted, ComponentID: "c1"}); err != nil {
		t.Fatalf("AppendEvent failed: %v", err)
	}
	s.Close()

	s, err = NewStore(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	if _, err := s.GetEvent(context.Background(), "e1"); err != nil {
		t.Errorf("event lost across reopen: %v", err)
	}
}

func TestAppendAndGetEvent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	evt := &AuditEvent{
		EventID:     "evt-1",
		EventType:   EventTypeReportAccepted,
		ComponentID: "plant-1",
		Capability:  "ITOps.Metrics.Report.Collator",
		RequestID:   "req-1",
		Outcome:     "success",
		TsEvent:     ts,
		Payload:     json.RawMessage(`{"metrics":2}`),
	}
	if err := s.AppendEvent(ctx, evt); err != nil {
		t.Fatalf("AppendEvent failed: %v", err)
	}
	if evt.TsIngest.IsZero() {
		t.Error("expected TsIngest to be defaulted")
	}

	got, err := s.GetEvent(ctx, "evt-1")
	if err != nil {
		t.Fatalf("GetEvent failed: %v", err)
	}
	if got.ComponentID != "plant-1" || got.Capability != evt.Capability || got.RequestID != "req-1" || got.Outcome != "success" {
		t.Errorf("unexpected event: %+v", got)
	}
	if !got.TsEvent.Equal(ts) {
		t.Errorf("TsEvent = %v, want %v", got.TsEvent, ts)
	}
	if string(got.Payload) != `{"metrics":2}` {
		t.Errorf("Payload = %s", got.Payload)
	}
}

func TestAppendEvent_Validation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AppendEvent(ctx, nil); err == nil {
		t.Error("expected error for nil event")
	}
	if err := s.AppendEvent(ctx, &AuditEvent{ComponentID: "c"}); err == nil {
		t.Error("expected error for missing event id")
	}

	evt := &AuditEvent{EventID: "dup", EventType: EventTypeReportAccepted, ComponentID: "c"}
	if err := s.AppendEvent(ctx, evt); err != nil {
		t.Fatalf("AppendEvent failed: %v", err)
	}
	if err := s.AppendEvent(ctx, evt); err == nil {
		t.Error("expected error for duplicate event id")
	}
}

func TestGetEvent_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetEvent(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 8; i++ {
		component := "plant-a"
		if i%2 == 1 {
			component = "plant-b"
		}
		typ := EventTypeReportAccepted
		if i == 6 {
			typ = EventTypeReportRejected
		}
		evt := &AuditEvent{
			EventID:     EventID(fmt.Sprintf("e%d", i)),
			EventType:   typ,
			ComponentID: component,
			TsEvent:     base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.AppendEvent(ctx, evt); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter EventFilter
		want   []EventID
	}{
		{"by component newest first", EventFilter{ComponentID: "plant-a"}, []EventID{"e6", "e4", "e2", "e0"}},
		{"limit", EventFilter{ComponentID: "plant-a", Limit: 2}, []EventID{"e6", "e4"}},
		{"by type", EventFilter{EventTypes: []EventType{EventTypeReportRejected}}, []EventID{"e6"}},
		{"time window", EventFilter{From: base.Add(2 * time.Minute), To: base.Add(4 * time.Minute)}, []EventID{"e3", "e2"}},
		{"unknown component", EventFilter{ComponentID: "nope"}, []EventID{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := s.QueryEvents(ctx, tt.filter)
			if err != nil {
				t.Fatalf("QueryEvents failed: %v", err)
			}
			got := make([]EventID, len(events))
			for i, e := range events {
				got[i] = e.EventID
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPruneEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := &AuditEvent{EventID: "old", EventType: EventTypeReportAccepted, ComponentID: "c", TsIngest: now.Add(-48 * time.Hour)}
	recent := &AuditEvent{EventID: "recent", EventType: EventTypeReportAccepted, ComponentID: "c", TsIngest: now}
	for _, e := range []*AuditEvent{old, recent} {
		if err := s.AppendEvent(ctx, e); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
	}

	deleted, err := s.PruneEvents(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneEvents failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}

	if _, err := s.GetEvent(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("old event should be gone, got %v", err)
	}
	count, err := s.CountEvents(ctx)
	if err != nil {
		t.Fatalf("CountEvents failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 remaining event, got %d", count)
	}
}

func TestReadCandidateAndDeleteEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		evt := &AuditEvent{
			EventID:     EventID(fmt.Sprintf("e%d", i)),
			EventType:   EventTypeReportAccepted,
			ComponentID: "c",
			TsIngest:    now.Add(time.Duration(i-10) * time.Hour),
		}
		if err := s.AppendEvent(ctx, evt); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
	}

	candidates, err := s.ReadCandidateEvents(ctx, now.Add(-7*time.Hour), 2)
	if err != nil {
		t.Fatalf("ReadCandidateEvents failed: %v", err)
	}
	if len(candidates) != 2 || candidates[0].EventID != "e0" || candidates[1].EventID != "e1" {
		t.Fatalf("expected oldest two events, got %v", candidates)
	}

	deleted, err := s.DeleteEvents(ctx, []EventID{"e0", "e1", "missing"})
	if err != nil {
		t.Fatalf("DeleteEvents failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 deleted, got %d", deleted)
	}

	candidates, err = s.ReadCandidateEvents(ctx, now.Add(-7*time.Hour), 0)
	if err != nil {
		t.Fatalf("ReadCandidateEvents failed: %v", err)
	}
	if len(candidates) != 1 || candidates[0].EventID != "e2" {
		t.Errorf("expected only e2 left before cutoff, got %v", candidates)
	}

	if n, err := s.DeleteEvents(ctx, nil); err != nil || n != 0 {
		t.Errorf("empty delete: got %d, %v", n, err)
	}
}
