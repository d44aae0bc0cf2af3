package ark

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"ark-go/internal/model"
)

// EventLedger appends domain events to the durable store, computing a
// deterministic per-event audit hash. There are no update or delete
// operations: a caller needing a correction appends a compensating event.
type EventLedger struct {
	store  DurableStore
	logger Logger
	clock  Clock
	idgen  IDGenerator
}

// NewEventLedger creates an EventLedger writing to the given store.
func NewEventLedger(store DurableStore, logger Logger, clock Clock, idgen IDGenerator) *EventLedger {
	return &EventLedger{
		store:  store,
		logger: logger,
		clock:  clock,
		idgen:  idgen,
	}
}

// Append records one event. A zero ts means "now". The returned event
// includes its audit hash, which is a pure function of type, payload,
// timestamp and stream — never of write order or prior events.
func (l *EventLedger) Append(streamID, eventType string, payload map[string]any, ts time.Time) (*model.Event, error) {
	if streamID == "" {
		return nil, fmt.Errorf("stream id is required")
	}
	if eventType == "" {
		return nil, fmt.Errorf("event type is required")
	}
	if ts.IsZero() {
		ts = l.clock.Now()
	}
	ts = ts.UTC()

	auditHash, err := AuditHash(eventType, payload, ts, streamID)
	if err != nil {
		return nil, fmt.Errorf("computing audit hash: %w", err)
	}

	event := &model.Event{
		EventID:   l.idgen.New(),
		StreamID:  streamID,
		Timestamp: ts,
		Type:      eventType,
		Payload:   payload,
		AuditHash: auditHash,
	}

	line, err := Canonicalize(event)
	if err != nil {
		return nil, fmt.Errorf("serializing event: %w", err)
	}
	line = append(line, '\n')

	// Single atomic append: the envelope line is written in one call, never
	// partially.
	if _, err := l.store.Append(streamID, line); err != nil {
		return nil, fmt.Errorf("appending event: %w", err)
	}

	l.logger.Debug("event appended", "event_id", event.EventID, "stream_id", streamID, "type", eventType)
	return event, nil
}

// AuditHash computes the SHA-256 hex of the canonical serialization of the
// hashed event fields {payload, stream_id, timestamp, type}. Recomputing it
// from a stored event must always reproduce the stored value.
func AuditHash(eventType string, payload map[string]any, ts time.Time, streamID string) (string, error) {
	doc := map[string]any{
		"type":      eventType,
		"payload":   payload,
		"timestamp": ts.UTC().Format(time.RFC3339Nano),
		"stream_id": streamID,
	}
	return HashCanonical(doc)
}

// RecomputeAuditHash recomputes the audit hash of a stored event.
// Verification compares the result against ev.AuditHash.
func RecomputeAuditHash(ev *model.Event) (string, error) {
	return AuditHash(ev.Type, ev.Payload, ev.Timestamp, ev.StreamID)
}

// LedgerStats summarizes the ledger's current contents.
type LedgerStats struct {
	EventCount  int64
	StreamCount int64
}

// Stats scans the full ledger and counts events and distinct streams.
func (l *EventLedger) Stats() (*LedgerStats, error) {
	stats := &LedgerStats{}
	streams := make(map[string]struct{})

	err := l.store.View(func(r io.Reader, _ int64) error {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var env struct {
				StreamID string `json:"stream_id"`
			}
			if err := json.Unmarshal(line, &env); err != nil {
				return fmt.Errorf("decoding event envelope: %w", err)
			}
			stats.EventCount++
			streams[env.StreamID] = struct{}{}
		}
		return scanner.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("scanning ledger: %w", err)
	}

	stats.StreamCount = int64(len(streams))
	return stats, nil
}

// ReadStream decodes every stored event for one stream, in append order.
func (l *EventLedger) ReadStream(streamID string) ([]*model.Event, error) {
	data, err := l.store.ReadAll(streamID)
	if err != nil {
		return nil, fmt.Errorf("reading stream: %w", err)
	}

	var events []*model.Event
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev model.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("decoding event: %w", err)
		}
		events = append(events, &ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning stream: %w", err)
	}
	return events, nil
}
