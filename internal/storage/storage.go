// Package storage defines the persistence contract for the scenario journal.
package storage

import (
	"context"
	"errors"

	"github.com/louisbranch/yourupnext/internal/engine/event"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateEvent indicates an event with the same content hash was
// already appended to the scenario journal.
var ErrDuplicateEvent = errors.New("event already appended")

// EventStore persists the append-only scenario journal.
//
// Append is atomic: either every event in the batch is persisted with
// contiguous sequence numbers and a continuous hash chain, or none is.
type EventStore interface {
	// AppendEvents appends a batch of events from one scenario and returns
	// them with Seq, ID, Hash, PrevHash, and ChainHash assigned.
	AppendEvents(ctx context.Context, events []event.Event) ([]event.Event, error)
	// ListEvents returns events with Seq > afterSeq in sequence order, up
	// to limit. A non-positive limit means no limit.
	ListEvents(ctx context.Context, scenarioID string, afterSeq uint64, limit int) ([]event.Event, error)
	// LatestSeq returns the highest sequence number in a scenario journal,
	// zero when the journal is empty.
	LatestSeq(ctx context.Context, scenarioID string) (uint64, error)
	// TruncateEvents removes all events with Seq > afterSeq. Rewriting the
	// timeline this way is only valid for redo divergence.
	TruncateEvents(ctx context.Context, scenarioID string, afterSeq uint64) error
	// ListScenarios returns the IDs of scenarios with at least one event.
	ListScenarios(ctx context.Context) ([]string, error)
	// Close releases underlying resources.
	Close() error
}
