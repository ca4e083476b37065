// Package memory provides an in-memory EventStore for tests and ephemeral
// scenarios.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/louisbranch/yourupnext/internal/engine/event"
	"github.com/louisbranch/yourupnext/internal/storage"
	"github.com/louisbranch/yourupnext/internal/storage/integrity"
)

// Store keeps scenario journals in memory.
type Store struct {
	mu       sync.RWMutex
	registry *event.Registry
	journals map[string][]event.Event
	hashes   map[string]map[string]struct{}
}

// NewStore creates an empty in-memory store. Events are validated against
// the registry before append.
func NewStore(registry *event.Registry) *Store {
	return &Store{
		registry: registry,
		journals: make(map[string][]event.Event),
		hashes:   make(map[string]map[string]struct{}),
	}
}

// AppendEvents implements storage.EventStore.
func (s *Store) AppendEvents(ctx context.Context, events []event.Event) ([]event.Event, error) {
	if len(events) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if s.registry == nil {
		return nil, fmt.Errorf("event registry is required")
	}

	validated := make([]event.Event, len(events))
	scenarioID := ""
	for i, evt := range events {
		if evt.Timestamp.IsZero() {
			evt.Timestamp = time.Now().UTC()
		}
		evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)
		v, err := s.registry.ValidateForAppend(evt)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		if scenarioID == "" {
			scenarioID = v.ScenarioID
		} else if v.ScenarioID != scenarioID {
			return nil, fmt.Errorf("event %d: batch spans scenarios %s and %s", i, scenarioID, v.ScenarioID)
		}
		validated[i] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	journal := s.journals[scenarioID]
	seen := s.hashes[scenarioID]
	if seen == nil {
		seen = make(map[string]struct{})
		s.hashes[scenarioID] = seen
	}

	seq := uint64(len(journal))
	prevChainHash := ""
	if seq > 0 {
		prevChainHash = journal[seq-1].ChainHash
	}

	sealed := make([]event.Event, len(validated))
	batchHashes := make(map[string]struct{}, len(validated))
	for i, evt := range validated {
		seq++
		out, err := integrity.Seal(evt, seq, prevChainHash)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[out.Hash]; dup {
			return nil, fmt.Errorf("event %d (hash %s): %w", i, out.Hash, storage.ErrDuplicateEvent)
		}
		if _, dup := batchHashes[out.Hash]; dup {
			return nil, fmt.Errorf("event %d (hash %s): %w", i, out.Hash, storage.ErrDuplicateEvent)
		}
		batchHashes[out.Hash] = struct{}{}
		sealed[i] = out
		prevChainHash = out.ChainHash
	}

	s.journals[scenarioID] = append(journal, sealed...)
	for hash := range batchHashes {
		seen[hash] = struct{}{}
	}
	return append([]event.Event(nil), sealed...), nil
}

// ListEvents implements storage.EventStore.
func (s *Store) ListEvents(ctx context.Context, scenarioID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	journal := s.journals[scenarioID]
	if afterSeq >= uint64(len(journal)) {
		return nil, nil
	}
	page := journal[afterSeq:]
	if limit > 0 && len(page) > limit {
		page = page[:limit]
	}
	return append([]event.Event(nil), page...), nil
}

// LatestSeq implements storage.EventStore.
func (s *Store) LatestSeq(ctx context.Context, scenarioID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.journals[scenarioID])), nil
}

// TruncateEvents implements storage.EventStore.
func (s *Store) TruncateEvents(ctx context.Context, scenarioID string, afterSeq uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	journal := s.journals[scenarioID]
	if afterSeq >= uint64(len(journal)) {
		return nil
	}
	dropped := journal[afterSeq:]
	seen := s.hashes[scenarioID]
	for _, evt := range dropped {
		delete(seen, evt.Hash)
	}
	s.journals[scenarioID] = journal[:afterSeq]
	return nil
}

// ListScenarios implements storage.EventStore.
func (s *Store) ListScenarios(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.journals))
	for scenarioID, journal := range s.journals {
		if len(journal) > 0 {
			out = append(out, scenarioID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Close implements storage.EventStore.
func (s *Store) Close() error {
	return nil
}
