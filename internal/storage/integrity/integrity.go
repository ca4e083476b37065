// Package integrity seals events with content and chain hashes and verifies
// journal pages during replay.
package integrity

import (
	"fmt"
	"strings"

	"github.com/louisbranch/yourupnext/internal/engine/event"
)

// Seal assigns the storage-derived identity fields to an event: Seq, the
// deterministic ID, the content hash, and the chain hash linking it to the
// previous event. The caller supplies the allocated sequence number and the
// predecessor's chain hash (empty for the first event).
func Seal(evt event.Event, seq uint64, prevChainHash string) (event.Event, error) {
	if seq == 0 {
		return event.Event{}, fmt.Errorf("sequence must start at 1")
	}
	evt.Seq = seq

	hash, err := event.ContentHash(evt)
	if err != nil {
		return event.Event{}, fmt.Errorf("compute event hash: %w", err)
	}
	evt.Hash = hash

	chainHash, err := event.ChainHash(evt, prevChainHash)
	if err != nil {
		return event.Event{}, fmt.Errorf("compute chain hash: %w", err)
	}
	evt.PrevHash = prevChainHash
	evt.ChainHash = chainHash
	evt.ID = event.DeterministicID(evt.ScenarioID, evt.Timestamp.UTC().UnixMilli(), seq)
	return evt, nil
}

// VerifyPage checks that a page of stored events is internally consistent:
// contiguous sequence numbers starting after afterSeq, content hashes that
// match the envelopes, and an unbroken chain from prevChainHash.
func VerifyPage(events []event.Event, afterSeq uint64, prevChainHash string) error {
	expected := afterSeq
	for i, evt := range events {
		expected++
		if evt.Seq != expected {
			return fmt.Errorf("event %d: expected seq %d, got %d", i, expected, evt.Seq)
		}
		hash, err := event.ContentHash(evt)
		if err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
		if hash != evt.Hash {
			return fmt.Errorf("event %d (seq %d): content hash mismatch", i, evt.Seq)
		}
		if evt.PrevHash != prevChainHash {
			return fmt.Errorf("event %d (seq %d): chain broken", i, evt.Seq)
		}
		chainHash, err := event.ChainHash(evt, prevChainHash)
		if err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
		if chainHash != evt.ChainHash {
			return fmt.Errorf("event %d (seq %d): chain hash mismatch", i, evt.Seq)
		}
		if strings.TrimSpace(evt.ID) == "" {
			return fmt.Errorf("event %d (seq %d): id is required", i, evt.Seq)
		}
		prevChainHash = evt.ChainHash
	}
	return nil
}
