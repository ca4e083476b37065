package event

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// DeterministicID derives the event identity from (scenario_id, timestamp, seq).
//
// Replay is a pure function of the journal, so identity must carry no
// incidental randomness: the same prefix always reproduces the same IDs.
func DeterministicID(scenarioID string, timestampMillis int64, seq uint64) string {
	sum := sha256.Sum256([]byte(
		scenarioID + "|" + strconv.FormatInt(timestampMillis, 10) + "|" + strconv.FormatUint(seq, 10),
	))
	return hex.EncodeToString(sum[:16])
}

// hashEnvelope builds the canonical byte string hashed for event identity.
// Field order is defined here and nowhere else so it cannot drift between
// layers. Storage-assigned fields (Seq, ID, hashes) are excluded: the content
// hash doubles as the duplicate-append detector and must be computable before
// a sequence is assigned.
func hashEnvelope(evt Event) (string, error) {
	if strings.TrimSpace(evt.ScenarioID) == "" {
		return "", fmt.Errorf("scenario id is required for event hash")
	}
	if !evt.Type.IsValid() {
		return "", fmt.Errorf("event type is required for event hash")
	}
	parts := []string{
		evt.ScenarioID,
		string(evt.Type),
		strconv.FormatInt(evt.Timestamp.UTC().UnixMilli(), 10),
		string(evt.ActorType),
		evt.ActorID,
		evt.EntityType,
		evt.EntityID,
		evt.RequestID,
		string(evt.PayloadJSON),
	}
	return strings.Join(parts, "\x1f"), nil
}

// ContentHash computes the content hash for a single event envelope.
func ContentHash(evt Event) (string, error) {
	envelope, err := hashEnvelope(evt)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(envelope))
	return hex.EncodeToString(sum[:16]), nil
}

// ChainHash computes the SHA-256 hash that links an event to its predecessor.
func ChainHash(evt Event, prevHash string) (string, error) {
	envelope, err := hashEnvelope(evt)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(prevHash + "\x1e" + strconv.FormatUint(evt.Seq, 10) + "\x1e" + envelope))
	return hex.EncodeToString(sum[:]), nil
}
