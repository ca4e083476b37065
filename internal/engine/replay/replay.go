// Package replay rebuilds projection state from the journal, page by page,
// verifying the hash chain and reusing checkpoints where possible.
package replay

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/yourupnext/internal/engine/projection"
	platformerrors "github.com/louisbranch/yourupnext/internal/platform/errors"
	"github.com/louisbranch/yourupnext/internal/storage"
	"github.com/louisbranch/yourupnext/internal/storage/integrity"
)

const defaultPageSize = 256

const tracerName = "github.com/louisbranch/yourupnext/internal/engine/replay"

// Checkpoint is a saved projection plus the chain hash of its last event,
// so a resumed replay can verify continuity.
type Checkpoint struct {
	State     projection.State
	ChainHash string
}

// CheckpointStore persists replay checkpoints.
type CheckpointStore interface {
	Load(ctx context.Context, scenarioID string) (Checkpoint, bool, error)
	Save(ctx context.Context, scenarioID string, checkpoint Checkpoint) error
}

// MemoryCheckpoints keeps checkpoints in memory.
type MemoryCheckpoints struct {
	mu          sync.RWMutex
	checkpoints map[string]Checkpoint
}

// NewMemoryCheckpoints creates an empty checkpoint store.
func NewMemoryCheckpoints() *MemoryCheckpoints {
	return &MemoryCheckpoints{checkpoints: make(map[string]Checkpoint)}
}

// Load implements CheckpointStore.
func (m *MemoryCheckpoints) Load(ctx context.Context, scenarioID string) (Checkpoint, bool, error) {
	if err := ctx.Err(); err != nil {
		return Checkpoint{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	checkpoint, ok := m.checkpoints[scenarioID]
	if !ok {
		return Checkpoint{}, false, nil
	}
	checkpoint.State = checkpoint.State.Clone()
	return checkpoint, true, nil
}

// Save implements CheckpointStore.
func (m *MemoryCheckpoints) Save(ctx context.Context, scenarioID string, checkpoint Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	checkpoint.State = checkpoint.State.Clone()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[scenarioID] = checkpoint
	return nil
}

// Replayer folds journal pages into projection state.
type Replayer struct {
	Store  storage.EventStore
	Folder *projection.Folder
	// Checkpoints is optional; without it every replay starts from zero.
	Checkpoints CheckpointStore
	// PageSize bounds how many events are loaded per storage round trip.
	PageSize int
}

// Head replays a scenario to the journal head.
func (r *Replayer) Head(ctx context.Context, scenarioID string) (projection.State, error) {
	seq, err := r.Store.LatestSeq(ctx, scenarioID)
	if err != nil {
		return projection.State{}, platformerrors.Wrap(platformerrors.CodeStorage, "load journal head", err)
	}
	return r.StateAt(ctx, scenarioID, seq)
}

// StateAt replays a scenario up to and including upToSeq. A zero upToSeq
// yields the empty state.
func (r *Replayer) StateAt(ctx context.Context, scenarioID string, upToSeq uint64) (projection.State, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "replay.state_at",
		trace.WithAttributes(
			attribute.String("scenario.id", scenarioID),
			attribute.Int64("journal.seq", int64(upToSeq)),
		))
	defer span.End()

	state := projection.NewState(scenarioID)
	chainHash := ""

	if r.Checkpoints != nil {
		checkpoint, ok, err := r.Checkpoints.Load(ctx, scenarioID)
		if err != nil {
			return projection.State{}, platformerrors.Wrap(platformerrors.CodeStorage, "load checkpoint", err)
		}
		if ok && checkpoint.State.LastSeq <= upToSeq {
			resumed, err := r.replayFrom(ctx, scenarioID, checkpoint.State, checkpoint.ChainHash, upToSeq)
			if err == nil {
				return resumed, nil
			}
			// A stale checkpoint (e.g. after a timeline rewrite) falls
			// back to a full replay; only the fresh replay's error counts.
		}
	}

	state, err := r.replayFrom(ctx, scenarioID, state, chainHash, upToSeq)
	if err != nil {
		return projection.State{}, err
	}
	if r.Checkpoints != nil && upToSeq == state.LastSeq {
		lastChain, chainErr := r.chainHashAt(ctx, scenarioID, state.LastSeq)
		if chainErr == nil {
			_ = r.Checkpoints.Save(ctx, scenarioID, Checkpoint{State: state, ChainHash: lastChain})
		}
	}
	return state, nil
}

func (r *Replayer) replayFrom(ctx context.Context, scenarioID string, state projection.State, chainHash string, upToSeq uint64) (projection.State, error) {
	pageSize := r.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	for state.LastSeq < upToSeq {
		limit := pageSize
		if remaining := upToSeq - state.LastSeq; remaining < uint64(limit) {
			limit = int(remaining)
		}
		page, err := r.Store.ListEvents(ctx, scenarioID, state.LastSeq, limit)
		if err != nil {
			return projection.State{}, platformerrors.Wrap(platformerrors.CodeStorage, "list journal page", err)
		}
		if len(page) == 0 {
			return projection.State{}, platformerrors.WithMetadata(platformerrors.CodeReplayInconsistency,
				"journal ends before requested sequence",
				map[string]string{"scenario_id": scenarioID})
		}
		if err := integrity.VerifyPage(page, state.LastSeq, chainHash); err != nil {
			return projection.State{}, platformerrors.Wrap(platformerrors.CodeReplayInconsistency, "journal page failed verification", err)
		}
		state, err = r.Folder.Fold(state, page)
		if err != nil {
			return projection.State{}, platformerrors.Wrap(platformerrors.CodeReplayInconsistency, "journal page failed to fold", err)
		}
		chainHash = page[len(page)-1].ChainHash
	}
	return state, nil
}

func (r *Replayer) chainHashAt(ctx context.Context, scenarioID string, seq uint64) (string, error) {
	if seq == 0 {
		return "", nil
	}
	page, err := r.Store.ListEvents(ctx, scenarioID, seq-1, 1)
	if err != nil {
		return "", err
	}
	if len(page) == 0 {
		return "", storage.ErrNotFound
	}
	return page[0].ChainHash, nil
}
