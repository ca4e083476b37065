package scheduler

// TurnStatus is the per-participant state within a round.
type TurnStatus string

const (
	// TurnAvailable means the participant has not yet acted this round.
	TurnAvailable TurnStatus = "available"
	// TurnActive means the participant holds the active turn.
	TurnActive TurnStatus = "active"
	// TurnPaused means the participant's turn was interrupted by a held
	// turn resuming, and continues once the interrupter finishes.
	TurnPaused TurnStatus = "paused"
	// TurnCompleted means the participant finished their turn.
	TurnCompleted TurnStatus = "completed"
	// TurnSkipped means the participant's turn was skipped.
	TurnSkipped TurnStatus = "skipped"
	// TurnHeld means the participant deferred their turn and may resume
	// later in the round.
	TurnHeld TurnStatus = "held"
)

// State captures the replayed round and turn machinery.
type State struct {
	// RoundCount is the number of rounds started.
	RoundCount uint64
	// RoundActive indicates a round is in progress.
	RoundActive bool
	// TurnCounter counts completed turns across the scenario. It only
	// moves forward, and only when a turn completes.
	TurnCounter uint64
	// Order lists participant public handles in initiative order for the
	// current round.
	Order []string
	// Groups maps participants to their initiative group for the current
	// round, when any.
	Groups map[string]string
	// Statuses maps participants to their turn status.
	Statuses map[string]TurnStatus
	// ActivePubID is the participant holding the active turn, if any.
	ActivePubID string
}

// Clone returns a deep copy of the scheduler state.
func (s State) Clone() State {
	out := s
	out.Order = append([]string(nil), s.Order...)
	if s.Groups != nil {
		out.Groups = make(map[string]string, len(s.Groups))
		for k, v := range s.Groups {
			out.Groups[k] = v
		}
	}
	if s.Statuses != nil {
		out.Statuses = make(map[string]TurnStatus, len(s.Statuses))
		for k, v := range s.Statuses {
			out.Statuses[k] = v
		}
	}
	return out
}

// Status returns the turn status of a participant in the current round.
func (s State) Status(pubID string) (TurnStatus, bool) {
	status, ok := s.Statuses[pubID]
	return status, ok
}

// nextEligible returns the next participant to act: the first interrupted
// turn resumes before any fresh turn starts.
func (s State) nextEligible() (string, bool) {
	for _, pubID := range s.Order {
		if s.Statuses[pubID] == TurnPaused {
			return pubID, true
		}
	}
	for _, pubID := range s.Order {
		if s.Statuses[pubID] == TurnAvailable {
			return pubID, true
		}
	}
	return "", false
}

// heldRemain reports whether any participant still holds a deferred turn.
func (s State) heldRemain() bool {
	for _, pubID := range s.Order {
		if s.Statuses[pubID] == TurnHeld {
			return true
		}
	}
	return false
}
