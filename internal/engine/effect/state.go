package effect

import "sort"

// Effect is a replayed modifier instance.
type Effect struct {
	// ID is the sequential effect identity assigned at decision time.
	ID uint64
	// Name is the display name, e.g. "blessed" or "initiative".
	Name string
	// TargetPubID is the public handle of the affected entity.
	TargetPubID string
	// SourcePubID optionally names the entity that caused the effect.
	SourcePubID string
	// Data holds opaque key/value payload. Keys in the DataKey* set carry
	// engine meaning.
	Data map[string]any
	// Duration describes the lifetime.
	Duration Duration
	// ExpiresAtTurn is the turn counter value at which a turn-bounded
	// effect lapses. Zero otherwise.
	ExpiresAtTurn uint64
	// Removed indicates the effect is no longer active.
	Removed bool
	// RemovalReason records why the effect ended, when Removed.
	RemovalReason string
}

// State captures the replayed effect ledger.
type State struct {
	// NextID is the effect identity counter.
	NextID uint64
	// Effects indexes effects by ID, including removed ones.
	Effects map[uint64]Effect
	// Order lists effect IDs in application order.
	Order []uint64
}

// NewState returns an empty effect ledger.
func NewState() State {
	return State{Effects: make(map[uint64]Effect)}
}

// Clone returns a deep copy of the ledger.
func (s State) Clone() State {
	out := State{NextID: s.NextID}
	out.Effects = make(map[uint64]Effect, len(s.Effects))
	for id, e := range s.Effects {
		if e.Data != nil {
			data := make(map[string]any, len(e.Data))
			for k, v := range e.Data {
				data[k] = v
			}
			e.Data = data
		}
		out.Effects[id] = e
	}
	out.Order = append([]uint64(nil), s.Order...)
	return out
}

// Active returns non-removed effects in application order.
func (s State) Active() []Effect {
	out := make([]Effect, 0, len(s.Order))
	for _, id := range s.Order {
		if e, ok := s.Effects[id]; ok && !e.Removed {
			out = append(out, e)
		}
	}
	return out
}

// ActiveOn returns non-removed effects targeting an entity in application order.
func (s State) ActiveOn(targetPubID string) []Effect {
	out := make([]Effect, 0, 4)
	for _, e := range s.Active() {
		if e.TargetPubID == targetPubID {
			out = append(out, e)
		}
	}
	return out
}

// Value returns the value an entity currently carries for a data key,
// reading across the active effects targeting it. Later applications
// override earlier ones, and removed effects uncover what they shadowed.
func (s State) Value(targetPubID, key string) (any, bool) {
	var value any
	var ok bool
	for _, e := range s.ActiveOn(targetPubID) {
		if raw, has := e.Data[key]; has {
			value, ok = raw, true
		}
	}
	return value, ok
}

// Initiative returns the initiative value and group for an entity, derived
// from the most recently applied active effect carrying an initiative key.
func (s State) Initiative(targetPubID string) (value float64, group string, ok bool) {
	for _, e := range s.ActiveOn(targetPubID) {
		if raw, has := e.Data[DataKeyInitiative]; has {
			if v, isNum := toFloat(raw); isNum {
				value = v
				ok = true
			}
		}
		if raw, has := e.Data[DataKeyInitiativeGroup]; has {
			if g, isStr := raw.(string); isStr {
				group = g
			}
		}
	}
	return value, group, ok
}

// ExpiringAtTurn returns IDs of active turn-bounded effects that lapse once
// the turn counter reaches the given value, in application order.
func (s State) ExpiringAtTurn(turnCounter uint64) []uint64 {
	var out []uint64
	for _, e := range s.Active() {
		if e.Duration.Kind == DurationTurns && e.ExpiresAtTurn != 0 && turnCounter >= e.ExpiresAtTurn {
			out = append(out, e.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ExpiringAtRoundEnd returns IDs of active round-bounded effects, in
// application order.
func (s State) ExpiringAtRoundEnd() []uint64 {
	var out []uint64
	for _, e := range s.Active() {
		if e.Duration.Kind == DurationRound {
			out = append(out, e.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
