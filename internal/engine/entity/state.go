package entity

import "sort"

// Entity is a replayed roster member.
type Entity struct {
	// ID is the internal sequential identity assigned in creation order.
	ID uint64
	// PubID is the stable public handle used in commands and events.
	PubID string
	// Kind categorizes the entity.
	Kind Kind
	// Name is the display name.
	Name string
	// Retired indicates the entity has been removed from play. Retired
	// entities keep their history but reject further mutation.
	Retired bool
}

// State captures the replayed roster.
type State struct {
	// NextID is the internal identity counter.
	NextID uint64
	// Entities indexes entities by internal ID.
	Entities map[uint64]Entity
	// PubIDs maps public handles to internal IDs.
	PubIDs map[string]uint64
	// Parents maps a child internal ID to its parent internal ID. An entity
	// has at most one parent.
	Parents map[uint64]uint64
	// Controllers maps an internal ID to the controlling player ID.
	Controllers map[uint64]string
}

// NewState returns an empty roster.
func NewState() State {
	return State{
		Entities:    make(map[uint64]Entity),
		PubIDs:      make(map[string]uint64),
		Parents:     make(map[uint64]uint64),
		Controllers: make(map[uint64]string),
	}
}

// Clone returns a deep copy of the roster.
func (s State) Clone() State {
	out := State{NextID: s.NextID}
	out.Entities = make(map[uint64]Entity, len(s.Entities))
	for id, e := range s.Entities {
		out.Entities[id] = e
	}
	out.PubIDs = make(map[string]uint64, len(s.PubIDs))
	for pub, id := range s.PubIDs {
		out.PubIDs[pub] = id
	}
	out.Parents = make(map[uint64]uint64, len(s.Parents))
	for child, parent := range s.Parents {
		out.Parents[child] = parent
	}
	out.Controllers = make(map[uint64]string, len(s.Controllers))
	for id, player := range s.Controllers {
		out.Controllers[id] = player
	}
	return out
}

// Get returns the entity for a public handle.
func (s State) Get(pubID string) (Entity, bool) {
	id, ok := s.PubIDs[pubID]
	if !ok {
		return Entity{}, false
	}
	e, ok := s.Entities[id]
	return e, ok
}

// ParentOf returns the public handle of an entity's parent, if any.
func (s State) ParentOf(pubID string) (string, bool) {
	id, ok := s.PubIDs[pubID]
	if !ok {
		return "", false
	}
	parentID, ok := s.Parents[id]
	if !ok {
		return "", false
	}
	parent, ok := s.Entities[parentID]
	if !ok {
		return "", false
	}
	return parent.PubID, true
}

// Children returns the public handles of an entity's direct children in
// creation order.
func (s State) Children(pubID string) []string {
	id, ok := s.PubIDs[pubID]
	if !ok {
		return nil
	}
	var ids []uint64
	for child, parent := range s.Parents {
		if parent == id {
			ids = append(ids, child)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]string, 0, len(ids))
	for _, child := range ids {
		out = append(out, s.Entities[child].PubID)
	}
	return out
}

// ControllerOf returns the player controlling an entity, if any.
func (s State) ControllerOf(pubID string) (string, bool) {
	id, ok := s.PubIDs[pubID]
	if !ok {
		return "", false
	}
	player, ok := s.Controllers[id]
	return player, ok && player != ""
}

// Active returns non-retired entities in creation order.
func (s State) Active() []Entity {
	out := make([]Entity, 0, len(s.Entities))
	for _, e := range s.Entities {
		if !e.Retired {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// wouldCycle reports whether assigning parentID as the parent of childID
// would create a containment cycle.
func (s State) wouldCycle(childID, parentID uint64) bool {
	for cur, ok := parentID, true; ok; cur, ok = s.Parents[cur] {
		if cur == childID {
			return true
		}
	}
	return false
}
