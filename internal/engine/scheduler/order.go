package scheduler

import (
	"sort"

	"github.com/louisbranch/yourupnext/internal/engine/effect"
	"github.com/louisbranch/yourupnext/internal/engine/entity"
)

type participant struct {
	pubID string
	id    uint64
	value float64
	group string
}

// InitiativeOrder computes the turn order for a round from the roster and
// the active initiative effects. Participants are the non-retired characters
// carrying an initiative value; items and locations never occupy turn slots
// even when an effect gives them an initiative key.
//
// Ungrouped participants act strictly by initiative, highest first, ties
// broken by creation order. Grouped participants are interleaved: groups are
// ranked by their strongest member, and the final order cycles through the
// groups taking each group's next member in turn. An ungrouped participant
// counts as a group of one, so a roster without groups reduces to plain
// initiative order.
func InitiativeOrder(roster entity.State, effects effect.State) (order []string, groups map[string]string) {
	var participants []participant
	for _, e := range roster.Active() {
		if e.Kind != entity.KindCharacter {
			continue
		}
		value, group, ok := effects.Initiative(e.PubID)
		if !ok {
			continue
		}
		participants = append(participants, participant{pubID: e.PubID, id: e.ID, value: value, group: group})
	}
	if len(participants) == 0 {
		return nil, nil
	}

	groups = make(map[string]string)
	buckets := make(map[string][]participant)
	var keys []string
	for _, p := range participants {
		key := p.group
		if key == "" {
			// singleton bucket
			key = "\x00" + p.pubID
		} else {
			groups[p.pubID] = p.group
		}
		if _, seen := buckets[key]; !seen {
			keys = append(keys, key)
		}
		buckets[key] = append(buckets[key], p)
	}
	if len(groups) == 0 {
		groups = nil
	}

	for _, key := range keys {
		members := buckets[key]
		sort.Slice(members, func(i, j int) bool {
			if members[i].value != members[j].value {
				return members[i].value > members[j].value
			}
			return members[i].id < members[j].id
		})
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := buckets[keys[i]][0], buckets[keys[j]][0]
		if a.value != b.value {
			return a.value > b.value
		}
		return a.id < b.id
	})

	for rank := 0; len(order) < len(participants); rank++ {
		for _, key := range keys {
			if members := buckets[key]; rank < len(members) {
				order = append(order, members[rank].pubID)
			}
		}
	}
	return order, groups
}
