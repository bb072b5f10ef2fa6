// Package scheduler computes the best meeting block from submitted
// availability. The selector is a pure function of its inputs: no clock, no
// I/O, so it can be exercised with literal fixtures.
package scheduler

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/meetwhenah/meetwhenah/internal/timeutil"
	"github.com/meetwhenah/meetwhenah/store"
)

// Constraints bound the search. MinParticipants is the quorum every slot of
// a block must keep; MinBlockSlots and MaxBlockSlots bound the block length
// in slots, both inclusive.
type Constraints struct {
	MinParticipants int
	MinBlockSlots   int
	MaxBlockSlots   int
}

// Block is a qualifying candidate meeting time. Participants is the
// intersection of availability over every slot of [Start, End), sorted by id
// for determinism. SlotCounts holds the raw per-slot availability count, one
// entry per slot, for predicates that care about shape.
type Block struct {
	Start        time.Time
	End          time.Time
	Participants []uuid.UUID
	SlotCounts   []int
}

// DurationSlots returns the block length in slots.
func (b Block) DurationSlots() int {
	return timeutil.SlotsBetween(b.Start, b.End)
}

// Score ranks blocks: more people and more time both count.
func (b Block) Score() int {
	return len(b.Participants) * b.DurationSlots()
}

// BlockPredicate rejects a candidate block when it returns true. Predicates
// run after the greedy walk and before scoring.
type BlockPredicate func(Block) bool

// Selector runs the optimal-block search. Predicates are optional filter
// hooks; none are installed by default.
type Selector struct {
	Constraints Constraints
	Predicates  []BlockPredicate
}

// Select returns every block tied for the maximum score, canonically sorted
// by start ascending, duration descending, then participant ids. An input
// with no qualifying block returns an empty slice.
//
// The search groups availability into a slot map and, from each occupied
// slot, grows the candidate greedily: the intersection over consecutive
// slots is monotone non-increasing, so once it drops below quorum no longer
// block rooted at that slot can qualify.
func (s *Selector) Select(blocks []*store.AvailabilityBlock) []Block {
	slotUsers := buildSlotMap(blocks)
	if len(slotUsers) == 0 {
		return []Block{}
	}

	starts := make([]int64, 0, len(slotUsers))
	for start := range slotUsers {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	slotSecs := int64(timeutil.Slot / time.Second)

	candidates := make([]Block, 0)
	for _, start := range starts {
		intersection := cloneSet(slotUsers[start])
		counts := []int{len(slotUsers[start])}

		k := 1
		for k < s.Constraints.MaxBlockSlots {
			next, ok := slotUsers[start+int64(k)*slotSecs]
			if !ok {
				break
			}
			shrunk := intersectSets(intersection, next)
			if len(shrunk) < s.Constraints.MinParticipants {
				break
			}
			intersection = shrunk
			counts = append(counts, len(next))
			k++
		}

		if k < s.Constraints.MinBlockSlots || len(intersection) < s.Constraints.MinParticipants {
			continue
		}

		block := Block{
			Start:        time.Unix(start, 0).UTC(),
			End:          time.Unix(start+int64(k)*slotSecs, 0).UTC(),
			Participants: sortedUsers(intersection),
			SlotCounts:   counts,
		}
		if s.rejected(block) {
			continue
		}
		candidates = append(candidates, block)
	}

	if len(candidates) == 0 {
		return []Block{}
	}

	best := candidates[0].Score()
	for _, c := range candidates[1:] {
		if c.Score() > best {
			best = c.Score()
		}
	}

	tied := make([]Block, 0)
	for _, c := range candidates {
		if c.Score() == best {
			tied = append(tied, c)
		}
	}

	sortCanonically(tied)
	return tied
}

// Best applies the tie-break to a tied set and returns the winner: earliest
// start, then longest duration, then lowest participant id list. Returns nil
// for an empty set.
func Best(blocks []Block) *Block {
	if len(blocks) == 0 {
		return nil
	}
	sorted := make([]Block, len(blocks))
	copy(sorted, blocks)
	sortCanonically(sorted)
	return &sorted[0]
}

func (s *Selector) rejected(block Block) bool {
	for _, reject := range s.Predicates {
		if reject(block) {
			return true
		}
	}
	return false
}

// buildSlotMap expands each availability interval into slot-sized entries
// keyed by the slot's unix start.
func buildSlotMap(blocks []*store.AvailabilityBlock) map[int64]map[uuid.UUID]struct{} {
	slotUsers := make(map[int64]map[uuid.UUID]struct{})
	for _, block := range blocks {
		for t := block.StartTs; t.Before(block.EndTs); t = t.Add(timeutil.Slot) {
			key := t.Unix()
			set, ok := slotUsers[key]
			if !ok {
				set = make(map[uuid.UUID]struct{})
				slotUsers[key] = set
			}
			set[block.UserID] = struct{}{}
		}
	}
	return slotUsers
}

func cloneSet(set map[uuid.UUID]struct{}) map[uuid.UUID]struct{} {
	clone := make(map[uuid.UUID]struct{}, len(set))
	for id := range set {
		clone[id] = struct{}{}
	}
	return clone
}

func intersectSets(a, b map[uuid.UUID]struct{}) map[uuid.UUID]struct{} {
	out := make(map[uuid.UUID]struct{})
	for id := range a {
		if _, ok := b[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

func sortedUsers(set map[uuid.UUID]struct{}) []uuid.UUID {
	users := make([]uuid.UUID, 0, len(set))
	for id := range set {
		users = append(users, id)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].String() < users[j].String() })
	return users
}

func sortCanonically(blocks []Block) {
	sort.Slice(blocks, func(i, j int) bool {
		if !blocks[i].Start.Equal(blocks[j].Start) {
			return blocks[i].Start.Before(blocks[j].Start)
		}
		di, dj := blocks[i].DurationSlots(), blocks[j].DurationSlots()
		if di != dj {
			return di > dj
		}
		return lessParticipants(blocks[i].Participants, blocks[j].Participants)
	})
}

func lessParticipants(a, b []uuid.UUID) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i].String() < b[i].String()
		}
	}
	return len(a) < len(b)
}
