package scheduler

import (
	"time"

	"github.com/meetwhenah/meetwhenah/internal/timeutil"
)

// Optional filter hooks. Neither is installed by default; callers opt in by
// appending to Selector.Predicates.

// RejectSleepOverlap rejects blocks that touch the sleep window
// [sleepStart, sleepEnd) of loc's wall clock. A window that wraps past
// midnight, such as 23:00 to 07:00, is handled.
func RejectSleepOverlap(sleepStart, sleepEnd string, loc *time.Location) (BlockPredicate, error) {
	startH, startM, err := timeutil.ParseWallTime(sleepStart)
	if err != nil {
		return nil, err
	}
	endH, endM, err := timeutil.ParseWallTime(sleepEnd)
	if err != nil {
		return nil, err
	}
	sleepFrom := startH*60 + startM
	sleepTo := endH*60 + endM

	inWindow := func(minutes int) bool {
		if sleepFrom <= sleepTo {
			return minutes >= sleepFrom && minutes < sleepTo
		}
		return minutes >= sleepFrom || minutes < sleepTo
	}

	return func(block Block) bool {
		for t := block.Start; t.Before(block.End); t = t.Add(timeutil.Slot) {
			if inWindow(timeutil.MinutesOfDay(t, loc)) {
				return true
			}
		}
		return false
	}, nil
}

// RejectParticipantShift rejects blocks whose raw per-slot availability
// count swings by more than the given fraction of its peak. A threshold of
// 0.5 rejects a block where half the people present at the fullest slot are
// gone at the emptiest.
func RejectParticipantShift(threshold float64) BlockPredicate {
	return func(block Block) bool {
		if len(block.SlotCounts) == 0 {
			return false
		}
		minCount, maxCount := block.SlotCounts[0], block.SlotCounts[0]
		for _, c := range block.SlotCounts[1:] {
			if c < minCount {
				minCount = c
			}
			if c > maxCount {
				maxCount = c
			}
		}
		if maxCount == 0 {
			return false
		}
		shift := float64(maxCount-minCount) / float64(maxCount)
		return shift > threshold
	}
}
