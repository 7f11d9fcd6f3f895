package tracker

import (
	"fmt"
	"time"
)

// Ladder is the ordered list of lookback windows tried by MostViewed.
type Ladder struct {
	Primary   time.Duration
	Secondary time.Duration
	Tertiary  time.Duration
}

// LadderFromMinutes builds a Ladder from rung sizes in minutes.
func LadderFromMinutes(primary, secondary, tertiary int) Ladder {
	return Ladder{
		Primary:   time.Duration(primary) * time.Minute,
		Secondary: time.Duration(secondary) * time.Minute,
		Tertiary:  time.Duration(tertiary) * time.Minute,
	}
}

// Rungs returns the three windows in order.
func (l Ladder) Rungs() []time.Duration {
	return []time.Duration{l.Primary, l.Secondary, l.Tertiary}
}

// Windows returns the rungs with the first one replaced by override when
// override is positive.
func (l Ladder) Windows(override time.Duration) []time.Duration {
	w := l.Rungs()
	if override > 0 {
		w[0] = override
	}
	return w
}

// Validate checks that every rung is positive.
func (l Ladder) Validate() error {
	for i, w := range l.Rungs() {
		if w <= 0 {
			return fmt.Errorf("rung %d must be positive, got %s", i+1, w)
		}
	}
	return nil
}

// Mode selects how far MostViewed escalates.
type Mode int

const (
	// Exhaustive widens the window until the limit is met or the ladder
	// runs out.
	Exhaustive Mode = iota
	// FirstPass only ever runs the first window.
	FirstPass
)

func (m Mode) String() string {
	switch m {
	case Exhaustive:
		return "exhaustive"
	case FirstPass:
		return "first-pass"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}
