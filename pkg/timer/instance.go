// Package timer implements the scheduling core: live timer instances, the
// registry that owns them, the tick-driven scheduler, and snapshot
// persistence across process restarts.
package timer

import (
	"math"
	"time"

	"github.com/pmaring/ruletick/pkg/rules"
	"github.com/pmaring/ruletick/pkg/session"
)

// Instance is one live scheduled countdown bound to a rule, optionally
// bound to one character. Fields are guarded by the owning registry's lock;
// a standalone instance (as in tests) must be driven from one goroutine.
type Instance struct {
	Rule      *rules.Rule
	Session   *session.Session
	Character string // empty for global instances
	Key       string // registry target key

	intervalMS int64
	randomized bool
	startTime  time.Time
	nextFire   time.Time
	running    bool
	firing     bool
	fired      bool // has completed at least one firing

	now func() time.Time
}

// NewInstance creates an unstarted instance for the rule. character is
// empty for global instances.
func NewInstance(r *rules.Rule, s *session.Session, character, key string) *Instance {
	return &Instance{
		Rule:      r,
		Session:   s,
		Character: character,
		Key:       key,
		now:       time.Now,
	}
}

// ComputeInterval computes a fire interval in milliseconds.
//
// Game-time intervals sum their components into game seconds, then divide
// by the multiplier to convert to real time. A zero multiplier degenerates
// to the raw game-seconds value rather than dividing by zero.
func (t *Instance) ComputeInterval(multiplier float64) int64 {
	iv := t.Rule.Interval
	t.randomized = iv.Randomized()

	if iv.IsGameTime() {
		gameSeconds := iv.GameSeconds.Draw() +
			iv.GameMinutes.Draw()*60 +
			iv.GameHours.Draw()*3600 +
			iv.GameDays.Draw()*86400
		if multiplier > 0 {
			gameSeconds /= multiplier
		}
		return int64(math.Round(gameSeconds * 1000))
	}

	return int64(math.Round(iv.Seconds.Draw() * 1000))
}

// Start begins the countdown, computing the interval if not already set.
func (t *Instance) Start(multiplier float64) {
	if t.intervalMS == 0 {
		t.intervalMS = t.ComputeInterval(multiplier)
	}
	t.startTime = t.now()
	t.nextFire = t.startTime.Add(time.Duration(t.intervalMS) * time.Millisecond)
	t.running = true
}

// Stop marks the instance not running. The next-fire time is kept so the
// remaining time stays meaningful for persistence up to the stop.
func (t *Instance) Stop() {
	t.running = false
}

// Recalculate draws a fresh interval (a new random value if randomized)
// and, if running, resets the countdown relative to now.
func (t *Instance) Recalculate(multiplier float64) {
	t.intervalMS = t.ComputeInterval(multiplier)
	if t.running {
		t.startTime = t.now()
		t.nextFire = t.startTime.Add(time.Duration(t.intervalMS) * time.Millisecond)
	}
}

// TimeRemaining returns the milliseconds until the next fire, zero if not
// running or already due.
func (t *Instance) TimeRemaining() int64 {
	if !t.running {
		return 0
	}
	remaining := t.nextFire.Sub(t.now())
	if remaining < 0 {
		return 0
	}
	return remaining.Milliseconds()
}

// Expired reports whether the instance is running and due to fire.
func (t *Instance) Expired() bool {
	return t.running && !t.now().Before(t.nextFire)
}

// Running reports whether the countdown is active.
func (t *Instance) Running() bool {
	return t.running
}

// IntervalMS returns the computed interval in milliseconds.
func (t *Instance) IntervalMS() int64 {
	return t.intervalMS
}

// restoreAt resumes a persisted countdown with the given remaining time.
func (t *Instance) restoreAt(remainingMS, intervalMS int64, randomized bool) {
	t.intervalMS = intervalMS
	t.randomized = randomized
	t.startTime = t.now()
	t.nextFire = t.startTime.Add(time.Duration(remainingMS) * time.Millisecond)
	t.running = true
	// Restored timers have a scheduling cycle behind them, so recurring
	// rules re-check conditions on the next fire.
	t.fired = true
}
