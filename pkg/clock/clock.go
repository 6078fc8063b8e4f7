// Package clock tracks a simulated game datetime that advances either in
// lockstep with wall-clock time (scaled by a multiplier) or stays static
// until explicitly advanced.
package clock

import (
	"sync"
	"time"
)

// GameClock is a simulated clock for one session.
type GameClock struct {
	mu         sync.Mutex
	base       time.Time // game datetime at the anchor point
	anchor     time.Time // wall time at the anchor point
	multiplier float64   // game seconds per wall second while flowing
	flowing    bool

	now func() time.Time // wall clock, injectable for tests
}

// New creates a static clock starting at the given game datetime with
// multiplier 1.0.
func New(start time.Time) *GameClock {
	return &GameClock{
		base:       start,
		anchor:     time.Now(),
		multiplier: 1.0,
		now:        time.Now,
	}
}

// Now returns the current game datetime.
func (c *GameClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.flowing {
		return c.base
	}
	elapsed := c.now().Sub(c.anchor)
	return c.base.Add(time.Duration(float64(elapsed) * c.multiplier))
}

// Multiplier returns the game-seconds-per-wall-second factor.
func (c *GameClock) Multiplier() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.multiplier
}

// SetMultiplier changes the time-passage factor, re-anchoring so the game
// datetime stays continuous.
func (c *GameClock) SetMultiplier(m float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rebaseLocked()
	c.multiplier = m
}

// SetFlowing switches the clock between static and flowing modes.
func (c *GameClock) SetFlowing(flowing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rebaseLocked()
	c.flowing = flowing
}

// Advance moves the game datetime forward by d game time.
func (c *GameClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rebaseLocked()
	c.base = c.base.Add(d)
}

// rebaseLocked folds elapsed flowing time into base and resets the anchor.
func (c *GameClock) rebaseLocked() {
	wall := c.now()
	if c.flowing {
		elapsed := wall.Sub(c.anchor)
		c.base = c.base.Add(time.Duration(float64(elapsed) * c.multiplier))
	}
	c.anchor = wall
}

// SetWallClock overrides the wall-clock source. Intended for tests.
func (c *GameClock) SetWallClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	c.anchor = now()
}
