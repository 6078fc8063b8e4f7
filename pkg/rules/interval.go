package rules

import (
	"fmt"
	"math/rand"
)

// Span is a fire-interval component that is either fixed (Value) or drawn
// uniformly from [Min, Max] when Max > Min.
type Span struct {
	Value float64 `json:"value,omitempty"`
	Min   float64 `json:"min,omitempty"`
	Max   float64 `json:"max,omitempty"`
}

// Randomized reports whether the span draws a fresh value per computation.
func (s Span) Randomized() bool {
	return s.Max > s.Min
}

// Draw returns the span's value, drawing a fresh uniform value from
// [Min, Max] when randomized.
func (s Span) Draw() float64 {
	if s.Randomized() {
		return s.Min + rand.Float64()*(s.Max-s.Min)
	}
	return s.Value
}

// IsZero reports whether the span contributes nothing.
func (s Span) IsZero() bool {
	return s.Value == 0 && s.Min == 0 && s.Max == 0
}

func (s Span) validate() error {
	if s.Value < 0 || s.Min < 0 || s.Max < 0 {
		return fmt.Errorf("negative span component")
	}
	if s.Max != 0 && s.Max < s.Min {
		return fmt.Errorf("span max %v below min %v", s.Max, s.Min)
	}
	return nil
}

// Interval describes when a timer fires: either a real-time interval in
// seconds, or a game-time interval whose components are converted to real
// milliseconds by dividing by the game clock multiplier.
type Interval struct {
	// Real-time interval.
	Seconds Span `json:"seconds,omitempty"`

	// Game-time interval. Any non-zero component (or the explicit flag)
	// selects game-time mode.
	GameTime    bool `json:"game_time,omitempty"`
	GameSeconds Span `json:"game_seconds,omitempty"`
	GameMinutes Span `json:"game_minutes,omitempty"`
	GameHours   Span `json:"game_hours,omitempty"`
	GameDays    Span `json:"game_days,omitempty"`
}

// IsGameTime reports whether the interval is defined in game time.
func (iv Interval) IsGameTime() bool {
	return iv.GameTime ||
		!iv.GameSeconds.IsZero() ||
		!iv.GameMinutes.IsZero() ||
		!iv.GameHours.IsZero() ||
		!iv.GameDays.IsZero()
}

// Randomized reports whether any contributing component draws a fresh
// random value per computation.
func (iv Interval) Randomized() bool {
	if iv.IsGameTime() {
		return iv.GameSeconds.Randomized() ||
			iv.GameMinutes.Randomized() ||
			iv.GameHours.Randomized() ||
			iv.GameDays.Randomized()
	}
	return iv.Seconds.Randomized()
}

// Validate checks the interval fields for configuration errors.
func (iv Interval) Validate() error {
	spans := map[string]Span{
		"seconds":      iv.Seconds,
		"game_seconds": iv.GameSeconds,
		"game_minutes": iv.GameMinutes,
		"game_hours":   iv.GameHours,
		"game_days":    iv.GameDays,
	}
	for name, s := range spans {
		if err := s.validate(); err != nil {
			return fmt.Errorf("interval %s: %w", name, err)
		}
	}
	if !iv.IsGameTime() && iv.Seconds.IsZero() {
		return fmt.Errorf("interval has no duration")
	}
	if iv.IsGameTime() && iv.GameSeconds.IsZero() && iv.GameMinutes.IsZero() &&
		iv.GameHours.IsZero() && iv.GameDays.IsZero() {
		return fmt.Errorf("game-time interval has no duration")
	}
	return nil
}
