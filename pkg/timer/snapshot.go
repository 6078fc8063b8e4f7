package timer

import "time"

// Snapshot is the persisted form of one running instance.
type Snapshot struct {
	RuleID          string `json:"rule_id"`
	Key             string `json:"key"`
	IsCharacter     bool   `json:"is_character"`
	Character       string `json:"character"`
	TimeRemainingMS int64  `json:"time_remaining_ms"`
	IntervalMS      int64  `json:"interval_ms"`
	IsRandom        bool   `json:"is_random"`
}

// State is the timers section of a session's gamestate document.
type State struct {
	ActiveTimers []Snapshot `json:"active_timers"`
	LastSaved    time.Time  `json:"last_saved"`
}
