package timer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pmaring/ruletick/pkg/action"
	"github.com/pmaring/ruletick/pkg/clock"
	"github.com/pmaring/ruletick/pkg/rules"
	"github.com/pmaring/ruletick/pkg/session"
	"github.com/pmaring/ruletick/pkg/vars"
)

func TestScheduler_TicksUntilStopped(t *testing.T) {
	ctx := context.Background()

	// Real wall clock here; the interval is short enough for the loop to
	// pick the timer up within the test window.
	runner := action.NewRunner(nopHandlers{}, 0, testLogger())
	reg := NewRegistry(runner, testLogger())
	s := session.New(clock.New(time.Date(1920, time.June, 1, 8, 0, 0, 0, time.UTC)), vars.NewMemoryStore())

	s.SetRules([]*rules.Rule{{
		ID:            "blink",
		Enabled:       true,
		Scope:         rules.ScopeGlobal,
		StartTrigger:  rules.TriggerPlayer,
		Interval:      rules.Interval{Seconds: rules.Span{Value: 0.02}},
		ConditionType: rules.ConditionAlways,
		Actions:       rules.ActionList{markerAction("blinked")},
	}})
	reg.Notify(ctx, rules.TriggerPlayer, "", s)

	sched := NewScheduler(reg, 5*time.Millisecond, testLogger())

	done := make(chan error, 1)
	go func() { done <- sched.Start() }()

	require.Eventually(t, func() bool {
		value, ok, _ := s.Vars.Get(ctx, s.ID, vars.ScopeGlobal, "", "blinked")
		return ok && value == "fired"
	}, 2*time.Second, 5*time.Millisecond)

	sched.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Scheduler returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Scheduler did not stop")
	}
}

func TestScheduler_DefaultInterval(t *testing.T) {
	runner := action.NewRunner(nopHandlers{}, 0, testLogger())
	reg := NewRegistry(runner, testLogger())

	sched := NewScheduler(reg, 0, testLogger())
	if sched.interval != DefaultTickInterval {
		t.Errorf("Expected default tick interval %v, got %v", DefaultTickInterval, sched.interval)
	}
	sched.Stop()
}
