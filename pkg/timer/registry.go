package timer

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pmaring/ruletick/pkg/action"
	"github.com/pmaring/ruletick/pkg/condition"
	"github.com/pmaring/ruletick/pkg/rules"
	"github.com/pmaring/ruletick/pkg/session"
)

// GlobalKey is the target key of a session-wide timer instance.
const GlobalKey = "global"

// globalCharacterPrefix keys per-character instances of global-scope rules
// whose conditions are evaluated per character.
const globalCharacterPrefix = "global_"

// Registry owns all live timer instances across sessions. It creates them
// in response to trigger events, ticks them, and persists/restores them.
// At most one instance exists per (session, rule, target key) at any
// moment.
type Registry struct {
	mu       sync.Mutex
	timers   map[string]*Instance
	creating map[string]struct{} // guards in-flight creations against duplicates

	paused atomic.Bool

	runner *action.Runner
	log    *slog.Logger
	now    func() time.Time
}

// NewRegistry creates an empty registry dispatching firings to the runner.
func NewRegistry(runner *action.Runner, log *slog.Logger) *Registry {
	return &Registry{
		timers:   make(map[string]*Instance),
		creating: make(map[string]struct{}),
		runner:   runner,
		log:      log,
		now:      time.Now,
	}
}

// registryKey is the composite map key for one instance.
func registryKey(s *session.Session, ruleID, target string) string {
	return s.ID.String() + "|" + ruleID + "|" + target
}

func sessionPrefix(s *session.Session) string {
	return s.ID.String() + "|"
}

func multiplier(s *session.Session) float64 {
	if s.Clock == nil {
		return 1.0
	}
	return s.Clock.Multiplier()
}

// target pairs a registry target key with the character bound to it.
type target struct {
	key       string
	character string
}

// resolveTargets applies the scope rules: character-scope rules yield one
// target per scene character; global-scope rules yield a single "global"
// target, unless they carry per-character conditions, in which case each
// scene character gets its own "global_<name>" instance.
func resolveTargets(r *rules.Rule, s *session.Session) []target {
	switch {
	case r.Scope == rules.ScopeCharacter:
		var targets []target
		for _, name := range s.Characters() {
			targets = append(targets, target{key: name, character: name})
		}
		return targets
	case r.HasCharacterConditions():
		var targets []target
		for _, name := range s.Characters() {
			targets = append(targets, target{key: globalCharacterPrefix + name, character: name})
		}
		return targets
	default:
		return []target{{key: GlobalKey}}
	}
}

// Notify is the TriggerSource entry point. Every enabled rule of the
// session whose start trigger matches the event (or, for newly_enabled,
// every enabled rule without an instance) is resolved to its target keys
// and scheduled. The posting character is accepted for interface parity
// but does not filter targets: resolution always fans out over the full
// scene membership.
func (r *Registry) Notify(ctx context.Context, kind rules.Trigger, character string, s *session.Session) {
	for _, rule := range s.Rules() {
		if !rule.Enabled {
			continue
		}
		if err := rule.Validate(); err != nil {
			r.log.Warn("Skipping invalid rule", "session_id", s.ID.String(), "error", err)
			continue
		}

		switch kind {
		case rules.TriggerNewlyEnabled:
			// Schedule regardless of start trigger, but only rules that
			// have no live instance yet.
			if r.hasInstance(s, rule.ID) {
				continue
			}
		default:
			if rule.StartTrigger != kind {
				continue
			}
		}

		for _, tgt := range resolveTargets(rule, s) {
			r.scheduleTarget(ctx, rule, s, tgt)
		}
	}
}

func (r *Registry) hasInstance(s *session.Session, ruleID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix := s.ID.String() + "|" + ruleID + "|"
	for k := range r.timers {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

// scheduleTarget creates or refreshes the instance for one target key.
// A short-lived creation marker makes the check-evaluate-create sequence
// safe against near-simultaneous trigger events for the same key.
func (r *Registry) scheduleTarget(ctx context.Context, rule *rules.Rule, s *session.Session, tgt target) {
	k := registryKey(s, rule.ID, tgt.key)

	r.mu.Lock()
	if _, inFlight := r.creating[k]; inFlight {
		r.mu.Unlock()
		return
	}
	r.creating[k] = struct{}{}
	r.mu.Unlock()

	// Recurring rules are assumed satisfied at scheduling time; their
	// conditions are checked at re-fire instead.
	ok := rule.Recurring || condition.Evaluate(ctx, rule, s, tgt.character, r.log)

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.creating, k)

	if !ok {
		return
	}

	mult := multiplier(s)
	if existing, found := r.timers[k]; found {
		// Refresh: rebind the rule snapshot and restart with a fresh
		// interval.
		existing.Rule = rule
		existing.Character = tgt.character
		existing.Stop()
		existing.Recalculate(mult)
		existing.Start(mult)
		r.log.Debug("Timer refreshed", "session_id", s.ID.String(), "rule_id", rule.ID, "key", tgt.key)
		return
	}

	inst := NewInstance(rule, s, tgt.character, tgt.key)
	inst.now = r.now
	inst.Start(mult)
	r.timers[k] = inst
	r.log.Debug("Timer created",
		"session_id", s.ID.String(),
		"rule_id", rule.ID,
		"key", tgt.key,
		"interval_ms", inst.IntervalMS())
}

// firing is the snapshot of an instance's bindings taken under the lock
// when it is marked firing. The fire path works from this snapshot only;
// a trigger event may rebind the live instance while the fire is in flight.
type firing struct {
	inst      *Instance
	rule      *rules.Rule
	character string
	skipCheck bool // first fire of a recurring rule
}

// Tick scans for expired timers, re-validates their conditions and hands
// valid ones to the action runner. A no-op while paused. Expired timers
// are processed in scan order; cross-timer ordering is not guaranteed.
func (r *Registry) Tick(ctx context.Context) {
	if r.paused.Load() {
		return
	}

	r.mu.Lock()
	var due []firing
	for _, t := range r.timers {
		if t.running && !t.firing && t.Expired() {
			// Marked firing through the condition re-check as well, so a
			// second tick cannot double-fire the same instance.
			t.firing = true
			due = append(due, firing{
				inst:      t,
				rule:      t.Rule,
				character: t.Character,
				skipCheck: t.Rule.Recurring && !t.fired,
			})
		}
	}
	r.mu.Unlock()

	for _, f := range due {
		r.fire(ctx, f)
	}
}

// fire re-validates one expired timer and dispatches it. The first fire of
// a recurring rule skips the condition check; every later fire re-checks.
func (r *Registry) fire(ctx context.Context, f firing) {
	t := f.inst
	ok := f.skipCheck || condition.Evaluate(ctx, f.rule, t.Session, f.character, r.log)

	if ok {
		go func() {
			defer func() {
				if rec := recover(); rec != nil {
					// Handler panics stay inside the firing goroutine.
					r.log.Error("Panic during action execution",
						"session_id", t.Session.ID.String(),
						"rule_id", f.rule.ID,
						"key", t.Key,
						"panic", rec)
				}
				r.completeFiring(ctx, f)
			}()
			r.runner.Execute(ctx, t.Session, f.rule, f.character)
		}()
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	k := registryKey(t.Session, f.rule.ID, t.Key)
	if r.timers[k] != t {
		// Removed while we were evaluating; treat as stale.
		return
	}
	t.firing = false
	if f.rule.Recurring {
		// Conditions failed, but recurring timers persist: restart with a
		// fresh interval without firing.
		t.Stop()
		t.Recalculate(multiplier(t.Session))
		t.Start(multiplier(t.Session))
		return
	}
	t.Stop()
	delete(r.timers, k)
	r.log.Debug("Timer removed, conditions no longer hold",
		"session_id", t.Session.ID.String(), "rule_id", f.rule.ID, "key", t.Key)
}

// completeFiring runs after the action sequence finishes. Recurring rules
// restart with a fresh interval; variable-gated one-shot rules restart
// while their conditions still hold; everything else is torn down.
func (r *Registry) completeFiring(ctx context.Context, f firing) {
	t := f.inst
	keep := f.rule.Recurring ||
		(f.rule.ConditionType == rules.ConditionVariable &&
			condition.Evaluate(ctx, f.rule, t.Session, f.character, r.log))

	r.mu.Lock()
	defer r.mu.Unlock()

	k := registryKey(t.Session, f.rule.ID, t.Key)
	if r.timers[k] != t {
		// Torn down mid-fire; do not reschedule a stale instance.
		return
	}

	t.fired = true
	t.firing = false

	if keep {
		t.Stop()
		t.Recalculate(multiplier(t.Session))
		t.Start(multiplier(t.Session))
		return
	}

	t.Stop()
	delete(r.timers, k)
}

// OnSceneChange terminates every active timer of the session except those
// on rules flagged global, then re-runs scheduling for rules whose start
// trigger is scene_change against the fresh scene membership.
func (r *Registry) OnSceneChange(ctx context.Context, s *session.Session) {
	r.mu.Lock()
	prefix := sessionPrefix(s)
	for k, t := range r.timers {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if t.Rule.Global {
			continue
		}
		t.Stop()
		delete(r.timers, k)
	}
	r.mu.Unlock()

	r.Notify(ctx, rules.TriggerSceneChange, "", s)
}

// StopAll terminates and removes every timer of the session.
func (r *Registry) StopAll(s *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix := sessionPrefix(s)
	for k, t := range r.timers {
		if strings.HasPrefix(k, prefix) {
			t.Stop()
			delete(r.timers, k)
		}
	}
}

// RemoveRule removes every instance of one rule in the session.
func (r *Registry) RemoveRule(ruleID string, s *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix := s.ID.String() + "|" + ruleID + "|"
	for k, t := range r.timers {
		if strings.HasPrefix(k, prefix) {
			t.Stop()
			delete(r.timers, k)
		}
	}
}

// CleanupInvalid removes any active timer whose rule is no longer among
// the session's loaded definitions.
func (r *Registry) CleanupInvalid(s *session.Session) {
	loaded := make(map[string]struct{})
	for _, rule := range s.Rules() {
		loaded[rule.ID] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	prefix := sessionPrefix(s)
	for k, t := range r.timers {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if _, ok := loaded[t.Rule.ID]; !ok {
			t.Stop()
			delete(r.timers, k)
			r.log.Info("Removed timer for unloaded rule",
				"session_id", s.ID.String(), "rule_id", t.Rule.ID, "key", t.Key)
		}
	}
}

// Pause suspends the tick loop. Timers keep counting down in wall-clock
// terms; expired ones simply fire on the first tick after Resume. No
// catch-up firing occurs.
func (r *Registry) Pause() {
	r.paused.Store(true)
}

// Resume lifts the pause.
func (r *Registry) Resume() {
	r.paused.Store(false)
}

// Paused reports whether the tick loop is suspended.
func (r *Registry) Paused() bool {
	return r.paused.Load()
}

// ActiveCount returns the number of live instances for the session.
func (r *Registry) ActiveCount(s *session.Session) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix := sessionPrefix(s)
	n := 0
	for k := range r.timers {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n
}

// Lookup returns the live instance for (rule, target key), if any.
func (r *Registry) Lookup(s *session.Session, ruleID, targetKey string) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[registryKey(s, ruleID, targetKey)]
	return t, ok
}

// SaveState serializes every running instance of the session into the
// persisted snapshot list.
func (r *Registry) SaveState(s *session.Session) State {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := State{
		ActiveTimers: make([]Snapshot, 0),
		LastSaved:    r.now(),
	}
	prefix := sessionPrefix(s)
	for k, t := range r.timers {
		if !strings.HasPrefix(k, prefix) || !t.running {
			continue
		}
		state.ActiveTimers = append(state.ActiveTimers, Snapshot{
			RuleID:          t.Rule.ID,
			Key:             t.Key,
			IsCharacter:     t.Character != "",
			Character:       t.Character,
			TimeRemainingMS: t.TimeRemaining(),
			IntervalMS:      t.intervalMS,
			IsRandom:        t.randomized,
		})
	}
	return state
}

// LoadState restores persisted snapshots into running instances.
//
// Snapshots whose rule no longer exists are best-effort remapped to the
// first loaded rule of matching scope and character-binding shape, in
// declaration order; otherwise dropped. Character-bound snapshots whose
// character is absent from the scene are dropped rather than resurrected.
func (r *Registry) LoadState(ctx context.Context, s *session.Session, state State) {
	for _, snap := range state.ActiveTimers {
		rule := s.Rule(snap.RuleID)
		if rule == nil {
			rule = remapRule(s, snap)
			if rule == nil {
				r.log.Warn("Dropping persisted timer, no matching rule",
					"session_id", s.ID.String(), "rule_id", snap.RuleID, "key", snap.Key)
				continue
			}
			r.log.Info("Remapped persisted timer to rule of matching shape",
				"session_id", s.ID.String(), "from", snap.RuleID, "to", rule.ID)
		}
		if !rule.Enabled {
			continue
		}

		if snap.IsCharacter && !s.HasCharacter(snap.Character) {
			// Stale bindings must never resurrect silently.
			r.log.Info("Dropping persisted timer, character not in scene",
				"session_id", s.ID.String(), "rule_id", rule.ID, "character", snap.Character)
			continue
		}

		r.mu.Lock()
		k := registryKey(s, rule.ID, snap.Key)
		if _, exists := r.timers[k]; exists {
			r.mu.Unlock()
			continue
		}
		inst := NewInstance(rule, s, snap.Character, snap.Key)
		inst.now = r.now
		inst.restoreAt(snap.TimeRemainingMS, snap.IntervalMS, snap.IsRandom)
		r.timers[k] = inst
		r.mu.Unlock()
	}
}

// remapRule finds the first loaded rule, in declaration order, whose scope
// and character-binding shape match the snapshot.
func remapRule(s *session.Session, snap Snapshot) *rules.Rule {
	for _, rule := range s.Rules() {
		if snap.IsCharacter {
			if rule.Scope == rules.ScopeCharacter ||
				(rule.Scope == rules.ScopeGlobal && rule.HasCharacterConditions()) {
				return rule
			}
			continue
		}
		if rule.Scope == rules.ScopeGlobal && !rule.HasCharacterConditions() {
			return rule
		}
	}
	return nil
}
