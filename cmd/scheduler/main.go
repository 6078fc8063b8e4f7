// Command scheduler runs the timer engine against a demo session. It is
// the reference wiring for hosts: config, storage, variable store, clock,
// action runner, registry and the tick loop with graceful shutdown.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/pmaring/ruletick/internal/config"
	"github.com/pmaring/ruletick/internal/logger"
	"github.com/pmaring/ruletick/internal/storage"
	"github.com/pmaring/ruletick/pkg/action"
	"github.com/pmaring/ruletick/pkg/clock"
	"github.com/pmaring/ruletick/pkg/rules"
	"github.com/pmaring/ruletick/pkg/session"
	"github.com/pmaring/ruletick/pkg/timer"
	"github.com/pmaring/ruletick/pkg/vars"
)

// logHandlers is a stand-in for the host's inference and game-over
// collaborators: it logs each dispatch instead of calling an LLM.
type logHandlers struct {
	log *slog.Logger
}

func (h *logHandlers) PostNarrator(ctx context.Context, s *session.Session, systemMessage string) error {
	h.log.Info("Narrator post requested", "session_id", s.ID.String(), "system_message", systemMessage)
	return nil
}

func (h *logHandlers) PostActor(ctx context.Context, s *session.Session, character, systemMessage string) error {
	h.log.Info("Actor post requested", "session_id", s.ID.String(), "character", character)
	return nil
}

func (h *logHandlers) GenerateValue(ctx context.Context, instructions, current, variable string, scope vars.Scope) (string, error) {
	h.log.Info("Value generation requested", "variable", variable, "scope", string(scope))
	return current, nil
}

func (h *logHandlers) GameOver(ctx context.Context, s *session.Session, message string) error {
	h.log.Info("Game over triggered", "session_id", s.ID.String(), "message", message)
	return nil
}

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg)

	log.Info("Starting rule timer scheduler",
		"environment", cfg.Environment,
		"redis_url", cfg.RedisURL,
		"tick_interval", cfg.TickInterval.String())

	store := storage.NewRedisStorage(cfg.RedisURL, cfg.DataDir, log)
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing storage", "error", err)
		}
	}()

	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if err := store.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage service initialized successfully")

	varStore := storage.NewRedisVarStore(store.Client(), log)

	runner := action.NewRunner(&logHandlers{log: log}, cfg.ActionDelay, log)
	registry := timer.NewRegistry(runner, log)
	runner.SetSceneChangeFunc(registry.OnSceneChange)

	sess, err := loadDemoSession(context.Background(), store, varStore, log)
	if err != nil {
		log.Error("Failed to set up session", "error", err)
		os.Exit(1)
	}

	// Restore persisted timers, if any.
	if state, err := store.LoadSessionState(context.Background(), sess.ID); err != nil {
		log.Error("Failed to load session state, starting fresh", "error", err)
	} else if state != nil {
		registry.LoadState(context.Background(), sess, state.Timers)
		log.Info("Restored persisted timers", "count", registry.ActiveCount(sess))
	}

	registry.Notify(context.Background(), rules.TriggerNewlyEnabled, "", sess)

	scheduler := timer.NewScheduler(registry, cfg.TickInterval, log)
	go func() {
		if err := scheduler.Start(); err != nil {
			log.Error("Scheduler exited with error", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received shutdown signal", "signal", sig.String())

	scheduler.Stop()
	saveAndStop(registry, store, sess, log)
}

// loadDemoSession builds one session from the first rule set on disk.
func loadDemoSession(ctx context.Context, store *storage.RedisStorage, varStore vars.Store, log *slog.Logger) (*session.Session, error) {
	gameClock := clock.New(time.Now())
	sess := session.New(gameClock, varStore)

	ruleSets, err := store.ListRuleSets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rule sets: %w", err)
	}
	for name, filename := range ruleSets {
		list, err := store.GetRuleSet(ctx, filename)
		if err != nil {
			return nil, fmt.Errorf("load rule set %s: %w", filename, err)
		}
		sess.SetRules(list)
		log.Info("Loaded rule set", "name", name, "rules", len(list))
		break
	}

	return sess, nil
}

// saveAndStop persists the session's timers under the save lock, then
// tears the registry down.
func saveAndStop(registry *timer.Registry, store *storage.RedisStorage, sess *session.Session, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	owner := fmt.Sprintf("scheduler-%s", uuid.New().String()[:8])
	locked, err := store.AcquireSessionLock(ctx, sess.ID, owner, 30*time.Second)
	if err != nil {
		log.Error("Failed to acquire session lock", "error", err)
	}
	if locked {
		defer func() {
			if err := store.ReleaseSessionLock(ctx, sess.ID, owner); err != nil {
				log.Error("Failed to release session lock", "error", err)
			}
		}()

		state := &storage.SessionState{Timers: registry.SaveState(sess)}
		if err := store.SaveSessionState(ctx, sess.ID, state); err != nil {
			log.Error("Failed to save session state", "error", err)
		} else {
			log.Info("Session state saved", "timers", len(state.Timers.ActiveTimers))
		}
	}

	registry.StopAll(sess)
	log.Info("Scheduler shut down cleanly")
}
