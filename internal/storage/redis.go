package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pmaring/ruletick/pkg/rules"
)

// RedisStorage implements the Storage interface using Redis for session
// state and filesystem for static resources (rule sets)
type RedisStorage struct {
	client  *redis.Client
	logger  *slog.Logger
	dataDir string
}

// Ensure RedisStorage implements Storage interface
var _ Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a new Redis storage instance
func NewRedisStorage(redisURL string, dataDir string, logger *slog.Logger) *RedisStorage {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisURL,
	})

	if dataDir == "" {
		dataDir = "./data"
	}

	return &RedisStorage{
		client:  rdb,
		logger:  logger,
		dataDir: dataDir,
	}
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	cmd := r.client.Ping(ctx)
	if err := cmd.Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// Client exposes the underlying Redis client for collaborators that share
// the connection (variable store, locks).
func (r *RedisStorage) Client() *redis.Client {
	return r.client
}

// Session state operations (Redis-backed)

func sessionStateKey(id uuid.UUID) string {
	return "gamestate:" + id.String()
}

func (r *RedisStorage) SaveSessionState(ctx context.Context, id uuid.UUID, state *SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		r.logger.Error("Failed to marshal session state", "uuid", id, "error", err)
		return fmt.Errorf("failed to marshal session state: %w", err)
	}

	cmd := r.client.Set(ctx, sessionStateKey(id), string(data), 0)
	if err := cmd.Err(); err != nil {
		r.logger.Error("Failed to save session state", "uuid", id, "error", err)
		return fmt.Errorf("failed to save session state: %w", err)
	}

	return nil
}

func (r *RedisStorage) LoadSessionState(ctx context.Context, id uuid.UUID) (*SessionState, error) {
	cmd := r.client.Get(ctx, sessionStateKey(id))
	if err := cmd.Err(); err != nil {
		if err == redis.Nil {
			r.logger.Warn("Session state not found", "uuid", id)
			return nil, nil // Return nil for not found
		}
		r.logger.Error("Failed to load session state", "uuid", id, "error", err)
		return nil, fmt.Errorf("failed to load session state: %w", err)
	}

	data := cmd.Val()
	if data == "" {
		r.logger.Warn("Session state not found", "uuid", id)
		return nil, nil
	}

	var state SessionState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		r.logger.Error("Failed to unmarshal session state", "uuid", id, "error", err)
		return nil, fmt.Errorf("failed to unmarshal session state: %w", err)
	}

	return &state, nil
}

func (r *RedisStorage) DeleteSessionState(ctx context.Context, id uuid.UUID) error {
	cmd := r.client.Del(ctx, sessionStateKey(id))
	if err := cmd.Err(); err != nil {
		r.logger.Error("Failed to delete session state", "uuid", id, "error", err)
		return fmt.Errorf("failed to delete session state: %w", err)
	}
	return nil
}

// Session save locks. One writer persists a session's state at a time;
// the lock is TTL-bounded and only the owner may release it.

func sessionLockKey(id uuid.UUID) string {
	return fmt.Sprintf("session-lock:%s", id.String())
}

func (r *RedisStorage) AcquireSessionLock(ctx context.Context, id uuid.UUID, owner string, ttl time.Duration) (bool, error) {
	result, err := r.client.SetNX(ctx, sessionLockKey(id), owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire session lock: %w", err)
	}
	return result, nil
}

func (r *RedisStorage) ReleaseSessionLock(ctx context.Context, id uuid.UUID, owner string) error {
	// Only delete if we own the lock
	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	if err := script.Run(ctx, r.client, []string{sessionLockKey(id)}, owner).Err(); err != nil {
		r.logger.Error("Failed to release session lock", "error", err, "session_id", id.String())
		return fmt.Errorf("failed to release session lock: %w", err)
	}
	return nil
}

// Rule set operations (filesystem-backed)

func (r *RedisStorage) ListRuleSets(ctx context.Context) (map[string]string, error) {
	rulesDir := filepath.Join(r.dataDir, "rules")
	ruleSets := make(map[string]string)

	err := filepath.WalkDir(rulesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		file, err := os.ReadFile(path)
		if err != nil {
			r.logger.Warn("Failed to read rule-set file", "path", path, "error", err)
			return nil
		}

		var rs rules.RuleSet
		if err := json.Unmarshal(file, &rs); err != nil {
			r.logger.Warn("Failed to unmarshal rule-set file", "path", path, "error", err)
			return nil
		}

		filename := filepath.Base(path)
		ruleSets[rs.Name] = filename
		return nil
	})

	if err != nil {
		r.logger.Error("Failed to walk rules directory", "error", err)
		return nil, fmt.Errorf("failed to list rule sets: %w", err)
	}

	return ruleSets, nil
}

func (r *RedisStorage) GetRuleSet(ctx context.Context, filename string) ([]*rules.Rule, error) {
	path := filepath.Join(r.dataDir, "rules", filename)

	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("rule set not found: %s", filename)
		}
		return nil, fmt.Errorf("failed to read rule-set file: %w", err)
	}

	var rs rules.RuleSet
	if err := json.Unmarshal(file, &rs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule set: %w", err)
	}
	rs.FileName = filename

	return rs.Rules, nil
}
