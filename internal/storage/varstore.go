package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pmaring/ruletick/pkg/vars"
)

// RedisVarStore implements vars.Store on Redis. Each (session, scope,
// character) tuple maps to one JSON document; Set is read-then-write on
// that single document, so a failed write never touches other documents.
type RedisVarStore struct {
	client *redis.Client
	logger *slog.Logger
}

var _ vars.Store = (*RedisVarStore)(nil)

// NewRedisVarStore creates a variable store sharing the given client.
func NewRedisVarStore(client *redis.Client, logger *slog.Logger) *RedisVarStore {
	return &RedisVarStore{
		client: client,
		logger: logger,
	}
}

func varDocKey(sessionID uuid.UUID, scope vars.Scope, character string) string {
	key := "vars:" + sessionID.String() + ":" + string(scope)
	if scope == vars.ScopeCharacter {
		key += ":" + character
	}
	return key
}

// readDoc loads a variable document, treating unreadable or corrupt
// documents as absent.
func (r *RedisVarStore) readDoc(ctx context.Context, key string) map[string]string {
	cmd := r.client.Get(ctx, key)
	if err := cmd.Err(); err != nil {
		if err != redis.Nil {
			r.logger.Warn("Variable document unreadable, treating as absent", "key", key, "error", err)
		}
		return nil
	}

	var doc map[string]string
	if err := json.Unmarshal([]byte(cmd.Val()), &doc); err != nil {
		r.logger.Warn("Variable document corrupt, treating as absent", "key", key, "error", err)
		return nil
	}
	return doc
}

func (r *RedisVarStore) Get(ctx context.Context, sessionID uuid.UUID, scope vars.Scope, character, key string) (string, bool, error) {
	doc := r.readDoc(ctx, varDocKey(sessionID, scope, character))
	if doc == nil {
		return "", false, nil
	}
	value, ok := doc[key]
	return value, ok, nil
}

func (r *RedisVarStore) Set(ctx context.Context, sessionID uuid.UUID, scope vars.Scope, character, key, value string) error {
	dk := varDocKey(sessionID, scope, character)

	doc := r.readDoc(ctx, dk)
	if doc == nil {
		doc = make(map[string]string)
	}
	doc[key] = value

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal variable document: %w", err)
	}

	if err := r.client.Set(ctx, dk, string(data), 0).Err(); err != nil {
		r.logger.Error("Failed to write variable document", "key", dk, "error", err)
		return fmt.Errorf("failed to write variable document: %w", err)
	}
	return nil
}
