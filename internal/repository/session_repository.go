package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/practicum-api/internal/models"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
)

const (
	sessionKeyPrefix     = "session:"
	userSessionKeyPrefix = "user_sessions:"
)

// SessionRepository stores login sessions in Redis. Each user keeps an index
// set of session ids so every session can be revoked at once.
type SessionRepository struct {
	client *redis.Client
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(client *redis.Client) *SessionRepository {
	return &SessionRepository{client: client}
}

// Save writes the session with a TTL matching its absolute expiry.
func (r *SessionRepository) Save(ctx context.Context, session *models.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("save session %s: already expired", session.ID)
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	indexKey := userSessionKeyPrefix + session.UserID
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+session.ID, payload, ttl)
	pipe.SAdd(ctx, indexKey, session.ID)
	pipe.Expire(ctx, indexKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Get loads a session; a missing key yields ErrCacheMiss.
func (r *SessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	raw, err := r.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

// Delete removes one session.
func (r *SessionRepository) Delete(ctx context.Context, session *models.Session) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, sessionKeyPrefix+session.ID)
	pipe.SRem(ctx, userSessionKeyPrefix+session.UserID, session.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteForUser revokes every session of a user, optionally keeping one.
func (r *SessionRepository) DeleteForUser(ctx context.Context, userID, keepID string) error {
	indexKey := userSessionKeyPrefix + userID
	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return fmt.Errorf("list user sessions: %w", err)
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == keepID {
			continue
		}
		keys = append(keys, sessionKeyPrefix+id)
	}
	if len(keys) == 0 {
		return nil
	}
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, keys...)
	for _, id := range ids {
		if id != keepID {
			pipe.SRem(ctx, indexKey, id)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

// DeleteAllExceptUser revokes the sessions of every user other than userID.
func (r *SessionRepository) DeleteAllExceptUser(ctx context.Context, userID string) error {
	keep := userSessionKeyPrefix + userID
	iter := r.client.Scan(ctx, 0, userSessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		indexKey := iter.Val()
		if indexKey == keep {
			continue
		}
		ids, err := r.client.SMembers(ctx, indexKey).Result()
		if err != nil {
			return fmt.Errorf("list sessions of %s: %w", indexKey, err)
		}
		keys := make([]string, 0, len(ids)+1)
		for _, id := range ids {
			keys = append(keys, sessionKeyPrefix+id)
		}
		keys = append(keys, indexKey)
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("delete sessions of %s: %w", indexKey, err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan user sessions: %w", err)
	}
	return nil
}
