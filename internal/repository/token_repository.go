package repository

import (
	"context"
	"time"

	"github.com/noah-isme/practicum-api/internal/models"
)

const (
	resetTokenKeyPrefix     = "password_reset:"
	resetChallengeKeyPrefix = "reset_challenge:"
)

type resetTokenPayload struct {
	UserID string `json:"userId"`
}

// TokenRepository keeps single-use tokens in Redis on top of CacheRepository.
type TokenRepository struct {
	cache *CacheRepository
}

// NewTokenRepository constructs the repository.
func NewTokenRepository(cache *CacheRepository) *TokenRepository {
	return &TokenRepository{cache: cache}
}

// SavePasswordReset stores a reset token for a user.
func (r *TokenRepository) SavePasswordReset(ctx context.Context, token, userID string, ttl time.Duration) error {
	return r.cache.Set(ctx, resetTokenKeyPrefix+token, resetTokenPayload{UserID: userID}, ttl)
}

// ConsumePasswordReset returns the user bound to token and invalidates it.
func (r *TokenRepository) ConsumePasswordReset(ctx context.Context, token string) (string, error) {
	var payload resetTokenPayload
	if err := r.cache.GetDel(ctx, resetTokenKeyPrefix+token, &payload); err != nil {
		return "", err
	}
	return payload.UserID, nil
}

// SaveResetChallenge stores the database-reset challenge issued to an admin,
// replacing any earlier one.
func (r *TokenRepository) SaveResetChallenge(ctx context.Context, adminID string, challenge models.ResetChallenge, ttl time.Duration) error {
	return r.cache.Set(ctx, resetChallengeKeyPrefix+adminID, challenge, ttl)
}

// ConsumeResetChallenge returns and invalidates the admin's pending challenge.
func (r *TokenRepository) ConsumeResetChallenge(ctx context.Context, adminID string) (*models.ResetChallenge, error) {
	var challenge models.ResetChallenge
	if err := r.cache.GetDel(ctx, resetChallengeKeyPrefix+adminID, &challenge); err != nil {
		return nil, err
	}
	return &challenge, nil
}
