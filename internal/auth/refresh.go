package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/d9705996/marknote/internal/model"
	"gorm.io/gorm"
)

// ErrInvalidRefreshToken covers unknown, revoked and expired refresh tokens.
var ErrInvalidRefreshToken = errors.New("refresh token is invalid or expired")

// RefreshStore manages refresh token persistence via GORM.
type RefreshStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// NewRefreshStore creates a RefreshStore whose tokens live for ttl.
func NewRefreshStore(db *gorm.DB, ttl time.Duration) *RefreshStore {
	return &RefreshStore{db: db, ttl: ttl}
}

// Issue generates a secure random token, stores its SHA-256 hash,
// and returns the plaintext token to the caller (stored nowhere).
func (s *RefreshStore) Issue(ctx context.Context, userID string) (string, error) {
	return s.issue(s.db.WithContext(ctx), userID)
}

func (s *RefreshStore) issue(tx *gorm.DB, userID string) (string, error) {
	raw, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	rt := &model.RefreshToken{
		UserID:    userID,
		TokenHash: hashToken(raw),
		ExpiresAt: time.Now().UTC().Add(s.ttl),
	}
	if err := tx.Create(rt).Error; err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return raw, nil
}

// Rotate validates the given token, revokes it, and issues a new one.
// Returns the new refresh token and the user ID.
func (s *RefreshStore) Rotate(ctx context.Context, rawToken string) (token string, userID string, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rt model.RefreshToken
		if err := tx.Where("token_hash = ?", hashToken(rawToken)).First(&rt).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidRefreshToken
			}
			return fmt.Errorf("find refresh token: %w", err)
		}
		now := time.Now().UTC()
		if rt.RevokedAt != nil || now.After(rt.ExpiresAt) {
			return ErrInvalidRefreshToken
		}

		// Revoke only if nobody else rotated it first.
		res := tx.Model(&model.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", rt.ID).
			Update("revoked_at", now)
		if res.Error != nil {
			return fmt.Errorf("revoke old refresh token: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrInvalidRefreshToken
		}

		next, err := s.issue(tx, rt.UserID)
		if err != nil {
			return err
		}
		token, userID = next, rt.UserID
		return nil
	})
	if err != nil {
		return "", "", err
	}
	return token, userID, nil
}

// Revoke marks the given token as revoked.
func (s *RefreshStore) Revoke(ctx context.Context, rawToken string) error {
	return s.db.WithContext(ctx).
		Model(&model.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hashToken(rawToken)).
		Update("revoked_at", time.Now().UTC()).Error
}

// RevokeAll revokes every live refresh token of userID.
func (s *RefreshStore) RevokeAll(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).
		Model(&model.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", time.Now().UTC()).Error
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
