package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sbilibin2017/gw-book-platform/internal/logger"
	"github.com/sbilibin2017/gw-book-platform/internal/models"
)

// SessionRepository keeps session records and their flash messages in Redis
type SessionRepository struct {
	client *redis.Client
}

// NewSessionRepository creates a new repository instance
func NewSessionRepository(client *redis.Client) *SessionRepository {
	return &SessionRepository{client: client}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

func flashKey(sessionID string) string {
	return fmt.Sprintf("session:%s:flash", sessionID)
}

// Save stores a session record that expires after ttl.
func (r *SessionRepository) Save(ctx context.Context, sess *models.Session, ttl time.Duration) error {
	key := sessionKey(sess.SessionID)

	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	err = r.client.Set(ctx, key, data, ttl).Err()

	logger.Log.Debugw("redis set",
		"key", key,
		"user_id", sess.UserID,
		"ttl", ttl,
		"error", err,
	)

	return err
}

// Get loads a session record. A missing or expired record yields nil, nil.
func (r *SessionRepository) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	key := sessionKey(sessionID)

	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		logger.Log.Debugw("redis get",
			"key", key,
			"error", err,
		)
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var sess models.Session
	if err := json.Unmarshal(val, &sess); err != nil {
		logger.Log.Warnw("corrupt session record", "key", key, "error", err)
		return nil, nil
	}

	logger.Log.Debugw("redis get",
		"key", key,
		"user_id", sess.UserID,
		"error", nil,
	)

	return &sess, nil
}

// Delete removes a session record together with its pending flash.
func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	err := r.client.Del(ctx, sessionKey(sessionID), flashKey(sessionID)).Err()

	logger.Log.Debugw("redis del",
		"key", sessionKey(sessionID),
		"error", err,
	)

	return err
}

// SetFlash replaces the pending flash of a session.
func (r *SessionRepository) SetFlash(ctx context.Context, sessionID string, flash models.Flash, ttl time.Duration) error {
	key := flashKey(sessionID)

	data, err := json.Marshal(flash)
	if err != nil {
		return err
	}
	err = r.client.Set(ctx, key, data, ttl).Err()

	logger.Log.Debugw("redis set",
		"key", key,
		"kind", flash.Kind,
		"error", err,
	)

	return err
}

// PopFlash reads and clears the pending flash in one GETDEL.
// Returns nil, nil when there is nothing pending.
func (r *SessionRepository) PopFlash(ctx context.Context, sessionID string) (*models.Flash, error) {
	key := flashKey(sessionID)

	val, err := r.client.GetDel(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		logger.Log.Debugw("redis getdel",
			"key", key,
			"error", err,
		)
		return nil, err
	}

	var flash models.Flash
	if err := json.Unmarshal(val, &flash); err != nil {
		return nil, err
	}
	return &flash, nil
}
