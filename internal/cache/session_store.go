package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

// Session is the server-side state behind a session cookie.
type Session struct {
	ID        string    `json:"-"`
	UserID    uuid.UUID `json:"user_id"`
	AuthHash  string    `json:"auth_hash"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

// Save writes the session with the store TTL and indexes it under its user.
func (s *SessionStore) Save(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		return errors.New("session id is empty")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	userKey := UserSessionsKey(sess.UserID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, SessionKey(sess.ID), data, s.ttl)
		pipe.SAdd(ctx, userKey, sess.ID)
		pipe.Expire(ctx, userKey, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Get loads a session by ID. A missing or expired key is ErrSessionNotFound.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	val, err := s.client.Get(ctx, SessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(val, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	sess.ID = sessionID
	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string, userID uuid.UUID) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, SessionKey(sessionID))
		pipe.SRem(ctx, UserSessionsKey(userID), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteAllForUser removes every session of a user except the given IDs and
// returns how many were removed.
func (s *SessionStore) DeleteAllForUser(ctx context.Context, userID uuid.UUID, except ...string) (int, error) {
	userKey := UserSessionsKey(userID)
	ids, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, fmt.Errorf("list user sessions: %w", err)
	}

	keep := make(map[string]struct{}, len(except))
	for _, id := range except {
		keep[id] = struct{}{}
	}

	var removed []string
	for _, id := range ids {
		if _, ok := keep[id]; !ok {
			removed = append(removed, id)
		}
	}
	if len(removed) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(removed))
	members := make([]interface{}, 0, len(removed))
	for _, id := range removed {
		keys = append(keys, SessionKey(id))
		members = append(members, id)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.SRem(ctx, userKey, members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("purge user sessions: %w", err)
	}
	return len(removed), nil
}

// Build cache key for single session
func SessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

// Build cache key for the set of a user's sessions
func UserSessionsKey(userID uuid.UUID) string {
	return fmt.Sprintf("sessions:user:%s", userID)
}
