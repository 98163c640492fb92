package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"todo_app/internal/auth"
	"todo_app/internal/cache"
	"todo_app/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var ErrNoSession = errors.New("no valid session")

// Store is the persistence the manager needs. *cache.SessionStore implements it.
type Store interface {
	Save(ctx context.Context, sess *cache.Session) error
	Get(ctx context.Context, sessionID string) (*cache.Session, error)
	Delete(ctx context.Context, sessionID string, userID uuid.UUID) error
	DeleteAllForUser(ctx context.Context, userID uuid.UUID, except ...string) (int, error)
}

type Options struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
	Secret     []byte
}

// Manager issues, reads and destroys cookie-backed sessions.
type Manager struct {
	store   Store
	opts    Options
	metrics *observability.Metrics
}

func NewManager(store Store, opts Options, metrics *observability.Metrics) *Manager {
	return &Manager{store: store, opts: opts, metrics: metrics}
}

func (m *Manager) CookieName() string {
	return m.opts.CookieName
}

// Start destroys any session the request already carries, then issues a
// fresh session ID for userID and sets the signed cookie.
func (m *Manager) Start(c *gin.Context, userID uuid.UUID, authHash string) (string, error) {
	if err := m.destroy(c, "rotate", false); err != nil {
		logrus.WithError(err).Warn("Failed to destroy previous session")
	}

	sess := &cache.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		AuthHash:  authHash,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.Save(c.Request.Context(), sess); err != nil {
		return "", err
	}

	token, err := auth.SignSessionToken(sess.ID, m.opts.TTL, m.opts.Secret)
	if err != nil {
		_ = m.store.Delete(c.Request.Context(), sess.ID, userID)
		return "", fmt.Errorf("sign session cookie: %w", err)
	}

	m.setCookie(c, token, int(m.opts.TTL.Seconds()))
	m.metrics.SessionsCreated.Inc()

	return sess.ID, nil
}

// Load returns the session referenced by the request cookie. Anything that
// makes the cookie unusable yields ErrNoSession; store failures are returned
// as they are.
func (m *Manager) Load(c *gin.Context) (*cache.Session, error) {
	sid, err := m.CurrentID(c)
	if err != nil {
		return nil, err
	}

	sess, err := m.store.Get(c.Request.Context(), sid)
	if errors.Is(err, cache.ErrSessionNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// CurrentID returns the session ID carried by a valid cookie.
func (m *Manager) CurrentID(c *gin.Context) (string, error) {
	cookie, err := c.Cookie(m.opts.CookieName)
	if err != nil || cookie == "" {
		return "", ErrNoSession
	}

	sid, err := auth.ParseSessionToken(cookie, m.opts.Secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	return sid, nil
}

// Destroy removes the request's session from the store and expires the cookie.
func (m *Manager) Destroy(c *gin.Context) error {
	return m.destroy(c, "logout", true)
}

// Discard is Destroy for sessions found to be stale by the auth middleware.
func (m *Manager) Discard(c *gin.Context) error {
	return m.destroy(c, "stale", true)
}

func (m *Manager) destroy(c *gin.Context, reason string, expire bool) error {
	if expire {
		if _, present := m.rawCookie(c); present {
			m.clearCookie(c)
		}
	}

	sess, err := m.Load(c)
	if errors.Is(err, ErrNoSession) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := m.store.Delete(c.Request.Context(), sess.ID, sess.UserID); err != nil {
		return err
	}
	m.metrics.SessionsRevoked.WithLabelValues(reason).Inc()
	return nil
}

// RevokeAll deletes every session of userID except the listed IDs.
func (m *Manager) RevokeAll(ctx context.Context, userID uuid.UUID, except ...string) (int, error) {
	n, err := m.store.DeleteAllForUser(ctx, userID, except...)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.metrics.SessionsRevoked.WithLabelValues("purge").Add(float64(n))
	}
	return n, nil
}

func (m *Manager) rawCookie(c *gin.Context) (string, bool) {
	v, err := c.Cookie(m.opts.CookieName)
	return v, err == nil
}

func (m *Manager) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.opts.CookieName, value, maxAge, "/", "", m.opts.Secure, true)
}

func (m *Manager) clearCookie(c *gin.Context) {
	m.setCookie(c, "", -1)
}
