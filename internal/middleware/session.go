package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"todo_app/internal/auth"
	"todo_app/internal/cache"
	"todo_app/internal/session"
	"todo_app/internal/user"
	"todo_app/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SessionLoader is the part of the session manager the middleware needs.
type SessionLoader interface {
	Load(c *gin.Context) (*cache.Session, error)
	Discard(c *gin.Context) error
}

// PrincipalLoader resolves a session's user ID into the request principal.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, userID uuid.UUID) (*auth.Principal, error)
}

// LoadUser attaches the authenticated principal to the context when the
// request carries a valid session. It never rejects a request by itself.
func LoadUser(sessions SessionLoader, users PrincipalLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := sessions.Load(c)
		if err != nil {
			if errors.Is(err, session.ErrNoSession) {
				discard(c, sessions)
			} else {
				logrus.WithError(err).Error("Failed to load session")
			}
			c.Next()
			return
		}

		principal, err := users.LoadPrincipal(c.Request.Context(), sess.UserID)
		if err != nil {
			if errors.Is(err, user.ErrUserNotFound) {
				logrus.WithField("user_id", sess.UserID).Info("Session belongs to a deleted user")
				discard(c, sessions)
			} else {
				logrus.WithError(err).Error("Failed to load session user")
			}
			c.Next()
			return
		}

		// a password change since login invalidates the session
		if !auth.FingerprintsEqual(principal.AuthHash, sess.AuthHash) {
			logrus.WithField("user_id", sess.UserID).Info("Session auth hash no longer matches")
			discard(c, sessions)
			c.Next()
			return
		}

		auth.SetPrincipal(c, principal)
		c.Next()
	}
}

// RequireAuth rejects requests that LoadUser did not authenticate.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := auth.CurrentPrincipal(c); err == nil {
			c.Next()
			return
		}

		switch {
		case utils.IsHTMX(c):
			c.Header("HX-Redirect", "/login")
			c.AbortWithStatus(http.StatusUnauthorized)
		case strings.HasPrefix(c.Request.URL.Path, "/api/"):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		default:
			location := "/login"
			if c.Request.Method == http.MethodGet {
				location += "?next=" + url.QueryEscape(c.Request.URL.RequestURI())
			}
			c.Redirect(http.StatusSeeOther, location)
			c.Abort()
		}
	}
}

func discard(c *gin.Context, sessions SessionLoader) {
	if err := sessions.Discard(c); err != nil {
		logrus.WithError(err).Warn("Failed to discard stale session")
	}
}
