package auth

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const PrincipalKey = "principal"

var ErrPrincipalNotFound = errors.New("principal not found")

// Principal is the authenticated user attached to a request.
type Principal struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	AuthHash string    `json:"-"`
}

// SetPrincipal attaches the authenticated user to the gin context.
func SetPrincipal(c *gin.Context, p *Principal) {
	c.Set(PrincipalKey, p)
}

// CurrentPrincipal extracts the authenticated user from the gin context.
func CurrentPrincipal(c *gin.Context) (*Principal, error) {
	value, exists := c.Get(PrincipalKey)
	if !exists {
		return nil, ErrPrincipalNotFound
	}

	p, ok := value.(*Principal)
	if !ok || p == nil {
		return nil, ErrPrincipalNotFound
	}

	return p, nil
}
