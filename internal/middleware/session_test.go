package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"todo_app/internal/auth"
	"todo_app/internal/cache"
	"todo_app/internal/session"
	"todo_app/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockSessions struct {
	mock.Mock
}

func (m *MockSessions) Load(c *gin.Context) (*cache.Session, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cache.Session), args.Error(1)
}

func (m *MockSessions) Discard(c *gin.Context) error {
	return m.Called().Error(0)
}

type MockPrincipals struct {
	mock.Mock
}

func (m *MockPrincipals) LoadPrincipal(ctx context.Context, userID uuid.UUID) (*auth.Principal, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Principal), args.Error(1)
}

// setupAuthRouter exposes the principal seen by handlers on /whoami and a protected /todo.
func setupAuthRouter(sessions SessionLoader, users PrincipalLoader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(LoadUser(sessions, users))

	router.GET("/whoami", func(c *gin.Context) {
		p, err := auth.CurrentPrincipal(c)
		if err != nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, p.Username)
	})

	protected := router.Group("/", RequireAuth())
	protected.GET("/todo", func(c *gin.Context) { c.String(http.StatusOK, "todos") })
	protected.POST("/todo", func(c *gin.Context) { c.String(http.StatusCreated, "created") })
	protected.GET("/api/user", func(c *gin.Context) { c.String(http.StatusOK, "me") })

	return router
}

func serve(router *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestLoadUser_ValidSession(t *testing.T) {
	sessions := new(MockSessions)
	users := new(MockPrincipals)
	userID := uuid.New()

	sessions.On("Load").Return(&cache.Session{ID: "sid-1", UserID: userID, AuthHash: "fp"}, nil)
	users.On("LoadPrincipal", userID).Return(&auth.Principal{UserID: userID, Username: "alice", AuthHash: "fp"}, nil)

	w := serve(setupAuthRouter(sessions, users), http.MethodGet, "/whoami", nil)

	assert.Equal(t, "alice", w.Body.String())
	sessions.AssertNotCalled(t, "Discard")
}

func TestLoadUser_NoSession(t *testing.T) {
	sessions := new(MockSessions)
	users := new(MockPrincipals)

	sessions.On("Load").Return(nil, session.ErrNoSession)
	sessions.On("Discard").Return(nil)

	w := serve(setupAuthRouter(sessions, users), http.MethodGet, "/whoami", nil)

	assert.Equal(t, "anonymous", w.Body.String())
	users.AssertNotCalled(t, "LoadPrincipal", mock.Anything)
	sessions.AssertCalled(t, "Discard")
}

func TestLoadUser_StoreErrorIsAnonymous(t *testing.T) {
	sessions := new(MockSessions)
	users := new(MockPrincipals)

	sessions.On("Load").Return(nil, errors.New("redis down"))

	w := serve(setupAuthRouter(sessions, users), http.MethodGet, "/whoami", nil)

	assert.Equal(t, "anonymous", w.Body.String())
	sessions.AssertNotCalled(t, "Discard")
}

func TestLoadUser_DeletedUser(t *testing.T) {
	sessions := new(MockSessions)
	users := new(MockPrincipals)
	userID := uuid.New()

	sessions.On("Load").Return(&cache.Session{ID: "sid-1", UserID: userID, AuthHash: "fp"}, nil)
	sessions.On("Discard").Return(nil)
	users.On("LoadPrincipal", userID).Return(nil, user.ErrUserNotFound)

	w := serve(setupAuthRouter(sessions, users), http.MethodGet, "/whoami", nil)

	assert.Equal(t, "anonymous", w.Body.String())
	sessions.AssertCalled(t, "Discard")
}

func TestLoadUser_PasswordChangedSinceLogin(t *testing.T) {
	sessions := new(MockSessions)
	users := new(MockPrincipals)
	userID := uuid.New()

	sessions.On("Load").Return(&cache.Session{ID: "sid-1", UserID: userID, AuthHash: "old"}, nil)
	sessions.On("Discard").Return(nil)
	users.On("LoadPrincipal", userID).Return(&auth.Principal{UserID: userID, Username: "alice", AuthHash: "new"}, nil)

	w := serve(setupAuthRouter(sessions, users), http.MethodGet, "/whoami", nil)

	assert.Equal(t, "anonymous", w.Body.String())
	sessions.AssertCalled(t, "Discard")
}

func TestRequireAuth_Unauthenticated(t *testing.T) {
	sessions := new(MockSessions)
	sessions.On("Load").Return(nil, session.ErrNoSession)
	sessions.On("Discard").Return(nil)
	router := setupAuthRouter(sessions, new(MockPrincipals))

	t.Run("browser get redirects with next", func(t *testing.T) {
		w := serve(router, http.MethodGet, "/todo?page=2", nil)
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/login?next=%2Ftodo%3Fpage%3D2", w.Header().Get("Location"))
	})

	t.Run("browser post redirects to login", func(t *testing.T) {
		w := serve(router, http.MethodPost, "/todo", nil)
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
	})

	t.Run("htmx", func(t *testing.T) {
		w := serve(router, http.MethodPost, "/todo", map[string]string{"HX-Request": "true"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "/login", w.Header().Get("HX-Redirect"))
	})

	t.Run("api", func(t *testing.T) {
		w := serve(router, http.MethodGet, "/api/user", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"Authentication required"}`, w.Body.String())
	})
}

func TestRequireAuth_Authenticated(t *testing.T) {
	sessions := new(MockSessions)
	users := new(MockPrincipals)
	userID := uuid.New()

	sessions.On("Load").Return(&cache.Session{ID: "sid-1", UserID: userID, AuthHash: "fp"}, nil)
	users.On("LoadPrincipal", userID).Return(&auth.Principal{UserID: userID, Username: "alice", AuthHash: "fp"}, nil)

	w := serve(setupAuthRouter(sessions, users), http.MethodGet, "/todo", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "todos", w.Body.String())
}
