package handler

import (
	"database/sql"
	"fmt"
	"net/http"

	"todo_app/internal/cache"
	"todo_app/internal/config"
	"todo_app/internal/middleware"
	"todo_app/internal/observability"
	"todo_app/internal/queue"
	"todo_app/internal/session"
	"todo_app/internal/todo"
	"todo_app/internal/user"
	"todo_app/internal/view"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupHandler initializes all dependencies and routes
func SetupHandler(
	db *sql.DB,
	redisClient *redis.Client,
	publisher queue.Publisher,
	cfg *config.Config,
	metrics *observability.Metrics,
	gatherer prometheus.Gatherer,
) (*gin.Engine, error) {
	r := gin.Default()

	// ClientIP keys the rate limiter, so forwarded headers are not trusted
	if err := r.SetTrustedProxies(nil); err != nil {
		return nil, fmt.Errorf("set trusted proxies: %w", err)
	}
	if err := view.Install(r); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	r.Use(middleware.PrometheusMiddleware(metrics))

	// Initialize repositories
	userRepo := user.NewUserRepository()
	todoRepo := todo.NewTodoRepository()

	// Initialize services
	userService := user.NewUserService(userRepo, db, publisher)
	todoService := todo.NewTodoService(todoRepo, db)

	sessions := session.NewManager(
		cache.NewSessionStore(redisClient, cfg.Session.TTL),
		session.Options{
			CookieName: cfg.Session.CookieName,
			TTL:        cfg.Session.TTL,
			Secure:     cfg.IsProduction(),
			Secret:     []byte(cfg.Session.HMACKey),
		},
		metrics,
	)

	// Initialize controllers
	userController := user.NewUserController(userService, sessions, metrics)
	todoController := todo.NewTodoController(todoService, metrics)

	throttle := middleware.RateLimiterMiddleware(redisClient, middleware.NewRateLimiterConfig(cfg.RateLimit), metrics)

	r.GET("/health_check", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	app := r.Group("/", middleware.LoadUser(sessions, userService))
	setupRoutes(app, userController, todoController, throttle)

	r.NoRoute(middleware.LoadUser(sessions, userService), func(c *gin.Context) {
		view.RenderError(c, http.StatusNotFound, "Page not found")
	})

	return r, nil
}

// setupRoutes configures all application routes
func setupRoutes(app *gin.RouterGroup, userCtrl *user.UserController, todoCtrl *todo.TodoController, throttle gin.HandlerFunc) {
	// Public pages
	app.GET("/", userCtrl.RootPage)
	app.GET("/register", userCtrl.RegisterPage)
	app.GET("/login", userCtrl.LoginPage)
	app.GET("/logout", userCtrl.Logout)
	app.POST("/logout", userCtrl.Logout)

	// Credential endpoints, throttled per client IP
	app.POST("/api/register", throttle, userCtrl.Register)
	app.POST("/api/login", throttle, userCtrl.Login)

	protected := app.Group("/", middleware.RequireAuth())
	{
		todoCtrl.SetupRoutes(protected)

		protected.GET("/api/user", userCtrl.GetCurrentUser)
		protected.PUT("/api/user", userCtrl.UpdateUser)
		protected.DELETE("/api/user", userCtrl.DeleteUser)
	}
}
