package user

import (
	"errors"
	"net/http"

	"todo_app/internal/auth"
	"todo_app/internal/observability"
	"todo_app/internal/utils"
	"todo_app/internal/view"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SessionManager is the part of session.Manager the controller uses.
type SessionManager interface {
	Start(c *gin.Context, userID uuid.UUID, authHash string) (string, error)
	Destroy(c *gin.Context) error
}

type UserController struct {
	userService UserServiceInterface
	sessions    SessionManager
	metrics     *observability.Metrics
}

func NewUserController(userService UserServiceInterface, sessions SessionManager, metrics *observability.Metrics) *UserController {
	return &UserController{
		userService: userService,
		sessions:    sessions,
		metrics:     metrics,
	}
}

// RootPage renders the home page.
func (a *UserController) RootPage(c *gin.Context) {
	c.HTML(http.StatusOK, "root.html", page(c, "Home"))
}

// RegisterPage renders the registration form.
func (a *UserController) RegisterPage(c *gin.Context) {
	if _, err := auth.CurrentPrincipal(c); err == nil {
		c.Redirect(http.StatusSeeOther, "/todo")
		return
	}
	c.HTML(http.StatusOK, "register.html", page(c, "Register"))
}

// LoginPage renders the login form.
func (a *UserController) LoginPage(c *gin.Context) {
	if _, err := auth.CurrentPrincipal(c); err == nil {
		c.Redirect(http.StatusSeeOther, utils.SafeNext(c.Query("next"), "/todo"))
		return
	}
	p := page(c, "Log in")
	p.Next = utils.SafeNext(c.Query("next"), "")
	c.HTML(http.StatusOK, "login.html", p)
}

// Register handles user registration
func (a *UserController) Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBind(&input); err != nil {
		a.metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		a.renderRegister(c, http.StatusBadRequest, input, "Invalid request")
		return
	}

	user, err := a.userService.Register(c.Request.Context(), input)
	if err != nil {
		var validationErr *ValidationError
		switch {
		case errors.As(err, &validationErr):
			a.metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
			a.renderRegister(c, http.StatusBadRequest, input, validationErr.Field+": "+validationErr.Error())
		case errors.Is(err, ErrUsernameTaken):
			a.metrics.RegistrationsTotal.WithLabelValues("conflict").Inc()
			a.renderRegister(c, http.StatusConflict, input, "Username is already taken")
		case errors.Is(err, ErrEmailTaken):
			a.metrics.RegistrationsTotal.WithLabelValues("conflict").Inc()
			a.renderRegister(c, http.StatusConflict, input, "Email is already registered")
		default:
			a.metrics.RegistrationsTotal.WithLabelValues("error").Inc()
			logrus.WithError(err).Error("Failed to register user")
			a.renderRegister(c, http.StatusInternalServerError, input, "Failed to create user")
		}
		return
	}

	a.metrics.RegistrationsTotal.WithLabelValues("success").Inc()
	logrus.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("User registered")

	utils.Redirect(c, http.StatusCreated, "/login")
}

// Login checks the credentials and starts a fresh session.
func (a *UserController) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBind(&input); err != nil {
		a.metrics.AuthAttemptsTotal.WithLabelValues("invalid").Inc()
		a.renderLogin(c, http.StatusBadRequest, input, "Invalid request")
		return
	}

	user, err := a.userService.Authenticate(c.Request.Context(), input.Username, input.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			a.metrics.AuthAttemptsTotal.WithLabelValues("invalid").Inc()
			a.renderLogin(c, http.StatusUnauthorized, input, "Invalid credentials")
			return
		}
		a.metrics.AuthAttemptsTotal.WithLabelValues("error").Inc()
		logrus.WithError(err).Error("Failed to authenticate user")
		a.renderLogin(c, http.StatusInternalServerError, input, "Login failed, please try again")
		return
	}

	if _, err := a.sessions.Start(c, user.ID, auth.Fingerprint(user.PasswordHash)); err != nil {
		a.metrics.AuthAttemptsTotal.WithLabelValues("error").Inc()
		logrus.WithError(err).WithField("user_id", user.ID).Error("Failed to start session")
		a.renderLogin(c, http.StatusInternalServerError, input, "Login failed, please try again")
		return
	}

	a.metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
	logrus.WithField("user_id", user.ID).Info("User logged in")

	utils.Redirect(c, http.StatusOK, utils.SafeNext(input.Next, "/todo"))
}

// Logout destroys the session and clears the cookie.
func (a *UserController) Logout(c *gin.Context) {
	if err := a.sessions.Destroy(c); err != nil {
		logrus.WithError(err).Error("Failed to destroy session")
	}
	utils.Redirect(c, http.StatusOK, "/login")
}

// GetCurrentUser returns the logged-in user as JSON.
func (a *UserController) GetCurrentUser(c *gin.Context) {
	principal, err := auth.CurrentPrincipal(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	user, err := a.userService.GetUserByID(c.Request.Context(), principal.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		logrus.WithError(err).Error("Failed to load user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// UpdateUser changes the email and/or password. A password change rotates
// the current session and queues a purge of every other one.
func (a *UserController) UpdateUser(c *gin.Context) {
	principal, err := auth.CurrentPrincipal(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var input UpdateInput
	if err := c.ShouldBind(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ctx := c.Request.Context()
	res, err := a.userService.UpdateAccount(ctx, principal.UserID, input)
	if err != nil {
		a.accountError(c, err)
		return
	}

	if res.EmailChanged {
		a.metrics.AccountChangesTotal.WithLabelValues("email").Inc()
	}
	if res.PasswordChanged {
		a.metrics.AccountChangesTotal.WithLabelValues("password").Inc()

		sid, err := a.sessions.Start(c, res.User.ID, auth.Fingerprint(res.User.PasswordHash))
		if err != nil {
			// the old session no longer matches the password hash
			logrus.WithError(err).WithField("user_id", res.User.ID).Error("Failed to rotate session")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Password changed, please log in again"})
			return
		}
		a.userService.PublishPasswordChanged(ctx, res.User.ID, sid)
	}

	logrus.WithFields(logrus.Fields{
		"user_id":          res.User.ID,
		"email_changed":    res.EmailChanged,
		"password_changed": res.PasswordChanged,
	}).Info("User account updated")

	c.JSON(http.StatusOK, res.User)
}

// DeleteUser removes the account and its todos, then ends the session.
func (a *UserController) DeleteUser(c *gin.Context) {
	principal, err := auth.CurrentPrincipal(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var input DeleteInput
	if err := c.ShouldBind(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := a.userService.DeleteUser(c.Request.Context(), principal.UserID, input.CurrentPassword); err != nil {
		a.accountError(c, err)
		return
	}

	a.metrics.AccountChangesTotal.WithLabelValues("delete").Inc()
	if err := a.sessions.Destroy(c); err != nil {
		logrus.WithError(err).Error("Failed to destroy session of deleted user")
	}

	logrus.WithField("user_id", principal.UserID).Info("User deleted")
	utils.Redirect(c, http.StatusOK, "/")
}

func (a *UserController) accountError(c *gin.Context, err error) {
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Field + ": " + validationErr.Error()})
	case errors.Is(err, ErrNothingToUpdate):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
	case errors.Is(err, ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
	case errors.Is(err, ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "Email is already registered"})
	case errors.Is(err, ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	default:
		logrus.WithError(err).Error("Failed to change account")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to change account"})
	}
}

func (a *UserController) renderRegister(c *gin.Context, status int, input RegisterInput, message string) {
	p := page(c, "Register")
	p.Error = message
	p.Username = input.Username
	p.Email = input.Email
	c.HTML(status, "register.html", p)
}

func (a *UserController) renderLogin(c *gin.Context, status int, input LoginInput, message string) {
	p := page(c, "Log in")
	p.Error = message
	p.Username = input.Username
	p.Next = utils.SafeNext(input.Next, "")
	c.HTML(status, "login.html", p)
}

func page(c *gin.Context, title string) view.Page {
	p := view.Page{Title: title}
	if principal, err := auth.CurrentPrincipal(c); err == nil {
		p.User = principal
	}
	return p
}
