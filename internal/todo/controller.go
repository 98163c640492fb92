package todo

import (
	"errors"
	"net/http"
	"strconv"

	"todo_app/internal/auth"
	"todo_app/internal/observability"
	"todo_app/internal/utils"
	"todo_app/internal/view"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type TodoController struct {
	todoService TodoServiceInterface
	metrics     *observability.Metrics
}

func NewTodoController(todoService TodoServiceInterface, metrics *observability.Metrics) *TodoController {
	return &TodoController{
		todoService: todoService,
		metrics:     metrics,
	}
}

// SetupRoutes mounts the todo routes on a group that already requires a login.
func (t *TodoController) SetupRoutes(r gin.IRoutes) {
	r.GET("/todo", t.ListTodos)
	r.POST("/todo", t.CreateTodo)
	r.PUT("/todo/:id", t.UpdateTodo)
	r.POST("/todo/:id/toggle", t.ToggleTodo)
	r.DELETE("/todo/:id", t.DeleteTodo)
	r.POST("/todo/:id/delete", t.DeleteTodo)
}

// ListTodos renders the user's todos, newest first.
func (t *TodoController) ListTodos(c *gin.Context) {
	principal, ok := t.principal(c)
	if !ok {
		return
	}
	t.renderList(c, http.StatusOK, principal, "", "")
}

// CreateTodo adds a todo from the todo_content form field.
func (t *TodoController) CreateTodo(c *gin.Context) {
	principal, ok := t.principal(c)
	if !ok {
		return
	}

	content := c.PostForm("todo_content")
	todo, err := t.todoService.Create(c.Request.Context(), principal.UserID, content)
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			t.renderList(c, http.StatusBadRequest, principal, validationErr.Error(), content)
			return
		}
		logrus.WithError(err).WithField("user_id", principal.UserID).Error("Failed to create todo")
		view.RenderError(c, http.StatusInternalServerError, "Failed to create todo")
		return
	}

	t.metrics.TodoMutationsTotal.WithLabelValues("create").Inc()
	logrus.WithFields(logrus.Fields{
		"todo_id": todo.ID,
		"user_id": principal.UserID,
	}).Info("Todo created")

	utils.Redirect(c, http.StatusCreated, "/todo")
}

// UpdateTodo sets the completion flag from the is_completed form field.
func (t *TodoController) UpdateTodo(c *gin.Context) {
	principal, ok := t.principal(c)
	if !ok {
		return
	}
	id, ok := todoID(c)
	if !ok {
		return
	}

	completed, err := strconv.ParseBool(c.PostForm("is_completed"))
	if err != nil {
		view.RenderError(c, http.StatusBadRequest, "is_completed must be true or false")
		return
	}

	if err := t.todoService.SetCompleted(c.Request.Context(), principal.UserID, id, completed); err != nil {
		t.mutationError(c, err, id)
		return
	}

	t.metrics.TodoMutationsTotal.WithLabelValues("complete").Inc()
	utils.Redirect(c, http.StatusOK, "/todo")
}

// ToggleTodo flips the completion flag; plain HTML forms cannot send PUT.
func (t *TodoController) ToggleTodo(c *gin.Context) {
	principal, ok := t.principal(c)
	if !ok {
		return
	}
	id, ok := todoID(c)
	if !ok {
		return
	}

	if _, err := t.todoService.Toggle(c.Request.Context(), principal.UserID, id); err != nil {
		t.mutationError(c, err, id)
		return
	}

	t.metrics.TodoMutationsTotal.WithLabelValues("complete").Inc()
	utils.Redirect(c, http.StatusOK, "/todo")
}

// DeleteTodo removes a todo owned by the current user.
func (t *TodoController) DeleteTodo(c *gin.Context) {
	principal, ok := t.principal(c)
	if !ok {
		return
	}
	id, ok := todoID(c)
	if !ok {
		return
	}

	if err := t.todoService.Delete(c.Request.Context(), principal.UserID, id); err != nil {
		t.mutationError(c, err, id)
		return
	}

	t.metrics.TodoMutationsTotal.WithLabelValues("delete").Inc()
	logrus.WithFields(logrus.Fields{
		"todo_id": id,
		"user_id": principal.UserID,
	}).Info("Todo deleted")

	utils.Redirect(c, http.StatusOK, "/todo")
}

func (t *TodoController) renderList(c *gin.Context, status int, principal *auth.Principal, message, content string) {
	todos, err := t.todoService.List(c.Request.Context(), principal.UserID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", principal.UserID).Error("Failed to list todos")
		view.RenderError(c, http.StatusInternalServerError, "Failed to load todos")
		return
	}

	c.HTML(status, "todos.html", view.Page{
		Title:   "My todos",
		User:    principal,
		Error:   message,
		Content: content,
		Todos:   todos,
	})
}

func (t *TodoController) mutationError(c *gin.Context, err error, id uuid.UUID) {
	if errors.Is(err, ErrTodoNotFound) {
		view.RenderError(c, http.StatusNotFound, "Todo not found")
		return
	}
	logrus.WithError(err).WithField("todo_id", id).Error("Failed to change todo")
	view.RenderError(c, http.StatusInternalServerError, "Failed to change todo")
}

func (t *TodoController) principal(c *gin.Context) (*auth.Principal, bool) {
	principal, err := auth.CurrentPrincipal(c)
	if err != nil {
		view.RenderError(c, http.StatusUnauthorized, "Authentication required")
		return nil, false
	}
	return principal, true
}

// todoID parses the :id path parameter. A malformed ID cannot name an
// existing todo, so it is reported as not found.
func todoID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		view.RenderError(c, http.StatusNotFound, "Todo not found")
		return uuid.Nil, false
	}
	return id, true
}
