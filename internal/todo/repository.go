package todo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"todo_app/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const queryTimeout = 5 * time.Second

var ErrTodoNotFound = errors.New("todo not found")

type TodoRepository struct{}

// Every query is scoped by user_id so a user can only touch their own todos.
type TodoRepositoryInterface interface {
	Create(ctx context.Context, q utils.DBTX, todo *Todo) error
	ListByUser(ctx context.Context, q utils.DBTX, userID uuid.UUID) ([]*Todo, error)
	SetCompleted(ctx context.Context, q utils.DBTX, id, userID uuid.UUID, completed bool) error
	Toggle(ctx context.Context, q utils.DBTX, id, userID uuid.UUID) (bool, error)
	Delete(ctx context.Context, q utils.DBTX, id, userID uuid.UUID) error
}

func NewTodoRepository() TodoRepositoryInterface {
	return &TodoRepository{}
}

func (r *TodoRepository) Create(ctx context.Context, q utils.DBTX, todo *Todo) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO todo (todo_id, user_id, todo_content)
		VALUES ($1, $2, $3)
		RETURNING is_completed, created_at, updated_at
	`

	err := q.QueryRowContext(ctx, query, todo.ID, todo.UserID, todo.Content).
		Scan(&todo.IsCompleted, &todo.CreatedAt, &todo.UpdatedAt)
	if err != nil {
		logrus.WithError(err).Error("Failed to create todo")
		return err
	}

	logrus.WithFields(logrus.Fields{
		"todo_id": todo.ID,
		"user_id": todo.UserID,
	}).Debug("Todo created")
	return nil
}

// ListByUser returns the user's todos, newest first.
func (r *TodoRepository) ListByUser(ctx context.Context, q utils.DBTX, userID uuid.UUID) ([]*Todo, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT todo_id, user_id, todo_content, is_completed, created_at, updated_at
		FROM todo
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		logrus.WithError(err).Error("Failed to list todos")
		return nil, err
	}
	defer rows.Close()

	todos := make([]*Todo, 0)
	for rows.Next() {
		var t Todo
		if err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.Content,
			&t.IsCompleted,
			&t.CreatedAt,
			&t.UpdatedAt,
		); err != nil {
			return nil, err
		}
		todos = append(todos, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return todos, nil
}

func (r *TodoRepository) SetCompleted(ctx context.Context, q utils.DBTX, id, userID uuid.UUID, completed bool) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		UPDATE todo
		SET is_completed = $1
		WHERE todo_id = $2 AND user_id = $3
	`

	result, err := q.ExecContext(ctx, query, completed, id, userID)
	if err != nil {
		logrus.WithError(err).Error("Failed to update todo")
		return err
	}
	return requireOneRow(result)
}

// Toggle flips the completion flag and returns the new value.
func (r *TodoRepository) Toggle(ctx context.Context, q utils.DBTX, id, userID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		UPDATE todo
		SET is_completed = NOT is_completed
		WHERE todo_id = $1 AND user_id = $2
		RETURNING is_completed
	`

	var completed bool
	err := q.QueryRowContext(ctx, query, id, userID).Scan(&completed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrTodoNotFound
		}
		logrus.WithError(err).Error("Failed to toggle todo")
		return false, err
	}
	return completed, nil
}

func (r *TodoRepository) Delete(ctx context.Context, q utils.DBTX, id, userID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := q.ExecContext(ctx, `DELETE FROM todo WHERE todo_id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		logrus.WithError(err).Error("Failed to delete todo")
		return err
	}
	return requireOneRow(result)
}

func requireOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrTodoNotFound
	}
	return nil
}
