package todo

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

type TodoService struct {
	repo TodoRepositoryInterface
	db   *sql.DB
}

type TodoServiceInterface interface {
	Create(ctx context.Context, userID uuid.UUID, content string) (*Todo, error)
	List(ctx context.Context, userID uuid.UUID) ([]*Todo, error)
	SetCompleted(ctx context.Context, userID, id uuid.UUID, completed bool) error
	Toggle(ctx context.Context, userID, id uuid.UUID) (bool, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

func NewTodoService(repo TodoRepositoryInterface, db *sql.DB) *TodoService {
	return &TodoService{repo: repo, db: db}
}

// Create validates the content and stores a new, incomplete todo.
func (s *TodoService) Create(ctx context.Context, userID uuid.UUID, content string) (*Todo, error) {
	content, err := ParseContent(content)
	if err != nil {
		return nil, err
	}

	todo := &Todo{
		ID:      uuid.New(),
		UserID:  userID,
		Content: content,
	}
	if err := s.repo.Create(ctx, s.db, todo); err != nil {
		return nil, err
	}
	return todo, nil
}

func (s *TodoService) List(ctx context.Context, userID uuid.UUID) ([]*Todo, error) {
	return s.repo.ListByUser(ctx, s.db, userID)
}

func (s *TodoService) SetCompleted(ctx context.Context, userID, id uuid.UUID, completed bool) error {
	return s.repo.SetCompleted(ctx, s.db, id, userID, completed)
}

func (s *TodoService) Toggle(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	return s.repo.Toggle(ctx, s.db, id, userID)
}

func (s *TodoService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.Delete(ctx, s.db, id, userID)
}
