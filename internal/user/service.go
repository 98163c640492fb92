package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"todo_app/internal/auth"
	"todo_app/internal/queue"
	"todo_app/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNothingToUpdate    = errors.New("nothing to update")
)

type UserService struct {
	repo      UserRepositoryInterface
	db        *sql.DB
	publisher queue.Publisher
}

type UserServiceInterface interface {
	Register(ctx context.Context, input RegisterInput) (*User, error)
	Authenticate(ctx context.Context, username, password string) (*User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	LoadPrincipal(ctx context.Context, id uuid.UUID) (*auth.Principal, error)
	UpdateAccount(ctx context.Context, id uuid.UUID, input UpdateInput) (*UpdateResult, error)
	DeleteUser(ctx context.Context, id uuid.UUID, currentPassword string) error
	PublishPasswordChanged(ctx context.Context, id uuid.UUID, keepSessionID string)
}

func NewUserService(repo UserRepositoryInterface, db *sql.DB, publisher queue.Publisher) *UserService {
	return &UserService{
		repo:      repo,
		db:        db,
		publisher: publisher,
	}
}

// Register validates the input and creates the user and its credential in
// one transaction.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*User, error) {
	input, err := input.Validate()
	if err != nil {
		return nil, err
	}

	taken, err := s.repo.UsernameExists(ctx, s.db, input.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	taken, err = s.repo.EmailExists(ctx, s.db, input.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	hash, err := auth.GeneratePasswordHash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		ID:           uuid.New(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
	}

	err = utils.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.repo.Create(ctx, tx, user); err != nil {
			return err
		}
		return s.repo.CreatePassword(ctx, tx, user.ID, hash)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, queue.NewAccountEvent(queue.EventUserRegistered, user.ID))
	return user, nil
}

// Authenticate checks a username and password. Every failure is reported
// as ErrInvalidCredentials, and unknown users still pay for a hash comparison.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*User, error) {
	name, err := ParseUsername(username)
	if err != nil {
		auth.CompareDummyHash(password)
		return nil, ErrInvalidCredentials
	}
	if _, err := ParsePassword(password); err != nil {
		auth.CompareDummyHash(password)
		return nil, ErrInvalidCredentials
	}

	user, err := s.repo.GetByUsername(ctx, s.db, name)
	if errors.Is(err, ErrUserNotFound) {
		auth.CompareDummyHash(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := auth.ComparePasswordHash([]byte(user.PasswordHash), password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			logrus.WithError(err).WithField("user_id", user.ID).Error("Stored password hash is unusable")
		}
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// GetUserByID retrieves user by ID
func (s *UserService) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, s.db, id)
}

// LoadPrincipal resolves a session's user into the request principal.
func (s *UserService) LoadPrincipal(ctx context.Context, id uuid.UUID) (*auth.Principal, error) {
	user, err := s.repo.GetByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return &auth.Principal{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		AuthHash: auth.Fingerprint(user.PasswordHash),
	}, nil
}

// UpdateAccount changes the email and/or password after re-checking the
// current password. The returned user carries the new password hash.
func (s *UserService) UpdateAccount(ctx context.Context, id uuid.UUID, input UpdateInput) (*UpdateResult, error) {
	if input.Email == "" && input.NewPassword == "" {
		return nil, ErrNothingToUpdate
	}

	user, err := s.verifyCurrentPassword(ctx, id, input.CurrentPassword)
	if err != nil {
		return nil, err
	}

	result := &UpdateResult{User: user}

	var email string
	if input.Email != "" {
		email, err = ParseEmail(input.Email)
		if err != nil {
			return nil, err
		}
		result.EmailChanged = email != user.Email
	}

	var newHash string
	if input.NewPassword != "" {
		password, err := ParsePassword(input.NewPassword)
		if err != nil {
			return nil, &ValidationError{Field: "new_password", Err: errors.Unwrap(err)}
		}
		newHash, err = auth.GeneratePasswordHash(password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		result.PasswordChanged = true
	}

	if !result.EmailChanged && !result.PasswordChanged {
		return result, nil
	}

	err = utils.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		if result.EmailChanged {
			if err := s.repo.UpdateEmail(ctx, tx, id, email); err != nil {
				return err
			}
		}
		if result.PasswordChanged {
			return s.repo.UpdatePassword(ctx, tx, id, newHash)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.EmailChanged {
		user.Email = email
	}
	if result.PasswordChanged {
		user.PasswordHash = newHash
	}
	return result, nil
}

// PublishPasswordChanged announces a password change so the worker can purge
// every session of the user except keepSessionID.
func (s *UserService) PublishPasswordChanged(ctx context.Context, id uuid.UUID, keepSessionID string) {
	event := queue.NewAccountEvent(queue.EventUserPasswordChanged, id)
	event.KeepSessionID = keepSessionID
	s.publish(ctx, event)
}

// DeleteUser removes the account after re-checking the current password.
func (s *UserService) DeleteUser(ctx context.Context, id uuid.UUID, currentPassword string) error {
	if _, err := s.verifyCurrentPassword(ctx, id, currentPassword); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, s.db, id); err != nil {
		return err
	}

	s.publish(ctx, queue.NewAccountEvent(queue.EventUserDeleted, id))
	return nil
}

func (s *UserService) verifyCurrentPassword(ctx context.Context, id uuid.UUID, password string) (*User, error) {
	user, err := s.repo.GetByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, ErrInvalidCredentials
	}
	if err := auth.ComparePasswordHash([]byte(user.PasswordHash), password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// publish logs and drops delivery failures; the account change has already
// been committed.
func (s *UserService) publish(ctx context.Context, event queue.AccountEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"event":   event.Type,
			"user_id": event.UserID,
		}).Error("Failed to publish account event")
	}
}
