package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"todo_app/internal/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
)

const (
	queryTimeout = 5 * time.Second

	uniqueViolation    = "23505"
	usernameConstraint = "user_info_username_key"
	emailConstraint    = "user_info_email_key"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")
	ErrEmailTaken    = errors.New("email already registered")
)

type UserRepository struct{}

type UserRepositoryInterface interface {
	Create(ctx context.Context, q utils.DBTX, user *User) error
	CreatePassword(ctx context.Context, q utils.DBTX, userID uuid.UUID, passwordHash string) error
	UsernameExists(ctx context.Context, q utils.DBTX, username string) (bool, error)
	EmailExists(ctx context.Context, q utils.DBTX, email string) (bool, error)
	GetByID(ctx context.Context, q utils.DBTX, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, q utils.DBTX, username string) (*User, error)
	UpdateEmail(ctx context.Context, q utils.DBTX, id uuid.UUID, email string) error
	UpdatePassword(ctx context.Context, q utils.DBTX, id uuid.UUID, passwordHash string) error
	Delete(ctx context.Context, q utils.DBTX, id uuid.UUID) error
}

func NewUserRepository() UserRepositoryInterface {
	return &UserRepository{}
}

// Create inserts the user_info row. Unique violations are reported as
// ErrUsernameTaken or ErrEmailTaken.
func (r *UserRepository) Create(ctx context.Context, q utils.DBTX, user *User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO user_info (user_id, username, email)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`

	err := q.QueryRowContext(ctx, query, user.ID, user.Username, user.Email).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return mapped
		}
		logrus.WithError(err).Error("Failed to create user")
		return err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("User created successfully")

	return nil
}

func (r *UserRepository) CreatePassword(ctx context.Context, q utils.DBTX, userID uuid.UUID, passwordHash string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO user_password (user_id, password_hash)
		VALUES ($1, $2)
	`

	if _, err := q.ExecContext(ctx, query, userID, passwordHash); err != nil {
		logrus.WithError(err).Error("Failed to store password")
		return err
	}
	return nil
}

func (r *UserRepository) UsernameExists(ctx context.Context, q utils.DBTX, username string) (bool, error) {
	return r.exists(ctx, q, `SELECT EXISTS(SELECT 1 FROM user_info WHERE LOWER(username) = LOWER($1))`, username)
}

func (r *UserRepository) EmailExists(ctx context.Context, q utils.DBTX, email string) (bool, error) {
	return r.exists(ctx, q, `SELECT EXISTS(SELECT 1 FROM user_info WHERE LOWER(email) = LOWER($1))`, email)
}

func (r *UserRepository) exists(ctx context.Context, q utils.DBTX, query, value string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var exists bool
	if err := q.QueryRowContext(ctx, query, value).Scan(&exists); err != nil {
		logrus.WithError(err).Error("Failed to check uniqueness")
		return false, err
	}
	return exists, nil
}

// GetByID retrieves a user and its password hash by ID
func (r *UserRepository) GetByID(ctx context.Context, q utils.DBTX, id uuid.UUID) (*User, error) {
	query := `
		SELECT ui.user_id, ui.username, ui.email, up.password_hash, ui.created_at, ui.updated_at
		FROM user_info AS ui
		JOIN user_password AS up ON up.user_id = ui.user_id
		WHERE ui.user_id = $1
	`
	return r.getOne(ctx, q, query, id)
}

// GetByUsername retrieves a user and its password hash by username, ignoring case
func (r *UserRepository) GetByUsername(ctx context.Context, q utils.DBTX, username string) (*User, error) {
	query := `
		SELECT ui.user_id, ui.username, ui.email, up.password_hash, ui.created_at, ui.updated_at
		FROM user_info AS ui
		JOIN user_password AS up ON up.user_id = ui.user_id
		WHERE LOWER(ui.username) = LOWER($1)
	`
	return r.getOne(ctx, q, query, username)
}

func (r *UserRepository) getOne(ctx context.Context, q utils.DBTX, query string, arg any) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	user := &User{}
	err := q.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		logrus.WithError(err).Error("Failed to get user")
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) UpdateEmail(ctx context.Context, q utils.DBTX, id uuid.UUID, email string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		UPDATE user_info
		SET email = $1
		WHERE user_id = $2
	`

	result, err := q.ExecContext(ctx, query, email, id)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return mapped
		}
		logrus.WithError(err).Error("Failed to update email")
		return err
	}
	if err := requireOneRow(result); err != nil {
		return err
	}

	logrus.WithField("user_id", id).Info("Email updated successfully")
	return nil
}

// UpdatePassword updates user's password
func (r *UserRepository) UpdatePassword(ctx context.Context, q utils.DBTX, id uuid.UUID, passwordHash string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		UPDATE user_password
		SET password_hash = $1
		WHERE user_id = $2
	`

	result, err := q.ExecContext(ctx, query, passwordHash, id)
	if err != nil {
		logrus.WithError(err).Error("Failed to update password")
		return err
	}
	if err := requireOneRow(result); err != nil {
		return err
	}

	logrus.WithField("user_id", id).Info("Password updated successfully")
	return nil
}

// Delete removes the user. Todos and the password row go with it by cascade.
func (r *UserRepository) Delete(ctx context.Context, q utils.DBTX, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := q.ExecContext(ctx, `DELETE FROM user_info WHERE user_id = $1`, id)
	if err != nil {
		logrus.WithError(err).Error("Failed to delete user")
		return err
	}
	if err := requireOneRow(result); err != nil {
		return err
	}

	logrus.WithField("user_id", id).Info("User deleted")
	return nil
}

func requireOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case usernameConstraint:
		return ErrUsernameTaken
	case emailConstraint:
		return ErrEmailTaken
	}
	return nil
}
