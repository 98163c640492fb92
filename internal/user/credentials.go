package user

import (
	"errors"
	"strings"

	"github.com/jellydator/validation"
	"github.com/jellydator/validation/is"
	"github.com/rivo/uniseg"
)

const (
	maxUsernameLength = 64
	minPasswordLength = 12
	maxPasswordLength = 256
)

var (
	ErrUsernameEmpty     = errors.New("username is empty")
	ErrUsernameTooLong   = errors.New("username is too long")
	ErrUsernameForbidden = errors.New("username contains forbidden character")
	ErrEmailInvalid      = errors.New("email is invalid")
	ErrPasswordEmpty     = errors.New("password is empty")
	ErrPasswordTooShort  = errors.New("password is too short")
	ErrPasswordTooLong   = errors.New("password is too long")
)

// ValidationError ties a rule violation to the form field that caused it.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

var usernameRules = []validation.Rule{
	validation.By(func(value interface{}) error {
		if value.(string) == "" {
			return ErrUsernameEmpty
		}
		return nil
	}),
	validation.By(func(value interface{}) error {
		if uniseg.GraphemeClusterCount(value.(string)) > maxUsernameLength {
			return ErrUsernameTooLong
		}
		return nil
	}),
	validation.By(func(value interface{}) error {
		for _, r := range value.(string) {
			if !isUsernameRune(r) {
				return ErrUsernameForbidden
			}
		}
		return nil
	}),
}

var passwordRules = []validation.Rule{
	validation.By(func(value interface{}) error {
		if value.(string) == "" {
			return ErrPasswordEmpty
		}
		return nil
	}),
	validation.By(func(value interface{}) error {
		n := uniseg.GraphemeClusterCount(value.(string))
		if n < minPasswordLength {
			return ErrPasswordTooShort
		}
		if n > maxPasswordLength {
			return ErrPasswordTooLong
		}
		return nil
	}),
}

// ParseUsername normalises a username to lower case and checks it.
func ParseUsername(s string) (string, error) {
	username := strings.ToLower(strings.TrimSpace(s))
	if err := validation.Validate(username, usernameRules...); err != nil {
		return "", &ValidationError{Field: "username", Err: err}
	}
	return username, nil
}

// ParseEmail normalises an email address to lower case and checks its syntax.
func ParseEmail(s string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(s))
	if err := validation.Validate(email, validation.Required, is.EmailFormat); err != nil {
		return "", &ValidationError{Field: "email", Err: ErrEmailInvalid}
	}
	return email, nil
}

// ParsePassword checks the length of a password. The value is never trimmed.
func ParsePassword(s string) (string, error) {
	if err := validation.Validate(s, passwordRules...); err != nil {
		return "", &ValidationError{Field: "password", Err: err}
	}
	return s, nil
}

// Validate checks every field of a registration and returns the normalised input.
func (in RegisterInput) Validate() (RegisterInput, error) {
	email, err := ParseEmail(in.Email)
	if err != nil {
		return RegisterInput{}, err
	}
	username, err := ParseUsername(in.Username)
	if err != nil {
		return RegisterInput{}, err
	}
	password, err := ParsePassword(in.Password)
	if err != nil {
		return RegisterInput{}, err
	}
	return RegisterInput{Email: email, Username: username, Password: password}, nil
}

func isUsernameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == '-':
		return true
	}
	return false
}
