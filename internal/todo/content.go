package todo

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/jellydator/validation"
)

const maxContentLength = 1000

var (
	ErrContentEmpty   = errors.New("todo is empty")
	ErrContentTooLong = errors.New("todo is too long")
)

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

var contentRules = []validation.Rule{
	validation.By(func(value interface{}) error {
		if value.(string) == "" {
			return ErrContentEmpty
		}
		return nil
	}),
	validation.By(func(value interface{}) error {
		if utf8.RuneCountInString(value.(string)) > maxContentLength {
			return ErrContentTooLong
		}
		return nil
	}),
}

// ParseContent trims the todo text and checks its length.
func ParseContent(s string) (string, error) {
	content := strings.TrimSpace(s)
	if err := validation.Validate(content, contentRules...); err != nil {
		return "", &ValidationError{Field: "todo_content", Err: err}
	}
	return content, nil
}
