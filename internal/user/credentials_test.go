package user

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUsername(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "empty", input: "", wantErr: ErrUsernameEmpty},
		{name: "whitespace only", input: " ", wantErr: ErrUsernameEmpty},
		{name: "lowercased", input: "tEStUSer", want: "testuser"},
		{name: "trimmed", input: "  alice \t", want: "alice"},
		{name: "64 graphemes", input: strings.Repeat("a", 64), want: strings.Repeat("a", 64)},
		{name: "65 graphemes", input: strings.Repeat("a", 65), wantErr: ErrUsernameTooLong},
		{name: "non ascii", input: "ё", wantErr: ErrUsernameForbidden},
		{name: "dot", input: ".", want: "."},
		{name: "underscore", input: "_", want: "_"},
		{name: "dash", input: "-", want: "-"},
		{name: "inner space", input: "a a", wantErr: ErrUsernameForbidden},
		{name: "bang", input: "!", wantErr: ErrUsernameForbidden},
		{name: "long and forbidden reports length first", input: strings.Repeat("ё", 65), wantErr: ErrUsernameTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUsername(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.EqualError(t, err, tt.wantErr.Error())

				var verr *ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, "username", verr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePassword(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "empty", input: "", wantErr: ErrPasswordEmpty},
		{name: "11 graphemes", input: strings.Repeat("ё", 11), wantErr: ErrPasswordTooShort},
		{name: "12 graphemes", input: strings.Repeat("ё", 12)},
		{name: "256 graphemes", input: strings.Repeat("ё", 256)},
		{name: "257 graphemes", input: strings.Repeat("ё", 257), wantErr: ErrPasswordTooLong},
		{name: "combining marks count once", input: strings.Repeat("e\u0301", 12)},
		{name: "spaces are kept", input: "  twelve chars  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePassword(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)

				var verr *ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, "password", verr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, got)
		})
	}
}

func TestParseEmail(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "valid", input: "user@example.com", want: "user@example.com"},
		{name: "lowercased and trimmed", input: "  User@Example.COM ", want: "user@example.com"},
		{name: "empty", input: "", wantErr: true},
		{name: "missing at", input: "userexample.com", wantErr: true},
		{name: "missing domain", input: "user@", wantErr: true},
		{name: "missing local part", input: "@example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEmail(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrEmailInvalid)
				assert.EqualError(t, err, "email is invalid")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegisterInput_Validate(t *testing.T) {
	in := RegisterInput{Email: "Alice@Example.com", Username: "Alice", Password: "correct horse battery"}

	got, err := in.Validate()
	require.NoError(t, err)
	assert.Equal(t, RegisterInput{Email: "alice@example.com", Username: "alice", Password: "correct horse battery"}, got)

	_, err = RegisterInput{Email: "nope", Username: "alice", Password: "correct horse battery"}.Validate()
	assert.ErrorIs(t, err, ErrEmailInvalid)

	_, err = RegisterInput{Email: "bob@example.com", Username: "", Password: "correct horse battery"}.Validate()
	assert.ErrorIs(t, err, ErrUsernameEmpty)

	_, err = RegisterInput{Email: "bob@example.com", Username: "alice", Password: "short"}.Validate()
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}
