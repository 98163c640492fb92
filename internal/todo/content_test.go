package todo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseContent(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "plain", input: "buy milk", want: "buy milk"},
		{name: "trimmed", input: "  buy milk \n", want: "buy milk"},
		{name: "empty", input: "", wantErr: ErrContentEmpty},
		{name: "only whitespace", input: " \t\n ", wantErr: ErrContentEmpty},
		{name: "at limit", input: strings.Repeat("a", 1000), want: strings.Repeat("a", 1000)},
		{name: "over limit", input: strings.Repeat("a", 1001), wantErr: ErrContentTooLong},
		{name: "multibyte at limit", input: strings.Repeat("ж", 1000), want: strings.Repeat("ж", 1000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseContent(tt.input)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)

				var validationErr *ValidationError
				require.ErrorAs(t, err, &validationErr)
				assert.Equal(t, "todo_content", validationErr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
