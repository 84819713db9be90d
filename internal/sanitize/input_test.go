package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "How do tides work?", "How do tides work?"},
		{"keeps whitespace", "line one\n\tline two\r\n", "line one\n\tline two\r\n"},
		{"strips ansi", "\x1b[31mred\x1b[0m", "[31mred[0m"},
		{"strips nul and bel", "a\x00b\x07c", "abc"},
		{"unicode", "Qual é a hipótese? 🌊", "Qual é a hipótese? 🌊"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Input(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInput_InvalidUTF8(t *testing.T) {
	_, err := Input("bad \xff\xfe")
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestInput_SizeLimit(t *testing.T) {
	t.Setenv(EnvMaxInputSize, "8")

	_, err := Input(strings.Repeat("x", 9))
	assert.ErrorIs(t, err, ErrInputTooLarge)

	got, err := Input(strings.Repeat("x", 8))
	require.NoError(t, err)
	assert.Len(t, got, 8)
}

func TestInput_IgnoresBadLimit(t *testing.T) {
	t.Setenv(EnvMaxInputSize, "not-a-number")

	_, err := Input(strings.Repeat("x", DefaultMaxInputSize))
	require.NoError(t, err)

	_, err = Input(strings.Repeat("x", DefaultMaxInputSize+1))
	assert.ErrorIs(t, err, ErrInputTooLarge)
}
