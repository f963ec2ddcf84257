package hostabi

import (
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RogersSierra/extension/internal/dispatcher"
	"github.com/RogersSierra/extension/internal/logging"
)

func TestFormatDispatchResponse(t *testing.T) {
	tests := []struct {
		name     string
		result   any
		err      error
		expected string
	}{
		{
			name:     "string array (VERSION)",
			result:   []string{"0.0.1", "2026-02-01"},
			expected: `["ok", ["0.0.1","2026-02-01"]]`,
		},
		{
			name:     "simple string",
			result:   "ok",
			expected: `["ok", "ok"]`,
		},
		{
			name:     "path string",
			result:   `C:\Games\Sierra`,
			expected: `["ok", "C:\Games\Sierra"]`,
		},
		{
			name:     "json string has its quotes doubled",
			result:   `{"speed":1.5}`,
			expected: `["ok", "{""speed"":1.5}"]`,
		},
		{
			name:     "nil result",
			expected: `["ok"]`,
		},
		{
			name:     "error",
			err:      errors.New("unknown train: abc"),
			expected: `["error", "unknown train: abc"]`,
		},
		{
			name:     "error with quotes",
			err:      errors.New(`invalid train id "x"`),
			expected: `["error", "invalid train id ""x"""]`,
		},
		{
			name:     "float",
			result:   2.5,
			expected: `["ok", 2.5]`,
		},
		{
			name:     "map",
			result:   map[string]int{"count": 42},
			expected: `["ok", {"count":42}]`,
		},
		{
			name:     "unencodable value",
			result:   make(chan int),
			expected: `["error", "json: unsupported type: chan int"]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatDispatchResponse(tt.result, tt.err))
		})
	}
}

func TestSplitCommand(t *testing.T) {
	cmd, args := splitCommand(":STATE:|abc")
	assert.Equal(t, ":STATE:", cmd)
	assert.Equal(t, []string{"abc"}, args)

	cmd, args = splitCommand(":VERSION:")
	assert.Equal(t, ":VERSION:", cmd)
	assert.Empty(t, args)
}

func TestDispatch(t *testing.T) {
	d, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(d.Close)
	d.Register(":ECHO:", func(e dispatcher.Event) (any, error) {
		return strings.Join(e.Args, ","), nil
	})

	prev := GetDispatcher()
	SetDispatcher(d)
	t.Cleanup(func() { SetDispatcher(prev) })

	assert.Equal(t, `["ok", "a,b"]`, dispatch(":ECHO:", []string{"a", "b"}))
	assert.Equal(t, `["error", "no handler registered for :MISSING:"]`, dispatch(":MISSING:", nil))
}

func TestDispatch_NoDispatcher(t *testing.T) {
	prev := GetDispatcher()
	SetDispatcher(nil)
	t.Cleanup(func() { SetDispatcher(prev) })

	got := dispatch(":VERSION:", nil)
	assert.True(t, strings.HasPrefix(got, `["error"`))
}

func TestVersion(t *testing.T) {
	prev := Version()
	t.Cleanup(func() { SetVersion(prev) })

	SetVersion("0.1.0")
	assert.Equal(t, "0.1.0", Version())
}
