package dispatcher

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) log(level, msg string, keysAndValues []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("%s: %s %v", level, msg, keysAndValues))
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) { l.log("DEBUG", msg, keysAndValues) }
func (l *testLogger) Info(msg string, keysAndValues ...any)  { l.log("INFO", msg, keysAndValues) }
func (l *testLogger) Error(msg string, keysAndValues ...any) { l.log("ERROR", msg, keysAndValues) }

func (l *testLogger) count(prefix string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, m := range l.messages {
		if strings.HasPrefix(m, prefix) {
			n++
		}
	}
	return n
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	t.Helper()
	logger := &testLogger{}
	d, err := New(logger)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Event
	d.Register(":SPAWN:", func(e Event) (any, error) {
		got = e
		return "result", nil
	})

	result, err := d.Dispatch(Event{Command: ":SPAWN:", Args: []string{"1234"}})
	require.NoError(t, err)
	assert.Equal(t, "result", result)
	assert.Equal(t, []string{"1234"}, got.Args)
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Command: ":UNKNOWN:"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command: :UNKNOWN:")
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	d.Register(":BUFFERED:", func(e Event) (any, error) {
		processed.Add(1)
		wg.Done()
		return nil, nil
	}, Buffered(100))

	for range 3 {
		result, err := d.Dispatch(Event{Command: ":BUFFERED:"})
		require.NoError(t, err)
		assert.Equal(t, "queued", result)
	}

	wg.Wait()
	assert.Equal(t, int32(3), processed.Load())
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	started := make(chan struct{}, 1)
	block := make(chan struct{})
	d.Register(":FULL:", func(e Event) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil, nil
	}, Buffered(2))
	defer close(block)

	_, err := d.Dispatch(Event{Command: ":FULL:"})
	require.NoError(t, err)
	<-started

	_, err = d.Dispatch(Event{Command: ":FULL:"})
	require.NoError(t, err)
	_, err = d.Dispatch(Event{Command: ":FULL:"})
	require.NoError(t, err)

	_, err = d.Dispatch(Event{Command: ":FULL:"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue full")
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	started := make(chan struct{}, 1)
	block := make(chan struct{})
	d.Register(":BLOCKING:", func(e Event) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil, nil
	}, Buffered(1), Blocking())

	_, _ = d.Dispatch(Event{Command: ":BLOCKING:"})
	<-started
	_, _ = d.Dispatch(Event{Command: ":BLOCKING:"})

	done := make(chan struct{})
	go func() {
		_, _ = d.Dispatch(Event{Command: ":BLOCKING:"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("dispatch should have blocked")
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch did not resume after the queue drained")
	}
}

func TestDispatcher_BufferedErrorsAreLogged(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":FAILS:", func(e Event) (any, error) {
		return nil, errors.New("boom")
	}, Buffered(1))

	_, err := d.Dispatch(Event{Command: ":FAILS:"})
	require.NoError(t, err)

	d.Close()
	assert.Equal(t, 1, logger.count("ERROR: buffered event failed"))
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	tests := []struct {
		name      string
		handler   HandlerFunc
		wantDebug int
		wantError int
	}{
		{
			name:      "success",
			handler:   func(e Event) (any, error) { return "ok", nil },
			wantDebug: 2,
		},
		{
			name:      "failure",
			handler:   func(e Event) (any, error) { return nil, errors.New("test error") },
			wantDebug: 1,
			wantError: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, logger := newTestDispatcher(t)
			d.Register(":LOGGED:", tt.handler, Logged())

			_, _ = d.Dispatch(Event{Command: ":LOGGED:", Args: []string{"a", "b"}})

			assert.Equal(t, tt.wantDebug, logger.count("DEBUG"))
			assert.Equal(t, tt.wantError, logger.count("ERROR"))
		})
	}
}

func TestDispatcher_RecoversPanics(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":PANIC:", func(e Event) (any, error) {
		panic("nil train")
	})

	result, err := d.Dispatch(Event{Command: ":PANIC:"})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "handler panic: nil train")
	assert.Equal(t, 1, logger.count("ERROR: handler panicked"))

	d.Register(":OK:", func(e Event) (any, error) { return "ok", nil })
	result, err = d.Dispatch(Event{Command: ":OK:"})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestDispatcher_HasHandlerAndCommands(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register(":TICK:", func(e Event) (any, error) { return nil, nil })
	d.Register(":ARCADE:", func(e Event) (any, error) { return nil, nil })

	assert.True(t, d.HasHandler(":TICK:"))
	assert.False(t, d.HasHandler(":NOT_EXISTS:"))
	assert.Equal(t, []string{":ARCADE:", ":TICK:"}, d.Commands())
}

func TestDispatcher_Close(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	d.Register(":SAMPLE:", func(e Event) (any, error) {
		processed.Add(1)
		return nil, nil
	}, Buffered(10))

	for range 5 {
		_, err := d.Dispatch(Event{Command: ":SAMPLE:"})
		require.NoError(t, err)
	}

	d.Close()
	assert.Equal(t, int32(5), processed.Load(), "close drains queued events")

	_, err := d.Dispatch(Event{Command: ":SAMPLE:"})
	assert.ErrorIs(t, err, ErrClosed)

	d.Close()
}

func TestDispatcher_CombinedOptions(t *testing.T) {
	d, logger := newTestDispatcher(t)

	done := make(chan struct{})
	d.Register(":COMBINED:", func(e Event) (any, error) {
		close(done)
		return "done", nil
	}, Buffered(100), Logged())

	result, err := d.Dispatch(Event{Command: ":COMBINED:"})
	require.NoError(t, err)
	assert.Equal(t, "queued", result)

	<-done
	assert.GreaterOrEqual(t, logger.count("DEBUG"), 2)
}
