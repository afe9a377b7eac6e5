package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WithOutput(&buf), WithLevel(LevelDebug))

	logger.Info("login attempt", "account", "alice@example.com", "attempt", 3)

	var entry Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, LevelInfo, entry.Level)
	assert.Equal(t, "alice@example.com", entry.Account)
	assert.Equal(t, "login attempt", entry.Message)
	assert.EqualValues(t, 3, entry.Fields["attempt"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WithOutput(&buf), WithLevel(LevelWarn))

	logger.Debug("not shown")
	logger.Info("not shown")
	logger.Error("shown")

	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	assert.Len(t, logger.Recent(), 1)
}

func TestLoggerRingCap(t *testing.T) {
	logger := NewLogger(WithOutput(&bytes.Buffer{}), WithRingSize(5))

	for i := 0; i < 12; i++ {
		logger.Info("entry")
	}

	assert.Len(t, logger.Recent(), 5)
}

func TestLoggerTruncatesLongMessages(t *testing.T) {
	logger := NewLogger(WithOutput(&bytes.Buffer{}))

	logger.Info(strings.Repeat("x", 300))

	recent := logger.Recent()
	require.Len(t, recent, 1)
	assert.Len(t, recent[0].Message, maxEntryLen)
	assert.True(t, strings.HasSuffix(recent[0].Message, "..."))
}

func TestLoggerCollapsesWhitespace(t *testing.T) {
	logger := NewLogger(WithOutput(&bytes.Buffer{}))

	logger.Info("line one\nline   two")

	recent := logger.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, "line one line two", recent[0].Message)
}

func TestSubscriberFanOut(t *testing.T) {
	logger := NewLogger(WithOutput(&bytes.Buffer{}))

	var mu sync.Mutex
	var got []Entry
	id := logger.Subscribe(func(e Entry) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})

	logger.Info("first")
	logger.Warn("second")

	mu.Lock()
	assert.Len(t, got, 2)
	mu.Unlock()

	logger.Unsubscribe(id)
	logger.Info("third")

	mu.Lock()
	assert.Len(t, got, 2)
	mu.Unlock()
}

func TestSubscriberPanicIsolated(t *testing.T) {
	logger := NewLogger(WithOutput(&bytes.Buffer{}))

	var calls int
	logger.Subscribe(func(Entry) {
		panic("broken observer")
	})
	logger.Subscribe(func(Entry) {
		calls++
	})

	assert.NotPanics(t, func() {
		logger.Info("still delivered")
	})
	assert.Equal(t, 1, calls)
}

func TestFormatFields(t *testing.T) {
	assert.Empty(t, FormatFields(nil))
	assert.Equal(t, "a=1 b=two", FormatFields(map[string]interface{}{"b": "two", "a": 1}))
}
