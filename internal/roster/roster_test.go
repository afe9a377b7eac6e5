package roster

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dkerrors "github.com/dawnkeeper/dawnkeeper/internal/errors"
	"github.com/dawnkeeper/dawnkeeper/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.WithOutput(io.Discard))
}

func writeRoster(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeRoster(t, `
# production accounts
alice@example.com:hunter2

bob@example.com:pass:with:colons
  carol@example.com : spaced
`)

	creds, err := Load(path, testLogger())
	require.NoError(t, err)
	require.Len(t, creds, 3)

	assert.Equal(t, Credential{"alice@example.com", "hunter2"}, creds[0])
	assert.Equal(t, Credential{"bob@example.com", "pass:with:colons"}, creds[1])
	assert.Equal(t, Credential{"carol@example.com", "spaced"}, creds[2])
}

func TestLoadSkipsMalformedLines(t *testing.T) {
	path := writeRoster(t, `
no-separator-here
:missing-username
missing-password:
alice@example.com:ok
`)

	creds, err := Load(path, testLogger())
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "alice@example.com", creds[0].Username)
}

func TestLoadWarnsOnMalformedLines(t *testing.T) {
	path := writeRoster(t, "no-separator-here\nalice@example.com:ok\n")

	var buf bytes.Buffer
	logger := logging.NewLogger(logging.WithOutput(&buf), logging.WithLevel(logging.LevelWarn))

	creds, err := Load(path, logger)
	require.NoError(t, err)
	require.Len(t, creds, 1)

	out := buf.String()
	assert.Contains(t, out, "skipping malformed roster line")
	// The raw line may hold a password and must not be echoed.
	assert.False(t, strings.Contains(out, "no-separator-here"))
}

func TestLoadDuplicateFirstWins(t *testing.T) {
	path := writeRoster(t, "alice@example.com:first\nalice@example.com:second\n")

	creds, err := Load(path, testLogger())
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "first", creds[0].Password)
}

func TestLoadEmptyRoster(t *testing.T) {
	path := writeRoster(t, "# only comments\n\n")

	_, err := Load(path, testLogger())
	require.Error(t, err)
	var empty *dkerrors.ErrEmptyRoster
	assert.ErrorAs(t, err, &empty)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"), testLogger())
	require.Error(t, err)
	var read *dkerrors.ErrRosterRead
	assert.ErrorAs(t, err, &read)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := writeRoster(t, "alice@example.com:pw\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan []Credential, 1)
	w := NewWatcher(path, testLogger(), func(creds []Credential) {
		select {
		case changed <- creds:
		default:
		}
	}, nil)
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(path, []byte("alice@example.com:pw\nbob@example.com:pw2\n"), 0o600))

	select {
	case creds := <-changed:
		assert.Len(t, creds, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not fire")
	}
}

func TestWatcherReportsBadRoster(t *testing.T) {
	path := writeRoster(t, "alice@example.com:pw\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errs := make(chan error, 1)
	w := NewWatcher(path, testLogger(), func([]Credential) {
		t.Error("onChange fired for empty roster")
	}, func(err error) {
		select {
		case errs <- err:
		default:
		}
	})
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(path, []byte("# wiped\n"), 0o600))

	select {
	case err := <-errs:
		var empty *dkerrors.ErrEmptyRoster
		assert.ErrorAs(t, err, &empty)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report error")
	}
}
