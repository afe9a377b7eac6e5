package dashboard

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dawnkeeper/dawnkeeper/internal/logging"
	"github.com/dawnkeeper/dawnkeeper/internal/models"
)

func TestUpdateAccounts(t *testing.T) {
	m := NewModel(time.Now())

	updated, _ := m.Update(accountsMsg{accounts: []models.Account{
		{Username: "alice@example.com", Status: models.StatusLoggedIn},
	}})
	model := updated.(Model)

	require.Len(t, model.accounts, 1)
	view := model.View()
	assert.Contains(t, view, "alice@example.com")
	assert.Contains(t, view, "logged in")
}

func TestUpdateQuitKeys(t *testing.T) {
	for _, key := range []string{"q", "ctrl+c"} {
		t.Run(key, func(t *testing.T) {
			m := NewModel(time.Now())

			msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
			if key == "ctrl+c" {
				msg = tea.KeyMsg{Type: tea.KeyCtrlC}
			}

			updated, cmd := m.Update(msg)
			assert.True(t, updated.(Model).quitting)
			require.NotNil(t, cmd)
		})
	}
}

func TestLogBufferBounded(t *testing.T) {
	m := NewModel(time.Now())

	var model tea.Model = m
	for i := 0; i < maxLogLines+50; i++ {
		model, _ = model.(Model).Update(logMsg{entry: logging.Entry{Message: "entry"}})
	}

	assert.Len(t, model.(Model).logs, maxLogLines)
}

func TestClearLogsKey(t *testing.T) {
	m := NewModel(time.Now())

	updated, _ := m.Update(logMsg{entry: logging.Entry{Message: "hello"}})
	updated, _ = updated.(Model).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})

	assert.Empty(t, updated.(Model).logs)
}

func TestViewEmptyState(t *testing.T) {
	m := NewModel(time.Now())
	view := m.View()

	assert.Contains(t, view, "No accounts in the roster.")
	assert.Contains(t, view, "No log entries yet.")
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "-", formatUptime(0))
	assert.Equal(t, "5m03s", formatUptime(5*time.Minute+3*time.Second))
	assert.Equal(t, "2h05m", formatUptime(2*time.Hour+5*time.Minute))
	assert.Equal(t, "1d2h", formatUptime(26*time.Hour))
}

func TestFormatExpiry(t *testing.T) {
	now := time.Now()

	assert.Equal(t, "-", formatExpiry(models.Account{Status: models.StatusIdle}, now))
	assert.Equal(t, "expired", formatExpiry(models.Account{
		Status:      models.StatusLoggedIn,
		TokenExpiry: now.Add(-time.Minute),
	}, now))
	assert.Equal(t, "3h00m", formatExpiry(models.Account{
		Status:      models.StatusLoggedIn,
		TokenExpiry: now.Add(3 * time.Hour),
	}, now))
}

func TestRenderKeepAliveRate(t *testing.T) {
	m := NewModel(time.Now())
	assert.Contains(t, m.renderKeepAliveRate(), "-")

	m.accounts = []models.Account{
		{Stats: models.KeepAliveStats{Total: 10, Successful: 4}},
	}
	assert.Contains(t, m.renderKeepAliveRate(), "40%")

	m.accounts[0].Stats.Successful = 9
	assert.Contains(t, m.renderKeepAliveRate(), "90%")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	long := strings.Repeat("a", 30)
	assert.Len(t, []rune(truncate(long, 10)), 10)
}
