// Package dashboard renders the live terminal view of all accounts.
package dashboard

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dawnkeeper/dawnkeeper/internal/logging"
	"github.com/dawnkeeper/dawnkeeper/internal/models"
)

// maxLogLines bounds the log pane buffer.
const maxLogLines = 500

// Model is the Bubbletea model for the dashboard
type Model struct {
	accounts []models.Account
	logs     []logging.Entry

	width    int
	height   int
	quitting bool

	startedAt time.Time
	now       time.Time

	spinner spinner.Model
}

// NewModel creates the dashboard model
func NewModel(startedAt time.Time) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	return Model{
		startedAt: startedAt,
		now:       time.Now(),
		spinner:   s,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(), m.spinner.Tick)
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
