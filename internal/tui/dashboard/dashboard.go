package dashboard

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dawnkeeper/dawnkeeper/internal/logging"
	"github.com/dawnkeeper/dawnkeeper/internal/models"
	"github.com/dawnkeeper/dawnkeeper/internal/registry"
)

// Dashboard runs the terminal UI and bridges registry and logger
// subscriptions into the Bubbletea program.
type Dashboard struct {
	registry *registry.Registry
	logger   *logging.Logger
	program  *tea.Program
}

// New creates a dashboard over the given registry and logger.
func New(reg *registry.Registry, logger *logging.Logger) *Dashboard {
	return &Dashboard{registry: reg, logger: logger}
}

// Run blocks until the user quits or Quit is called.
func (d *Dashboard) Run() error {
	p := tea.NewProgram(NewModel(time.Now()), tea.WithAltScreen())
	d.program = p

	regID := d.registry.Subscribe(func(accounts []models.Account) {
		p.Send(accountsMsg{accounts: accounts})
	})
	defer d.registry.Unsubscribe(regID)

	logID := d.logger.Subscribe(func(entry logging.Entry) {
		p.Send(logMsg{entry: entry})
	})
	defer d.logger.Unsubscribe(logID)

	// Seed with current state so the first frame is not empty.
	p.Send(accountsMsg{accounts: d.registry.All()})
	for _, entry := range d.logger.Recent() {
		p.Send(logMsg{entry: entry})
	}

	_, err := p.Run()
	return err
}

// Quit asks the running program to exit.
func (d *Dashboard) Quit() {
	if d.program != nil {
		d.program.Quit()
	}
}
