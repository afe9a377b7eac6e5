package dashboard

import (
	"time"

	"github.com/dawnkeeper/dawnkeeper/internal/logging"
	"github.com/dawnkeeper/dawnkeeper/internal/models"
)

// Message types for async updates pushed into the program

type accountsMsg struct {
	accounts []models.Account
}

type logMsg struct {
	entry logging.Entry
}

type clearLogsMsg struct{}

type tickMsg time.Time
