// Package telegram sends operator notifications through a Telegram bot.
package telegram

import (
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dawnkeeper/dawnkeeper/internal/logging"
)

// Notify sends a one-off message without requiring a running bot instance.
func Notify(token string, chatID int64, text string) {
	token = strings.TrimSpace(token)
	if token == "" || chatID == 0 || strings.TrimSpace(text) == "" {
		return
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	_, _ = bot.Send(msg)
}

// Notifier pushes account lifecycle events to a fixed chat. A nil
// Notifier is valid and drops everything, so callers never need to
// guard the disabled case.
type Notifier struct {
	token  string
	chatID int64
	logger *logging.Logger

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// NewNotifier creates a notifier. The bot API is contacted lazily on
// the first send so a bad token cannot fail startup.
func NewNotifier(token string, chatID int64, logger *logging.Logger) *Notifier {
	token = strings.TrimSpace(token)
	if token == "" || chatID == 0 {
		return nil
	}
	return &Notifier{token: token, chatID: chatID, logger: logger}
}

// AccountLoggedIn reports a successful login drive.
func (n *Notifier) AccountLoggedIn(username string, attempts int) {
	n.send(fmt.Sprintf("✅ *%s* logged in (attempt %d)", escape(username), attempts))
}

// AccountFailed reports an exhausted login drive.
func (n *Notifier) AccountFailed(username string, attempts int) {
	n.send(fmt.Sprintf("❌ *%s* failed after %d attempts", escape(username), attempts))
}

// TokenExpiring reports that a session is inside the expiry margin.
func (n *Notifier) TokenExpiring(username string) {
	n.send(fmt.Sprintf("⏳ *%s* token expiring, re-login started", escape(username)))
}

func (n *Notifier) send(text string) {
	if n == nil {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.bot == nil {
		bot, err := tgbotapi.NewBotAPI(n.token)
		if err != nil {
			n.logger.Warn("telegram connect failed", "error", err.Error())
			return
		}
		n.bot = bot
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Warn("telegram send failed", "error", err.Error())
	}
}

func escape(s string) string {
	replacer := strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")
	return replacer.Replace(s)
}
