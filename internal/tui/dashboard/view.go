package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dawnkeeper/dawnkeeper/internal/logging"
	"github.com/dawnkeeper/dawnkeeper/internal/models"
)

// Styles with adaptive colors for light/dark backgrounds
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "63", Dark: "205"}).
			MarginLeft(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "250"})

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "160", Dark: "9"})

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "130", Dark: "11"})

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "34", Dark: "10"})

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "63", Dark: "205"})

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "63", Dark: "63"}).
			Padding(0, 1)
)

// View renders the dashboard
func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var b strings.Builder
	b.WriteString(m.viewHeader() + "\n")
	b.WriteString(boxStyle.Render(m.viewAccounts()) + "\n")
	b.WriteString(boxStyle.Render(m.viewLogs()) + "\n")
	b.WriteString(helpStyle.Render("  q quit • c clear logs"))
	return b.String()
}

func (m Model) viewHeader() string {
	counts := map[models.AccountStatus]int{}
	for _, acc := range m.accounts {
		counts[acc.Status]++
	}

	uptime := m.now.Sub(m.startedAt).Truncate(time.Second)
	summary := fmt.Sprintf("%d accounts • %s online • %s failed • keepalive %s • up %s",
		len(m.accounts),
		successStyle.Render(fmt.Sprintf("%d", counts[models.StatusLoggedIn])),
		errorStyle.Render(fmt.Sprintf("%d", counts[models.StatusFailed])),
		m.renderKeepAliveRate(),
		uptime,
	)

	header := titleStyle.Render("🌅 dawnkeeper") + "  " + helpStyle.Render(summary)
	if counts[models.StatusLoggingIn] > 0 {
		header += "  " + m.spinner.View() + helpStyle.Render(fmt.Sprintf(" %d logging in", counts[models.StatusLoggingIn]))
	}
	return header
}

// renderKeepAliveRate colors the aggregate keepalive success rate: red
// below 50%, yellow below 80%, green otherwise.
func (m Model) renderKeepAliveRate() string {
	var total, successful int
	for _, acc := range m.accounts {
		total += acc.Stats.Total
		successful += acc.Stats.Successful
	}
	if total == 0 {
		return helpStyle.Render("-")
	}

	rate := 100 * float64(successful) / float64(total)
	text := fmt.Sprintf("%.0f%%", rate)
	switch {
	case rate < 50:
		return errorStyle.Render(text)
	case rate < 80:
		return warnStyle.Render(text)
	default:
		return successStyle.Render(text)
	}
}

func (m Model) viewAccounts() string {
	if len(m.accounts) == 0 {
		return "No accounts in the roster."
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%-28s %-12s %8s %10s %8s %10s %10s\n",
		"Account", "Status", "Attempts", "Keepalives", "Points", "Uptime", "Expires"))
	b.WriteString(strings.Repeat("─", 93) + "\n")

	for _, acc := range m.accounts {
		b.WriteString(fmt.Sprintf("%-28s %-12s %8d %10s %8.1f %10s %10s\n",
			truncate(acc.Username, 28),
			renderStatus(acc.Status),
			acc.LoginAttempts,
			fmt.Sprintf("%d/%d", acc.Stats.Successful, acc.Stats.Total),
			acc.Points.Total,
			formatUptime(acc.Uptime(m.now)),
			formatExpiry(acc, m.now),
		))
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatExpiry shows the countdown to token expiry for logged-in accounts.
func formatExpiry(acc models.Account, now time.Time) string {
	if acc.Status != models.StatusLoggedIn || acc.TokenExpiry.IsZero() {
		return "-"
	}
	remaining := acc.TokenExpiry.Sub(now)
	if remaining <= 0 {
		return "expired"
	}
	return formatUptime(remaining)
}

func (m Model) viewLogs() string {
	if len(m.logs) == 0 {
		return "No log entries yet."
	}

	visible := 10
	if m.height > 30 {
		visible = m.height - 20
	}
	start := 0
	if len(m.logs) > visible {
		start = len(m.logs) - visible
	}

	var b strings.Builder
	for _, entry := range m.logs[start:] {
		line := fmt.Sprintf("%s %s", entry.Timestamp.Format("15:04:05"), entry.Message)
		if entry.Account != "" {
			line = fmt.Sprintf("%s [%s] %s", entry.Timestamp.Format("15:04:05"), entry.Account, entry.Message)
		}
		b.WriteString(renderLevel(entry.Level, truncate(line, 100)) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderStatus(status models.AccountStatus) string {
	switch status {
	case models.StatusLoggedIn:
		return successStyle.Render("logged in")
	case models.StatusLoggingIn:
		return warnStyle.Render("logging in")
	case models.StatusFailed:
		return errorStyle.Render("failed")
	default:
		return helpStyle.Render("idle")
	}
}

func renderLevel(level logging.LogLevel, line string) string {
	switch level {
	case logging.LevelError:
		return errorStyle.Render(line)
	case logging.LevelWarn:
		return warnStyle.Render(line)
	case logging.LevelSuccess:
		return successStyle.Render(line)
	default:
		return line
	}
}

func formatUptime(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	d = d.Truncate(time.Second)
	if d >= 24*time.Hour {
		days := int(d.Hours()) / 24
		return fmt.Sprintf("%dd%dh", days, int(d.Hours())%24)
	}
	if d >= time.Hour {
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
