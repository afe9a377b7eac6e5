package models

import "time"

// AccountStatus represents the lifecycle state of an account.
type AccountStatus string

const (
	StatusIdle      AccountStatus = "idle"
	StatusLoggingIn AccountStatus = "logging_in"
	StatusLoggedIn  AccountStatus = "logged_in"
	StatusFailed    AccountStatus = "failed"
)

// Timing defaults for session lifetime management. The Dawn session token
// lives roughly seven days; re-login is triggered six hours before the
// conservative 6.5 day deadline.
const (
	DefaultTokenTTL     = 156 * time.Hour // 6.5 days
	DefaultExpiryMargin = 6 * time.Hour
)

// KeepAliveStats tracks cumulative keepalive outcomes for an account.
type KeepAliveStats struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// PointsSnapshot is the last known referral points state. It is overwritten
// wholesale on every successful fetch, never merged.
type PointsSnapshot struct {
	Total       float64   `json:"total"`
	Twitter     float64   `json:"twitter"`
	Discord     float64   `json:"discord"`
	Telegram    float64   `json:"telegram"`
	LastUpdated time.Time `json:"last_updated"`
}

// Account holds the mutable per-account state driven by the scheduler.
// All mutation methods take an explicit clock value so behavior around
// token expiry can be tested with simulated time; none of them touch
// shared state, synchronization is the registry's job.
type Account struct {
	Username string        `json:"username"`
	Password string        `json:"-"`
	Status   AccountStatus `json:"status"`

	Token       string    `json:"-"`
	UserID      string    `json:"user_id,omitempty"`
	LoginTime   time.Time `json:"login_time,omitzero"`
	TokenExpiry time.Time `json:"token_expiry,omitzero"`

	// LoginAttempts is the lifetime attempt counter, kept for display.
	// The retry driver uses its own per-drive counter for the limit check.
	LoginAttempts int `json:"login_attempts"`

	LastKeepAlive time.Time      `json:"last_keepalive,omitzero"`
	Stats         KeepAliveStats `json:"stats"`
	Points        PointsSnapshot `json:"points"`
}

// NewAccount creates an idle account for a credential pair.
func NewAccount(username, password string) *Account {
	return &Account{
		Username: username,
		Password: password,
		Status:   StatusIdle,
	}
}

// SetStatus sets the lifecycle status. Session fields are cleared when the
// account leaves the logged-in state so the token-iff-logged-in invariant
// holds after every transition.
func (a *Account) SetStatus(status AccountStatus) *Account {
	a.Status = status
	if status != StatusLoggedIn {
		a.Token = ""
		a.UserID = ""
		a.TokenExpiry = time.Time{}
	}
	return a
}

// RecordLoginSuccess stores the captured session and computes the token
// expiry deadline from the given TTL.
func (a *Account) RecordLoginSuccess(token, userID string, now time.Time, ttl time.Duration) *Account {
	a.Token = token
	a.UserID = userID
	a.Status = StatusLoggedIn
	a.LoginTime = now
	a.TokenExpiry = now.Add(ttl)
	return a
}

// IsTokenExpiringSoon reports whether the session token is within the
// expiry margin. Accounts without a deadline are never expiring.
func (a *Account) IsTokenExpiringSoon(now time.Time, margin time.Duration) bool {
	if a.Status != StatusLoggedIn || a.TokenExpiry.IsZero() {
		return false
	}
	return now.After(a.TokenExpiry.Add(-margin))
}

// PrepareForRelogin clears the session and returns the account to idle.
// The lifetime attempt counter is deliberately kept.
func (a *Account) PrepareForRelogin() *Account {
	a.Token = ""
	a.UserID = ""
	a.TokenExpiry = time.Time{}
	a.Status = StatusIdle
	return a
}

// RecordKeepAlive updates the cumulative keepalive counters.
func (a *Account) RecordKeepAlive(success bool, now time.Time) *Account {
	a.LastKeepAlive = now
	a.Stats.Total++
	if success {
		a.Stats.Successful++
	} else {
		a.Stats.Failed++
	}
	return a
}

// ApplyPoints overwrites the points snapshot with a freshly fetched one.
func (a *Account) ApplyPoints(p PointsData, now time.Time) *Account {
	a.Points = PointsSnapshot{
		Total:       p.Total,
		Twitter:     p.Twitter,
		Discord:     p.Discord,
		Telegram:    p.Telegram,
		LastUpdated: now,
	}
	return a
}

// Uptime returns how long the account has been logged in.
func (a *Account) Uptime(now time.Time) time.Duration {
	if a.LoginTime.IsZero() || a.Status != StatusLoggedIn {
		return 0
	}
	return now.Sub(a.LoginTime)
}

// Snapshot returns a value copy safe to hand to observers.
func (a *Account) Snapshot() Account {
	return *a
}
