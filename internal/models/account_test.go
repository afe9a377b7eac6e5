package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenInvariant holds iff the token is present exactly when logged in.
func tokenInvariant(a *Account) bool {
	return (a.Token != "") == (a.Status == StatusLoggedIn)
}

func TestNewAccount(t *testing.T) {
	acc := NewAccount("alice@example.com", "pw1")
	require.NotNil(t, acc)
	assert.Equal(t, StatusIdle, acc.Status)
	assert.Empty(t, acc.Token)
	assert.Zero(t, acc.LoginAttempts)
	assert.True(t, tokenInvariant(acc))
}

func TestAccount_RecordLoginSuccess(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	acc := NewAccount("alice@example.com", "pw1")

	acc.RecordLoginSuccess("T1", "U1", now, DefaultTokenTTL)

	assert.Equal(t, StatusLoggedIn, acc.Status)
	assert.Equal(t, "T1", acc.Token)
	assert.Equal(t, "U1", acc.UserID)
	assert.Equal(t, now, acc.LoginTime)
	assert.Equal(t, now.Add(156*time.Hour), acc.TokenExpiry)
	assert.True(t, tokenInvariant(acc))
}

func TestAccount_IsTokenExpiringSoon(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	acc := NewAccount("alice@example.com", "pw1")

	t.Run("no expiry set", func(t *testing.T) {
		assert.False(t, acc.IsTokenExpiringSoon(now, DefaultExpiryMargin))
	})

	acc.RecordLoginSuccess("T1", "U1", now, DefaultTokenTTL)

	t.Run("immediately after login", func(t *testing.T) {
		assert.False(t, acc.IsTokenExpiringSoon(now, DefaultExpiryMargin))
	})

	t.Run("just before the margin", func(t *testing.T) {
		at := acc.TokenExpiry.Add(-DefaultExpiryMargin - time.Minute)
		assert.False(t, acc.IsTokenExpiringSoon(at, DefaultExpiryMargin))
	})

	t.Run("inside the margin", func(t *testing.T) {
		at := acc.TokenExpiry.Add(-DefaultExpiryMargin + time.Minute)
		assert.True(t, acc.IsTokenExpiringSoon(at, DefaultExpiryMargin))
	})

	t.Run("not logged in", func(t *testing.T) {
		idle := NewAccount("bob@example.com", "pw2")
		idle.TokenExpiry = now
		assert.False(t, idle.IsTokenExpiringSoon(now.Add(time.Hour), DefaultExpiryMargin))
	})
}

func TestAccount_PrepareForRelogin(t *testing.T) {
	now := time.Now()

	for _, status := range []AccountStatus{StatusIdle, StatusLoggingIn, StatusLoggedIn, StatusFailed} {
		t.Run(string(status), func(t *testing.T) {
			acc := NewAccount("alice@example.com", "pw1")
			acc.LoginAttempts = 7
			if status == StatusLoggedIn {
				acc.RecordLoginSuccess("T1", "U1", now, DefaultTokenTTL)
			} else {
				acc.SetStatus(status)
			}

			acc.PrepareForRelogin()

			assert.Equal(t, StatusIdle, acc.Status)
			assert.Empty(t, acc.Token)
			assert.Empty(t, acc.UserID)
			assert.True(t, acc.TokenExpiry.IsZero())
			assert.Equal(t, 7, acc.LoginAttempts, "lifetime attempt counter must survive re-login")
			assert.True(t, tokenInvariant(acc))
		})
	}
}

func TestAccount_SetStatusClearsSession(t *testing.T) {
	now := time.Now()
	acc := NewAccount("alice@example.com", "pw1")
	acc.RecordLoginSuccess("T1", "U1", now, DefaultTokenTTL)

	acc.SetStatus(StatusFailed)

	assert.Equal(t, StatusFailed, acc.Status)
	assert.True(t, tokenInvariant(acc))
}

func TestAccount_RecordKeepAlive(t *testing.T) {
	now := time.Now()
	acc := NewAccount("alice@example.com", "pw1")

	outcomes := []bool{true, true, false, true, false}
	for _, ok := range outcomes {
		acc.RecordKeepAlive(ok, now)
	}

	assert.Equal(t, 5, acc.Stats.Total)
	assert.Equal(t, 3, acc.Stats.Successful)
	assert.Equal(t, 2, acc.Stats.Failed)
	assert.Equal(t, now, acc.LastKeepAlive)
}

func TestAccount_ApplyPointsOverwrites(t *testing.T) {
	now := time.Now()
	acc := NewAccount("alice@example.com", "pw1")

	acc.ApplyPoints(PointsData{Total: 10, Twitter: 1, Discord: 2, Telegram: 3}, now)
	acc.ApplyPoints(PointsData{Total: 20}, now.Add(time.Minute))

	assert.Equal(t, float64(20), acc.Points.Total)
	assert.Zero(t, acc.Points.Twitter, "snapshot is overwritten, not merged")
	assert.Zero(t, acc.Points.Discord)
	assert.Zero(t, acc.Points.Telegram)
	assert.Equal(t, now.Add(time.Minute), acc.Points.LastUpdated)
}

func TestAccount_Uptime(t *testing.T) {
	now := time.Now()
	acc := NewAccount("alice@example.com", "pw1")
	assert.Zero(t, acc.Uptime(now))

	acc.RecordLoginSuccess("T1", "U1", now, DefaultTokenTTL)
	assert.Equal(t, 90*time.Second, acc.Uptime(now.Add(90*time.Second)))

	acc.PrepareForRelogin()
	assert.Zero(t, acc.Uptime(now.Add(2*time.Minute)))
}

func TestCredentialBundle_Redacted(t *testing.T) {
	bundle := &CredentialBundle{
		Username: "alice@example.com",
		Token:    "secret-token-value-123456",
		Wallet: &Wallet{
			Address:    "0xabc",
			PrivateKey: "deadbeef",
			Mnemonic:   "twelve words here",
		},
	}

	red := bundle.Redacted()

	assert.NotContains(t, red.Token, "token-value")
	assert.Equal(t, "[REDACTED]", red.Wallet.PrivateKey)
	assert.Equal(t, "[REDACTED]", red.Wallet.Mnemonic)
	assert.Equal(t, "0xabc", red.Wallet.Address)

	// Original must be untouched.
	assert.Equal(t, "deadbeef", bundle.Wallet.PrivateKey)
}
