package models

import "time"

// Typed variants for the loosely-typed Dawn API responses. The client
// converts each raw payload into one of these as the very first step after
// the call so downstream logic never probes ad hoc fields.

// ChallengeResult is the outcome of a get-puzzle call.
type ChallengeResult struct {
	Success  bool
	PuzzleID string
	Message  string
}

// ChallengeImageResult is the outcome of a get-puzzle-image call.
type ChallengeImageResult struct {
	Success     bool
	ImageBase64 string
	Message     string
}

// LoginResult is the interpreted outcome of a login submission.
type LoginResult struct {
	Success bool
	Token   string
	UserID  string
	Message string
	Bundle  *CredentialBundle
}

// PointsData is a recognized referral points payload.
type PointsData struct {
	Total    float64
	Twitter  float64
	Discord  float64
	Telegram float64
}

// Wallet holds the wallet material returned with a successful login.
// PrivateKey and Mnemonic must never appear in logs.
type Wallet struct {
	Address    string `json:"address"`
	PrivateKey string `json:"private_key"`
	Mnemonic   string `json:"mnemonic"`
	CreatedAt  string `json:"created_at"`
}

// CredentialBundle is the durable record written to the credential store
// after a successful login.
type CredentialBundle struct {
	Username     string    `json:"username"`
	Token        string    `json:"token"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	Firstname    string    `json:"firstname"`
	Lastname     string    `json:"lastname"`
	ReferralCode string    `json:"referral_code"`
	CapturedAt   time.Time `json:"captured_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	Wallet       *Wallet   `json:"wallet,omitempty"`
}

// Redacted returns a copy safe for logging, with wallet secrets masked.
func (b *CredentialBundle) Redacted() CredentialBundle {
	out := *b
	out.Token = maskSecret(out.Token)
	if b.Wallet != nil {
		w := *b.Wallet
		w.PrivateKey = "[REDACTED]"
		w.Mnemonic = "[REDACTED]"
		out.Wallet = &w
	}
	return out
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
