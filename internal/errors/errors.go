package errors

import "fmt"

// Config errors

type ErrConfigNotFound struct {
	Path string
}

func (e *ErrConfigNotFound) Error() string {
	return fmt.Sprintf("config file not found: %s", e.Path)
}

type ErrConfigParse struct {
	Err error
}

func (e *ErrConfigParse) Error() string {
	return fmt.Sprintf("failed to parse YAML: %v", e.Err)
}

func (e *ErrConfigParse) Unwrap() error {
	return e.Err
}

type ErrConfigValidation struct {
	Err error
}

func (e *ErrConfigValidation) Error() string {
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ErrConfigValidation) Unwrap() error {
	return e.Err
}

type ErrConfigMissing struct {
	Key string
}

func (e *ErrConfigMissing) Error() string {
	return fmt.Sprintf("required configuration missing: %s", e.Key)
}

// Dawn API errors

type ErrTransport struct {
	Op  string
	Err error
}

func (e *ErrTransport) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Op, e.Err)
}

func (e *ErrTransport) Unwrap() error {
	return e.Err
}

type ErrMalformedResponse struct {
	Op          string
	ContentType string
}

func (e *ErrMalformedResponse) Error() string {
	if e.ContentType != "" {
		return fmt.Sprintf("%s returned %s instead of JSON", e.Op, e.ContentType)
	}
	return fmt.Sprintf("%s returned a malformed response", e.Op)
}

type ErrChallengeUnsolved struct {
	Reason string
}

func (e *ErrChallengeUnsolved) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("challenge could not be solved: %s", e.Reason)
	}
	return "challenge could not be solved"
}

type ErrCredentialRejected struct {
	Message string
}

func (e *ErrCredentialRejected) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("login rejected: %s", e.Message)
	}
	return "login rejected"
}

type ErrMissingToken struct{}

func (e *ErrMissingToken) Error() string {
	return "login response missing token"
}

// Persistence errors

type ErrStoreOpen struct {
	Path string
	Err  error
}

func (e *ErrStoreOpen) Error() string {
	return fmt.Sprintf("failed to open credential store %s: %v", e.Path, e.Err)
}

func (e *ErrStoreOpen) Unwrap() error {
	return e.Err
}

type ErrPersistence struct {
	Op  string
	Err error
}

func (e *ErrPersistence) Error() string {
	return fmt.Sprintf("credential store %s failed: %v", e.Op, e.Err)
}

func (e *ErrPersistence) Unwrap() error {
	return e.Err
}

// Roster errors

type ErrRosterRead struct {
	Path string
	Err  error
}

func (e *ErrRosterRead) Error() string {
	return fmt.Sprintf("failed to read roster %s: %v", e.Path, e.Err)
}

func (e *ErrRosterRead) Unwrap() error {
	return e.Err
}

type ErrEmptyRoster struct {
	Path string
}

func (e *ErrEmptyRoster) Error() string {
	return fmt.Sprintf("no accounts found in roster %s", e.Path)
}

// Registry errors

type ErrDuplicateAccount struct {
	Username string
}

func (e *ErrDuplicateAccount) Error() string {
	return fmt.Sprintf("account already registered: %s", e.Username)
}

// Server errors

type ErrServerStart struct {
	Addr string
	Err  error
}

func (e *ErrServerStart) Error() string {
	return fmt.Sprintf("failed to start server on %s: %v", e.Addr, e.Err)
}

func (e *ErrServerStart) Unwrap() error {
	return e.Err
}
