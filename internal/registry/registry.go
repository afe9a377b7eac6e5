package registry

import (
	"sync"
	"time"

	"github.com/dawnkeeper/dawnkeeper/internal/errors"
	"github.com/dawnkeeper/dawnkeeper/internal/models"
)

// Observer receives a snapshot of the full account list, in creation order,
// after every mutation.
type Observer func(accounts []models.Account)

// Registry owns the username -> account mapping and routes every mutation
// so observers (dashboard, metrics) see a consistent account list.
// It is thread-safe and supports concurrent access.
type Registry struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
	order    []string

	tokenTTL     time.Duration
	expiryMargin time.Duration
	now          func() time.Time

	subMu  sync.Mutex
	subs   map[int]Observer
	nextID int
}

// Option is a function that configures a Registry
type Option func(*Registry)

// WithTokenTTL sets the session token lifetime applied on login success
func WithTokenTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		r.tokenTTL = ttl
	}
}

// WithExpiryMargin sets how long before the deadline a token counts as expiring
func WithExpiryMargin(margin time.Duration) Option {
	return func(r *Registry) {
		r.expiryMargin = margin
	}
}

// WithClock sets the clock, used by tests to simulate time
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New creates an empty registry
func New(opts ...Option) *Registry {
	r := &Registry{
		accounts:     make(map[string]*models.Account),
		tokenTTL:     models.DefaultTokenTTL,
		expiryMargin: models.DefaultExpiryMargin,
		now:          time.Now,
		subs:         make(map[int]Observer),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds an account. Duplicate usernames are rejected and the first
// registration kept.
func (r *Registry) Register(username, password string) (models.Account, error) {
	r.mu.Lock()
	if _, exists := r.accounts[username]; exists {
		r.mu.Unlock()
		return models.Account{}, &errors.ErrDuplicateAccount{Username: username}
	}

	acc := models.NewAccount(username, password)
	r.accounts[username] = acc
	r.order = append(r.order, username)
	snap := acc.Snapshot()
	r.mu.Unlock()

	r.notify()
	return snap, nil
}

// Lookup returns a value copy of the account, if registered.
func (r *Registry) Lookup(username string) (models.Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acc, ok := r.accounts[username]
	if !ok {
		return models.Account{}, false
	}
	return acc.Snapshot(), true
}

// Usernames returns all usernames in creation order.
func (r *Registry) Usernames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// All returns value copies of all accounts in creation order.
func (r *Registry) All() []models.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Len returns the number of registered accounts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// CountByStatus returns how many accounts are in the given status.
func (r *Registry) CountByStatus(status models.AccountStatus) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, acc := range r.accounts {
		if acc.Status == status {
			n++
		}
	}
	return n
}

// SetStatus transitions an account's status. Unknown usernames are a no-op
// without notification.
func (r *Registry) SetStatus(username string, status models.AccountStatus) {
	r.mutate(username, func(acc *models.Account) {
		acc.SetStatus(status)
	})
}

// BeginLoginAttempt bumps the lifetime attempt counter and moves the
// account to logging-in, both observable before any network activity.
// It returns the new lifetime counter value.
func (r *Registry) BeginLoginAttempt(username string) int {
	attempts := 0
	r.mutate(username, func(acc *models.Account) {
		acc.LoginAttempts++
		acc.SetStatus(models.StatusLoggingIn)
		attempts = acc.LoginAttempts
	})
	return attempts
}

// RecordLoginSuccess stores the captured session on the account.
func (r *Registry) RecordLoginSuccess(username, token, userID string) {
	r.mutate(username, func(acc *models.Account) {
		acc.RecordLoginSuccess(token, userID, r.now(), r.tokenTTL)
	})
}

// PrepareForRelogin clears the account's session ahead of a re-login drive.
func (r *Registry) PrepareForRelogin(username string) {
	r.mutate(username, func(acc *models.Account) {
		acc.PrepareForRelogin()
	})
}

// RecordKeepAlive records one keepalive outcome.
func (r *Registry) RecordKeepAlive(username string, success bool) {
	r.mutate(username, func(acc *models.Account) {
		acc.RecordKeepAlive(success, r.now())
	})
}

// ApplyPoints overwrites the account's points snapshot. A nil payload
// (unrecognized upstream response) is a no-op without notification.
func (r *Registry) ApplyPoints(username string, data *models.PointsData) {
	if data == nil {
		return
	}
	r.mutate(username, func(acc *models.Account) {
		acc.ApplyPoints(*data, r.now())
	})
}

// IsTokenExpiringSoon reports whether the account's token is inside the
// configured expiry margin.
func (r *Registry) IsTokenExpiringSoon(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acc, ok := r.accounts[username]
	if !ok {
		return false
	}
	return acc.IsTokenExpiringSoon(r.now(), r.expiryMargin)
}

// Subscribe registers an observer and returns its id for Unsubscribe.
func (r *Registry) Subscribe(fn Observer) int {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	r.nextID++
	r.subs[r.nextID] = fn
	return r.nextID
}

// Unsubscribe removes a previously registered observer.
func (r *Registry) Unsubscribe(id int) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	delete(r.subs, id)
}

// mutate applies fn to the named account under the write lock, then
// notifies observers exactly once. Unknown usernames are ignored.
func (r *Registry) mutate(username string, fn func(*models.Account)) {
	r.mu.Lock()
	acc, ok := r.accounts[username]
	if !ok {
		r.mu.Unlock()
		return
	}
	fn(acc)
	r.mu.Unlock()

	r.notify()
}

func (r *Registry) snapshotLocked() []models.Account {
	out := make([]models.Account, 0, len(r.order))
	for _, username := range r.order {
		out = append(out, r.accounts[username].Snapshot())
	}
	return out
}

// notify fans the current account list out to every observer. An
// observer's panic is isolated so it can neither block the remaining
// observers nor reach the mutating caller.
func (r *Registry) notify() {
	r.mu.RLock()
	snapshot := r.snapshotLocked()
	r.mu.RUnlock()

	r.subMu.Lock()
	subs := make([]Observer, 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.subMu.Unlock()

	for _, fn := range subs {
		func() {
			defer func() {
				_ = recover()
			}()
			fn(snapshot)
		}()
	}
}
