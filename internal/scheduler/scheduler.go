// Package scheduler drives the account lifecycle: initial login drives,
// periodic keepalives, points refreshes and token expiry renewal.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dawnkeeper/dawnkeeper/internal/errors"
	"github.com/dawnkeeper/dawnkeeper/internal/logging"
	"github.com/dawnkeeper/dawnkeeper/internal/metrics"
	"github.com/dawnkeeper/dawnkeeper/internal/models"
	"github.com/dawnkeeper/dawnkeeper/internal/registry"
	"github.com/dawnkeeper/dawnkeeper/internal/roster"
	"github.com/dawnkeeper/dawnkeeper/internal/telegram"
	"github.com/dawnkeeper/dawnkeeper/internal/tokenstore"
)

// Config contains scheduler timing configuration.
type Config struct {
	// MaxLoginAttempts bounds one drive, not the account lifetime.
	MaxLoginAttempts int
	RetryDelay       time.Duration
	StartupSpacing   time.Duration

	KeepAliveInterval time.Duration
	// PointsEvery refreshes points on every Nth keepalive tick.
	PointsEvery int

	ExpiryCheckInterval time.Duration
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		MaxLoginAttempts:    10,
		RetryDelay:          3 * time.Second,
		StartupSpacing:      5 * time.Second,
		KeepAliveInterval:   180 * time.Second,
		PointsEvery:         5,
		ExpiryCheckInterval: 3 * time.Hour,
	}
}

// Store is the subset of the credential store the scheduler writes to.
type Store interface {
	Append(bundle *models.CredentialBundle) error
}

var _ Store = (*tokenstore.Store)(nil)

// Scheduler owns the per-account background loops. It is safe to drive
// many accounts concurrently; each account has at most one login drive
// in flight at any time.
type Scheduler struct {
	config   Config
	registry *registry.Registry
	auth     *Authenticator
	api      API
	store    Store
	notifier *telegram.Notifier
	metrics  *metrics.Metrics
	logger   *logging.Logger

	// rootCtx outlives the timer tick that observed the condition, so a
	// re-login drive started from a loop is only canceled by shutdown.
	rootCtx context.Context

	mu       sync.Mutex
	loops    map[string]context.CancelFunc
	relogins map[string]bool

	wg sync.WaitGroup
}

// New creates a scheduler. store and notifier may be nil.
func New(config Config, reg *registry.Registry, auth *Authenticator, api API, store Store, notifier *telegram.Notifier, m *metrics.Metrics, logger *logging.Logger) *Scheduler {
	if config.MaxLoginAttempts <= 0 {
		config.MaxLoginAttempts = DefaultConfig().MaxLoginAttempts
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultConfig().RetryDelay
	}
	if config.KeepAliveInterval <= 0 {
		config.KeepAliveInterval = DefaultConfig().KeepAliveInterval
	}
	if config.PointsEvery <= 0 {
		config.PointsEvery = DefaultConfig().PointsEvery
	}
	if config.ExpiryCheckInterval <= 0 {
		config.ExpiryCheckInterval = DefaultConfig().ExpiryCheckInterval
	}

	return &Scheduler{
		config:   config,
		registry: reg,
		auth:     auth,
		api:      api,
		store:    store,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		loops:    make(map[string]context.CancelFunc),
		relogins: make(map[string]bool),
	}
}

// Run registers the roster and drives every account through its initial
// login in roster order, spacing the starts. It returns when all drives
// have completed or ctx is canceled; background loops keep running
// until Stop.
func (s *Scheduler) Run(ctx context.Context, creds []roster.Credential) {
	s.mu.Lock()
	s.rootCtx = ctx
	s.mu.Unlock()

	for i, cred := range creds {
		if _, err := s.registry.Register(cred.Username, cred.Password); err != nil {
			s.logger.Warn("skipping roster entry", "account", cred.Username, "error", err.Error())
			continue
		}

		if i > 0 && s.config.StartupSpacing > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.config.StartupSpacing):
			}
		}

		if ctx.Err() != nil {
			return
		}
		s.DriveLogin(ctx, cred.Username)
	}
}

// Add registers one account at runtime and starts its login drive.
// Used by the roster watcher when new entries appear.
func (s *Scheduler) Add(cred roster.Credential) {
	s.mu.Lock()
	ctx := s.rootCtx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.registry.Register(cred.Username, cred.Password); err != nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.DriveLogin(ctx, cred.Username)
	}()
}

// DriveLogin runs one login drive: up to MaxLoginAttempts attempts with
// RetryDelay between them. On success the account's keepalive and
// expiry loops are started; on exhaustion the account is marked failed.
func (s *Scheduler) DriveLogin(ctx context.Context, username string) {
	acc, ok := s.registry.Lookup(username)
	if !ok {
		return
	}

	driveID := uuid.NewString()[:8]
	s.logger.Info("login drive started", "account", username, "drive", driveID)

	for attempt := 1; attempt <= s.config.MaxLoginAttempts; attempt++ {
		if ctx.Err() != nil {
			s.registry.SetStatus(username, models.StatusFailed)
			return
		}

		lifetime := s.registry.BeginLoginAttempt(username)

		result, err := s.auth.Login(ctx, username, acc.Password)
		if err == nil && result.Success {
			s.registry.RecordLoginSuccess(username, result.Token, result.UserID)
			s.persistBundle(result.Bundle)
			s.metrics.RecordLoginAttempt("success")
			s.metrics.RecordLoginDrive("success")
			s.updateStatusGauges()
			s.logger.Success("logged in", "account", username, "drive", driveID,
				"attempt", attempt, "lifetime_attempts", lifetime)
			s.notifier.AccountLoggedIn(username, attempt)

			s.refreshPoints(ctx, username, result.Token)
			s.startLoops(username)
			return
		}

		s.registry.SetStatus(username, models.StatusFailed)
		s.metrics.RecordLoginAttempt("failure")
		if err != nil {
			s.logger.Warn("login attempt failed", "account", username, "drive", driveID,
				"attempt", attempt, "error", err.Error())
		} else {
			rejected := &errors.ErrCredentialRejected{Message: result.Message}
			s.logger.Warn("login rejected", "account", username, "drive", driveID,
				"attempt", attempt, "error", rejected.Error())
		}

		if attempt < s.config.MaxLoginAttempts {
			select {
			case <-ctx.Done():
				s.registry.SetStatus(username, models.StatusFailed)
				return
			case <-time.After(s.config.RetryDelay):
			}
		}
	}

	s.registry.SetStatus(username, models.StatusFailed)
	s.metrics.RecordLoginDrive("failure")
	s.updateStatusGauges()
	s.logger.Error("login drive exhausted", "account", username, "drive", driveID,
		"attempts", s.config.MaxLoginAttempts)
	s.notifier.AccountFailed(username, s.config.MaxLoginAttempts)
}

// startLoops starts the keepalive and expiry loops for an account,
// replacing any loops from a previous session.
func (s *Scheduler) startLoops(username string) {
	s.mu.Lock()
	root := s.rootCtx
	if root == nil {
		root = context.Background()
	}
	if cancel, ok := s.loops[username]; ok {
		cancel()
	}
	loopCtx, cancel := context.WithCancel(root)
	s.loops[username] = cancel
	s.mu.Unlock()

	s.wg.Add(2)
	go s.keepAliveLoop(loopCtx, username)
	go s.expiryLoop(loopCtx, username)
}

func (s *Scheduler) keepAliveLoop(ctx context.Context, username string) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.KeepAliveInterval)
	defer ticker.Stop()

	// First ping goes out right away, fire-and-forget: a failure here
	// is recorded but only the ticks below can trigger a re-login.
	if acc, ok := s.registry.Lookup(username); ok && acc.Status == models.StatusLoggedIn {
		alive, err := s.api.SendKeepAlive(ctx, username, acc.Token)
		sent := err == nil && alive
		s.registry.RecordKeepAlive(username, sent)
		s.metrics.RecordKeepAlive(sent)
		if err != nil {
			s.logger.Warn("initial keepalive failed", "account", username, "error", err.Error())
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.keepAliveTick(ctx, username)
		}
	}
}

// keepAliveTick runs one keepalive interval: the expiry check comes
// first so an aging token is renewed even while keepalives are healthy,
// then the ping itself. The points refresh fires on every PointsEvery-th
// keepalive by the account's cumulative counter, so the cadence survives
// loop restarts.
func (s *Scheduler) keepAliveTick(ctx context.Context, username string) {
	acc, ok := s.registry.Lookup(username)
	if !ok || acc.Status != models.StatusLoggedIn {
		return
	}

	if s.registry.IsTokenExpiringSoon(username) {
		s.logger.Info("token expiring soon", "account", username)
		s.notifier.TokenExpiring(username)
		s.ensureSession(username, "expiry")
		return
	}

	alive, err := s.api.SendKeepAlive(ctx, username, acc.Token)
	if err != nil {
		// A transport failure says nothing about the session; keep the
		// token and let the next tick or the expiry check decide.
		s.registry.RecordKeepAlive(username, false)
		s.metrics.RecordKeepAlive(false)
		s.logger.Warn("keepalive failed", "account", username, "error", err.Error())
		return
	}

	s.registry.RecordKeepAlive(username, alive)
	s.metrics.RecordKeepAlive(alive)
	if !alive {
		s.logger.Warn("keepalive not acknowledged", "account", username)
		s.ensureSession(username, "keepalive")
		return
	}

	s.logger.Debug("keepalive ok", "account", username)

	if cur, ok := s.registry.Lookup(username); ok && cur.Stats.Total%s.config.PointsEvery == 0 {
		s.refreshPoints(ctx, username, acc.Token)
	}
}

func (s *Scheduler) refreshPoints(ctx context.Context, username, token string) {
	points, err := s.api.FetchPoints(ctx, token)
	if err != nil {
		s.logger.Warn("points refresh failed", "account", username, "error", err.Error())
		return
	}
	if points == nil {
		// Unrecognized upstream shape; keep the previous snapshot.
		s.logger.Debug("points response unrecognized", "account", username)
		return
	}

	s.registry.ApplyPoints(username, points)
	s.metrics.SetPoints(username, "total", points.Total)
	s.logger.Info("points refreshed", "account", username, "points", points.Total)
}

func (s *Scheduler) expiryLoop(ctx context.Context, username string) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.ExpiryCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.registry.IsTokenExpiringSoon(username) {
				s.logger.Info("token expiring soon", "account", username)
				s.notifier.TokenExpiring(username)
				s.ensureSession(username, "expiry")
			}
		}
	}
}

// ensureSession starts a re-login drive for the account unless one is
// already in flight. The drive runs on the scheduler's root context so
// it survives the loop tick that requested it.
func (s *Scheduler) ensureSession(username, trigger string) {
	s.mu.Lock()
	if s.relogins[username] {
		s.mu.Unlock()
		return
	}
	s.relogins[username] = true
	root := s.rootCtx
	s.mu.Unlock()

	if root == nil {
		root = context.Background()
	}

	s.metrics.RecordRelogin(trigger)
	s.registry.PrepareForRelogin(username)
	s.updateStatusGauges()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.relogins, username)
			s.mu.Unlock()
		}()
		s.DriveLogin(root, username)
	}()
}

func (s *Scheduler) persistBundle(bundle *models.CredentialBundle) {
	if s.store == nil || bundle == nil {
		return
	}
	if err := s.store.Append(bundle); err != nil {
		s.logger.Warn("credential persistence failed", "account", bundle.Username, "error", err.Error())
	}
}

func (s *Scheduler) updateStatusGauges() {
	for _, status := range []models.AccountStatus{
		models.StatusIdle, models.StatusLoggingIn, models.StatusLoggedIn, models.StatusFailed,
	} {
		s.metrics.SetAccountStatus(string(status), s.registry.CountByStatus(status))
	}
}

// Stop cancels every per-account loop and waits for in-flight work.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for _, cancel := range s.loops {
		cancel()
	}
	s.loops = make(map[string]context.CancelFunc)
	s.mu.Unlock()

	s.wg.Wait()
}
