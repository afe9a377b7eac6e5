package scheduler

import (
	"context"
	"fmt"

	"github.com/dawnkeeper/dawnkeeper/internal/captcha"
	"github.com/dawnkeeper/dawnkeeper/internal/errors"
	"github.com/dawnkeeper/dawnkeeper/internal/logging"
	"github.com/dawnkeeper/dawnkeeper/internal/metrics"
	"github.com/dawnkeeper/dawnkeeper/internal/models"
)

// API is the slice of the rewards client the scheduler drives.
type API interface {
	FetchChallenge(ctx context.Context) (models.ChallengeResult, error)
	FetchChallengeImage(ctx context.Context, puzzleID string) (models.ChallengeImageResult, error)
	SubmitLogin(ctx context.Context, username, password, puzzleID, answer string) (models.LoginResult, error)
	SendKeepAlive(ctx context.Context, username, token string) (bool, error)
	FetchPoints(ctx context.Context, token string) (*models.PointsData, error)
}

// Authenticator performs one complete login attempt: obtain a
// challenge, solve it, submit credentials.
type Authenticator struct {
	api     API
	solver  captcha.Solver
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewAuthenticator creates an authenticator.
func NewAuthenticator(api API, solver captcha.Solver, m *metrics.Metrics, logger *logging.Logger) *Authenticator {
	return &Authenticator{api: api, solver: solver, metrics: m, logger: logger}
}

// Login runs one attempt for the given credentials. A rejected login is
// a result with Success false; transport trouble, unsolvable challenges
// and panics inside the flow all come back as errors so a retry loop
// can treat every failure mode uniformly.
func (a *Authenticator) Login(ctx context.Context, username, password string) (result models.LoginResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = models.LoginResult{}
			err = fmt.Errorf("login attempt panicked: %v", r)
		}
	}()

	challenge, err := a.api.FetchChallenge(ctx)
	if err != nil {
		return models.LoginResult{}, err
	}
	if !challenge.Success {
		return models.LoginResult{}, &errors.ErrChallengeUnsolved{Reason: "no puzzle issued: " + challenge.Message}
	}

	image, err := a.api.FetchChallengeImage(ctx, challenge.PuzzleID)
	if err != nil {
		return models.LoginResult{}, err
	}
	if !image.Success {
		return models.LoginResult{}, &errors.ErrChallengeUnsolved{Reason: "no puzzle image: " + image.Message}
	}

	answer, err := a.solver.Solve(ctx, image.ImageBase64)
	if err != nil {
		a.metrics.RecordChallenge("failed")
		return models.LoginResult{}, err
	}

	a.metrics.RecordChallenge("solved")
	a.logger.Debug("challenge solved", "account", username, "puzzle_id", challenge.PuzzleID)

	return a.api.SubmitLogin(ctx, username, password, challenge.PuzzleID, answer)
}
