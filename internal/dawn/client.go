// Package dawn is the client for the Dawn rewards API.
package dawn

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dawnkeeper/dawnkeeper/internal/errors"
	"github.com/dawnkeeper/dawnkeeper/internal/logging"
	"github.com/dawnkeeper/dawnkeeper/internal/metrics"
	"github.com/dawnkeeper/dawnkeeper/internal/models"
)

const (
	puzzlePath      = "/chromeapi/dawn/v1/puzzle/get-puzzle"
	puzzleImagePath = "/chromeapi/dawn/v1/puzzle/get-puzzle-image"
	loginPath       = "/chromeapi/dawn/v1/user/login/v2"
	keepalivePath   = "/chromeapi/dawn/v1/userreward/keepalive"
	pointsPath      = "/api/atom/v1/userreferral/getpoint"
)

// loginSuccessMarker matches the upstream success message when the
// boolean flags are absent from the response.
const loginSuccessMarker = "Successfully logged in"

// Config identifies the upstream service and the extension identity
// presented to it.
type Config struct {
	BaseURL     string
	AppID       string
	ExtensionID string
	Version     string
	Timeout     time.Duration
}

// Client talks to the Dawn rewards API. All methods return typed
// results; a transport or malformed-response failure is an error, an
// upstream "no" is a result with Success false.
type Client struct {
	config  Config
	http    *RotatingClient
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewClient creates a Dawn API client.
func NewClient(config Config, m *metrics.Metrics, logger *logging.Logger) *Client {
	return &Client{
		config:  config,
		http:    NewRotatingClient(config.ExtensionID, config.Timeout),
		metrics: m,
		logger:  logger,
	}
}

type puzzleResponse struct {
	Success  bool   `json:"success"`
	PuzzleID string `json:"puzzle_id"`
	Message  string `json:"message"`
}

type puzzleImageResponse struct {
	Success   bool   `json:"success"`
	ImgBase64 string `json:"imgBase64"`
	Message   string `json:"message"`
}

type loginRequest struct {
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	Answer    string    `json:"ans"`
	AppID     string    `json:"appid"`
	LoginData loginData `json:"logindata"`
	Datetime  string    `json:"datetime"`
	Version   version   `json:"_v"`
	PuzzleID  string    `json:"puzzle_id"`
}

type loginData struct {
	Version  version `json:"_v"`
	Datetime string  `json:"datetime"`
}

type version struct {
	Version string `json:"version"`
}

type loginResponse struct {
	Status  bool   `json:"status"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Token    string `json:"token"`
		UserID   string `json:"user_id"`
		MongoID  string `json:"_id"`
		Email    string `json:"email"`
		Name     string `json:"firstname"`
		Surname  string `json:"lastname"`
		Referral string `json:"referralCode"`
		Wallet   *struct {
			Address    string `json:"address"`
			PrivateKey string `json:"privateKey"`
			Mnemonic   string `json:"mnemonic"`
			CreatedAt  string `json:"createdAt"`
		} `json:"wallet"`
	} `json:"data"`
}

type keepaliveRequest struct {
	Username    string  `json:"username"`
	ExtensionID string  `json:"extensionid"`
	Version     version `json:"_v"`
}

type keepaliveResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Success bool `json:"success"`
	} `json:"data"`
}

type pointsResponse struct {
	Status bool `json:"status"`
	Data   struct {
		RewardPoint *struct {
			Points         float64 `json:"points"`
			TwitterPoints  float64 `json:"twitter_x_id_points"`
			DiscordPoints  float64 `json:"discordid_points"`
			TelegramPoints float64 `json:"telegramid_points"`
		} `json:"rewardPoint"`
	} `json:"data"`
}

// FetchChallenge requests a fresh puzzle id.
func (c *Client) FetchChallenge(ctx context.Context) (models.ChallengeResult, error) {
	var resp puzzleResponse
	if err := c.get(ctx, puzzlePath, url.Values{"appid": {c.config.AppID}}, "", &resp); err != nil {
		return models.ChallengeResult{}, err
	}
	return models.ChallengeResult{
		Success:  resp.Success && resp.PuzzleID != "",
		PuzzleID: resp.PuzzleID,
		Message:  resp.Message,
	}, nil
}

// FetchChallengeImage downloads the puzzle image for a challenge.
func (c *Client) FetchChallengeImage(ctx context.Context, puzzleID string) (models.ChallengeImageResult, error) {
	query := url.Values{"puzzle_id": {puzzleID}, "appid": {c.config.AppID}}
	var resp puzzleImageResponse
	if err := c.get(ctx, puzzleImagePath, query, "", &resp); err != nil {
		return models.ChallengeImageResult{}, err
	}
	return models.ChallengeImageResult{
		Success:     resp.Success && resp.ImgBase64 != "",
		ImageBase64: resp.ImgBase64,
		Message:     resp.Message,
	}, nil
}

// SubmitLogin exchanges credentials and a solved challenge for a session
// token. A rejected credential or wrong answer comes back as a result
// with Success false, not as an error.
func (c *Client) SubmitLogin(ctx context.Context, username, password, puzzleID, answer string) (models.LoginResult, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	body := loginRequest{
		Username:  username,
		Password:  password,
		Answer:    answer,
		AppID:     c.config.AppID,
		LoginData: loginData{Version: version{c.config.Version}, Datetime: now},
		Datetime:  now,
		Version:   version{c.config.Version},
		PuzzleID:  puzzleID,
	}

	var resp loginResponse
	if err := c.post(ctx, loginPath, url.Values{"appid": {c.config.AppID}}, "", body, &resp); err != nil {
		return models.LoginResult{}, err
	}

	ok := resp.Status || resp.Success || strings.Contains(resp.Message, loginSuccessMarker)
	result := models.LoginResult{
		Success: ok,
		Message: resp.Message,
	}
	if !ok {
		return result, nil
	}

	result.Token = resp.Data.Token
	result.UserID = resp.Data.UserID
	if result.UserID == "" {
		result.UserID = resp.Data.MongoID
	}
	if result.Token == "" {
		return models.LoginResult{}, &errors.ErrMissingToken{}
	}

	bundle := &models.CredentialBundle{
		Username:     username,
		Token:        result.Token,
		UserID:       result.UserID,
		Email:        resp.Data.Email,
		Firstname:    resp.Data.Name,
		Lastname:     resp.Data.Surname,
		ReferralCode: resp.Data.Referral,
		CapturedAt:   time.Now().UTC(),
	}
	if w := resp.Data.Wallet; w != nil {
		bundle.Wallet = &models.Wallet{
			Address:    w.Address,
			PrivateKey: w.PrivateKey,
			Mnemonic:   w.Mnemonic,
			CreatedAt:  w.CreatedAt,
		}
	}
	result.Bundle = bundle

	return result, nil
}

// SendKeepAlive reports the session as alive. Returns whether the
// upstream acknowledged it.
func (c *Client) SendKeepAlive(ctx context.Context, username, token string) (bool, error) {
	body := keepaliveRequest{
		Username:    username,
		ExtensionID: c.config.ExtensionID,
		Version:     version{c.config.Version},
	}

	var resp keepaliveResponse
	if err := c.post(ctx, keepalivePath, url.Values{"appid": {c.config.AppID}}, token, body, &resp); err != nil {
		return false, err
	}
	return resp.Success || resp.Data.Success, nil
}

// FetchPoints retrieves the account's reward totals. An upstream
// response that lacks the reward breakdown is not an error; it yields a
// nil payload the caller must treat as "keep the previous snapshot".
func (c *Client) FetchPoints(ctx context.Context, token string) (*models.PointsData, error) {
	var resp pointsResponse
	if err := c.get(ctx, pointsPath, url.Values{"appid": {c.config.AppID}}, token, &resp); err != nil {
		return nil, err
	}

	if !resp.Status || resp.Data.RewardPoint == nil {
		return nil, nil
	}

	rp := resp.Data.RewardPoint
	return &models.PointsData{
		Total:    rp.Points,
		Twitter:  rp.TwitterPoints,
		Discord:  rp.DiscordPoints,
		Telegram: rp.TelegramPoints,
	}, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return &errors.ErrTransport{Op: path, Err: err}
	}
	return c.do(req, path, token, out)
}

func (c *Client) post(ctx context.Context, path string, query url.Values, token string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &errors.ErrTransport{Op: path, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path+"?"+query.Encode(), bytes.NewReader(payload))
	if err != nil {
		return &errors.ErrTransport{Op: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, token, out)
}

func (c *Client) do(req *http.Request, op, token string, out any) error {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordUpstreamError(op, "transport")
		return &errors.ErrTransport{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.metrics.RecordUpstreamError(op, "transport")
		return &errors.ErrTransport{Op: op, Err: err}
	}

	contentType := resp.Header.Get("Content-Type")
	if isHTMLResponse(contentType, raw) {
		// Upstream serves an HTML error page when it is down or behind a
		// challenge wall.
		c.logger.Debug("html response from upstream", "op", op, "status", resp.StatusCode)
		c.metrics.RecordUpstreamError(op, "malformed")
		return &errors.ErrMalformedResponse{Op: op, ContentType: contentType}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		c.metrics.RecordUpstreamError(op, "malformed")
		return &errors.ErrMalformedResponse{Op: op, ContentType: contentType}
	}
	return nil
}

func isHTMLResponse(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	trimmed := bytes.TrimSpace(body)
	lower := bytes.ToLower(trimmed)
	return bytes.HasPrefix(lower, []byte("<!doctype")) || bytes.HasPrefix(lower, []byte("<html"))
}
