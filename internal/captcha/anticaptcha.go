// Package captcha solves puzzle images through the Anti-Captcha service.
package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dawnkeeper/dawnkeeper/internal/errors"
	"github.com/dawnkeeper/dawnkeeper/internal/logging"
)

// Solver turns a base64 puzzle image into its text answer.
type Solver interface {
	Solve(ctx context.Context, imageBase64 string) (string, error)
}

// Config contains Anti-Captcha client configuration.
type Config struct {
	BaseURL      string
	APIKey       string
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// DefaultConfig returns the default Anti-Captcha configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:      "https://api.anti-captcha.com",
		PollInterval: 5 * time.Second,
		PollTimeout:  2 * time.Minute,
	}
}

// Client is an Anti-Captcha API client implementing Solver.
type Client struct {
	config Config
	http   *http.Client
	logger *logging.Logger
}

var _ Solver = (*Client)(nil)

// NewClient creates an Anti-Captcha client.
func NewClient(config Config, logger *logging.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultConfig().BaseURL
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	if config.PollTimeout <= 0 {
		config.PollTimeout = DefaultConfig().PollTimeout
	}
	return &Client{
		config: config,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

type createTaskRequest struct {
	ClientKey string    `json:"clientKey"`
	Task      imageTask `json:"task"`
}

type imageTask struct {
	Type      string `json:"type"`
	Body      string `json:"body"`
	Phrase    bool   `json:"phrase"`
	Case      bool   `json:"case"`
	Numeric   int    `json:"numeric"`
	Math      bool   `json:"math"`
	MinLength int    `json:"minLength"`
	MaxLength int    `json:"maxLength"`
}

type createTaskResponse struct {
	ErrorID          int    `json:"errorId"`
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
	TaskID           int64  `json:"taskId"`
}

type taskResultRequest struct {
	ClientKey string `json:"clientKey"`
	TaskID    int64  `json:"taskId"`
}

type taskResultResponse struct {
	ErrorID          int    `json:"errorId"`
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
	Status           string `json:"status"`
	Solution         struct {
		Text string `json:"text"`
	} `json:"solution"`
}

// Solve submits the image and polls until the service produces an answer,
// the poll timeout elapses, or ctx is canceled.
func (c *Client) Solve(ctx context.Context, imageBase64 string) (string, error) {
	if imageBase64 == "" {
		return "", &errors.ErrChallengeUnsolved{Reason: "empty puzzle image"}
	}

	taskID, err := c.createTask(ctx, imageBase64)
	if err != nil {
		return "", err
	}

	c.logger.Debug("captcha task created", "task_id", taskID)

	deadline := time.NewTimer(c.config.PollTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline.C:
			return "", &errors.ErrChallengeUnsolved{Reason: "solver timed out"}
		case <-ticker.C:
			text, ready, err := c.taskResult(ctx, taskID)
			if err != nil {
				return "", err
			}
			if ready {
				return text, nil
			}
		}
	}
}

func (c *Client) createTask(ctx context.Context, imageBase64 string) (int64, error) {
	req := createTaskRequest{
		ClientKey: c.config.APIKey,
		Task: imageTask{
			Type:      "ImageToTextTask",
			Body:      imageBase64,
			Case:      true,
			MinLength: 6,
			MaxLength: 6,
		},
	}

	var resp createTaskResponse
	if err := c.post(ctx, "/createTask", req, &resp); err != nil {
		return 0, err
	}
	if resp.ErrorID != 0 {
		return 0, &errors.ErrChallengeUnsolved{
			Reason: fmt.Sprintf("createTask: %s (%s)", resp.ErrorDescription, resp.ErrorCode),
		}
	}
	return resp.TaskID, nil
}

func (c *Client) taskResult(ctx context.Context, taskID int64) (string, bool, error) {
	var resp taskResultResponse
	if err := c.post(ctx, "/getTaskResult", taskResultRequest{ClientKey: c.config.APIKey, TaskID: taskID}, &resp); err != nil {
		return "", false, err
	}
	if resp.ErrorID != 0 {
		return "", false, &errors.ErrChallengeUnsolved{
			Reason: fmt.Sprintf("getTaskResult: %s (%s)", resp.ErrorDescription, resp.ErrorCode),
		}
	}
	if resp.Status != "ready" {
		return "", false, nil
	}
	if resp.Solution.Text == "" {
		return "", false, &errors.ErrChallengeUnsolved{Reason: "solver returned empty answer"}
	}
	return resp.Solution.Text, true, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &errors.ErrTransport{Op: path, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &errors.ErrTransport{Op: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &errors.ErrTransport{Op: path, Err: err}
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &errors.ErrMalformedResponse{Op: path, ContentType: resp.Header.Get("Content-Type")}
	}
	return nil
}
