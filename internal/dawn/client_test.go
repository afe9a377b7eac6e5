package dawn

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dkerrors "github.com/dawnkeeper/dawnkeeper/internal/errors"
	"github.com/dawnkeeper/dawnkeeper/internal/logging"
	"github.com/dawnkeeper/dawnkeeper/internal/metrics"
)

const (
	testAppID       = "67d5987fede3e379578664b6"
	testExtensionID = "fpdkjdnhkakefebpekbdhillbhonfjjp"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL:     srv.URL,
		AppID:       testAppID,
		ExtensionID: testExtensionID,
		Version:     "1.1.3",
		Timeout:     5 * time.Second,
	}, metrics.NewMetrics("test"), logging.NewLogger(logging.WithOutput(io.Discard)))
}

func TestFetchChallenge(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, puzzlePath, r.URL.Path)
		assert.Equal(t, testAppID, r.URL.Query().Get("appid"))
		assert.Equal(t, "chrome-extension://"+testExtensionID, r.Header.Get("Origin"))
		json.NewEncoder(w).Encode(map[string]any{"success": true, "puzzle_id": "pz-1"})
	}))

	res, err := client.FetchChallenge(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "pz-1", res.PuzzleID)
}

func TestFetchChallengeUpstreamNo(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "try later"})
	}))

	res, err := client.FetchChallenge(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "try later", res.Message)
}

func TestFetchChallengeImage(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, puzzleImagePath, r.URL.Path)
		assert.Equal(t, "pz-1", r.URL.Query().Get("puzzle_id"))
		json.NewEncoder(w).Encode(map[string]any{"success": true, "imgBase64": "aW1n"})
	}))

	res, err := client.FetchChallengeImage(context.Background(), "pz-1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "aW1n", res.ImageBase64)
}

func TestSubmitLogin(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, loginPath, r.URL.Path)

		var req loginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "alice@example.com", req.Username)
		assert.Equal(t, "XK29QA", req.Answer)
		assert.Equal(t, "pz-1", req.PuzzleID)
		assert.Equal(t, "1.1.3", req.Version.Version)
		assert.Equal(t, req.Datetime, req.LoginData.Datetime)

		json.NewEncoder(w).Encode(map[string]any{
			"status":  true,
			"message": "Successfully logged in!",
			"data": map[string]any{
				"token":     "tok-abc",
				"user_id":   "uid-1",
				"email":     "alice@example.com",
				"firstname": "Alice",
				"wallet": map[string]any{
					"address":    "0xabc",
					"privateKey": "deadbeef",
					"mnemonic":   "between subway",
				},
			},
		})
	}))

	res, err := client.SubmitLogin(context.Background(), "alice@example.com", "pw", "pz-1", "XK29QA")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "tok-abc", res.Token)
	assert.Equal(t, "uid-1", res.UserID)
	require.NotNil(t, res.Bundle)
	assert.Equal(t, "Alice", res.Bundle.Firstname)
	require.NotNil(t, res.Bundle.Wallet)
	assert.Equal(t, "0xabc", res.Bundle.Wallet.Address)
}

func TestSubmitLoginFallbackUserID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"message": "Successfully logged in",
			"data":    map[string]any{"token": "tok", "_id": "mongo-1"},
		})
	}))

	res, err := client.SubmitLogin(context.Background(), "a@x.com", "pw", "pz", "ans")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "mongo-1", res.UserID)
}

func TestSubmitLoginRejected(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status":  false,
			"success": false,
			"message": "Incorrect answer",
		})
	}))

	res, err := client.SubmitLogin(context.Background(), "a@x.com", "pw", "pz", "bad")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Incorrect answer", res.Message)
	assert.Empty(t, res.Token)
}

func TestSubmitLoginSuccessWithoutToken(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": true, "data": map[string]any{}})
	}))

	_, err := client.SubmitLogin(context.Background(), "a@x.com", "pw", "pz", "ans")
	require.Error(t, err)
	var missing *dkerrors.ErrMissingToken
	assert.ErrorAs(t, err, &missing)
}

func TestSendKeepAlive(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, keepalivePath, r.URL.Path)
		assert.Equal(t, "Bearer tok-abc", r.Header.Get("Authorization"))

		var req keepaliveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, testExtensionID, req.ExtensionID)

		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"success": true}})
	}))

	ok, err := client.SendKeepAlive(context.Background(), "alice@example.com", "tok-abc")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFetchPoints(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pointsPath, r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data": map[string]any{
				"rewardPoint": map[string]any{
					"points":              120.5,
					"twitter_x_id_points": 10,
					"discordid_points":    5,
					"telegramid_points":   2.5,
				},
			},
		})
	}))

	points, err := client.FetchPoints(context.Background(), "tok")
	require.NoError(t, err)
	require.NotNil(t, points)
	assert.Equal(t, 120.5, points.Total)
	assert.Equal(t, 10.0, points.Twitter)
	assert.Equal(t, 5.0, points.Discord)
	assert.Equal(t, 2.5, points.Telegram)
}

func TestFetchPointsUnrecognizedShape(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": true, "data": map[string]any{}})
	}))

	points, err := client.FetchPoints(context.Background(), "tok")
	require.NoError(t, err)
	assert.Nil(t, points)
}

func TestUpstreamErrorCounters(t *testing.T) {
	m := metrics.NewMetrics("test")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, "<html>503</html>")
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		BaseURL:     srv.URL,
		AppID:       testAppID,
		ExtensionID: testExtensionID,
		Version:     "1.1.3",
		Timeout:     5 * time.Second,
	}, m, logging.NewLogger(logging.WithOutput(io.Discard)))

	_, err := client.FetchChallenge(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamErrorsTotal.WithLabelValues(puzzlePath, "malformed")))

	srv.Close()
	_, err = client.FetchChallenge(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamErrorsTotal.WithLabelValues(puzzlePath, "transport")))
}

func TestHTMLResponseGuard(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"content type", "text/html; charset=utf-8", "<!DOCTYPE html><html></html>"},
		{"doctype body", "application/json", "<!DOCTYPE html>"},
		{"html body", "application/json", "  <html><body>503</body></html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				io.WriteString(w, tt.body)
			}))

			_, err := client.FetchChallenge(context.Background())
			require.Error(t, err)
			var malformed *dkerrors.ErrMalformedResponse
			assert.ErrorAs(t, err, &malformed)
		})
	}
}
