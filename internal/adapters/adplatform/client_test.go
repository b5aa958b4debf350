package adplatform

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/frostdev-ops/adpilot-backend-go/internal/core/campaigns"
	"github.com/frostdev-ops/adpilot-backend-go/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		RateLimit: 1000,
		RateBurst: 100,
		Retry:     errors.RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, BackoffFactor: 1},
		CircuitBreaker: errors.CircuitBreakerConfig{
			MaxFailures:  3,
			ResetTimeout: time.Minute,
		},
	}
}

type countingRecorder struct {
	mu    sync.Mutex
	calls map[string][]bool
}

func (r *countingRecorder) RecordPlatformRequest(operation string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[string][]bool)
	}
	r.calls[operation] = append(r.calls[operation], success)
}

func TestClient_ListCampaignsPaginates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/campaigns", r.URL.Path)
		assert.Equal(t, "acct-1", r.URL.Query().Get("account_id"))

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("page_token") {
		case "":
			_ = json.NewEncoder(w).Encode(listResponse{
				Campaigns:     []campaigns.Campaign{{ID: "c1", Status: campaigns.StatusActive, CTR: 2.5}},
				NextPageToken: "p2",
			})
		case "p2":
			_ = json.NewEncoder(w).Encode(listResponse{
				Campaigns: []campaigns.Campaign{{ID: "c2", Status: campaigns.StatusPaused}},
			})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer server.Close()

	config := testConfig(server.URL)
	config.AccountID = "acct-1"
	recorder := &countingRecorder{}
	client, err := NewClient(config, recorder, testLogger())
	require.NoError(t, err)

	list, err := client.ListCampaigns(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c1", list[0].ID)
	assert.Equal(t, 2.5, list[0].CTR)
	assert.Equal(t, campaigns.StatusPaused, list[1].Status)
	assert.Equal(t, []bool{true, true}, recorder.calls["list_campaigns"])
}

func TestClient_ListRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(listResponse{Campaigns: []campaigns.Campaign{{ID: "c1"}}})
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), nil, testLogger())
	require.NoError(t, err)

	list, err := client.ListCampaigns(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_MutationEndpoints(t *testing.T) {
	type call struct {
		method string
		path   string
		body   map[string]float64
	}
	var mu sync.Mutex
	var calls []call

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := call{method: r.Method, path: r.URL.Path}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&c.body)
		}
		mu.Lock()
		calls = append(calls, c)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), nil, testLogger())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, client.PauseCampaign(ctx, "c1"))
	require.NoError(t, client.ResumeCampaign(ctx, "c1"))
	require.NoError(t, client.UpdateCampaignBudget(ctx, "c1", 57.5))
	require.NoError(t, client.EnableBackupCreative(ctx, "c1"))

	require.Len(t, calls, 4)
	assert.Equal(t, call{method: http.MethodPost, path: "/v1/campaigns/c1/pause"}, calls[0])
	assert.Equal(t, call{method: http.MethodPost, path: "/v1/campaigns/c1/resume"}, calls[1])
	assert.Equal(t, http.MethodPatch, calls[2].method)
	assert.Equal(t, "/v1/campaigns/c1/budget", calls[2].path)
	assert.Equal(t, 57.5, calls[2].body["daily_budget"])
	assert.Equal(t, "/v1/campaigns/c1/creatives/backup", calls[3].path)
}

func TestClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"campaign not found"}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), nil, testLogger())
	require.NoError(t, err)

	err = client.PauseCampaign(context.Background(), "missing")
	var apiErr *APIError
	require.True(t, stderrors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "campaign not found", apiErr.Message)
	assert.False(t, apiErr.Retryable())
}

func TestClient_CircuitBreakerOpens(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), nil, testLogger())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.Error(t, client.PauseCampaign(context.Background(), "c1"))
	}
	err = client.PauseCampaign(context.Background(), "c1")
	assert.ErrorIs(t, err, errors.ErrCircuitOpen)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, "open", client.BreakerMetrics()["state"])
}

func TestClient_OAuthClientCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-123","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/v1/campaigns", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(listResponse{})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	config := testConfig(server.URL)
	config.ClientID = "id"
	config.ClientSecret = "secret"
	config.TokenURL = server.URL + "/oauth/token"

	client, err := NewClient(config, nil, testLogger())
	require.NoError(t, err)

	list, err := client.ListCampaigns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{}, nil, testLogger())
	assert.Error(t, err)

	_, err = NewClient(Config{BaseURL: "http://x", ClientID: "id"}, nil, testLogger())
	assert.Error(t, err)
}

func TestMockPlatform(t *testing.T) {
	ctx := context.Background()
	mock := NewMockPlatform(DemoCampaigns(time.Now())...)

	list, err := mock.ListCampaigns(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 4)

	require.NoError(t, mock.PauseCampaign(ctx, "cmp-summer-display"))
	c, ok := mock.Campaign("cmp-summer-display")
	require.True(t, ok)
	assert.Equal(t, campaigns.StatusPaused, c.Status)

	require.NoError(t, mock.UpdateCampaignBudget(ctx, "cmp-brand-search", 180))
	c, _ = mock.Campaign("cmp-brand-search")
	assert.Equal(t, 180.0, c.DailyBudget)

	require.NoError(t, mock.EnableBackupCreative(ctx, "cmp-retargeting"))
	assert.True(t, mock.BackupCreativeEnabled("cmp-retargeting"))

	var apiErr *APIError
	require.True(t, stderrors.As(mock.PauseCampaign(ctx, "nope"), &apiErr))
	assert.Equal(t, 404, apiErr.StatusCode)

	mock.FailOn(OpList, stderrors.New("platform down"))
	_, err = mock.ListCampaigns(ctx)
	assert.Error(t, err)
	mock.FailOn(OpList, nil)
	_, err = mock.ListCampaigns(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 3, mock.Calls(OpList))
}
