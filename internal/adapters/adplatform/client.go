package adplatform

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/frostdev-ops/adpilot-backend-go/internal/core/campaigns"
	"github.com/frostdev-ops/adpilot-backend-go/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout  = 15 * time.Second
	maxErrorBody    = 4096
	maxListPages    = 100
	campaignsPath   = "/v1/campaigns"
	tracerNamespace = "github.com/frostdev-ops/adpilot-backend-go/internal/adapters/adplatform"
)

// Config contains ad platform client configuration
type Config struct {
	BaseURL      string        `mapstructure:"base_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	TokenURL     string        `mapstructure:"token_url"`
	Scopes       []string      `mapstructure:"scopes"`
	AccountID    string        `mapstructure:"account_id"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RateLimit    float64       `mapstructure:"rate_limit"`
	RateBurst    int           `mapstructure:"rate_burst"`
	PageSize     int           `mapstructure:"page_size"`

	Retry          errors.RetryPolicy          `mapstructure:"retry"`
	CircuitBreaker errors.CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// APIError is returned for non-2xx platform responses
type APIError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ad platform returned %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed if repeated
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// RequestRecorder receives a measurement for every platform call
type RequestRecorder interface {
	RecordPlatformRequest(operation string, success bool)
}

// Client is the REST client for the ad platform. It implements campaigns.AdPlatform
// and campaigns.CreativeSwitcher.
type Client struct {
	baseURL    *url.URL
	accountID  string
	pageSize   int
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *errors.CircuitBreaker
	retry      errors.RetryPolicy
	recorder   RequestRecorder
	tracer     trace.Tracer
	logger     *logrus.Logger
}

var (
	_ campaigns.AdPlatform       = (*Client)(nil)
	_ campaigns.CreativeSwitcher = (*Client)(nil)
)

// NewClient creates a platform client. OAuth2 client credentials are used when a
// client id is configured.
func NewClient(config Config, recorder RequestRecorder, logger *logrus.Logger) (*Client, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if config.BaseURL == "" {
		return nil, fmt.Errorf("ad platform base_url is required")
	}
	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid ad platform base_url: %w", err)
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 10
	}
	if config.RateBurst <= 0 {
		config.RateBurst = 1
	}
	if config.PageSize <= 0 {
		config.PageSize = 200
	}
	if config.Retry.MaxAttempts <= 0 {
		config.Retry = errors.DefaultRetryPolicy()
	}
	if config.CircuitBreaker.Name == "" {
		config.CircuitBreaker.Name = "ad_platform"
	}
	config.CircuitBreaker.Logger = logger

	httpClient := &http.Client{Timeout: config.Timeout}
	if config.ClientID != "" {
		if config.TokenURL == "" {
			return nil, fmt.Errorf("ad platform token_url is required with client_id")
		}
		oauth := &clientcredentials.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			TokenURL:     config.TokenURL,
			Scopes:       config.Scopes,
		}
		httpClient = oauth.Client(context.Background())
		httpClient.Timeout = config.Timeout
	}

	return &Client{
		baseURL:    base,
		accountID:  config.AccountID,
		pageSize:   config.PageSize,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
		breaker:    errors.NewCircuitBreaker(config.CircuitBreaker),
		retry:      config.Retry,
		recorder:   recorder,
		tracer:     otel.Tracer(tracerNamespace),
		logger:     logger,
	}, nil
}

type listResponse struct {
	Campaigns     []campaigns.Campaign `json:"campaigns"`
	NextPageToken string               `json:"next_page_token"`
}

// ListCampaigns fetches every page of campaigns
func (c *Client) ListCampaigns(ctx context.Context) ([]campaigns.Campaign, error) {
	var all []campaigns.Campaign
	pageToken := ""

	for page := 0; page < maxListPages; page++ {
		query := url.Values{}
		query.Set("page_size", fmt.Sprint(c.pageSize))
		if c.accountID != "" {
			query.Set("account_id", c.accountID)
		}
		if pageToken != "" {
			query.Set("page_token", pageToken)
		}

		var resp listResponse
		err := errors.Retry(ctx, c.retry, c.logger, "list_campaigns", isRetryable, func(ctx context.Context) error {
			resp = listResponse{}
			return c.do(ctx, "list_campaigns", http.MethodGet, campaignsPath, query, nil, &resp)
		})
		if err != nil {
			return nil, err
		}

		all = append(all, resp.Campaigns...)
		if resp.NextPageToken == "" {
			return all, nil
		}
		pageToken = resp.NextPageToken
	}

	return nil, fmt.Errorf("campaign listing exceeded %d pages", maxListPages)
}

// PauseCampaign pauses delivery of a campaign
func (c *Client) PauseCampaign(ctx context.Context, campaignID string) error {
	return c.do(ctx, "pause_campaign", http.MethodPost, campaignPath(campaignID, "pause"), nil, nil, nil)
}

// ResumeCampaign resumes delivery of a paused campaign
func (c *Client) ResumeCampaign(ctx context.Context, campaignID string) error {
	return c.do(ctx, "resume_campaign", http.MethodPost, campaignPath(campaignID, "resume"), nil, nil, nil)
}

// UpdateCampaignBudget sets the daily budget of a campaign
func (c *Client) UpdateCampaignBudget(ctx context.Context, campaignID string, dailyBudget float64) error {
	body := map[string]float64{"daily_budget": dailyBudget}
	return c.do(ctx, "update_budget", http.MethodPatch, campaignPath(campaignID, "budget"), nil, body, nil)
}

// EnableBackupCreative switches a campaign to its backup creative
func (c *Client) EnableBackupCreative(ctx context.Context, campaignID string) error {
	return c.do(ctx, "enable_backup_creative", http.MethodPost, campaignPath(campaignID, "creatives", "backup"), nil, nil, nil)
}

// BreakerMetrics exposes circuit breaker state for the health endpoint
func (c *Client) BreakerMetrics() map[string]interface{} {
	return c.breaker.GetMetrics()
}

func campaignPath(campaignID string, parts ...string) string {
	segments := append([]string{campaignsPath, url.PathEscape(campaignID)}, parts...)
	return strings.Join(segments, "/")
}

func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, body, out interface{}) error {
	ctx, span := c.tracer.Start(ctx, "adplatform."+operation, trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	))
	defer span.End()

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		return c.send(ctx, method, path, query, body, out)
	}, countsAsFailure)

	if c.recorder != nil {
		c.recorder.RecordPlatformRequest(operation, err == nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.WithFields(logrus.Fields{
			"operation": operation,
			"path":      path,
		}).WithError(err).Debug("Ad platform request failed")
		return err
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	target := *c.baseURL
	target.Path = c.baseURL.Path + path
	target.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ad platform request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode ad platform response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	message := ""
	if json.Unmarshal(data, &payload) == nil {
		message = payload.Message
		if message == "" {
			message = payload.Error
		}
	}
	if message == "" {
		message = strings.TrimSpace(string(data))
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: message}
}

// isRetryable retries server-side and transport failures, never client errors
func isRetryable(err error) bool {
	if stderrors.Is(err, errors.ErrCircuitOpen) || stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return true
}

// countsAsFailure keeps 4xx responses from tripping the breaker
func countsAsFailure(err error) bool {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return !stderrors.Is(err, context.Canceled)
}
