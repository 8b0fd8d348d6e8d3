package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// maxResponseBody bounds how much of a remote response is read and stored.
const maxResponseBody = 64 << 10

// transientErrorCodes are remote error codes that signal a temporary condition even on a 4xx.
var transientErrorCodes = map[string]struct{}{
	"rate_limited":            {},
	"lock_timeout":            {},
	"temporarily_unavailable": {},
}

// DeliveryError describes a failed remote call and whether it may be retried.
type DeliveryError struct {
	Transient  bool
	StatusCode int
	Code       string
	Message    string
	Body       string
	Err        error
}

func (e *DeliveryError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("remote call failed: %v", e.Err)
	case e.Code != "":
		return fmt.Sprintf("remote returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("remote returned %d: %s", e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("remote returned %d", e.StatusCode)
	}
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a retryable delivery failure.
func IsTransient(err error) bool {
	var deliveryErr *DeliveryError
	if errors.As(err, &deliveryErr) {
		return deliveryErr.Transient
	}
	return false
}

type remoteErrorBody struct {
	ErrorCode string `json:"error_code"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// Classify turns a non-2xx response into a DeliveryError.
// 408, 425, 429 and 5xx are transient, as is any 4xx whose body carries a transient error code.
func Classify(statusCode int, body []byte) *DeliveryError {
	deliveryErr := &DeliveryError{StatusCode: statusCode, Body: string(body)}

	var parsed remoteErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		deliveryErr.Code = parsed.ErrorCode
		if deliveryErr.Code == "" {
			deliveryErr.Code = parsed.Code
		}
		deliveryErr.Message = parsed.Message
	}
	if deliveryErr.Message == "" {
		deliveryErr.Message = strings.TrimSpace(string(body))
	}

	switch {
	case statusCode == http.StatusRequestTimeout,
		statusCode == http.StatusTooEarly,
		statusCode == http.StatusTooManyRequests,
		statusCode >= 500:
		deliveryErr.Transient = true
	default:
		_, deliveryErr.Transient = transientErrorCodes[strings.ToLower(deliveryErr.Code)]
	}

	return deliveryErr
}

// RemoteClientConfig configures a RemoteClient.
type RemoteClientConfig struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	RatePerSec float64
	RateBurst  int
	HTTPClient *http.Client
}

// RemoteClient performs rate limited writes against the remote data API.
type RemoteClient struct {
	baseURL    string
	token      string
	timeout    time.Duration
	limiter    *rate.Limiter
	httpClient *http.Client
}

// NewRemoteClient creates a RemoteClient. A non-positive rate disables throttling.
func NewRemoteClient(cfg RemoteClientConfig) *RemoteClient {
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &RemoteClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		timeout:    cfg.Timeout,
		limiter:    rate.NewLimiter(limit, burst),
		httpClient: httpClient,
	}
}

// Send executes the request and returns the response body on success.
// Failures are always reported as *DeliveryError.
func (c *RemoteClient) Send(ctx context.Context, req *RemoteRequest, idempotencyKey string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", &DeliveryError{Transient: true, Err: err}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := c.newRequest(ctx, req, idempotencyKey)
	if err != nil {
		return "", &DeliveryError{Transient: false, Err: err}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &DeliveryError{Transient: true, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", &DeliveryError{Transient: true, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return string(body), nil
	}
	return "", Classify(resp.StatusCode, body)
}

func (c *RemoteClient) newRequest(ctx context.Context, req *RemoteRequest, idempotencyKey string) (*http.Request, error) {
	endpoint := fmt.Sprintf("%s/obj/%s/%s", c.baseURL, url.PathEscape(req.ResourceType), url.PathEscape(req.ResourceID))

	var body io.Reader
	if payload := req.Body(); payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}
	return httpReq, nil
}
