package fallback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"gitlab.com/chathy/api/chathy-command-engine/internal/apperrors"
	"gitlab.com/chathy/api/chathy-command-engine/pkg/logger"
)

// Bridge forwards free-text messages that no command rule matched to the
// conversational backend and returns its answer verbatim.
type Bridge struct {
	baseURL     string
	chatPath    string
	clearedPath string
	timeout     time.Duration
	maxRetries  uint64
	retryDelay  time.Duration
	client      *http.Client
}

type chatRequest struct {
	Message    string `json:"message"`
	CustomerID string `json:"customer_id"`
}

type chatResponse struct {
	Response string `json:"response"`
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithHTTPClient overrides the underlying client, used in tests.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Bridge) { b.client = c }
}

// NewBridge builds a bridge against the backend base URL. maxRetries counts
// additional attempts after the first, and only network failures are retried.
func NewBridge(baseURL, chatPath, clearedPath string, timeout time.Duration, maxRetries uint64, retryDelay time.Duration, opts ...Option) *Bridge {
	b := &Bridge{
		baseURL:     baseURL,
		chatPath:    chatPath,
		clearedPath: clearedPath,
		timeout:     timeout,
		maxRetries:  maxRetries,
		retryDelay:  retryDelay,
		client:      &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Ask sends the message to the backend chat endpoint and returns the reply
// text. Errors are classified so the caller can pick the right user-facing
// template: ErrUnavailable when the backend could not be reached, and
// ErrBadResponse when it answered with an error status or an invalid body.
func (b *Bridge) Ask(ctx context.Context, tenantID, message string) (string, error) {
	return b.post(ctx, b.chatPath, chatRequest{Message: message, CustomerID: tenantID})
}

// NotifyCleared tells the backend to drop its conversation memory for the
// tenant. Best effort, the reply text is ignored.
func (b *Bridge) NotifyCleared(ctx context.Context, tenantID string) error {
	if b.clearedPath == "" {
		return nil
	}
	_, err := b.post(ctx, b.clearedPath, chatRequest{Message: "", CustomerID: tenantID})
	return err
}

func (b *Bridge) post(ctx context.Context, path string, payload chatRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshaling fallback request: %v", apperrors.ErrBadResponse, err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	operation := func() (string, error) {
		reply, err := b.doOnce(ctx, path, body)
		if err != nil && !apperrors.IsUnavailable(err) {
			// Backend answered badly, retrying will not change that.
			return "", backoff.Permanent(err)
		}
		return reply, err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(b.retryDelay), b.maxRetries), ctx)

	reply, err := backoff.RetryNotifyWithData(operation, policy, func(err error, d time.Duration) {
		logger.FromContext(ctx).Warn("Fallback backend request failed, retrying",
			zap.String("path", path),
			zap.Duration("retry_in", d),
			zap.Error(err))
	})
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return "", perm.Err
		}
		return "", err
	}
	return reply, nil
}

func (b *Bridge) doOnce(ctx context.Context, path string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: building fallback request: %v", apperrors.ErrBadResponse, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: fallback backend returned status %d", apperrors.ErrBadResponse, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decoding fallback response: %v", apperrors.ErrBadResponse, err)
	}
	if parsed.Response == "" {
		return "", fmt.Errorf("%w: fallback response missing response field", apperrors.ErrBadResponse)
	}
	return parsed.Response, nil
}

// classifyTransportError maps client-side failures. Connection refusals, DNS
// failures and timeouts mean the backend is unreachable, everything else on
// this path still never reached a healthy backend.
func classifyTransportError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return fmt.Errorf("%w: fallback backend timed out: %v", apperrors.ErrUnavailable, err)
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: fallback backend timed out: %v", apperrors.ErrUnavailable, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: fallback backend timed out: %v", apperrors.ErrUnavailable, err)
	}
	return fmt.Errorf("%w: reaching fallback backend: %v", apperrors.ErrUnavailable, err)
}
