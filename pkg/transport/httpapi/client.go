// Package httpapi talks to an enrollment verifier over its JSON HTTP API.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/allsmog/zkekyc-go/pkg/device"
	"github.com/allsmog/zkekyc-go/pkg/logging"
	"github.com/allsmog/zkekyc-go/pkg/protocol"
)

const (
	challengePath = "/api/challenge"
	enrollPath    = "/api/enroll"
	verifyPath    = "/api/verify"

	// DefaultTimeout bounds a single request.
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 1 << 20
)

// Client implements device.Transport.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ device.Transport = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the verifier at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid verifier url %q", baseURL)
	}
	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDiscard(c.logger)
	return c, nil
}

// IssueChallenge implements device.Transport.
func (c *Client) IssueChallenge(ctx context.Context) (string, error) {
	status, body, err := c.do(ctx, http.MethodGet, challengePath, nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("%w: challenge: HTTP %d: %s", device.ErrTransport, status, detail(body))
	}

	var resp protocol.ChallengeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: challenge: failed to parse response: %v", device.ErrTransport, err)
	}
	if resp.SessionID == "" {
		return "", fmt.Errorf("%w: challenge: empty session id", device.ErrTransport)
	}
	return resp.SessionID, nil
}

// SubmitEnrollment implements device.Transport.
func (c *Client) SubmitEnrollment(ctx context.Context, p *protocol.EnrollmentPayload) (*device.SubmitResult, error) {
	return c.submit(ctx, enrollPath, p)
}

// SubmitVerification implements device.Transport.
func (c *Client) SubmitVerification(ctx context.Context, p *protocol.VerificationPayload, sessionID string) (*device.SubmitResult, error) {
	return c.submit(ctx, verifyPath+"?sessionId="+url.QueryEscape(sessionID), p)
}

func (c *Client) submit(ctx context.Context, path string, payload any) (*device.SubmitResult, error) {
	status, body, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}

	if status < 200 || status >= 300 {
		c.logger.Debug("verifier refused request", "path", logPath(path), "status", status)
		return &device.SubmitResult{Accepted: false, Detail: detail(body)}, nil
	}

	var resp protocol.SubmitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", device.ErrTransport, err)
	}
	return &device.SubmitResult{
		Accepted:     resp.Success,
		UserID:       resp.UserID,
		SessionToken: resp.SessionToken,
		Detail:       resp.Detail,
	}, nil
}

// do sends one request and returns the status and body. Only transport
// level failures are errors.
func (c *Client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, nil, ctxErr
		}
		return 0, nil, fmt.Errorf("%w: %v", device.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: failed to read response: %v", device.ErrTransport, err)
	}

	c.logger.Debug("verifier request",
		"method", method,
		"path", logPath(path),
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)
	return resp.StatusCode, body, nil
}

// logPath drops the query so session ids stay out of logs.
func logPath(path string) string {
	return strings.SplitN(path, "?", 2)[0]
}

// detail extracts {"detail": ...} from an error body, falling back to the
// raw text.
func detail(body []byte) string {
	var e protocol.ErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Detail != "" {
		return e.Detail
	}
	return strings.TrimSpace(string(body))
}
