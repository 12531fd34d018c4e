package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	githubAPIBase = "https://api.github.com"

	// Retry configuration for transient GitHub failures.
	githubMaxRetries  = 3
	githubBaseBackoff = 5 * time.Second

	// Responses above this size arrive without inline content and need
	// a follow-up fetch via the raw media type.
	githubInlineContentLimit = 1 << 20
)

// GitHubClient implements Client against the GitHub contents API.
// Transient failures (403 rate limits, 5xx) are retried with doubling
// backoff; rate-limit reset headers are honored before retrying.
type GitHubClient struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// GitHubOption configures a GitHubClient.
type GitHubOption func(*GitHubClient)

// WithBaseURL points the client at a different API host, used for
// GitHub Enterprise and for tests.
func WithBaseURL(base string) GitHubOption {
	return func(c *GitHubClient) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) GitHubOption {
	return func(c *GitHubClient) {
		c.httpClient = hc
	}
}

// NewGitHubClient creates a contents-API client. An empty token sends
// unauthenticated requests, subject to the anonymous rate limit.
func NewGitHubClient(token string, logger *zap.Logger, opts ...GitHubOption) *GitHubClient {
	c := &GitHubClient{
		token:   token,
		baseURL: githubAPIBase,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type contentsEntry struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Type     string `json:"type"`
	Size     int64  `json:"size"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// ListTree returns the immediate children of dir on ref.
func (c *GitHubClient) ListTree(ctx context.Context, repo, ref, dir string) ([]TreeEntry, error) {
	body, err := c.get(ctx, c.contentsURL(repo, ref, dir))
	if err != nil {
		return nil, fmt.Errorf("list %s/%s: %w", repo, dir, err)
	}

	var entries []contentsEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		// A single object instead of an array means dir named a file.
		var single contentsEntry
		if jerr := json.Unmarshal(body, &single); jerr == nil {
			return []TreeEntry{{Path: single.Path, Type: single.Type, Size: single.Size}}, nil
		}
		return nil, fmt.Errorf("decode listing for %s/%s: %w", repo, dir, err)
	}

	out := make([]TreeEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, TreeEntry{Path: e.Path, Type: e.Type, Size: e.Size})
	}
	return out, nil
}

// ReadFile returns the decoded content of path on ref.
func (c *GitHubClient) ReadFile(ctx context.Context, repo, ref, path string) (string, error) {
	body, err := c.get(ctx, c.contentsURL(repo, ref, path))
	if err != nil {
		return "", fmt.Errorf("read %s/%s: %w", repo, path, err)
	}

	var entry contentsEntry
	if err := json.Unmarshal(body, &entry); err != nil {
		return "", fmt.Errorf("decode content for %s/%s: %w", repo, path, err)
	}

	switch entry.Encoding {
	case "base64":
		decoded, err := base64.StdEncoding.DecodeString(
			strings.ReplaceAll(entry.Content, "\n", ""))
		if err != nil {
			return "", fmt.Errorf("decode base64 for %s/%s: %w", repo, path, err)
		}
		return string(decoded), nil
	case "", "none":
		if entry.Size > githubInlineContentLimit {
			return c.readRaw(ctx, repo, ref, path)
		}
		return entry.Content, nil
	default:
		return "", fmt.Errorf("unsupported content encoding %q for %s/%s", entry.Encoding, repo, path)
	}
}

// readRaw fetches file content with the raw media type, used for files
// too large for the JSON contents response.
func (c *GitHubClient) readRaw(ctx context.Context, repo, ref, path string) (string, error) {
	u := c.contentsURL(repo, ref, path)
	body, err := c.doWithRetry(ctx, u, "application/vnd.github.raw+json")
	if err != nil {
		return "", fmt.Errorf("read raw %s/%s: %w", repo, path, err)
	}
	return string(body), nil
}

func (c *GitHubClient) contentsURL(repo, ref, path string) string {
	path = strings.TrimLeft(path, "/")
	u := fmt.Sprintf("%s/repos/%s/contents/%s", c.baseURL, repo, escapePath(path))
	if ref != "" {
		u += "?ref=" + url.QueryEscape(ref)
	}
	return u
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func (c *GitHubClient) get(ctx context.Context, u string) ([]byte, error) {
	return c.doWithRetry(ctx, u, "application/vnd.github+json")
}

// doWithRetry performs a GET, honoring rate-limit reset headers and
// retrying transient failures with doubling backoff (5s, 10s, 20s).
func (c *GitHubClient) doWithRetry(ctx context.Context, u, accept string) ([]byte, error) {
	var lastErr error
	backoff := githubBaseBackoff

	for attempt := 0; attempt <= githubMaxRetries; attempt++ {
		body, retryAfter, err := c.doOnce(ctx, u, accept)
		if err == nil {
			return body, nil
		}
		if !isTransient(err) {
			return nil, err
		}
		lastErr = err
		if attempt == githubMaxRetries {
			break
		}

		// A rate-limit response says exactly how long to wait; it
		// replaces the generic backoff for this retry.
		wait := backoff
		if retryAfter > 0 {
			wait = retryAfter
		}
		c.logger.Warn("retrying github request",
			zap.String("url", u),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(lastErr))
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
		backoff *= 2
	}

	return nil, fmt.Errorf("%w: %v", ErrRateLimited, lastErr)
}

type transientError struct {
	status int
	body   string
}

func (e *transientError) Error() string {
	return fmt.Sprintf("github api status %d: %s", e.status, e.body)
}

func isTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

func (c *GitHubClient) doOnce(ctx context.Context, u, accept string) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, 0, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, 0, ErrNotFound
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return nil, rateLimitWait(resp.Header), &transientError{status: resp.StatusCode, body: truncate(body)}
	case resp.StatusCode >= 500:
		return nil, 0, &transientError{status: resp.StatusCode, body: truncate(body)}
	default:
		return nil, 0, fmt.Errorf("github api status %d: %s", resp.StatusCode, truncate(body))
	}
}

// rateLimitWait derives a wait duration from rate-limit headers,
// returning 0 when the response carries none.
func rateLimitWait(h http.Header) time.Duration {
	if remaining := h.Get("X-RateLimit-Remaining"); remaining == "0" {
		if reset, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64); err == nil {
			wait := time.Until(time.Unix(reset, 0))
			if wait > 0 {
				return wait
			}
		}
	}
	if ra := h.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

func truncate(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
