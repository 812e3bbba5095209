// Package fetcher performs HTTP retrieval of documentation pages with
// timeout, bounded retry, rate limiting, and content-type aware text
// extraction.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/nvnetdocs/connectx7-docs-mcp-server/internal/parser"
)

const userAgent = "connectx7-docs-mcp-server/1.0"

// ErrorKind distinguishes failures that may succeed on retry from those
// that will not.
type ErrorKind int

const (
	// KindTransient covers network failures, timeouts, and 5xx responses.
	// Retried internally up to the policy bound before being surfaced.
	KindTransient ErrorKind = iota
	// KindPermanent covers 4xx responses and malformed URLs. Never retried.
	KindPermanent
)

func (k ErrorKind) String() string {
	if k == KindPermanent {
		return "permanent"
	}
	return "transient"
}

// Error is a classified fetch failure.
type Error struct {
	Kind   ErrorKind
	Status int    // HTTP status code, 0 for network-level failures
	URL    string
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: %s error: HTTP %d", e.URL, e.Kind, e.Status)
	}
	return fmt.Sprintf("fetch %s: %s error: %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a fetch error that may succeed on retry.
func IsTransient(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == KindTransient
}

// UnsupportedContentTypeError is returned for binary or otherwise
// unindexable response bodies.
type UnsupportedContentTypeError struct {
	URL         string
	ContentType string
}

func (e *UnsupportedContentTypeError) Error() string {
	return fmt.Sprintf("fetch %s: unsupported content type %q", e.URL, e.ContentType)
}

// RetryPolicy bounds the retry behavior of a Client. It is a plain value so
// tests can supply short delays.
type RetryPolicy struct {
	MaxRetries   int           // retries after the initial attempt
	InitialDelay time.Duration // backoff before the first retry
	MaxDelay     time.Duration // cap on the backoff delay
}

// DefaultRetryPolicy returns the production policy: two retries with
// exponential backoff starting at one second, capped at thirty.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   2,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
	}
}

// Backoff returns the delay before the given retry attempt (attempt >= 1),
// doubling from InitialDelay and capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	delay := p.InitialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Document is the extracted form of a fetched page.
type Document struct {
	URL         string
	Title       string
	Text        string
	ContentType string
}

// Client fetches documentation pages over HTTP. Transient failures are
// retried per the policy; concurrent fetches are bounded by the rate limiter.
type Client struct {
	client  *http.Client
	policy  RetryPolicy
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewClient creates a fetch client with the given request timeout, retry
// policy, and concurrent-fetch bound.
func NewClient(timeout time.Duration, policy RetryPolicy, maxConcurrent int, logger zerolog.Logger) *Client {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Client{
		client:  &http.Client{Timeout: timeout},
		policy:  policy,
		limiter: rate.NewLimiter(rate.Limit(maxConcurrent), maxConcurrent),
		logger:  logger,
	}
}

// Fetch retrieves rawURL and returns the body and Content-Type header.
// 5xx responses and network errors are retried with exponential backoff up
// to the policy bound; 4xx responses and malformed URLs fail immediately
// with a permanent Error.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, "", &Error{Kind: KindPermanent, URL: rawURL, Err: fmt.Errorf("malformed URL")}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, "", fmt.Errorf("rate limiter wait failed: %w", err)
	}

	var lastErr *Error

	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug().
				Str("url", rawURL).
				Int("attempt", attempt).
				Dur("backoff", c.policy.Backoff(attempt)).
				Msg("Retrying fetch")

			select {
			case <-time.After(c.policy.Backoff(attempt)):
			case <-ctx.Done():
				return nil, "", ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, "", &Error{Kind: KindPermanent, URL: rawURL, Err: err}
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			lastErr = &Error{Kind: KindTransient, URL: rawURL, Err: err}
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = &Error{Kind: KindTransient, URL: rawURL, Err: err}
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			c.logger.Info().
				Str("url", rawURL).
				Int("status", resp.StatusCode).
				Int("content_size", len(body)).
				Msg("Fetched page")
			return body, resp.Header.Get("Content-Type"), nil

		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			c.logger.Error().
				Str("url", rawURL).
				Int("status", resp.StatusCode).
				Msg("Fetch failed with client error")
			return nil, "", &Error{Kind: KindPermanent, Status: resp.StatusCode, URL: rawURL}

		case resp.StatusCode >= 500:
			lastErr = &Error{Kind: KindTransient, Status: resp.StatusCode, URL: rawURL}
			continue

		default:
			return nil, "", &Error{Kind: KindPermanent, Status: resp.StatusCode, URL: rawURL}
		}
	}

	c.logger.Error().
		Str("url", rawURL).
		Int("retries", c.policy.MaxRetries).
		Err(lastErr).
		Msg("Fetch failed after retries")
	return nil, "", lastErr
}

// FetchDocument fetches rawURL and extracts indexable text according to the
// response Content-Type. HTML is stripped of boilerplate, markdown and other
// text pass through with whitespace collapsed, and binary types fail with an
// UnsupportedContentTypeError.
func (c *Client) FetchDocument(ctx context.Context, rawURL string) (*Document, error) {
	body, contentType, err := c.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = ""
	}

	doc := &Document{URL: rawURL, ContentType: mediaType}

	switch {
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		title, text, err := parser.ExtractHTML(bytes.NewReader(body), rawURL)
		if err != nil {
			return nil, fmt.Errorf("failed to extract HTML from %s: %w", rawURL, err)
		}
		doc.Title = title
		doc.Text = text

	case mediaType == "text/markdown":
		doc.Title, doc.Text = parser.ExtractMarkdown(body)

	case strings.HasPrefix(mediaType, "text/") || mediaType == "application/json" || mediaType == "":
		doc.Text = parser.CollapseWhitespace(string(body))

	default:
		return nil, &UnsupportedContentTypeError{URL: rawURL, ContentType: contentType}
	}

	if doc.Title == "" {
		doc.Title = titleFromURL(rawURL)
	}

	return doc, nil
}

// titleFromURL derives a fallback title from the last URL path segment.
func titleFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Path == "" || parsed.Path == "/" {
		return rawURL
	}
	segment := path.Base(parsed.Path)
	segment = strings.TrimSuffix(segment, path.Ext(segment))
	return strings.ReplaceAll(strings.ReplaceAll(segment, "+", " "), "-", " ")
}
