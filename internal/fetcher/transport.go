// Package fetcher implements the HTTP transport shared by the spiders: timeouts,
// fixed-delay retries, request pacing and character-encoding resolution.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/jonesrussell/fincrawl/internal/logger"
	"github.com/jonesrussell/fincrawl/internal/retry"
)

// ErrUnavailable is returned when a page could not be fetched after every retry.
var ErrUnavailable = errors.New("page unavailable")

// Page is a fetched and decoded HTTP response.
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Encoding    string
	Body        []byte
	Text        string
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.Code, e.URL)
}

// retryable reports whether the status may succeed on a later attempt.
func (e *StatusError) retryable() bool {
	return e.Code >= http.StatusInternalServerError || e.Code == http.StatusTooManyRequests
}

// Transport fetches pages over HTTP.
type Transport struct {
	cfg      Config
	client   *http.Client
	limiter  *rate.Limiter
	detector Detector
	log      logger.Logger
}

// Option customizes a Transport.
type Option func(*Transport)

// WithHTTPClient replaces the HTTP client. Its timeout is left untouched.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.client = c }
}

// WithDetector replaces the encoding detector.
func WithDetector(d Detector) Option {
	return func(t *Transport) { t.detector = d }
}

// New creates a transport. Zero-value config fields take defaults.
func New(cfg Config, log logger.Logger, opts ...Option) *Transport {
	cfg = cfg.WithDefaults()
	t := &Transport{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		detector: ChardetDetector{},
		log:      log,
	}
	if cfg.RequestDelay > 0 {
		t.limiter = rate.NewLimiter(rate.Every(cfg.RequestDelay), 1)
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Fetch GETs rawURL with retries and decodes the body. encodingOverride may be empty.
// After the retries are exhausted the error wraps ErrUnavailable.
func (t *Transport) Fetch(ctx context.Context, rawURL, encodingOverride string) (*Page, error) {
	var page *Page

	err := retry.Do(ctx, retry.Config{
		Attempts: t.cfg.RetryTimes,
		Delay:    t.cfg.RetryDelay,
		OnRetry: func(attempt int, err error) {
			t.log.Warn("Fetch attempt failed, retrying",
				logger.String("url", rawURL),
				logger.Int("attempt", attempt),
				logger.Int("max_attempts", t.cfg.RetryTimes),
				logger.Error(err))
		},
	}, func(ctx context.Context) error {
		p, fetchErr := t.get(ctx, rawURL)
		if fetchErr != nil {
			var statusErr *StatusError
			if errors.As(fetchErr, &statusErr) && !statusErr.retryable() {
				return retry.Permanent(fetchErr)
			}
			return fetchErr
		}
		page = p
		return nil
	})
	if err != nil {
		t.log.Error("Fetch failed", logger.String("url", rawURL), logger.Error(err))
		return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, rawURL, err)
	}

	enc, name := ResolveEncoding(page.Body, encodingOverride, page.ContentType, t.detector)
	text, decodeErr := Decode(page.Body, enc)
	if decodeErr != nil {
		t.log.Warn("Decode failed, using raw bytes",
			logger.String("url", rawURL),
			logger.String("encoding", name),
			logger.Error(decodeErr))
		text = string(page.Body)
		name = "utf-8"
	}
	page.Encoding = name
	page.Text = text

	return page, nil
}

// Probe performs a single GET without retries or decoding. Non-2xx statuses are
// returned in the page rather than as errors.
func (t *Transport) Probe(ctx context.Context, rawURL string) (*Page, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	p, status, err := t.do(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	p.StatusCode = status
	return p, nil
}

func (t *Transport) get(ctx context.Context, rawURL string) (*Page, error) {
	if err := t.wait(ctx); err != nil {
		return nil, retry.Permanent(err)
	}
	p, status, err := t.do(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, &StatusError{URL: rawURL, Code: status}
	}
	return p, nil
}

func (t *Transport) wait(ctx context.Context) error {
	if t.limiter == nil {
		return nil
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("request pacing: %w", err)
	}
	return nil
}

func (t *Transport) do(ctx context.Context, rawURL string) (*Page, int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, 0, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", t.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response body: %w", err)
	}

	return &Page{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, resp.StatusCode, nil
}
