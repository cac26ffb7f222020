// Package httpcache performs conditional HTTP GETs against upstream changelog
// sources, turning 304 responses and (in lenient mode) network failures into a
// not-modified signal so previously stored content is kept.
package httpcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/kilupskalvis/changelogs/internal/models"
	"go.uber.org/zap"
)

const defaultUserAgent = "changelogs"

// StatusError is returned for any non-2xx response that is not a handled 304.
type StatusError struct {
	URL        string
	Status     int
	StatusText string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s from %s", e.Status, e.StatusText, e.URL)
}

// Options configures a Client.
type Options struct {
	// Strict turns network failures into errors instead of a not-modified result.
	Strict     bool
	Retry      *RetryConfig
	Logger     *zap.Logger
	Metrics    *metrics.Set
	HTTPClient *http.Client
	UserAgent  string
}

// Client issues conditional GET requests.
type Client struct {
	strict     bool
	retry      *RetryConfig
	log        *zap.Logger
	httpClient *http.Client
	userAgent  string

	requests        *metrics.Counter
	notModified     *metrics.Counter
	networkFailures *metrics.Counter
	duration        *metrics.Histogram
}

// New creates a Client. Zero options get defaults.
func New(opts Options) *Client {
	if opts.Retry == nil {
		opts.Retry = DefaultRetryConfig()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewSet()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	return &Client{
		strict:          opts.Strict,
		retry:           opts.Retry,
		log:             opts.Logger,
		httpClient:      opts.HTTPClient,
		userAgent:       opts.UserAgent,
		requests:        opts.Metrics.GetOrCreateCounter("changelogs_http_requests_total"),
		notModified:     opts.Metrics.GetOrCreateCounter("changelogs_http_not_modified_total"),
		networkFailures: opts.Metrics.GetOrCreateCounter("changelogs_http_network_failures_total"),
		duration:        opts.Metrics.GetOrCreateHistogram("changelogs_http_request_duration_seconds"),
	}
}

// Response is the outcome of a GET.
type Response struct {
	NotModified bool
	StatusCode  int
	Header      http.Header
	Body        []byte
	// Meta holds the validators of a 2xx response. It is zero otherwise.
	Meta models.CacheMeta
}

// Get fetches url, attaching validators from meta. A 304 yields NotModified
// and leaves meta untouched.
func (c *Client) Get(ctx context.Context, url string, header http.Header, meta models.CacheMeta) (*Response, error) {
	return c.get(ctx, url, header, meta, true)
}

// GetPlain fetches url without conditional headers. A 304 is treated like
// any other unexpected status.
func (c *Client) GetPlain(ctx context.Context, url string, header http.Header) (*Response, error) {
	return c.get(ctx, url, header, models.CacheMeta{}, false)
}

func (c *Client) get(ctx context.Context, url string, header http.Header, meta models.CacheMeta, conditional bool) (*Response, error) {
	var resp *Response
	err := c.retry.retry(ctx, "GET "+url, func() error {
		var err error
		resp, err = c.do(ctx, url, header, meta, conditional)
		return err
	})
	if err == nil {
		return resp, nil
	}

	var se *StatusError
	if errors.As(err, &se) || c.strict || ctx.Err() != nil {
		return nil, err
	}
	c.networkFailures.Inc()
	c.log.Warn("request failed, keeping previous content",
		zap.String("url", url),
		zap.Error(err),
	)
	return &Response{NotModified: true}, nil
}

func (c *Client) do(ctx context.Context, url string, header http.Header, meta models.CacheMeta, conditional bool) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if conditional {
		SetConditionalHeaders(req.Header, meta)
	}

	start := time.Now()
	c.requests.Inc()
	res, err := c.httpClient.Do(req)
	c.duration.UpdateDuration(start)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer res.Body.Close()

	c.log.Debug("http response",
		zap.String("url", url),
		zap.Int("status", res.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if conditional && res.StatusCode == http.StatusNotModified {
		c.notModified.Inc()
		return &Response{NotModified: true, StatusCode: res.StatusCode, Header: res.Header}, nil
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil, &StatusError{URL: url, Status: res.StatusCode, StatusText: http.StatusText(res.StatusCode)}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return &Response{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       body,
		Meta:       MetaFromHeader(res.Header),
	}, nil
}

// SetConditionalHeaders adds If-None-Match, or If-Modified-Since when no ETag
// is known.
func SetConditionalHeaders(h http.Header, meta models.CacheMeta) {
	switch {
	case meta.ETag != "":
		h.Set("If-None-Match", meta.ETag)
	case meta.LastModified != "":
		h.Set("If-Modified-Since", meta.LastModified)
	}
}

// MetaFromHeader extracts validators from a response. The ETag wins over
// Last-Modified; at most one is kept.
func MetaFromHeader(h http.Header) models.CacheMeta {
	if etag := h.Get("ETag"); etag != "" {
		return models.CacheMeta{ETag: etag}
	}
	if lm := h.Get("Last-Modified"); lm != "" {
		return models.CacheMeta{LastModified: lm}
	}
	return models.CacheMeta{}
}
