// Package api is the HTTP layer shared by every screen: URL building, bearer
// token injection and uniform error shaping. It performs no retries.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/schooldesk/pkg/observability"
	"github.com/sony/gobreaker/v2"
)

const defaultTimeout = 15 * time.Second

// BreakerConfig configures the circuit breaker guarding the backend.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold uint32
	// OpenTimeout is how long the circuit stays open before probing again.
	OpenTimeout time.Duration
	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests uint32
}

// DefaultBreakerConfig returns the breaker settings used by the CLI.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
		MaxRequests:      1,
	}
}

// Options configures a Client.
type Options struct {
	BaseURL     string
	Credentials CredentialProvider
	// Timeout bounds every request; expiry is reported as ErrRequestFailed.
	Timeout    time.Duration
	HTTPClient *http.Client
	// Breaker enables the circuit breaker when non-nil.
	Breaker *BreakerConfig
	Logger  *slog.Logger
	Metrics observability.Metrics
}

// Response is a completed HTTP exchange with a 2xx status.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Client talks to the school-management REST API.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[*Response]
	logger  *slog.Logger
	metrics observability.Metrics
}

// NewClient creates an API client.
func NewClient(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	base := http.DefaultTransport
	if opts.HTTPClient != nil && opts.HTTPClient.Transport != nil {
		base = opts.HTTPClient.Transport
	}
	httpClient := &http.Client{
		Transport: &bearerTransport{base: base, credentials: opts.Credentials},
	}

	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    httpClient,
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
	}
	if opts.Breaker != nil {
		c.breaker = newBreaker(*opts.Breaker, logger)
	}
	return c
}

func newBreaker(cfg BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker[*Response] {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	settings := gobreaker.Settings{
		Name:        "school-api",
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// Client errors are the caller's fault, not a sign of an unhealthy backend.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			status := StatusOf(err)
			return status > 0 && status < http.StatusInternalServerError
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}
	return gobreaker.NewCircuitBreaker[*Response](settings)
}

// URL turns a relative API path into an absolute URL.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// Get fetches path and returns the response body.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Post sends payload as JSON.
func (c *Client) Post(ctx context.Context, path string, payload any) ([]byte, error) {
	return c.sendJSON(ctx, http.MethodPost, path, payload)
}

// Put sends payload as JSON.
func (c *Client) Put(ctx context.Context, path string, payload any) ([]byte, error) {
	return c.sendJSON(ctx, http.MethodPut, path, payload)
}

// Patch sends payload as JSON.
func (c *Client) Patch(ctx context.Context, path string, payload any) ([]byte, error) {
	return c.sendJSON(ctx, http.MethodPatch, path, payload)
}

// Delete deletes the resource at path.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil, "")
}

// PostForm sends a multipart form. The content type carries the generated
// boundary instead of a JSON content type.
func (c *Client) PostForm(ctx context.Context, path string, form *FormData) ([]byte, error) {
	return c.sendForm(ctx, http.MethodPost, path, form)
}

// PatchForm sends a multipart form with PATCH.
func (c *Client) PatchForm(ctx context.Context, path string, form *FormData) ([]byte, error) {
	return c.sendForm(ctx, http.MethodPatch, path, form)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s payload: %w", method, path, err)
		}
		body = encoded
	}
	resp, err := c.do(ctx, method, path, body, "application/json")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) sendForm(ctx context.Context, method, path string, form *FormData) ([]byte, error) {
	body, contentType, err := form.encode()
	if err != nil {
		return nil, fmt.Errorf("encode %s %s form: %w", method, path, err)
	}
	resp, err := c.do(ctx, method, path, body, contentType)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string) (*Response, error) {
	start := time.Now()
	call := func() (*Response, error) {
		return c.roundTrip(ctx, method, path, body, contentType)
	}

	var resp *Response
	var err error
	if c.breaker != nil {
		resp, err = c.breaker.Execute(call)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = transportError(method, path, err)
		}
	} else {
		resp, err = call()
	}

	status := StatusOf(err)
	if resp != nil {
		status = resp.Status
	}
	tags := []observability.Tag{observability.T("method", method)}
	c.metrics.Counter(observability.MetricHTTPRequests, 1, tags...)
	c.metrics.Timing(observability.MetricHTTPDuration, time.Since(start), tags...)
	if err != nil {
		c.metrics.Counter(observability.MetricHTTPErrors, 1, tags...)
		c.logger.DebugContext(ctx, "api request failed",
			"method", method,
			"path", path,
			observability.StatusKey, status,
			observability.DurationKey, time.Since(start).Milliseconds(),
			observability.ErrorKey, err,
		)
		return nil, err
	}
	c.metrics.Histogram(observability.MetricHTTPResponseBytes, float64(len(resp.Body)), tags...)
	c.logger.DebugContext(ctx, "api request",
		"method", method,
		"path", path,
		observability.StatusKey, status,
		observability.DurationKey, time.Since(start).Milliseconds(),
	)
	return resp, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte, contentType string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), reader)
	if err != nil {
		return nil, transportError(method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if id := observability.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(method, path, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, transportError(method, path, err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &Error{
			Method: method,
			Path:   path,
			Status: httpResp.StatusCode,
			Body:   parseBody(raw),
		}
	}
	return &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Body:   raw,
	}, nil
}

// FormData is a multipart payload.
type FormData struct {
	fields []formField
	files  []formFile
}

type formField struct {
	name  string
	value string
}

type formFile struct {
	field    string
	filename string
	content  []byte
}

// NewFormData creates an empty multipart payload.
func NewFormData() *FormData {
	return &FormData{}
}

// Set adds a text field.
func (f *FormData) Set(name, value string) *FormData {
	f.fields = append(f.fields, formField{name: name, value: value})
	return f
}

// SetInt adds an integer field.
func (f *FormData) SetInt(name string, value int) *FormData {
	return f.Set(name, strconv.Itoa(value))
}

// AddFile adds a file part.
func (f *FormData) AddFile(field, filename string, content []byte) *FormData {
	f.files = append(f.files, formFile{field: field, filename: filename, content: content})
	return f
}

func (f *FormData) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if f != nil {
		for _, field := range f.fields {
			if err := w.WriteField(field.name, field.value); err != nil {
				return nil, "", err
			}
		}
		for _, file := range f.files {
			part, err := w.CreateFormFile(file.field, file.filename)
			if err != nil {
				return nil, "", err
			}
			if _, err := part.Write(file.content); err != nil {
				return nil, "", err
			}
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
