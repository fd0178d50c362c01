package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultURL is the public Debian BTS SOAP endpoint.
	DefaultURL = "https://bugs.debian.org/cgi-bin/soap.cgi"
	// DefaultTimeout bounds a whole call, including reading the response.
	DefaultTimeout = 60 * time.Second

	// ContentType is sent with every request.
	ContentType = `text/xml; charset="utf-8"`

	// maxErrorSnippet limits how much of a non-XML error body ends up in
	// a TransportError.
	maxErrorSnippet = 256
)

// ErrTransport matches every *TransportError.
var ErrTransport = errors.New("transport error")

// TransportError reports a failure to complete an HTTP exchange, or an HTTP
// error status whose body is not XML.
type TransportError struct {
	Op         string // "post" or "read"
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport: %s %s: HTTP %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is reports whether target is ErrTransport.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Config is an immutable description of how to reach the server.
type Config struct {
	// URL is the SOAP endpoint.
	URL string
	// Proxy is an optional HTTP or HTTPS proxy URL. When empty the
	// standard proxy environment variables apply.
	Proxy string
	// Timeout bounds each call. Zero means no limit beyond the context.
	Timeout time.Duration
	// RootCAs overrides the trusted roots when non-nil.
	RootCAs *x509.CertPool
}

// DefaultConfig returns the configuration for the public Debian server.
// The Debian CA directory is trusted when present; failure to read it is
// not an error here.
func DefaultConfig() Config {
	cfg := Config{
		URL:     DefaultURL,
		Timeout: DefaultTimeout,
	}
	if pool, err := LoadCADir(DefaultCADir); err == nil {
		cfg.RootCAs = pool
	}
	return cfg
}

// Validate checks that the endpoint and proxy are absolute URLs.
func (c Config) Validate() error {
	if err := checkURL(c.URL); err != nil {
		return fmt.Errorf("endpoint: %w", err)
	}
	if c.Proxy != "" {
		if err := checkURL(c.Proxy); err != nil {
			return fmt.Errorf("proxy: %w", err)
		}
	}
	if c.Timeout < 0 {
		return fmt.Errorf("negative timeout %s", c.Timeout)
	}
	return nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q: missing host", raw)
	}
	return nil
}

// Response is a raw server answer.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport performs SOAP calls against one endpoint.
// It is safe for concurrent use.
type Transport struct {
	cfg     Config
	client  *http.Client
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures a Transport.
type Option func(*Transport)

// WithHTTPClient makes the Transport use c instead of building its own
// client. Proxy, RootCAs and Timeout from the Config are then ignored.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) {
		if c != nil {
			t.client = c
		}
	}
}

// WithLogger sets the logger for per-call debug records.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithMetrics records every call in m.
func WithMetrics(m *Metrics) Option {
	return func(t *Transport) {
		t.metrics = m
	}
}

// New creates a Transport for cfg.
func New(cfg Config, opts ...Option) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("transport: invalid config: %w", err)
	}

	t := &Transport{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.client == nil {
		client, err := newHTTPClient(cfg)
		if err != nil {
			return nil, err
		}
		t.client = client
	}
	return t, nil
}

func newHTTPClient(cfg Config) (*http.Client, error) {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil, errors.New("transport: http.DefaultTransport is not an *http.Transport")
	}
	rt := base.Clone()

	if cfg.Proxy != "" {
		proxy, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("transport: parse proxy: %w", err)
		}
		rt.Proxy = http.ProxyURL(proxy)
	}

	if cfg.RootCAs != nil {
		rt.TLSClientConfig = &tls.Config{
			RootCAs:    cfg.RootCAs,
			MinVersion: tls.VersionTLS12,
		}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   cfg.Timeout,
	}, nil
}

// Config returns the configuration the Transport was built from.
func (t *Transport) Config() Config {
	return t.cfg
}

// CloseIdleConnections closes connections kept alive by the underlying
// HTTP client. Requests in flight are not affected.
func (t *Transport) CloseIdleConnections() {
	t.client.CloseIdleConnections()
}

// Post sends body as the SOAP request for method and returns the response.
// method is used for logging and metrics only.
func (t *Transport) Post(ctx context.Context, method string, body []byte) (*Response, error) {
	callID := uuid.New()
	log := t.logger.With("call_id", callID.String(), "method", method)
	start := time.Now()

	resp, err := t.post(ctx, body)
	elapsed := time.Since(start)

	outcome := outcomeOf(resp, err)
	t.metrics.observe(method, outcome, elapsed)

	if err != nil {
		log.Debug("soap call failed", "url", t.cfg.URL, "duration", elapsed, "error", err)
		return nil, err
	}
	log.Debug("soap call",
		"url", t.cfg.URL,
		"status", resp.StatusCode,
		"bytes", len(resp.Body),
		"duration", elapsed,
		"outcome", outcome,
	)
	return resp, nil
}

func (t *Transport) post(ctx context.Context, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Op: "post", URL: t.cfg.URL, Err: err}
	}
	req.Header.Set("Content-Type", ContentType)
	req.Header.Set("SOAPAction", `""`)
	req.Header.Set("Accept", "text/xml")

	httpResp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "post", URL: t.cfg.URL, Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read", URL: t.cfg.URL, StatusCode: httpResp.StatusCode, Err: err}
	}

	resp := &Response{
		StatusCode:  httpResp.StatusCode,
		ContentType: httpResp.Header.Get("Content-Type"),
		Body:        data,
	}
	if resp.OK() || IsXML(resp.ContentType) {
		return resp, nil
	}

	return nil, &TransportError{
		Op:         "post",
		URL:        t.cfg.URL,
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("unexpected response %q: %s", resp.ContentType, snippet(data)),
	}
}

// IsXML reports whether a Content-Type header value denotes an XML body.
func IsXML(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch mt {
	case "text/xml", "application/xml", "application/soap+xml":
		return true
	}
	return strings.HasSuffix(mt, "+xml")
}

// StatusError builds the error for an XML response with a non-2xx status
// that turned out not to carry a SOAP fault.
func StatusError(u string, resp *Response) *TransportError {
	return &TransportError{
		Op:         "post",
		URL:        u,
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("XML error response without fault: %s", snippet(resp.Body)),
	}
}

func snippet(data []byte) string {
	s := strings.TrimSpace(strings.ToValidUTF8(string(data), "?"))
	if len(s) > maxErrorSnippet {
		s = s[:maxErrorSnippet] + "..."
	}
	return s
}
