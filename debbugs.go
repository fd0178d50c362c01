package debbugs

import (
	"context"
	"crypto/x509"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/smnsjas/go-debbugs/batch"
	"github.com/smnsjas/go-debbugs/bug"
	"github.com/smnsjas/go-debbugs/envelope"
	"github.com/smnsjas/go-debbugs/soapenc"
	"github.com/smnsjas/go-debbugs/transport"
)

// DefaultURL is the public Debian BTS SOAP endpoint.
const DefaultURL = transport.DefaultURL

// DefaultBatchSize is the largest number of bugs requested per get_status
// call.
const DefaultBatchSize = batch.DefaultSize

// Client talks to one Debbugs server.
//
// The endpoint configuration is an immutable snapshot replaced as a whole
// by SetURL and SetProxy. Every call loads the snapshot once, so a call in
// flight keeps the configuration it started with.
type Client struct {
	current atomic.Pointer[transport.Transport]

	// mu serializes configuration changes. Calls never take it.
	mu sync.Mutex

	httpClient *http.Client
	logger     *slog.Logger
	metrics    *transport.Metrics
	batchSize  int
}

type options struct {
	cfg        transport.Config
	httpClient *http.Client
	logger     *slog.Logger
	registerer prometheus.Registerer
	batchSize  int
}

// Option configures a Client.
type Option func(*options)

// WithURL sets the SOAP endpoint. The default is DefaultURL.
func WithURL(u string) Option {
	return func(o *options) {
		o.cfg.URL = u
	}
}

// WithProxy routes requests through the HTTP proxy at u. Without it the
// standard proxy environment variables apply.
func WithProxy(u string) Option {
	return func(o *options) {
		o.cfg.Proxy = u
	}
}

// WithTimeout bounds every call. Zero disables the timeout; the context
// passed to each call still applies.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.cfg.Timeout = d
	}
}

// WithRootCAs sets the certificates trusted for HTTPS endpoints.
func WithRootCAs(pool *x509.CertPool) Option {
	return func(o *options) {
		o.cfg.RootCAs = pool
	}
}

// WithHTTPClient makes the Client send requests through c. Proxy, timeout
// and CA settings are then c's business.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithLogger sets the logger for debug records. The default discards
// everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithRegisterer registers SOAP call metrics with reg. Clients sharing a
// registerer share the collectors.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithBatchSize sets how many bugs one get_status request may ask for.
// Values below 1 mean DefaultBatchSize.
func WithBatchSize(n int) Option {
	return func(o *options) {
		o.batchSize = n
	}
}

// New creates a Client. It fails when the endpoint or proxy URL is not
// usable or the metrics cannot be registered.
func New(opts ...Option) (*Client, error) {
	o := &options{
		cfg:       transport.DefaultConfig(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.batchSize < 1 {
		o.batchSize = DefaultBatchSize
	}

	c := &Client{
		httpClient: o.httpClient,
		logger:     o.logger,
		batchSize:  o.batchSize,
	}
	if o.registerer != nil {
		m, err := transport.NewMetrics(o.registerer)
		if err != nil {
			return nil, err
		}
		c.metrics = m
	}

	tr, err := c.newTransport(o.cfg)
	if err != nil {
		return nil, err
	}
	c.current.Store(tr)
	return c, nil
}

func (c *Client) newTransport(cfg transport.Config) (*transport.Transport, error) {
	opts := []transport.Option{
		transport.WithLogger(c.logger),
		transport.WithMetrics(c.metrics),
	}
	if c.httpClient != nil {
		opts = append(opts, transport.WithHTTPClient(c.httpClient))
	}
	return transport.New(cfg, opts...)
}

// Config returns the configuration the next call will use.
func (c *Client) Config() transport.Config {
	return c.current.Load().Config()
}

// BatchSize returns the get_status batch size.
func (c *Client) BatchSize() int {
	return c.batchSize
}

// SetURL points later calls at the endpoint u. Calls already in flight are
// not affected. An invalid URL leaves the configuration unchanged.
func (c *Client) SetURL(u string) error {
	return c.reconfigure(func(cfg *transport.Config) {
		cfg.URL = u
	})
}

// SetProxy routes later calls through the proxy u. An empty u removes the
// proxy. An invalid URL leaves the configuration unchanged.
func (c *Client) SetProxy(u string) error {
	return c.reconfigure(func(cfg *transport.Config) {
		cfg.Proxy = u
	})
}

func (c *Client) reconfigure(update func(*transport.Config)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.current.Load()
	cfg := old.Config()
	update(&cfg)

	tr, err := c.newTransport(cfg)
	if err != nil {
		return err
	}
	c.current.Store(tr)
	if c.httpClient == nil {
		old.CloseIdleConnections()
	}
	c.logger.Debug("configuration changed", "url", cfg.URL, "proxy", cfg.Proxy)
	return nil
}

// call performs one SOAP round trip and returns the decoded result.
func (c *Client) call(ctx context.Context, method envelope.Method, args ...any) (soapenc.Value, error) {
	tr := c.current.Load()

	body, err := envelope.EncodeRequest(method, args...)
	if err != nil {
		return nil, err
	}

	resp, err := tr.Post(ctx, method.String(), body)
	if err != nil {
		return nil, err
	}

	if !resp.OK() {
		if fault := envelope.FaultOf(resp.Body); fault != nil {
			return nil, fault
		}
		return nil, transport.StatusError(tr.Config().URL, resp)
	}

	v, err := envelope.DecodeResponse(resp.Body)
	if errors.Is(err, envelope.ErrInvalidEnvelope) {
		return nil, &soapenc.DecodingError{Element: method.String(), Err: err}
	}
	return v, err
}

// shapeError reports a decoded result that does not have the shape method
// answers with. Errors that already carry a type are returned unchanged.
func shapeError(method envelope.Method, err error) error {
	var (
		decErr *soapenc.DecodingError
		recErr *bug.MalformedRecordError
	)
	if errors.As(err, &decErr) || errors.As(err, &recErr) || !errors.Is(err, soapenc.ErrUnexpectedShape) {
		return err
	}
	return &soapenc.DecodingError{Element: method.String(), Err: err}
}
