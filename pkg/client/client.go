package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/SingularityDigitalTechnologies/singularity-cli/pkg/endpoint"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single round trip unless WithTimeout says otherwise.
const DefaultTimeout = 30 * time.Second

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

// ErrResponseTooLarge is returned when a response body exceeds the read cap.
// The body is discarded rather than shown truncated.
var ErrResponseTooLarge = fmt.Errorf("response body exceeds %d bytes", maxResponseBytes)

// ConnectivityError reports that the API could not be reached or the
// response could not be read off the wire. It is never retried.
type ConnectivityError struct {
	Method string
	URL    string
	Err    error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("could not reach %s %s, check your network connection and --api-url: %v", e.Method, e.URL, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// Response is the normalized result of one round trip.
type Response struct {
	StatusCode int
	TraceToken string

	// Body is the decoded JSON value, or the raw text when the response is
	// not JSON.
	Body any

	// Raw is the response body exactly as received.
	Raw string

	// JSON reports whether Body was decoded from JSON.
	JSON bool
}

// ObserveFunc is an optional callback invoked after every round trip.
// statusCode is 0 when the request failed with a ConnectivityError.
type ObserveFunc func(e endpoint.Endpoint, statusCode int, elapsed time.Duration)

// Client sends signed requests to one API host. It holds no per-call state.
type Client struct {
	rc         RequestContext
	creds      Credentials
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
	status     io.Writer
	observe    ObserveFunc
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client. Its own Timeout is used and
// WithTimeout is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client must not be nil")
		}
		c.httpClient = hc
		return nil
	}
}

// WithTimeout bounds each round trip. Zero disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d < 0 {
			return fmt.Errorf("timeout must not be negative, got %s", d)
		}
		c.timeout = d
		return nil
	}
}

// WithLogger sets the logger used for the unsigned-request warning and
// debug output.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) error {
		if l == nil {
			return errors.New("logger must not be nil")
		}
		c.logger = l
		return nil
	}
}

// WithStatusWriter sets where the per-request status line is written.
// Defaults to os.Stderr.
func WithStatusWriter(w io.Writer) Option {
	return func(c *Client) error {
		if w == nil {
			return errors.New("status writer must not be nil")
		}
		c.status = w
		return nil
	}
}

// WithObserver registers a callback invoked after every round trip.
func WithObserver(fn ObserveFunc) Option {
	return func(c *Client) error {
		c.observe = fn
		return nil
	}
}

// New creates a Client for rc authenticating with creds.
//
//	c, err := client.New(rc, creds,
//	    client.WithTimeout(10*time.Second),
//	    client.WithLogger(logger),
//	)
func New(rc RequestContext, creds Credentials, opts ...Option) (*Client, error) {
	c := &Client{
		rc:      rc,
		creds:   creds,
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
		status:  os.Stderr,
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(rc RequestContext, creds Credentials, opts ...Option) *Client {
	c, err := New(rc, creds, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Prepare builds the signed request for sending payload to e without
// sending it.
func (c *Client) Prepare(e endpoint.Endpoint, payload string) SignedRequest {
	return SignedRequest{
		Method:  e.Method,
		URL:     BuildURL(c.rc, e),
		Body:    payload,
		Headers: Headers(e, payload, c.creds),
	}
}

// Request signs payload, sends it to e and writes "[path][status][trace]"
// to the status writer. It is the entry point for every command.
func (c *Client) Request(ctx context.Context, e endpoint.Endpoint, payload string) (*Response, error) {
	prepared := c.Prepare(e, payload)
	if !prepared.Signed() {
		c.logger.Warn("no secret configured, sending unsigned request",
			zap.String("endpoint", e.String()),
		)
	}

	resp, err := c.Execute(ctx, e, payload, prepared.Headers)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(c.status, "[%s][%d][%s]\n", e.Path, resp.StatusCode, resp.TraceToken)
	return resp, nil
}

// Execute performs one HTTP round trip with the given headers. Transport
// failures are returned as *ConnectivityError. Any HTTP status, including
// 4xx and 5xx, is a successful round trip.
func (c *Client) Execute(ctx context.Context, e endpoint.Endpoint, payload string, headers map[string]string) (*Response, error) {
	target := BuildURL(c.rc, e)

	var bodyReader io.Reader
	if payload != "" {
		bodyReader = strings.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, e.Method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	c.logger.Debug("sending request",
		zap.String("method", e.Method),
		zap.String("url", target),
		zap.Int("payload_bytes", len(payload)),
		zap.Bool("signed", headers[HeaderSignature] != ""),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(e, 0, start)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s %s: %w", e.Method, target, ctxErr)
		}
		return nil, &ConnectivityError{Method: e.Method, URL: target, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		c.record(e, 0, start)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s %s: read response: %w", e.Method, target, ctxErr)
		}
		return nil, &ConnectivityError{Method: e.Method, URL: target, Err: fmt.Errorf("read response: %w", err)}
	}
	c.record(e, resp.StatusCode, start)
	if len(raw) > maxResponseBytes {
		return nil, fmt.Errorf("%s %s: status %d: %w", e.Method, target, resp.StatusCode, ErrResponseTooLarge)
	}

	body, isJSON := decodeBody(raw)
	return &Response{
		StatusCode: resp.StatusCode,
		TraceToken: resp.Header.Get(HeaderTrace),
		Body:       body,
		Raw:        string(raw),
		JSON:       isJSON,
	}, nil
}

func (c *Client) record(e endpoint.Endpoint, status int, start time.Time) {
	if c.observe != nil {
		c.observe(e, status, time.Since(start))
	}
}

// decodeBody returns the JSON value in raw, or raw as a string when it is not
// exactly one JSON document.
func decodeBody(raw []byte) (any, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return string(raw), false
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return string(raw), false
	}
	return v, true
}
