package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/tweet-anchoring/internal/observability"
)

const (
	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 4 << 20
	// maxErrorBodyBytes caps the response body kept in an *Error.
	maxErrorBodyBytes = 512
)

// Client issues JSON requests against one remote service.
type Client struct {
	// Service names the collaborator in errors, spans and metrics.
	Service string
	BaseURL string
	HTTP    *http.Client
	// Timeout bounds each call, including reading the response.
	Timeout time.Duration
	// Authorize adds credentials to every outgoing request.
	Authorize func(*http.Request)
}

// New creates a Client. baseURL prefixes every request path, minus any
// trailing slash. A query string on baseURL is merged into every request.
func New(service, baseURL string, timeout time.Duration, authorize func(*http.Request)) *Client {
	return &Client{
		Service:   service,
		BaseURL:   strings.TrimRight(baseURL, "/"),
		HTTP:      &http.Client{Timeout: timeout},
		Timeout:   timeout,
		Authorize: authorize,
	}
}

// BearerToken returns an Authorize func setting a bearer token.
func BearerToken(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

// BasicAuth returns an Authorize func setting HTTP basic credentials.
func BasicAuth(user, password string) func(*http.Request) {
	return func(r *http.Request) { r.SetBasicAuth(user, password) }
}

// Request describes one call.
type Request struct {
	// Op is a short operation name used in errors, spans and metrics.
	Op     string
	Method string
	Path   string
	Query  url.Values
	// Body, when non-nil, is sent as JSON.
	Body any
}

// Do sends req and decodes a 2xx JSON response into out (if non-nil).
func (c *Client) Do(ctx context.Context, req Request, out any) (err error) {
	ctx, span := otel.Tracer("remote/"+c.Service).Start(ctx, req.Op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("remote.path", req.Path),
		),
	)
	defer span.End()

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		observability.ObserveRemoteCall(c.Service, req.Op, Outcome(err), time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("%s %s: marshal request: %w", c.Service, req.Op, err)
		}
		body = bytes.NewReader(payload)
	}

	target, err := c.url(req)
	if err != nil {
		return fmt.Errorf("%s %s: build url: %w", c.Service, req.Op, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return fmt.Errorf("%s %s: create request: %w", c.Service, req.Op, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.Authorize != nil {
		c.Authorize(httpReq)
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return &Error{Service: c.Service, Op: req.Op, Kind: ErrTransient, Err: err}
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Error{Service: c.Service, Op: req.Op, Status: resp.StatusCode, Kind: ErrTransient, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{
			Service: c.Service,
			Op:      req.Op,
			Status:  resp.StatusCode,
			Body:    truncate(string(respBody), maxErrorBodyBytes),
			Kind:    Classify(resp.StatusCode),
		}
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return &Error{Service: c.Service, Op: req.Op, Status: resp.StatusCode, Kind: ErrMalformed, Err: fmt.Errorf("empty body")}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{Service: c.Service, Op: req.Op, Status: resp.StatusCode, Kind: ErrMalformed, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// url joins the base URL with the already escaped req.Path. Request query
// values override base query values of the same name.
func (c *Client) url(req Request) (string, error) {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", err
	}
	q := base.Query()
	base.RawQuery = ""
	base.Fragment = ""
	for k, vs := range req.Query {
		q[k] = vs
	}

	u := strings.TrimRight(base.String(), "/") + req.Path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
