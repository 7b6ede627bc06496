package ulango

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// DefaultMaxResponseSize caps response bodies read by the default transport.
const DefaultMaxResponseSize int64 = 10 << 20 // 10 MiB

// Transport performs a single network attempt. Implementations report raw
// transport errors; classification into retryable/terminal kinds is the
// client's job. Tests substitute scripted transports here.
type Transport interface {
	RoundTrip(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

// RoundTrip implements Transport.
func (f TransportFunc) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Middleware wraps a Transport, observing or altering each attempt. It must
// call next to continue the chain.
type Middleware func(ctx context.Context, req *Request, next Transport) (*Response, error)

// chainMiddleware folds the middleware slice around base in registration
// order: the first middleware sees the attempt first.
func chainMiddleware(base Transport, middleware []Middleware) Transport {
	if len(middleware) == 0 {
		return base
	}

	current := base
	for i := len(middleware) - 1; i >= 0; i-- {
		mw := middleware[i]
		next := current
		current = TransportFunc(func(ctx context.Context, req *Request) (*Response, error) {
			return mw(ctx, req, next)
		})
	}
	return current
}

// HTTPTransport is the default Transport, delegating to *http.Client for
// connection pooling and TLS.
type HTTPTransport struct {
	client          *http.Client
	maxResponseSize int64
}

// NewHTTPTransport wraps client as a Transport. A nil client uses a zero
// http.Client; a non-positive maxResponseSize uses DefaultMaxResponseSize.
func NewHTTPTransport(client *http.Client, maxResponseSize int64) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	if maxResponseSize <= 0 {
		maxResponseSize = DefaultMaxResponseSize
	}
	return &HTTPTransport{
		client:          client,
		maxResponseSize: maxResponseSize,
	}
}

// RoundTrip executes the request and reads the full response body, capped at
// the configured size. The request URL must be absolute by the time it
// reaches the transport.
func (t *HTTPTransport) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	var bodyReader io.Reader
	if body := req.Body(); len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method(), req.URL(), bodyReader)
	if err != nil {
		return nil, err
	}
	for key, value := range req.Headers() {
		httpReq.Header.Set(key, value)
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, t.maxResponseSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > t.maxResponseSize {
		return nil, fmt.Errorf("response body exceeds %d bytes", t.maxResponseSize)
	}

	headers := make(map[string]string, len(httpResp.Header))
	for key, values := range httpResp.Header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    headers,
		Body:       data,
	}, nil
}
