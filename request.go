package ulango

import (
	"encoding/json"
	"fmt"
	"net/textproto"
	"time"
)

// Request is an immutable description of one logical HTTP call. Construct it
// with NewRequest; accessors return copies so a Request can be shared across
// goroutines and retried attempts without coordination.
type Request struct {
	method   string
	url      string
	headers  map[string]string
	body     []byte
	timeout  time.Duration
	buildErr error
}

// RequestOption customizes a Request during construction.
type RequestOption func(*Request)

// NewRequest builds a Request for the given method and URL. The URL may be
// absolute or a path resolved against the client's base URL at call time.
func NewRequest(method, url string, opts ...RequestOption) *Request {
	req := &Request{
		method:  method,
		url:     url,
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(req)
	}
	return req
}

// WithHeader sets a single request header.
func WithHeader(key, value string) RequestOption {
	return func(r *Request) {
		r.headers[textproto.CanonicalMIMEHeaderKey(key)] = value
	}
}

// WithHeaders sets multiple request headers.
func WithHeaders(headers map[string]string) RequestOption {
	return func(r *Request) {
		for key, value := range headers {
			r.headers[textproto.CanonicalMIMEHeaderKey(key)] = value
		}
	}
}

// WithBody sets a raw request body. The bytes are copied.
func WithBody(body []byte) RequestOption {
	return func(r *Request) {
		r.body = append([]byte(nil), body...)
	}
}

// WithJSONBody marshals v as the request body and sets the Content-Type
// header unless one is already present. A nil v leaves the body empty.
// Marshal failures are deferred and surfaced as a validation error when the
// request is executed.
func WithJSONBody(v any) RequestOption {
	return func(r *Request) {
		if v == nil {
			return
		}
		data, err := json.Marshal(v)
		if err != nil {
			r.buildErr = fmt.Errorf("marshal request body: %w", err)
			return
		}
		r.body = data
		if _, ok := r.headers["Content-Type"]; !ok {
			r.headers["Content-Type"] = "application/json"
		}
	}
}

// WithRequestTimeout overrides the client's per-attempt timeout for this
// request only.
func WithRequestTimeout(d time.Duration) RequestOption {
	return func(r *Request) {
		r.timeout = d
	}
}

// Method returns the HTTP method.
func (r *Request) Method() string { return r.method }

// URL returns the target URL as supplied at construction.
func (r *Request) URL() string { return r.url }

// Header returns the value of a single header, looked up canonically.
func (r *Request) Header(key string) string {
	return r.headers[textproto.CanonicalMIMEHeaderKey(key)]
}

// Headers returns a copy of all request headers.
func (r *Request) Headers() map[string]string {
	headers := make(map[string]string, len(r.headers))
	for key, value := range r.headers {
		headers[key] = value
	}
	return headers
}

// Body returns a copy of the request body.
func (r *Request) Body() []byte {
	if r.body == nil {
		return nil
	}
	return append([]byte(nil), r.body...)
}

// Timeout returns the per-attempt timeout override, zero when unset.
func (r *Request) Timeout() time.Duration { return r.timeout }

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	clone := &Request{
		method:   r.method,
		url:      r.url,
		headers:  make(map[string]string, len(r.headers)),
		timeout:  r.timeout,
		buildErr: r.buildErr,
	}
	for key, value := range r.headers {
		clone.headers[key] = value
	}
	if r.body != nil {
		clone.body = append([]byte(nil), r.body...)
	}
	return clone
}

// Response is the immutable outcome of a single network attempt: status
// code, flattened headers, and the fully read body.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// IsSuccess reports whether the status code is in the 2xx range.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Header returns the value of a single response header, looked up
// canonically. Multi-valued headers were flattened to their first value.
func (r *Response) Header(key string) string {
	return r.Headers[textproto.CanonicalMIMEHeaderKey(key)]
}

// DecodeJSON unmarshals the response body into v. An empty body leaves v
// unchanged.
func (r *Response) DecodeJSON(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}
