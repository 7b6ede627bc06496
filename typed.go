package ulango

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Unmarshaler decodes response bodies into typed values.
type Unmarshaler interface {
	Unmarshal(data []byte, v any) error
}

// JSONUnmarshaler is the default Unmarshaler backed by encoding/json.
type JSONUnmarshaler struct{}

// Unmarshal decodes JSON data into v.
func (JSONUnmarshaler) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// TypedResponse pairs a decoded value with the raw response it came from.
type TypedResponse[T any] struct {
	Response *Response
	Value    T
}

// DoTyped executes the request and decodes the successful response body into
// T using the client's unmarshaler, then checks it against the client's
// schema validator. Decode and validation failures are terminal: the request
// already succeeded on the wire, so no retry can fix a malformed payload. An
// empty body yields the zero value without decoding or validation.
func DoTyped[T any](ctx context.Context, c *Client, req *Request) Result[*TypedResponse[T]] {
	result := c.Do(ctx, req)
	if result.IsErr() {
		return Err[*TypedResponse[T]](result.Err())
	}

	resp := result.Value()
	typed := &TypedResponse[T]{Response: resp}
	if len(resp.Body) == 0 {
		return Ok(typed)
	}

	endpoint := "unknown"
	method := ""
	if req != nil {
		method = req.Method()
		if resolved, err := c.resolveURL(req); err == nil {
			endpoint = endpointFromURL(resolved)
		}
	}

	unmarshaler := c.unmarshaler
	if unmarshaler == nil {
		unmarshaler = JSONUnmarshaler{}
	}

	if err := unmarshaler.Unmarshal(resp.Body, &typed.Value); err != nil {
		if c.metrics != nil {
			c.metrics.RecordError(ErrorTypeValidation, method, endpoint)
		}
		if c.debug != nil && c.debug.Enabled && c.debug.LogValidation && c.logger != nil {
			c.logger.Warn("Response decode failed", "method", method, "endpoint", endpoint, "error", err.Error())
		}
		return Err[*TypedResponse[T]](&ClientError{
			Type:       ErrorTypeValidation,
			Message:    fmt.Sprintf("failed to unmarshal response: %v", err),
			Cause:      err,
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
			Method:     method,
			Endpoint:   endpoint,
		})
	}

	if c.validator != nil {
		if err := c.validator.Validate(typed.Value); err != nil {
			if c.metrics != nil {
				c.metrics.RecordValidationFailure(method, endpoint)
				c.metrics.RecordError(ErrorTypeValidation, method, endpoint)
			}
			if c.debug != nil && c.debug.Enabled && c.debug.LogValidation && c.logger != nil {
				c.logger.Warn("Response validation failed", "method", method, "endpoint", endpoint, "error", err.Error())
			}
			return Err[*TypedResponse[T]](&ClientError{
				Type:       ErrorTypeValidation,
				Message:    "response schema validation failed",
				Cause:      err,
				StatusCode: resp.StatusCode,
				Body:       resp.Body,
				Method:     method,
				Endpoint:   endpoint,
			})
		}
	}

	return Ok(typed)
}

// DoJSON executes the request and returns only the decoded value.
func DoJSON[T any](ctx context.Context, c *Client, req *Request) Result[T] {
	return Map(DoTyped[T](ctx, c, req), func(typed *TypedResponse[T]) T {
		return typed.Value
	})
}

// GetJSON performs a GET and decodes the response into T.
func GetJSON[T any](ctx context.Context, c *Client, url string, opts ...RequestOption) Result[T] {
	return DoJSON[T](ctx, c, NewRequest(http.MethodGet, url, opts...))
}

// PostJSON performs a POST with a JSON-encoded body and decodes the response
// into T. A nil body sends an empty request body.
func PostJSON[T any](ctx context.Context, c *Client, url string, body any, opts ...RequestOption) Result[T] {
	opts = append([]RequestOption{WithJSONBody(body)}, opts...)
	return DoJSON[T](ctx, c, NewRequest(http.MethodPost, url, opts...))
}

// GetTyped performs a GET returning both the decoded value and the raw
// response.
func GetTyped[T any](ctx context.Context, c *Client, url string, opts ...RequestOption) Result[*TypedResponse[T]] {
	return DoTyped[T](ctx, c, NewRequest(http.MethodGet, url, opts...))
}

// PostTyped performs a POST with a JSON-encoded body returning both the
// decoded value and the raw response.
func PostTyped[T any](ctx context.Context, c *Client, url string, body any, opts ...RequestOption) Result[*TypedResponse[T]] {
	opts = append([]RequestOption{WithJSONBody(body)}, opts...)
	return DoTyped[T](ctx, c, NewRequest(http.MethodPost, url, opts...))
}
