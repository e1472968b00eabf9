// Package graphqlutil provides utilities for working with GraphQL.
package graphqlutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"go.revup.dev/revup/internal/must"
)

// Common errors that may be returned by GraphQL APIs.
// These may be matched with errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrUnprocessable = errors.New("unprocessable")
)

// graphQLTransport wraps an HTTP transport
// with an understanding of GraphQL errors.
//
// The upstream GraphQL client cannot surface error codes,
// so they are parsed out at the transport level instead.
type graphQLTransport struct {
	t http.RoundTripper
}

var _ http.RoundTripper = (*graphQLTransport)(nil)

// WrapTransport wraps an HTTP transport
// with knowledge of GraphQL errors.
//
// The transport will now return errors that may be cast to
// [Errors] or [Error] with errors.As.
func WrapTransport(t http.RoundTripper) http.RoundTripper {
	if t == nil {
		t = http.DefaultTransport
	}
	return &graphQLTransport{t: t}
}

// RoundTrip handles a single HTTP round trip.
func (t *graphQLTransport) RoundTrip(r *http.Request) (res *http.Response, err error) {
	res, err = t.t.RoundTrip(r)
	if err != nil || res.StatusCode != http.StatusOK {
		return res, err
	}

	buff := takeBuffer()
	defer func() {
		// If there was an error, the buffer is not used in the
		// response, so return it to the pool now.
		if err != nil {
			putBuffer(buff)
		}
	}()

	// Read the entire response body into a buffer.
	_, readErr := io.Copy(buff, res.Body)
	closeErr := res.Body.Close()
	// As long as a nil error is returned, the response body must be
	// replaced so it can be read again.
	// The pooledReadCloser returns the buffer to the pool on Close.
	res.Body = &pooledReadCloser{
		Reader: bytes.NewReader(buff.Bytes()),
		buf:    buff,
	}
	if err := errors.Join(readErr, closeErr); err != nil {
		return nil, err
	}

	// If the response contains a GraphQL error, parse and return that
	// instead. gjson makes this cheap to check before parsing.
	errs := gjson.GetBytes(buff.Bytes(), "errors")
	if !errs.IsArray() || !errs.Get("0").IsObject() {
		return res, nil
	}

	var gqlErrs Errors
	if err := json.Unmarshal([]byte(errs.Raw), &gqlErrs); err != nil {
		// Not a valid GraphQL error; return the original response.
		return res, nil
	}

	must.NotBeEmptyf(gqlErrs, "expected at least one GraphQL error")
	return nil, gqlErrs
}

// Errors is a list of GraphQL errors.
type Errors []*Error

func (e Errors) Unwrap() []error {
	errs := make([]error, len(e))
	for i, err := range e {
		errs[i] = err
	}
	return errs
}

func (e Errors) Error() string {
	var s strings.Builder
	for i, err := range e {
		if i > 0 {
			s.WriteString("\n")
		}
		s.WriteString(err.Error())
	}
	return s.String()
}

// Error is a single GraphQL error.
// A single response may contain multiple errors.
type Error struct {
	Message string `json:"message"`
	Path    []any  `json:"path"`
	Type    string `json:"type"`
}

// Is reports whether this error matches the target error.
// Use errors.Is to match against this error.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Type == "NOT_FOUND"
	case ErrForbidden:
		return e.Type == "FORBIDDEN"
	case ErrUnprocessable:
		return e.Type == "UNPROCESSABLE"
	default:
		return false
	}
}

func (e *Error) Error() string {
	var s strings.Builder
	if len(e.Path) > 0 {
		for i, p := range e.Path {
			if i > 0 {
				s.WriteString(".")
			}
			s.WriteString(stringify(p))
		}
		s.WriteString(": ")
	}
	if len(e.Type) > 0 {
		s.WriteString(e.Type)
		s.WriteString(": ")
	}
	s.WriteString(e.Message)
	return s.String()
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	bs, err := json.Marshal(v)
	if err != nil {
		return "?"
	}
	return string(bs)
}

// pooledReadCloser wraps a bytes.Reader with a buffer
// that gets returned to the pool when Close is called.
type pooledReadCloser struct {
	*bytes.Reader
	buf *bytes.Buffer
}

func (p *pooledReadCloser) Close() error {
	if p.buf != nil {
		putBuffer(p.buf)
		p.buf = nil
	}
	return nil
}

var _bufferPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

func takeBuffer() *bytes.Buffer {
	buf := _bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	_bufferPool.Put(buf)
}
