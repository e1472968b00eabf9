package graphqlutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// retryPolicy bounds the exponential backoff for idempotent requests.
const (
	maxAttempts  = 4
	initialDelay = 500 * time.Millisecond
	maxDelay     = 8 * time.Second
)

// transientError marks a response that is worth retrying:
// a transport failure or a server-side (5xx) status.
type transientError struct {
	StatusCode int
	Err        error
}

func (e *transientError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("server error: %v", http.StatusText(e.StatusCode))
}

func (e *transientError) Unwrap() error { return e.Err }

// Retry runs fn, retrying transport failures and 5xx responses with
// bounded exponential backoff. fn must be idempotent: queries yes,
// mutations no.
//
// GraphQL-level errors (4xx semantics) are never retried.
func Retry(ctx context.Context, fn func(context.Context) error) error {
	delay := initialDelay
	var err error
	for attempt := range maxAttempts {
		err = fn(ctx)
		if err == nil || !isTransient(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, maxDelay)
	}
	return fmt.Errorf("after %d attempts: %w", maxAttempts, err)
}

func isTransient(err error) bool {
	var gqlErrs Errors
	if errors.As(err, &gqlErrs) {
		// A well-formed GraphQL error is semantic, not transient.
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var transient *transientError
	if errors.As(err, &transient) {
		return true
	}

	// The GraphQL client folds non-200 statuses into opaque errors,
	// so treat remaining errors as transport-level and retryable
	// unless they carry a 4xx status.
	var statusErr interface{ HTTPStatus() int }
	if errors.As(err, &statusErr) {
		code := statusErr.HTTPStatus()
		return code >= 500
	}
	return true
}

// retryTransport converts 5xx statuses into transientError so Retry
// can recognize them after the GraphQL client wraps the response.
type retryTransport struct {
	t http.RoundTripper
}

// WrapRetryTransport marks server-side failures as retryable.
// Compose it inside WrapTransport: 200 responses pass through unchanged,
// so WrapTransport still parses their GraphQL errors.
func WrapRetryTransport(t http.RoundTripper) http.RoundTripper {
	if t == nil {
		t = http.DefaultTransport
	}
	return &retryTransport{t: t}
}

func (t *retryTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	res, err := t.t.RoundTrip(r)
	if err != nil {
		return nil, &transientError{Err: err}
	}
	if res.StatusCode >= 500 {
		_ = res.Body.Close()
		return nil, &transientError{StatusCode: res.StatusCode}
	}
	return res, nil
}
