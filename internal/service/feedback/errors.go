package feedback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrEmptyCompletion is returned by completers that got no text back.
var ErrEmptyCompletion = errors.New("completion returned no text")

// ErrorClass groups completion failures by how a caller should react.
type ErrorClass string

const (
	ClassRetryable ErrorClass = "retryable"
	ClassNotFound  ErrorClass = "not_found"
	ClassFatal     ErrorClass = "fatal"
)

// CompletionError is a completion failure with the provider's HTTP status,
// when one is known.
type CompletionError struct {
	StatusCode int
	Err        error
}

func (e *CompletionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("completion failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("completion failed: %v", e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

var retryableMessages = []string{"timeout", "timed out", "network", "connection reset", "connection refused", "unavailable", "econnreset"}

// Classify maps a completion error onto a class. Timeouts, 408, 429, 5xx and
// network failures are retryable; 404 is not-found; everything else,
// including 401 and 403, is fatal.
func Classify(err error) ErrorClass {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassRetryable
	}
	var cerr *CompletionError
	if errors.As(err, &cerr) && cerr.StatusCode != 0 {
		switch code := cerr.StatusCode; {
		case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
			return ClassRetryable
		case code == http.StatusNotFound:
			return ClassNotFound
		default:
			return ClassFatal
		}
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return ClassRetryable
	}
	msg := strings.ToLower(err.Error())
	for _, m := range retryableMessages {
		if strings.Contains(msg, m) {
			return ClassRetryable
		}
	}
	return ClassFatal
}

// ErrNoCompleter is returned by Unavailable.
var ErrNoCompleter = errors.New("no text completion backend configured")

// Unavailable is the Completer of deployments without a completion backend.
// Every call fails, so assessable transcripts get the fallback report.
type Unavailable struct{}

func (Unavailable) Complete(context.Context, Request) (string, error) {
	return "", ErrNoCompleter
}
