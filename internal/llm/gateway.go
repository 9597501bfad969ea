// Package llm sends prompts to text-generation backends.
//
// Every backend implements Gateway and reports failures as *ModelError.
// Backends never retry; the caller decides whether to try another model.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

// Options tune one model call. Zero values mean "backend default".
type Options struct {
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Gateway turns a prompt into raw model text.
type Gateway interface {
	Invoke(ctx context.Context, prompt, model string, opts Options) (string, error)
}

// ErrorKind classifies model call failures.
type ErrorKind string

const (
	KindTimeout           ErrorKind = "timeout"
	KindConnectionRefused ErrorKind = "connection_refused"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindUnknown           ErrorKind = "unknown"
)

// ModelError is returned by every Gateway implementation.
type ModelError struct {
	Kind  ErrorKind
	Model string
	Err   error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model %s: %s: %v", e.Model, e.Kind, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// IsKind reports whether err is a *ModelError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var me *ModelError
	return errors.As(err, &me) && me.Kind == kind
}

func malformed(model string, format string, args ...any) *ModelError {
	return &ModelError{Kind: KindMalformedResponse, Model: model, Err: fmt.Errorf(format, args...)}
}

// classify maps a transport error onto the failure taxonomy.
func classify(model string, err error) *ModelError {
	var me *ModelError
	if errors.As(err, &me) {
		return me
	}

	kind := KindUnknown
	var netErr net.Error
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		kind = KindConnectionRefused
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		kind = KindMalformedResponse
	}
	return &ModelError{Kind: kind, Model: model, Err: err}
}

// withTimeout derives a call context bounded by opts.Timeout.
func withTimeout(ctx context.Context, opts Options) (context.Context, context.CancelFunc) {
	if opts.Timeout > 0 {
		return context.WithTimeout(ctx, opts.Timeout)
	}
	return context.WithCancel(ctx)
}
