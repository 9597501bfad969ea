package llm

import (
	"context"
	"fmt"
	"sync"
)

// Runtime is an in-process text generator, such as a cgo binding to a local
// model file. Implementations are not expected to be safe for concurrent use
// or to honour context cancellation.
type Runtime interface {
	Generate(prompt, model string, temperature float64, maxTokens int) (string, error)
}

// Local adapts a Runtime to Gateway. Calls are serialised, and each call is
// raced against ctx and opts.Timeout; losing the race reports KindTimeout
// while the runtime finishes in the background.
type Local struct {
	rt Runtime
	mu sync.Mutex
}

func NewLocal(rt Runtime) *Local {
	return &Local{rt: rt}
}

type generation struct {
	text string
	err  error
}

func (l *Local) Invoke(ctx context.Context, prompt, model string, opts Options) (string, error) {
	ctx, cancel := withTimeout(ctx, opts)
	defer cancel()

	done := make(chan generation, 1)
	go func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		text, err := l.rt.Generate(prompt, model, opts.Temperature, opts.MaxTokens)
		done <- generation{text: text, err: err}
	}()

	select {
	case g := <-done:
		if g.err != nil {
			return "", classify(model, fmt.Errorf("local generate: %w", g.err))
		}
		if g.text == "" {
			return "", malformed(model, "local runtime returned no text")
		}
		return g.text, nil
	case <-ctx.Done():
		return "", &ModelError{Kind: KindTimeout, Model: model, Err: ctx.Err()}
	}
}
