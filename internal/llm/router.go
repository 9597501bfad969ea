package llm

import (
	"context"
	"errors"
)

// Router dispatches calls to a backend chosen by model ID.
type Router struct {
	fallback Gateway
	routes   map[string]Gateway
}

// NewRouter sends every model without an explicit route to fallback.
func NewRouter(fallback Gateway) *Router {
	return &Router{fallback: fallback, routes: make(map[string]Gateway)}
}

// Route binds model to gw. It returns r for chaining.
func (r *Router) Route(model string, gw Gateway) *Router {
	r.routes[model] = gw
	return r
}

func (r *Router) Invoke(ctx context.Context, prompt, model string, opts Options) (string, error) {
	gw, ok := r.routes[model]
	if !ok {
		gw = r.fallback
	}
	if gw == nil {
		return "", &ModelError{Kind: KindUnknown, Model: model, Err: errors.New("no backend configured")}
	}
	return gw.Invoke(ctx, prompt, model, opts)
}
