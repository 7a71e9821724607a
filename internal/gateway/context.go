package gateway

import "context"

type requestContextKey struct{}

// WithParentRequest marks ctx as executing under req. The gateway sets this
// before dispatching to a runner; runner tests set it directly.
func WithParentRequest(ctx context.Context, req Request) context.Context {
	return context.WithValue(ctx, requestContextKey{}, req)
}

// ParentRequest returns the request whose runner is currently executing.
// Composite runners use it to attribute delegated calls to the originating
// session and stage.
func ParentRequest(ctx context.Context) (Request, bool) {
	req, ok := ctx.Value(requestContextKey{}).(Request)
	return req, ok
}
