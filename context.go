package flagscope

import "context"

type scopeKey struct{}

// NewContext returns a copy of ctx carrying scope. Code further down the
// call tree reaches the scope through FromContext or the Use helpers.
func NewContext(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// FromContext returns the scope attached to ctx, or ErrMissingScope.
func FromContext(ctx context.Context) (*Scope, error) {
	scope, ok := ctx.Value(scopeKey{}).(*Scope)
	if !ok || scope == nil {
		return nil, ErrMissingScope
	}
	return scope, nil
}

// UseFlag resolves key through the scope attached to ctx.
func UseFlag(ctx context.Context, key string, opts ...FlagOption) (*FlagHandle, error) {
	scope, err := FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return scope.Flag(key, opts...)
}

// UseFlags returns every flag of the scope attached to ctx.
func UseFlags(ctx context.Context) (Collection, error) {
	scope, err := FromContext(ctx)
	if err != nil {
		return Collection{}, err
	}
	return scope.Flags(), nil
}

// UseClient returns the flag service client of the scope attached to ctx.
func UseClient(ctx context.Context) (Fetcher, error) {
	scope, err := FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return scope.Client(), nil
}
