package server

import (
	"context"
	"net/http"
)

// Middleware runs attach on every request context, so handlers further
// down can resolve flags from r.Context().
type Middleware struct {
	attach func(context.Context) context.Context
}

// NewMiddleware creates the middleware.
func NewMiddleware(attach func(context.Context) context.Context) *Middleware {
	return &Middleware{attach: attach}
}

// Handler wraps next.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(m.attach(r.Context())))
	})
}
