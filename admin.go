package flagscope

import (
	"context"
	"net/http"

	"github.com/OrlandoBitencourt/flagscope/internal/server"
)

// WebhookSignatureHeader carries the hex HMAC-SHA256 of a webhook body.
const WebhookSignatureHeader = server.SignatureHeader

// WebhookPayload is the body of a flag change notification.
type WebhookPayload = server.WebhookPayload

// Middleware attaches the scope to every request context, so handlers can
// call UseFlag(r.Context(), ...).
func (s *Scope) Middleware(next http.Handler) http.Handler {
	return server.NewMiddleware(func(ctx context.Context) context.Context {
		return NewContext(ctx, s)
	}).Handler(next)
}

// AdminHandler serves the scope's admin endpoints:
//
//	GET  /health
//	GET  /admin/flags
//	GET  /admin/flags/{key}
//	POST /admin/refresh
//	POST /admin/refresh/{key}
func (s *Scope) AdminHandler() http.Handler {
	return server.NewAdmin(serverScope{s}, s.logger).Handler()
}

// WebhookHandler serves change notifications from the flag service. The
// body must be signed with secret (HMAC-SHA256, hex, in the
// X-Webhook-Signature header). An empty secret disables verification.
func (s *Scope) WebhookHandler(secret string) http.Handler {
	return server.NewWebhook(serverScope{s}, secret, s.logger)
}

// serverScope adapts a Scope to the HTTP handlers.
type serverScope struct {
	s *Scope
}

func (a serverScope) ID() string {
	return a.s.id
}

func (a serverScope) Snapshot() []Flag {
	return a.s.store.Snapshot().Flags()
}

func (a serverScope) Status() (bool, error) {
	st := a.s.coordinator.State()
	return st.Loading, st.Err
}

func (a serverScope) Refresh(ctx context.Context) error {
	return a.s.Refresh(ctx)
}

func (a serverScope) RefreshFlag(ctx context.Context, key string) (Flag, error) {
	if a.s.closed.Load() {
		return Flag{}, ErrScopeClosed
	}
	h, err := a.s.resolver.Resolve(key, WithRequireFetch(false))
	if err != nil {
		return Flag{}, err
	}
	return h.Refresh(ctx)
}

func (a serverScope) Invalidate(key string) {
	if inv, ok := a.s.client.(interface{ Invalidate(string) }); ok {
		inv.Invalidate(key)
	}
}
