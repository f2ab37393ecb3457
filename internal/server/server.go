// Package server exposes a flag scope over HTTP: request-context
// middleware, admin endpoints and a webhook that refreshes flags when the
// flag service reports a change.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/OrlandoBitencourt/flagscope/internal/domain"
)

// Scope is what the handlers need from a flag scope.
type Scope interface {
	ID() string
	Snapshot() []domain.Flag
	Status() (loading bool, err error)
	Refresh(ctx context.Context) error
	RefreshFlag(ctx context.Context, key string) (domain.Flag, error)
	Invalidate(key string)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case domain.IsValidationError(err):
		status = http.StatusBadRequest
	case domain.IsNotFound(err):
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
