package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/OrlandoBitencourt/flagscope/internal/domain"
)

// Admin serves read and refresh endpoints for one scope.
type Admin struct {
	scope  Scope
	logger *slog.Logger
	now    func() time.Time
}

// NewAdmin creates the admin endpoints.
func NewAdmin(scope Scope, logger *slog.Logger) *Admin {
	if logger == nil {
		logger = slog.Default()
	}
	return &Admin{scope: scope, logger: logger, now: time.Now}
}

// Handler returns the routes:
//
//	GET  /health
//	GET  /admin/flags
//	GET  /admin/flags/{key}
//	POST /admin/refresh
//	POST /admin/refresh/{key}
func (a *Admin) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("GET /admin/flags", a.handleFlags)
	mux.HandleFunc("GET /admin/flags/{key}", a.handleFlag)
	mux.HandleFunc("POST /admin/refresh", a.handleRefresh)
	mux.HandleFunc("POST /admin/refresh/{key}", a.handleRefreshFlag)
	return mux
}

type flagsResponse struct {
	ScopeID string        `json:"scope_id"`
	Loading bool          `json:"loading"`
	Error   string        `json:"error,omitempty"`
	Count   int           `json:"count"`
	Flags   []domain.Flag `json:"flags"`
}

func (a *Admin) handleHealth(w http.ResponseWriter, r *http.Request) {
	loading, err := a.scope.Status()
	status := "healthy"
	if err != nil {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"loading":   loading,
		"timestamp": a.now().Format(time.RFC3339),
	})
}

func (a *Admin) handleFlags(w http.ResponseWriter, r *http.Request) {
	loading, err := a.scope.Status()
	flags := a.scope.Snapshot()

	resp := flagsResponse{
		ScopeID: a.scope.ID(),
		Loading: loading,
		Count:   len(flags),
		Flags:   flags,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *Admin) handleFlag(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	for _, flag := range a.scope.Snapshot() {
		if flag.Key == key {
			writeJSON(w, http.StatusOK, flag)
			return
		}
	}
	writeError(w, domain.NewNotFoundError("flag", key))
}

func (a *Admin) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := a.scope.Refresh(r.Context()); err != nil {
		a.logger.WarnContext(r.Context(), "admin refresh failed", slog.Any("error", err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"count":  len(a.scope.Snapshot()),
	})
}

func (a *Admin) handleRefreshFlag(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	a.scope.Invalidate(key)

	flag, err := a.scope.RefreshFlag(r.Context(), key)
	if err != nil {
		a.logger.WarnContext(r.Context(), "admin flag refresh failed",
			slog.String("flag", key),
			slog.Any("error", err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, flag)
}
