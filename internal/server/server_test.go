package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/OrlandoBitencourt/flagscope/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScope struct {
	mu          sync.Mutex
	flags       []domain.Flag
	err         error
	refreshErr  error
	remote      map[string]domain.Flag
	refreshed   int
	invalidated []string
}

func newFakeScope(flags ...domain.Flag) *fakeScope {
	return &fakeScope{flags: flags, remote: make(map[string]domain.Flag)}
}

func (f *fakeScope) ID() string { return "scope-1" }

func (f *fakeScope) Snapshot() []domain.Flag {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Flag(nil), f.flags...)
}

func (f *fakeScope) Status() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return false, f.err
}

func (f *fakeScope) Refresh(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed++
	return f.refreshErr
}

func (f *fakeScope) RefreshFlag(ctx context.Context, key string) (domain.Flag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	flag, ok := f.remote[key]
	if !ok {
		return domain.Flag{}, domain.NewFetchError("get_flag", key, domain.NewNotFoundError("flag", key))
	}
	f.flags = append(f.flags, flag)
	return flag, nil
}

func (f *fakeScope) Invalidate(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, key)
}

func sign(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func serve(h http.Handler, method, target string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// ---- Admin ----

func TestAdmin_Health(t *testing.T) {
	scope := newFakeScope()
	h := NewAdmin(scope, nil).Handler()

	w := serve(h, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])

	scope.err = errors.New("last refresh failed")
	w = serve(h, http.MethodGet, "/health", nil, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
}

func TestAdmin_ListFlags(t *testing.T) {
	scope := newFakeScope(domain.Flag{Key: "a", Enabled: true}, domain.Flag{Key: "b"})
	h := NewAdmin(scope, nil).Handler()

	w := serve(h, http.MethodGet, "/admin/flags", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp flagsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "scope-1", resp.ScopeID)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "a", resp.Flags[0].Key)
	assert.Empty(t, resp.Error)
}

func TestAdmin_GetFlag(t *testing.T) {
	scope := newFakeScope(domain.Flag{Key: "a", Enabled: true})
	h := NewAdmin(scope, nil).Handler()

	w := serve(h, http.MethodGet, "/admin/flags/a", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var flag domain.Flag
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &flag))
	assert.True(t, flag.Enabled)

	w = serve(h, http.MethodGet, "/admin/flags/zzz", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdmin_Refresh(t *testing.T) {
	scope := newFakeScope()
	h := NewAdmin(scope, nil).Handler()

	w := serve(h, http.MethodPost, "/admin/refresh", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, scope.refreshed)

	scope.refreshErr = domain.NewFetchError("get_all_flags", "", errors.New("down"))
	w = serve(h, http.MethodPost, "/admin/refresh", nil, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = serve(h, http.MethodGet, "/admin/refresh", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestAdmin_RefreshFlag(t *testing.T) {
	scope := newFakeScope()
	scope.remote["beta"] = domain.Flag{Key: "beta", Enabled: true}
	h := NewAdmin(scope, nil).Handler()

	w := serve(h, http.MethodPost, "/admin/refresh/beta", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"beta"}, scope.invalidated)
	assert.Len(t, scope.Snapshot(), 1)

	w = serve(h, http.MethodPost, "/admin/refresh/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ---- Webhook ----

func TestWebhook_UpdateRefreshesFlags(t *testing.T) {
	scope := newFakeScope()
	scope.remote["a"] = domain.Flag{Key: "a"}
	scope.remote["b"] = domain.Flag{Key: "b"}
	secret := "abc123"
	wh := NewWebhook(scope, secret, nil)

	body := []byte(`{"event":"flag.updated","flag_keys":["a","b"]}`)
	w := serve(wh, http.MethodPost, "/webhook", body, map[string]string{SignatureHeader: sign(secret, body)})

	require.Equal(t, http.StatusOK, w.Code)
	var resp webhookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"a", "b"}, resp.Refreshed)
	assert.Equal(t, []string{"a", "b"}, scope.invalidated)
	assert.Len(t, scope.Snapshot(), 2)
}

func TestWebhook_PartialFailure(t *testing.T) {
	scope := newFakeScope()
	scope.remote["a"] = domain.Flag{Key: "a"}
	wh := NewWebhook(scope, "", nil)

	body := []byte(`{"event":"flag.created","flag_keys":["a","gone"]}`)
	w := serve(wh, http.MethodPost, "/webhook", body, nil)

	require.Equal(t, http.StatusMultiStatus, w.Code)
	var resp webhookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "partial", resp.Status)
	assert.Contains(t, resp.Failed, "gone")
}

func TestWebhook_InvalidSignature(t *testing.T) {
	scope := newFakeScope()
	wh := NewWebhook(scope, "secret", nil)

	body := []byte(`{"event":"flag.updated","flag_keys":["x"]}`)
	w := serve(wh, http.MethodPost, "/webhook", body, map[string]string{SignatureHeader: "invalid"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(wh, http.MethodPost, "/webhook", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, scope.invalidated)
}

func TestWebhook_Delete(t *testing.T) {
	scope := newFakeScope()
	wh := NewWebhook(scope, "", nil)

	body := []byte(`{"event":"flag.deleted","flag_keys":["x"]}`)
	w := serve(wh, http.MethodPost, "/webhook", body, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"x"}, scope.invalidated)
	assert.Empty(t, scope.Snapshot())
}

func TestWebhook_BadRequests(t *testing.T) {
	wh := NewWebhook(newFakeScope(), "", nil)

	w := serve(wh, http.MethodPost, "/webhook", []byte("{invalid"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(wh, http.MethodPost, "/webhook", []byte(`{"event":"flag.renamed"}`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(wh, http.MethodGet, "/webhook", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

// ---- Middleware ----

type ctxKey struct{}

func TestMiddleware_AttachesContext(t *testing.T) {
	mw := NewMiddleware(func(ctx context.Context) context.Context {
		return context.WithValue(ctx, ctxKey{}, "attached")
	})

	var seen any
	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Context().Value(ctxKey{})
	}))

	serve(h, http.MethodGet, "/", nil, nil)
	assert.Equal(t, "attached", seen)
}
