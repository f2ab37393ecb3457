package flagscope

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/OrlandoBitencourt/flagscope/internal/remote"
)

// MockFlagService is a mock flag service HTTP server for testing
type MockFlagService struct {
	*httptest.Server

	mu    sync.RWMutex
	order []string
	flags map[string]Flag
	hits  map[string]int
}

// NewMockFlagService creates a mock flag service seeded with flags
func NewMockFlagService(t *testing.T, flags ...Flag) *MockFlagService {
	mock := &MockFlagService{
		flags: make(map[string]Flag),
		hits:  make(map[string]int),
	}
	for _, f := range flags {
		mock.order = append(mock.order, f.Key)
		mock.flags[f.Key] = f
	}

	mux := http.NewServeMux()

	// GET /flags - List all flags
	mux.HandleFunc("GET /flags", func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.hits[r.URL.Path]++
		list := make([]Flag, 0, len(mock.order))
		for _, key := range mock.order {
			list = append(list, mock.flags[key])
		}
		mock.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"flags": list})
	})

	// GET /flags/{slug} - Get single flag
	mux.HandleFunc("GET /flags/{slug}", func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.hits[r.URL.Path]++
		flag, ok := mock.flags[r.PathValue("slug")]
		mock.mu.Unlock()

		if !ok {
			http.Error(w, "flag not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(flag)
	})

	mock.Server = httptest.NewServer(mux)
	t.Cleanup(mock.Close)
	return mock
}

// Hits returns how many requests reached path
func (m *MockFlagService) Hits(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hits[path]
}

// TotalHits returns the number of requests served
func (m *MockFlagService) TotalHits() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, n := range m.hits {
		total += n
	}
	return total
}

// Config returns a Config pointing at the mock service
func (m *MockFlagService) Config() Config {
	cfg := DefaultConfig()
	cfg.BaseURL = strings.TrimSuffix(m.URL, "/")
	cfg.ProjectKey = "project"
	cfg.EnvironmentKey = "production"
	cfg.MaxRetries = 0
	cfg.Cache.Enabled = false
	return cfg
}

func createTestFlag(key string, enabled bool) Flag {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return Flag{
		Key:         key,
		Enabled:     enabled,
		CreatedAt:   ts,
		UpdatedAt:   ts,
		Description: "test flag " + key,
	}
}

func newMockScope(t *testing.T, client *remote.MockClient, opts ...Option) *Scope {
	t.Helper()
	scope, err := New(Config{}, append([]Option{WithFetcher(client)}, opts...)...)
	if err != nil {
		t.Fatalf("new scope: %v", err)
	}
	t.Cleanup(func() { scope.Close() })
	return scope
}
