package remote

import (
	"context"
	"sync"

	"github.com/OrlandoBitencourt/flagscope/internal/domain"
)

// MockClient is an in-memory Fetcher for tests and offline demos.
type MockClient struct {
	mu sync.Mutex

	order []string
	flags map[string]domain.Flag

	// Mock behaviors
	GetFlagFunc     func(ctx context.Context, slug string) (domain.Flag, error)
	GetAllFlagsFunc func(ctx context.Context) ([]domain.Flag, error)

	getFlagCalls     map[string]int
	getAllFlagsCalls int
}

// NewMockClient creates a mock seeded with flags.
func NewMockClient(flags ...domain.Flag) *MockClient {
	m := &MockClient{
		flags:        make(map[string]domain.Flag),
		getFlagCalls: make(map[string]int),
	}
	for _, flag := range flags {
		m.AddFlag(flag)
	}
	return m
}

// AddFlag adds or replaces a flag.
func (m *MockClient) AddFlag(flag domain.Flag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.flags[flag.Key]; !ok {
		m.order = append(m.order, flag.Key)
	}
	m.flags[flag.Key] = flag
}

// GetFlag returns the stored flag or a NotFoundError.
func (m *MockClient) GetFlag(ctx context.Context, slug string) (domain.Flag, error) {
	m.mu.Lock()
	m.getFlagCalls[slug]++
	fn := m.GetFlagFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, slug)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	flag, ok := m.flags[slug]
	if !ok {
		return domain.Flag{}, domain.NewNotFoundError("flag", slug)
	}
	return flag, nil
}

// GetAllFlags returns stored flags in insertion order.
func (m *MockClient) GetAllFlags(ctx context.Context) ([]domain.Flag, error) {
	m.mu.Lock()
	m.getAllFlagsCalls++
	fn := m.GetAllFlagsFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	flags := make([]domain.Flag, 0, len(m.order))
	for _, key := range m.order {
		flags = append(flags, m.flags[key])
	}
	return flags, nil
}

// GetFlagCalls returns how many times GetFlag was called for slug, or in
// total when slug is empty.
func (m *MockClient) GetFlagCalls(slug string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slug != "" {
		return m.getFlagCalls[slug]
	}
	total := 0
	for _, n := range m.getFlagCalls {
		total += n
	}
	return total
}

// GetAllFlagsCalls returns how many times GetAllFlags was called.
func (m *MockClient) GetAllFlagsCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getAllFlagsCalls
}

// Reset clears flags and call counters.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = nil
	m.flags = make(map[string]domain.Flag)
	m.getFlagCalls = make(map[string]int)
	m.getAllFlagsCalls = 0
}

// AssertCalled checks a method was called the expected number of times.
func (m *MockClient) AssertCalled(t interface{ Errorf(string, ...interface{}) }, method string, expected int) {
	var actual int
	switch method {
	case "GetFlag":
		actual = m.GetFlagCalls("")
	case "GetAllFlags":
		actual = m.GetAllFlagsCalls()
	default:
		t.Errorf("unknown method: %s", method)
		return
	}

	if actual != expected {
		t.Errorf("%s called %d times, expected %d", method, actual, expected)
	}
}
