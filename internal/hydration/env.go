package hydration

import (
	"sync"

	"github.com/OrlandoBitencourt/flagscope/internal/domain"
)

// Environment is a global namespace the hydration script writes into.
// A nil Environment means the running context has no globals at all
// (for example a server render).
type Environment interface {
	Lookup(name string) (any, bool)
}

// Decode reads the flags assigned to globalName. It reports false when no
// hydration data is available: no environment, no such global, or a value
// that is not an array of flags.
func Decode(env Environment, globalName string) ([]domain.Flag, bool) {
	if env == nil {
		return nil, false
	}
	if globalName == "" {
		globalName = DefaultGlobalName
	}

	v, ok := env.Lookup(globalName)
	if !ok {
		return nil, false
	}

	switch value := v.(type) {
	case []domain.Flag:
		out := make([]domain.Flag, len(value))
		copy(out, value)
		return out, true
	case []any:
		flags, err := domain.FromJSON(value)
		if err != nil {
			return nil, false
		}
		return flags, true
	default:
		return nil, false
	}
}

// Globals is a process-local key-value handoff for one page load. The
// server render writes it once, client bootstrap reads it.
type Globals struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewGlobals returns an empty namespace.
func NewGlobals() *Globals {
	return &Globals{values: make(map[string]any)}
}

// Lookup implements Environment.
func (g *Globals) Lookup(name string) (any, bool) {
	if g == nil {
		return nil, false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.values[name]
	return v, ok
}

// Set assigns a global.
func (g *Globals) Set(name string, value any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values[name] = value
}

// Delete removes a global.
func (g *Globals) Delete(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.values, name)
}

// Exec applies a script produced by Encode.
func (g *Globals) Exec(script string) error {
	name, value, err := parseScript(script)
	if err != nil {
		return err
	}
	g.Set(name, value)
	return nil
}

// Reader reads hydration data at most once. After the first successful
// read it keeps returning the same flags without touching the environment.
type Reader struct {
	env  Environment
	name string

	mu    sync.Mutex
	done  bool
	flags []domain.Flag
}

// NewReader creates a Reader for globalName in env.
func NewReader(env Environment, globalName string) *Reader {
	return &Reader{env: env, name: globalName}
}

// Read returns the hydrated flags, if any.
func (r *Reader) Read() ([]domain.Flag, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return r.flags, true
	}

	flags, ok := Decode(r.env, r.name)
	if !ok {
		return nil, false
	}
	r.done = true
	r.flags = flags
	return flags, true
}
