package hydration

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"
)

// JSRuntime is an Environment backed by a JavaScript VM. Running the
// emitted hydration script in it is the same operation a browser performs.
type JSRuntime struct {
	mu sync.Mutex
	vm *goja.Runtime
}

// NewJSRuntime creates a fresh VM with an empty global object.
func NewJSRuntime() *JSRuntime {
	return &JSRuntime{vm: goja.New()}
}

// Exec runs a script in the VM.
func (r *JSRuntime) Exec(script string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.vm.RunString(script); err != nil {
		return fmt.Errorf("run hydration script: %w", err)
	}
	return nil
}

// Lookup implements Environment. Arrays are exported as []any.
func (r *JSRuntime) Lookup(name string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := r.vm.GlobalObject().Get(name)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, false
	}
	return v.Export(), true
}
