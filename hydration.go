package flagscope

import (
	"github.com/OrlandoBitencourt/flagscope/internal/hydration"
	"github.com/a-h/templ"
)

// DefaultHydrationGlobal is the global name the hydration script assigns.
const DefaultHydrationGlobal = hydration.DefaultGlobalName

type (
	// HydrationEnvironment is a global namespace the hydration script
	// writes into, such as a browser window or a JSRuntime.
	HydrationEnvironment = hydration.Environment

	// HydrationReader reads hydration data once per page load.
	HydrationReader = hydration.Reader

	// HydrationGlobals is an in-process HydrationEnvironment.
	HydrationGlobals = hydration.Globals

	// JSRuntime is a HydrationEnvironment backed by a JavaScript VM.
	JSRuntime = hydration.JSRuntime
)

// NewHydrationReader reads the flags assigned to globalName in env. An
// empty globalName selects DefaultHydrationGlobal.
func NewHydrationReader(env HydrationEnvironment, globalName string) *HydrationReader {
	return hydration.NewReader(env, globalName)
}

// NewHydrationGlobals returns an empty in-process namespace.
func NewHydrationGlobals() *HydrationGlobals {
	return hydration.NewGlobals()
}

// NewJSRuntime returns a fresh JavaScript VM.
func NewJSRuntime() *JSRuntime {
	return hydration.NewJSRuntime()
}

// HydrationOption configures HydrationScript.
type HydrationOption func(*hydration.ScriptProps)

// WithScriptID sets the id attribute of the script element.
// Default: "flags-hydration"
func WithScriptID(id string) HydrationOption {
	return func(p *hydration.ScriptProps) { p.ID = id }
}

// WithScriptNonce sets the CSP nonce. Without it the nonce attached to the
// render context with templ.WithNonce is used.
func WithScriptNonce(nonce string) HydrationOption {
	return func(p *hydration.ScriptProps) { p.Nonce = nonce }
}

// WithGlobalName sets the global the script assigns to.
func WithGlobalName(name string) HydrationOption {
	return func(p *hydration.ScriptProps) { p.GlobalName = name }
}

// HydrationScript renders an inline script element carrying flags to the
// client. Payloads are escaped so they cannot terminate the element.
//
// Example:
//
//	flags, err := flagscope.FetchFlags(ctx, cfg)
//	...
//	flagscope.HydrationScript(flags).Render(ctx, w)
func HydrationScript(flags []Flag, opts ...HydrationOption) templ.Component {
	props := hydration.ScriptProps{Flags: flags}
	for _, opt := range opts {
		opt(&props)
	}
	return hydration.Script(props)
}

// HydrationScript renders the scope's current flags.
func (s *Scope) HydrationScript(opts ...HydrationOption) templ.Component {
	return HydrationScript(s.store.Snapshot().Flags(), opts...)
}

// EncodeHydration returns the bare script statement HydrationScript wraps.
func EncodeHydration(flags []Flag, globalName string) (string, error) {
	return hydration.Encode(flags, globalName)
}

// ReadHydratedFlags reads the flags assigned to globalName in env. It
// reports false when env is nil or holds no usable data.
func ReadHydratedFlags(env HydrationEnvironment, globalName string) ([]Flag, bool) {
	return hydration.Decode(env, globalName)
}
