package hydration

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/OrlandoBitencourt/flagscope/internal/domain"
	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const escapedLT = `\u003C`

func createFlag(key string, payload any) domain.Flag {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return domain.Flag{
		Key:         key,
		Enabled:     true,
		Payload:     payload,
		CreatedAt:   ts,
		UpdatedAt:   ts,
		Description: "test flag",
	}
}

// ---------------------------------------------------------
// Encode
// ---------------------------------------------------------

func TestEncode_DefaultGlobal(t *testing.T) {
	out, err := Encode([]domain.Flag{createFlag("beta", nil)}, "")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, `globalThis["__FLAGS_GLOBAL__"] = [`))
	assert.True(t, strings.HasSuffix(out, "];"))
	assert.Contains(t, out, `"slug":"beta"`)
}

func TestEncode_EscapesScriptTags(t *testing.T) {
	out, err := Encode([]domain.Flag{createFlag("beta", "</script><script>alert(1)</script>")}, "")
	require.NoError(t, err)

	assert.NotContains(t, out, "<")
	assert.NotContains(t, out, "</script>")
	assert.Contains(t, out, escapedLT+"/script>")
	assert.Contains(t, out, escapedLT+"script>")
}

func TestEncode_EscapesNestedPayloadsAndGlobalName(t *testing.T) {
	payload := map[string]any{"html": []any{"<b>", map[string]any{"x": "<i>"}}}
	out, err := Encode([]domain.Flag{createFlag("beta", payload)}, "<evil>")
	require.NoError(t, err)

	assert.NotContains(t, out, "<")
}

func TestEncode_KeepsAmpersandsReadable(t *testing.T) {
	out, err := EncodeJSON([]domain.Flag{createFlag("beta", "a & b > c")})
	require.NoError(t, err)
	assert.Contains(t, out, "a & b > c")
}

func TestEncode_NilIsEmptyArray(t *testing.T) {
	out, err := EncodeJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}

func TestEncode_UnserializablePayload(t *testing.T) {
	_, err := Encode([]domain.Flag{createFlag("beta", make(chan int))}, "")
	assert.Error(t, err)
}

// ---------------------------------------------------------
// Round trip
// ---------------------------------------------------------

func roundTripCases() [][]domain.Flag {
	expired := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	withExpiry := createFlag("expiring", nil)
	withExpiry.ExpiredAt = &expired

	return [][]domain.Flag{
		{createFlag("beta", map[string]any{"variant": "A"})},
		{createFlag("script", "<script>alert('x')</script>")},
		{createFlag("a", nil), createFlag("b", []any{"x", true}), withExpiry},
		{createFlag("unicode", "l\u00ednea \u2028 separada")},
	}
}

func TestRoundTrip_Globals(t *testing.T) {
	for _, flags := range roundTripCases() {
		script, err := Encode(flags, "")
		require.NoError(t, err)

		env := NewGlobals()
		require.NoError(t, env.Exec(script))

		got, ok := Decode(env, "")
		require.True(t, ok)
		assert.Equal(t, flags, got)
	}
}

func TestRoundTrip_JSRuntime(t *testing.T) {
	for _, flags := range roundTripCases() {
		script, err := Encode(flags, "__custom__")
		require.NoError(t, err)

		vm := NewJSRuntime()
		require.NoError(t, vm.Exec(script))

		got, ok := Decode(vm, "__custom__")
		require.True(t, ok)
		assert.Equal(t, flags, got)
	}
}

// ---------------------------------------------------------
// Decode
// ---------------------------------------------------------

func TestDecode_NoEnvironment(t *testing.T) {
	got, ok := Decode(nil, "")
	assert.False(t, ok)
	assert.Nil(t, got)

	var g *Globals
	_, ok = Decode(g, "")
	assert.False(t, ok)
}

func TestDecode_MissingGlobal(t *testing.T) {
	_, ok := Decode(NewGlobals(), DefaultGlobalName)
	assert.False(t, ok)

	_, ok = Decode(NewJSRuntime(), DefaultGlobalName)
	assert.False(t, ok)
}

func TestDecode_NotAnArray(t *testing.T) {
	env := NewGlobals()
	env.Set(DefaultGlobalName, map[string]any{"slug": "beta"})
	_, ok := Decode(env, "")
	assert.False(t, ok)

	vm := NewJSRuntime()
	require.NoError(t, vm.Exec(`globalThis["__FLAGS_GLOBAL__"] = "nope";`))
	_, ok = Decode(vm, "")
	assert.False(t, ok)
}

func TestDecode_TypedSliceIsCopied(t *testing.T) {
	flags := []domain.Flag{createFlag("hydrated", nil)}
	env := NewGlobals()
	env.Set(DefaultGlobalName, flags)

	got, ok := Decode(env, "")
	require.True(t, ok)
	got[0].Key = "changed"
	assert.Equal(t, "hydrated", flags[0].Key)
}

func TestGlobals_Delete(t *testing.T) {
	env := NewGlobals()
	env.Set("x", []any{})
	env.Delete("x")
	_, ok := env.Lookup("x")
	assert.False(t, ok)
}

func TestGlobals_ExecRejectsForeignScripts(t *testing.T) {
	env := NewGlobals()
	assert.Error(t, env.Exec(`window.x = 1;`))
	assert.Error(t, env.Exec(`globalThis[42] = [];`))
	assert.Error(t, env.Exec(`globalThis["x"] [];`))
	assert.Error(t, env.Exec(`globalThis["x"] = [;`))
}

func TestJSRuntime_ExecError(t *testing.T) {
	assert.Error(t, NewJSRuntime().Exec("this is not javascript"))
}

// ---------------------------------------------------------
// Reader
// ---------------------------------------------------------

func TestReader_ReadsOnce(t *testing.T) {
	env := NewGlobals()
	reader := NewReader(env, "")

	_, ok := reader.Read()
	assert.False(t, ok, "nothing hydrated yet")

	env.Set(DefaultGlobalName, []domain.Flag{createFlag("first", nil)})
	first, ok := reader.Read()
	require.True(t, ok)

	env.Set(DefaultGlobalName, []domain.Flag{createFlag("second", nil)})
	again, ok := reader.Read()
	require.True(t, ok)
	assert.Equal(t, first, again)
	assert.Equal(t, "first", again[0].Key)
}

func TestReader_Concurrent(t *testing.T) {
	env := NewGlobals()
	env.Set(DefaultGlobalName, []domain.Flag{createFlag("a", nil)})
	reader := NewReader(env, "")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			flags, ok := reader.Read()
			assert.True(t, ok)
			assert.Len(t, flags, 1)
		}()
	}
	wg.Wait()
}

// ---------------------------------------------------------
// Script
// ---------------------------------------------------------

func render(t *testing.T, ctx context.Context, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(ctx, &buf))
	return buf.String()
}

func TestScript_Defaults(t *testing.T) {
	markup := render(t, context.Background(), Script(ScriptProps{
		Flags: []domain.Flag{createFlag("beta", "<script>")},
	}))

	assert.True(t, strings.HasPrefix(markup, `<script id="flags-hydration">`))
	assert.True(t, strings.HasSuffix(markup, "</script>"))
	assert.Contains(t, markup, DefaultGlobalName)
	assert.Contains(t, markup, escapedLT+"script")
	assert.Equal(t, 1, strings.Count(markup, "<script"), "payload must stay escaped")
	assert.NotContains(t, markup, "nonce")
}

func TestScript_CustomAttributes(t *testing.T) {
	markup := render(t, context.Background(), Script(ScriptProps{
		ID:         `my"id`,
		Nonce:      "abc123",
		GlobalName: "__APP_FLAGS__",
	}))

	assert.Contains(t, markup, `id="my&#34;id"`)
	assert.Contains(t, markup, `nonce="abc123"`)
	assert.Contains(t, markup, `globalThis["__APP_FLAGS__"] = [];`)
}

func TestScript_NonceFromContext(t *testing.T) {
	ctx := templ.WithNonce(context.Background(), "ctx-nonce")
	markup := render(t, ctx, Script(ScriptProps{}))
	assert.Contains(t, markup, `nonce="ctx-nonce"`)
}

func TestScript_ExecutesInJSRuntime(t *testing.T) {
	flags := []domain.Flag{createFlag("beta", map[string]any{"variant": "A"})}
	markup := render(t, context.Background(), Script(ScriptProps{Flags: flags}))

	body := strings.TrimSuffix(markup[strings.Index(markup, ">")+1:], "</script>")
	vm := NewJSRuntime()
	require.NoError(t, vm.Exec(body))

	got, ok := Decode(vm, "")
	require.True(t, ok)
	assert.Equal(t, flags, got)
}
