// Package hydration moves a flag snapshot from a server render into the
// client that takes over the page, without refetching it.
//
// The server emits an inline script assigning the serialized flags to a
// well-known global name. The client reads that global once at bootstrap.
package hydration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/OrlandoBitencourt/flagscope/internal/domain"
)

const (
	// DefaultGlobalName is the global the hydration script assigns to.
	DefaultGlobalName = "__FLAGS_GLOBAL__"

	// DefaultScriptID is the id attribute of the emitted script element.
	DefaultScriptID = "flags-hydration"

	scriptPrefix = "globalThis["
)

// EncodeJSON serializes flags and escapes the result for inline scripts.
//
// Escaping runs on the JSON text, not on payload values: every "<" becomes
// \u003C, which JSON and JavaScript both decode back to "<". A payload
// containing "</script>" therefore cannot close the surrounding element,
// and decoding yields the original value.
func EncodeJSON(flags []domain.Flag) (string, error) {
	if flags == nil {
		flags = []domain.Flag{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(flags); err != nil {
		return "", fmt.Errorf("encode hydration flags: %w", err)
	}

	return escapeScript(strings.TrimSuffix(buf.String(), "\n")), nil
}

// Encode returns a script statement assigning flags to globalName.
// An empty globalName selects DefaultGlobalName.
func Encode(flags []domain.Flag, globalName string) (string, error) {
	if globalName == "" {
		globalName = DefaultGlobalName
	}

	payload, err := EncodeJSON(flags)
	if err != nil {
		return "", err
	}

	name, err := json.Marshal(globalName)
	if err != nil {
		return "", fmt.Errorf("encode hydration global name: %w", err)
	}

	return fmt.Sprintf("%s%s] = %s;", scriptPrefix, escapeScript(string(name)), payload), nil
}

// parseScript reverses Encode: it returns the assigned global name and the
// decoded JSON value.
func parseScript(script string) (string, any, error) {
	rest := strings.TrimSpace(script)
	if !strings.HasPrefix(rest, scriptPrefix) {
		return "", nil, domain.NewValidationError("hydration script must assign to globalThis")
	}
	rest = rest[len(scriptPrefix):]

	dec := json.NewDecoder(strings.NewReader(rest))
	var name string
	if err := dec.Decode(&name); err != nil {
		return "", nil, domain.NewValidationErrorWithCause("hydration script has an invalid global name", err)
	}
	rest = strings.TrimSpace(rest[dec.InputOffset():])

	if !strings.HasPrefix(rest, "]") {
		return "", nil, domain.NewValidationError("hydration script is missing ']'")
	}
	rest = strings.TrimSpace(rest[1:])
	if !strings.HasPrefix(rest, "=") {
		return "", nil, domain.NewValidationError("hydration script is missing '='")
	}
	rest = strings.TrimSuffix(strings.TrimSpace(rest[1:]), ";")

	var value any
	if err := json.Unmarshal([]byte(rest), &value); err != nil {
		return "", nil, domain.NewValidationErrorWithCause("hydration script has an invalid payload", err)
	}
	return name, value, nil
}

func escapeScript(s string) string {
	return strings.ReplaceAll(s, "<", `\u003C`)
}
