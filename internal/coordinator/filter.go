package coordinator

import (
	"fmt"
	"time"

	"github.com/OrlandoBitencourt/flagscope/internal/domain"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Filter is a compiled admission expression for bulk populate results,
// e.g. `enabled && !expired` or `payload != nil`.
//
// Variables: key, enabled, payload, description, expired, createdAt,
// updatedAt, now.
type Filter struct {
	source  string
	program *vm.Program
}

func filterEnv(flag domain.Flag, now time.Time) map[string]any {
	return map[string]any{
		"key":         flag.Key,
		"enabled":     flag.Enabled,
		"payload":     flag.Payload,
		"description": flag.Description,
		"expired":     flag.Expired(now),
		"createdAt":   flag.CreatedAt,
		"updatedAt":   flag.UpdatedAt,
		"now":         now,
	}
}

// CompileFilter compiles expression. It must evaluate to a bool.
func CompileFilter(expression string) (*Filter, error) {
	if expression == "" {
		return nil, domain.NewValidationError("filter expression cannot be empty")
	}

	program, err := expr.Compile(expression,
		expr.Env(filterEnv(domain.Flag{}, time.Time{})),
		expr.AsBool(),
	)
	if err != nil {
		return nil, domain.NewValidationErrorWithCause(fmt.Sprintf("invalid filter %q", expression), err)
	}

	return &Filter{source: expression, program: program}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	return f.source
}

// Match evaluates the filter for one flag.
func (f *Filter) Match(flag domain.Flag, now time.Time) (bool, error) {
	out, err := expr.Run(f.program, filterEnv(flag, now))
	if err != nil {
		return false, fmt.Errorf("evaluate filter for flag %s: %w", flag.Key, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// Apply keeps the flags that match, preserving order. A nil filter keeps
// everything.
func (f *Filter) Apply(flags []domain.Flag, now time.Time) ([]domain.Flag, error) {
	if f == nil {
		return flags, nil
	}

	kept := make([]domain.Flag, 0, len(flags))
	for _, flag := range flags {
		ok, err := f.Match(flag, now)
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, flag)
		}
	}
	return kept, nil
}
