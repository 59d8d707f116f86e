package context

import (
	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"
)

// EntityFilter is a compiled CEL expression over entity metadata.
type EntityFilter struct {
	program cel.Program
}

// CompileFilter compiles a boolean CEL expression. The expression can use
// entity_id, domain, state, name, area, device and platform.
func CompileFilter(expr string) (*EntityFilter, error) {
	env, err := cel.NewEnv(
		cel.Variable("entity_id", cel.StringType),
		cel.Variable("domain", cel.StringType),
		cel.Variable("state", cel.StringType),
		cel.Variable("name", cel.StringType),
		cel.Variable("area", cel.StringType),
		cel.Variable("device", cel.StringType),
		cel.Variable("platform", cel.StringType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create filter environment")
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrapf(issues.Err(), "invalid filter %q", expr)
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.Errorf("filter %q must evaluate to a bool, got %s", expr, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build filter program %q", expr)
	}
	return &EntityFilter{program: program}, nil
}

// Match evaluates the filter. Evaluation errors count as no match.
func (f *EntityFilter) Match(state *EntityState, meta *EntityMetadata) bool {
	vars := map[string]any{
		"entity_id": state.EntityID,
		"domain":    state.Domain(),
		"state":     state.State,
		"name":      "",
		"area":      "",
		"device":    "",
		"platform":  "",
	}
	if meta != nil {
		vars["name"] = meta.DisplayName
		vars["area"] = meta.AreaName
		vars["device"] = meta.DeviceName
		vars["platform"] = meta.Platform
	}

	out, _, err := f.program.Eval(vars)
	if err != nil {
		return false
	}
	matched, ok := out.Value().(bool)
	return ok && matched
}
