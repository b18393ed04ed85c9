package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/xkilldash9x/pilot/internal/failures"
	"github.com/xkilldash9x/pilot/internal/locator"
)

// StringArg returns args[i] as a string. Integers are formatted.
func StringArg(args []any, i int, name string) (string, error) {
	if i >= len(args) || args[i] == nil {
		return "", fmt.Errorf("missing argument %s", name)
	}
	switch v := args[i].(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	default:
		return "", fmt.Errorf("argument %s: expected string, got %T", name, args[i])
	}
}

// OptionalString is StringArg with a default for a missing or None argument.
func OptionalString(args []any, i int, name, def string) (string, error) {
	if i >= len(args) || args[i] == nil {
		return def, nil
	}
	return StringArg(args, i, name)
}

// IntArg returns args[i] as an int, accepting numeric strings. A missing or
// None argument yields def.
func IntArg(args []any, i int, name string, def int) (int, error) {
	if i >= len(args) || args[i] == nil {
		return def, nil
	}
	switch v := args[i].(type) {
	case int:
		return v, nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("argument %s: %q is not an integer", name, v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("argument %s: expected integer, got %T", name, args[i])
	}
}

// Locator builds a locator function over template. Its parameters follow the
// template's slots: the text first, then the occurrence. Templates with a slot
// select the first occurrence unless told otherwise; slot-free templates are
// used as written.
func Locator(name, doc, template string, params ...string) Function {
	return Function{
		Name:   name,
		Class:  ClassLocator,
		Doc:    doc,
		Params: params,
		Handler: func(ctx context.Context, env Env, args []any) (any, error) {
			tmpl, err := locator.ParseTemplate(template)
			if err != nil {
				return nil, failures.Wrap(failures.KindResolution, name, err, "unusable template")
			}
			next := 0
			text := ""
			if tmpl.HasText {
				if text, err = OptionalString(args, next, "text", ""); err != nil {
					return nil, err
				}
				next++
			}
			position := 0
			if tmpl.HasText || tmpl.HasIndex {
				position = 1
			}
			if tmpl.HasIndex {
				if position, err = IntArg(args, next, "position", 1); err != nil {
					return nil, err
				}
			}
			return env.Locate(ctx, template, text, position)
		},
	}
}

// WithNextRef declares the page f leads to.
func (f Function) WithNextRef(page string) Function {
	f.NextRef = page
	return f
}
