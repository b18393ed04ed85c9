// Package command defines the typed form of a planned automation call and a
// parser for the call syntax the planner emits, for example
//
//	locator.ferryTupleByFerryName("Sea Star", 1)
//	helper.assertion(f"fare is {variables['fare']}")
//	click(search_widget.src())
//
// Calls are parsed, never evaluated as code.
package command

import (
	"strconv"
	"strings"
)

// ArgKind discriminates Arg.
type ArgKind int

const (
	ArgString ArgKind = iota
	ArgInt
	ArgBool
	ArgNone
	// ArgVariable reads a captured run variable: variables['key'].
	ArgVariable
	// ArgConfig reads a test-data value: getConfig('<key>') or a bare '<key>' literal.
	ArgConfig
	// ArgTemplate interpolates captured variables into text: f"...{variables['key']}...".
	ArgTemplate
	// ArgCall is a nested call whose result becomes the argument.
	ArgCall
)

func (k ArgKind) String() string {
	switch k {
	case ArgString:
		return "string"
	case ArgInt:
		return "int"
	case ArgBool:
		return "bool"
	case ArgNone:
		return "none"
	case ArgVariable:
		return "variable"
	case ArgConfig:
		return "config"
	case ArgTemplate:
		return "template"
	case ArgCall:
		return "call"
	default:
		return "unknown"
	}
}

// Segment is one piece of a template: literal text or a variable reference.
type Segment struct {
	Literal string
	Var     string
}

// IsVar reports whether the segment references a variable.
func (s Segment) IsVar() bool { return s.Var != "" }

// Arg is a single positional argument.
type Arg struct {
	Kind     ArgKind
	Str      string
	Int      int
	Bool     bool
	Segments []Segment
	Call     *Command
}

func String(s string) Arg          { return Arg{Kind: ArgString, Str: s} }
func Int(n int) Arg                { return Arg{Kind: ArgInt, Int: n} }
func Bool(b bool) Arg              { return Arg{Kind: ArgBool, Bool: b} }
func None() Arg                    { return Arg{Kind: ArgNone} }
func Variable(key string) Arg      { return Arg{Kind: ArgVariable, Str: key} }
func Config(key string) Arg        { return Arg{Kind: ArgConfig, Str: key} }
func Nested(c *Command) Arg        { return Arg{Kind: ArgCall, Call: c} }
func Template(segs ...Segment) Arg { return Arg{Kind: ArgTemplate, Segments: segs} }

// Command is one call: an optional namespace, a function name and positional args.
type Command struct {
	// Namespace is the prefix as written (helper, locator, agent or an agent
	// name); empty for bare calls.
	Namespace string
	Name      string
	Args      []Arg
}

// String renders the command in canonical call syntax.
func (c *Command) String() string {
	var b strings.Builder
	if c.Namespace != "" {
		b.WriteString(c.Namespace)
		b.WriteByte('.')
	}
	b.WriteString(c.Name)
	b.WriteByte('(')
	for i, a := range c.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	b.WriteByte(')')
	return b.String()
}

func (a Arg) String() string {
	switch a.Kind {
	case ArgString:
		return quote(a.Str)
	case ArgInt:
		return strconv.Itoa(a.Int)
	case ArgBool:
		if a.Bool {
			return "True"
		}
		return "False"
	case ArgNone:
		return "None"
	case ArgVariable:
		return "variables[" + quote(a.Str) + "]"
	case ArgConfig:
		return "getConfig(" + quote(a.Str) + ")"
	case ArgTemplate:
		var b strings.Builder
		b.WriteString(`f"`)
		for _, s := range a.Segments {
			if s.IsVar() {
				b.WriteString("{variables['" + s.Var + "']}")
				continue
			}
			lit := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "{", "{{", "}", "}}", "\n", `\n`).Replace(s.Literal)
			b.WriteString(lit)
		}
		b.WriteByte('"')
		return b.String()
	case ArgCall:
		if a.Call == nil {
			return "None"
		}
		return a.Call.String()
	default:
		return "?"
	}
}

func quote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`).Replace(s) + `"`
}

// IsConfigPlaceholder reports whether s is a bare test-data key such as "<source_city>".
func IsConfigPlaceholder(s string) bool {
	return len(s) > 2 && strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") &&
		!strings.ContainsAny(s[1:len(s)-1], "<> ")
}
