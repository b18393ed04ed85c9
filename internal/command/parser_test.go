package command

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want *Command
	}{
		{
			name: "namespaced locator with literal args",
			src:  `locator.ferryTupleByFerryName("X", 1)`,
			want: &Command{Namespace: "locator", Name: "ferryTupleByFerryName", Args: []Arg{String("X"), Int(1)}},
		},
		{
			name: "bare call with no args",
			src:  `refreshPage()`,
			want: &Command{Name: "refreshPage"},
		},
		{
			name: "helper with nested locator",
			src:  `helper.click(search_widget.src())`,
			want: &Command{Namespace: "helper", Name: "click", Args: []Arg{
				Nested(&Command{Namespace: "search_widget", Name: "src"}),
			}},
		},
		{
			name: "config and variable args",
			src:  `type(search_widget.src(), getConfig('<source_city>'), variables["fare"])`,
			want: &Command{Name: "type", Args: []Arg{
				Nested(&Command{Namespace: "search_widget", Name: "src"}),
				Config("<source_city>"),
				Variable("fare"),
			}},
		},
		{
			name: "keywords and negative integer",
			src:  `agent.selectDate(None, True, False, -2)`,
			want: &Command{Namespace: "agent", Name: "selectDate", Args: []Arg{None(), Bool(true), Bool(false), Int(-2)}},
		},
		{
			name: "template with variable reference",
			src:  `helper.assertion(f"fare is {variables['fare']} INR")`,
			want: &Command{Namespace: "helper", Name: "assertion", Args: []Arg{
				Template(Segment{Literal: "fare is "}, Segment{Var: "fare"}, Segment{Literal: " INR"}),
			}},
		},
		{
			name: "escaped quotes and trailing comma",
			src:  ` assertion('it\'s open', ) `,
			want: &Command{Name: "assertion", Args: []Arg{String("it's open")}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.src)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"named argument", `click(element=src())`, "named arguments are not supported"},
		{"unterminated string", `type(src(), "abc)`, "unterminated string"},
		{"unterminated args", `click(src()`, "unterminated argument list"},
		{"bare identifier", `click(src)`, `bare identifier "src"`},
		{"template expression", `assertion(f"{price}")`, "template expressions must be variables"},
		{"trailing input", `click(src()) extra`, "unexpected trailing input"},
		{"not a call", `TERMINATE`, `expected '('`},
		{"getConfig arity", `type(src(), getConfig())`, "getConfig takes a single string key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			require.Error(t, err)
			var pe *ParseError
			assert.True(t, errors.As(err, &pe))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestCommandString(t *testing.T) {
	src := `helper.type(search_widget.src(), getConfig("<source_city>"), f"{variables['a']} and {{b}}", -1, None)`
	cmd, err := Parse(src)
	require.NoError(t, err)

	rendered := cmd.String()
	assert.Equal(t, `helper.type(search_widget.src(), getConfig("<source_city>"), f"{variables['a']} and {{b}}", -1, None)`, rendered)

	again, err := Parse(rendered)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(cmd, again))
}

func TestIsConfigPlaceholder(t *testing.T) {
	assert.True(t, IsConfigPlaceholder("<source_city>"))
	assert.False(t, IsConfigPlaceholder("<>"))
	assert.False(t, IsConfigPlaceholder("source_city"))
	assert.False(t, IsConfigPlaceholder("<a b>"))
	assert.False(t, IsConfigPlaceholder("1 < 2 > 0"))
}
