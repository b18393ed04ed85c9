// Package locator turns parameterized XPath templates into concrete
// expressions that match live content, healing hard-coded occurrence indexes
// and near-miss text along the way.
package locator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnresolved marks a template or lookup that cannot produce an expression.
var ErrUnresolved = errors.New("locator unresolved")

const (
	textSlot = "{text}"
	// MaxSlots is the number of parameters a template can be resolved with.
	MaxSlots = 2
)

var (
	slotPattern          = regexp.MustCompile(`\{[^}]*\}`)
	trailingIndexPattern = regexp.MustCompile(`\)\[\d+\]`)
	textEqualsPredicate  = regexp.MustCompile(`\s*=\s*['"]\{text\}['"]`)
	textArgPredicate     = regexp.MustCompile(`,\s*['"]\{text\}['"]`)
	quotedTextSlot       = regexp.MustCompile(`'\{text\}'|"\{text\}"`)

	// A text slot is substituted only as the quoted string operand of a
	// predicate over the element's own text.
	textSubject   = `(?:\.|text\(\)|normalize-space\(\s*(?:\.|text\(\))?\s*\))`
	predicateOpen = `(?:\[|(?:^|[^\w-])(?:not)?\(|\s(?:and|or)\s)\s*`
	textBefore    = []*regexp.Regexp{
		regexp.MustCompile(predicateOpen + textSubject + `\s*=\s*$`),
		regexp.MustCompile(predicateOpen + `(?:contains|starts-with)\(\s*` + textSubject + `\s*,\s*$`),
	}
	textAfter = []*regexp.Regexp{
		regexp.MustCompile(`^\s*(?:\]|\)|(?:and|or)\s)`),
		regexp.MustCompile(`^\s*\)\s*(?:\]|\)|(?:and|or)\s)`),
	}
	// elementStep matches a location step that selects elements.
	elementStep = regexp.MustCompile(`^(?:(?:child|descendant|descendant-or-self|self|parent|ancestor|ancestor-or-self|` +
		`following|following-sibling|preceding|preceding-sibling)::)?(?:\*|[A-Za-z_][\w.-]*(?::[A-Za-z_][\w.-]*)?)$`)
)

// Template is a canonicalized locator template.
type Template struct {
	Raw string
	// Specific keeps the {text} predicate; it carries no occurrence index.
	Specific string
	// Any drops the text predicate and matches every occurrence.
	Any     string
	HasText bool
	// HasIndex reports whether the raw template declared an occurrence slot.
	HasIndex bool
}

// ParseTemplate canonicalizes raw into its specific and any-occurrence forms.
func ParseTemplate(raw string) (*Template, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, unresolved("empty template")
	}
	slots := slotPattern.FindAllStringIndex(raw, -1)
	for _, loc := range slots {
		if !isIndexSlot(raw, loc) && !isTextSlot(raw, loc) {
			return nil, unresolved("slot %s is neither an occurrence index nor a text-content value: %s", raw[loc[0]:loc[1]], raw)
		}
	}
	if len(slots) > MaxSlots {
		return nil, unresolved("template has %d slots, at most %d can be resolved", len(slots), MaxSlots)
	}

	t := &Template{Raw: raw}
	var canonical string
	switch len(slots) {
	case 0:
		canonical = raw
	case 1:
		if isIndexSlot(raw, slots[0]) {
			prefix, err := trailingIndexPrefix(raw, slots[0])
			if err != nil {
				return nil, err
			}
			canonical = parenthesize(prefix)
			t.HasIndex = true
		} else {
			canonical = raw[:slots[0][0]] + textSlot + raw[slots[0][1]:]
			canonical = dropLastHardIndex(canonical)
			t.HasText = true
		}
	case 2:
		first, second := isIndexSlot(raw, slots[0]), isIndexSlot(raw, slots[1])
		if first == second {
			return nil, unresolved("two-slot template needs exactly one occurrence slot and one text slot: %s", raw)
		}
		idx, txt := slots[1], slots[0]
		if first {
			idx, txt = slots[0], slots[1]
		}
		prefix, err := trailingIndexPrefix(raw, idx)
		if err != nil {
			return nil, err
		}
		// The text slot precedes the trailing index, so its offsets hold in prefix.
		canonical = parenthesize(prefix[:txt[0]] + textSlot + prefix[txt[1]:])
		t.HasText, t.HasIndex = true, true
	}

	t.Specific = canonical
	t.Any = canonical
	if t.HasText {
		t.Any = textEqualsPredicate.ReplaceAllString(t.Any, "")
		t.Any = textArgPredicate.ReplaceAllString(t.Any, ",''")
		if strings.Contains(t.Any, textSlot) {
			return nil, unresolved("cannot derive an any-text variant from %s", raw)
		}
	}
	return t, nil
}

// Fill substitutes text into the specific form, quoting it as an XPath literal.
func (t *Template) Fill(text string) string {
	out := quotedTextSlot.ReplaceAllLiteralString(t.Specific, xpathLiteral(text))
	return strings.ReplaceAll(out, textSlot, text)
}

// isTextSlot reports whether the slot at loc is a whole quoted literal
// compared against the text of an element selected by the enclosing step.
func isTextSlot(raw string, loc []int) bool {
	if loc[0] == 0 || loc[1] >= len(raw) {
		return false
	}
	q := raw[loc[0]-1]
	if (q != '\'' && q != '"') || raw[loc[1]] != q {
		return false
	}
	before, after := raw[:loc[0]-1], raw[loc[1]+1:]
	matched := false
	for i, re := range textBefore {
		if re.MatchString(before) && textAfter[i].MatchString(after) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	open := enclosingPredicate(before)
	if open < 0 {
		return false
	}
	step, ok := lastStep(raw[:open])
	return ok && elementStep.MatchString(step)
}

// enclosingPredicate returns the offset of the innermost '[' still open at
// the end of expr, ignoring quoted literals.
func enclosingPredicate(expr string) int {
	var stack []int
	var quote byte
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '[':
			stack = append(stack, i)
		case c == ']':
			if len(stack) == 0 {
				return -1
			}
			stack = stack[:len(stack)-1]
		}
	}
	if quote != 0 || len(stack) == 0 {
		return -1
	}
	return stack[len(stack)-1]
}

// lastStep returns the final location step of expr with its predicates
// removed. Groups are entered; function calls and unions are not steps.
func lastStep(expr string) (string, bool) {
	for {
		expr = strings.TrimRight(expr, " \t\n")
		if expr == "" {
			return "", false
		}
		switch expr[len(expr)-1] {
		case ']':
			open := matchingOpen(expr, '[', ']')
			if open < 0 {
				return "", false
			}
			expr = expr[:open]
		case ')':
			open := matchingOpen(expr, '(', ')')
			if open < 0 {
				return "", false
			}
			if open > 0 && isNameByte(expr[open-1]) {
				return "", false
			}
			inner := expr[open+1 : len(expr)-1]
			if strings.Contains(inner, "|") {
				return "", false
			}
			expr = inner
		default:
			start := strings.LastIndexAny(expr, "/[( \t\n|")
			return expr[start+1:], true
		}
	}
}

// matchingOpen finds the bracket opening the one that ends expr.
func matchingOpen(expr string, opening, closing byte) int {
	depth := 0
	var quote byte
	for i := len(expr) - 1; i >= 0; i-- {
		c := expr[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == closing:
			depth++
		case c == opening:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isNameByte(c byte) bool {
	return c == '_' || c == '-' || c == '.' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIndexSlot(raw string, loc []int) bool {
	return loc[0] > 0 && raw[loc[0]-1] == '[' && loc[1] < len(raw) && raw[loc[1]] == ']'
}

// trailingIndexPrefix returns the template before its "[{slot}]", which must end the template.
func trailingIndexPrefix(raw string, loc []int) (string, error) {
	if loc[1]+1 != len(raw) {
		return "", unresolved("occurrence slot must be the last step of the template: %s", raw)
	}
	return raw[:loc[0]-1], nil
}

func dropLastHardIndex(s string) string {
	all := trailingIndexPattern.FindAllStringIndex(s, -1)
	if len(all) == 0 {
		return s
	}
	last := all[len(all)-1]
	return s[:last[0]] + ")" + s[last[1]:]
}

// Wrap applies an occurrence index to the whole expression.
func Wrap(expr, index string) string {
	return parenthesize(expr) + "[" + index + "]"
}

func parenthesize(expr string) string {
	if fullyParenthesized(expr) {
		return expr
	}
	return "(" + expr + ")"
}

// fullyParenthesized reports whether the first '(' closes at the last byte.
// Parentheses inside quoted literals are ignored.
func fullyParenthesized(expr string) bool {
	if len(expr) < 2 || expr[0] != '(' || expr[len(expr)-1] != ')' {
		return false
	}
	depth := 0
	var quote byte
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i == len(expr)-1
			}
		}
	}
	return false
}

func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, "'"+p+"'")
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

func unresolved(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnresolved, fmt.Sprintf(format, args...))
}
