package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/internal/failures"
	"github.com/xkilldash9x/pilot/internal/oracle"
)

const verdictRules = `Respond with true/false, then a | symbol, then your reasoning. Follow this format exactly and output nothing else.
Date validation: validate only the day number and the month (any format). Ignore the year, the date format and the time unless explicitly requested.`

const (
	assertionPrompt       = "You are a helpful assistant that checks whether a statement holds.\n" + verdictRules
	visualAssertionPrompt = "You are a helpful assistant that checks a statement against a screenshot of a web application.\n" + verdictRules + `
Position checks: "X is below Y" holds only when X is directly below Y; horizontal alignment is irrelevant for above/below checks.`
	extractionPrompt      = "You are a helpful assistant. Extract the text the user describes from the given image and return it as a plain string without quotes. If no such text is visible, return None. Return nothing else."
)

// DefaultPause is how long wait_pause sleeps when no duration is given.
const DefaultPause = 5 * time.Second

// Helpers returns the shared helper functions.
func Helpers() []Function {
	return []Function{
		{Name: "click", Doc: "Click the element.", Params: []string{"element"}, Handler: click},
		{Name: "type", Doc: "Type text into the element.", Params: []string{"element", "text"}, Handler: typeText},
		{Name: "clearText", Doc: "Clear the input element.", Params: []string{"element"}, Handler: clearText},
		{
			Name:     "getText",
			Doc:      "Capture the text matching description from the screen near element (may be None) and store it in variables[keyName].",
			Params:   []string{"element", "description", "keyName"},
			Isolated: true,
			Handler:  getText,
		},
		{
			Name:     "assertion",
			Doc:      "Check a statement built from the task and captured variables; a false statement fails the run.",
			Params:   []string{"assertion"},
			Isolated: true,
			Handler:  assertion,
		},
		{
			Name:     "assertionVisual",
			Doc:      "Check a statement against a screenshot taken near element (may be None); a false statement fails the run.",
			Params:   []string{"element", "assertion"},
			Isolated: true,
			Handler:  assertionVisual,
		},
		{Name: "wait_pause", Doc: "Pause for the given number of seconds (default 5).", Params: []string{"seconds"}, Handler: waitPause},
		{Name: "refreshPage", Doc: "Reload the current page.", Handler: refreshPage},
		{Name: "scrollToElement", Doc: "Scroll the element into view.", Params: []string{"element"}, Handler: scrollToElement},
		{Name: "navigateBack", Doc: "Go back to the previous page.", Handler: navigateBack},
	}
}

// RegisterHelpers adds every helper to r.
func RegisterHelpers(r *Registry) error {
	for _, f := range Helpers() {
		if err := r.RegisterHelper(f); err != nil {
			return err
		}
	}
	return nil
}

func click(ctx context.Context, env Env, args []any) (any, error) {
	el, err := StringArg(args, 0, "element")
	if err != nil || env.DryRun() {
		return nil, err
	}
	return nil, env.Driver().Click(ctx, el)
}

func typeText(ctx context.Context, env Env, args []any) (any, error) {
	el, err := StringArg(args, 0, "element")
	if err != nil {
		return nil, err
	}
	text, err := StringArg(args, 1, "text")
	if err != nil || env.DryRun() {
		return nil, err
	}
	return nil, env.Driver().Type(ctx, el, text)
}

func clearText(ctx context.Context, env Env, args []any) (any, error) {
	el, err := StringArg(args, 0, "element")
	if err != nil || env.DryRun() {
		return nil, err
	}
	return nil, env.Driver().Clear(ctx, el)
}

func scrollToElement(ctx context.Context, env Env, args []any) (any, error) {
	el, err := StringArg(args, 0, "element")
	if err != nil || env.DryRun() {
		return nil, err
	}
	return nil, env.Driver().ScrollIntoView(ctx, el)
}

func refreshPage(ctx context.Context, env Env, _ []any) (any, error) {
	if env.DryRun() {
		return nil, nil
	}
	return nil, env.Driver().Reload(ctx)
}

func navigateBack(ctx context.Context, env Env, _ []any) (any, error) {
	if env.DryRun() {
		return nil, nil
	}
	return nil, env.Driver().Back(ctx)
}

func waitPause(ctx context.Context, env Env, args []any) (any, error) {
	seconds, err := IntArg(args, 0, "seconds", int(DefaultPause/time.Second))
	if err != nil {
		return nil, err
	}
	if seconds <= 0 || env.DryRun() {
		return nil, nil
	}
	timer := time.NewTimer(time.Duration(seconds) * time.Second)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	}
}

func assertion(ctx context.Context, env Env, args []any) (any, error) {
	statement, err := StringArg(args, 0, "assertion")
	if err != nil || env.DryRun() {
		return nil, err
	}
	raw, err := env.Oracle().Decide(ctx, oracle.Request{
		Role:         oracle.RoleAssertion,
		SystemPrompt: assertionPrompt,
		UserPrompt:   statement,
	})
	if err != nil {
		return nil, err
	}
	return judge(env, oracle.RoleAssertion, statement, raw)
}

func assertionVisual(ctx context.Context, env Env, args []any) (any, error) {
	statement, err := StringArg(args, 1, "assertion")
	if err != nil || env.DryRun() {
		return nil, err
	}
	shot, err := screenNear(ctx, env, args)
	if err != nil {
		return nil, err
	}
	raw, err := env.Oracle().Decide(ctx, oracle.Request{
		Role:         oracle.RoleVisualAssertion,
		SystemPrompt: visualAssertionPrompt + "\nToday's date: " + time.Now().Format("02-January-2006") + ".",
		UserPrompt:   statement,
		Image:        shot,
	})
	if err != nil {
		return nil, err
	}
	return judge(env, oracle.RoleVisualAssertion, statement, raw)
}

func judge(env Env, role oracle.Role, statement, raw string) (any, error) {
	v, err := oracle.ParseVerdict(role, raw)
	if err != nil {
		return nil, err
	}
	env.Logger().Info("Assertion evaluated",
		zap.String("assertion", statement),
		zap.Bool("result", v.OK),
		zap.String("reason", v.Reason))
	if !v.OK {
		return nil, failures.New(failures.KindAssertion, string(role), "assertion failed: %s (%s)", statement, v.Reason)
	}
	return true, nil
}

func getText(ctx context.Context, env Env, args []any) (any, error) {
	description, err := StringArg(args, 1, "description")
	if err != nil {
		return nil, err
	}
	key, err := OptionalString(args, 2, "keyName", "")
	if err != nil || env.DryRun() {
		return nil, err
	}
	shot, err := screenNear(ctx, env, args)
	if err != nil {
		return nil, err
	}
	raw, err := env.Oracle().Decide(ctx, oracle.Request{
		Role:         oracle.RoleVisualExtraction,
		SystemPrompt: extractionPrompt,
		UserPrompt:   description,
		Image:        shot,
	})
	if err != nil {
		return nil, err
	}

	val := strings.Trim(strings.TrimSpace(raw), "\"'`")
	if val == "" || strings.EqualFold(val, "none") {
		env.Logger().Warn("No text found for description", zap.String("description", description))
		return nil, nil
	}
	if key != "" {
		env.SetVariable(key, val)
		env.Logger().Info("Text captured", zap.String("key", key), zap.String("value", val))
	}
	return val, nil
}

// screenNear scrolls to the optional element in args[0] and takes a screenshot.
func screenNear(ctx context.Context, env Env, args []any) ([]byte, error) {
	if len(args) > 0 && args[0] != nil {
		if el, ok := args[0].(string); ok {
			if err := env.Driver().ScrollIntoView(ctx, el); err != nil {
				env.Logger().Debug("Could not scroll before capture, continuing", zap.String("element", el), zap.Error(err))
			}
		}
	}
	shot, err := env.Driver().Screenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("capturing screen: %w", err)
	}
	return shot, nil
}
