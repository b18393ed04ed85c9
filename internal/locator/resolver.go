package locator

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/pilot/internal/failures"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = 500 * time.Millisecond
)

// Prober observes live content. schemas.Driver satisfies it.
type Prober interface {
	Count(ctx context.Context, xpath string) (int, error)
	Texts(ctx context.Context, xpath string) ([]string, error)
}

// TextMatcher picks the observed line closest to want. It returns an empty
// string or "TERMINATE" when nothing is close enough.
type TextMatcher interface {
	Match(ctx context.Context, observed [][]string, want string) (string, error)
}

// Options tunes a Resolver.
type Options struct {
	Timeout      time.Duration
	PollInterval time.Duration
	// ExactMatch disables fuzzy text matching.
	ExactMatch bool
}

// Resolution is a concrete expression plus how it was reached.
type Resolution struct {
	Expression string
	// Text is the observed text the expression selects, if any.
	Text string
	// Fuzzy is set when Text came from the matcher rather than an exact line.
	Fuzzy bool
	// Matches counts elements the any-occurrence probe saw.
	Matches int
}

// Resolver resolves locator templates against a Prober.
type Resolver struct {
	prober  Prober
	matcher TextMatcher
	opts    Options
	logger  *zap.Logger
}

// NewResolver creates a Resolver. matcher may be nil when ExactMatch is set.
func NewResolver(prober Prober, matcher TextMatcher, opts Options, logger *zap.Logger) *Resolver {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Resolver{prober: prober, matcher: matcher, opts: opts, logger: logger.Named("locator")}
}

// Resolve produces a concrete expression for raw. Position 0 returns the
// multi-match form, a positive position selects that occurrence and a
// negative one counts from the end. text is ignored by templates without a
// text slot.
func (r *Resolver) Resolve(ctx context.Context, raw, text string, position int) (Resolution, error) {
	tmpl, err := ParseTemplate(raw)
	if err != nil {
		return Resolution{}, resolutionError(err, "")
	}

	count, err := r.await(ctx, tmpl.Any)
	if err != nil {
		return Resolution{}, err
	}

	res := Resolution{Matches: count}
	expr := tmpl.Any
	if text != "" && tmpl.HasText {
		matched, fuzzy, err := r.matchText(ctx, tmpl.Any, text)
		if err != nil {
			return Resolution{}, err
		}
		res.Text, res.Fuzzy = matched, fuzzy
		expr = tmpl.Fill(matched)
	}

	switch {
	case position == 0:
		res.Expression = expr
	case position < 0:
		res.Expression = Wrap(expr, "last()+1"+strconv.Itoa(position))
	default:
		res.Expression = Wrap(expr, strconv.Itoa(position))
	}

	r.logger.Debug("Locator resolved",
		zap.String("template", raw),
		zap.String("expression", res.Expression),
		zap.Bool("fuzzy", res.Fuzzy),
		zap.Int("matches", count))
	return res, nil
}

// await polls the any-occurrence probe until it matches or the window closes.
func (r *Resolver) await(ctx context.Context, probe string) (int, error) {
	pollCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()
	limiter := rate.NewLimiter(rate.Every(r.opts.PollInterval), 1)

	var lastErr error
	for {
		if err := limiter.Wait(pollCtx); err != nil {
			break
		}
		n, err := r.prober.Count(pollCtx, probe)
		if err == nil && n > 0 {
			return n, nil
		}
		lastErr = err
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if lastErr != nil && !errors.Is(lastErr, context.DeadlineExceeded) {
		r.logger.Debug("Last probe error before timeout", zap.String("probe", probe), zap.Error(lastErr))
	}
	return 0, resolutionError(ErrUnresolved, "no element matches "+probe+" within "+r.opts.Timeout.String())
}

func (r *Resolver) matchText(ctx context.Context, probe, want string) (string, bool, error) {
	texts, err := r.prober.Texts(ctx, probe)
	if err != nil {
		return "", false, failures.Wrap(failures.KindResolution, "locator", err, "reading candidate texts")
	}
	observed := splitLines(texts)
	for _, lines := range observed {
		if slices.Contains(lines, want) {
			return want, false, nil
		}
	}

	if r.opts.ExactMatch || r.matcher == nil {
		r.logger.Error("No element text exactly matches and fuzzy matching is disabled",
			zap.String("want", want), zap.String("probe", probe))
		return "", false, failures.New(failures.KindResolution, "locator", "no element text exactly matches %q (exact matching enabled)", want)
	}

	picked, err := r.matcher.Match(ctx, observed, want)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		return "", false, err
	}
	picked = strings.TrimSpace(picked)
	if picked == "" || strings.EqualFold(picked, "TERMINATE") {
		return "", false, resolutionError(ErrUnresolved, "no reasonable match for "+strconv.Quote(want))
	}
	for _, lines := range observed {
		if slices.Contains(lines, picked) {
			r.logger.Info("Fuzzy text match selected", zap.String("want", want), zap.String("picked", picked))
			return picked, true, nil
		}
	}
	return "", false, resolutionError(ErrUnresolved, "matcher picked "+strconv.Quote(picked)+" which is not on the page")
}

// splitLines breaks each element's text into trimmed, non-empty lines.
func splitLines(texts []string) [][]string {
	out := make([][]string, 0, len(texts))
	for _, t := range texts {
		var lines []string
		for _, line := range strings.Split(t, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
		out = append(out, lines)
	}
	return out
}

func resolutionError(err error, msg string) error {
	return &failures.Error{Kind: failures.KindResolution, Op: "locator", Msg: msg, Err: err}
}
