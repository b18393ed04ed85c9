// Package oracle is the decision surface every agent in the run loop consults.
// Callers send a role-tagged prompt and receive raw text; decoding into typed
// decisions happens here so malformed replies surface as protocol failures.
package oracle

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/api/schemas"
	"github.com/xkilldash9x/pilot/internal/failures"
	"github.com/xkilldash9x/pilot/internal/llmutil"
)

// Role names the decision being requested.
type Role string

const (
	RoleOrchestrator     Role = "orchestrator"
	RolePlanner          Role = "planner"
	RoleFailureAnalyzer  Role = "failure_analyzer"
	RoleLearner          Role = "learner"
	RoleTextMatcher      Role = "text_matcher"
	RoleDriftCheck       Role = "drift_check"
	RoleAssertion        Role = "assertion"
	RoleVisualAssertion  Role = "visual_assertion"
	RoleDescribeUI       Role = "describe_ui"
	RoleVisualExtraction Role = "visual_extraction"
)

// Request is one oracle consultation. Image is an optional PNG screenshot.
type Request struct {
	Role         Role
	SystemPrompt string
	UserPrompt   string
	Image        []byte
}

// Oracle answers decision requests with raw text.
type Oracle interface {
	Decide(ctx context.Context, req Request) (string, error)
}

// Func adapts a plain function to Oracle.
type Func func(ctx context.Context, req Request) (string, error)

func (f Func) Decide(ctx context.Context, req Request) (string, error) { return f(ctx, req) }

// LLMOracle serves decisions from a language model.
type LLMOracle struct {
	client      schemas.LLMClient
	timeout     time.Duration
	temperature float32
	logger      *zap.Logger
	calls       atomic.Int64
}

// NewLLMOracle wraps client. A zero timeout disables the per-call deadline.
func NewLLMOracle(client schemas.LLMClient, timeout time.Duration, temperature float32, logger *zap.Logger) *LLMOracle {
	return &LLMOracle{
		client:      client,
		timeout:     timeout,
		temperature: temperature,
		logger:      logger.Named("oracle"),
	}
}

// Decide forwards req to the model on the tier that suits its role.
func (o *LLMOracle) Decide(ctx context.Context, req Request) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	o.calls.Add(1)

	start := time.Now()
	out, err := o.client.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt:  req.SystemPrompt,
		UserPrompt:    req.UserPrompt,
		Image:         req.Image,
		ImageMIMEType: "image/png",
		Tier:          tierFor(req.Role),
		Options: schemas.GenerationOptions{
			Temperature:     o.temperature,
			ForceJSONFormat: expectsJSON(req.Role),
		},
	})
	if err != nil {
		return "", fmt.Errorf("oracle %s: %w", req.Role, err)
	}
	o.logger.Debug("Oracle decision received",
		zap.String("role", string(req.Role)),
		zap.Duration("duration", time.Since(start)),
		zap.Int("chars", len(out)))
	return out, nil
}

// Calls reports how many decisions this oracle has been asked for.
func (o *LLMOracle) Calls() int64 { return o.calls.Load() }

func tierFor(role Role) schemas.ModelTier {
	switch role {
	case RoleTextMatcher, RoleDriftCheck, RoleDescribeUI:
		return schemas.TierFast
	default:
		return schemas.TierPowerful
	}
}

// Verdict-style roles answer "true|reason" rather than JSON.
func expectsJSON(role Role) bool {
	switch role {
	case RoleDriftCheck, RoleAssertion, RoleVisualAssertion, RoleDescribeUI, RoleVisualExtraction:
		return false
	default:
		return true
	}
}

// Decode parses a JSON decision. Malformed replies are oracle protocol failures.
func Decode[T any](role Role, raw string) (*T, error) {
	out, err := llmutil.ParseJSONResponse[T](raw)
	if err != nil {
		return nil, failures.Wrap(failures.KindOracleProtocol, string(role), err, "malformed decision")
	}
	return out, nil
}

// Verdict is a parsed "true|reason" answer.
type Verdict struct {
	OK     bool
	Reason string
}

// ParseVerdict reads a "true|reason" or "false|reason" answer. Surrounding
// whitespace and quotes are ignored; anything other than true/false before
// the first pipe is a protocol failure.
func ParseVerdict(role Role, raw string) (Verdict, error) {
	text := strings.Trim(strings.TrimSpace(raw), "\"'`")
	head, reason, _ := strings.Cut(text, "|")
	switch strings.ToLower(strings.TrimSpace(head)) {
	case "true":
		return Verdict{OK: true, Reason: strings.TrimSpace(reason)}, nil
	case "false":
		return Verdict{OK: false, Reason: strings.TrimSpace(reason)}, nil
	default:
		return Verdict{}, failures.New(failures.KindOracleProtocol, string(role), "expected true|reason, got %q", raw)
	}
}

// Directive values an agent name may carry instead of a catalog entry.
const (
	Complete  = "COMPLETE"
	Terminate = "TERMINATE"
)

// IsTerminate reports whether an agent or function name asks to stop.
func IsTerminate(name string) bool {
	name = strings.TrimSpace(name)
	return name == "" || strings.EqualFold(name, Terminate)
}

// IsComplete reports whether name signals that the task is done.
func IsComplete(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), Complete)
}
