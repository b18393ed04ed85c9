package locator

import (
	"context"
	"fmt"
	"strings"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/internal/oracle"
)

const textMatchSystemPrompt = `You are an intelligent semantic text analyzer responsible for selecting the closest value from the provided list of lists for the user given text.
Respond strictly in JSON format:
Schema: {
  "value": "string, exact value from the list of lists which is the most suitable value (do not modify the value in any way). If no value is suitable return TERMINATE",
  "index": "int, index of the list which contains the most suitable value [index starts from 0]. If no value is suitable return -1",
  "Reasoning": "string, one-line explanation for why this value was chosen"
}`

type textMatchDecision struct {
	Value     string `json:"value"`
	Index     any    `json:"index"`
	Reasoning string `json:"Reasoning"`
}

// OracleMatcher delegates fuzzy text selection to the decision oracle.
type OracleMatcher struct {
	oracle oracle.Oracle
	logger *zap.Logger
}

func NewOracleMatcher(o oracle.Oracle, logger *zap.Logger) *OracleMatcher {
	return &OracleMatcher{oracle: o, logger: logger.Named("text_matcher")}
}

func (m *OracleMatcher) Match(ctx context.Context, observed [][]string, want string) (string, error) {
	list, err := json.Marshal(observed)
	if err != nil {
		return "", fmt.Errorf("encoding observed texts: %w", err)
	}
	raw, err := m.oracle.Decide(ctx, oracle.Request{
		Role:         oracle.RoleTextMatcher,
		SystemPrompt: textMatchSystemPrompt,
		UserPrompt:   "List: " + string(list) + "\nUser text: " + want,
	})
	if err != nil {
		return "", err
	}
	decision, err := oracle.Decode[textMatchDecision](oracle.RoleTextMatcher, raw)
	if err != nil {
		return "", err
	}
	m.logger.Info("Closest text chosen",
		zap.String("want", want),
		zap.String("value", decision.Value),
		zap.Any("index", decision.Index),
		zap.String("reasoning", strings.TrimSpace(decision.Reasoning)))
	return decision.Value, nil
}
