// internal/llmutil/parser.go
package llmutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	json "github.com/json-iterator/go"
)

var (
	// \x60 is a backtick; raw strings cannot contain one.
	jsonObjectRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*})\\s*\x60\x60\x60")
	jsonArrayRegex  = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*(\\[.*\\])\\s*\x60\x60\x60")

	jsonAPI = json.ConfigCompatibleWithStandardLibrary
)

// ParseJSONResponse parses an oracle reply into T. It tolerates markdown fences
// and conversational text around the JSON payload.
func ParseJSONResponse[T any](response string) (*T, error) {
	payload := extractPayload(strings.TrimSpace(response))

	var result T
	if err := jsonAPI.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted JSON (truncated): %s", err, truncateString(payload, 500))
	}
	return &result, nil
}

// ExtractJSONBlock returns the text between the first '{' and the last '}'.
// It returns an empty string when the reply holds no object.
func ExtractJSONBlock(response string) string {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return response[start : end+1]
}

func extractPayload(response string) string {
	isObject := strings.Contains(response, "{")
	isArray := strings.Contains(response, "[")

	if strings.HasPrefix(response, "```") {
		var matches []string
		if isObject {
			matches = jsonObjectRegex.FindStringSubmatch(response)
		}
		if len(matches) <= 1 && isArray {
			matches = jsonArrayRegex.FindStringSubmatch(response)
		}
		if len(matches) > 1 {
			return matches[1]
		}
		return response
	}

	if strings.HasPrefix(response, "{") || strings.HasPrefix(response, "[") {
		return response
	}
	if block := ExtractJSONBlock(response); block != "" {
		return block
	}
	if isArray {
		fb := strings.Index(response, "[")
		lb := strings.LastIndex(response, "]")
		if fb != -1 && lb > fb {
			return response[fb : lb+1]
		}
	}
	return response
}

// ValueAtPath decodes the JSON object embedded in response and walks a
// slash-separated path such as "/FunctionCalls/0/subTask". Numeric segments
// index arrays; all other segments select object keys.
func ValueAtPath(response, path string) (any, error) {
	block := ExtractJSONBlock(response)
	if block == "" {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var current any
	if err := jsonAPI.Unmarshal([]byte(block), &current); err != nil {
		return nil, fmt.Errorf("failed to decode JSON block: %w", err)
	}

	for _, segment := range strings.Split(strings.Trim(path, "/"), "/") {
		if segment == "" {
			continue
		}
		switch node := current.(type) {
		case map[string]any:
			value, ok := node[segment]
			if !ok {
				return nil, fmt.Errorf("key %q not found at path %s", segment, path)
			}
			current = value
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil {
				return nil, fmt.Errorf("segment %q is not an array index at path %s", segment, path)
			}
			if idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("index %d out of range at path %s", idx, path)
			}
			current = node[idx]
		default:
			return nil, fmt.Errorf("cannot descend into %T at segment %q", current, segment)
		}
	}
	return current, nil
}

// StringAtPath is ValueAtPath with the result rendered as text. Whole numbers
// render without a fraction so an ID of 3 reads "3".
func StringAtPath(response, path string) (string, error) {
	value, err := ValueAtPath(response, path)
	if err != nil {
		return "", err
	}
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		out, err := jsonAPI.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}

func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
