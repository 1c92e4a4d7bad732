package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// DecodeAnalysis validates model output against the policy schema and maps it
// to an Analysis. With lenient set, offending optionals are sanitized and the
// document re-validated before giving up. The returned bytes are the JSON that
// was finally accepted.
func DecodeAnalysis(content []byte, lenient bool, logger *slog.Logger) (Analysis, []byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	content = []byte(stripCodeFence(string(content)))
	schema, err := compiledPolicySchema()
	if err != nil {
		return Analysis{}, content, err
	}

	if err := ValidateJSON(schema, content); err != nil {
		if !lenient {
			logger.Error("llm.analyze.schema_validation_failed", "error", err)
			return Analysis{}, content, fmt.Errorf("schema validation failed: %w", err)
		}
		cleaned, dropped, sErr := SanitizeOptionalFields(content)
		if sErr != nil {
			logger.Error("llm.analyze.sanitize_failed", "error", sErr)
			return Analysis{}, content, fmt.Errorf("sanitize failed: %w", sErr)
		}
		if vErr := ValidateJSON(schema, cleaned); vErr != nil {
			logger.Error("llm.analyze.schema_validation_failed", "error", vErr)
			return Analysis{}, content, fmt.Errorf("schema validation failed: %w", vErr)
		}
		logger.Warn("llm.analyze.lenient_sanitize_applied", "dropped", dropped)
		content = cleaned
	}

	var w wireAnalysis
	if err := json.Unmarshal(content, &w); err != nil {
		return Analysis{}, content, fmt.Errorf("unmarshal analysis: %w", err)
	}
	return w.toAnalysis(), content, nil
}

// stripCodeFence removes a ```json ... ``` wrapper some models add despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
