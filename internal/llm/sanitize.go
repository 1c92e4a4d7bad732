package llm

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

var (
	reMoney = regexp.MustCompile(`^\$\d[\d,]*(\.\d{2})?$`)
	reDate  = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{2,4}$|^[A-Z][a-z]+\.? \d{1,2}, \d{4}$`)

	// names models like to use instead of ours
	fieldSynonyms = map[string]entity.FieldName{
		"insured":           entity.FieldInsuredName,
		"named_insured":     entity.FieldInsuredName,
		"insurer":           entity.FieldInsurerName,
		"carrier":           entity.FieldInsurerName,
		"company":           entity.FieldInsurerName,
		"address":           entity.FieldPropertyAddress,
		"property":          entity.FieldPropertyAddress,
		"deductible":        entity.FieldDeductibleAmount,
		"policy_no":         entity.FieldPolicyNumber,
		"effective":         entity.FieldEffectiveDate,
		"expiration":        entity.FieldExpirationDate,
		"mortgagee":         entity.FieldMortgageeInfo,
		"agent":             entity.FieldAgentInfo,
		"personal_property": entity.FieldPersonalPropertyLimit,
	}
)

// SanitizeOptionalFields removes or normalizes values that don't meet our stricter schema,
// so the overall document can still validate. Required keys are kept; offending
// optionals are renamed, coerced or dropped. The second return lists what changed.
func SanitizeOptionalFields(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, err
	}

	var dropped []string

	for k := range maps.Clone(m) {
		switch k {
		case "extracted_text", "page_count", "confidence", "fields":
		default:
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	if v, ok := m["extracted_text"]; !ok || v == nil {
		m["extracted_text"] = ""
	} else if _, isStr := v.(string); !isStr {
		m["extracted_text"] = fmt.Sprint(v)
		dropped = append(dropped, "extracted_text(type)")
	}

	switch t := m["page_count"].(type) {
	case nil:
		delete(m, "page_count")
	case float64:
		if t < 0 {
			delete(m, "page_count")
			dropped = append(dropped, "page_count(negative)")
		} else {
			m["page_count"] = int(t)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil && n >= 0 {
			m["page_count"] = n
		} else {
			delete(m, "page_count")
			dropped = append(dropped, "page_count(type)")
		}
	default:
		delete(m, "page_count")
		dropped = append(dropped, "page_count(type)")
	}

	if v, ok := m["confidence"]; ok {
		c, ok := toFloat(v)
		if ok && c > 1 && c <= 100 {
			// percent scale
			c /= 100
		}
		if !ok || c < 0 || c > 1 {
			delete(m, "confidence")
			dropped = append(dropped, "confidence")
		} else {
			m["confidence"] = c
		}
	}

	fields, _ := m["fields"].(map[string]any)
	if fields == nil {
		fields = map[string]any{}
	}
	m["fields"] = sanitizeFields(fields, &dropped)

	b, err := json.Marshal(m)
	if err != nil {
		return nil, nil, err
	}
	return b, dropped, nil
}

func sanitizeFields(in map[string]any, dropped *[]string) map[string]any {
	known := make(map[string]struct{}, len(entity.FieldNames))
	for _, n := range entity.FieldNames {
		known[string(n)] = struct{}{}
	}

	out := make(map[string]any, len(in))
	for k, v := range in {
		key := strings.ToLower(strings.TrimSpace(k))
		if syn, ok := fieldSynonyms[key]; ok {
			if _, exists := in[string(syn)]; exists {
				*dropped = append(*dropped, k+"(duplicate)")
				continue
			}
			*dropped = append(*dropped, k+"->"+string(syn))
			key = string(syn)
		}
		if _, ok := known[key]; !ok {
			*dropped = append(*dropped, k+"(unknown)")
			continue
		}

		s, ok := fieldString(entity.FieldName(key), v)
		if !ok {
			*dropped = append(*dropped, key)
			continue
		}
		out[key] = s
	}
	return out
}

func fieldString(name entity.FieldName, v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = strings.TrimSpace(t)
	case float64:
		if !isMoney(name) {
			return "", false
		}
		if t == float64(int64(t)) {
			s = "$" + strconv.FormatInt(int64(t), 10)
		} else {
			s = "$" + strconv.FormatFloat(t, 'f', 2, 64)
		}
	default:
		return "", false
	}
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") {
		return "", false
	}

	switch {
	case isMoney(name):
		s = strings.ReplaceAll(s, " ", "")
		if !strings.HasPrefix(s, "$") {
			s = "$" + s
		}
		return s, reMoney.MatchString(s)
	case name == entity.FieldEffectiveDate || name == entity.FieldExpirationDate:
		return s, reDate.MatchString(s)
	}
	return s, true
}

func isMoney(name entity.FieldName) bool {
	for _, n := range moneyFields {
		if n == name {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(t), "%"), 64)
		return f, err == nil
	}
	return 0, false
}
