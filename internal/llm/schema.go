package llm

import "github.com/joseph-ayodele/policy-extractor/internal/entity"

// BuildPolicyJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// We pass this to the model as a structured output constraint and also use it locally to validate.
func BuildPolicyJSONSchema() map[string]any {
	fieldProps := make(map[string]any, len(entity.FieldNames))
	for _, n := range entity.FieldNames {
		fieldProps[string(n)] = map[string]any{"type": "string", "minLength": 1}
	}
	for _, n := range moneyFields {
		fieldProps[string(n)] = moneyProp()
	}
	dateProp := map[string]any{"type": "string", "pattern": `^\d{1,2}/\d{1,2}/\d{2,4}$|^[A-Z][a-z]+\.? \d{1,2}, \d{4}$`}
	fieldProps[string(entity.FieldEffectiveDate)] = dateProp
	fieldProps[string(entity.FieldExpirationDate)] = dateProp

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"extracted_text": map[string]any{"type": "string"},
			"page_count":     map[string]any{"type": "integer", "minimum": 0},
			"confidence":     map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"fields": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties":           fieldProps,
			},
		},
		"required": []string{"extracted_text", "fields"},
	}
}

var moneyFields = []entity.FieldName{
	entity.FieldDwellingLimit,
	entity.FieldPersonalPropertyLimit,
	entity.FieldLiabilityLimit,
	entity.FieldDeductibleAmount,
}

func moneyProp() map[string]any {
	return map[string]any{
		"type":    "string",
		"pattern": `^\$\d[\d,]*(\.\d{2})?$`,
	}
}
