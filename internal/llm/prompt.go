package llm

import (
	"encoding/json"
	"strings"
)

// BuildSystemPrompt composes the system message: what to transcribe, which
// fields to structure and the formatting rules the schema enforces.
func BuildSystemPrompt() string {
	parts := []string{
		"You are a document analysis service for homeowners and property insurance policies.",
		"Return ONLY JSON that matches the provided JSON Schema.",
		"Put the full plain text of the document, in reading order, in 'extracted_text'.",
		"Set 'page_count' to the number of pages you read.",
		"Under 'fields', fill what the document states: policy number, named insured, insurance company, " +
			"property (risk) address, effective and expiration dates, dwelling (Coverage A) limit, " +
			"personal property (Coverage C) limit, personal liability limit, deductible, mortgagee and agent.",
		"Write dates exactly as printed when they look like MM/DD/YYYY or 'Month D, YYYY'.",
		"Write money as a dollar sign followed by digits, keeping thousands separators (e.g. $350,000).",
		"Set 'confidence' between 0 and 1 for how sure you are of the fields overall.",
		"Never output null. If a field is not present, omit it.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the file name hint and, when the backend does not
// take documents inline, the schema.
func BuildUserPrompt(req AnalyzeRequest, includeSchema bool) string {
	var b strings.Builder
	if name := strings.TrimSpace(req.FileName); name != "" {
		b.WriteString("Filename: ")
		b.WriteString(name)
		b.WriteString("\n")
	}
	b.WriteString("Extract the policy declarations from the attached document.\n")
	if includeSchema {
		b.WriteString("\nJSON Schema:\n")
		b.WriteString(SchemaText())
	}
	return b.String()
}

// SchemaText is BuildPolicyJSONSchema rendered for a prompt.
func SchemaText() string {
	b, _ := json.MarshalIndent(BuildPolicyJSONSchema(), "", "  ")
	return string(b)
}
