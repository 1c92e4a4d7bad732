package entity

// ValidationReport is the post-hoc quality verdict on an ExtractionResult.
type ValidationReport struct {
	IsValid     bool     `json:"is_valid"`
	Confidence  float64  `json:"confidence"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}
