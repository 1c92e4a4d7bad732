package constants

// Method names the provider tier that produced an extraction attempt.
// Values are stored verbatim in usage records.
type Method string

const (
	MethodPDFText Method = "pdf-text"
	MethodOCR     Method = "ocr"
	MethodCloud   Method = "cloud"
	MethodNone    Method = "none" // terminal failure before any text was accepted
)

// Rank orders methods by cost; escalation only moves to a higher rank.
func (m Method) Rank() int {
	switch m {
	case MethodPDFText:
		return 1
	case MethodOCR:
		return 2
	case MethodCloud:
		return 3
	default:
		return 0
	}
}

func (m Method) String() string { return string(m) }
