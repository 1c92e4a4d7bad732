package constants

// UsageOutcome is the canonical outcome for rows in pdf_processing_usage.
type UsageOutcome string

// Stable values (store these exact strings in DB).
const (
	UsageOutcomeSuccess  UsageOutcome = "SUCCESS"  // text accepted from some tier
	UsageOutcomeFailed   UsageOutcome = "FAILED"   // every attempted provider failed
	UsageOutcomeRejected UsageOutcome = "REJECTED" // input refused before any provider ran
)
