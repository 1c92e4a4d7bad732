package entity

import (
	"time"

	"github.com/joseph-ayodele/policy-extractor/constants"
)

// UsageRecord is one row of processing usage for billing and analytics.
type UsageRecord struct {
	ID         int64                  `json:"id,omitempty" db:"id"`
	TenantID   string                 `json:"tenant_id" db:"organization_id"`
	FileName   string                 `json:"file_name" db:"file_name"`
	FileSize   int64                  `json:"file_size" db:"file_size"`
	Method     constants.Method       `json:"processing_method" db:"processing_method"`
	Outcome    constants.UsageOutcome `json:"outcome" db:"outcome"`
	Cost       float64                `json:"cost" db:"cost"`
	Confidence float64                `json:"confidence" db:"confidence"`
	RecordedAt time.Time              `json:"processing_date" db:"processing_date"`
}

// UsageSummary aggregates usage per processing method.
type UsageSummary struct {
	Method        constants.Method `json:"processing_method" db:"processing_method"`
	Documents     int64            `json:"documents" db:"documents"`
	TotalCost     float64          `json:"total_cost" db:"total_cost"`
	AvgConfidence float64          `json:"avg_confidence" db:"avg_confidence"`
}
