package pipeline

import (
	"time"

	"github.com/joseph-ayodele/policy-extractor/internal/common"
)

// Config holds the escalation thresholds and per-tier budgets.
type Config struct {
	ForcePremium           bool
	MinConfidenceTextTier  float64 // accept the text layer above this
	MinConfidenceOCRTier   float64 // accept OCR above this
	CloudUnitCostPerPage   float64
	CloudDefaultConfidence float64 // used when the cloud tier structures fields but reports no confidence
	MinTextLength          int     // runes; shorter text counts as a failed attempt

	TextTierTimeout  time.Duration
	OCRTierTimeout   time.Duration
	CloudTierTimeout time.Duration
	UsageLogTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinConfidenceTextTier:  0.70,
		MinConfidenceOCRTier:   0.60,
		CloudUnitCostPerPage:   0.015,
		CloudDefaultConfidence: 0.95,
		MinTextLength:          10,
		TextTierTimeout:        15 * time.Second,
		OCRTierTimeout:         2 * time.Minute,
		CloudTierTimeout:       90 * time.Second,
		UsageLogTimeout:        5 * time.Second,
	}
}

// FromAppConfig maps the application configuration onto Config.
func FromAppConfig(p common.PipelineConfig) Config {
	return Config{
		ForcePremium:           p.ForcePremium,
		MinConfidenceTextTier:  p.MinConfidenceTextTier,
		MinConfidenceOCRTier:   p.MinConfidenceOCRTier,
		CloudUnitCostPerPage:   p.CloudUnitCostPerPage,
		CloudDefaultConfidence: p.CloudDefaultConfidence,
		MinTextLength:          p.MinTextLength,
		TextTierTimeout:        p.TextTierTimeout,
		OCRTierTimeout:         p.OCRTierTimeout,
		CloudTierTimeout:       p.CloudTierTimeout,
		UsageLogTimeout:        p.UsageLogTimeout,
	}.normalize()
}

// normalize fills durations and lengths left at zero. Thresholds and cost are
// taken as given since zero is a meaningful value for them.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.MinTextLength <= 0 {
		c.MinTextLength = def.MinTextLength
	}
	if c.CloudDefaultConfidence <= 0 || c.CloudDefaultConfidence > 1 {
		c.CloudDefaultConfidence = def.CloudDefaultConfidence
	}
	if c.TextTierTimeout <= 0 {
		c.TextTierTimeout = def.TextTierTimeout
	}
	if c.OCRTierTimeout <= 0 {
		c.OCRTierTimeout = def.OCRTierTimeout
	}
	if c.CloudTierTimeout <= 0 {
		c.CloudTierTimeout = def.CloudTierTimeout
	}
	if c.UsageLogTimeout <= 0 {
		c.UsageLogTimeout = def.UsageLogTimeout
	}
	return c
}
