// Package record defines the durable output of a completed document scan.
package record

import (
	"encoding/json"
	"time"
)

// Polarity tags a correlation insight as good, bad, or informational.
type Polarity string

const (
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
	PolarityNeutral  Polarity = "neutral"
)

// Correlation is one derived insight shown alongside a health record.
type Correlation struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Polarity    Polarity `json:"type"`
}

// HealthRecord is the structured result of one analyzed document. Every
// field is always populated; consumers never see missing values.
type HealthRecord struct {
	Status       string        `json:"status"`
	Score        string        `json:"score"`
	Hydration    string        `json:"hydration"`
	Velocity     string        `json:"velocity"`
	RiskFactor   string        `json:"riskFactor"`
	Summary      string        `json:"details"`
	Correlations []Correlation `json:"correlations"`
	Timestamp    time.Time     `json:"timestamp"`
	BlobRef      string        `json:"fileUrl,omitempty"`
	FileName     string        `json:"fileName,omitempty"`
	FileType     string        `json:"fileType,omitempty"`
	UserID       string        `json:"userId"`
}

// Analysis is the raw analyzer response shape before defaulting. The score
// arrives as a bare JSON number.
type Analysis struct {
	OverallStatus  string        `json:"overall_status"`
	HydrationLevel string        `json:"hydration_level"`
	Summary        string        `json:"summary"`
	HealthScore    json.Number   `json:"health_score"`
	Velocity       string        `json:"velocity"`
	PrimaryRisk    string        `json:"primary_risk"`
	Correlations   []Correlation `json:"correlations"`
}

// Defaults applied when the analyzer omits a field. The UI renders these
// directly, so no field may ever be empty.
const (
	defaultStatus    = "Critical"
	defaultHydration = "Medium"
	defaultScore     = "--"
	defaultVelocity  = "Unknown"
	defaultRisk      = "None"
	defaultSummary   = "Analysis complete."
)

// FromAnalysis composes a fully populated HealthRecord from an analyzer
// response, filling any missing field with its safety-net default.
func FromAnalysis(a Analysis, userID string, now time.Time) HealthRecord {
	rec := HealthRecord{
		Status:       orDefault(a.OverallStatus, defaultStatus),
		Score:        orDefault(a.HealthScore.String(), defaultScore),
		Hydration:    orDefault(a.HydrationLevel, defaultHydration),
		Velocity:     orDefault(a.Velocity, defaultVelocity),
		RiskFactor:   orDefault(a.PrimaryRisk, defaultRisk),
		Summary:      orDefault(a.Summary, defaultSummary),
		Correlations: a.Correlations,
		Timestamp:    now,
		UserID:       userID,
	}
	if rec.Correlations == nil {
		rec.Correlations = []Correlation{}
	}
	return rec
}

func orDefault(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
