package record

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromAnalysisDefaultsEveryMissingField(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	rec := FromAnalysis(Analysis{}, "user-1", now)

	require.Equal(t, "Critical", rec.Status)
	require.Equal(t, "--", rec.Score)
	require.Equal(t, "Medium", rec.Hydration)
	require.Equal(t, "Unknown", rec.Velocity)
	require.Equal(t, "None", rec.RiskFactor)
	require.Equal(t, "Analysis complete.", rec.Summary)
	require.NotNil(t, rec.Correlations)
	require.Empty(t, rec.Correlations)
	require.Equal(t, now, rec.Timestamp)
	require.Equal(t, "user-1", rec.UserID)
	require.Empty(t, rec.BlobRef)
}

func TestFromAnalysisKeepsProvidedFields(t *testing.T) {
	payload := `{
		"overall_status": "Healthy",
		"hydration_level": "High",
		"summary": "All markers nominal.",
		"health_score": 91,
		"velocity": "Improving",
		"primary_risk": "Low Vitamin D",
		"correlations": [
			{"title": "Hydration Alert", "description": "Electrolytes trending up.", "type": "positive"}
		]
	}`

	var a Analysis
	require.NoError(t, json.Unmarshal([]byte(payload), &a))

	rec := FromAnalysis(a, "user-2", time.Now())
	require.Equal(t, "Healthy", rec.Status)
	require.Equal(t, "91", rec.Score)
	require.Equal(t, "High", rec.Hydration)
	require.Equal(t, "Improving", rec.Velocity)
	require.Equal(t, "Low Vitamin D", rec.RiskFactor)
	require.Equal(t, "All markers nominal.", rec.Summary)
	require.Len(t, rec.Correlations, 1)
	require.Equal(t, PolarityPositive, rec.Correlations[0].Polarity)
}

func TestFromAnalysisPartialResponse(t *testing.T) {
	var a Analysis
	require.NoError(t, json.Unmarshal([]byte(`{"overall_status": "Healthy"}`), &a))

	rec := FromAnalysis(a, "user-3", time.Now())
	require.Equal(t, "Healthy", rec.Status)
	require.Equal(t, "--", rec.Score)
	require.Equal(t, "Medium", rec.Hydration)
}
