package findings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cricksy/video-analysis/internal/interfaces"
	"github.com/cricksy/video-analysis/internal/models"
)

func TestDispatcher_RoutesEachMode(t *testing.T) {
	d := NewDispatcher()
	for _, mode := range models.ValidModes {
		f, err := d.Dispatch(mode, interfaces.Metrics{}, models.PhaseQuick)
		require.NoError(t, err, "mode %s", mode)
		assert.NotNil(t, f)
	}
}

func TestDispatcher_UnknownModeErrors(t *testing.T) {
	d := NewDispatcher()
	_, err := d.Dispatch(models.AnalysisMode("unknown"), interfaces.Metrics{}, models.PhaseQuick)
	assert.Error(t, err)
}

func TestGenerateBattingFindings_CleanMetricsProduceNoFindings(t *testing.T) {
	metrics := interfaces.Metrics{
		"head_drift_cm":             2.0,
		"front_elbow_elevation_deg": 50.0,
		"weight_transfer_pct":       70.0,
	}
	f, err := GenerateBattingFindings(metrics, models.PhaseQuick)
	require.NoError(t, err)
	assert.Empty(t, f.Findings)
	assert.Equal(t, models.SeverityLow, f.OverallLevel)
}

func TestGenerateBattingFindings_HeadDriftFlagged(t *testing.T) {
	metrics := interfaces.Metrics{"head_drift_cm": 16.0}
	f, err := GenerateBattingFindings(metrics, models.PhaseDeep)
	require.NoError(t, err)
	require.Len(t, f.Findings, 1)
	assert.Equal(t, "BAT_HEAD_DRIFT", f.Findings[0].Code)
	assert.Equal(t, models.SeverityHigh, f.Findings[0].Severity)
	assert.Equal(t, models.PhaseDeep, f.Findings[0].Phase)
}

func TestGenerateBattingFindings_AttachesFrameTrendAsEvidence(t *testing.T) {
	trend := []float64{0.1, 0.2, -0.1}
	metrics := interfaces.Metrics{"head_drift_cm": 16.0, "frame_trend": trend}
	f, err := GenerateBattingFindings(metrics, models.PhaseDeep)
	require.NoError(t, err)
	require.Len(t, f.Findings, 1)
	assert.Equal(t, trend, f.Findings[0].Evidence["trend"])
}

func TestMetricTrend_MissingOrWrongTypeReturnsNil(t *testing.T) {
	assert.Nil(t, metricTrend(interfaces.Metrics{}))
	assert.Nil(t, metricTrend(interfaces.Metrics{"frame_trend": "not-a-series"}))
}

func TestGenerateBowlingFindings_SeparationFlagged(t *testing.T) {
	metrics := interfaces.Metrics{"hip_shoulder_separation_deg": 6.0}
	f, err := GenerateBowlingFindings(metrics, models.PhaseQuick)
	require.NoError(t, err)
	require.Len(t, f.Findings, 1)
	assert.Equal(t, "BOWL_LOW_SEPARATION", f.Findings[0].Code)
}

func TestGenerateWicketkeepingFindings_SlowReactionFlagged(t *testing.T) {
	metrics := interfaces.Metrics{"lateral_reaction_ms": 550.0}
	f, err := GenerateWicketkeepingFindings(metrics, models.PhaseQuick)
	require.NoError(t, err)
	require.Len(t, f.Findings, 1)
	assert.Equal(t, "WK_SLOW_REACTION", f.Findings[0].Code)
}

func TestGenerateFieldingFindings_ArmPathFlagged(t *testing.T) {
	metrics := interfaces.Metrics{"throwing_arm_path_deviation_deg": 35.0}
	f, err := GenerateFieldingFindings(metrics, models.PhaseQuick)
	require.NoError(t, err)
	require.Len(t, f.Findings, 1)
	assert.Equal(t, "FIELD_ARM_PATH", f.Findings[0].Code)
	assert.Equal(t, models.SeverityHigh, f.Findings[0].Severity)
}

func TestAssembleReport_EmptyFindingsProducesCleanSummary(t *testing.T) {
	r := AssembleReport(models.ModeBatting, models.PhaseQuick, &models.Findings{})
	assert.Contains(t, r.Text, "no technical issues")
}

func TestAssembleReport_IncludesEachFindingTitle(t *testing.T) {
	f := &models.Findings{
		Findings: []models.Finding{
			{Code: "X", Title: "Example Issue", Message: "msg", WhyMatters: "why", Severity: models.SeverityMedium},
		},
		OverallLevel: models.SeverityMedium,
	}
	r := AssembleReport(models.ModeBowling, models.PhaseDeep, f)
	assert.Contains(t, r.Text, "Example Issue")
	require.Len(t, r.Sections, 1)
	assert.Equal(t, "Example Issue", r.Sections[0].Title)
}
