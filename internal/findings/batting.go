package findings

import (
	"fmt"

	"github.com/cricksy/video-analysis/internal/interfaces"
	"github.com/cricksy/video-analysis/internal/models"
)

// GenerateBattingFindings evaluates batting-specific biomechanical metrics
// (head stillness, front-elbow elevation, weight transfer)
// and produces coach-facing Findings (spec §4.4).
func GenerateBattingFindings(metrics interfaces.Metrics, phase models.Phase) (*models.Findings, error) {
	var out []models.Finding

	if headDrift, ok := metricFloat(metrics, "head_drift_cm"); ok && headDrift > 8 {
		out = append(out, models.Finding{
			Code:       "BAT_HEAD_DRIFT",
			Title:      "Head moves off the ball at contact",
			Severity:   severityFor(headDrift, 8, 14),
			Message:    fmt.Sprintf("Head position drifted %.1fcm from the ball's line at contact.", headDrift),
			WhyMatters: "A still head keeps the eyes level through contact, which is the single biggest driver of consistent timing.",
			Evidence:   map[string]any{"head_drift_cm": headDrift, "trend": metricTrend(metrics)},
			SuggestedDrills: []string{
				"Shadow batting against a wall, holding head still through the swing",
				"Ball-drop drills with a coach calling out head position",
			},
			Phase: phase,
		})
	}

	if elbow, ok := metricFloat(metrics, "front_elbow_elevation_deg"); ok && elbow < 35 {
		out = append(out, models.Finding{
			Code:       "BAT_LOW_ELBOW",
			Title:      "Front elbow collapses through the shot",
			Severity:   severityFor(35-elbow, 5, 15),
			Message:    fmt.Sprintf("Front elbow elevation averaged %.0f degrees, below the 35-degree reference.", elbow),
			WhyMatters: "A low front elbow restricts the bat's swing arc and pulls shots toward leg side unintentionally.",
			Evidence:   map[string]any{"front_elbow_elevation_deg": elbow, "trend": metricTrend(metrics)},
			SuggestedDrills: []string{
				"High-elbow shadow drills in front of a mirror",
				"Tennis ball throw-downs focused on elbow position at backlift",
			},
			Phase: phase,
		})
	}

	if transfer, ok := metricFloat(metrics, "weight_transfer_pct"); ok && transfer < 55 {
		out = append(out, models.Finding{
			Code:       "BAT_WEIGHT_TRANSFER",
			Title:      "Incomplete weight transfer into the shot",
			Severity:   severityFor(55-transfer, 10, 25),
			Message:    fmt.Sprintf("Only %.0f%% of weight shifted to the front foot by contact.", transfer),
			WhyMatters: "Incomplete transfer saps power and often leaves the bat trailing the pad against quicker bowling.",
			Evidence:   map[string]any{"weight_transfer_pct": transfer, "trend": metricTrend(metrics)},
			SuggestedDrills: []string{
				"Step-and-drive drills against throwdowns",
				"Front-foot press timing work without a ball",
			},
			Phase: phase,
		})
	}

	return &models.Findings{Findings: out, OverallLevel: overallLevel(out)}, nil
}

// severityFor buckets a magnitude-above-threshold value into low/medium/high.
func severityFor(value, mediumAt, highAt float64) models.Severity {
	switch {
	case value >= highAt:
		return models.SeverityHigh
	case value >= mediumAt:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
