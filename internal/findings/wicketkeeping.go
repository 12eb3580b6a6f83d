package findings

import (
	"fmt"

	"github.com/cricksy/video-analysis/internal/interfaces"
	"github.com/cricksy/video-analysis/internal/models"
)

// GenerateWicketkeepingFindings evaluates wicketkeeping-specific
// biomechanical metrics (stance height, glove presentation, lateral
// reaction time) and produces coach-facing Findings (spec §4.4).
func GenerateWicketkeepingFindings(metrics interfaces.Metrics, phase models.Phase) (*models.Findings, error) {
	var out []models.Finding

	if stance, ok := metricFloat(metrics, "stance_knee_flex_deg"); ok && stance < 100 {
		out = append(out, models.Finding{
			Code:       "WK_HIGH_STANCE",
			Title:      "Stance too upright before the delivery",
			Severity:   severityFor(100-stance, 10, 25),
			Message:    fmt.Sprintf("Knee flex averaged %.0f degrees at the point of delivery, above a low-ready stance.", stance),
			WhyMatters: "A low, loaded stance gives the hands a shorter distance to travel laterally to take the ball cleanly.",
			Evidence:   map[string]any{"stance_knee_flex_deg": stance, "trend": metricTrend(metrics)},
			SuggestedDrills: []string{
				"Hold-and-glove drills at progressively lower stance heights",
				"Wall-ball reaction work starting from a loaded stance",
			},
			Phase: phase,
		})
	}

	if reaction, ok := metricFloat(metrics, "lateral_reaction_ms"); ok && reaction > 350 {
		out = append(out, models.Finding{
			Code:       "WK_SLOW_REACTION",
			Title:      "Lateral movement starts late",
			Severity:   severityFor(reaction-350, 50, 150),
			Message:    fmt.Sprintf("First lateral movement measured at %.0fms after the ball left the bowler's hand.", reaction),
			WhyMatters: "Late first movement forces a longer, off-balance reach on deflections and leg-side takes.",
			Evidence:   map[string]any{"lateral_reaction_ms": reaction, "trend": metricTrend(metrics)},
			SuggestedDrills: []string{
				"Reaction-ball drills with random bounce direction",
				"Split-step timing drills keyed to bowler's release",
			},
			Phase: phase,
		})
	}

	if glovePresent, ok := metricFloat(metrics, "glove_presentation_score"); ok && glovePresent < 0.6 {
		out = append(out, models.Finding{
			Code:       "WK_GLOVE_PRESENTATION",
			Title:      "Gloves presented late or at an awkward angle",
			Severity:   severityFor(0.6-glovePresent, 0.1, 0.25),
			Message:    fmt.Sprintf("Glove presentation scored %.2f against the reference window.", glovePresent),
			WhyMatters: "Early, soft-handed glove presentation is what turns a take into a catch rather than a fumble.",
			Evidence:   map[string]any{"glove_presentation_score": glovePresent, "trend": metricTrend(metrics)},
			SuggestedDrills: []string{
				"Soft-hands catching drills with a tennis ball",
				"Mirror work on presenting gloves before the ball arrives",
			},
			Phase: phase,
		})
	}

	return &models.Findings{Findings: out, OverallLevel: overallLevel(out)}, nil
}
