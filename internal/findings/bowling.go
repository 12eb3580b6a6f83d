package findings

import (
	"fmt"

	"github.com/cricksy/video-analysis/internal/interfaces"
	"github.com/cricksy/video-analysis/internal/models"
)

// GenerateBowlingFindings evaluates bowling-specific biomechanical metrics
// (front-arm alignment, release height, hip-shoulder separation) and,
// when a ball-tracking pass contributed signals, release-consistency and
// swing-trajectory findings on top (spec §4.4).
func GenerateBowlingFindings(metrics interfaces.Metrics, phase models.Phase) (*models.Findings, error) {
	var out []models.Finding

	if separation, ok := metricFloat(metrics, "hip_shoulder_separation_deg"); ok && separation < 20 {
		out = append(out, models.Finding{
			Code:       "BOWL_LOW_SEPARATION",
			Title:      "Hips and shoulders rotate together too early",
			Severity:   severityFor(20-separation, 5, 12),
			Message:    fmt.Sprintf("Hip-shoulder separation averaged %.0f degrees at front-foot landing.", separation),
			WhyMatters: "Separation between hip and shoulder rotation is the main source of pace generated without extra run-up speed.",
			Evidence:   map[string]any{"hip_shoulder_separation_deg": separation, "trend": metricTrend(metrics)},
			SuggestedDrills: []string{
				"Resistance-band rotation drills isolating hip drive",
				"Walk-through bowling actions exaggerating the hip-lead",
			},
			Phase: phase,
		})
	}

	if frontArm, ok := metricFloat(metrics, "front_arm_drop_deg"); ok && frontArm > 25 {
		out = append(out, models.Finding{
			Code:       "BOWL_FRONT_ARM_DROP",
			Title:      "Front arm drops early in delivery",
			Severity:   severityFor(frontArm, 25, 40),
			Message:    fmt.Sprintf("Front arm dropped %.0f degrees below shoulder height before release.", frontArm),
			WhyMatters: "An early-dropping front arm pulls the body open prematurely and costs release height.",
			Evidence:   map[string]any{"front_arm_drop_deg": frontArm, "trend": metricTrend(metrics)},
			SuggestedDrills: []string{
				"Front-arm hold drills with a target above head height",
				"Slow-motion run-through focusing on keeping the arm up to release",
			},
			Phase: phase,
		})
	}

	if releaseHeight, ok := metricFloat(metrics, "release_height_cm"); ok && releaseHeight < 180 {
		out = append(out, models.Finding{
			Code:       "BOWL_LOW_RELEASE",
			Title:      "Release point lower than optimal",
			Severity:   severityFor(180-releaseHeight, 10, 25),
			Message:    fmt.Sprintf("Ball released at %.0fcm, below the reference release height for this action.", releaseHeight),
			WhyMatters: "A lower release point flattens trajectory and reduces the bounce available to trouble the batter.",
			Evidence:   map[string]any{"release_height_cm": releaseHeight, "trend": metricTrend(metrics)},
			SuggestedDrills: []string{
				"Tall-release drills bowling from a step",
				"Core and shoulder strength work to sustain an upright delivery stride",
			},
			Phase: phase,
		})
	}

	if consistency, ok := metricFloat(metrics, "ball_release_consistency_score"); ok && consistency < 0.7 {
		out = append(out, models.Finding{
			Code:       "BOWL_RELEASE_CONSISTENCY",
			Title:      "Release point varies ball to ball",
			Severity:   severityFor(0.7-consistency, 0.1, 0.25),
			Message:    fmt.Sprintf("Ball-tracking scored release-point consistency at %.2f across the spell.", consistency),
			WhyMatters: "An inconsistent release point telegraphs variation to the batter and scatters line and length.",
			Evidence:   map[string]any{"ball_release_consistency_score": consistency, "trend": metricTrend(metrics)},
			SuggestedDrills: []string{
				"Repetition run-throughs bowling at a single stump target",
				"Video review pairing release frame with pitched position",
			},
			Phase: phase,
		})
	}

	if deviation, ok := metricFloat(metrics, "ball_swing_trajectory_deviation_deg"); ok && deviation > 12 {
		out = append(out, models.Finding{
			Code:       "BOWL_SWING_TRAJECTORY",
			Title:      "Swing trajectory deviates from the intended line",
			Severity:   severityFor(deviation, 12, 20),
			Message:    fmt.Sprintf("Ball-tracking measured %.0f degrees of trajectory deviation after release.", deviation),
			WhyMatters: "Unintended swing off the seam position undercuts control of where the ball arrives at the batter.",
			Evidence:   map[string]any{"ball_swing_trajectory_deviation_deg": deviation, "trend": metricTrend(metrics)},
			SuggestedDrills: []string{
				"Seam-presentation drills in front of a mirror",
				"Target bowling with a consistent wrist position through release",
			},
			Phase: phase,
		})
	}

	return &models.Findings{Findings: out, OverallLevel: overallLevel(out)}, nil
}
