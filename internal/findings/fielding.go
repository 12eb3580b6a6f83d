package findings

import (
	"fmt"

	"github.com/cricksy/video-analysis/internal/interfaces"
	"github.com/cricksy/video-analysis/internal/models"
)

// GenerateFieldingFindings evaluates fielding-specific biomechanical
// metrics (approach footwork, release speed, throwing arm path) and
// produces coach-facing Findings (spec §4.4).
func GenerateFieldingFindings(metrics interfaces.Metrics, phase models.Phase) (*models.Findings, error) {
	var out []models.Finding

	if footwork, ok := metricFloat(metrics, "approach_footwork_score"); ok && footwork < 0.6 {
		out = append(out, models.Finding{
			Code:       "FIELD_APPROACH_FOOTWORK",
			Title:      "Footwork on approach is unbalanced",
			Severity:   severityFor(0.6-footwork, 0.1, 0.25),
			Message:    fmt.Sprintf("Approach footwork scored %.2f against the reference window.", footwork),
			WhyMatters: "Balanced footwork into the ball sets up a clean gather and a direct throwing base.",
			Evidence:   map[string]any{"approach_footwork_score": footwork, "trend": metricTrend(metrics)},
			SuggestedDrills: []string{
				"Cone-to-ball approach drills emphasizing small final steps",
				"Gather-and-throw repetitions from varying angles",
			},
			Phase: phase,
		})
	}

	if armPath, ok := metricFloat(metrics, "throwing_arm_path_deviation_deg"); ok && armPath > 15 {
		out = append(out, models.Finding{
			Code:       "FIELD_ARM_PATH",
			Title:      "Throwing arm path deviates from a direct line",
			Severity:   severityFor(armPath, 15, 30),
			Message:    fmt.Sprintf("Arm path deviated %.0f degrees from the direct line to target.", armPath),
			WhyMatters: "A direct arm path is both faster and more accurate than a looping or round-arm action.",
			Evidence:   map[string]any{"throwing_arm_path_deviation_deg": armPath, "trend": metricTrend(metrics)},
			SuggestedDrills: []string{
				"Overhead throw-downs against a target line on a wall",
				"Partner throwing drills at increasing distance with path feedback",
			},
			Phase: phase,
		})
	}

	if releaseSpeed, ok := metricFloat(metrics, "release_speed_kmh"); ok && releaseSpeed < 70 {
		out = append(out, models.Finding{
			Code:       "FIELD_LOW_RELEASE_SPEED",
			Title:      "Throw release speed below reference for distance",
			Severity:   severityFor(70-releaseSpeed, 10, 20),
			Message:    fmt.Sprintf("Release speed measured at %.0fkm/h.", releaseSpeed),
			WhyMatters: "Low release speed concedes extra running time even when the throw is accurate.",
			Evidence:   map[string]any{"release_speed_kmh": releaseSpeed, "trend": metricTrend(metrics)},
			SuggestedDrills: []string{
				"Long-toss progressions to build throwing strength",
				"Resistance-band throwing drills targeting the kinetic chain",
			},
			Phase: phase,
		})
	}

	return &models.Findings{Findings: out, OverallLevel: overallLevel(out)}, nil
}
