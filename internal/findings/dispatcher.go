// Package findings implements the FindingsDispatcher from spec §4.4: a
// closed tagged enum over AnalysisMode mapped to generator functions at
// startup, not a string-keyed dynamic dispatch table.
package findings

import (
	"fmt"

	"github.com/cricksy/video-analysis/internal/interfaces"
	"github.com/cricksy/video-analysis/internal/models"
)

// Generator derives a set of coaching Findings from computed metrics for one
// analysis pass (quick or deep).
type Generator func(metrics interfaces.Metrics, phase models.Phase) (*models.Findings, error)

// Dispatcher routes a resolved AnalysisMode to its Generator. The mapping is
// built once at construction, not looked up by string each call.
type Dispatcher struct {
	generators map[models.AnalysisMode]Generator
}

// NewDispatcher builds the closed mode->generator mapping (spec §4.4).
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		generators: map[models.AnalysisMode]Generator{
			models.ModeBatting:       GenerateBattingFindings,
			models.ModeBowling:       GenerateBowlingFindings,
			models.ModeWicketkeeping: GenerateWicketkeepingFindings,
			models.ModeFielding:      GenerateFieldingFindings,
		},
	}
}

// Dispatch resolves mode to its generator and runs it. Returns an error for
// any mode outside the closed set — ModeResolver guarantees this never
// happens in practice, but the dispatcher does not trust that silently.
func (d *Dispatcher) Dispatch(mode models.AnalysisMode, metrics interfaces.Metrics, phase models.Phase) (*models.Findings, error) {
	gen, ok := d.generators[mode]
	if !ok {
		return nil, fmt.Errorf("findings dispatch: no generator registered for mode %q", mode)
	}
	return gen(metrics, phase)
}

// overallLevel picks the most severe level present across findings, or
// SeverityLow if there are none.
func overallLevel(fs []models.Finding) models.Severity {
	level := models.SeverityLow
	for _, f := range fs {
		if rank(f.Severity) > rank(level) {
			level = f.Severity
		}
	}
	return level
}

func rank(s models.Severity) int {
	switch s {
	case models.SeverityHigh:
		return 3
	case models.SeverityMedium:
		return 2
	default:
		return 1
	}
}

// metricFloat reads a numeric metric, returning (0, false) if absent or not
// a float64/int.
func metricFloat(m interfaces.Metrics, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// metricTrend reads the per-frame series a finding attaches as evidence for
// the export appendix's sparkline (spec §4.4 Evidence field; trend rendering
// is an export-layer concern, not part of the metric itself).
func metricTrend(m interfaces.Metrics) []float64 {
	v, ok := m["frame_trend"]
	if !ok {
		return nil
	}
	trend, ok := v.([]float64)
	if !ok {
		return nil
	}
	return trend
}
