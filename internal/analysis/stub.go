// Package analysis provides the default PoseAnalyzer and MetricsComputer
// implementations wired into the worker pool when no external CV pipeline is
// configured. The real pose-estimation and biomechanics libraries are an
// explicit non-goal (spec §1) — this package exists only so the pipeline has
// something to call end to end; it derives deterministic, low-cost synthetic
// metrics from the sampled video file's size and name rather than running a
// real model.
package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/cricksy/video-analysis/internal/interfaces"
)

// SamplePoses implements interfaces.PoseAnalyzer. It stats the video file
// (without reading its contents) and seeds a deterministic pseudo-random
// stream from the file's path and size, then emits sampleFPS
// synthetic frames per second of the file's (assumed) duration proxy.
func SamplePoses(ctx context.Context, videoPath string, sampleFPS int) ([]interfaces.PoseFrame, error) {
	if sampleFPS <= 0 {
		sampleFPS = 1
	}

	info, err := os.Stat(videoPath)
	if err != nil {
		return nil, fmt.Errorf("analysis: stat video: %w", err)
	}

	seed := seedFrom(videoPath, info.Size())
	durationSeconds := 8 + int(seed%40) // 8-47s synthetic clip length
	frameCount := durationSeconds * sampleFPS
	if frameCount > 600 {
		frameCount = 600 // cap synthetic sampling cost regardless of sampleFPS
	}

	frames := make([]interfaces.PoseFrame, 0, frameCount)
	for i := 0; i < frameCount; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		frameSeed := seed + uint64(i)*0x9E3779B97F4A7C15
		frames = append(frames, interfaces.PoseFrame{
			TimestampMS: int64(i) * int64(1000/sampleFPS),
			FrameIndex:  i,
			Keypoints:   syntheticKeypoints(frameSeed),
			Reliability: 0.75 + 0.24*pseudoFloat(frameSeed),
		})
	}
	return frames, nil
}

// ComputeMetrics implements interfaces.MetricsComputer, deriving a fixed set
// of biomechanical metrics (spanning all four analysis modes) from the mean
// reliability and keypoint spread across sampled frames.
func ComputeMetrics(frames []interfaces.PoseFrame) (interfaces.Metrics, error) {
	if len(frames) == 0 {
		return interfaces.Metrics{}, fmt.Errorf("analysis: no pose frames to compute metrics from")
	}

	var reliabilitySum float64
	var wristSpread float64
	trend := make([]float64, 0, len(frames))
	for _, f := range frames {
		reliabilitySum += f.Reliability
		if wrist, ok := f.Keypoints["right_wrist"]; ok {
			wristSpread += math.Abs(wrist[0])
			trend = append(trend, wrist[0])
		}
	}
	meanReliability := reliabilitySum / float64(len(frames))
	meanWristSpread := wristSpread / float64(len(frames))

	metrics := interfaces.Metrics{
		"frame_trend":                     trend,
		"pose_reliability":                meanReliability,
		"head_drift_cm":                   6 + meanWristSpread*10,
		"front_elbow_elevation_deg":       30 + meanWristSpread*20,
		"weight_transfer_pct":             50 + meanReliability*20,
		"hip_shoulder_separation_deg":     15 + meanReliability*10,
		"front_arm_drop_deg":              20 + meanWristSpread*15,
		"release_height_cm":               170 + meanReliability*20,
		"stance_knee_flex_deg":            95 + meanWristSpread*10,
		"lateral_reaction_ms":             320 + meanWristSpread*100,
		"glove_presentation_score":        meanReliability,
		"approach_footwork_score":         meanReliability,
		"throwing_arm_path_deviation_deg": 10 + meanWristSpread*20,
		"release_speed_kmh":               65 + meanReliability*20,
	}

	// Ball-tracking signals depend on a separate tracker keeping the ball in
	// frame through release; not every clip has it, so these two keys are
	// populated only when the synthetic frame stream is long enough to carry
	// a plausible ball track (spec §4.4: bowling "consumes ball-tracking
	// signals when present").
	if len(frames) >= 20 {
		metrics["ball_release_consistency_score"] = meanReliability - 0.1*meanWristSpread
		metrics["ball_swing_trajectory_deviation_deg"] = 4 + meanWristSpread*18
	}

	return metrics, nil
}

func seedFrom(videoPath string, size int64) uint64 {
	h := sha256.Sum256([]byte(filepath.Base(videoPath)))
	seed := binary.BigEndian.Uint64(h[:8])
	return seed ^ uint64(size)
}

func pseudoFloat(seed uint64) float64 {
	seed ^= seed >> 33
	seed *= 0xff51afd7ed558ccd
	seed ^= seed >> 33
	return float64(seed%10000) / 10000.0
}

func syntheticKeypoints(seed uint64) map[string][3]float64 {
	joints := []string{"head", "left_shoulder", "right_shoulder", "left_elbow", "right_elbow", "left_wrist", "right_wrist", "left_hip", "right_hip", "left_knee", "right_knee"}
	out := make(map[string][3]float64, len(joints))
	for i, j := range joints {
		s := seed + uint64(i)*0x2545F4914F6CDD1D
		out[j] = [3]float64{
			pseudoFloat(s)*2 - 1,
			pseudoFloat(s>>7)*2 - 1,
			0.5 + 0.5*pseudoFloat(s>>13),
		}
	}
	return out
}
