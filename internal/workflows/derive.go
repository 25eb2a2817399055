package workflows

import (
	"math"
	"math/rand"
)

// Seed control tags understood by the engine's sampler nodes.
const (
	SeedControlFixed     = "fixed"
	SeedControlRandomize = "randomize"
)

// Motion bucket bounds for video conditioning. Intensity 0 maps to the lower
// bound, intensity 1 to the upper bound.
const (
	motionBucketMin = 127
	motionBucketMax = 254
)

// FrameCount derives the number of video frames from duration and frame rate,
// rounded to the nearest integer.
func FrameCount(durationSeconds float64, fps int) int {
	return int(math.Round(durationSeconds * float64(fps)))
}

// MotionBucketID maps a normalized motion intensity in [0,1] onto the engine's
// integer motion knob: 0.0 -> 127, 1.0 -> 254, monotonic in between.
func MotionBucketID(intensity float64) int {
	return motionBucketMin + int(math.Round(intensity*float64(motionBucketMax-motionBucketMin)))
}

// ResolveSeed returns the effective sampler seed and its control tag. A
// non-negative caller seed is used as-is and marked fixed; a negative seed
// requests a freshly generated positive value marked for randomization.
func ResolveSeed(seed int64) (int64, string) {
	if seed >= 0 {
		return seed, SeedControlFixed
	}
	return rand.Int63n(math.MaxInt64-1) + 1, SeedControlRandomize
}
