package workflows

import "testing"

func TestFrameCount(t *testing.T) {
	tests := []struct {
		duration float64
		fps      int
		want     int
	}{
		{5.0, 24, 120},
		{2.5, 60, 150},
		{3.0, 8, 24},
		{0.9, 1, 1},
		{1.04, 10, 10},
	}
	for _, tc := range tests {
		if got := FrameCount(tc.duration, tc.fps); got != tc.want {
			t.Errorf("FrameCount(%v, %d) = %d, want %d", tc.duration, tc.fps, got, tc.want)
		}
	}
}

func TestMotionBucketIDBounds(t *testing.T) {
	if got := MotionBucketID(0); got != 127 {
		t.Fatalf("intensity 0 should map to 127, got %d", got)
	}
	if got := MotionBucketID(1); got != 254 {
		t.Fatalf("intensity 1 should map to 254, got %d", got)
	}
	mid := MotionBucketID(0.5)
	if mid <= 127 || mid >= 254 {
		t.Fatalf("intensity 0.5 should map strictly between bounds, got %d", mid)
	}
}

func TestMotionBucketIDMonotonic(t *testing.T) {
	prev := MotionBucketID(0)
	for i := 1; i <= 100; i++ {
		cur := MotionBucketID(float64(i) / 100)
		if cur < prev {
			t.Fatalf("motion bucket not monotonic at %d/100: %d < %d", i, cur, prev)
		}
		prev = cur
	}
}

func TestResolveSeedFixed(t *testing.T) {
	seed, control := ResolveSeed(42)
	if seed != 42 {
		t.Fatalf("expected caller seed preserved, got %d", seed)
	}
	if control != SeedControlFixed {
		t.Fatalf("expected fixed control tag, got %q", control)
	}

	seed, control = ResolveSeed(0)
	if seed != 0 || control != SeedControlFixed {
		t.Fatalf("seed 0 is a valid fixed seed, got %d/%q", seed, control)
	}
}

func TestResolveSeedRandomized(t *testing.T) {
	for i := 0; i < 50; i++ {
		seed, control := ResolveSeed(-1)
		if seed <= 0 {
			t.Fatalf("randomized seed must be positive, got %d", seed)
		}
		if control != SeedControlRandomize {
			t.Fatalf("expected randomize control tag, got %q", control)
		}
	}
}
