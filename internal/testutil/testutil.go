// Package testutil provides shared test fixtures for packages that consume
// depth recordings.
package testutil

import (
	"testing"

	"github.com/banshee-data/depthcloud/internal/depthcloud"
	"github.com/banshee-data/depthcloud/internal/fsutil"
	"github.com/banshee-data/depthcloud/internal/monitoring"
)

// FramePeriodUs is the timestamp spacing of generated recordings (30 fps).
const FramePeriodUs = 33_333

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// CaptureLogs routes monitoring.Logf to the test log until the test ends.
func CaptureLogs(t testing.TB) {
	t.Helper()
	prev := monitoring.Logf
	monitoring.SetLogger(t.Logf)
	t.Cleanup(func() { monitoring.SetLogger(prev) })
}

// SyntheticClouds returns n generated width x height frames stamped
// FramePeriodUs apart starting at 1s.
func SyntheticClouds(t testing.TB, width, height, n int) []*depthcloud.DepthCloud {
	t.Helper()
	gen := depthcloud.NewSyntheticGenerator(width, height, 3)
	clouds := make([]*depthcloud.DepthCloud, 0, n)
	for i := 0; i < n; i++ {
		c, err := gen.Next()
		AssertNoError(t, err)
		c.SetTimestamp(uint64(1_000_000 + i*FramePeriodUs))
		clouds = append(clouds, c)
	}
	return clouds
}

// WriteRecording saves n synthetic frames to path and returns them.
func WriteRecording(t testing.TB, fsys fsutil.FileSystem, path string, mode depthcloud.Mode, width, height, n int) []*depthcloud.DepthCloud {
	t.Helper()
	clouds := SyntheticClouds(t, width, height, n)
	AssertNoError(t, depthcloud.Save(fsys, path, mode, false, clouds...))
	return clouds
}
