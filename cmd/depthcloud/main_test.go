package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/depthcloud/internal/depthcloud"
	"github.com/banshee-data/depthcloud/internal/fsutil"
	"github.com/banshee-data/depthcloud/internal/testutil"
)

// useMemoryFS swaps the command filesystem for an in-memory one.
func useMemoryFS(t *testing.T) *fsutil.MemoryFileSystem {
	t.Helper()
	prev := fsys
	mfs := fsutil.NewMemoryFileSystem()
	fsys = mfs
	t.Cleanup(func() { fsys = prev })
	return mfs
}

func runCmd(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_Usage(t *testing.T) {
	code, _, stderr := runCmd(t)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Usage: depthcloud")

	code, stdout, _ := runCmd(t, "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Commands:")

	code, _, stderr = runCmd(t, "bogus")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Unknown command: bogus")
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runCmd(t, "version")
	assert.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(stdout, "depthcloud version dev"))
}

func TestGenAndInfo(t *testing.T) {
	mfs := useMemoryFS(t)

	code, stdout, stderr := runCmd(t, "gen", "--out", "/a.dc", "--frames", "3", "--width", "16", "--height", "12")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "wrote 3 16x12 compressed frames")

	info, err := mfs.Stat("/a.dc")
	require.NoError(t, err)
	assert.Equal(t, int64(3*depthcloud.EncodedSize(16, 12, depthcloud.ModeCompressed)), info.Size())

	testutil.WriteRecording(t, mfs, "/b.dc", depthcloud.ModeCompressed, 8, 6, 2)

	code, stdout, stderr = runCmd(t, "info", "/a.dc", "/b.dc")
	require.Equal(t, 0, code, stderr)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "/a.dc: 3 frames 16x12"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "/b.dc: 2 frames 8x6 over 33.333ms"), lines[1])
}

func TestInfo_BackwardsTimestamps(t *testing.T) {
	mfs := useMemoryFS(t)
	clouds := testutil.SyntheticClouds(t, 4, 4, 2)
	clouds[0].SetTimestamp(2_000_000)
	clouds[1].SetTimestamp(1_500_000)
	require.NoError(t, depthcloud.Save(mfs, "/rev.dc", depthcloud.ModeRaw, false, clouds...))

	code, stdout, stderr := runCmd(t, "info", "--mode", "raw", "/rev.dc")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "over -500ms")
}

func TestFrameSpan(t *testing.T) {
	tests := []struct {
		first, last uint64
		want        time.Duration
	}{
		{1_000_000, 1_033_333, 33333 * time.Microsecond},
		{5, 5, 0},
		{2_000_000, 1_000_000, -time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, frameSpan(tt.first, tt.last), "%d -> %d", tt.first, tt.last)
	}
}

func TestInfo_Headers(t *testing.T) {
	mfs := useMemoryFS(t)
	testutil.WriteRecording(t, mfs, "/rec.dc", depthcloud.ModeRaw, 4, 2, 2)

	code, stdout, stderr := runCmd(t, "info", "--mode", "raw", "--headers", "/rec.dc")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "#0     offset=0 ")
	assert.Contains(t, stdout, "ts=1033333us")
}

func TestInfo_Errors(t *testing.T) {
	useMemoryFS(t)

	code, _, stderr := runCmd(t, "info")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "at least one recording")

	code, _, stderr = runCmd(t, "info", "/missing.dc")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "info:")

	code, _, _ = runCmd(t, "info", "--mode", "zstd", "/missing.dc")
	assert.Equal(t, 1, code)
}

func TestConvert(t *testing.T) {
	mfs := useMemoryFS(t)
	orig := testutil.WriteRecording(t, mfs, "/raw.dc", depthcloud.ModeRaw, 8, 6, 3)

	code, stdout, stderr := runCmd(t, "convert", "--in", "/raw.dc", "--from", "raw", "--out", "/small.dc", "--to", "compressed", "--fit", "0.1")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "converted 3 frames raw -> compressed")

	got, err := depthcloud.Load(mfs, "/small.dc", depthcloud.ModeCompressed)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range got {
		assert.Equal(t, orig[i].Timestamp(), got[i].Timestamp())
		st := orig[i].Summarize()
		assert.InDelta(t, st.MinZ-0.1, float64(got[i].MinDistance()), 1e-5)
	}

	// And back again.
	code, _, stderr = runCmd(t, "convert", "--in", "/small.dc", "--from", "compressed", "--out", "/back.dc", "--to", "raw")
	require.Equal(t, 0, code, stderr)
	back, err := depthcloud.Load(mfs, "/back.dc", depthcloud.ModeRaw)
	require.NoError(t, err)
	assert.Len(t, back, 3)
}

func TestConvert_Rescale(t *testing.T) {
	mfs := useMemoryFS(t)
	orig := testutil.WriteRecording(t, mfs, "/mm.dc", depthcloud.ModeRaw, 4, 4, 1)

	code, _, stderr := runCmd(t, "convert", "--in", "/mm.dc", "--from", "raw", "--out", "/m.dc", "--to", "raw", "--rescale")
	require.Equal(t, 0, code, stderr)

	got, err := depthcloud.Load(mfs, "/m.dc", depthcloud.ModeRaw)
	require.NoError(t, err)
	require.Len(t, got, 1)
	for i, p := range got[0].Points() {
		assert.InDelta(t, float64(orig[0].Points()[i].Z)/1000, float64(p.Z), 1e-6)
	}
}

func TestConvert_MissingFlags(t *testing.T) {
	useMemoryFS(t)
	code, _, stderr := runCmd(t, "convert", "--in", "/x.dc")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "are required")
}

func TestIndex(t *testing.T) {
	mfs := useMemoryFS(t)
	testutil.CaptureLogs(t)
	testutil.WriteRecording(t, mfs, "/rec.dc", depthcloud.ModeCompressed, 8, 6, 4)
	db := filepath.Join(t.TempDir(), "catalog.db")

	code, stdout, stderr := runCmd(t, "index", "--db", db, "/rec.dc")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "(4 frames)")

	code, stdout, stderr = runCmd(t, "index", "--db", db, "--list")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "compressed")
	assert.Contains(t, stdout, "/rec.dc")

	code, _, stderr = runCmd(t, "index", "--db", db)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "--list")
}

func TestHist(t *testing.T) {
	mfs := useMemoryFS(t)
	testutil.WriteRecording(t, mfs, "/rec.dc", depthcloud.ModeCompressed, 8, 6, 2)

	code, stdout, stderr := runCmd(t, "hist", "--out", "/depths.html", "--bins", "16", "/rec.dc")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "in 16 bins")

	data, err := mfs.ReadFile("/depths.html")
	require.NoError(t, err)
	assert.Contains(t, string(data), "2 frames from 1 recordings")

	code, _, stderr = runCmd(t, "hist", "--out", "/depths.png", "--lo", "4", "--hi", "2", "/rec.dc")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "invalid histogram parameters")
}
