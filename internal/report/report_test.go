package report

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/depthcloud/internal/fsutil"
)

func TestDepthHistogram(t *testing.T) {
	depths := []float64{0.5, 1.5, 1.5, 2.0, 3.9, 4.0, -1, 9, math.NaN()}

	h, err := DepthHistogram(depths, 4, 0, 4)
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 1, 2, 3, 4}, h.Edges)
	assert.Equal(t, []float64{1, 2, 1, 2}, h.Counts, "2.0 starts bin 2 and 4.0 lands in the last bin")
	assert.Equal(t, 6, h.Total)
	assert.Equal(t, 3, h.Clipped)

	var sum float64
	for _, c := range h.Counts {
		sum += c
	}
	assert.Equal(t, float64(h.Total), sum)
}

func TestDepthHistogram_Unsorted(t *testing.T) {
	h, err := DepthHistogram([]float64{3, 1, 2, 0}, 2, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2}, h.Counts)
}

func TestDepthHistogram_Empty(t *testing.T) {
	h, err := DepthHistogram(nil, 3, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, h.Counts)
	assert.Zero(t, h.Total)
}

func TestDepthHistogram_BadParams(t *testing.T) {
	tests := []struct {
		name   string
		bins   int
		lo, hi float64
	}{
		{"zero bins", 0, 0, 1},
		{"negative bins", -2, 0, 1},
		{"empty window", 4, 2, 2},
		{"inverted window", 4, 3, 1},
		{"nan window", 4, math.NaN(), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DepthHistogram([]float64{1}, tt.bins, tt.lo, tt.hi)
			assert.ErrorIs(t, err, ErrBadHistogram)
		})
	}
}

func TestLabels(t *testing.T) {
	h, err := DepthHistogram(nil, 2, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"0.00-0.50", "0.50-1.00"}, h.Labels())
}

func sampleHistogram(t *testing.T) Histogram {
	t.Helper()
	h, err := DepthHistogram([]float64{1, 1.2, 2.5, 3, 3.1, 3.2, 6}, 8, 0, 8)
	require.NoError(t, err)
	return h
}

func TestWriteHistogramPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHistogramPNG(&buf, sampleHistogram(t), "depths"))
	require.Greater(t, buf.Len(), 8)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), buf.Bytes()[:8])
}

func TestWriteHistogramHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHistogramHTML(&buf, sampleHistogram(t), "Depth distribution", "rec.dc"))

	html := buf.String()
	assert.Contains(t, html, "Depth distribution")
	assert.Contains(t, html, "rec.dc")
	assert.Contains(t, html, "echarts")
	assert.Contains(t, html, "3.00-4.00")
}

func TestSaveHistogram(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	h := sampleHistogram(t)

	require.NoError(t, SaveHistogram(mfs, "/out.html", h, "depths", ""))
	require.NoError(t, SaveHistogram(mfs, "/out.PNG", h, "depths", ""))
	assert.True(t, mfs.Exists("/out.html"))
	assert.True(t, mfs.Exists("/out.PNG"))

	err := SaveHistogram(mfs, "/out.svg", h, "depths", "")
	assert.ErrorContains(t, err, "unsupported report format")
	assert.False(t, mfs.Exists("/out.svg"))
}

func TestSaveHistogram_OSFileSystem(t *testing.T) {
	path := filepath.Join(t.TempDir(), "depths.png")
	require.NoError(t, SaveHistogram(fsutil.OSFileSystem{}, path, sampleHistogram(t), "depths", ""))

	info, err := fsutil.OSFileSystem{}.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
