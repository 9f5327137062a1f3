package depthcloud

import (
	"bytes"
	"io"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/depthcloud/internal/frame"
	"github.com/banshee-data/depthcloud/internal/stream"
	"github.com/banshee-data/depthcloud/internal/timeutil"
)

func useMockClock(t *testing.T, at time.Time) *timeutil.MockClock {
	t.Helper()
	mc := timeutil.NewMockClock(at)
	frame.SetClock(mc)
	t.Cleanup(func() { frame.SetClock(nil) })
	return mc
}

func roundTrip(t *testing.T, src *DepthCloud, mode Mode) (*DepthCloud, int) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, src.Serialize(stream.NewWriter(&buf), mode))
	n := buf.Len()

	dst := New()
	require.NoError(t, dst.Deserialize(stream.NewReader(&buf), mode))
	return dst, n
}

func randomCloud(t *testing.T, w, h int, b Bounds, seed int64) *DepthCloud {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	c, err := NewSized(w, h)
	require.NoError(t, err)
	require.NoError(t, c.SetBounds(b))
	between := func(lo, hi float32) float32 { return lo + rng.Float32()*(hi-lo) }
	for i := range c.Points() {
		c.Points()[i] = Point3D{
			X: between(b.MinRange, b.MaxRange),
			Y: between(b.MinRange, b.MaxRange),
			Z: between(b.MinDistance, b.MaxDistance),
		}
	}
	return c
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"raw", ModeRaw, false},
		{"RAW", ModeRaw, false},
		{" compressed ", ModeCompressed, false},
		{"default", ModeDefault, false},
		{"", ModeDefault, false},
		{"zip", ModeDefault, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	assert.Equal(t, "compressed", ModeCompressed.String())
	assert.Equal(t, "Mode(9)", Mode(9).String())
}

func TestQuantize(t *testing.T) {
	tests := []struct {
		name   string
		v      float32
		lo, hi float32
		want   int16
	}{
		{"lower bound", 0, 0, 1, 0},
		{"upper bound", 1, 0, 1, QuantizationScale},
		{"midpoint truncates", 0.5, 0, 1, 16383},
		{"offset window", 3, 2, 4, 16383},
		{"below window saturates", -5, 0, 1, 0},
		{"above window saturates", 100, 0, 8, QuantizationScale},
		{"zero width window", 3, 2, 2, 0},
		{"nan", float32(math.NaN()), 0, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, quantize(tt.v, tt.lo, tt.hi))
		})
	}
}

func TestRawRoundTrip_BitExact(t *testing.T) {
	src := randomCloud(t, 7, 5, DefaultBounds(), 1)
	src.Points()[0] = Point3D{X: float32(math.Copysign(0, -1)), Y: math.SmallestNonzeroFloat32, Z: math.MaxFloat32}
	src.Points()[1] = Point3D{X: float32(math.Inf(1)), Y: -123.456, Z: 1e-20}

	for _, mode := range []Mode{ModeRaw, ModeDefault} {
		dst, n := roundTrip(t, src, mode)
		assert.Equal(t, EncodedSize(7, 5, mode), n)
		assert.Equal(t, frame.HeaderSize+7*5*12, n)
		require.Equal(t, src.Size(), dst.Size())
		for i, p := range src.Points() {
			q := dst.Points()[i]
			assert.Equal(t, math.Float32bits(p.X), math.Float32bits(q.X), "point %d x", i)
			assert.Equal(t, math.Float32bits(p.Y), math.Float32bits(q.Y), "point %d y", i)
			assert.Equal(t, math.Float32bits(p.Z), math.Float32bits(q.Z), "point %d z", i)
		}
		assert.Equal(t, src.Header(), dst.Header())
		// Raw frames carry no bounds.
		assert.Equal(t, DefaultBounds(), dst.Bounds())
	}
}

func TestCompressedRoundTrip_WithinQuantizationError(t *testing.T) {
	windows := []Bounds{
		DefaultBounds(),
		{MinDistance: 0.5, MaxDistance: 6, MinRange: 0, MaxRange: 4},
		{MinDistance: 300, MaxDistance: 4500, MinRange: 0, MaxRange: 5000},
	}

	for wi, b := range windows {
		src := randomCloud(t, 16, 9, b, int64(wi))
		dst, n := roundTrip(t, src, ModeCompressed)
		assert.Equal(t, frame.HeaderSize+16+16*9*6, n)
		assert.Equal(t, b, dst.Bounds())

		rangeTol := float64(b.MaxRange-b.MinRange)/QuantizationScale + 1e-6*float64(b.MaxRange)
		distTol := float64(b.MaxDistance-b.MinDistance)/QuantizationScale + 1e-6*float64(b.MaxDistance)
		for i, p := range src.Points() {
			q := dst.Points()[i]
			assert.InDelta(t, p.X, q.X, rangeTol, "window %d point %d x", wi, i)
			assert.InDelta(t, p.Y, q.Y, rangeTol, "window %d point %d y", wi, i)
			assert.InDelta(t, p.Z, q.Z, distTol, "window %d point %d z", wi, i)
		}
	}
}

func TestCompressed_FourByFourScenario(t *testing.T) {
	useMockClock(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	src, err := NewSized(4, 4)
	require.NoError(t, err)
	require.NoError(t, src.SetRangeBounds(0, 1))
	require.NoError(t, src.SetDistanceBounds(0, 1))
	require.NoError(t, src.Uniform(Point3D{X: 0.25, Y: 0.5, Z: 0.75}))

	var buf bytes.Buffer
	require.NoError(t, src.Serialize(stream.NewWriter(&buf), ModeCompressed))

	dst := New()
	require.NoError(t, dst.Deserialize(stream.NewReader(&buf), ModeCompressed))

	assert.Equal(t, 4, dst.Width())
	assert.Equal(t, 4, dst.Height())
	assert.Equal(t, src.Timestamp(), dst.Timestamp())

	approx := cmpopts.EquateApprox(0, 1.0/QuantizationScale)
	if diff := cmp.Diff(src.Points(), dst.Points(), approx); diff != "" {
		t.Errorf("decoded points mismatch (-src +dst):\n%s", diff)
	}
}

func TestCompressed_Saturation(t *testing.T) {
	src, err := NewSized(3, 1)
	require.NoError(t, err)
	require.NoError(t, src.SetRangeBounds(1, 2))
	require.NoError(t, src.SetDistanceBounds(2, 2))
	copy(src.Points(), []Point3D{
		{X: -10, Y: 50, Z: 7},
		{X: 1, Y: 2, Z: 2},
		{X: 1.5, Y: 0, Z: 0},
	})

	dst, _ := roundTrip(t, src, ModeCompressed)
	want := []Point3D{
		{X: 1, Y: 2, Z: 2},
		{X: 1, Y: 2, Z: 2},
		{X: 1.5, Y: 1, Z: 2},
	}
	approx := cmpopts.EquateApprox(0, 1e-4)
	if diff := cmp.Diff(want, dst.Points(), approx); diff != "" {
		t.Errorf("saturated points mismatch (-want +got):\n%s", diff)
	}
}

func TestDeserialize_ReusesBuffer(t *testing.T) {
	src := randomCloud(t, 4, 3, DefaultBounds(), 7)
	var buf bytes.Buffer
	require.NoError(t, src.Serialize(stream.NewWriter(&buf), ModeRaw))

	dst, err := NewSized(6, 2)
	require.NoError(t, err)
	before := &dst.Points()[0]
	require.NoError(t, dst.Deserialize(stream.NewReader(&buf), ModeRaw))
	assert.Same(t, before, &dst.Points()[0])
	assert.Equal(t, 4, dst.Width())
	assert.Equal(t, 3, dst.Height())
}

func TestDeserialize_FailureKeepsCloud(t *testing.T) {
	for _, mode := range []Mode{ModeRaw, ModeCompressed} {
		for _, size := range [][2]int{{2, 2}, {3, 3}} {
			src := filled(t, size[0], size[1], Point3D{X: 4, Y: 4, Z: 4})
			require.NoError(t, src.SetBounds(Bounds{MinDistance: 1, MaxDistance: 5, MinRange: 1, MaxRange: 5}))
			var buf bytes.Buffer
			require.NoError(t, src.Serialize(stream.NewWriter(&buf), mode))

			dst := filled(t, 2, 2, Point3D{X: 1, Y: 2, Z: 3})
			dst.SetTimestamp(42)
			err := dst.Deserialize(stream.NewReader(bytes.NewReader(buf.Bytes()[:buf.Len()-1])), mode)
			require.ErrorIs(t, err, io.ErrUnexpectedEOF)

			assert.Equal(t, 2, dst.Width(), "%s %v", mode, size)
			assert.Equal(t, 2, dst.Height())
			assert.Equal(t, uint64(42), dst.Timestamp())
			assert.Equal(t, DefaultBounds(), dst.Bounds())
			for _, p := range dst.Points() {
				assert.Equal(t, Point3D{X: 1, Y: 2, Z: 3}, p)
			}
		}
	}
}

func TestDeserialize_SpansSeveralChunks(t *testing.T) {
	for _, mode := range []Mode{ModeRaw, ModeCompressed} {
		src := randomCloud(t, 128, 80, DefaultBounds(), 11)
		var buf bytes.Buffer
		require.NoError(t, src.Serialize(stream.NewWriter(&buf), mode))

		dst := New()
		require.NoError(t, dst.Deserialize(stream.NewReader(&buf), mode))
		require.Len(t, dst.Points(), 128*80)
		if mode == ModeRaw {
			assert.Equal(t, src.Points(), dst.Points())
			continue
		}
		tol := float64(DefaultMaxBound-DefaultMinBound)/QuantizationScale + 1e-6
		for i, p := range dst.Points() {
			assert.InDelta(t, src.Points()[i].Z, p.Z, tol)
		}
	}
}

func TestSerialize_Errors(t *testing.T) {
	var buf bytes.Buffer
	w := stream.NewWriter(&buf)
	assert.ErrorIs(t, New().Serialize(w, ModeCompressed), frame.ErrUnallocated)
	assert.Equal(t, 0, buf.Len())

	require.NoError(t, w.Close())
	c := filled(t, 1, 1, Point3D{})
	assert.ErrorIs(t, c.Serialize(w, ModeRaw), stream.ErrNotOpen)

	r := stream.NewReader(&buf)
	require.NoError(t, r.Close())
	assert.ErrorIs(t, c.Deserialize(r, ModeRaw), stream.ErrNotOpen)
}

func TestDeserialize_Truncated(t *testing.T) {
	for _, mode := range []Mode{ModeRaw, ModeCompressed} {
		src := filled(t, 2, 2, Point3D{X: 1, Y: 1, Z: 1})
		var buf bytes.Buffer
		require.NoError(t, src.Serialize(stream.NewWriter(&buf), mode))

		for _, cut := range []int{1, frame.HeaderSize - 1, frame.HeaderSize + 2, buf.Len() - 1} {
			r := stream.NewReader(bytes.NewReader(buf.Bytes()[:cut]))
			err := New().Deserialize(r, mode)
			assert.ErrorIs(t, err, io.ErrUnexpectedEOF, "%s cut at %d", mode, cut)
		}
	}
}

func TestDeserialize_RejectsBadStoredBounds(t *testing.T) {
	inf := float32(math.Inf(1))
	tests := []struct {
		name   string
		stored [4]float32
	}{
		{"inverted distance", [4]float32{5, 2, 0, 1}},
		{"infinite distance", [4]float32{0, inf, 0, 1}},
		{"infinite range", [4]float32{0, 1, 0, inf}},
		{"nan range", [4]float32{0, 1, float32(math.NaN()), 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := stream.NewWriter(&buf)
			frame.WriteHeader(w, frame.Header{Width: 1, Height: 1, Timestamp: 1})
			for _, v := range tt.stored {
				w.Float32(v)
			}
			w.Int16s([]int16{0, 0, 0})
			require.NoError(t, w.Error())

			dst := filled(t, 1, 1, Point3D{X: 1, Y: 2, Z: 3})
			err := dst.Deserialize(stream.NewReader(&buf), ModeCompressed)
			assert.ErrorIs(t, err, ErrInvalidBounds)
			assert.Equal(t, DefaultBounds(), dst.Bounds())
			assert.Equal(t, []Point3D{{X: 1, Y: 2, Z: 3}}, dst.Points())
		})
	}
}
