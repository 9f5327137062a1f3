package depthcloud

import (
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/depthcloud/internal/stream"
)

// ErrUnknownMode is returned for a Mode outside the defined values.
var ErrUnknownMode = errors.New("unknown encoding mode")

// QuantizationScale is the largest code a normalized coordinate maps to.
const QuantizationScale = 32767

// Mode selects the payload encoding of a frame.
type Mode int

const (
	// ModeDefault encodes like ModeRaw.
	ModeDefault Mode = iota
	// ModeRaw writes every coordinate as a float32.
	ModeRaw
	// ModeCompressed writes the bounds, then every coordinate as an int16 code.
	ModeCompressed
)

func (m Mode) String() string {
	switch m {
	case ModeDefault:
		return "default"
	case ModeRaw:
		return "raw"
	case ModeCompressed:
		return "compressed"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Valid reports whether m is one of the defined modes.
func (m Mode) Valid() bool { return m >= ModeDefault && m <= ModeCompressed }

// ParseMode accepts "raw", "compressed" or "default", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return ModeDefault, nil
	case "raw":
		return ModeRaw, nil
	case "compressed":
		return ModeCompressed, nil
	}
	return ModeDefault, fmt.Errorf("%w %q", ErrUnknownMode, s)
}

// decodeChunk is the number of points read from the stream at a time.
const decodeChunk = 4096

// Codec encodes the payload that follows a frame header. Errors are
// reported through the stream's sticky error.
type Codec interface {
	Encode(w *stream.Writer, c *DepthCloud)
	// Decode appends n decoded points to dst. dst grows only as payload
	// bytes arrive, so a header that overstates the frame size fails at the
	// end of the data rather than at allocation. Stored bounds, if the
	// encoding has any, are written to b only after the payload is complete.
	Decode(r *stream.Reader, n int, dst []Point3D, b *Bounds) []Point3D
	// PayloadSize is the encoded length of n points.
	PayloadSize(n int) int
}

// CodecFor returns the codec for m. Callers check m.Valid first; unknown
// modes get the raw codec.
func CodecFor(m Mode) Codec {
	if m == ModeCompressed {
		return compressedCodec{}
	}
	return rawCodec{}
}

type rawCodec struct{}

func (rawCodec) PayloadSize(n int) int { return 3 * 4 * n }

func (rawCodec) Encode(w *stream.Writer, c *DepthCloud) {
	pts := c.Data()
	buf := make([]float32, 3*len(pts))
	for i, p := range pts {
		buf[3*i] = p.X
		buf[3*i+1] = p.Y
		buf[3*i+2] = p.Z
	}
	w.Float32s(buf)
}

func (rawCodec) Decode(r *stream.Reader, n int, dst []Point3D, _ *Bounds) []Point3D {
	buf := make([]float32, 3*min(n, decodeChunk))
	for len(dst) < n {
		k := min(n-len(dst), decodeChunk)
		f := buf[:3*k]
		r.Float32s(f)
		if r.Error() != nil {
			return dst
		}
		for i := 0; i < k; i++ {
			dst = append(dst, Point3D{X: f[3*i], Y: f[3*i+1], Z: f[3*i+2]})
		}
	}
	return dst
}

type compressedCodec struct{}

func (compressedCodec) PayloadSize(n int) int { return 4*4 + 3*2*n }

func (compressedCodec) Encode(w *stream.Writer, c *DepthCloud) {
	b := c.bounds
	w.Float32(b.MinDistance)
	w.Float32(b.MaxDistance)
	w.Float32(b.MinRange)
	w.Float32(b.MaxRange)

	pts := c.Data()
	q := c.shortScratch(len(pts))
	for i, p := range pts {
		q[3*i] = quantize(p.X, b.MinRange, b.MaxRange)
		q[3*i+1] = quantize(p.Y, b.MinRange, b.MaxRange)
		q[3*i+2] = quantize(p.Z, b.MinDistance, b.MaxDistance)
	}
	w.Int16s(q)
}

func (compressedCodec) Decode(r *stream.Reader, n int, dst []Point3D, b *Bounds) []Point3D {
	stored := Bounds{
		MinDistance: r.Float32(),
		MaxDistance: r.Float32(),
		MinRange:    r.Float32(),
		MaxRange:    r.Float32(),
	}
	if r.Error() != nil {
		return dst
	}
	if err := stored.Validate(); err != nil {
		r.SetError(fmt.Errorf("decode bounds: %w", err))
		return dst
	}

	buf := make([]int16, 3*min(n, decodeChunk))
	for len(dst) < n {
		k := min(n-len(dst), decodeChunk)
		q := buf[:3*k]
		r.Int16s(q)
		if r.Error() != nil {
			return dst
		}
		for i := 0; i < k; i++ {
			dst = append(dst, Point3D{
				X: dequantize(q[3*i], stored.MinRange, stored.MaxRange),
				Y: dequantize(q[3*i+1], stored.MinRange, stored.MaxRange),
				Z: dequantize(q[3*i+2], stored.MinDistance, stored.MaxDistance),
			})
		}
	}
	*b = stored
	return dst
}

// quantize maps v from [lo, hi] onto [0, QuantizationScale], truncating
// toward zero. Values outside the window saturate at the nearest end and an
// empty window maps everything to 0.
func quantize(v, lo, hi float32) int16 {
	span := hi - lo
	if !(span > 0) {
		return 0
	}
	t := (v - lo) / span
	switch {
	case !(t > 0):
		return 0
	case t >= 1:
		return QuantizationScale
	}
	return int16(t * QuantizationScale)
}

func dequantize(q int16, lo, hi float32) float32 {
	return lo + (float32(q)/QuantizationScale)*(hi-lo)
}

// shortScratch returns the cloud's int16 buffer sized to 3*n.
func (c *DepthCloud) shortScratch(n int) []int16 {
	if cap(c.compressed) < 3*n {
		c.compressed = make([]int16, 3*n)
	}
	c.compressed = c.compressed[:3*n]
	return c.compressed
}
