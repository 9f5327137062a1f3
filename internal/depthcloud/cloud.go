// Package depthcloud stores organized 3D point grids captured by depth
// cameras and encodes them to and from the on-disk frame format, either as
// raw float32 triplets or quantized to 16 bits against configured bounds.
package depthcloud

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/depthcloud/internal/frame"
)

// ErrInvalidBounds is returned when a bound pair is negative or inverted.
var ErrInvalidBounds = errors.New("invalid bounds")

// Default quantization window, in metres, for both the distance and range pairs.
const (
	DefaultMinBound float32 = 0
	DefaultMaxBound float32 = 8
)

// Point3D is one sample in physical units. Z is the depth axis.
type Point3D struct {
	X, Y, Z float32
}

// Bounds are the quantization windows used by the compressed encoding.
// Distance applies to Z; Range is shared by X and Y.
type Bounds struct {
	MinDistance float32
	MaxDistance float32
	MinRange    float32
	MaxRange    float32
}

// DefaultBounds returns the 0..8 window for both pairs.
func DefaultBounds() Bounds {
	return Bounds{
		MinDistance: DefaultMinBound,
		MaxDistance: DefaultMaxBound,
		MinRange:    DefaultMinBound,
		MaxRange:    DefaultMaxBound,
	}
}

// Validate checks both pairs.
func (b Bounds) Validate() error {
	if err := checkPair("distance", b.MinDistance, b.MaxDistance); err != nil {
		return err
	}
	return checkPair("range", b.MinRange, b.MaxRange)
}

func checkPair(name string, lo, hi float32) error {
	if !isFinite(lo) || !isFinite(hi) || lo < 0 || hi < 0 || hi < lo {
		return fmt.Errorf("%w: %s [%g, %g]", ErrInvalidBounds, name, lo, hi)
	}
	return nil
}

func isFinite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// DepthCloud is an organized point grid with the bounds used to quantize it.
// The embedded grid holds the authoritative points; compressed and decoded
// are scratch space for the codec.
type DepthCloud struct {
	frame.Grid[Point3D]

	bounds     Bounds
	compressed []int16
	decoded    []Point3D
}

// New returns an empty cloud with default bounds.
func New() *DepthCloud {
	return &DepthCloud{
		Grid:   *frame.NewGrid[Point3D](),
		bounds: DefaultBounds(),
	}
}

// NewSized returns a zeroed width x height cloud with default bounds.
func NewSized(width, height int) (*DepthCloud, error) {
	c := New()
	if err := c.Resize(width, height); err != nil {
		return nil, err
	}
	return c, nil
}

// SetDistanceBounds sets the Z quantization window. Invalid bounds are
// rejected and the previous window is kept.
func (c *DepthCloud) SetDistanceBounds(lo, hi float32) error {
	if err := checkPair("distance", lo, hi); err != nil {
		return err
	}
	c.bounds.MinDistance, c.bounds.MaxDistance = lo, hi
	return nil
}

// SetRangeBounds sets the X/Y quantization window. Invalid bounds are
// rejected and the previous window is kept.
func (c *DepthCloud) SetRangeBounds(lo, hi float32) error {
	if err := checkPair("range", lo, hi); err != nil {
		return err
	}
	c.bounds.MinRange, c.bounds.MaxRange = lo, hi
	return nil
}

// SetBounds installs both windows, or neither if either is invalid.
func (c *DepthCloud) SetBounds(b Bounds) error {
	if err := b.Validate(); err != nil {
		return err
	}
	c.bounds = b
	return nil
}

func (c *DepthCloud) Bounds() Bounds       { return c.bounds }
func (c *DepthCloud) MinDistance() float32 { return c.bounds.MinDistance }
func (c *DepthCloud) MaxDistance() float32 { return c.bounds.MaxDistance }
func (c *DepthCloud) MinRange() float32    { return c.bounds.MinRange }
func (c *DepthCloud) MaxRange() float32    { return c.bounds.MaxRange }

// Points returns the point buffer for producers to fill.
func (c *DepthCloud) Points() []Point3D { return c.Data() }

// Scale multiplies every coordinate by factor in place.
func (c *DepthCloud) Scale(factor float32) error {
	pts := c.Data()
	if pts == nil {
		return frame.ErrUnallocated
	}
	for i := range pts {
		pts[i].X *= factor
		pts[i].Y *= factor
		pts[i].Z *= factor
	}
	return nil
}

// MinDepth returns the smallest Z. ok is false for an unallocated cloud, in
// which case the value is 0.
func (c *DepthCloud) MinDepth() (float32, bool) {
	pts := c.Data()
	if len(pts) == 0 {
		return 0, false
	}
	lo := float32(math.MaxFloat32)
	for _, p := range pts {
		if p.Z < lo {
			lo = p.Z
		}
	}
	return lo, true
}

// MaxDepth returns the largest Z. ok is false for an unallocated cloud, in
// which case the value is 0.
func (c *DepthCloud) MaxDepth() (float32, bool) {
	pts := c.Data()
	if len(pts) == 0 {
		return 0, false
	}
	hi := float32(-math.MaxFloat32)
	for _, p := range pts {
		if p.Z > hi {
			hi = p.Z
		}
	}
	return hi, true
}

// Copy makes c a deep copy of src, bounds included.
func (c *DepthCloud) Copy(src *DepthCloud) error {
	if src == nil {
		return fmt.Errorf("copy cloud: %w", frame.ErrUnallocated)
	}
	if err := c.Frame.Copy(&src.Frame); err != nil {
		return err
	}
	c.bounds = src.bounds
	return nil
}

// Clone returns a deep copy of c.
func (c *DepthCloud) Clone() *DepthCloud {
	return &DepthCloud{
		Grid:   *c.CloneGrid(),
		bounds: c.bounds,
	}
}
