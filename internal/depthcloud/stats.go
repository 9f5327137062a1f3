package depthcloud

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrNoValidPoints is returned when every point in a cloud has zero depth.
var ErrNoValidPoints = errors.New("no points with non-zero depth")

// Stats summarizes the depth channel of a cloud. Points with Z == 0 are the
// sensor's "no return" marker; they are counted in ZeroDepth and excluded
// from the other figures.
type Stats struct {
	Count     int
	ZeroDepth int
	MinZ      float64
	MaxZ      float64
	MeanZ     float64
	StdDevZ   float64
}

// Depths returns the non-zero Z values of c as float64.
func (c *DepthCloud) Depths() []float64 {
	pts := c.Data()
	out := make([]float64, 0, len(pts))
	for _, p := range pts {
		if p.Z != 0 {
			out = append(out, float64(p.Z))
		}
	}
	return out
}

// Summarize computes depth statistics for c.
func (c *DepthCloud) Summarize() Stats {
	s := Stats{Count: c.Size()}
	if !c.Allocated() {
		s.Count = 0
		return s
	}

	z := c.Depths()
	s.ZeroDepth = s.Count - len(z)
	if len(z) == 0 {
		return s
	}
	s.MinZ = floats.Min(z)
	s.MaxZ = floats.Max(z)
	if len(z) == 1 {
		s.MeanZ = z[0]
		return s
	}
	s.MeanZ, s.StdDevZ = stat.MeanStdDev(z, nil)
	return s
}

// FitBounds suggests quantization windows that enclose every point with a
// non-zero depth, padded by margin on each side. Lower bounds are clamped at
// zero because negative bounds are invalid; coordinates below zero will
// saturate when compressed.
func (c *DepthCloud) FitBounds(margin float32) (Bounds, error) {
	pts := c.Data()
	var xy, z []float64
	for _, p := range pts {
		if p.Z == 0 {
			continue
		}
		xy = append(xy, float64(p.X), float64(p.Y))
		z = append(z, float64(p.Z))
	}
	if len(z) == 0 {
		return Bounds{}, ErrNoValidPoints
	}

	m := math.Abs(float64(margin))
	b := Bounds{
		MinDistance: float32(math.Max(0, floats.Min(z)-m)),
		MaxDistance: float32(math.Max(0, floats.Max(z)+m)),
		MinRange:    float32(math.Max(0, floats.Min(xy)-m)),
		MaxRange:    float32(math.Max(0, floats.Max(xy)+m)),
	}
	return b, b.Validate()
}
