package depthcloud

import (
	"math"
	"math/rand"
)

// SyntheticGenerator renders depth frames of a simple scene for tests and
// demos: a flat back wall with a sphere orbiting in front of it, seen by a
// pinhole camera. Output is deterministic for a given seed.
type SyntheticGenerator struct {
	frameNum int

	// Configuration
	Width        int     // pixels
	Height       int     // pixels
	FocalLength  float64 // pixels
	WallDepth    float64 // metres
	SphereRadius float64 // metres
	SphereDepth  float64 // metres, centre of the orbit
	OrbitRadius  float64 // metres
	OrbitStep    float64 // radians per frame
	RangeOffset  float64 // metres added to X and Y so they sit inside a non-negative window
	NoReturnRate float64 // fraction of pixels reported with zero depth

	rng *rand.Rand
}

// NewSyntheticGenerator returns a generator for a width x height camera.
func NewSyntheticGenerator(width, height int, seed int64) *SyntheticGenerator {
	return &SyntheticGenerator{
		Width:        width,
		Height:       height,
		FocalLength:  float64(width) * 0.9,
		WallDepth:    6.0,
		SphereRadius: 0.5,
		SphereDepth:  3.0,
		OrbitRadius:  0.8,
		OrbitStep:    math.Pi / 30,
		RangeOffset:  4.0,
		NoReturnRate: 0.01,
		rng:          rand.New(rand.NewSource(seed)),
	}
}

// Next renders the next frame, stamped with the current time.
func (g *SyntheticGenerator) Next() (*DepthCloud, error) {
	c, err := NewSized(g.Width, g.Height)
	if err != nil {
		return nil, err
	}

	angle := float64(g.frameNum) * g.OrbitStep
	g.frameNum++
	cx := g.OrbitRadius * math.Cos(angle)
	cy := g.OrbitRadius * math.Sin(angle)
	cz := g.SphereDepth

	pts := c.Data()
	halfW := float64(g.Width-1) / 2
	halfH := float64(g.Height-1) / 2
	for i := 0; i < g.Height; i++ {
		for j := 0; j < g.Width; j++ {
			if g.rng.Float64() < g.NoReturnRate {
				continue
			}
			// Ray direction with unit Z.
			dx := (float64(j) - halfW) / g.FocalLength
			dy := (float64(i) - halfH) / g.FocalLength
			t := g.WallDepth
			if hit, ok := raySphere(dx, dy, cx, cy, cz, g.SphereRadius); ok && hit < t {
				t = hit
			}
			pts[i*g.Width+j] = Point3D{
				X: float32(dx*t + g.RangeOffset),
				Y: float32(dy*t + g.RangeOffset),
				Z: float32(t),
			}
		}
	}

	c.Stamp()
	return c, nil
}

// raySphere returns the Z of the nearest intersection of the ray
// (dx, dy, 1)*t with the sphere, if any.
func raySphere(dx, dy, cx, cy, cz, r float64) (float64, bool) {
	// |t*d - c|^2 = r^2
	a := dx*dx + dy*dy + 1
	b := -2 * (dx*cx + dy*cy + cz)
	k := cx*cx + cy*cy + cz*cz - r*r
	disc := b*b - 4*a*k
	if disc < 0 {
		return 0, false
	}
	t := (-b - math.Sqrt(disc)) / (2 * a)
	if t <= 0 {
		return 0, false
	}
	return t, true
}
