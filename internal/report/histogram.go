// Package report renders depth distributions of recorded clouds as PNG plots
// and standalone HTML charts.
package report

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrBadHistogram is returned for a non-positive bin count or an empty window.
var ErrBadHistogram = errors.New("invalid histogram parameters")

// Histogram counts depth values in equal-width bins over [Lo, Hi].
type Histogram struct {
	Lo, Hi  float64
	Edges   []float64 // len(Counts)+1 bin edges, Edges[0] == Lo
	Counts  []float64
	Total   int // values counted
	Clipped int // values outside [Lo, Hi]
}

// DepthHistogram bins depths into bins equal-width buckets spanning [lo, hi].
// A value equal to hi lands in the last bucket.
func DepthHistogram(depths []float64, bins int, lo, hi float64) (Histogram, error) {
	if bins <= 0 || !(hi > lo) {
		return Histogram{}, fmt.Errorf("%w: %d bins over [%g, %g]", ErrBadHistogram, bins, lo, hi)
	}

	x := make([]float64, 0, len(depths))
	clipped := 0
	for _, v := range depths {
		if v < lo || v > hi || math.IsNaN(v) {
			clipped++
			continue
		}
		x = append(x, v)
	}
	slices.Sort(x)

	edges := floats.Span(make([]float64, bins+1), lo, hi)
	dividers := slices.Clone(edges)
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	return Histogram{
		Lo:      lo,
		Hi:      hi,
		Edges:   edges,
		Counts:  stat.Histogram(nil, dividers, x, nil),
		Total:   len(x),
		Clipped: clipped,
	}, nil
}

// Labels returns one "lo-hi" label per bin.
func (h Histogram) Labels() []string {
	out := make([]string, len(h.Counts))
	for i := range h.Counts {
		out[i] = fmt.Sprintf("%.2f-%.2f", h.Edges[i], h.Edges[i+1])
	}
	return out
}
