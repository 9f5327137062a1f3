package frame

import "fmt"

// Grid is a Frame whose linear layout matches the sensor that produced it:
// element (i, j) is detector row i, column j, stored at index i*width+j.
// It adds no storage; it marks data that must not be treated as an
// unordered point list.
type Grid[T any] struct {
	Frame[T]
}

// NewGrid returns an empty, unallocated grid stamped with the current time.
func NewGrid[T any]() *Grid[T] {
	g := &Grid[T]{}
	g.Stamp()
	return g
}

// NewSizedGrid returns a zeroed width x height grid.
func NewSizedGrid[T any](width, height int) (*Grid[T], error) {
	g := NewGrid[T]()
	if err := g.Resize(width, height); err != nil {
		return nil, err
	}
	return g, nil
}

// Index maps pixel (i, j) to its linear index.
func (g *Grid[T]) Index(i, j int) (int, error) {
	if !g.ValidIndex(i, j) {
		return 0, fmt.Errorf("%w: (%d, %d) for %dx%d", ErrOutOfRange, i, j, g.width, g.height)
	}
	return i*g.width + j, nil
}

// At returns pixel (i, j).
func (g *Grid[T]) At(i, j int) (T, error) { return g.GetAt(i, j) }

// Row returns a view of sensor row i. Writes through the slice modify the grid.
func (g *Grid[T]) Row(i int) ([]T, error) {
	if g.data == nil {
		return nil, ErrUnallocated
	}
	if i < 0 || i >= g.height {
		return nil, fmt.Errorf("%w: row %d for height %d", ErrOutOfRange, i, g.height)
	}
	return g.data[i*g.width : (i+1)*g.width], nil
}

// ConstData returns the buffer for read-only use by consumers such as
// renderers. Callers must not write through it.
func (g *Grid[T]) ConstData() []T { return g.data }

// CloneGrid returns a deep copy of g.
func (g *Grid[T]) CloneGrid() *Grid[T] {
	return &Grid[T]{Frame: *g.Frame.Clone()}
}
