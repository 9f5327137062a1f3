// Package frame provides the owned 2D buffer that every captured sensor frame
// is stored in, and the row-major Grid view used for organized point clouds.
package frame

import (
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/depthcloud/internal/timeutil"
)

var (
	// ErrInvalidSize is returned when a width or height is zero, or when the
	// element count exceeds MaxElements.
	ErrInvalidSize = errors.New("invalid frame size")

	// ErrOutOfRange is returned for an index outside width*height.
	ErrOutOfRange = errors.New("index out of range")

	// ErrUnallocated is returned when operating on a frame with no buffer.
	ErrUnallocated = errors.New("frame buffer is unallocated")
)

// MaxElements bounds width*height. It protects Resize from corrupt headers
// read off disk; a 4K sensor is well under it.
const MaxElements = 1 << 26

// clock stamps new frames. Tests replace it with SetClock.
var clock timeutil.Clock = timeutil.RealClock{}

// SetClock replaces the clock used by Stamp. Passing nil restores the wall clock.
func SetClock(c timeutil.Clock) {
	if c == nil {
		clock = timeutil.RealClock{}
		return
	}
	clock = c
}

// Frame is a width x height buffer of T plus a capture timestamp in
// microseconds since the Unix epoch. A Frame exclusively owns its buffer;
// every copy is deep.
type Frame[T any] struct {
	width     int
	height    int
	timestamp uint64
	data      []T
}

// New returns an empty, unallocated frame stamped with the current time.
func New[T any]() *Frame[T] {
	f := &Frame[T]{}
	f.Stamp()
	return f
}

// NewSized returns a zeroed width x height frame stamped with the current time.
func NewSized[T any](width, height int) (*Frame[T], error) {
	f := New[T]()
	if err := f.Resize(width, height); err != nil {
		return nil, err
	}
	return f, nil
}

// FromSlice returns a frame holding a copy of data, which must contain
// exactly width*height elements.
func FromSlice[T any](data []T, width, height int) (*Frame[T], error) {
	f := New[T]()
	if err := f.CopyFrom(data, width, height); err != nil {
		return nil, err
	}
	return f, nil
}

func checkSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if width > MaxElements/height {
		return fmt.Errorf("%w: %dx%d exceeds %d elements", ErrInvalidSize, width, height, MaxElements)
	}
	return nil
}

// Resize sets the frame dimensions. When width*height matches the current
// element count only the dimensions change and the buffer is kept as-is,
// without any meaningful reshaping. Otherwise a new zeroed buffer is allocated.
func (f *Frame[T]) Resize(width, height int) error {
	if err := checkSize(width, height); err != nil {
		return err
	}

	if f.data != nil && len(f.data) == width*height {
		f.width = width
		f.height = height
		return nil
	}

	f.width = width
	f.height = height
	f.data = make([]T, width*height)
	return nil
}

// Width returns the number of columns.
func (f *Frame[T]) Width() int { return f.width }

// Height returns the number of rows.
func (f *Frame[T]) Height() int { return f.height }

// Size returns width*height.
func (f *Frame[T]) Size() int { return f.width * f.height }

// Allocated reports whether the frame holds a buffer.
func (f *Frame[T]) Allocated() bool { return f != nil && f.data != nil }

// Data returns the backing buffer in row-major order. Writes through the
// slice modify the frame; nil means the frame is unallocated.
func (f *Frame[T]) Data() []T { return f.data }

// ValidIndex reports whether (i, j) addresses a cell of the frame.
func (f *Frame[T]) ValidIndex(i, j int) bool {
	return i >= 0 && j >= 0 && i < f.height && j < f.width
}

// Get returns the element at linear index.
func (f *Frame[T]) Get(index int) (T, error) {
	var zero T
	if f.data == nil {
		return zero, ErrUnallocated
	}
	if index < 0 || index >= len(f.data) {
		return zero, fmt.Errorf("%w: index %d for size %d", ErrOutOfRange, index, len(f.data))
	}
	return f.data[index], nil
}

// GetAt returns the element at row i, column j.
func (f *Frame[T]) GetAt(i, j int) (T, error) {
	var zero T
	if f.data == nil {
		return zero, ErrUnallocated
	}
	if !f.ValidIndex(i, j) {
		return zero, fmt.Errorf("%w: (%d, %d) for %dx%d", ErrOutOfRange, i, j, f.width, f.height)
	}
	return f.data[i*f.width+j], nil
}

// Set stores v at linear index.
func (f *Frame[T]) Set(index int, v T) error {
	if f.data == nil {
		return ErrUnallocated
	}
	if index < 0 || index >= len(f.data) {
		return fmt.Errorf("%w: index %d for size %d", ErrOutOfRange, index, len(f.data))
	}
	f.data[index] = v
	return nil
}

// SetAt stores v at row i, column j.
func (f *Frame[T]) SetAt(i, j int, v T) error {
	if f.data == nil {
		return ErrUnallocated
	}
	if !f.ValidIndex(i, j) {
		return fmt.Errorf("%w: (%d, %d) for %dx%d", ErrOutOfRange, i, j, f.width, f.height)
	}
	f.data[i*f.width+j] = v
	return nil
}

// Uniform fills every element with v.
func (f *Frame[T]) Uniform(v T) error {
	if f.data == nil {
		return ErrUnallocated
	}
	for i := range f.data {
		f.data[i] = v
	}
	return nil
}

// Zero fills every element with the zero value of T.
func (f *Frame[T]) Zero() error {
	if f.data == nil {
		return ErrUnallocated
	}
	if f.width == 0 || f.height == 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, f.width, f.height)
	}
	clear(f.data)
	return nil
}

// Flip reverses the row order in place when vertical is true, otherwise the
// column order within each row. With an odd count the middle row or column
// stays where it is.
func (f *Frame[T]) Flip(vertical bool) error {
	if f.data == nil {
		return ErrUnallocated
	}

	w, h := f.width, f.height
	if vertical {
		for i := 0; i < h/2; i++ {
			top := f.data[i*w : (i+1)*w]
			bottom := f.data[(h-1-i)*w : (h-i)*w]
			for j := range top {
				top[j], bottom[j] = bottom[j], top[j]
			}
		}
		return nil
	}

	for i := 0; i < h; i++ {
		row := f.data[i*w : (i+1)*w]
		for j := 0; j < w/2; j++ {
			row[j], row[w-1-j] = row[w-1-j], row[j]
		}
	}
	return nil
}

// Copy makes f a deep copy of src: dimensions, timestamp and contents. The
// buffer is reallocated only when the element count differs.
func (f *Frame[T]) Copy(src *Frame[T]) error {
	if src == nil || src.data == nil {
		return fmt.Errorf("copy frame: %w", ErrUnallocated)
	}
	if err := f.Resize(src.width, src.height); err != nil {
		return err
	}
	copy(f.data, src.data)
	f.timestamp = src.timestamp
	return nil
}

// CopyFrom replaces the frame contents with a copy of data and stamps the
// current time. data must hold exactly width*height elements.
func (f *Frame[T]) CopyFrom(data []T, width, height int) error {
	if err := checkSize(width, height); err != nil {
		return err
	}
	if len(data) != width*height {
		return fmt.Errorf("%w: %d elements for %dx%d", ErrInvalidSize, len(data), width, height)
	}
	if err := f.Resize(width, height); err != nil {
		return err
	}
	copy(f.data, data)
	f.Stamp()
	return nil
}

// Adopt makes data the frame buffer without copying it. data must hold
// exactly width*height elements and belongs to the frame afterwards.
func (f *Frame[T]) Adopt(data []T, width, height int) error {
	if err := checkSize(width, height); err != nil {
		return err
	}
	if len(data) != width*height {
		return fmt.Errorf("%w: %d elements for %dx%d", ErrInvalidSize, len(data), width, height)
	}
	f.width = width
	f.height = height
	f.data = data
	return nil
}

// Clone returns a deep copy of f. Cloning an unallocated frame yields an
// unallocated frame with the same timestamp.
func (f *Frame[T]) Clone() *Frame[T] {
	c := &Frame[T]{timestamp: f.timestamp}
	if f.data != nil {
		c.width = f.width
		c.height = f.height
		c.data = make([]T, len(f.data))
		copy(c.data, f.data)
	}
	return c
}

// Stamp records the current wall-clock time as the frame timestamp and returns it.
func (f *Frame[T]) Stamp() uint64 {
	f.timestamp = timeutil.UnixMicros(clock)
	return f.timestamp
}

// SetTimestamp overrides the frame timestamp, as done when a frame is read
// back from disk.
func (f *Frame[T]) SetTimestamp(us uint64) { f.timestamp = us }

// Timestamp returns the frame timestamp in microseconds since the Unix epoch.
func (f *Frame[T]) Timestamp() uint64 { return f.timestamp }

// String renders the frame row by row.
func (f *Frame[T]) String() string {
	if f.data == nil {
		return "[]"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Frame (%d) [\n", f.timestamp)
	for i := 0; i < f.height; i++ {
		for j := 0; j < f.width; j++ {
			fmt.Fprintf(&b, "%v ", f.data[i*f.width+j])
		}
		b.WriteByte('\n')
	}
	b.WriteString("]\n")
	return b.String()
}
