package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/depthcloud/internal/stream"
)

// HeaderSize is the encoded length of a Header.
const HeaderSize = 4 + 4 + 8

// Header starts every encoded frame.
type Header struct {
	Width     uint32
	Height    uint32
	Timestamp uint64 // microseconds since the Unix epoch
}

// Elements returns Width*Height.
func (h Header) Elements() int { return int(h.Width) * int(h.Height) }

// WriteHeader encodes h to w.
func WriteHeader(w *stream.Writer, h Header) {
	w.Uint32(h.Width)
	w.Uint32(h.Height)
	w.Uint64(h.Timestamp)
}

// ReadHeader decodes a Header from r. A stream that ends before the first
// byte returns an error wrapping io.EOF; a partial header wraps
// io.ErrUnexpectedEOF. Zero or oversized dimensions return ErrInvalidSize.
func ReadHeader(r *stream.Reader) (Header, error) {
	start := r.Offset()
	h := Header{
		Width:     r.Uint32(),
		Height:    r.Uint32(),
		Timestamp: r.Uint64(),
	}
	if err := r.Error(); err != nil {
		if errors.Is(err, io.EOF) && r.Offset() > start {
			err = io.ErrUnexpectedEOF
		}
		return Header{}, fmt.Errorf("read frame header: %w", err)
	}
	if err := checkSize(int(h.Width), int(h.Height)); err != nil {
		return Header{}, fmt.Errorf("read frame header: %w", err)
	}
	return h, nil
}

// Header returns the header describing f.
func (f *Frame[T]) Header() Header {
	return Header{Width: uint32(f.width), Height: uint32(f.height), Timestamp: f.timestamp}
}

// Serialize writes the header followed by the element buffer. T must be a
// fixed-size type as defined by encoding/binary.
func (f *Frame[T]) Serialize(w *stream.Writer) error {
	if !w.IsOpen() {
		return stream.ErrNotOpen
	}
	if f.data == nil {
		return ErrUnallocated
	}

	WriteHeader(w, f.Header())
	w.Value(f.data)
	if err := w.Error(); err != nil {
		return fmt.Errorf("serialize frame: %w", err)
	}
	return nil
}

// Deserialize reads one frame written by Serialize into f. f is left
// untouched when the frame cannot be read in full.
func (f *Frame[T]) Deserialize(r *stream.Reader) error {
	if !r.IsOpen() {
		return stream.ErrNotOpen
	}

	h, err := ReadHeader(r)
	if err != nil {
		return err
	}

	data := readElements[T](r, h.Elements())
	if err := r.Error(); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("deserialize frame: %w", err)
	}

	if len(f.data) == len(data) {
		f.width, f.height = int(h.Width), int(h.Height)
		copy(f.data, data)
	} else if err := f.Adopt(data, int(h.Width), int(h.Height)); err != nil {
		return err
	}
	f.timestamp = h.Timestamp
	return nil
}

// readChunk caps the bytes requested from the stream per read while
// decoding a payload.
const readChunk = 64 * 1024

// readElements reads n elements, growing the result only as data arrives.
func readElements[T any](r *stream.Reader, n int) []T {
	var zero T
	size := binary.Size(zero)
	if size <= 0 {
		r.SetError(fmt.Errorf("%w: %T", stream.ErrNotFixedSize, zero))
		return nil
	}

	per := max(1, readChunk/size)
	chunk := make([]T, min(n, per))
	var out []T
	for len(out) < n {
		c := chunk[:min(n-len(out), per)]
		r.Value(c)
		if r.Error() != nil {
			return out
		}
		out = append(out, c...)
	}
	return out
}
