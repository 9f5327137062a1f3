package stream

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/banshee-data/depthcloud/internal/fsutil"
)

// Reader decodes fixed-width values in host byte order. If there is an error
// reading any input, all further reads return the zero value and Error
// reports the error which stopped the stream.
type Reader struct {
	r      *bufio.Reader
	closer io.Closer
	open   bool
	eof    bool
	err    error
	n      int64
	tmp    [8]byte
	scr    []byte
}

// NewReader wraps r. The caller keeps ownership of r; Close only marks the
// Reader closed.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64*1024), open: true}
}

// Open opens path on fsys for reading.
func Open(fsys fsutil.FileSystem, path string) (*Reader, error) {
	if path == "" {
		return nil, fmt.Errorf("open stream: empty path")
	}
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stream %s: %w", path, err)
	}
	return &Reader{r: bufio.NewReaderSize(f, 64*1024), closer: f, open: true}, nil
}

// IsEmpty reports whether path is missing or holds no data.
func IsEmpty(fsys fsutil.FileSystem, path string) bool {
	if path == "" {
		return true
	}
	info, err := fsys.Stat(path)
	if err != nil {
		return true
	}
	return info.Size() == 0
}

// IsOpen reports whether the reader can produce input.
func (r *Reader) IsOpen() bool { return r != nil && r.open }

// Error returns the error which stopped reading, or nil.
func (r *Reader) Error() error { return r.err }

// SetError stops the stream with err unless it is already stopped.
func (r *Reader) SetError(err error) {
	if r.err == nil {
		r.err = err
	}
}

// EOF reports whether a read ran past the end of the data.
func (r *Reader) EOF() bool { return r.eof }

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int64 { return r.n }

// HasNext reports whether at least one more byte can be read. A failure
// other than end of data stops the stream and is reported by Error.
func (r *Reader) HasNext() bool {
	if !r.IsOpen() || r.err != nil {
		return false
	}
	_, err := r.r.Peek(1)
	if err != nil && !errors.Is(err, io.EOF) {
		r.err = err
	}
	return err == nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	if !r.IsOpen() {
		return ErrNotOpen
	}
	r.open = false
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

func (r *Reader) read(b []byte) bool {
	if r.err != nil {
		clear(b)
		return false
	}
	if !r.open {
		r.err = ErrNotOpen
		clear(b)
		return false
	}
	n, err := io.ReadFull(r.r, b)
	r.n += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			r.eof = true
		}
		r.err = err
		clear(b)
		return false
	}
	return true
}

// Data fills b entirely from the stream.
func (r *Reader) Data(b []byte) { r.read(b) }

// Int8 reads a signed 8 bit integer.
func (r *Reader) Int8() int8 { return int8(r.Uint8()) }

// Uint8 reads an unsigned 8 bit integer.
func (r *Reader) Uint8() uint8 {
	r.read(r.tmp[:1])
	return r.tmp[0]
}

// Int16 reads a signed 16 bit integer.
func (r *Reader) Int16() int16 { return int16(r.Uint16()) }

// Uint16 reads an unsigned 16 bit integer.
func (r *Reader) Uint16() uint16 {
	r.read(r.tmp[:2])
	return order.Uint16(r.tmp[:2])
}

// Int32 reads a signed 32 bit integer.
func (r *Reader) Int32() int32 { return int32(r.Uint32()) }

// Uint32 reads an unsigned 32 bit integer.
func (r *Reader) Uint32() uint32 {
	r.read(r.tmp[:4])
	return order.Uint32(r.tmp[:4])
}

// Int64 reads a signed 64 bit integer.
func (r *Reader) Int64() int64 { return int64(r.Uint64()) }

// Uint64 reads an unsigned 64 bit integer.
func (r *Reader) Uint64() uint64 {
	r.read(r.tmp[:8])
	return order.Uint64(r.tmp[:8])
}

// Float32 reads a 32 bit IEEE-754 value.
func (r *Reader) Float32() float32 { return math.Float32frombits(r.Uint32()) }

// Float64 reads a 64 bit IEEE-754 value.
func (r *Reader) Float64() float64 { return math.Float64frombits(r.Uint64()) }

// bulkChunk caps the scratch buffer used by the slice readers.
const bulkChunk = 64 * 1024

// Int16s fills dst from the stream.
func (r *Reader) Int16s(dst []int16) {
	for len(dst) > 0 {
		n := min(len(dst), bulkChunk/2)
		b := r.scratch(2 * n)
		r.read(b)
		for i := range n {
			dst[i] = int16(order.Uint16(b[2*i:]))
		}
		dst = dst[n:]
	}
}

// Float32s fills dst from the stream.
func (r *Reader) Float32s(dst []float32) {
	for len(dst) > 0 {
		n := min(len(dst), bulkChunk/4)
		b := r.scratch(4 * n)
		r.read(b)
		for i := range n {
			dst[i] = math.Float32frombits(order.Uint32(b[4*i:]))
		}
		dst = dst[n:]
	}
}

// Value decodes into v using encoding/binary rules. v must be a pointer to a
// fixed-size value or a slice of fixed-size values.
func (r *Reader) Value(v any) {
	size := binary.Size(v)
	if size < 0 {
		r.SetError(fmt.Errorf("%w: %T", ErrNotFixedSize, v))
		return
	}
	b := r.scratch(size)
	if !r.read(b) {
		return
	}
	if _, err := binary.Decode(b, order, v); err != nil {
		r.err = err
	}
}

func (r *Reader) scratch(n int) []byte {
	if cap(r.scr) < n {
		r.scr = make([]byte, n)
	}
	return r.scr[:n]
}
