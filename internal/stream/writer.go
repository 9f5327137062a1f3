package stream

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/banshee-data/depthcloud/internal/fsutil"
)

// Writer encodes fixed-width values in host byte order. If there is an error
// writing any output, all further writing becomes a no-op and Error reports
// the error which stopped the stream.
type Writer struct {
	w      io.Writer
	buf    *bufio.Writer
	closer io.Closer
	open   bool
	err    error
	n      int64
	tmp    [8]byte
	scr    []byte
}

// NewWriter wraps w. The caller keeps ownership of w; Close only marks the
// Writer closed.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, open: true}
}

// Create opens path on fsys for writing, truncating it unless appendMode is set.
func Create(fsys fsutil.FileSystem, path string, appendMode bool) (*Writer, error) {
	if path == "" {
		return nil, fmt.Errorf("create stream: empty path")
	}

	var (
		f   io.WriteCloser
		err error
	)
	if appendMode {
		f, err = fsys.Append(path)
	} else {
		f, err = fsys.Create(path)
	}
	if err != nil {
		return nil, fmt.Errorf("create stream %s: %w", path, err)
	}

	buf := bufio.NewWriterSize(f, 64*1024)
	return &Writer{w: buf, buf: buf, closer: f, open: true}, nil
}

// IsOpen reports whether the writer accepts output.
func (w *Writer) IsOpen() bool { return w != nil && w.open }

// Error returns the error which stopped writing, or nil.
func (w *Writer) Error() error { return w.err }

// SetError stops the stream with err unless it is already stopped.
func (w *Writer) SetError(err error) {
	if w.err == nil {
		w.err = err
	}
}

// Offset returns the number of bytes written so far.
func (w *Writer) Offset() int64 { return w.n }

// Close flushes buffered output and releases the underlying file.
func (w *Writer) Close() error {
	if !w.IsOpen() {
		return ErrNotOpen
	}
	w.open = false

	var err error
	if w.buf != nil {
		err = w.buf.Flush()
	}
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (w *Writer) write(b []byte) {
	if w.err != nil {
		return
	}
	if !w.open {
		w.err = ErrNotOpen
		return
	}
	n, err := w.w.Write(b)
	w.n += int64(n)
	if err != nil {
		w.err = err
	}
}

// Data writes b verbatim.
func (w *Writer) Data(b []byte) { w.write(b) }

// Int8 writes a signed 8 bit integer.
func (w *Writer) Int8(v int8) { w.Uint8(uint8(v)) }

// Uint8 writes an unsigned 8 bit integer.
func (w *Writer) Uint8(v uint8) {
	w.tmp[0] = v
	w.write(w.tmp[:1])
}

// Int16 writes a signed 16 bit integer.
func (w *Writer) Int16(v int16) { w.Uint16(uint16(v)) }

// Uint16 writes an unsigned 16 bit integer.
func (w *Writer) Uint16(v uint16) {
	order.PutUint16(w.tmp[:2], v)
	w.write(w.tmp[:2])
}

// Int32 writes a signed 32 bit integer.
func (w *Writer) Int32(v int32) { w.Uint32(uint32(v)) }

// Uint32 writes an unsigned 32 bit integer.
func (w *Writer) Uint32(v uint32) {
	order.PutUint32(w.tmp[:4], v)
	w.write(w.tmp[:4])
}

// Int64 writes a signed 64 bit integer.
func (w *Writer) Int64(v int64) { w.Uint64(uint64(v)) }

// Uint64 writes an unsigned 64 bit integer.
func (w *Writer) Uint64(v uint64) {
	order.PutUint64(w.tmp[:8], v)
	w.write(w.tmp[:8])
}

// Float32 writes a 32 bit IEEE-754 value.
func (w *Writer) Float32(v float32) { w.Uint32(math.Float32bits(v)) }

// Float64 writes a 64 bit IEEE-754 value.
func (w *Writer) Float64(v float64) { w.Uint64(math.Float64bits(v)) }

// Int16s writes every element of s contiguously.
func (w *Writer) Int16s(s []int16) {
	b := w.scratch(2 * len(s))
	for i, v := range s {
		order.PutUint16(b[2*i:], uint16(v))
	}
	w.write(b)
}

// Float32s writes every element of s contiguously.
func (w *Writer) Float32s(s []float32) {
	b := w.scratch(4 * len(s))
	for i, v := range s {
		order.PutUint32(b[4*i:], math.Float32bits(v))
	}
	w.write(b)
}

// Value writes v using encoding/binary rules. v must be a fixed-size value
// or a slice of fixed-size values.
func (w *Writer) Value(v any) {
	if w.err != nil {
		return
	}
	if !w.open {
		w.err = ErrNotOpen
		return
	}
	size := binary.Size(v)
	if size < 0 {
		w.err = fmt.Errorf("%w: %T", ErrNotFixedSize, v)
		return
	}
	if err := binary.Write(w.w, order, v); err != nil {
		w.err = err
		return
	}
	w.n += int64(size)
}

func (w *Writer) scratch(n int) []byte {
	if cap(w.scr) < n {
		w.scr = make([]byte, n)
	}
	return w.scr[:n]
}
