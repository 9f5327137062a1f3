// Package stream provides sequential binary readers and writers over frame
// files. Values are encoded in host byte order with no byte-order tag, so
// files are only portable between machines of the same endianness.
package stream

import (
	"encoding/binary"
	"errors"
)

// order is the byte order of every fixed-width value on the wire.
var order = binary.NativeEndian

var (
	// ErrNotOpen is reported for I/O on a stream that was never opened or
	// has been closed.
	ErrNotOpen = errors.New("stream is not open")

	// ErrNotFixedSize is reported by Value for types encoding/binary cannot size.
	ErrNotFixedSize = errors.New("value is not fixed-size")
)
