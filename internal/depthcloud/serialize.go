package depthcloud

import (
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/depthcloud/internal/frame"
	"github.com/banshee-data/depthcloud/internal/fsutil"
	"github.com/banshee-data/depthcloud/internal/stream"
)

// Serialize writes the frame header followed by the payload for mode.
func (c *DepthCloud) Serialize(w *stream.Writer, mode Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}
	if !w.IsOpen() {
		return stream.ErrNotOpen
	}
	if !c.Allocated() {
		return frame.ErrUnallocated
	}

	frame.WriteHeader(w, c.Header())
	CodecFor(mode).Encode(w, c)
	if err := w.Error(); err != nil {
		return fmt.Errorf("serialize %s cloud: %w", mode, err)
	}
	tracef("wrote %dx%d %s frame ts=%d", c.Width(), c.Height(), mode, c.Timestamp())
	return nil
}

// Deserialize reads one frame written with the same mode into c. The point
// buffer is reallocated only when the element count changes. In compressed
// mode the bounds stored in the frame replace the cloud's bounds. On error c
// keeps its previous dimensions, points and bounds.
func (c *DepthCloud) Deserialize(r *stream.Reader, mode Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}
	if !r.IsOpen() {
		return stream.ErrNotOpen
	}

	h, err := frame.ReadHeader(r)
	if err != nil {
		return err
	}

	n := h.Elements()
	reuse := len(c.Data()) == n
	var dst []Point3D
	if reuse {
		dst = c.decoded[:0]
	}
	b := c.bounds
	pts := CodecFor(mode).Decode(r, n, dst, &b)
	if reuse {
		c.decoded = pts[:0]
	}
	if err := r.Error(); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("deserialize %s cloud: %w", mode, err)
	}

	if reuse {
		if err := c.Resize(int(h.Width), int(h.Height)); err != nil {
			return err
		}
		copy(c.Data(), pts)
	} else if err := c.Adopt(pts, int(h.Width), int(h.Height)); err != nil {
		return err
	}
	c.bounds = b
	c.SetTimestamp(h.Timestamp)
	tracef("read %dx%d %s frame ts=%d", h.Width, h.Height, mode, h.Timestamp)
	return nil
}

// EncodedSize returns the byte length of one width x height frame in mode.
func EncodedSize(width, height int, mode Mode) int {
	return frame.HeaderSize + CodecFor(mode).PayloadSize(width*height)
}

// Load reads every frame in path. An empty file yields an empty slice. A
// frame cut short by the end of the file is an error; the frames decoded
// before it are still returned.
func Load(fsys fsutil.FileSystem, path string, mode Mode) ([]*DepthCloud, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("load %s: %w: %s", path, ErrUnknownMode, mode)
	}
	r, err := stream.Open(fsys, path)
	if err != nil {
		opsf("load %s: %v", path, err)
		return nil, err
	}
	defer r.Close()

	clouds := []*DepthCloud{}
	for r.HasNext() {
		c := New()
		if err := c.Deserialize(r, mode); err != nil {
			opsf("load %s: frame %d at offset %d: %v", path, len(clouds), r.Offset(), err)
			return clouds, fmt.Errorf("load %s frame %d: %w", path, len(clouds), err)
		}
		clouds = append(clouds, c)
	}
	if err := r.Error(); err != nil {
		return clouds, fmt.Errorf("load %s: %w", path, err)
	}

	diagf("loaded %d %s frames from %s", len(clouds), mode, path)
	return clouds, nil
}

// Save writes clouds to path, truncating it unless appendMode is set.
func Save(fsys fsutil.FileSystem, path string, mode Mode, appendMode bool, clouds ...*DepthCloud) (err error) {
	if !mode.Valid() {
		return fmt.Errorf("save %s: %w: %s", path, ErrUnknownMode, mode)
	}
	w, err := stream.Create(fsys, path, appendMode)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("save %s: %w", path, cerr)
		}
	}()

	for i, c := range clouds {
		if err := c.Serialize(w, mode); err != nil {
			return fmt.Errorf("save %s frame %d: %w", path, i, err)
		}
	}
	diagf("saved %d %s frames to %s", len(clouds), mode, path)
	return nil
}

// FrameInfo describes one encoded frame without its points.
type FrameInfo struct {
	Seq    int
	Offset int64
	Size   int
	Header frame.Header
}

// Scan walks the frames in r, calling fn with each frame's header and
// position. The payload is skipped rather than decoded. Returning an error
// from fn stops the walk and Scan returns that error.
func Scan(r *stream.Reader, mode Mode, fn func(FrameInfo) error) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}
	if !r.IsOpen() {
		return stream.ErrNotOpen
	}

	codec := CodecFor(mode)
	var skip [64 * 1024]byte
	for seq := 0; r.HasNext(); seq++ {
		offset := r.Offset()
		h, err := frame.ReadHeader(r)
		if err != nil {
			return fmt.Errorf("scan frame %d: %w", seq, err)
		}

		n := codec.PayloadSize(h.Elements())
		for left := n; left > 0 && r.Error() == nil; left -= len(skip) {
			r.Data(skip[:min(left, len(skip))])
		}
		if err := r.Error(); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return fmt.Errorf("scan frame %d: %w", seq, err)
		}

		if err := fn(FrameInfo{Seq: seq, Offset: offset, Size: frame.HeaderSize + n, Header: h}); err != nil {
			return err
		}
	}
	return r.Error()
}
