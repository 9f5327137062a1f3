// Package catalog indexes depth recordings in SQLite so individual frames can
// be located by sequence number or timestamp without rescanning the file.
package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/depthcloud/internal/depthcloud"
	"github.com/banshee-data/depthcloud/internal/fsutil"
	"github.com/banshee-data/depthcloud/internal/monitoring"
	"github.com/banshee-data/depthcloud/internal/stream"
	"github.com/banshee-data/depthcloud/internal/timeutil"
)

// ErrNotFound is returned when a recording or frame is not in the catalogue.
var ErrNotFound = errors.New("not found in catalog")

var logf = monitoring.Componentf("catalog")

// Catalog is a SQLite index of recordings and the frames they contain.
type Catalog struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Recording is one indexed file.
type Recording struct {
	ID         uuid.UUID
	Path       string
	Mode       depthcloud.Mode
	FrameCount int
	ByteLen    int64
	Created    time.Time
}

// Frame locates one encoded frame inside its recording.
type Frame struct {
	RecordingID uuid.UUID
	Seq         int
	Offset      int64
	Width       int
	Height      int
	TimestampUs uint64
	ByteLen     int
	MinDepth    sql.NullFloat64
	MaxDepth    sql.NullFloat64
}

// Open opens or creates the catalogue at path and applies pending migrations.
func Open(path string) (*Catalog, error) {
	return OpenWithClock(path, timeutil.RealClock{})
}

// OpenWithClock is Open with an injected clock for recording creation times.
func OpenWithClock(path string, clock timeutil.Clock) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps in-memory databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	c := &Catalog{db: db, clock: clock}
	if err := c.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	logf("opened catalog %s", path)
	return c, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// IndexFile decodes every frame of the recording at path and stores its
// location and depth range. A truncated trailing frame is an error and
// nothing is stored.
func (c *Catalog) IndexFile(fsys fsutil.FileSystem, path string, mode depthcloud.Mode) (Recording, error) {
	r, err := stream.Open(fsys, path)
	if err != nil {
		return Recording{}, err
	}
	defer r.Close()

	rec := Recording{
		ID:      uuid.New(),
		Path:    path,
		Mode:    mode,
		Created: c.clock.Now().UTC(),
	}

	tx, err := c.db.Begin()
	if err != nil {
		return Recording{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO recordings (id, path, mode, created_ns)
		VALUES (?, ?, ?, ?)
	`, rec.ID.String(), rec.Path, mode.String(), rec.Created.UnixNano()); err != nil {
		return Recording{}, fmt.Errorf("failed to insert recording: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO frames (recording_id, seq, byte_offset, width, height, timestamp_us, byte_len, min_depth, max_depth)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return Recording{}, fmt.Errorf("failed to prepare frame insert: %w", err)
	}
	defer stmt.Close()

	cloud := depthcloud.New()
	for r.HasNext() {
		offset := r.Offset()
		if err := cloud.Deserialize(r, mode); err != nil {
			return Recording{}, fmt.Errorf("index %s frame %d: %w", path, rec.FrameCount, err)
		}

		var lo, hi sql.NullFloat64
		if s := cloud.Summarize(); s.Count > s.ZeroDepth {
			lo = sql.NullFloat64{Float64: s.MinZ, Valid: true}
			hi = sql.NullFloat64{Float64: s.MaxZ, Valid: true}
		}

		size := r.Offset() - offset
		if _, err := stmt.Exec(rec.ID.String(), rec.FrameCount, offset,
			cloud.Width(), cloud.Height(), int64(cloud.Timestamp()), size, lo, hi); err != nil {
			return Recording{}, fmt.Errorf("failed to insert frame %d: %w", rec.FrameCount, err)
		}
		rec.FrameCount++
		rec.ByteLen += size
	}
	if err := r.Error(); err != nil {
		return Recording{}, fmt.Errorf("index %s: %w", path, err)
	}

	if _, err := tx.Exec(`UPDATE recordings SET frame_count = ?, byte_len = ? WHERE id = ?`,
		rec.FrameCount, rec.ByteLen, rec.ID.String()); err != nil {
		return Recording{}, fmt.Errorf("failed to update recording: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Recording{}, fmt.Errorf("failed to commit index: %w", err)
	}

	logf("indexed %s: %d %s frames, %d bytes", path, rec.FrameCount, mode, rec.ByteLen)
	return rec, nil
}

// Recordings lists every recording, oldest first.
func (c *Catalog) Recordings() ([]Recording, error) {
	rows, err := c.db.Query(`
		SELECT id, path, mode, frame_count, byte_len, created_ns
		FROM recordings
		ORDER BY created_ns, path
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query recordings: %w", err)
	}
	defer rows.Close()

	var out []Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Recording returns the recording with id.
func (c *Catalog) Recording(id uuid.UUID) (Recording, error) {
	row := c.db.QueryRow(`
		SELECT id, path, mode, frame_count, byte_len, created_ns
		FROM recordings WHERE id = ?
	`, id.String())
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Recording{}, fmt.Errorf("recording %s: %w", id, ErrNotFound)
	}
	return rec, err
}

// DeleteRecording removes a recording and its frames from the index. The
// file itself is left alone.
func (c *Catalog) DeleteRecording(id uuid.UUID) error {
	res, err := c.db.Exec(`DELETE FROM recordings WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete recording: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("recording %s: %w", id, ErrNotFound)
	}
	return nil
}

// Frames lists the frames of a recording in sequence order.
func (c *Catalog) Frames(id uuid.UUID) ([]Frame, error) {
	rows, err := c.db.Query(`
		SELECT recording_id, seq, byte_offset, width, height, timestamp_us, byte_len, min_depth, max_depth
		FROM frames WHERE recording_id = ?
		ORDER BY seq
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	var out []Frame
	for rows.Next() {
		f, err := scanFrame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// FrameAt returns frame seq of a recording.
func (c *Catalog) FrameAt(id uuid.UUID, seq int) (Frame, error) {
	row := c.db.QueryRow(`
		SELECT recording_id, seq, byte_offset, width, height, timestamp_us, byte_len, min_depth, max_depth
		FROM frames WHERE recording_id = ? AND seq = ?
	`, id.String(), seq)
	f, err := scanFrame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Frame{}, fmt.Errorf("frame %d of %s: %w", seq, id, ErrNotFound)
	}
	return f, err
}

// FrameNear returns the frame of a recording whose timestamp is closest to tsUs.
func (c *Catalog) FrameNear(id uuid.UUID, tsUs uint64) (Frame, error) {
	row := c.db.QueryRow(`
		SELECT recording_id, seq, byte_offset, width, height, timestamp_us, byte_len, min_depth, max_depth
		FROM frames WHERE recording_id = ?
		ORDER BY ABS(timestamp_us - ?), seq
		LIMIT 1
	`, id.String(), int64(tsUs))
	f, err := scanFrame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Frame{}, fmt.Errorf("frames of %s: %w", id, ErrNotFound)
	}
	return f, err
}

// LoadFrame reads a single indexed frame straight from its recording.
func (c *Catalog) LoadFrame(fsys fsutil.FileSystem, id uuid.UUID, seq int) (*depthcloud.DepthCloud, error) {
	rec, err := c.Recording(id)
	if err != nil {
		return nil, err
	}
	f, err := c.FrameAt(id, seq)
	if err != nil {
		return nil, err
	}

	file, err := fsys.Open(rec.Path)
	if err != nil {
		return nil, fmt.Errorf("open recording %s: %w", rec.Path, err)
	}
	defer file.Close()

	if _, err := io.CopyN(io.Discard, file, f.Offset); err != nil {
		return nil, fmt.Errorf("seek to frame %d of %s: %w", seq, rec.Path, err)
	}

	cloud := depthcloud.New()
	if err := cloud.Deserialize(stream.NewReader(io.LimitReader(file, int64(f.ByteLen))), rec.Mode); err != nil {
		return nil, fmt.Errorf("frame %d of %s: %w", seq, rec.Path, err)
	}
	return cloud, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecording(row rowScanner) (Recording, error) {
	var (
		rec       Recording
		id, mode  string
		createdNs int64
	)
	if err := row.Scan(&id, &rec.Path, &mode, &rec.FrameCount, &rec.ByteLen, &createdNs); err != nil {
		return Recording{}, err
	}

	var err error
	if rec.ID, err = uuid.Parse(id); err != nil {
		return Recording{}, fmt.Errorf("bad recording id %q: %w", id, err)
	}
	if rec.Mode, err = depthcloud.ParseMode(mode); err != nil {
		return Recording{}, err
	}
	rec.Created = time.Unix(0, createdNs).UTC()
	return rec, nil
}

func scanFrame(row rowScanner) (Frame, error) {
	var (
		f  Frame
		id string
		ts int64
	)
	if err := row.Scan(&id, &f.Seq, &f.Offset, &f.Width, &f.Height, &ts, &f.ByteLen, &f.MinDepth, &f.MaxDepth); err != nil {
		return Frame{}, err
	}

	var err error
	if f.RecordingID, err = uuid.Parse(id); err != nil {
		return Frame{}, fmt.Errorf("bad recording id %q: %w", id, err)
	}
	f.TimestampUs = uint64(ts)
	return f, nil
}
