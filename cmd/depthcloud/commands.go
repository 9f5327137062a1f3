package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/depthcloud/internal/catalog"
	"github.com/banshee-data/depthcloud/internal/config"
	"github.com/banshee-data/depthcloud/internal/depthcloud"
	"github.com/banshee-data/depthcloud/internal/report"
	"github.com/banshee-data/depthcloud/internal/stream"
)

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// loadConfig reads path, or returns the built-in defaults when path is empty.
func loadConfig(path string) (*config.CodecConfig, error) {
	if path == "" {
		return config.DefaultCodecConfig(), nil
	}
	return config.LoadCodecConfig(path)
}

// resolveMode parses s, falling back to the configured mode when s is empty.
func resolveMode(cfg *config.CodecConfig, s string) (depthcloud.Mode, error) {
	if s == "" {
		return cfg.GetMode(), nil
	}
	return depthcloud.ParseMode(s)
}

func handleGen(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("gen", stderr)
	out := fs.String("out", "", "Output recording path (required)")
	mode := fs.String("mode", "", "Encoding: raw or compressed (default from config)")
	cfgPath := fs.String("config", "", "Codec configuration file")
	frames := fs.Int("frames", 30, "Number of frames to generate")
	width := fs.Int("width", 64, "Frame width")
	height := fs.Int("height", 48, "Frame height")
	seed := fs.Int64("seed", 1, "Random seed for dropped returns")
	appendMode := fs.Bool("append", false, "Append to an existing recording")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return errors.New("--out is required")
	}
	if *frames <= 0 {
		return fmt.Errorf("--frames must be positive, got %d", *frames)
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	m, err := resolveMode(cfg, *mode)
	if err != nil {
		return err
	}

	gen := depthcloud.NewSyntheticGenerator(*width, *height, *seed)
	clouds := make([]*depthcloud.DepthCloud, 0, *frames)
	for i := 0; i < *frames; i++ {
		c, err := gen.Next()
		if err != nil {
			return fmt.Errorf("generate frame %d: %w", i, err)
		}
		if err := cfg.Apply(c); err != nil {
			return err
		}
		clouds = append(clouds, c)
	}

	if err := depthcloud.Save(fsys, *out, m, *appendMode, clouds...); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %d %dx%d %s frames to %s\n", *frames, *width, *height, m, *out)
	return nil
}

// fileSummary aggregates the frames of one recording.
type fileSummary struct {
	Path          string
	Frames        int
	Width, Height int
	FirstUs       uint64
	LastUs        uint64
	Points        int
	ZeroDepth     int
	MinZ, MaxZ    float64
	MeanZ         float64
}

func summarizeFile(path string, mode depthcloud.Mode) (fileSummary, error) {
	clouds, err := depthcloud.Load(fsys, path, mode)
	if err != nil {
		return fileSummary{}, err
	}

	s := fileSummary{Path: path, Frames: len(clouds), MinZ: math.Inf(1), MaxZ: math.Inf(-1)}
	var sumZ float64
	for i, c := range clouds {
		if i == 0 {
			s.Width, s.Height, s.FirstUs = c.Width(), c.Height(), c.Timestamp()
		}
		s.LastUs = c.Timestamp()

		st := c.Summarize()
		s.Points += st.Count
		s.ZeroDepth += st.ZeroDepth
		valid := st.Count - st.ZeroDepth
		if valid == 0 {
			continue
		}
		s.MinZ = math.Min(s.MinZ, st.MinZ)
		s.MaxZ = math.Max(s.MaxZ, st.MaxZ)
		sumZ += st.MeanZ * float64(valid)
	}
	if valid := s.Points - s.ZeroDepth; valid > 0 {
		s.MeanZ = sumZ / float64(valid)
	} else {
		s.MinZ, s.MaxZ = 0, 0
	}
	return s, nil
}

// frameSpan is the signed time from first to last. Timestamps are set by the
// producer and may run backwards.
func frameSpan(firstUs, lastUs uint64) time.Duration {
	return time.Duration(int64(lastUs)-int64(firstUs)) * time.Microsecond
}

func printHeaders(w io.Writer, path string, mode depthcloud.Mode) error {
	r, err := stream.Open(fsys, path)
	if err != nil {
		return err
	}
	defer r.Close()

	fmt.Fprintf(w, "%s:\n", path)
	return depthcloud.Scan(r, mode, func(fi depthcloud.FrameInfo) error {
		fmt.Fprintf(w, "  #%-5d offset=%-10d size=%-8d %dx%d ts=%dus\n",
			fi.Seq, fi.Offset, fi.Size, fi.Header.Width, fi.Header.Height, fi.Header.Timestamp)
		return nil
	})
}

func handleInfo(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("info", stderr)
	mode := fs.String("mode", "", "Encoding: raw or compressed (default from config)")
	cfgPath := fs.String("config", "", "Codec configuration file")
	headers := fs.Bool("headers", false, "List frame headers without decoding points")
	jobs := fs.Int("jobs", 4, "Recordings summarized concurrently")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("at least one recording is required")
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	m, err := resolveMode(cfg, *mode)
	if err != nil {
		return err
	}

	if *headers {
		for _, path := range fs.Args() {
			if err := printHeaders(stdout, path, m); err != nil {
				return err
			}
		}
		return nil
	}

	summaries := make([]fileSummary, fs.NArg())
	var g errgroup.Group
	g.SetLimit(max(1, *jobs))
	for i, path := range fs.Args() {
		g.Go(func() error {
			s, err := summarizeFile(path, m)
			if err != nil {
				return err
			}
			summaries[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, s := range summaries {
		duration := frameSpan(s.FirstUs, s.LastUs)
		fmt.Fprintf(stdout, "%s: %d frames %dx%d over %s, %d points (%d no return), depth %.3f..%.3f mean %.3f\n",
			s.Path, s.Frames, s.Width, s.Height, duration, s.Points, s.ZeroDepth, s.MinZ, s.MaxZ, s.MeanZ)
	}
	return nil
}

func handleConvert(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("convert", stderr)
	in := fs.String("in", "", "Input recording (required)")
	out := fs.String("out", "", "Output recording (required)")
	from := fs.String("from", "", "Input encoding (default from config)")
	to := fs.String("to", "", "Output encoding (required)")
	cfgPath := fs.String("config", "", "Codec configuration file")
	fit := fs.Float64("fit", -1, "Fit quantization windows to each frame with this margin (negative uses the config windows)")
	rescale := fs.Bool("rescale", false, "Scale coordinates from the config source unit to the target unit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" || *to == "" {
		return errors.New("--in, --out and --to are required")
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	src, err := resolveMode(cfg, *from)
	if err != nil {
		return err
	}
	dst, err := depthcloud.ParseMode(*to)
	if err != nil {
		return err
	}

	clouds, err := depthcloud.Load(fsys, *in, src)
	if err != nil {
		return err
	}

	for i, c := range clouds {
		if *rescale {
			if err := c.Scale(float32(cfg.GetScaleFactor())); err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
		}
		if *fit < 0 {
			if err := cfg.Apply(c); err != nil {
				return err
			}
			continue
		}
		b, err := c.FitBounds(float32(*fit))
		if errors.Is(err, depthcloud.ErrNoValidPoints) {
			continue
		}
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if err := c.SetBounds(b); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}

	if err := depthcloud.Save(fsys, *out, dst, false, clouds...); err != nil {
		return err
	}

	var inSize, outSize int
	for _, c := range clouds {
		inSize += depthcloud.EncodedSize(c.Width(), c.Height(), src)
		outSize += depthcloud.EncodedSize(c.Width(), c.Height(), dst)
	}
	fmt.Fprintf(stdout, "converted %d frames %s -> %s: %d -> %d bytes\n", len(clouds), src, dst, inSize, outSize)
	return nil
}

func handleIndex(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("index", stderr)
	dbPath := fs.String("db", "", "Catalogue database (default from config)")
	mode := fs.String("mode", "", "Encoding: raw or compressed (default from config)")
	cfgPath := fs.String("config", "", "Codec configuration file")
	list := fs.Bool("list", false, "List indexed recordings")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 && !*list {
		return errors.New("give recordings to index or --list")
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	m, err := resolveMode(cfg, *mode)
	if err != nil {
		return err
	}
	if *dbPath == "" {
		*dbPath = cfg.GetCatalogPath()
	}

	cat, err := catalog.Open(*dbPath)
	if err != nil {
		return err
	}
	defer cat.Close()

	for _, path := range fs.Args() {
		rec, err := cat.IndexFile(fsys, path, m)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "indexed %s as %s (%d frames)\n", path, rec.ID, rec.FrameCount)
	}

	if *list {
		recs, err := cat.Recordings()
		if err != nil {
			return err
		}
		for _, rec := range recs {
			fmt.Fprintf(stdout, "%s  %-10s %6d frames %10d bytes  %s  %s\n",
				rec.ID, rec.Mode, rec.FrameCount, rec.ByteLen, rec.Created.Format(time.RFC3339), rec.Path)
		}
	}
	return nil
}

func handleHist(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("hist", stderr)
	out := fs.String("out", "", "Output file, .png or .html (required)")
	mode := fs.String("mode", "", "Encoding: raw or compressed (default from config)")
	cfgPath := fs.String("config", "", "Codec configuration file")
	bins := fs.Int("bins", 32, "Number of histogram bins")
	lo := fs.Float64("lo", math.NaN(), "Lowest depth (default config min_distance)")
	hi := fs.Float64("hi", math.NaN(), "Highest depth (default config max_distance)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" || fs.NArg() == 0 {
		return errors.New("--out and at least one recording are required")
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	m, err := resolveMode(cfg, *mode)
	if err != nil {
		return err
	}
	if math.IsNaN(*lo) {
		*lo = cfg.GetMinDistance()
	}
	if math.IsNaN(*hi) {
		*hi = cfg.GetMaxDistance()
	}

	var depths []float64
	frames := 0
	for _, path := range fs.Args() {
		clouds, err := depthcloud.Load(fsys, path, m)
		if err != nil {
			return err
		}
		for _, c := range clouds {
			depths = append(depths, c.Depths()...)
		}
		frames += len(clouds)
	}

	h, err := report.DepthHistogram(depths, *bins, *lo, *hi)
	if err != nil {
		return err
	}
	subtitle := fmt.Sprintf("%d frames from %d recordings", frames, fs.NArg())
	if err := report.SaveHistogram(fsys, *out, h, "Depth distribution", subtitle); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s: %d depths in %d bins, %d outside [%g, %g]\n",
		*out, h.Total, *bins, h.Clipped, *lo, *hi)
	return nil
}
