// Package convert turns uploaded document bytes into ordered page images
// suitable for text recognition.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"docverify/constants"
	"docverify/internal/common"
	"docverify/internal/runner"
)

// Page is one rasterized page, written into the artifact cache.
type Page struct {
	Index int
	Path  string
}

// Converter renders document bytes into ordered page images. The result
// is deterministic for identical input bytes. All pages are returned
// even though current rule-sets only read page one, so future rule-sets
// can target any page without re-converting.
type Converter interface {
	Convert(ctx context.Context, jobID string, data []byte) ([]Page, error)
}

type Config struct {
	Pdftoppm string // binary name or absolute path; if empty -> "pdftoppm"
	DPI      int    // rasterization DPI, default 300
	MaxPages int    // 0 = no limit
	CacheDir string // artifact cache, default ./tmp
}

// Rasterizer converts PDFs via pdftoppm and passes raster images through.
type Rasterizer struct {
	cfg    Config
	runner runner.Runner
	logger *slog.Logger
}

func NewRasterizer(cfg Config, r runner.Runner, logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = "./tmp"
	}
	if r == nil {
		r = runner.Exec{}
	}
	return &Rasterizer{cfg: cfg, runner: r, logger: logger}
}

// Convert sniffs the format and renders pages. Unrecognized bytes are a
// fatal KindUnsupportedFormat; rendering failures are KindConversion.
func (c *Rasterizer) Convert(ctx context.Context, jobID string, data []byte) ([]Page, error) {
	switch constants.DetectFormat(data) {
	case constants.PDF:
		return c.convertPDF(ctx, jobID, data)
	case constants.IMAGE:
		return c.passThroughImage(jobID, data)
	default:
		return nil, common.Errorf(common.KindUnsupportedFormat, "unrecognized document bytes")
	}
}

func (c *Rasterizer) convertPDF(ctx context.Context, jobID string, data []byte) ([]Page, error) {
	dir := filepath.Join(c.cfg.CacheDir, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, common.NewError(common.KindConversion, "create page cache", err)
	}

	in := filepath.Join(dir, "source.pdf")
	if err := os.WriteFile(in, data, 0o644); err != nil {
		return nil, common.NewError(common.KindConversion, "write pdf", err)
	}

	prefix := filepath.Join(dir, "page")
	// pdftoppm -r 300 -png <in.pdf> <dir/page>
	_, errb, err := c.runner.Run(ctx, c.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", c.cfg.DPI), "-png", in, prefix)
	if err != nil {
		return nil, common.NewError(common.KindConversion, fmt.Sprintf("pdftoppm: %s", errb), err)
	}

	// collect generated pngs (page-1.png, page-2.png, ...); sort on the
	// numeric suffix, since lexicographic order misplaces page-10 before
	// page-2 when the renderer does not zero-pad
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Slice(matches, func(i, j int) bool { return pageNum(matches[i]) < pageNum(matches[j]) })
	if c.cfg.MaxPages > 0 && len(matches) > c.cfg.MaxPages {
		matches = matches[:c.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return nil, common.Errorf(common.KindConversion, "pdftoppm produced no images")
	}

	pages := make([]Page, len(matches))
	for i, m := range matches {
		pages[i] = Page{Index: i + 1, Path: m}
	}
	c.logger.Debug("pdf rasterized", "job_id", jobID, "pages", len(pages), "dpi", c.cfg.DPI)
	return pages, nil
}

func pageNum(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".png")
	n, _ := strconv.Atoi(base[strings.LastIndexByte(base, '-')+1:])
	return n
}

func (c *Rasterizer) passThroughImage(jobID string, data []byte) ([]Page, error) {
	dir := filepath.Join(c.cfg.CacheDir, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, common.NewError(common.KindConversion, "create page cache", err)
	}
	out := filepath.Join(dir, "page-1"+constants.ImageExt(data))
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return nil, common.NewError(common.KindConversion, "write image", err)
	}
	return []Page{{Index: 1, Path: out}}, nil
}
