package recognize

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"docverify/internal/common"
	"docverify/internal/entity"
	"docverify/internal/runner"
)

type Config struct {
	Tesseract     string // binary name or absolute path; if empty -> "tesseract"
	TesseractLang string // default "eng"
	TessdataDir   string
	PSM           int // e.g., 6 is good for uniform block of text
	OEM           int // 1 = LSTM; leave 0 to use default
	Timeout       time.Duration
}

// Tesseract invokes the tesseract binary in TSV mode and assembles text
// plus per-word regions in a single pass. Recognition services are
// assumed occasionally unavailable rather than permanently broken for
// valid input, so every failure (timeouts included) is classified
// transient and retried on a bounded budget.
type Tesseract struct {
	cfg    Config
	runner runner.Runner
	logger *slog.Logger
}

func NewTesseract(cfg Config, r runner.Runner, logger *slog.Logger) *Tesseract {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if r == nil {
		r = runner.Exec{}
	}
	return &Tesseract{cfg: cfg, runner: r, logger: logger}
}

func (t *Tesseract) Recognize(ctx context.Context, imagePath string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	args := []string{imagePath, "stdout", "-l", t.cfg.TesseractLang}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(t.cfg.OEM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := t.runner.Run(ctx, t.cfg.Tesseract, args...)
	if err != nil {
		return Result{}, common.NewError(common.KindTransient, fmt.Sprintf("tesseract: %s", errb), err)
	}

	res := parseTSV(string(out))
	t.logger.Debug("page recognized", "image", imagePath, "text_bytes", len(res.Text), "regions", len(res.Regions))
	return res, nil
}

// parseTSV assembles the page text from tesseract TSV output. Words on
// the same line are joined with spaces, lines with newlines; each word
// becomes a region spanning its byte range in the assembled text, with
// its confidence scaled to 0..1.
func parseTSV(tsv string) Result {
	var (
		b       strings.Builder
		res     Result
		curLine = -1
	)

	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || ln == "" {
			continue // header
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		word := strings.TrimSpace(cols[11])
		if word == "" {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue // conf -1 marks layout rows
		}

		lineKey := lineOf(cols)
		if b.Len() > 0 {
			if lineKey != curLine {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
		curLine = lineKey

		start := b.Len()
		b.WriteString(word)
		res.Regions = append(res.Regions, entity.Region{
			Start:      start,
			End:        b.Len(),
			Confidence: float32(conf / 100.0),
		})
	}

	res.Text = b.String()
	return res
}

// lineOf folds block/paragraph/line numbers into one comparable key.
func lineOf(cols []string) int {
	block, _ := strconv.Atoi(cols[2])
	par, _ := strconv.Atoi(cols[3])
	line, _ := strconv.Atoi(cols[4])
	return block*1_000_000 + par*1_000 + line
}
