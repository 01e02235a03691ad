package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var reBoxNoise = regexp.MustCompile(`(?m)^\s*[_\-]{3,}\s*$`)

type Config struct {
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Lang        string // default "eng"
	PSM         int    // 6 = uniform block of text, matches scanned documents
	OEM         int    // 1 = LSTM; leave 0 to use default
	TessdataDir string

	EnableTSVConfidence bool
	Timeout             time.Duration

	// Runner overrides the external-command runner; tests stub it.
	Runner Runner
}

// Result is the outcome of one OCR pass. A failed extraction is not an
// error: Text is empty and the document is dropped downstream.
type Result struct {
	Text       string
	Confidence float32
	Language   string
	Duration   time.Duration
	Warnings   []string
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if cfg.PSM <= 0 {
		cfg.PSM = 6
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	runner := cfg.Runner
	if runner == nil {
		runner = newExecRunner(logger)
	}
	return &Extractor{cfg: cfg, runner: runner, logger: logger}
}

// Extract runs OCR on a single image and degrades to empty text on any
// failure: unreadable file, tesseract error, context timeout. No error is
// returned; callers decide what to do with an empty result.
func (e *Extractor) Extract(ctx context.Context, path string) Result {
	start := time.Now()

	if st, err := os.Stat(path); err != nil || st.IsDir() {
		e.logger.Error("image unreadable", "path", path, "error", err)
		return Result{Language: e.cfg.Lang, Duration: time.Since(start)}
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	txt, warns, err := e.tesseractOCR(ctx, path)
	if err != nil {
		e.logger.Error("ocr failed", "path", path, "error", err)
		return Result{Language: e.cfg.Lang, Duration: time.Since(start), Warnings: warns}
	}

	var conf float32
	if e.cfg.EnableTSVConfidence {
		c, w, cerr := e.tesseractTSVConfidence(ctx, path)
		if cerr != nil {
			warns = append(warns, cerr.Error())
		} else {
			conf = c
			warns = append(warns, w...)
		}
	}

	return Result{
		Text:       txt,
		Confidence: conf,
		Language:   e.cfg.Lang,
		Duration:   time.Since(start),
		Warnings:   warns,
	}
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	args := e.baseArgs(path)

	// tesseract <file> stdout -l <lang> --psm <n>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}

	// minor cleanup of obvious line noise
	txt := reBoxNoise.ReplaceAllString(string(out), "")
	return strings.TrimSpace(txt), nil, nil
}

// tesseractTSVConfidence runs tesseract in TSV mode and returns mean word conf in 0..1.
func (e *Extractor) tesseractTSVConfidence(ctx context.Context, path string) (float32, []string, error) {
	args := append(e.baseArgs(path), "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return 0, []string{string(errb)}, fmt.Errorf("tesseract TSV: %w", err)
	}
	lines := strings.Split(string(out), "\n")
	// conf is column 11 of 12; the last column is the recognized text
	var sum, n float64
	for i, ln := range lines {
		if i == 0 || len(ln) == 0 {
			continue
		} // skip header
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := cols[10]
		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, err := strconv.ParseFloat(confStr, 64); err == nil {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, nil, nil
	}
	mean := sum / n // 0..100
	return float32(mean / 100.0), nil, nil
}

func (e *Extractor) baseArgs(path string) []string {
	args := []string{path, "stdout", "-l", e.cfg.Lang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	return args
}
