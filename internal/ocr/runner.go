package ocr

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Runner abstracts external command execution so tests can stub tesseract.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	logger *slog.Logger
}

func newExecRunner(logger *slog.Logger) execRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return execRunner{logger: logger}
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		r.logger.Error("command failed",
			"cmd", name,
			"args", strings.Join(args, " "),
			"duration_ms", elapsed.Milliseconds(),
			"error", err,
			"stderr", clipStderr(errb.String()),
		)
		return out.Bytes(), errb.Bytes(), err
	}

	r.logger.Debug("command ok",
		"cmd", name,
		"duration_ms", elapsed.Milliseconds(),
		"stdout_bytes", out.Len(),
	)
	return out.Bytes(), errb.Bytes(), nil
}

// clipStderr keeps log records bounded when tesseract dumps page noise.
func clipStderr(s string) string {
	const max = 8 << 10
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
