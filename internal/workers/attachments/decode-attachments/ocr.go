package decodeattachments

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	MethodTesseract = "tesseract"
	MethodNone      = "none"
)

// TextExtractor pulls best-effort text out of an image file.
type TextExtractor interface {
	Method() string
	Extract(ctx context.Context, path string) (string, error)
}

// TesseractExtractor shells out to the tesseract CLI.
type TesseractExtractor struct {
	binary  string
	timeout time.Duration
}

func NewTesseractExtractor(binary string, timeout time.Duration) *TesseractExtractor {
	return &TesseractExtractor{binary: binary, timeout: timeout}
}

func (e *TesseractExtractor) Method() string { return MethodTesseract }

func (e *TesseractExtractor) Extract(ctx context.Context, path string) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.binary, path, "stdout")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// NoopExtractor is used when OCR is disabled or unavailable.
type NoopExtractor struct{}

func (NoopExtractor) Method() string { return MethodNone }

func (NoopExtractor) Extract(context.Context, string) (string, error) { return "", nil }

// NewTextExtractor picks tesseract when enabled and installed.
func NewTextExtractor(cfg *Config) TextExtractor {
	if !cfg.OCREnabled {
		return NoopExtractor{}
	}
	if _, err := exec.LookPath(cfg.TesseractBinary); err != nil {
		return NoopExtractor{}
	}
	return NewTesseractExtractor(cfg.TesseractBinary, cfg.OCRTimeout)
}
