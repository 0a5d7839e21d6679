// internal/workers/attachments/decode-attachments/config.go
package decodeattachments

import (
	"time"

	"app-deployer/internal/common/config"
)

type Config struct {
	MaxBytes        int64
	SampleRows      int
	SampleLines     int
	SampleChars     int
	OCREnabled      bool
	TesseractBinary string
	OCRTimeout      time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	a := cfg.Attachments
	return &Config{
		MaxBytes:        a.MaxBytes,
		SampleRows:      a.SampleRows,
		SampleLines:     a.SampleLines,
		SampleChars:     a.SampleChars,
		OCREnabled:      a.OCREnabled,
		TesseractBinary: a.TesseractBinary,
		OCRTimeout:      config.GetDuration(a.OCRTimeout),
	}
}

// DefaultConfig mirrors the loader defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxBytes:        10 << 20,
		SampleRows:      5,
		SampleLines:     10,
		SampleChars:     500,
		TesseractBinary: "tesseract",
		OCRTimeout:      20 * time.Second,
	}
}
