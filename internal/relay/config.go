package relay

import (
	"time"
)

// Config holds the build pipeline configuration.
type Config struct {
	TempDir          string        `env:"TEMP_DIR"`           // default: os.TempDir()
	BuildTimeout     time.Duration `env:"BUILD_TIMEOUT"`      // default: 5m
	MaxExtractedSize int64         `env:"MAX_EXTRACTED_SIZE"` // default: 512MB
}

func (c *Config) buildTimeout() time.Duration {
	t := c.BuildTimeout
	if t == 0 {
		t = 5 * time.Minute
	}
	return t
}

func (c *Config) maxExtractedSize() int64 {
	s := c.MaxExtractedSize
	if s == 0 {
		s = 512 * 1024 * 1024 // 512MB
	}
	return s
}
