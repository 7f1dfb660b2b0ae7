package server

import (
	"time"
)

// Config holds the server configuration.
type Config struct {
	Host              string        `env:"HOST"` // default: "127.0.0.1"
	Port              int           `env:"PORT"` // default: 8000
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT"`
	MaxArchiveSize    int64         `env:"MAX_ARCHIVE_SIZE"` // default: 64MB
}

func (c *Config) host() string {
	h := c.Host
	if h == "" {
		h = "127.0.0.1"
	}
	return h
}

func (c *Config) port() int {
	p := c.Port
	if p == 0 {
		p = 8000
	}
	return p
}

func (c *Config) maxArchiveSize() int64 {
	s := c.MaxArchiveSize
	if s == 0 {
		s = 64 * 1024 * 1024 // 64MB
	}
	return s
}
