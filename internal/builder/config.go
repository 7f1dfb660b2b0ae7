package builder

import (
	"fmt"
	"log/slog"
)

const (
	KindExec        = "exec"
	KindDocker      = "docker"
	KindPlaceholder = "placeholder"
)

// Config holds the build tool configuration.
type Config struct {
	Kind    string   `env:"KIND"`                     // default: "exec"
	Command []string `env:"COMMAND" envSeparator:" "` // default: ["etex", "{makefile}"]
	Image   string   `env:"IMAGE"`                    // default: "etex", used by "docker"
}

func (c *Config) kind() string {
	k := c.Kind
	if k == "" {
		k = KindExec
	}
	return k
}

func (c *Config) command() []string {
	cmd := c.Command
	if len(cmd) == 0 {
		cmd = []string{"etex", placeholderMakefile}
	}
	return cmd
}

func (c *Config) image() string {
	i := c.Image
	if i == "" {
		i = "etex"
	}
	return i
}

// New returns the Builder selected by cfg.
func New(cfg *Config, log *slog.Logger) (Builder, error) {
	log = log.With("component", "builder", "kind", cfg.kind())

	switch cfg.kind() {
	case KindExec:
		return &Exec{Command: cfg.command(), Log: log}, nil
	case KindDocker:
		return NewDocker(cfg.image(), cfg.command(), log)
	case KindPlaceholder:
		return &Placeholder{}, nil
	default:
		return nil, fmt.Errorf("builder.New: unknown kind %q", cfg.Kind)
	}
}
