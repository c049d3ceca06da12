package log

import (
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration. Service and NodeID are stamped on
// every entry when set.
type Config struct {
	Level   string `mapstructure:"level"`
	Pretty  bool   `mapstructure:"pretty"`
	Service string `mapstructure:"service"`
	NodeID  string `mapstructure:"-"`

	Output io.Writer `mapstructure:"-"`
}

var (
	global   = zerolog.New(os.Stdout).With().Timestamp().Logger()
	initOnce sync.Once
)

func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	zc := zerolog.New(out).Level(ParseLevel(cfg.Level)).With().Timestamp()
	if cfg.Service != "" {
		zc = zc.Str(FieldService, cfg.Service)
	}
	if cfg.NodeID != "" {
		zc = zc.Str(FieldNodeID, cfg.NodeID)
	}
	return zc.Logger()
}

// Init installs the process logger on first call and redirects the standard
// library logger into it. Later calls are ignored.
func Init(cfg Config) zerolog.Logger {
	initOnce.Do(func() {
		global = New(cfg)
		stdlog.SetFlags(0)
		stdlog.SetOutput(global.With().Str("source", "stdlog").Logger())
	})
	return global
}

func L() zerolog.Logger {
	return global
}

// ParseLevel accepts zerolog level names plus "warning" and "off".
// Anything unrecognised is info.
func ParseLevel(s string) zerolog.Level {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "warning":
		return zerolog.WarnLevel
	case "off":
		return zerolog.Disabled
	case "":
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
