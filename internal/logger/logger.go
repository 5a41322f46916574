package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/support-chat/internal/config"
)

// Setup configures the global zerolog logger. The returned closer flushes
// the rotated log file, if any.
func Setup(cfg config.LoggingConfig) (io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var console io.Writer = os.Stderr
	if cfg.Format == "console" {
		console = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	var closer io.Closer = nopCloser{}
	out := console
	if cfg.File != "" {
		rl, err := NewRotatingFile(cfg)
		if err != nil {
			return nil, err
		}
		closer = rl
		out = io.MultiWriter(console, rl)
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return closer, nil
}

// NewRotatingFile opens the time-rotated log file described by cfg.File,
// a strftime pattern such as ./logs/widget.%Y%m%d.log
func NewRotatingFile(cfg config.LoggingConfig) (*rotatelogs.RotateLogs, error) {
	opts := []rotatelogs.Option{}
	if cfg.MaxAge > 0 {
		opts = append(opts, rotatelogs.WithMaxAge(cfg.MaxAge))
	}
	if cfg.Rotation > 0 {
		opts = append(opts, rotatelogs.WithRotationTime(cfg.Rotation))
	}

	rl, err := rotatelogs.New(cfg.File, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return rl, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
