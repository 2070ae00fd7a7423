package logger

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New opens the append-only log file and builds the logger every component
// receives. The caller owns the returned file handle and closes it at
// process end.
func New(path string, levelStr string) (zerolog.Logger, *os.File, error) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	log := zerolog.New(f).
		Level(level).
		With().
		Timestamp().
		Logger()

	return log, f, nil
}
