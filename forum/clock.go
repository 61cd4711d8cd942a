package forum

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Clock returns the current time.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

// IDGenerator returns a fresh opaque identifier.
type IDGenerator func() string

func (g IDGenerator) next() string {
	if g == nil {
		return uuid.NewString()
	}
	return g()
}

func resolveLogger(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
