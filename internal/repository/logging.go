package repository

import (
	"time"

	"go.uber.org/zap"
)

// queryLogger returns a Timed callback that reports read latency.
func queryLogger(log *zap.Logger) func(table string, rows int, took time.Duration) {
	if log == nil {
		log = zap.NewNop()
	}
	return func(table string, rows int, took time.Duration) {
		log.Debug("query",
			zap.String("table", table),
			zap.Int("rows", rows),
			zap.Duration("took", took),
		)
	}
}
