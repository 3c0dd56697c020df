package sink

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/mcronce/hass-event-collector/internal/collector/model"
)

// LogSink logs points instead of storing them, for dry runs without a database.
type LogSink struct {
	logger log.FieldLogger
}

func NewLogSink(logger log.FieldLogger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Write(_ context.Context, point *model.Point) error {
	s.logger.WithField("point", point.String()).Info("Point")
	return nil
}

func (s *LogSink) Close() error {
	return nil
}
