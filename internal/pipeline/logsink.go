package pipeline

import (
	"github.com/vialaky/ProductImagePipeline/internal/observability"
)

// LogSink forwards pipeline events to the structured logger.
type LogSink struct {
	logger *observability.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *observability.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) StageStarted(sku string, stage Stage) {
	s.logger.WithSKU(sku).Debug().Str("stage", string(stage)).Msg("stage started")
}

func (s *LogSink) StageCompleted(sku string, stage Stage, state State, err error) {
	evt := s.logger.WithSKU(sku).Info()
	if err != nil {
		evt = s.logger.WithSKU(sku).Warn().Err(err)
	}
	evt.Str("stage", string(stage)).Str("state", string(state)).Msg("stage completed")
}

func (s *LogSink) ImageProcessed(sku string, index int, ok bool) {
	if !ok {
		s.logger.WithSKU(sku).Debug().Int("index", index).Msg("image rejected")
	}
}
