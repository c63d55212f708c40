package pipeline

// EventSink receives progress and status events from running SKU
// pipelines. Sinks are injected collaborators: the core defines no
// logging or display format itself. Implementations must be safe for
// concurrent use, since SKU pipelines run in parallel.
type EventSink interface {
	StageStarted(sku string, stage Stage)
	StageCompleted(sku string, stage Stage, state State, err error)
	ImageProcessed(sku string, index int, ok bool)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) StageStarted(string, Stage)                 {}
func (NopSink) StageCompleted(string, Stage, State, error) {}
func (NopSink) ImageProcessed(string, int, bool)           {}

// MultiSink fans events out to several sinks.
type MultiSink []EventSink

func (m MultiSink) StageStarted(sku string, stage Stage) {
	for _, s := range m {
		s.StageStarted(sku, stage)
	}
}

func (m MultiSink) StageCompleted(sku string, stage Stage, state State, err error) {
	for _, s := range m {
		s.StageCompleted(sku, stage, state, err)
	}
}

func (m MultiSink) ImageProcessed(sku string, index int, ok bool) {
	for _, s := range m {
		s.ImageProcessed(sku, index, ok)
	}
}
