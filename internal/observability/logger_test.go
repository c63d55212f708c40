package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(LogConfig{
		Level:       "debug",
		Format:      "json",
		Output:      &buf,
		ServiceName: "pipeline-test",
	})

	log.Info().Str("sku", "SKU-1").Int("count", 3).Msg("hello")

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "pipeline-test", m["service"])
	assert.Equal(t, "SKU-1", m["sku"])
	assert.Equal(t, float64(3), m["count"])
	assert.Equal(t, "hello", m["message"])
	assert.Contains(t, m, "time")
}

func TestLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(LogConfig{Level: "debug", Format: "json", Output: &buf, ServiceName: "t"})

	log.WithSKU("SKU-9").WithStage("extract").WithRun("run-1").
		Warn().Err(errors.New("boom")).Msg("stage warning")

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "SKU-9", m["sku"])
	assert.Equal(t, "extract", m["stage"])
	assert.Equal(t, "run-1", m["run_id"])
	assert.Equal(t, "boom", m["error"])
	assert.Equal(t, "warn", m["level"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.TraceLevel, parseLevel("trace"))
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zerolog.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("anything else"))
}

func TestNop_Discards(t *testing.T) {
	// Must not panic and must not write anywhere.
	Nop().Error().Str("k", "v").Msg("dropped")
}
