package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestCounterIncrement(t *testing.T) {
	c := NewSimpleCollector(zap.NewNop())
	labels := map[string]string{"site": "olx", "outcome": "inserted"}

	c.IncrementCounter("vehicles_ingested_total", labels)
	c.IncrementCounter("vehicles_ingested_total", labels)

	assert.Equal(t, 2.0, c.CounterValue("vehicles_ingested_total", labels))
	assert.Equal(t, 0.0, c.CounterValue("vehicles_ingested_total", map[string]string{"site": "otomoto"}))
}

func TestLabelOrderDoesNotMatter(t *testing.T) {
	c := NewSimpleCollector(zap.NewNop())

	c.IncrementCounter("requests", map[string]string{"a": "1", "b": "2"})
	c.IncrementCounter("requests", map[string]string{"b": "2", "a": "1"})

	assert.Equal(t, 2.0, c.CounterValue("requests", map[string]string{"a": "1", "b": "2"}))
}

func TestGauge(t *testing.T) {
	c := NewSimpleCollector(zap.NewNop())

	c.SetGauge("database_connections_active", 7, nil)
	c.SetGauge("database_connections_active", 3, nil)

	assert.Equal(t, 3.0, c.GaugeValue("database_connections_active", nil))
}

func TestApplicationMetrics(t *testing.T) {
	c := NewSimpleCollector(zap.NewNop())
	am := NewApplicationMetrics(c, zap.NewNop())

	am.RecordPageScraped("olx", true, 120*time.Millisecond)
	am.RecordVehicleIngested("olx", "inserted")
	am.RecordAnalysisStep("translate", false, time.Second)

	assert.Equal(t, 1.0, c.CounterValue("pages_scraped_total", map[string]string{"site": "olx", "success": "true"}))
	assert.Equal(t, 1.0, c.CounterValue("vehicles_ingested_total", map[string]string{"site": "olx", "outcome": "inserted"}))
	assert.Equal(t, 1.0, c.CounterValue("analysis_steps_total", map[string]string{"step": "translate", "success": "false"}))
}
