package metrics

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Collector is the metrics sink the rest of the application reports to.
type Collector interface {
	IncrementCounter(name string, labels map[string]string)
	RecordHistogram(name string, value float64, labels map[string]string)
	SetGauge(name string, value float64, labels map[string]string)
	RecordDuration(name string, duration time.Duration, labels map[string]string)
}

// SimpleCollector is a basic in-memory metrics collector.
type SimpleCollector struct {
	mu         sync.Mutex
	counters   map[string]float64
	histograms map[string][]float64
	gauges     map[string]float64
	logger     *zap.Logger
}

// NewSimpleCollector creates a new in-memory collector.
func NewSimpleCollector(logger *zap.Logger) *SimpleCollector {
	return &SimpleCollector{
		counters:   make(map[string]float64),
		histograms: make(map[string][]float64),
		gauges:     make(map[string]float64),
		logger:     logger,
	}
}

// IncrementCounter increments a counter metric.
func (sc *SimpleCollector) IncrementCounter(name string, labels map[string]string) {
	key := buildMetricKey(name, labels)

	sc.mu.Lock()
	sc.counters[key]++
	value := sc.counters[key]
	sc.mu.Unlock()

	sc.logger.Debug("Counter incremented",
		zap.String("metric", name),
		zap.Any("labels", labels),
		zap.Float64("value", value))
}

// RecordHistogram records a histogram value.
func (sc *SimpleCollector) RecordHistogram(name string, value float64, labels map[string]string) {
	key := buildMetricKey(name, labels)

	sc.mu.Lock()
	sc.histograms[key] = append(sc.histograms[key], value)
	sc.mu.Unlock()

	sc.logger.Debug("Histogram recorded",
		zap.String("metric", name),
		zap.Any("labels", labels),
		zap.Float64("value", value))
}

// SetGauge sets a gauge metric value.
func (sc *SimpleCollector) SetGauge(name string, value float64, labels map[string]string) {
	key := buildMetricKey(name, labels)

	sc.mu.Lock()
	sc.gauges[key] = value
	sc.mu.Unlock()

	sc.logger.Debug("Gauge set",
		zap.String("metric", name),
		zap.Any("labels", labels),
		zap.Float64("value", value))
}

// RecordDuration records a duration metric.
func (sc *SimpleCollector) RecordDuration(name string, duration time.Duration, labels map[string]string) {
	sc.RecordHistogram(name+"_duration_seconds", duration.Seconds(), labels)
}

// CounterValue returns the current value of a counter.
func (sc *SimpleCollector) CounterValue(name string, labels map[string]string) float64 {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.counters[buildMetricKey(name, labels)]
}

// GaugeValue returns the current value of a gauge.
func (sc *SimpleCollector) GaugeValue(name string, labels map[string]string) float64 {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.gauges[buildMetricKey(name, labels)]
}

// buildMetricKey builds a unique key for a metric with labels. Label order
// must not matter, so keys are sorted.
func buildMetricKey(name string, labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	key := name
	for _, k := range keys {
		key += "_" + k + "_" + labels[k]
	}
	return key
}

// ApplicationMetrics holds all application-specific metrics.
type ApplicationMetrics struct {
	collector Collector
	logger    *zap.Logger
}

// NewApplicationMetrics creates a new application metrics instance.
func NewApplicationMetrics(collector Collector, logger *zap.Logger) *ApplicationMetrics {
	return &ApplicationMetrics{
		collector: collector,
		logger:    logger,
	}
}

// HTTP metrics
func (am *ApplicationMetrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	labels := map[string]string{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(statusCode),
	}

	am.collector.IncrementCounter("http_requests_total", labels)
	am.collector.RecordDuration("http_request_duration", duration, labels)
}

// Scraping metrics
func (am *ApplicationMetrics) RecordPageScraped(site string, success bool, duration time.Duration) {
	labels := map[string]string{
		"site":    site,
		"success": strconv.FormatBool(success),
	}

	am.collector.IncrementCounter("pages_scraped_total", labels)
	am.collector.RecordDuration("page_scrape", duration, labels)
}

func (am *ApplicationMetrics) RecordVehicleIngested(site, outcome string) {
	labels := map[string]string{
		"site":    site,
		"outcome": outcome,
	}

	am.collector.IncrementCounter("vehicles_ingested_total", labels)
}

// Analysis metrics
func (am *ApplicationMetrics) RecordAnalysisStep(step string, success bool, duration time.Duration) {
	labels := map[string]string{
		"step":    step,
		"success": strconv.FormatBool(success),
	}

	am.collector.IncrementCounter("analysis_steps_total", labels)
	am.collector.RecordDuration("analysis_step", duration, labels)
}

// AI metrics
func (am *ApplicationMetrics) RecordAICall(operation string, statusCode int, duration time.Duration) {
	labels := map[string]string{
		"operation": operation,
		"status":    strconv.Itoa(statusCode),
	}

	am.collector.IncrementCounter("ai_calls_total", labels)
	am.collector.RecordDuration("ai_call", duration, labels)
}

// Database metrics
func (am *ApplicationMetrics) RecordDatabaseQuery(operation string, success bool, duration time.Duration) {
	labels := map[string]string{
		"operation": operation,
		"success":   strconv.FormatBool(success),
	}

	am.collector.IncrementCounter("database_queries_total", labels)
	am.collector.RecordDuration("database_query", duration, labels)
}

func (am *ApplicationMetrics) SetDatabaseConnections(active, idle int) {
	am.collector.SetGauge("database_connections_active", float64(active), nil)
	am.collector.SetGauge("database_connections_idle", float64(idle), nil)
}

// Error metrics
func (am *ApplicationMetrics) RecordError(errorType, component string) {
	labels := map[string]string{
		"type":      errorType,
		"component": component,
	}

	am.collector.IncrementCounter("errors_total", labels)
}
