package segfile

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    flushCounter  prometheus.Counter
//	    openHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordFlush(size int, duration time.Duration, err error) {
//	    p.flushCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordFlush is called after each content segment write.
	// size is the payload size in bytes, err is nil if successful.
	RecordFlush(size int, duration time.Duration, err error)

	// RecordClose is called after each Close of a CREATE handle.
	// length is the committed file length.
	RecordClose(length uint64, duration time.Duration, err error)

	// RecordOpen is called after each READ-mode open.
	RecordOpen(duration time.Duration, err error)

	// RecordFetch is called after each segment range fetch.
	// segments is the number of rows returned.
	RecordFetch(segments int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordFlush(int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordClose(uint64, time.Duration, error) {}
func (NoopMetricsCollector) RecordOpen(time.Duration, error)          {}
func (NoopMetricsCollector) RecordFetch(int, time.Duration, error)    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	FlushCount      atomic.Int64
	FlushErrors     atomic.Int64
	FlushBytes      atomic.Int64
	FlushTotalNanos atomic.Int64
	CloseCount      atomic.Int64
	CloseErrors     atomic.Int64
	ClosedBytes     atomic.Int64
	OpenCount       atomic.Int64
	OpenErrors      atomic.Int64
	FetchCount      atomic.Int64
	FetchErrors     atomic.Int64
	FetchSegments   atomic.Int64
	FetchTotalNanos atomic.Int64
}

// RecordFlush implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFlush(size int, duration time.Duration, err error) {
	b.FlushCount.Add(1)
	b.FlushTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.FlushErrors.Add(1)
		return
	}
	b.FlushBytes.Add(int64(size))
}

// RecordClose implements MetricsCollector.
func (b *BasicMetricsCollector) RecordClose(length uint64, duration time.Duration, err error) {
	b.CloseCount.Add(1)
	if err != nil {
		b.CloseErrors.Add(1)
		return
	}
	b.ClosedBytes.Add(int64(length))
}

// RecordOpen implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOpen(duration time.Duration, err error) {
	b.OpenCount.Add(1)
	if err != nil {
		b.OpenErrors.Add(1)
	}
}

// RecordFetch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFetch(segments int, duration time.Duration, err error) {
	b.FetchCount.Add(1)
	b.FetchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.FetchErrors.Add(1)
		return
	}
	b.FetchSegments.Add(int64(segments))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		FlushCount:    b.FlushCount.Load(),
		FlushErrors:   b.FlushErrors.Load(),
		FlushBytes:    b.FlushBytes.Load(),
		FlushAvgNanos: avg(b.FlushTotalNanos.Load(), b.FlushCount.Load()),
		CloseCount:    b.CloseCount.Load(),
		CloseErrors:   b.CloseErrors.Load(),
		ClosedBytes:   b.ClosedBytes.Load(),
		OpenCount:     b.OpenCount.Load(),
		OpenErrors:    b.OpenErrors.Load(),
		FetchCount:    b.FetchCount.Load(),
		FetchErrors:   b.FetchErrors.Load(),
		FetchSegments: b.FetchSegments.Load(),
		FetchAvgNanos: avg(b.FetchTotalNanos.Load(), b.FetchCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	FlushCount    int64
	FlushErrors   int64
	FlushBytes    int64
	FlushAvgNanos int64
	CloseCount    int64
	CloseErrors   int64
	ClosedBytes   int64
	OpenCount     int64
	OpenErrors    int64
	FetchCount    int64
	FetchErrors   int64
	FetchSegments int64
	FetchAvgNanos int64
}
