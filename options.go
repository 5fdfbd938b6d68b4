package segfile

// DefaultReadAhead is the number of segments a Reader fetches per request.
const DefaultReadAhead = 16

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	readAhead        uint32
}

// Option configures Catalog behavior.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &segfile.BasicMetricsCollector{}
//	catalog := segfile.NewCatalog(store, segfile.WithMetricsCollector(metrics))
//	// ... use catalog ...
//	stats := metrics.GetStats()
//	fmt.Printf("Flushes: %d, Avg latency: %dns\n", stats.FlushCount, stats.FlushAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := segfile.NewJSONLogger(slog.LevelInfo)
//	catalog := segfile.NewCatalog(store, segfile.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithReadAhead sets how many content segments a Reader fetches per backend
// request. Values < 1 are ignored.
func WithReadAhead(segments int) Option {
	return func(o *options) {
		if segments >= 1 {
			o.readAhead = uint32(segments)
		}
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		readAhead:        DefaultReadAhead,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
