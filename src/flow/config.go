package flow

import "io"

// Bindings maps the source keys used at graph construction to concrete
// inputs supplied at run time. Supported values:
//   - io.Reader: a JSON-lines text stream, decoded lazily
//   - Stream: a single-pass record iterator
//   - []Record: a restartable record collection
type Bindings map[string]interface{}

// runConfig collects the per-run settings assembled from RunOptions.
type runConfig struct {
	sink          io.Writer
	verbose       bool
	logger        Logger
	observability *ObservabilityConfig
	lenient       bool
	summary       *RunSummary
}

func newRunConfig(opts []RunOption) *runConfig {
	cfg := &runConfig{
		logger:        &NoOpLogger{},
		observability: DefaultObservabilityConfig(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.verbose && isNoOp(cfg.logger) {
		cfg.logger = NewConsoleLogger(LogLevelInfo)
	}
	return cfg
}

func isNoOp(l Logger) bool {
	_, ok := l.(*NoOpLogger)
	return ok
}

// RunOption customises a single Run invocation.
type RunOption func(*runConfig)

// WithSink streams the root graph's output into w as JSON lines instead of
// materialising it; Run then returns an empty slice.
func WithSink(w io.Writer) RunOption {
	return func(cfg *runConfig) { cfg.sink = w }
}

// WithVerbose enables informational logging for the run. It has no effect on
// the computed results.
func WithVerbose() RunOption {
	return func(cfg *runConfig) { cfg.verbose = true }
}

// WithLogger installs a custom logger for the run.
func WithLogger(logger Logger) RunOption {
	return func(cfg *runConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithObservability overrides the OpenTelemetry configuration for the run.
func WithObservability(config *ObservabilityConfig) RunOption {
	return func(cfg *runConfig) {
		if config != nil {
			cfg.observability = config
		}
	}
}

// WithLenientDecoding attempts to repair malformed JSON lines in bound text
// streams before failing with a DecodeError.
func WithLenientDecoding() RunOption {
	return func(cfg *runConfig) { cfg.lenient = true }
}

// WithSummary fills dst with execution metadata once the run completes.
func WithSummary(dst *RunSummary) RunOption {
	return func(cfg *runConfig) { cfg.summary = dst }
}
