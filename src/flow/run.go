package flow

import (
	"context"
	"io"
	"time"
)

// Run executes the DAG rooted at g exactly once. Upstream graphs run before
// their consumers; a graph with more than one consumer is materialised into a
// replay buffer and each consumer drains an independent cursor. With a sink
// configured the root output is encoded as JSON lines and an empty slice is
// returned; otherwise the materialised records are returned.
//
// Per-graph counters are reset at the start of every call, so the same graph
// can be run repeatedly with different bindings.
func (g *Graph) Run(ctx context.Context, bindings Bindings, opts ...RunOption) ([]Record, error) {
	cfg := newRunConfig(opts)
	start := time.Now()

	obs := observability()
	ctx, span := obs.startRunSpan(ctx, g.name, cfg.observability)

	records, summary, err := g.run(ctx, bindings, cfg)
	summary.ExecutionTime = time.Since(start)
	if cfg.summary != nil {
		*cfg.summary = *summary
	}
	obs.finishRunSpan(span, summary, err, cfg.observability)
	if err != nil {
		cfg.logger.Error("run failed", "graph", g.name, "error", err)
		return nil, err
	}
	cfg.logger.Info("run finished",
		"graph", g.name,
		"graphs", summary.GraphsExecuted,
		"records", summary.RecordsEmitted,
		"elapsed", summary.ExecutionTime)
	return records, nil
}

func (g *Graph) run(ctx context.Context, bindings Bindings, cfg *runConfig) ([]Record, *RunSummary, error) {
	summary := &RunSummary{GraphName: g.name}

	order, err := g.topologicalOrder()
	if err != nil {
		return nil, summary, err
	}
	for _, node := range order {
		node.remaining = node.fanOut
		node.output = nil
		node.buffer = nil
	}

	exec := &executor{bindings: bindings, cfg: cfg}
	for _, node := range order {
		if err := exec.runGraph(ctx, node); err != nil {
			return nil, summary, err
		}
		summary.GraphsExecuted++
		if node.buffer != nil {
			summary.ReplayBuffers++
		}
	}

	root := g.rootOutput()
	if cfg.sink != nil {
		emitted, err := encodeTo(ctx, cfg.sink, root)
		summary.RecordsEmitted = emitted
		if err != nil {
			return nil, summary, err
		}
		return []Record{}, summary, nil
	}

	records, err := collect(ctx, root)
	if err != nil {
		return nil, summary, err
	}
	summary.RecordsEmitted = int64(len(records))
	return records, summary, nil
}

// rootOutput returns the stream holding the final result. When the root graph
// itself feeds other consumers its output lives in the replay buffer.
func (g *Graph) rootOutput() Stream {
	if g.buffer != nil {
		return newSliceStream(g.buffer.records)
	}
	if g.output == nil {
		return newSliceStream(nil)
	}
	return g.output
}

// executor carries the per-run wiring state: bindings for external sources
// and the configuration shared by every graph in the run.
type executor struct {
	bindings Bindings
	cfg      *runConfig
}

func (e *executor) runGraph(ctx context.Context, node *Graph) error {
	e.cfg.logger.Info("graph running", "graph", node.name)

	var in Stream
	if node.source != nil {
		in = e.connect(node.source)
	} else {
		bound, err := e.bind(node.sourceKey)
		if err != nil {
			return err
		}
		in = bound
	}

	out := in
	for _, stage := range node.stages {
		if join, ok := stage.(*joinStage); ok {
			join.right = e.connect(join.on)
		}
		out = stage.Run(ctx, out)
	}
	node.output = out

	// A graph consumed more than once materialises eagerly so every consumer
	// observes the identical sequence.
	if node.fanOut > 1 {
		records, err := collect(ctx, out)
		if err != nil {
			return err
		}
		node.buffer = newReplayBuffer(records, node.fanOut)
		node.output = nil
	}

	e.cfg.logger.Info("graph wired", "graph", node.name, "buffered", node.buffer != nil)
	return nil
}

// connect resolves an upstream graph's output for one consumer. Buffered
// upstreams hand out replay cursors and are released after the last one.
func (e *executor) connect(upstream *Graph) Stream {
	if upstream.buffer != nil {
		cursor := upstream.buffer.cursor()
		upstream.remaining--
		if upstream.buffer.exhausted() {
			upstream.buffer.release()
		}
		return cursor
	}
	upstream.remaining--
	out := upstream.output
	if out == nil {
		return newSliceStream(nil)
	}
	upstream.output = nil
	return out
}

// bind resolves an external source key against the caller-supplied bindings.
func (e *executor) bind(key string) (Stream, error) {
	value, ok := e.bindings[key]
	if !ok {
		return nil, NewConfigurationError("no binding supplied for source %q", key)
	}
	switch v := value.(type) {
	case Stream:
		return v, nil
	case []Record:
		return newSliceStream(v), nil
	case io.Reader:
		return newLineStream(v, e.cfg.lenient), nil
	default:
		return nil, NewConfigurationError("source %q: binding of type %T is not a supported input", key, value)
	}
}
