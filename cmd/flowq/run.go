package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/seuros/gopher-flow/src/algorithms"
	"github.com/seuros/gopher-flow/src/flow"
	"github.com/seuros/gopher-flow/src/pipeline"
)

// bindFlags accumulates repeated --bind key=path flags.
type bindFlags map[string]string

func (b bindFlags) String() string {
	pairs := make([]string, 0, len(b))
	for key, path := range b {
		pairs = append(pairs, key+"="+path)
	}
	return strings.Join(pairs, ",")
}

func (b bindFlags) Set(value string) error {
	key, path, found := strings.Cut(value, "=")
	if !found || key == "" || path == "" {
		return fmt.Errorf("expected key=path, got %q", value)
	}
	b[key] = path
	return nil
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	binds := bindFlags{}
	pipelineFlag := fs.String("pipeline", "", "Built-in pipeline: word_count|tf_idf|pmi|average_speed")
	fs.Var(binds, "bind", "Bind a source key to a JSON-lines file (key=path, repeatable)")
	outFlag := fs.String("out", "", "Output file (default: stdout)")
	lenientFlag := fs.Bool("lenient", false, "Attempt to repair malformed JSON lines")
	verboseFlag := fs.Bool("verbose", os.Getenv("FLOWQ_LOG_LEVEL") != "", "Informational logging")
	traceFlag := fs.Bool("trace", os.Getenv("FLOWQ_TRACE") != "", "Emit OpenTelemetry traces to stderr and metrics to stdout")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return &exitError{code: 0}
		}
		return usageErrorf(2, "%v", err)
	}

	root, err := resolveGraph(*pipelineFlag, fs.Args())
	if err != nil {
		return err
	}

	bindings := flow.Bindings{}
	closers := []io.Closer{}
	defer func() {
		for _, closer := range closers {
			_ = closer.Close()
		}
	}()
	for key, path := range binds {
		file, err := os.Open(path)
		if err != nil {
			return usageErrorf(2, "binding %q: %v", key, err)
		}
		closers = append(closers, file)
		bindings[key] = file
	}

	sink := io.Writer(os.Stdout)
	if *outFlag != "" {
		out, err := os.Create(*outFlag)
		if err != nil {
			return usageErrorf(2, "%v", err)
		}
		closers = append(closers, out)
		sink = out
	}

	ctx := context.Background()
	if *traceFlag {
		shutdown, err := setupTelemetry(ctx)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	opts := []flow.RunOption{flow.WithSink(sink)}
	if *lenientFlag {
		opts = append(opts, flow.WithLenientDecoding())
	}
	if *verboseFlag {
		level := flow.ParseLogLevel(os.Getenv("FLOWQ_LOG_LEVEL"))
		opts = append(opts, flow.WithLogger(flow.NewConsoleLoggerWithOutput(level, os.Stderr, os.Stderr)))
	}

	var summary flow.RunSummary
	opts = append(opts, flow.WithSummary(&summary))

	if _, err := root.Run(ctx, bindings, opts...); err != nil {
		return err
	}

	if *verboseFlag {
		fmt.Fprintf(os.Stderr, "graphs=%d records=%d time=%s\n",
			summary.GraphsExecuted, summary.RecordsEmitted, summary.ExecutionTime)
	}
	return nil
}

// resolveGraph builds the root graph either from a built-in pipeline name or
// from a pipeline definition file.
func resolveGraph(name string, remainingArgs []string) (*flow.Graph, error) {
	if name != "" {
		if len(remainingArgs) != 0 {
			return nil, usageErrorf(2, "Provide either --pipeline or a file path, not both")
		}
		switch name {
		case "word_count":
			return algorithms.WordCountGraph("docs", "text", "count"), nil
		case "tf_idf":
			return algorithms.InvertedIndexGraph("docs", "doc_id", "text"), nil
		case "pmi":
			return algorithms.PMIGraph("docs", "doc_id", "text"), nil
		case "average_speed":
			return algorithms.AverageSpeedGraph("travel_times", "lengths"), nil
		default:
			return nil, usageErrorf(2, "Unknown pipeline %q (expected word_count|tf_idf|pmi|average_speed)", name)
		}
	}

	if len(remainingArgs) != 1 {
		return nil, usageErrorf(2, "Usage: flowq run [flags] [file]")
	}
	definition, err := parseDefinitionFile(remainingArgs[0])
	if err != nil {
		return nil, err
	}

	registry := pipeline.NewRegistry()
	algorithms.RegisterBuiltins(registry)
	root, err := pipeline.Build(definition, registry)
	if err != nil {
		return nil, usageErrorf(2, "%v", err)
	}
	return root, nil
}

func parseDefinitionFile(filename string) (*pipeline.Definition, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, usageErrorf(2, "%v", err)
	}
	parser, err := pipeline.New()
	if err != nil {
		return nil, err
	}
	definition, err := parser.Parse(string(content))
	if err != nil {
		return nil, usageErrorf(2, "%s: %v", filename, err)
	}
	return definition, nil
}

func lintCommand(args []string) error {
	if len(args) != 1 {
		return usageErrorf(2, "Usage: flowq lint <file>")
	}
	if _, err := parseDefinitionFile(args[0]); err != nil {
		return err
	}
	fmt.Printf("%s: OK\n", args[0])
	return nil
}

func inspectCommand(args []string) error {
	if len(args) != 1 {
		return usageErrorf(2, "Usage: flowq inspect <file>")
	}
	definition, err := parseDefinitionFile(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Pipeline structure for %s:\n", args[0])
	for _, decl := range definition.Graphs {
		fmt.Printf("  graph %s from %s (%d stages)\n", decl.Name, decl.Source, len(decl.Ops))
		for _, op := range decl.Ops {
			fmt.Printf("    %s\n", describeOp(op))
		}
	}
	if definition.Return != nil {
		fmt.Printf("  return %s\n", *definition.Return)
	}
	return nil
}

func describeOp(op *pipeline.Op) string {
	switch {
	case op.Map != nil:
		return "map " + op.Map.Fn
	case op.Sort != nil:
		desc := "sort " + strings.Join(op.Sort.Columns, ", ")
		if op.Sort.Descending {
			desc += " desc"
		}
		return desc
	case op.Fold != nil:
		return "fold " + op.Fold.Fn
	case op.Reduce != nil:
		return "reduce " + op.Reduce.Fn + " by " + strings.Join(op.Reduce.Key, ", ")
	case op.Join != nil:
		desc := "join " + op.Join.Graph + " " + strings.ToLower(op.Join.Strategy)
		if len(op.Join.Key) > 0 {
			desc += " on " + strings.Join(op.Join.Key, ", ")
		}
		return desc
	default:
		return "unknown"
	}
}
