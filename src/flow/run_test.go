package flow

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestRunBindingKinds(t *testing.T) {
	build := func() *Graph {
		g := NewGraph("src")
		g.Sort("n")
		return g
	}
	expected := []Record{{"n": int64(1)}, {"n": int64(2)}}

	t.Run("reader", func(t *testing.T) {
		result := runGraph(t, build(), Bindings{"src": strings.NewReader("{\"n\": 2}\n{\"n\": 1}\n")})
		if !reflect.DeepEqual(result, expected) {
			t.Errorf("unexpected result %v", result)
		}
	})

	t.Run("stream", func(t *testing.T) {
		stream := newSliceStream([]Record{{"n": int64(2)}, {"n": int64(1)}})
		result := runGraph(t, build(), Bindings{"src": Stream(stream)})
		if !reflect.DeepEqual(result, expected) {
			t.Errorf("unexpected result %v", result)
		}
	})

	t.Run("slice", func(t *testing.T) {
		result := runGraph(t, build(), Bindings{"src": []Record{{"n": int64(2)}, {"n": int64(1)}}})
		if !reflect.DeepEqual(result, expected) {
			t.Errorf("unexpected result %v", result)
		}
	})
}

func TestRunMissingBinding(t *testing.T) {
	g := NewGraph("src")
	_, err := g.Run(context.Background(), Bindings{})
	var configErr *ConfigurationError
	if !errors.As(err, &configErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestRunRejectsUnsupportedBinding(t *testing.T) {
	g := NewGraph("src")
	_, err := g.Run(context.Background(), Bindings{"src": 42})
	var configErr *ConfigurationError
	if !errors.As(err, &configErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestRunDetectsCycle(t *testing.T) {
	a := NewGraph("src")
	b := NewGraphFrom(a)
	a.Join(b, JoinCross)

	_, err := b.Run(context.Background(), Bindings{"src": []Record{{"n": 1}}})
	var configErr *ConfigurationError
	if !errors.As(err, &configErr) {
		t.Fatalf("expected ConfigurationError for cyclic wiring, got %v", err)
	}
}

func TestReplayDeterminism(t *testing.T) {
	// One upstream consumed twice: every record must match itself through the
	// self-join, proving both consumers observed the identical sequence.
	input := NewGraph("src")
	left := NewGraphFrom(input)
	right := NewGraphFrom(input)
	left.Join(right, JoinInner, "id")

	records := []Record{
		{"id": 1, "v": "a"},
		{"id": 2, "v": "b"},
		{"id": 3, "v": "c"},
	}
	result := runGraph(t, left, Bindings{"src": records})

	expected := []Record{
		{"id_left": 1, "v_left": "a", "id_right": 1, "v_right": "a"},
		{"id_left": 2, "v_left": "b", "id_right": 2, "v_right": "b"},
		{"id_left": 3, "v_left": "c", "id_right": 3, "v_right": "c"},
	}
	if !reflect.DeepEqual(result, expected) {
		t.Errorf("unexpected self-join output %v", result)
	}
}

func TestRunWithSinkMatchesMaterialisedRun(t *testing.T) {
	build := func() *Graph {
		g := NewGraph("src")
		g.Sort("n")
		return g
	}
	input := []Record{{"n": 3}, {"n": 1}, {"n": 2}}

	materialised, err := build().Run(context.Background(), Bindings{"src": input})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var sink bytes.Buffer
	streamed, err := build().Run(context.Background(), Bindings{"src": input}, WithSink(&sink))
	if err != nil {
		t.Fatalf("Run with sink failed: %v", err)
	}
	if len(streamed) != 0 {
		t.Errorf("expected empty slice with a sink, got %v", streamed)
	}

	var serialised strings.Builder
	for _, record := range materialised {
		line, err := EncodeLine(record)
		if err != nil {
			t.Fatalf("EncodeLine failed: %v", err)
		}
		serialised.WriteString(line + "\n")
	}
	if sink.String() != serialised.String() {
		t.Errorf("sink output diverges from serialised result:\n%s\nvs\n%s", sink.String(), serialised.String())
	}
}

func TestRunTwiceWithDifferentBindings(t *testing.T) {
	g := NewGraph("src")
	g.Sort("n")

	first := runGraph(t, g, Bindings{"src": []Record{{"n": 2}, {"n": 1}}})
	if !reflect.DeepEqual(first, []Record{{"n": 1}, {"n": 2}}) {
		t.Errorf("unexpected first run %v", first)
	}

	second := runGraph(t, g, Bindings{"src": []Record{{"n": 9}, {"n": 4}, {"n": 7}}})
	if !reflect.DeepEqual(second, []Record{{"n": 4}, {"n": 7}, {"n": 9}}) {
		t.Errorf("unexpected second run %v", second)
	}
}

func TestRunTwiceWithSharedUpstream(t *testing.T) {
	// Replay counters must be restored across calls for fan-out graphs.
	input := NewGraph("src")
	left := NewGraphFrom(input)
	right := NewGraphFrom(input)
	left.Join(right, JoinInner, "id")

	for i := 0; i < 2; i++ {
		result := runGraph(t, left, Bindings{"src": []Record{{"id": 1}}})
		if len(result) != 1 {
			t.Fatalf("run %d: expected 1 record, got %v", i+1, result)
		}
	}
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := NewGraph("src")
	g.Sort("n")
	_, err := g.Run(ctx, Bindings{"src": []Record{{"n": 1}}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunVerboseHasNoSemanticEffect(t *testing.T) {
	var logs bytes.Buffer
	g := NewGraph("src")
	g.Sort("n")

	quiet := runGraph(t, g, Bindings{"src": []Record{{"n": 2}, {"n": 1}}})
	loud, err := g.Run(context.Background(), Bindings{"src": []Record{{"n": 2}, {"n": 1}}},
		WithVerbose(),
		WithLogger(NewConsoleLoggerWithOutput(LogLevelInfo, &logs, &logs)))
	if err != nil {
		t.Fatalf("verbose run failed: %v", err)
	}

	if !reflect.DeepEqual(quiet, loud) {
		t.Errorf("verbose changed results: %v vs %v", quiet, loud)
	}
	if logs.Len() == 0 {
		t.Error("expected informational log output")
	}
}

func TestRunSummary(t *testing.T) {
	input := NewGraph("src")
	left := NewGraphFrom(input, WithGraphName("result"))
	right := NewGraphFrom(input)
	left.Join(right, JoinInner, "id")

	var summary RunSummary
	_, err := left.Run(context.Background(),
		Bindings{"src": []Record{{"id": 1}, {"id": 2}}},
		WithSummary(&summary))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.GraphName != "result" {
		t.Errorf("expected graph name in summary, got %q", summary.GraphName)
	}
	if summary.GraphsExecuted != 3 {
		t.Errorf("expected 3 graphs executed, got %d", summary.GraphsExecuted)
	}
	if summary.RecordsEmitted != 2 {
		t.Errorf("expected 2 records emitted, got %d", summary.RecordsEmitted)
	}
	if summary.ReplayBuffers != 1 {
		t.Errorf("expected 1 replay buffer, got %d", summary.ReplayBuffers)
	}
}
