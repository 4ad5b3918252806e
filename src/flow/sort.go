package flow

import (
	"context"
	"sort"
)

type sortStage struct {
	graph   string
	columns []string
	reverse bool
}

func (s *sortStage) Kind() string { return "sort" }

func (s *sortStage) Run(ctx context.Context, in Stream) Stream {
	return &sortStream{stage: s, in: in}
}

// sortStream buffers its whole input on the first pull, sorts it by the
// configured column tuple, then replays it in order. This is one of the few
// mandatory materialisation points in the engine.
type sortStream struct {
	stage   *sortStage
	in      Stream
	sorted  []Record
	index   int
	current Record
	err     error
	loaded  bool
}

type sortEntry struct {
	record Record
	tuple  []interface{}
}

func (s *sortStream) Next(ctx context.Context) bool {
	if s.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		s.err = err
		return false
	}
	if !s.loaded {
		s.load(ctx)
		if s.err != nil {
			return false
		}
	}
	if s.index >= len(s.sorted) {
		return false
	}
	s.current = s.sorted[s.index]
	s.index++
	return true
}

func (s *sortStream) load(ctx context.Context) {
	s.loaded = true

	entries := []sortEntry{}
	for s.in.Next(ctx) {
		record := s.in.Record()
		tuple, missing, ok := record.keyTuple(s.stage.columns)
		if !ok {
			s.err = NewSchemaError(s.stage.graph, s.stage.Kind(), missing, "missing sort column")
			return
		}
		entries = append(entries, sortEntry{record: record, tuple: tuple})
	}
	if err := s.in.Err(); err != nil {
		s.err = err
		return
	}

	// The comparator cannot return an error through sort.SliceStable, so an
	// incomparable pair is latched here and surfaced after the sort.
	var compareErr error
	sort.SliceStable(entries, func(i, j int) bool {
		if compareErr != nil {
			return false
		}
		cmp, err := compareTuples(entries[i].tuple, entries[j].tuple)
		if err != nil {
			compareErr = err
			return false
		}
		if s.stage.reverse {
			return cmp > 0
		}
		return cmp < 0
	})
	if compareErr != nil {
		s.err = NewSchemaError(s.stage.graph, s.stage.Kind(), "", "%v", compareErr)
		return
	}

	s.sorted = make([]Record, len(entries))
	for i, entry := range entries {
		s.sorted[i] = entry.record
	}
}

func (s *sortStream) Record() Record { return s.current }
func (s *sortStream) Err() error     { return s.err }
