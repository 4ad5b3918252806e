package flow

import "context"

// Stream provides cursor-style iteration over records, one stage's output
// feeding the next stage's input. Implementations are single-pass unless
// documented otherwise.
type Stream interface {
	// Next advances to the next record and returns true if one is available.
	// Returns false on exhaustion or error.
	Next(ctx context.Context) bool

	// Record returns the current record. Only valid after Next returned true.
	Record() Record

	// Err returns the error that terminated iteration, if any.
	Err() error
}

// sliceStream iterates over an in-memory slice of records. Replay buffers and
// restartable bindings hand out fresh sliceStreams over the same backing data.
type sliceStream struct {
	records []Record
	index   int
	current Record
	err     error
}

func newSliceStream(records []Record) *sliceStream {
	return &sliceStream{records: records}
}

func (s *sliceStream) Next(ctx context.Context) bool {
	if s.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		s.err = err
		return false
	}
	if s.index >= len(s.records) {
		return false
	}
	s.current = s.records[s.index]
	s.index++
	return true
}

func (s *sliceStream) Record() Record { return s.current }
func (s *sliceStream) Err() error     { return s.err }

// prependStream re-attaches records pulled during a lookahead pass to the
// front of the remaining stream. The join pre-pass relies on this.
type prependStream struct {
	head    []Record
	rest    Stream
	current Record
}

func newPrependStream(head []Record, rest Stream) *prependStream {
	return &prependStream{head: head, rest: rest}
}

func (s *prependStream) Next(ctx context.Context) bool {
	if len(s.head) > 0 {
		s.current = s.head[0]
		s.head = s.head[1:]
		return true
	}
	if !s.rest.Next(ctx) {
		s.current = nil
		return false
	}
	s.current = s.rest.Record()
	return true
}

func (s *prependStream) Record() Record { return s.current }
func (s *prependStream) Err() error     { return s.rest.Err() }

// collect drains a stream into a slice.
func collect(ctx context.Context, s Stream) ([]Record, error) {
	records := []Record{}
	for s.Next(ctx) {
		records = append(records, s.Record())
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
