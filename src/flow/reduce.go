package flow

import "context"

type reduceStage struct {
	graph   string
	key     []string
	reducer Reducer
}

func (s *reduceStage) Kind() string { return "reduce" }

func (s *reduceStage) Run(ctx context.Context, in Stream) Stream {
	return &reduceStream{stage: s, groups: newGroupStream(s.graph, s.Kind(), s.key, in)}
}

type reduceStream struct {
	stage   *reduceStage
	groups  *groupStream
	pending []Record
	current Record
	err     error
}

func (s *reduceStream) Next(ctx context.Context) bool {
	if s.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		s.err = err
		return false
	}
	for {
		if len(s.pending) > 0 {
			s.current = s.pending[0]
			s.pending = s.pending[1:]
			return true
		}
		group, ok := s.groups.next(ctx)
		if !ok {
			s.err = s.groups.err()
			return false
		}
		out, err := s.stage.reducer(group)
		if err != nil {
			s.err = NewOperatorError(s.stage.graph, s.stage.Kind(), err)
			return false
		}
		s.pending = out
	}
}

func (s *reduceStream) Record() Record { return s.current }
func (s *reduceStream) Err() error     { return s.err }

// groupStream partitions a record stream into maximal runs of consecutive
// records whose key tuples are equal. The boundary is enforced by comparing
// the key of each pulled record against the current run; one group is held in
// memory at a time. The sort-merge join reuses this for both of its sides.
type groupStream struct {
	graph     string
	stage     string
	key       []string
	in        Stream
	lookahead Record
	lookTuple []interface{}
	started   bool
	failure   error
	exhausted bool
}

func newGroupStream(graph, stage string, key []string, in Stream) *groupStream {
	return &groupStream{graph: graph, stage: stage, key: key, in: in}
}

// next returns the next group along with its key tuple available via
// lastTuple. It returns false on exhaustion or error.
func (s *groupStream) next(ctx context.Context) ([]Record, bool) {
	if s.failure != nil || s.exhausted {
		return nil, false
	}

	if !s.started {
		s.started = true
		if !s.advance(ctx) {
			return nil, false
		}
	}
	if s.lookahead == nil {
		s.exhausted = true
		return nil, false
	}

	group := []Record{s.lookahead}
	groupTuple := s.lookTuple
	for {
		if !s.advance(ctx) {
			if s.failure != nil {
				return nil, false
			}
			return group, true
		}
		if !equalTuples(s.lookTuple, groupTuple) {
			return group, true
		}
		group = append(group, s.lookahead)
	}
}

// lastTuple is the key tuple of the most recently returned group's first
// record. Valid only after next returned true.
func (s *groupStream) lastTuple(group []Record) []interface{} {
	tuple, _, _ := group[0].keyTuple(s.key)
	return tuple
}

func (s *groupStream) advance(ctx context.Context) bool {
	if !s.in.Next(ctx) {
		s.lookahead = nil
		s.lookTuple = nil
		s.failure = s.in.Err()
		return false
	}
	record := s.in.Record()
	tuple, missing, ok := record.keyTuple(s.key)
	if !ok {
		s.failure = NewSchemaError(s.graph, s.stage, missing, "missing key column")
		s.lookahead = nil
		return false
	}
	s.lookahead = record
	s.lookTuple = tuple
	return true
}

func (s *groupStream) err() error { return s.failure }
