package flow

import "context"

type foldStage struct {
	graph   string
	folder  Folder
	initial Record
}

func (s *foldStage) Kind() string { return "fold" }

func (s *foldStage) Run(ctx context.Context, in Stream) Stream {
	return &foldStream{stage: s, in: in}
}

// foldStream consumes the entire input, threading the state through the
// folder, and emits the final state as its single record. The initial state
// is copied per invocation so the same graph can be run more than once.
type foldStream struct {
	stage   *foldStage
	in      Stream
	current Record
	err     error
	done    bool
}

func (s *foldStream) Next(ctx context.Context) bool {
	if s.err != nil || s.done {
		return false
	}
	if err := ctx.Err(); err != nil {
		s.err = err
		return false
	}

	state := s.stage.initial.clone()
	for s.in.Next(ctx) {
		next, err := s.stage.folder(state, s.in.Record())
		if err != nil {
			s.err = NewOperatorError(s.stage.graph, s.stage.Kind(), err)
			return false
		}
		state = next
	}
	if err := s.in.Err(); err != nil {
		s.err = err
		return false
	}

	s.current = state
	s.done = true
	return true
}

func (s *foldStream) Record() Record { return s.current }
func (s *foldStream) Err() error     { return s.err }
