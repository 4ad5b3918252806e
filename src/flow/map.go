package flow

import "context"

type mapStage struct {
	graph  string
	mapper Mapper
}

func (s *mapStage) Kind() string { return "map" }

func (s *mapStage) Run(ctx context.Context, in Stream) Stream {
	return &mapStream{stage: s, in: in}
}

type mapStream struct {
	stage   *mapStage
	in      Stream
	pending []Record
	current Record
	err     error
}

func (s *mapStream) Next(ctx context.Context) bool {
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
		if !s.in.Next(ctx) {
			s.err = s.in.Err()
			return false
		}
		out, err := s.stage.mapper(s.in.Record())
		if err != nil {
			s.err = NewOperatorError(s.stage.graph, s.stage.Kind(), err)
			return false
		}
		s.pending = out
	}
}

func (s *mapStream) Record() Record { return s.current }
func (s *mapStream) Err() error     { return s.err }
