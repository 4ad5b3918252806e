package flow

import "context"

// JoinStrategy selects the join variant.
type JoinStrategy string

const (
	JoinInner JoinStrategy = "inner"
	JoinLeft  JoinStrategy = "left"
	JoinRight JoinStrategy = "right"
	JoinFull  JoinStrategy = "full"
	JoinCross JoinStrategy = "cross"
)

const (
	leftSuffix  = "_left"
	rightSuffix = "_right"
)

// joinStage merges the graph's own pipeline output (the left side) with the
// output of another graph (the right side). The right stream is wired in by
// the scheduler before Run is called.
type joinStage struct {
	graph    string
	on       *Graph
	strategy JoinStrategy
	leftCol  string
	rightCol string
	keyed    bool
	keyErr   error

	// right is injected per run by the executor.
	right Stream
}

func newJoinStage(graph string, on *Graph, strategy JoinStrategy, key []string) *joinStage {
	s := &joinStage{graph: graph, on: on, strategy: strategy}
	switch len(key) {
	case 0:
	case 1:
		s.leftCol, s.rightCol = key[0], key[0]
		s.keyed = true
	case 2:
		s.leftCol, s.rightCol = key[0], key[1]
		s.keyed = true
	default:
		s.keyErr = NewConfigurationError(
			"graph %q: join key must be one column or a (left, right) pair, got %d columns", graph, len(key))
	}
	return s
}

func (s *joinStage) Kind() string { return "join" }

func (s *joinStage) Run(ctx context.Context, in Stream) Stream {
	return &joinStream{stage: s, left: in, right: s.right}
}

// joinStream drives the join. The pre-pass pulls one record from each side
// for schema discovery and the documented empty-side early-out; non-cross
// strategies then sort and group both sides and walk them in lock-step.
type joinStream struct {
	stage *joinStage
	left  Stream
	right Stream

	current     Record
	err         error
	initialized bool
	done        bool

	collisions map[string]bool
	padLeft    Record
	padRight   Record

	leftGroups  *groupStream
	rightGroups *groupStream
	curL, curR  []Record
	tupL, tupR  []interface{}

	// Current cartesian emission. A nil side stands for the null-padded tuple.
	emitting   bool
	emitL      []Record
	emitR      []Record
	li, ri     int
	renamedL   Record
	advL, advR bool
}

func (s *joinStream) Next(ctx context.Context) bool {
	if s.err != nil || s.done {
		return false
	}
	if err := ctx.Err(); err != nil {
		s.err = err
		return false
	}
	if !s.initialized {
		s.init(ctx)
		if s.err != nil || s.done {
			return false
		}
	}
	for {
		if s.emitting {
			if record := s.emitNext(); record != nil {
				s.current = record
				return true
			}
			if s.advL {
				s.nextLeftGroup(ctx)
			}
			if s.advR {
				s.nextRightGroup(ctx)
			}
			if s.err != nil {
				return false
			}
		}
		if !s.step(ctx) {
			return false
		}
	}
}

func (s *joinStream) Record() Record { return s.current }
func (s *joinStream) Err() error     { return s.err }

func (s *joinStream) init(ctx context.Context) {
	s.initialized = true

	switch s.stage.strategy {
	case JoinInner, JoinLeft, JoinRight, JoinFull:
		if s.stage.keyErr != nil {
			s.err = s.stage.keyErr
			return
		}
		if !s.stage.keyed {
			s.err = NewConfigurationError(
				"graph %q: join strategy %q requires a key", s.stage.graph, s.stage.strategy)
			return
		}
	case JoinCross:
	default:
		s.err = NewConfigurationError(
			"graph %q: unknown join strategy %q (expected inner, left, right, full or cross)",
			s.stage.graph, s.stage.strategy)
		return
	}
	if s.right == nil {
		s.err = NewConfigurationError("graph %q: join input is not wired", s.stage.graph)
		return
	}

	// Schema discovery: one record from each side. Either side being empty
	// short-circuits to an empty output regardless of strategy.
	if !s.left.Next(ctx) {
		if err := s.left.Err(); err != nil {
			s.err = err
			return
		}
		s.done = true
		return
	}
	firstLeft := s.left.Record()
	if !s.right.Next(ctx) {
		if err := s.right.Err(); err != nil {
			s.err = err
			return
		}
		s.done = true
		return
	}
	firstRight := s.right.Record()

	s.collisions = map[string]bool{}
	for column := range firstLeft {
		if _, ok := firstRight[column]; ok {
			s.collisions[column] = true
		}
	}
	s.padLeft = s.buildPad(firstLeft, leftSuffix)
	s.padRight = s.buildPad(firstRight, rightSuffix)

	left := newPrependStream([]Record{firstLeft}, s.left)
	right := newPrependStream([]Record{firstRight}, s.right)

	if s.stage.strategy == JoinCross {
		leftAll, err := collect(ctx, left)
		if err != nil {
			s.err = err
			return
		}
		rightAll, err := collect(ctx, right)
		if err != nil {
			s.err = err
			return
		}
		s.startEmit(leftAll, rightAll, false, false)
		return
	}

	// Sort-merge: each side ordered by its key column and partitioned into
	// per-key groups, reusing the Sort and Reduce building blocks.
	leftSort := &sortStage{graph: s.stage.graph, columns: []string{s.stage.leftCol}}
	rightSort := &sortStage{graph: s.stage.graph, columns: []string{s.stage.rightCol}}
	s.leftGroups = newGroupStream(s.stage.graph, s.stage.Kind(), []string{s.stage.leftCol}, leftSort.Run(ctx, left))
	s.rightGroups = newGroupStream(s.stage.graph, s.stage.Kind(), []string{s.stage.rightCol}, rightSort.Run(ctx, right))

	s.nextLeftGroup(ctx)
	if s.err != nil {
		return
	}
	s.nextRightGroup(ctx)
}

// step inspects the current pair of groups and either queues the next
// cartesian emission, advances past an unmatched group, or terminates.
func (s *joinStream) step(ctx context.Context) bool {
	strategy := s.stage.strategy
	switch {
	case s.curL == nil && s.curR == nil:
		s.done = true
		return false

	case s.curL != nil && s.curR == nil:
		if strategy == JoinInner || strategy == JoinRight {
			s.done = true
			return false
		}
		s.startEmit(s.curL, nil, true, false)
		return true

	case s.curL == nil:
		if strategy == JoinInner || strategy == JoinLeft {
			s.done = true
			return false
		}
		s.startEmit(nil, s.curR, false, true)
		return true

	default:
		cmp, err := compareTuples(s.tupL, s.tupR)
		if err != nil {
			s.err = NewSchemaError(s.stage.graph, s.stage.Kind(), s.stage.leftCol, "%v", err)
			return false
		}
		// Null keys never match: a null pair is walked as if the left key
		// were smaller, so each side pads independently under left/right/full.
		if cmp == 0 && kindOf(s.tupL[0]) == kindNull {
			cmp = -1
		}
		switch {
		case cmp == 0:
			s.startEmit(s.curL, s.curR, true, true)
		case cmp < 0:
			if strategy == JoinLeft || strategy == JoinFull {
				s.startEmit(s.curL, nil, true, false)
			} else {
				s.nextLeftGroup(ctx)
				if s.err != nil {
					return false
				}
			}
		default:
			if strategy == JoinRight || strategy == JoinFull {
				s.startEmit(nil, s.curR, false, true)
			} else {
				s.nextRightGroup(ctx)
				if s.err != nil {
					return false
				}
			}
		}
		return true
	}
}

func (s *joinStream) startEmit(left, right []Record, advL, advR bool) {
	s.emitting = true
	s.emitL = left
	s.emitR = right
	s.li, s.ri = 0, 0
	s.renamedL = nil
	s.advL, s.advR = advL, advR
}

// emitNext produces the next row of the active cartesian product in
// left-major order, or nil when the product is exhausted.
func (s *joinStream) emitNext() Record {
	switch {
	case s.emitL != nil && s.emitR != nil:
		if s.li >= len(s.emitL) {
			s.emitting = false
			return nil
		}
		if s.renamedL == nil {
			s.renamedL = s.rename(s.emitL[s.li], leftSuffix)
		}
		row := s.renamedL.clone()
		for column, value := range s.rename(s.emitR[s.ri], rightSuffix) {
			row[column] = value
		}
		s.ri++
		if s.ri >= len(s.emitR) {
			s.ri = 0
			s.li++
			s.renamedL = nil
		}
		return row

	case s.emitL != nil:
		if s.li >= len(s.emitL) {
			s.emitting = false
			return nil
		}
		row := s.rename(s.emitL[s.li], leftSuffix)
		for column, value := range s.padRight {
			row[column] = value
		}
		s.li++
		return row

	default:
		if s.ri >= len(s.emitR) {
			s.emitting = false
			return nil
		}
		row := s.rename(s.emitR[s.ri], rightSuffix)
		for column, value := range s.padLeft {
			row[column] = value
		}
		s.ri++
		return row
	}
}

// rename rewrites a record's colliding column names with the side suffix.
func (s *joinStream) rename(record Record, suffix string) Record {
	out := make(Record, len(record))
	for column, value := range record {
		if s.collisions[column] {
			out[column+suffix] = value
		} else {
			out[column] = value
		}
	}
	return out
}

// buildPad precomputes the null-filled tuple for one side's columns, applying
// the same renaming as real rows so outer padding keeps the output schema.
func (s *joinStream) buildPad(first Record, suffix string) Record {
	pad := make(Record, len(first))
	for column := range first {
		if s.collisions[column] {
			pad[column+suffix] = nil
		} else {
			pad[column] = nil
		}
	}
	return pad
}

func (s *joinStream) nextLeftGroup(ctx context.Context) {
	group, ok := s.leftGroups.next(ctx)
	if !ok {
		s.curL, s.tupL = nil, nil
		s.err = s.leftGroups.err()
		return
	}
	s.curL = group
	s.tupL = s.leftGroups.lastTuple(group)
}

func (s *joinStream) nextRightGroup(ctx context.Context) {
	group, ok := s.rightGroups.next(ctx)
	if !ok {
		s.curR, s.tupR = nil, nil
		s.err = s.rightGroups.err()
		return
	}
	s.curR = group
	s.tupR = s.rightGroups.lastTuple(group)
}
