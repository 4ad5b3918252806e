package pipeline

import (
	"fmt"
	"strings"

	"github.com/seuros/gopher-flow/src/flow"
)

// Registry resolves the function names appearing in pipeline definitions to
// registered Go implementations. Folders carry their initial state.
type Registry struct {
	mappers  map[string]flow.Mapper
	folders  map[string]registeredFolder
	reducers map[string]flow.Reducer
}

type registeredFolder struct {
	folder  flow.Folder
	initial flow.Record
}

func NewRegistry() *Registry {
	return &Registry{
		mappers:  map[string]flow.Mapper{},
		folders:  map[string]registeredFolder{},
		reducers: map[string]flow.Reducer{},
	}
}

func (r *Registry) RegisterMapper(name string, mapper flow.Mapper) {
	r.mappers[strings.ToLower(name)] = mapper
}

func (r *Registry) RegisterFolder(name string, folder flow.Folder, initial flow.Record) {
	r.folders[strings.ToLower(name)] = registeredFolder{folder: folder, initial: initial}
}

func (r *Registry) RegisterReducer(name string, reducer flow.Reducer) {
	r.reducers[strings.ToLower(name)] = reducer
}

// Build assembles the declared graphs into wired flow.Graph values and
// returns the root graph. A FROM clause naming an earlier graph creates an
// internal edge; any other name becomes an external source key.
func Build(definition *Definition, registry *Registry) (*flow.Graph, error) {
	graphs := map[string]*flow.Graph{}

	var root *flow.Graph
	for _, decl := range definition.Graphs {
		name := strings.ToLower(decl.Name)

		var g *flow.Graph
		if upstream, ok := graphs[strings.ToLower(decl.Source)]; ok {
			g = flow.NewGraphFrom(upstream, flow.WithGraphName(decl.Name))
		} else {
			g = flow.NewGraph(decl.Source, flow.WithGraphName(decl.Name))
		}

		for _, op := range decl.Ops {
			if err := applyOp(g, op, graphs, registry); err != nil {
				return nil, fmt.Errorf("graph %q: %w", decl.Name, err)
			}
		}

		graphs[name] = g
		root = g
	}

	if definition.Return != nil {
		root = graphs[strings.ToLower(*definition.Return)]
	}
	return root, nil
}

func applyOp(g *flow.Graph, op *Op, graphs map[string]*flow.Graph, registry *Registry) error {
	switch {
	case op.Map != nil:
		mapper, ok := registry.mappers[strings.ToLower(op.Map.Fn)]
		if !ok {
			return fmt.Errorf("unknown mapper %q", op.Map.Fn)
		}
		g.Map(mapper)

	case op.Sort != nil:
		if op.Sort.Descending {
			g.SortDescending(op.Sort.Columns...)
		} else {
			g.Sort(op.Sort.Columns...)
		}

	case op.Fold != nil:
		registered, ok := registry.folders[strings.ToLower(op.Fold.Fn)]
		if !ok {
			return fmt.Errorf("unknown folder %q", op.Fold.Fn)
		}
		g.Fold(registered.folder, registered.initial)

	case op.Reduce != nil:
		reducer, ok := registry.reducers[strings.ToLower(op.Reduce.Fn)]
		if !ok {
			return fmt.Errorf("unknown reducer %q", op.Reduce.Fn)
		}
		g.Reduce(reducer, op.Reduce.Key...)

	case op.Join != nil:
		other, ok := graphs[strings.ToLower(op.Join.Graph)]
		if !ok {
			return fmt.Errorf("join references unknown graph %q", op.Join.Graph)
		}
		g.Join(other, flow.JoinStrategy(strings.ToLower(op.Join.Strategy)), op.Join.Key...)
	}
	return nil
}
