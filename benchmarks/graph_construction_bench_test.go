package benchmarks

import (
	"testing"

	"github.com/seuros/gopher-flow/src/algorithms"
	"github.com/seuros/gopher-flow/src/pipeline"
)

func BenchmarkWordCountConstruction(b *testing.B) {
	for i := 0; i < b.N; i++ {
		algorithms.WordCountGraph("docs", "text", "count")
	}
}

func BenchmarkInvertedIndexConstruction(b *testing.B) {
	for i := 0; i < b.N; i++ {
		algorithms.InvertedIndexGraph("docs", "doc_id", "text")
	}
}

func BenchmarkPipelineParse(b *testing.B) {
	parser, err := pipeline.New()
	if err != nil {
		b.Fatal(err)
	}

	definition := `
graph words from docs {
  map emit_words
  sort text
  reduce collect_counts by text
  sort count
}
`

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := parser.Parse(definition); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPipelineBuild(b *testing.B) {
	parser, err := pipeline.New()
	if err != nil {
		b.Fatal(err)
	}
	definition, err := parser.Parse(`
graph words from docs {
  map emit_words
  sort text
  reduce collect_counts by text
  sort count
}
`)
	if err != nil {
		b.Fatal(err)
	}

	registry := pipeline.NewRegistry()
	algorithms.RegisterBuiltins(registry)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := pipeline.Build(definition, registry); err != nil {
			b.Fatal(err)
		}
	}
}
