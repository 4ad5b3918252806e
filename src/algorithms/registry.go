package algorithms

import (
	"math"

	"github.com/seuros/gopher-flow/src/flow"
	"github.com/seuros/gopher-flow/src/pipeline"
)

// RegisterBuiltins registers the mappers, folders and reducers used by the
// bundled pipelines under their textual names, with the default column
// conventions (doc_id, text, count), so they can be referenced from pipeline
// definition files.
func RegisterBuiltins(registry *pipeline.Registry) {
	registry.RegisterMapper("emit_words", emitWords("text", func(record flow.Record, word string) flow.Record {
		return flow.Record{"count": 1, "text": word}
	}))
	registry.RegisterMapper("emit_doc_words", emitWords("text", func(record flow.Record, word string) flow.Record {
		return flow.Record{"doc_id": record["doc_id"], "text": word}
	}))
	registry.RegisterMapper("week_hour", weekHourMapper)
	registry.RegisterMapper("edge_length", edgeLengthMapper)
	registry.RegisterMapper("speed", speedMapper)

	registry.RegisterFolder("count_records", countRecordsFolder("docs_count"), flow.Record{"docs_count": 0})

	registry.RegisterReducer("collect_counts", func(group []flow.Record) ([]flow.Record, error) {
		return []flow.Record{{"count": len(group), "text": group[0]["text"]}}, nil
	})
	registry.RegisterReducer("unique", uniqueReducer)
	registry.RegisterReducer("term_frequency", termFrequencyReducer("doc_id", "text", "tf", 1))
	registry.RegisterReducer("document_frequency", func(group []flow.Record) ([]flow.Record, error) {
		docsCount, err := asFloat(group[0]["docs_count"])
		if err != nil {
			return nil, err
		}
		return []flow.Record{{
			"text": group[0]["text"],
			"idf":  math.Log(docsCount / float64(len(group))),
		}}, nil
	})
	registry.RegisterReducer("top_tf_idf", topByProduct("text", "doc_id", "tf", "idf", "tf_idf", 3))
	registry.RegisterReducer("average_speed", averageSpeedReducer)
}
