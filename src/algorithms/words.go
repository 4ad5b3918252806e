package algorithms

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/seuros/gopher-flow/src/flow"
)

const wordDelimiters = " .?!:,-\";$%^&*()@#~<>/\n[]"

// ExtractWords splits a text into lowercase words on the delimiter set used
// by all text pipelines. Empty fragments are dropped.
func ExtractWords(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return strings.ContainsRune(wordDelimiters, r)
	})
	words := make([]string, 0, len(fields))
	for _, field := range fields {
		word := strings.TrimSpace(strings.ToLower(field))
		if word != "" {
			words = append(words, word)
		}
	}
	return words
}

// WordCountGraph builds a graph counting word occurrences across a collection
// of documents bound to the given source key. Input records carry the text in
// textColumn; output records pair each word with its total count, ordered by
// count ascending.
func WordCountGraph(source, textColumn, countColumn string) *flow.Graph {
	g := flow.NewGraph(source, flow.WithGraphName("word_count"))
	g.Map(emitWords(textColumn, func(record flow.Record, word string) flow.Record {
		return flow.Record{countColumn: 1, textColumn: word}
	}))
	g.Sort(textColumn)
	g.Reduce(func(group []flow.Record) ([]flow.Record, error) {
		return []flow.Record{{countColumn: len(group), textColumn: group[0][textColumn]}}, nil
	}, textColumn)
	g.Sort(countColumn)
	return g
}

// InvertedIndexGraph builds the tf-idf inverted index: for every word, the
// top three documents by tf*idf, where tf is the word's in-document frequency
// and idf is log(total documents / documents containing the word).
func InvertedIndexGraph(source, docColumn, textColumn string) *flow.Graph {
	input := flow.NewGraph(source, flow.WithGraphName("input"))

	splitWords := flow.NewGraphFrom(input, flow.WithGraphName("split_words"))
	splitWords.Map(emitWords(textColumn, func(record flow.Record, word string) flow.Record {
		return flow.Record{docColumn: record[docColumn], textColumn: word}
	}))

	countDocs := flow.NewGraphFrom(input, flow.WithGraphName("count_docs"))
	countDocs.Fold(countRecordsFolder("docs_count"), flow.Record{"docs_count": 0})

	countIDF := flow.NewGraphFrom(splitWords, flow.WithGraphName("count_idf"))
	countIDF.Sort(docColumn, textColumn)
	countIDF.Reduce(uniqueReducer, docColumn, textColumn)
	countIDF.Join(countDocs, flow.JoinCross)
	countIDF.Sort(textColumn)
	countIDF.Reduce(func(group []flow.Record) ([]flow.Record, error) {
		docsCount, err := asFloat(group[0]["docs_count"])
		if err != nil {
			return nil, fmt.Errorf("docs_count: %w", err)
		}
		return []flow.Record{{
			textColumn: group[0][textColumn],
			"idf":      math.Log(docsCount / float64(len(group))),
		}}, nil
	}, textColumn)

	calcIndex := flow.NewGraphFrom(splitWords, flow.WithGraphName("calc_index"))
	calcIndex.Sort(docColumn)
	calcIndex.Reduce(termFrequencyReducer(docColumn, textColumn, "tf", 1), docColumn)
	calcIndex.Join(countIDF, flow.JoinLeft, textColumn)
	calcIndex.Sort(textColumn + "_left")
	calcIndex.Reduce(topByProduct(textColumn, docColumn, "tf", "idf", "tf_idf", 3), textColumn+"_left")
	return calcIndex
}

// PMIGraph builds the pointwise-mutual-information index: for every document,
// the top ten words by log(in-document frequency / corpus frequency), keeping
// only words that occur at least twice in the document.
func PMIGraph(source, docColumn, textColumn string) *flow.Graph {
	splitWords := flow.NewGraph(source, flow.WithGraphName("split_words"))
	splitWords.Map(emitWords(textColumn, func(record flow.Record, word string) flow.Record {
		return flow.Record{docColumn: record[docColumn], textColumn: word}
	}))

	countWords := flow.NewGraphFrom(splitWords, flow.WithGraphName("count_words"))
	countWords.Fold(countRecordsFolder("docs_count"), flow.Record{"docs_count": 0})

	denominator := flow.NewGraphFrom(splitWords, flow.WithGraphName("denominator"))
	denominator.Sort(textColumn)
	denominator.Reduce(func(group []flow.Record) ([]flow.Record, error) {
		return []flow.Record{{textColumn: group[0][textColumn], "word_count": len(group)}}, nil
	}, textColumn)
	denominator.Join(countWords, flow.JoinCross)
	denominator.Map(func(record flow.Record) ([]flow.Record, error) {
		wordCount, err := asFloat(record["word_count"])
		if err != nil {
			return nil, fmt.Errorf("word_count: %w", err)
		}
		total, err := asFloat(record["docs_count"])
		if err != nil {
			return nil, fmt.Errorf("docs_count: %w", err)
		}
		return []flow.Record{{textColumn: record[textColumn], "dn": wordCount / total}}, nil
	})

	numerator := flow.NewGraphFrom(splitWords, flow.WithGraphName("numerator"))
	numerator.Sort(docColumn)
	numerator.Reduce(termFrequencyReducer(docColumn, textColumn, "no", 2), docColumn)
	numerator.Join(denominator, flow.JoinLeft, textColumn)
	numerator.Sort(docColumn)
	numerator.Reduce(topByRatio(textColumn, docColumn, "no", "dn", "pmi", 10), docColumn)
	return numerator
}

// emitWords builds the shared tokenising mapper: one output record per word
// of the text column, shaped by build.
func emitWords(textColumn string, build func(record flow.Record, word string) flow.Record) flow.Mapper {
	return func(record flow.Record) ([]flow.Record, error) {
		text, ok := record[textColumn].(string)
		if !ok {
			return nil, fmt.Errorf("column %q does not hold a string, got %T", textColumn, record[textColumn])
		}
		words := ExtractWords(text)
		out := make([]flow.Record, 0, len(words))
		for _, word := range words {
			out = append(out, build(record, word))
		}
		return out, nil
	}
}

// countRecordsFolder counts the consumed records into the given state column.
func countRecordsFolder(column string) flow.Folder {
	return func(state, record flow.Record) (flow.Record, error) {
		count, err := asInt(state[column])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", column, err)
		}
		state[column] = count + 1
		return state, nil
	}
}

// uniqueReducer keeps only the first record of each group.
func uniqueReducer(group []flow.Record) ([]flow.Record, error) {
	return []flow.Record{group[0]}, nil
}

// termFrequencyReducer emits one record per distinct word of a document
// group with the word's relative frequency in out; words occurring fewer
// than minCount times are dropped. Words keep first-appearance order so that
// downstream top-N selection breaks ties deterministically.
func termFrequencyReducer(docColumn, textColumn, out string, minCount int) flow.Reducer {
	return func(group []flow.Record) ([]flow.Record, error) {
		ordered := []string{}
		counts := map[string]int{}
		for _, record := range group {
			word, ok := record[textColumn].(string)
			if !ok {
				return nil, fmt.Errorf("column %q does not hold a string, got %T", textColumn, record[textColumn])
			}
			if _, seen := counts[word]; !seen {
				ordered = append(ordered, word)
			}
			counts[word]++
		}
		total := float64(len(group))

		results := []flow.Record{}
		for _, word := range ordered {
			if counts[word] < minCount {
				continue
			}
			results = append(results, flow.Record{
				docColumn:  group[0][docColumn],
				textColumn: word,
				out:        float64(counts[word]) / total,
			})
		}
		return results, nil
	}
}

// topByProduct scores each record by factorA*factorB, keeps the top limit
// records of the group and projects them down to (text, doc, score).
func topByProduct(textColumn, docColumn, factorA, factorB, scoreColumn string, limit int) flow.Reducer {
	return topBy(textColumn, docColumn, scoreColumn, limit, func(record flow.Record) (float64, error) {
		a, err := asFloat(record[factorA])
		if err != nil {
			return 0, fmt.Errorf("%s: %w", factorA, err)
		}
		b, err := asFloat(record[factorB])
		if err != nil {
			return 0, fmt.Errorf("%s: %w", factorB, err)
		}
		return a * b, nil
	})
}

// topByRatio scores each record by log(numerator/denominator).
func topByRatio(textColumn, docColumn, numerator, denominator, scoreColumn string, limit int) flow.Reducer {
	return topBy(textColumn, docColumn, scoreColumn, limit, func(record flow.Record) (float64, error) {
		n, err := asFloat(record[numerator])
		if err != nil {
			return 0, fmt.Errorf("%s: %w", numerator, err)
		}
		d, err := asFloat(record[denominator])
		if err != nil {
			return 0, fmt.Errorf("%s: %w", denominator, err)
		}
		return math.Log(n / d), nil
	})
}

func topBy(textColumn, docColumn, scoreColumn string, limit int, score func(flow.Record) (float64, error)) flow.Reducer {
	type scored struct {
		record flow.Record
		value  float64
	}
	return func(group []flow.Record) ([]flow.Record, error) {
		entries := make([]scored, 0, len(group))
		for _, record := range group {
			value, err := score(record)
			if err != nil {
				return nil, err
			}
			entries = append(entries, scored{record: record, value: value})
		}
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].value > entries[j].value
		})
		if len(entries) > limit {
			entries = entries[:limit]
		}

		results := make([]flow.Record, 0, len(entries))
		for _, entry := range entries {
			results = append(results, flow.Record{
				textColumn:  entry.record[textColumn+"_left"],
				docColumn:   entry.record[docColumn],
				scoreColumn: entry.value,
			})
		}
		return results, nil
	}
}

func asFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", value)
	}
}

func asInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("expected an integer, got %T", value)
	}
}
