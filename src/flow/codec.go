package flow

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// DecodeLine parses one JSON object into a Record. Numbers are decoded with
// json.Number and normalised so that integral values stay int64 and only
// fractional values become float64.
func DecodeLine(text string) (Record, error) {
	return decodeLine(text, false)
}

func decodeLine(text string, lenient bool) (Record, error) {
	record, err := unmarshalRecord(text)
	if err != nil && lenient {
		repaired, repairErr := jsonrepair.JSONRepair(text)
		if repairErr == nil {
			record, err = unmarshalRecord(repaired)
		}
	}
	if err != nil {
		return nil, err
	}
	if err := validateRecord(record, func(column, format string, args ...interface{}) error {
		return NewDecodeError(0, "column %q: "+format, append([]interface{}{column}, args...)...)
	}); err != nil {
		return nil, err
	}
	return record, nil
}

func unmarshalRecord(text string) (Record, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	object, ok := normalizeJSONNumbers(value).(map[string]interface{})
	if !ok {
		return nil, NewDecodeError(0, "expected a JSON object")
	}
	return Record(object), nil
}

func normalizeJSONNumbers(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		for k, vv := range x {
			x[k] = normalizeJSONNumbers(vv)
		}
		return x
	case []interface{}:
		for i, vv := range x {
			x[i] = normalizeJSONNumbers(vv)
		}
		return x
	case json.Number:
		s := x.String()
		if !strings.ContainsAny(s, ".eE") {
			if i, err := x.Int64(); err == nil {
				return i
			}
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return s
	default:
		return v
	}
}

// EncodeLine serialises one record as a single JSON line without the trailing
// newline. Map keys are emitted in sorted order, so output is deterministic.
func EncodeLine(record Record) (string, error) {
	if err := validateRecord(record, func(column, format string, args ...interface{}) error {
		return NewEncodeError(column, format, args...)
	}); err != nil {
		return "", err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return "", NewEncodeError("", "%v", err)
	}
	return string(data), nil
}

// validateRecord enforces the value universe: scalars (int, float, string,
// bool, null) and flat lists of scalars. The fail callback builds the
// boundary-appropriate error.
func validateRecord(record Record, fail func(column, format string, args ...interface{}) error) error {
	for column, value := range record {
		switch kindOf(value) {
		case kindUnsupported:
			return fail(column, "unsupported value of type %T", value)
		case kindList:
			for _, element := range value.([]interface{}) {
				elementKind := kindOf(element)
				if elementKind == kindList || elementKind == kindUnsupported {
					return fail(column, "list elements must be scalars, got %T", element)
				}
			}
		}
	}
	return nil
}

// lineStream decodes a JSON-lines reader lazily, one record per line.
// Empty lines are skipped; malformed lines fail with a DecodeError carrying
// the 1-based line number.
type lineStream struct {
	scanner *bufio.Scanner
	lineNo  int
	lenient bool
	current Record
	err     error
	done    bool
}

func newLineStream(r io.Reader, lenient bool) *lineStream {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &lineStream{scanner: scanner, lenient: lenient}
}

func (s *lineStream) Next(ctx context.Context) bool {
	if s.err != nil || s.done {
		return false
	}
	if err := ctx.Err(); err != nil {
		s.err = err
		return false
	}
	for s.scanner.Scan() {
		s.lineNo++
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}
		record, err := decodeLine(line, s.lenient)
		if err != nil {
			if decodeErr, ok := err.(*DecodeError); ok {
				s.err = NewDecodeError(s.lineNo, "%s", decodeErr.Message)
			} else {
				s.err = NewDecodeError(s.lineNo, "%v", err)
			}
			return false
		}
		s.current = record
		return true
	}
	if err := s.scanner.Err(); err != nil {
		s.err = NewDecodeError(s.lineNo, "%v", err)
		return false
	}
	s.done = true
	return false
}

func (s *lineStream) Record() Record { return s.current }
func (s *lineStream) Err() error     { return s.err }

// encodeTo drains a stream into the sink, one JSON line per record.
func encodeTo(ctx context.Context, w io.Writer, s Stream) (int64, error) {
	var emitted int64
	for s.Next(ctx) {
		line, err := EncodeLine(s.Record())
		if err != nil {
			return emitted, err
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return emitted, NewEncodeError("", "%v", err)
		}
		emitted++
	}
	return emitted, s.Err()
}
