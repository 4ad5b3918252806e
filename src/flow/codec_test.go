package flow

import (
	"context"
	"strings"
	"testing"
)

func TestDecodeLine(t *testing.T) {
	record, err := DecodeLine(`{"doc_id": 1, "text": "hello", "score": 0.5, "tags": ["a", "b"], "missing": null}`)
	if err != nil {
		t.Fatalf("DecodeLine failed: %v", err)
	}

	if record["doc_id"] != int64(1) {
		t.Errorf("expected integral values to decode as int64, got %T", record["doc_id"])
	}
	if record["score"] != 0.5 {
		t.Errorf("expected fractional values to decode as float64, got %v", record["score"])
	}
	if record["text"] != "hello" {
		t.Errorf("unexpected text %v", record["text"])
	}
	tags, ok := record["tags"].([]interface{})
	if !ok || len(tags) != 2 {
		t.Errorf("unexpected tags %v", record["tags"])
	}
	if record["missing"] != nil {
		t.Errorf("expected null to decode as nil, got %v", record["missing"])
	}
}

func TestDecodeLineRejectsNonObject(t *testing.T) {
	if _, err := DecodeLine(`[1, 2]`); err == nil {
		t.Fatal("expected array input to fail")
	}
	if _, err := DecodeLine(`{"a":`); err == nil {
		t.Fatal("expected malformed input to fail")
	}
}

func TestEncodeLineIsDeterministic(t *testing.T) {
	record := Record{"b": 2, "a": 1, "c": "x"}
	line, err := EncodeLine(record)
	if err != nil {
		t.Fatalf("EncodeLine failed: %v", err)
	}
	if line != `{"a":1,"b":2,"c":"x"}` {
		t.Errorf("expected sorted keys, got %s", line)
	}
}

func TestEncodeLineRejectsUnsupportedValues(t *testing.T) {
	_, err := EncodeLine(Record{"bad": map[string]interface{}{"nested": 1}})
	encodeErr, ok := err.(*EncodeError)
	if !ok {
		t.Fatalf("expected EncodeError, got %v", err)
	}
	if encodeErr.Column != "bad" {
		t.Errorf("expected offending column in error, got %q", encodeErr.Column)
	}

	if _, err := EncodeLine(Record{"bad": []interface{}{[]interface{}{1}}}); err == nil {
		t.Fatal("expected nested list to fail")
	}
}

func TestLineStream(t *testing.T) {
	input := "{\"n\": 1}\n\n   \n{\"n\": 2}\n"
	stream := newLineStream(strings.NewReader(input), false)

	records, err := collect(context.Background(), stream)
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records with empty lines skipped, got %d", len(records))
	}
	if records[0]["n"] != int64(1) || records[1]["n"] != int64(2) {
		t.Errorf("unexpected records %v", records)
	}
}

func TestLineStreamReportsLineNumbers(t *testing.T) {
	input := "{\"n\": 1}\n{broken\n"
	stream := newLineStream(strings.NewReader(input), false)

	_, err := collect(context.Background(), stream)
	decodeErr, ok := err.(*DecodeError)
	if !ok {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if decodeErr.Line != 2 {
		t.Errorf("expected 1-based line number 2, got %d", decodeErr.Line)
	}
}

func TestLineStreamLenientRepair(t *testing.T) {
	input := "{n: 1, text: 'hello'}\n"

	if _, err := collect(context.Background(), newLineStream(strings.NewReader(input), false)); err == nil {
		t.Fatal("expected strict decoding to fail")
	}

	records, err := collect(context.Background(), newLineStream(strings.NewReader(input), true))
	if err != nil {
		t.Fatalf("lenient decoding failed: %v", err)
	}
	if len(records) != 1 || records[0]["text"] != "hello" {
		t.Errorf("unexpected records %v", records)
	}
}
