package flow

import "testing"

func TestCompareValues(t *testing.T) {
	tests := []struct {
		name     string
		a, b     interface{}
		expected int
		fails    bool
	}{
		{name: "equal ints", a: 1, b: 1, expected: 0},
		{name: "int ordering", a: 1, b: 2, expected: -1},
		{name: "int64 ordering", a: int64(10), b: int64(3), expected: 1},
		{name: "large ids keep integer precision", a: int64(8414926848168493057), b: int64(8414926848168493056), expected: 1},
		{name: "int against float", a: 1, b: 1.5, expected: -1},
		{name: "int equals float", a: 2, b: 2.0, expected: 0},
		{name: "strings", a: "apple", b: "banana", expected: -1},
		{name: "bools", a: false, b: true, expected: -1},
		{name: "null before value", a: nil, b: 0, expected: -1},
		{name: "null equals null", a: nil, b: nil, expected: 0},
		{name: "lists elementwise", a: []interface{}{1, 2}, b: []interface{}{1, 3}, expected: -1},
		{name: "shorter list first", a: []interface{}{1}, b: []interface{}{1, 0}, expected: -1},
		{name: "number against string", a: 1, b: "1", fails: true},
		{name: "list against scalar", a: []interface{}{1}, b: 1, fails: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmp, err := compareValues(tt.a, tt.b)
			if tt.fails {
				if err == nil {
					t.Fatalf("expected comparison of %v and %v to fail", tt.a, tt.b)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cmp != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, cmp)
			}
		})
	}
}

func TestKeyTuple(t *testing.T) {
	record := Record{"a": 1, "b": "x"}

	tuple, _, ok := record.keyTuple([]string{"b", "a"})
	if !ok {
		t.Fatal("expected key tuple to resolve")
	}
	if tuple[0] != "x" || tuple[1] != 1 {
		t.Errorf("unexpected tuple %v", tuple)
	}

	_, missing, ok := record.keyTuple([]string{"a", "c"})
	if ok {
		t.Fatal("expected missing column")
	}
	if missing != "c" {
		t.Errorf("expected missing column c, got %q", missing)
	}
}

func TestRecordClone(t *testing.T) {
	original := Record{"a": 1}
	dup := original.clone()
	dup["a"] = 2
	if original["a"] != 1 {
		t.Error("clone should not share top-level storage")
	}
}
