package serving

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestNormalizeValues(t *testing.T) {
	tests := []struct {
		raw  string
		want [][]float64
	}{
		{`[1, 2, 3]`, [][]float64{{1, 2, 3}}},
		{`[0.5]`, [][]float64{{0.5}}},
		{` [[1,2],[3,4]] `, [][]float64{{1, 2}, {3, 4}}},
		{`[[-1e3, 2.5]]`, [][]float64{{-1000, 2.5}}},
	}
	for _, tt := range tests {
		got, err := NormalizeValues(json.RawMessage(tt.raw))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.raw, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("%s: got %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeValuesRejects(t *testing.T) {
	for _, raw := range []string{``, `null`, `{}`, `[]`, `[true]`, `[1,"2"]`, `[[1],[1,2]]`, `[[1],2]`, `[1,[2]]`, `[[]]`, `[1e400]`} {
		if _, err := NormalizeValues(json.RawMessage(raw)); KindOf(err) != KindInvalidInput {
			t.Fatalf("%q: expected InvalidInput, got %v", raw, err)
		}
	}
}
