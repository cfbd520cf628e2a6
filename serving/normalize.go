package serving

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NormalizeValues turns the raw "values" field into a rows x features matrix.
// A flat array is one sample; an array of arrays is a batch whose rows must
// all have the same, non-zero width.
func NormalizeValues(raw json.RawMessage) ([][]float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, invalidInput("values is required")
	}
	if raw[0] != '[' {
		return nil, invalidInput("values must be an array of numbers or an array of arrays")
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, invalidInput("values is not valid JSON: %v", err)
	}
	if len(items) == 0 {
		return nil, invalidInput("values must not be empty")
	}

	if !isArray(items[0]) {
		row, err := decodeRow(raw)
		if err != nil {
			return nil, invalidInput("values must contain only numbers: %v", err)
		}
		return [][]float64{row}, nil
	}

	batch := make([][]float64, len(items))
	for i, item := range items {
		if !isArray(item) {
			return nil, invalidInput("values[%d] is not an array; batches cannot mix scalars and rows", i)
		}
		row, err := decodeRow(item)
		if err != nil {
			return nil, invalidInput("values[%d] must contain only numbers: %v", i, err)
		}
		if len(row) == 0 {
			return nil, invalidInput("values[%d] is empty", i)
		}
		if i > 0 && len(row) != len(batch[0]) {
			return nil, invalidInput("values[%d] has %d features, expected %d", i, len(row), len(batch[0]))
		}
		batch[i] = row
	}
	return batch, nil
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

// decodeRow rejects nulls, which encoding/json would otherwise turn into zeros.
func decodeRow(raw json.RawMessage) ([]float64, error) {
	var ptrs []*float64
	if err := json.Unmarshal(raw, &ptrs); err != nil {
		return nil, err
	}
	row := make([]float64, len(ptrs))
	for i, p := range ptrs {
		if p == nil {
			return nil, fmt.Errorf("null at position %d", i)
		}
		row[i] = *p
	}
	return row, nil
}
