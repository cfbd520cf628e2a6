package ml

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadTrainingCSV reads rows of "f1,...,fn,label". A first row whose feature
// columns are not numeric is treated as a header and skipped.
func ReadTrainingCSV(r io.Reader) (features [][]float64, labels []string, err error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		line++
		if len(record) < 2 {
			return nil, nil, fmt.Errorf("line %d: need at least one feature and a label", line)
		}

		row := make([]float64, len(record)-1)
		var parseErr error
		for i, field := range record[:len(record)-1] {
			row[i], parseErr = strconv.ParseFloat(strings.TrimSpace(field), 64)
			if parseErr != nil {
				break
			}
		}
		if parseErr != nil {
			if line == 1 {
				continue
			}
			return nil, nil, fmt.Errorf("line %d: %w", line, parseErr)
		}
		if len(features) > 0 && len(row) != len(features[0]) {
			return nil, nil, fmt.Errorf("line %d: expected %d features, got %d", line, len(features[0]), len(row))
		}

		features = append(features, row)
		labels = append(labels, strings.TrimSpace(record[len(record)-1]))
	}

	if len(features) == 0 {
		return nil, nil, errors.New("no training rows")
	}
	return features, labels, nil
}

// SplitDataset keeps the first (1-testRatio) share of rows for training and
// the rest for evaluation.
func SplitDataset(features [][]float64, labels []string, testRatio float64) (trainX [][]float64, trainY []string, testX [][]float64, testY []string) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}

	split := int(float64(len(features)) * (1 - testRatio))
	if split == 0 {
		split = len(features)
	}
	return features[:split], labels[:split], features[split:], labels[split:]
}

// Accuracy is the share of rows in testX the estimator labels correctly.
func Accuracy(est Estimator, testX [][]float64, testY []string) (float64, error) {
	if len(testX) == 0 {
		return 0, nil
	}
	predicted, err := est.Predict(testX)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i, label := range predicted {
		if label == testY[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(testX)), nil
}
