package ml

import (
	"strings"
	"testing"
)

func TestReadTrainingCSV(t *testing.T) {
	data := `air_temp,process_temp,rpm,label
298.1, 308.6, 1551, ok
302.5, 311.0, 1200, fail
`
	features, labels, err := ReadTrainingCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(features) != 2 || len(features[0]) != 3 {
		t.Fatalf("unexpected shape: %v", features)
	}
	if labels[0] != "ok" || labels[1] != "fail" {
		t.Fatalf("unexpected labels: %v", labels)
	}
}

func TestReadTrainingCSVErrors(t *testing.T) {
	for name, data := range map[string]string{
		"empty":     "",
		"header":    "a,b,label\n",
		"ragged":    "1,2,ok\n1,ok\n",
		"bad value": "1,2,ok\nx,2,fail\n",
		"no label":  "1\n",
	} {
		if _, _, err := ReadTrainingCSV(strings.NewReader(data)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestSplitDataset(t *testing.T) {
	features := make([][]float64, 10)
	labels := make([]string, 10)
	for i := range features {
		features[i] = []float64{float64(i)}
		labels[i] = "x"
	}

	trainX, trainY, testX, testY := SplitDataset(features, labels, 0.2)
	if len(trainX) != 8 || len(trainY) != 8 || len(testX) != 2 || len(testY) != 2 {
		t.Fatalf("unexpected split: %d/%d", len(trainX), len(testX))
	}

	trainX, _, testX, _ = SplitDataset(features[:1], labels[:1], 0.5)
	if len(trainX) != 1 || len(testX) != 0 {
		t.Fatal("a single row must stay in the training set")
	}
}

func TestAccuracy(t *testing.T) {
	features, labels := trainingSet()
	model := NewNearestCentroid()
	if err := model.Train(features, labels); err != nil {
		t.Fatal(err)
	}
	acc, err := Accuracy(model, features, labels)
	if err != nil || acc != 1 {
		t.Fatalf("expected perfect accuracy, got %v, %v", acc, err)
	}
}
