package ml

import (
	"math"
	"path/filepath"
	"testing"
)

func trainingSet() ([][]float64, []string) {
	features := [][]float64{
		{0.1, 0.2},
		{0.2, 0.1},
		{0.3, 0.2},
		{4.9, 5.1},
		{5.2, 4.8},
		{5.0, 5.0},
	}
	labels := []string{"ok", "ok", "ok", "fail", "fail", "fail"}
	return features, labels
}

func TestDecisionTreeTrainPredict(t *testing.T) {
	features, labels := trainingSet()

	model := NewDecisionTree(2)
	if err := model.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := model.Predict([][]float64{{0.15, 0.15}, {5.0, 5.0}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0] != "ok" || got[1] != "fail" {
		t.Fatalf("unexpected labels: %v", got)
	}
}

func TestDecisionTreePredictProba(t *testing.T) {
	features, labels := trainingSet()
	model := NewDecisionTree(3)
	if err := model.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	classes := model.Classes()
	if len(classes) != 2 || classes[0] != "fail" || classes[1] != "ok" {
		t.Fatalf("unexpected classes: %v", classes)
	}

	probs, err := model.PredictProba([][]float64{{0.1, 0.1}, {6, 6}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, row := range probs {
		if len(row) != len(classes) {
			t.Fatalf("row %d: expected %d probabilities, got %d", i, len(classes), len(row))
		}
		sum := 0.0
		for _, p := range row {
			sum += p
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("row %d: probabilities sum to %f", i, sum)
		}
	}
	if probs[0][1] != 1 || probs[1][0] != 1 {
		t.Fatalf("unexpected probabilities: %v", probs)
	}
}

func TestDecisionTreeRejectsWrongWidth(t *testing.T) {
	features, labels := trainingSet()
	model := NewDecisionTree(2)
	if err := model.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := model.Predict([][]float64{{1, 2, 3}}); err == nil {
		t.Fatal("expected error for wrong feature count")
	}
}

func TestDecisionTreeTrainValidation(t *testing.T) {
	tests := []struct {
		name     string
		features [][]float64
		labels   []string
	}{
		{"empty", nil, nil},
		{"mismatch", [][]float64{{1}}, []string{"a", "b"}},
		{"ragged", [][]float64{{1, 2}, {1}}, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewDecisionTree(2).Train(tt.features, tt.labels); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDecisionTreeSaveLoad(t *testing.T) {
	features, labels := trainingSet()
	model := NewDecisionTree(3)
	if err := model.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "models", "classifier.json")
	if err := model.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := LoadModel(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	proba, ok := loaded.(ProbabilityEstimator)
	if !ok {
		t.Fatal("decision tree should expose probabilities")
	}

	input := [][]float64{{0.2, 0.2}, {5.1, 4.9}}
	want, _ := model.PredictProba(input)
	got, err := proba.PredictProba(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range want {
		for j := range want[i] {
			if want[i][j] != got[i][j] {
				t.Fatalf("probabilities differ after reload: %v vs %v", want, got)
			}
		}
	}
}

func TestSaveUntrained(t *testing.T) {
	if err := NewDecisionTree(2).Save(filepath.Join(t.TempDir(), "m.json")); err == nil {
		t.Fatal("expected error saving untrained tree")
	}
	if err := NewNearestCentroid().Save(filepath.Join(t.TempDir(), "m.json")); err == nil {
		t.Fatal("expected error saving untrained centroid model")
	}
}
