package ml

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNearestCentroid(t *testing.T) {
	features, labels := trainingSet()
	model := NewNearestCentroid()
	if err := model.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := model.Predict([][]float64{{0, 0}, {10, 10}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0] != "ok" || got[1] != "fail" {
		t.Fatalf("unexpected labels: %v", got)
	}

	if _, ok := Estimator(model).(ProbabilityEstimator); ok {
		t.Fatal("nearest centroid must not expose probabilities")
	}
}

func TestLoadModelNearestCentroid(t *testing.T) {
	features, labels := trainingSet()
	model := NewNearestCentroid()
	if err := model.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "centroid.json")
	if err := model.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := LoadModel(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if fc, ok := loaded.(FeatureCounter); !ok || fc.NumFeatures() != 2 {
		t.Fatalf("expected 2 features")
	}
}

func TestLoadModelErrors(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"garbage.json":  "not json",
		"unknown.json":  `{"model_type":"svm","classes":["a"]}`,
		"notree.json":   `{"model_type":"decision_tree","classes":["a"]}`,
		"badnode.json":  `{"model_type":"decision_tree","classes":["a"],"nodes":[{"feature_idx":0,"left_child":5,"right_child":6}]}`,
		"centroid.json": `{"model_type":"nearest_centroid","classes":["a","b"],"centroids":[[1,2]]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadModel(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNewTrainer(t *testing.T) {
	for _, modelType := range []string{ModelTypeDecisionTree, ModelTypeNearestCentroid} {
		if _, err := NewTrainer(modelType, 3); err != nil {
			t.Fatalf("%s: unexpected error: %v", modelType, err)
		}
	}
	if _, err := NewTrainer("svm", 3); err == nil {
		t.Fatal("expected error for unknown model type")
	}
}
