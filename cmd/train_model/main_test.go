package main

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"classifyd/ml"
)

func writeCSV(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "training.csv")
	data := "f1,f2,label\n0.1,0.2,ok\n0.2,0.1,ok\n5.0,5.1,fail\n5.1,4.9,fail\n0.3,0.3,ok\n4.8,5.2,fail\n0.2,0.2,ok\n5.0,5.0,fail\n0.1,0.1,ok\n5.2,5.2,fail\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunWritesLoadableArtifacts(t *testing.T) {
	dir := t.TempDir()
	data := writeCSV(t, dir)

	for _, task := range []string{"classification", "generic"} {
		modelPath := filepath.Join(dir, task, "model.json")
		if err := run(zap.NewNop(), task, data, modelPath, 4, 0.2); err != nil {
			t.Fatalf("%s: unexpected error: %v", task, err)
		}
		est, err := ml.LoadModel(modelPath)
		if err != nil {
			t.Fatalf("%s: artifact not loadable: %v", task, err)
		}
		_, proba := est.(ml.ProbabilityEstimator)
		if proba != (task == "classification") {
			t.Fatalf("%s: unexpected probability capability %v", task, proba)
		}
	}
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	data := writeCSV(t, dir)

	if err := run(zap.NewNop(), "regression", data, filepath.Join(dir, "m.json"), 4, 0.2); err == nil {
		t.Fatal("expected error for unknown task")
	}
	if err := run(zap.NewNop(), "classification", filepath.Join(dir, "absent.csv"), filepath.Join(dir, "m.json"), 4, 0.2); err == nil {
		t.Fatal("expected error for missing data")
	}
}
