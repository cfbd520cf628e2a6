package db

import (
	"context"
	"path/filepath"
	"testing"

	"classifyd/serving"
)

func TestPredictionStore(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "data", "predictions.db"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	err = store.RecordPredictions(ctx, 3,
		[][]float64{{0.1, 0.2}, {5, 5}},
		[]serving.PredictionRecord{
			{Label: "ok", Probabilities: []float64{0.9, 0.1}},
			{Label: "fail"},
		})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}

	rows, err := store.RecentPredictions(ctx, 10)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	// newest first
	if rows[0].Label != "fail" || rows[0].Probabilities != nil {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Label != "ok" || rows[1].Probabilities[0] != 0.9 || rows[1].Features[1] != 0.2 {
		t.Fatalf("unexpected second row: %+v", rows[1])
	}
	if rows[0].BatchID != rows[1].BatchID || rows[0].ID == rows[1].ID {
		t.Fatal("rows from one call share a batch id and have distinct ids")
	}
	if rows[0].ModelGeneration != 3 {
		t.Fatalf("unexpected generation %d", rows[0].ModelGeneration)
	}

	limited, err := store.RecentPredictions(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("limit not applied: %v, %d", err, len(limited))
	}
}

func TestRecordPredictionsMismatch(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "predictions.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	err = store.RecordPredictions(context.Background(), 1, [][]float64{{1}}, nil)
	if err == nil {
		t.Fatal("expected mismatch error")
	}
}
