package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"classifyd/serving"
)

// PredictionStore is an append-only sqlite log of served predictions.
type PredictionStore struct {
	database *sql.DB
}

// PredictionRow is one logged prediction.
type PredictionRow struct {
	ID              string    `json:"id"`
	BatchID         string    `json:"batch_id"`
	ModelGeneration uint64    `json:"model_generation"`
	Features        []float64 `json:"features"`
	Label           string    `json:"label"`
	Probabilities   []float64 `json:"probabilities,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Open opens (creating if needed) the sqlite database at path.
func Open(path string) (*PredictionStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	database, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}

	query := `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        prediction_id TEXT NOT NULL UNIQUE,
        batch_id TEXT NOT NULL,
        model_generation INTEGER NOT NULL,
        features TEXT NOT NULL,
        label TEXT NOT NULL,
        probabilities TEXT,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
    `
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, fmt.Errorf("create tables failed: %w", err)
	}
	return &PredictionStore{database: database}, nil
}

func (s *PredictionStore) Close() error {
	return s.database.Close()
}

// RecordPredictions stores one row per record in a single transaction.
func (s *PredictionStore) RecordPredictions(ctx context.Context, generation uint64, features [][]float64, records []serving.PredictionRecord) error {
	if len(features) != len(records) {
		return errors.New("features/records length mismatch")
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := s.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO predictions (
            prediction_id, batch_id, model_generation, features, label, probabilities, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)
    `)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	batchID := uuid.NewString()
	now := time.Now().UTC()
	for i, rec := range records {
		featureJSON, err := json.Marshal(features[i])
		if err != nil {
			tx.Rollback()
			return err
		}
		var probJSON sql.NullString
		if rec.Probabilities != nil {
			data, err := json.Marshal(rec.Probabilities)
			if err != nil {
				tx.Rollback()
				return err
			}
			probJSON = sql.NullString{String: string(data), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), batchID, generation, string(featureJSON), rec.Label, probJSON, now); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// RecentPredictions returns up to limit rows, newest first.
func (s *PredictionStore) RecentPredictions(ctx context.Context, limit int) ([]PredictionRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.database.QueryContext(ctx, `
        SELECT prediction_id, batch_id, model_generation, features, label, probabilities, created_at
        FROM predictions
        ORDER BY id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]PredictionRow, 0)
	for rows.Next() {
		var row PredictionRow
		var featureJSON string
		var probJSON sql.NullString
		if err := rows.Scan(&row.ID, &row.BatchID, &row.ModelGeneration, &featureJSON, &row.Label, &probJSON, &row.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(featureJSON), &row.Features); err != nil {
			return nil, err
		}
		if probJSON.Valid {
			if err := json.Unmarshal([]byte(probJSON.String), &row.Probabilities); err != nil {
				return nil, err
			}
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
