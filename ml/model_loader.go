package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// artifact is the on-disk envelope shared by every model type.
type artifact struct {
	ModelType   string      `json:"model_type"`
	Classes     []string    `json:"classes"`
	NumFeatures int         `json:"n_features"`
	MaxDepth    int         `json:"max_depth,omitempty"`
	Nodes       []TreeNode  `json:"nodes,omitempty"`
	Centroids   [][]float64 `json:"centroids,omitempty"`
	TrainedAt   time.Time   `json:"trained_at"`
}

// LoadModel decodes the artifact at path and builds the estimator it describes.
func LoadModel(path string) (Estimator, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a artifact
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}

	switch a.ModelType {
	case ModelTypeDecisionTree:
		return decisionTreeFromArtifact(&a)
	case ModelTypeNearestCentroid:
		return nearestCentroidFromArtifact(&a)
	default:
		return nil, fmt.Errorf("unsupported model type %q", a.ModelType)
	}
}

// NewTrainer returns an untrained model of the given type.
func NewTrainer(modelType string, maxDepth int) (Trainer, error) {
	switch modelType {
	case ModelTypeDecisionTree:
		return NewDecisionTree(maxDepth), nil
	case ModelTypeNearestCentroid:
		return NewNearestCentroid(), nil
	default:
		return nil, fmt.Errorf("unsupported model type %q", modelType)
	}
}

// writeArtifact replaces path atomically so a concurrent reader or file
// watcher never sees a partially written model.
func writeArtifact(path string, a *artifact) error {
	if a.TrainedAt.IsZero() {
		a.TrainedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".model-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
