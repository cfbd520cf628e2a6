package ml

import (
	"errors"
	"fmt"
	"math"
)

const ModelTypeNearestCentroid = "nearest_centroid"

// NearestCentroid labels a row with the class whose mean training vector is
// closest in Euclidean distance. It has no probability output.
type NearestCentroid struct {
	classes   []string
	centroids [][]float64
}

func NewNearestCentroid() *NearestCentroid {
	return &NearestCentroid{}
}

func (nc *NearestCentroid) Train(features [][]float64, labels []string) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	width, err := matrixWidth(features)
	if err != nil {
		return err
	}

	classes, y := encodeLabels(labels)
	centroids := make([][]float64, len(classes))
	counts := make([]float64, len(classes))
	for i := range centroids {
		centroids[i] = make([]float64, width)
	}
	for i, row := range features {
		counts[y[i]]++
		for j, v := range row {
			centroids[y[i]][j] += v
		}
	}
	for i := range centroids {
		for j := range centroids[i] {
			centroids[i][j] /= counts[i]
		}
	}

	nc.classes = classes
	nc.centroids = centroids
	return nil
}

func (nc *NearestCentroid) Predict(features [][]float64) ([]string, error) {
	if len(nc.centroids) == 0 {
		return nil, errors.New("model not trained")
	}
	width := nc.NumFeatures()
	labels := make([]string, len(features))
	for i, row := range features {
		if len(row) != width {
			return nil, fmt.Errorf("row %d: expected %d features, got %d", i, width, len(row))
		}
		best, bestDist := 0, math.Inf(1)
		for c, centroid := range nc.centroids {
			dist := 0.0
			for j, v := range row {
				d := v - centroid[j]
				dist += d * d
			}
			if dist < bestDist {
				best, bestDist = c, dist
			}
		}
		labels[i] = nc.classes[best]
	}
	return labels, nil
}

func (nc *NearestCentroid) NumFeatures() int {
	if len(nc.centroids) == 0 {
		return 0
	}
	return len(nc.centroids[0])
}

func (nc *NearestCentroid) Save(path string) error {
	if len(nc.centroids) == 0 {
		return errors.New("model not trained")
	}
	return writeArtifact(path, &artifact{
		ModelType:   ModelTypeNearestCentroid,
		Classes:     nc.classes,
		NumFeatures: nc.NumFeatures(),
		Centroids:   nc.centroids,
	})
}

func nearestCentroidFromArtifact(a *artifact) (*NearestCentroid, error) {
	if len(a.Centroids) == 0 || len(a.Centroids) != len(a.Classes) {
		return nil, errors.New("centroid artifact does not match its classes")
	}
	width := len(a.Centroids[0])
	if width == 0 {
		return nil, errors.New("centroid artifact has empty centroids")
	}
	for i, c := range a.Centroids {
		if len(c) != width {
			return nil, fmt.Errorf("centroid %d has %d features, expected %d", i, len(c), width)
		}
	}
	return &NearestCentroid{classes: a.Classes, centroids: a.Centroids}, nil
}
