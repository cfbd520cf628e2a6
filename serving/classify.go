package serving

import (
	"context"
	"encoding/json"
	"fmt"

	"classifyd/ml"
	"go.uber.org/zap"
)

// ModelUnavailableMessage is returned to callers when no estimator is loaded.
const ModelUnavailableMessage = "classification model not loaded - please train first"

// FeaturePayload is the body of a classify request. Values stays raw until
// NormalizeValues decides whether it is one sample or a batch.
type FeaturePayload struct {
	Values json.RawMessage `json:"values"`
}

type PredictionRecord struct {
	Label         string    `json:"label"`
	Probabilities []float64 `json:"probabilities,omitempty"`
}

func (r PredictionRecord) clone() PredictionRecord {
	if r.Probabilities != nil {
		r.Probabilities = append([]float64(nil), r.Probabilities...)
	}
	return r
}

type PredictionResponse struct {
	Count   int                `json:"count"`
	Results []PredictionRecord `json:"results"`
}

// ModelSource is the read side of ml.Registry.
type ModelSource interface {
	Snapshot() (ml.Snapshot, bool)
}

// PredictionSink persists served predictions. Failures are logged, never
// returned to the caller.
type PredictionSink interface {
	RecordPredictions(ctx context.Context, generation uint64, features [][]float64, records []PredictionRecord) error
}

// EventPublisher fans events out to observers such as websocket clients.
type EventPublisher interface {
	Publish(eventType string, data interface{})
}

// PredictionEvent is published after every successful classify call.
type PredictionEvent struct {
	Generation uint64   `json:"generation"`
	Count      int      `json:"count"`
	Labels     []string `json:"labels"`
}

type Classifier struct {
	models   ModelSource
	cache    *PredictionCache
	sink     PredictionSink
	events   EventPublisher
	maxBatch int
	logger   *zap.Logger
}

type ClassifierOption func(*Classifier)

func WithCache(cache *PredictionCache) ClassifierOption {
	return func(c *Classifier) { c.cache = cache }
}

func WithPredictionSink(sink PredictionSink) ClassifierOption {
	return func(c *Classifier) { c.sink = sink }
}

func WithEventPublisher(events EventPublisher) ClassifierOption {
	return func(c *Classifier) { c.events = events }
}

// WithMaxBatchSize rejects batches with more than n rows. Zero means no limit.
func WithMaxBatchSize(n int) ClassifierOption {
	return func(c *Classifier) { c.maxBatch = n }
}

func NewClassifier(models ModelSource, logger *zap.Logger, opts ...ClassifierOption) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Classifier{models: models, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify validates payload, runs the current estimator on it and returns one
// record per input row, in input order. Availability is checked before the
// payload is looked at.
func (c *Classifier) Classify(ctx context.Context, payload *FeaturePayload) (*PredictionResponse, error) {
	snap, ok := c.models.Snapshot()
	if !ok {
		return nil, &Error{Kind: KindModelUnavailable, Message: ModelUnavailableMessage}
	}
	if payload == nil {
		return nil, invalidInput("values is required")
	}

	features, err := NormalizeValues(payload.Values)
	if err != nil {
		return nil, err
	}
	if c.maxBatch > 0 && len(features) > c.maxBatch {
		return nil, invalidInput("batch of %d rows exceeds the limit of %d", len(features), c.maxBatch)
	}
	if n := snap.NumFeatures(); n > 0 && len(features[0]) != n {
		return nil, invalidInput("model expects %d features, got %d", n, len(features[0]))
	}
	if err := ctx.Err(); err != nil {
		return nil, internalError("request cancelled", err)
	}

	records, err := c.predict(snap, features)
	if err != nil {
		return nil, err
	}

	if c.sink != nil {
		if err := c.sink.RecordPredictions(ctx, snap.Generation, features, records); err != nil {
			c.logger.Warn("failed to record predictions", zap.Error(err))
		}
	}
	if c.events != nil {
		labels := make([]string, len(records))
		for i, rec := range records {
			labels[i] = rec.Label
		}
		c.events.Publish("prediction", PredictionEvent{
			Generation: snap.Generation,
			Count:      len(records),
			Labels:     labels,
		})
	}

	return &PredictionResponse{Count: len(records), Results: records}, nil
}

// predict serves cached rows from the cache and sends the rest to the
// estimator as a single matrix, used for both Predict and PredictProba.
func (c *Classifier) predict(snap ml.Snapshot, features [][]float64) ([]PredictionRecord, error) {
	records := make([]PredictionRecord, len(features))
	missing := make([]int, 0, len(features))
	for i, row := range features {
		if c.cache != nil {
			if rec, ok := c.cache.Get(snap.Generation, row); ok {
				records[i] = rec
				continue
			}
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return records, nil
	}

	batch := features
	if len(missing) != len(features) {
		batch = make([][]float64, len(missing))
		for j, i := range missing {
			batch[j] = features[i]
		}
	}

	labels, err := snap.Estimator.Predict(batch)
	if err != nil {
		return nil, internalError("prediction failed", err)
	}
	if len(labels) != len(batch) {
		return nil, internalError("prediction failed", fmt.Errorf("estimator returned %d labels for %d rows", len(labels), len(batch)))
	}

	var probs [][]float64
	if snap.SupportsProbabilities() {
		probs, err = snap.Proba.PredictProba(batch)
		if err != nil {
			return nil, internalError("probability prediction failed", err)
		}
		if len(probs) != len(batch) {
			return nil, internalError("probability prediction failed", fmt.Errorf("estimator returned %d probability rows for %d rows", len(probs), len(batch)))
		}
		numClasses := len(snap.Proba.Classes())
		for i, p := range probs {
			if len(p) != numClasses {
				return nil, internalError("probability prediction failed", fmt.Errorf("row %d has %d probabilities for %d classes", i, len(p), numClasses))
			}
		}
	}

	for j, i := range missing {
		rec := PredictionRecord{Label: labels[j]}
		if probs != nil {
			rec.Probabilities = probs[j]
		}
		records[i] = rec
		if c.cache != nil {
			c.cache.Add(snap.Generation, features[i], rec)
		}
	}
	return records, nil
}
