package ml

// Estimator is a trained classifier that maps each row of a feature matrix to a label.
type Estimator interface {
	Predict(features [][]float64) ([]string, error)
}

// ProbabilityEstimator is an Estimator that also reports per-class probabilities.
// Row i of PredictProba has len(Classes()) entries in Classes() order.
type ProbabilityEstimator interface {
	Estimator
	PredictProba(features [][]float64) ([][]float64, error)
	Classes() []string
}

// FeatureCounter is implemented by estimators that know the width of the rows they were trained on.
type FeatureCounter interface {
	NumFeatures() int
}

// Trainer is the write side of a model: fit on labelled rows, persist as an artifact.
type Trainer interface {
	Estimator
	Train(features [][]float64, labels []string) error
	Save(path string) error
}
