package ml

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrModelNotFound is returned by Load when no artifact exists at the path.
var ErrModelNotFound = errors.New("model artifact not found")

// LoadError wraps a failure to decode an artifact that does exist.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Snapshot is an immutable view of the registry at one point in time.
// Predictions run against a snapshot so a concurrent Replace does not affect them.
type Snapshot struct {
	Estimator  Estimator
	Proba      ProbabilityEstimator
	Generation uint64
	LoadedAt   time.Time
}

func (s Snapshot) SupportsProbabilities() bool {
	return s.Proba != nil
}

// NumFeatures returns the expected row width, or 0 when the estimator does not say.
func (s Snapshot) NumFeatures() int {
	if fc, ok := s.Estimator.(FeatureCounter); ok {
		return fc.NumFeatures()
	}
	return 0
}

// Registry holds at most one loaded estimator.
type Registry struct {
	path   string
	loader func(string) (Estimator, error)
	logger *zap.Logger

	current    atomic.Pointer[Snapshot]
	writeMu    sync.Mutex
	generation uint64
}

func NewRegistry(path string, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		path:   path,
		loader: LoadModel,
		logger: logger,
	}
}

// Path is the artifact location used by Reload.
func (r *Registry) Path() string {
	return r.path
}

// Load reads an estimator from path without touching the registry state.
func (r *Registry) Load(path string) (Estimator, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrModelNotFound
		}
		return nil, &LoadError{Path: path, Err: err}
	}
	est, err := r.loader(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return est, nil
}

// Reload loads the artifact at Path and swaps it in. On failure the previous
// estimator, if any, stays in place. Load and swap happen under one lock so
// the last reload to start is the one left serving.
func (r *Registry) Reload() error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	est, err := r.Load(r.path)
	if err != nil {
		if errors.Is(err, ErrModelNotFound) {
			r.logger.Warn("model artifact not found", zap.String("path", r.path))
		} else {
			r.logger.Error("failed to load model", zap.String("path", r.path), zap.Error(err))
		}
		return err
	}
	snap := r.replaceLocked(est)
	r.logger.Info("model loaded",
		zap.String("path", r.path),
		zap.Uint64("generation", snap.Generation),
		zap.Bool("probabilities", snap.SupportsProbabilities()),
	)
	return nil
}

// Replace swaps in est as the current estimator. The probability capability is
// resolved here once rather than on every request.
func (r *Registry) Replace(est Estimator) Snapshot {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.replaceLocked(est)
}

func (r *Registry) replaceLocked(est Estimator) Snapshot {
	r.generation++
	snap := &Snapshot{
		Estimator:  est,
		Generation: r.generation,
		LoadedAt:   time.Now(),
	}
	if proba, ok := est.(ProbabilityEstimator); ok {
		snap.Proba = proba
	}
	r.current.Store(snap)
	return *snap
}

// Snapshot returns the current state and whether a model is loaded.
func (r *Registry) Snapshot() (Snapshot, bool) {
	snap := r.current.Load()
	if snap == nil || snap.Estimator == nil {
		return Snapshot{}, false
	}
	return *snap, true
}

func (r *Registry) IsAvailable() bool {
	_, ok := r.Snapshot()
	return ok
}

// Current returns the loaded estimator, or nil when none is loaded.
func (r *Registry) Current() Estimator {
	snap, _ := r.Snapshot()
	return snap.Estimator
}

func (r *Registry) SupportsProbabilities() bool {
	snap, ok := r.Snapshot()
	return ok && snap.SupportsProbabilities()
}
