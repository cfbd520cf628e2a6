package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"classifyd/db"
	"classifyd/ml"
	"classifyd/monitoring"
	"classifyd/serving"
)

const livenessMessage = "Machine Learning inference service is running"

// ModelStatus is the read side of ml.Registry used by the health endpoint.
type ModelStatus interface {
	Snapshot() (ml.Snapshot, bool)
	Path() string
}

type Classifier interface {
	Classify(ctx context.Context, payload *serving.FeaturePayload) (*serving.PredictionResponse, error)
}

type Retrainer interface {
	Retrain(ctx context.Context, target string) (*serving.RetrainOutcome, error)
}

type PredictionLog interface {
	RecentPredictions(ctx context.Context, limit int) ([]db.PredictionRow, error)
}

// Dependencies wires the API. Predictions, Metrics and Events are optional.
type Dependencies struct {
	Models      ModelStatus
	Classifier  Classifier
	Retrainer   Retrainer
	Predictions PredictionLog
	Metrics     *monitoring.MetricsCollector
	Events      *monitoring.EventHub
	Logger      *zap.Logger
}

type API struct {
	models      ModelStatus
	classifier  Classifier
	retrainer   Retrainer
	predictions PredictionLog
	metrics     *monitoring.MetricsCollector
	events      *monitoring.EventHub
	logger      *zap.Logger
}

func NewAPI(deps Dependencies) *API {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = monitoring.NewMetricsCollector()
	}
	return &API{
		models:      deps.Models,
		classifier:  deps.Classifier,
		retrainer:   deps.Retrainer,
		predictions: deps.Predictions,
		metrics:     metrics,
		events:      deps.Events,
		logger:      logger,
	}
}

func (api *API) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", api.handleRoot)
	mux.HandleFunc("POST /classify", api.handleClassify)
	mux.HandleFunc("POST /retrain", api.handleRetrain)

	mux.HandleFunc("GET /api/health", api.handleHealth)
	mux.HandleFunc("GET /api/metrics", api.handleMetrics)
	mux.HandleFunc("GET /api/predictions", api.handlePredictions)
	if api.events != nil {
		mux.HandleFunc("GET /api/ws/events", api.events.HandleWebSocket)
	}
}

func (api *API) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"message": livenessMessage})
}

func (api *API) handleClassify(w http.ResponseWriter, r *http.Request) {
	var payload serving.FeaturePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		// An unloaded model wins over a bad body.
		if _, ok := api.models.Snapshot(); !ok {
			api.respondServingError(w, r, &serving.Error{Kind: serving.KindModelUnavailable, Message: serving.ModelUnavailableMessage})
			return
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: string(serving.KindInvalidInput), Detail: maxErr.Error()})
			return
		}
		api.respondServingError(w, r, &serving.Error{Kind: serving.KindInvalidInput, Message: "request body must be a JSON object with a values field", Err: err})
		return
	}

	resp, err := api.classifier.Classify(r.Context(), &payload)
	if err != nil {
		api.metrics.IncrCounter("classify_errors_total", 1, map[string]string{"kind": string(serving.KindOf(err))})
		api.respondServingError(w, r, err)
		return
	}
	api.metrics.IncrCounter("predictions_total", float64(resp.Count), nil)
	respondJSON(w, http.StatusOK, resp)
}

func (api *API) handleRetrain(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("model")

	outcome, err := api.retrainer.Retrain(r.Context(), target)
	if err != nil {
		api.metrics.IncrCounter("retrain_total", 1, map[string]string{"result": "failed"})
		api.respondServingError(w, r, err)
		return
	}
	api.metrics.IncrCounter("retrain_total", 1, map[string]string{"result": "succeeded"})
	respondJSON(w, http.StatusOK, outcome)
}

type healthResponse struct {
	Status                string     `json:"status"`
	ModelLoaded           bool       `json:"model_loaded"`
	SupportsProbabilities bool       `json:"supports_probabilities"`
	Generation            uint64     `json:"generation,omitempty"`
	LoadedAt              *time.Time `json:"loaded_at,omitempty"`
	ModelPath             string     `json:"model_path"`
}

// handleHealth reports "degraded" while no model is loaded; the process is
// still healthy enough to accept a retrain.
func (api *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap, ok := api.models.Snapshot()
	resp := healthResponse{
		Status:    "degraded",
		ModelPath: api.models.Path(),
	}
	if ok {
		loadedAt := snap.LoadedAt
		resp.Status = "ok"
		resp.ModelLoaded = true
		resp.SupportsProbabilities = snap.SupportsProbabilities()
		resp.Generation = snap.Generation
		resp.LoadedAt = &loadedAt
	}
	respondJSON(w, http.StatusOK, resp)
}

func (api *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snapshot := api.metrics.Snapshot()
	if api.events != nil {
		snapshot["event_clients"] = api.events.ClientCount()
	}
	respondJSON(w, http.StatusOK, snapshot)
}

func (api *API) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if api.predictions == nil {
		respondJSON(w, http.StatusNotFound, errorBody{Error: "NotFound", Detail: "prediction log is disabled"})
		return
	}

	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 || l > 1000 {
			respondJSON(w, http.StatusBadRequest, errorBody{Error: string(serving.KindInvalidInput), Detail: "limit must be between 1 and 1000"})
			return
		}
		limit = l
	}

	rows, err := api.predictions.RecentPredictions(r.Context(), limit)
	if err != nil {
		api.logger.Error("failed to query predictions", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, errorBody{Error: string(serving.KindInternal), Detail: "failed to query predictions"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":       len(rows),
		"predictions": rows,
	})
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// statusFor maps an error kind to the HTTP status the caller sees.
func statusFor(kind serving.ErrorKind) int {
	switch kind {
	case serving.KindInvalidInput:
		return http.StatusBadRequest
	case serving.KindModelUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (api *API) respondServingError(w http.ResponseWriter, r *http.Request, err error) {
	kind := serving.KindOf(err)
	body := errorBody{Error: string(kind)}

	var serr *serving.Error
	switch {
	case errors.As(err, &serr) && kind != serving.KindInternal:
		body.Detail = serr.Message
		if serr.Detail != "" {
			body.Detail = fmt.Sprintf("%s: %s", serr.Message, serr.Detail)
		}
	default:
		// internal causes stay in the log
		body.Detail = "internal server error"
	}

	fields := []zap.Field{
		zap.String("request_id", GetRequestID(r.Context())),
		zap.String("kind", string(kind)),
		zap.Error(err),
	}
	if kind == serving.KindInvalidInput {
		api.logger.Debug("request rejected", fields...)
	} else {
		api.logger.Warn("request failed", fields...)
	}
	respondJSON(w, statusFor(kind), body)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode JSON", zap.Error(err))
	}
}
