package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"mlstudio/internal/analytics"
	"mlstudio/internal/dataset"
	"mlstudio/internal/engine"
	"mlstudio/internal/ml"
	"mlstudio/internal/storage"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

const defaultChartHeight = 250.0

// IDRequest selects a dataset or model by id.
type IDRequest struct {
	ID string `json:"id"`
}

// TrainingStatus is the poll view of the trainer.
type TrainingStatus struct {
	IsTraining bool              `json:"isTraining"`
	History    []ml.TrainingStep `json:"history"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger)

	r.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/summary", s.handleSummary).Methods("GET")
	api.HandleFunc("/datasets", s.handleListDatasets).Methods("GET")
	api.HandleFunc("/datasets", s.handleRegisterDataset).Methods("POST")
	api.HandleFunc("/datasets/active", s.handleActiveDataset).Methods("GET")
	api.HandleFunc("/datasets/active", s.handleSelectDataset).Methods("PUT")
	api.HandleFunc("/datasets/active/features", s.handleFeatures).Methods("GET")
	api.HandleFunc("/datasets/active/histogram/{feature}", s.handleHistogram).Methods("GET")

	api.HandleFunc("/training", s.handleStartTraining).Methods("POST")
	api.HandleFunc("/training", s.handleTrainingStatus).Methods("GET")
	api.HandleFunc("/training/stream", s.handleStream).Methods("GET")
	api.HandleFunc("/runs", s.handleRuns).Methods("GET")

	api.HandleFunc("/models", s.handleListModels).Methods("GET")
	api.HandleFunc("/models/active", s.handleActiveModel).Methods("GET")
	api.HandleFunc("/models/active", s.handleActivateModel).Methods("PUT")
	api.HandleFunc("/models/rollback", s.handleRollback).Methods("POST")
	api.HandleFunc("/models/{id}/archive", s.handleArchiveModel).Methods("POST")
	api.HandleFunc("/models/{id}/predictions", s.handleModelPredictions).Methods("GET")

	api.HandleFunc("/evaluation", s.handleEvaluation).Methods("GET")
	api.HandleFunc("/predictions", s.handlePredict).Methods("POST")

	api.HandleFunc("/charts/importance", s.handleImportanceChart).Methods("GET")
	api.HandleFunc("/charts/histogram/{feature}", s.handleHistogramChart).Methods("GET")
	api.HandleFunc("/charts/training/{series}", s.handleTrainingChart).Methods("GET")
	api.HandleFunc("/charts/metrics", s.handleMetricsChart).Methods("GET")

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"isTraining": s.engine.IsTraining(),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Summary())
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Datasets())
}

func (s *Server) handleRegisterDataset(w http.ResponseWriter, r *http.Request) {
	var ds dataset.Dataset
	if err := json.NewDecoder(r.Body).Decode(&ds); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if ds.ID == "" {
		writeError(w, r, http.StatusBadRequest, errors.New("dataset id is required"))
		return
	}
	if ds.RowCount == 0 {
		ds.RowCount = len(ds.Rows)
	}
	if ds.ColumnCount == 0 {
		ds.ColumnCount = len(ds.Features)
	}

	if err := s.engine.RegisterDataset(&ds); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ds.Summary())
}

func (s *Server) handleActiveDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := s.engine.ActiveDataset()
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (s *Server) handleSelectDataset(w http.ResponseWriter, r *http.Request) {
	var req IDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.SelectDataset(req.ID); err != nil {
		writeEngineError(w, r, err)
		return
	}
	ds, err := s.engine.ActiveDataset()
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	features, err := s.engine.FeatureImportance()
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, features)
}

func (s *Server) handleHistogram(w http.ResponseWriter, r *http.Request) {
	h, err := s.engine.Histogram(mux.Vars(r)["feature"])
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleStartTraining(w http.ResponseWriter, r *http.Request) {
	var cfg ml.TrainingConfig
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			writeError(w, r, http.StatusBadRequest, err)
			return
		}
	}

	if _, err := s.engine.StartTraining(r.Context(), cfg); err != nil {
		writeEngineError(w, r, err)
		return
	}

	log.Ctx(r.Context()).Info().Str("model_name", cfg.ModelName).Msg("Training accepted")
	writeJSON(w, http.StatusAccepted, TrainingStatus{IsTraining: true, History: []ml.TrainingStep{}})
}

func (s *Server) handleTrainingStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TrainingStatus{
		IsTraining: s.engine.IsTraining(),
		History:    s.engine.History(),
	})
}

// handleRuns lists archived runs, optionally narrowed by ?dataset= and an
// RFC 3339 ?from=/?to= window.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	runs, err := s.engine.ArchivedRuns(r.URL.Query().Get("dataset"), window)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	if runs == nil {
		runs = []storage.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleModelPredictions(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	records, err := s.engine.ArchivedPredictions(mux.Vars(r)["id"], window)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	if records == nil {
		records = []storage.PredictionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func parseWindow(r *http.Request) (engine.Window, error) {
	var window engine.Window
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return engine.Window{}, fmt.Errorf("invalid from: %w", err)
		}
		window.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return engine.Window{}, fmt.Errorf("invalid to: %w", err)
		}
		window.To = t
	}
	return window, nil
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Models())
}

func (s *Server) handleActiveModel(w http.ResponseWriter, r *http.Request) {
	m, err := s.engine.ActiveModel()
	if errors.Is(err, ml.ErrNoActiveModel) {
		writeError(w, r, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleActivateModel(w http.ResponseWriter, r *http.Request) {
	var req IDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.ActivateModel(req.ID); err != nil {
		writeEngineError(w, r, err)
		return
	}
	s.handleActiveModel(w, r)
}

func (s *Server) handleArchiveModel(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ArchiveModel(mux.Vars(r)["id"]); err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	m, err := s.engine.RollbackModel()
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleEvaluation(w http.ResponseWriter, r *http.Request) {
	eval, err := s.engine.Evaluation()
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eval)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var input ml.PredictionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	result, err := s.engine.Predict(r.Context(), input)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleImportanceChart(w http.ResponseWriter, r *http.Request) {
	features, err := s.engine.FeatureImportance()
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics.BarLayout(analytics.ImportancePoints(features), chartHeight(r)))
}

func (s *Server) handleHistogramChart(w http.ResponseWriter, r *http.Request) {
	h, err := s.engine.Histogram(mux.Vars(r)["feature"])
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics.BarLayout(h.Points(), chartHeight(r)))
}

func (s *Server) handleTrainingChart(w http.ResponseWriter, r *http.Request) {
	series := mux.Vars(r)["series"]
	if series != "loss" && series != "accuracy" {
		writeError(w, r, http.StatusNotFound, errors.New("unknown training series "+series))
		return
	}

	history := s.engine.History()
	samples := make([]analytics.XY, len(history))
	for i, step := range history {
		y := step.Loss
		if series == "accuracy" {
			y = step.Accuracy
		}
		samples[i] = analytics.XY{X: float64(step.Epoch), Y: y}
	}
	writeJSON(w, http.StatusOK, analytics.LineLayout(samples, chartHeight(r)))
}

func (s *Server) handleMetricsChart(w http.ResponseWriter, r *http.Request) {
	eval, err := s.engine.Evaluation()
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	series := eval.Report.Series
	points := make([]analytics.Point, len(series))
	for i, p := range series {
		points[i] = analytics.Point{Label: p.Label, Value: p.Value}
	}
	writeJSON(w, http.StatusOK, analytics.BarLayout(points, chartHeight(r)))
}

// chartHeight reads ?height=, falling back to the default for missing or
// non-positive values.
func chartHeight(r *http.Request) float64 {
	if v := r.URL.Query().Get("height"); v != "" {
		if h, err := strconv.ParseFloat(v, 64); err == nil && h > 0 {
			return h
		}
	}
	return defaultChartHeight
}
