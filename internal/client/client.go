// Package client is a REST client for the studio HTTP API.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"mlstudio/internal/analytics"
	"mlstudio/internal/dataset"
	"mlstudio/internal/engine"
	"mlstudio/internal/ml"
	"mlstudio/internal/server"
	"mlstudio/internal/storage"

	"github.com/go-resty/resty/v2"
)

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mlstudio: %d %s", e.StatusCode, e.Message)
}

// StatusCode returns the HTTP status of an APIError, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

type Client struct {
	base string
	rest *resty.Client
}

func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second)
	}
	r.SetHeader("Accept", "application/json")
	return &Client{base: base, rest: r}
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	req := c.rest.R().
		SetContext(ctx).
		SetError(&server.ErrorResponse{})
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, c.base+path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		msg := resp.Status()
		if e, ok := resp.Error().(*server.ErrorResponse); ok && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode(), Message: msg}
	}
	return nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) Datasets(ctx context.Context) ([]dataset.Dataset, error) {
	var out []dataset.Dataset
	err := c.do(ctx, http.MethodGet, "/api/datasets", nil, &out)
	return out, err
}

func (c *Client) RegisterDataset(ctx context.Context, ds dataset.Dataset) (dataset.Dataset, error) {
	var out dataset.Dataset
	err := c.do(ctx, http.MethodPost, "/api/datasets", ds, &out)
	return out, err
}

func (c *Client) SelectDataset(ctx context.Context, id string) (dataset.Dataset, error) {
	var out dataset.Dataset
	err := c.do(ctx, http.MethodPut, "/api/datasets/active", server.IDRequest{ID: id}, &out)
	return out, err
}

func (c *Client) ActiveDataset(ctx context.Context) (dataset.Dataset, error) {
	var out dataset.Dataset
	err := c.do(ctx, http.MethodGet, "/api/datasets/active", nil, &out)
	return out, err
}

// Features returns the active dataset's features ranked by importance.
func (c *Client) Features(ctx context.Context) ([]dataset.Feature, error) {
	var out []dataset.Feature
	err := c.do(ctx, http.MethodGet, "/api/datasets/active/features", nil, &out)
	return out, err
}

func (c *Client) Histogram(ctx context.Context, feature string) (analytics.Histogram, error) {
	var out analytics.Histogram
	err := c.do(ctx, http.MethodGet, "/api/datasets/active/histogram/"+feature, nil, &out)
	return out, err
}

// StartTraining submits a run. It returns as soon as the server accepts it.
func (c *Client) StartTraining(ctx context.Context, cfg ml.TrainingConfig) error {
	return c.do(ctx, http.MethodPost, "/api/training", cfg, nil)
}

func (c *Client) TrainingStatus(ctx context.Context) (server.TrainingStatus, error) {
	var out server.TrainingStatus
	err := c.do(ctx, http.MethodGet, "/api/training", nil, &out)
	return out, err
}

// WaitForTraining polls until no run is in flight.
func (c *Client) WaitForTraining(ctx context.Context, interval time.Duration) (server.TrainingStatus, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.TrainingStatus(ctx)
		if err != nil {
			return server.TrainingStatus{}, err
		}
		if !status.IsTraining {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) Models(ctx context.Context) ([]ml.Model, error) {
	var out []ml.Model
	err := c.do(ctx, http.MethodGet, "/api/models", nil, &out)
	return out, err
}

func (c *Client) ActiveModel(ctx context.Context) (ml.Model, error) {
	var out ml.Model
	err := c.do(ctx, http.MethodGet, "/api/models/active", nil, &out)
	return out, err
}

func (c *Client) ActivateModel(ctx context.Context, id string) (ml.Model, error) {
	var out ml.Model
	err := c.do(ctx, http.MethodPut, "/api/models/active", server.IDRequest{ID: id}, &out)
	return out, err
}

func (c *Client) ArchiveModel(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/models/"+id+"/archive", nil, nil)
}

func (c *Client) Rollback(ctx context.Context) (ml.Model, error) {
	var out ml.Model
	err := c.do(ctx, http.MethodPost, "/api/models/rollback", nil, &out)
	return out, err
}

func (c *Client) Evaluation(ctx context.Context) (engine.Evaluation, error) {
	var out engine.Evaluation
	err := c.do(ctx, http.MethodGet, "/api/evaluation", nil, &out)
	return out, err
}

func (c *Client) Predict(ctx context.Context, input ml.PredictionInput) (ml.PredictionResult, error) {
	var out ml.PredictionResult
	err := c.do(ctx, http.MethodPost, "/api/predictions", input, &out)
	return out, err
}

// Summary returns the studio overview.
func (c *Client) Summary(ctx context.Context) (engine.Summary, error) {
	var out engine.Summary
	err := c.do(ctx, http.MethodGet, "/api/summary", nil, &out)
	return out, err
}

// Runs lists archived runs. An empty datasetID lists every dataset.
func (c *Client) Runs(ctx context.Context, datasetID string, window engine.Window) ([]storage.RunRecord, error) {
	q := windowQuery(window)
	if datasetID != "" {
		q.Set("dataset", datasetID)
	}
	var out []storage.RunRecord
	err := c.do(ctx, http.MethodGet, withQuery("/api/runs", q), nil, &out)
	return out, err
}

// Predictions lists the archived predictions of one model.
func (c *Client) Predictions(ctx context.Context, modelID string, window engine.Window) ([]storage.PredictionRecord, error) {
	path := "/api/models/" + url.PathEscape(modelID) + "/predictions"
	var out []storage.PredictionRecord
	err := c.do(ctx, http.MethodGet, withQuery(path, windowQuery(window)), nil, &out)
	return out, err
}

func windowQuery(w engine.Window) url.Values {
	q := url.Values{}
	if !w.From.IsZero() {
		q.Set("from", w.From.Format(time.RFC3339))
	}
	if !w.To.IsZero() {
		q.Set("to", w.To.Format(time.RFC3339))
	}
	return q
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
