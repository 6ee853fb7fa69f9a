package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mlstudio/internal/engine"
	"mlstudio/internal/ml"
	"mlstudio/internal/server"
	"mlstudio/internal/storage"
)

// runCLI executes mlctl against a fresh in-process server.
func runCLI(t *testing.T, url string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--server", url}, args...))
	err := root.Execute()
	return out.String(), err
}

func newTestServer(t *testing.T) string {
	t.Helper()
	eng, err := engine.New(engine.Options{Seed: 42, SampleRows: 25, EpochDelay: time.Millisecond})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	ts := httptest.NewServer(server.New(eng, 0).Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestDatasetsCommand(t *testing.T) {
	url := newTestServer(t)

	out, err := runCLI(t, url, "datasets")
	if err != nil {
		t.Fatalf("datasets: %v", err)
	}
	if !strings.Contains(out, `"default-dataset"`) {
		t.Errorf("datasets output missing default dataset: %s", out)
	}
}

func TestFeaturesTop(t *testing.T) {
	url := newTestServer(t)

	out, err := runCLI(t, url, "features", "--top", "2")
	if err != nil {
		t.Fatalf("features: %v", err)
	}
	var features []map[string]any
	if err := json.Unmarshal([]byte(out), &features); err != nil {
		t.Fatalf("decode features: %v", err)
	}
	if len(features) != 2 {
		t.Errorf("got %d features, want 2", len(features))
	}
}

func TestTrainWaitThenPredict(t *testing.T) {
	url := newTestServer(t)

	out, err := runCLI(t, url, "train", "--name", "cli", "--seed", "5", "--wait")
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	var history []ml.TrainingStep
	if err := json.Unmarshal([]byte(out), &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 10 {
		t.Errorf("got %d epochs, want 10", len(history))
	}

	out, err = runCLI(t, url, "predict", "--credit-score", "760", "--income", "90000")
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	var result ml.PredictionResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode prediction: %v", err)
	}
	if !result.Approved {
		t.Errorf("expected approval, got %+v", result)
	}
}

func TestCommandErrors(t *testing.T) {
	url := newTestServer(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown dataset", []string{"select", "nope"}, "404"},
		{"bad split", []string{"train", "--split", "95"}, "400"},
		{"no active model", []string{"evaluation"}, "412"},
		{"missing argument", []string{"activate"}, "accepts 1 arg"},
		{"bad window", []string{"runs", "--from", "last week"}, "--from"},
		{"runs without archive", []string{"runs"}, "404"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, url, tt.args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestStatusCommand(t *testing.T) {
	url := newTestServer(t)

	out, err := runCLI(t, url, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var sum engine.Summary
	if err := json.Unmarshal([]byte(out), &sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if sum.Datasets != 1 || sum.Models != 0 {
		t.Errorf("got %d datasets and %d models, want 1 and 0", sum.Datasets, sum.Models)
	}
	if len(sum.Stages) != 4 || sum.Stages[2].Status != "No models yet" {
		t.Errorf("unexpected stages: %+v", sum.Stages)
	}
}

func TestRunsAndPredictionsCommands(t *testing.T) {
	store, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	defer store.Close()

	eng, err := engine.New(engine.Options{Seed: 42, SampleRows: 25, Archive: store})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	ts := httptest.NewServer(server.New(eng, 0).Handler())
	defer ts.Close()

	result, err := eng.Train(context.Background(), ml.TrainingConfig{Seed: 1})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if _, err := eng.Predict(context.Background(), ml.PredictionInput{CreditScore: 700}); err != nil {
		t.Fatalf("Predict: %v", err)
	}

	out, err := runCLI(t, ts.URL, "runs", "--dataset", "default-dataset", "--from", "2000-01-01T00:00:00Z")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	var runs []storage.RunRecord
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Model.ID != result.Model.ID {
		t.Errorf("unexpected runs: %+v", runs)
	}

	out, err = runCLI(t, ts.URL, "predictions", result.Model.ID)
	if err != nil {
		t.Fatalf("predictions: %v", err)
	}
	var records []storage.PredictionRecord
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("decode predictions: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("got %d predictions, want 1", len(records))
	}
}
