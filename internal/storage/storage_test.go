package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mlstudio/internal/evaluation"
	"mlstudio/internal/ml"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testRun(datasetID, modelID string, completed time.Time) RunRecord {
	return RunRecord{
		DatasetID:   datasetID,
		CompletedAt: completed,
		Model: ml.Model{
			ID:        modelID,
			Name:      "Model " + modelID,
			Algorithm: "Random Forest",
			DatasetID: datasetID,
			Version:   "1.0",
			Status:    ml.StatusActive,
		},
		Metrics: evaluation.Metrics{
			Accuracy: 0.89,
			AUC:      0.91,
			ConfusionMatrix: evaluation.ConfusionMatrix{
				TruePositives: 430, FalsePositives: 60, TrueNegatives: 440, FalseNegatives: 70,
			},
		},
		History: []ml.TrainingStep{{Epoch: 1, Loss: 0.45, Accuracy: 0.72}},
	}
}

func TestNew(t *testing.T) {
	tempDir := t.TempDir()

	store, err := New(tempDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	if store.db == nil {
		t.Error("Store database is nil")
	}

	dbPath := filepath.Join(tempDir, DBFile)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestNew_InvalidPath(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing", "dir"))
	if err == nil {
		t.Error("Expected error for invalid path, got nil")
	}
}

func TestStore_Close(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Errorf("Error closing store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Error closing already closed store: %v", err)
	}
}

func TestStore_CloseNilDB(t *testing.T) {
	store := &Store{db: nil}
	if err := store.Close(); err != nil {
		t.Errorf("Expected no error for nil db, got: %v", err)
	}
}

func TestStoreRun_ListRuns(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// stored out of order and across datasets
	runs := []RunRecord{
		testRun("ds-b", "m2", base.Add(2*time.Minute)),
		testRun("ds-a", "m1", base.Add(time.Minute)),
		testRun("ds-a", "m3", base.Add(3*time.Minute)),
	}
	for _, run := range runs {
		if err := store.StoreRun(run); err != nil {
			t.Fatalf("StoreRun failed: %v", err)
		}
	}

	got, err := store.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 runs, got %d", len(got))
	}

	wantOrder := []string{"m1", "m2", "m3"}
	for i, id := range wantOrder {
		if got[i].Model.ID != id {
			t.Errorf("run %d: expected model %s, got %s", i, id, got[i].Model.ID)
		}
	}

	first := got[0]
	if first.Metrics.ConfusionMatrix.TruePositives != 430 {
		t.Errorf("Expected confusion matrix to round trip, got %+v", first.Metrics.ConfusionMatrix)
	}
	if len(first.History) != 1 || first.History[0].Epoch != 1 {
		t.Errorf("Expected history to round trip, got %+v", first.History)
	}
	if !first.CompletedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("Expected completion time %v, got %v", base.Add(time.Minute), first.CompletedAt)
	}
}

func TestListRuns_Empty(t *testing.T) {
	store := newTestStore(t)

	runs, err := store.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("Expected no runs, got %d", len(runs))
	}
}

func TestGetRuns(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		run := testRun("ds-a", fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Minute))
		if err := store.StoreRun(run); err != nil {
			t.Fatalf("StoreRun failed: %v", err)
		}
	}
	if err := store.StoreRun(testRun("ds-ab", "other", base.Add(2*time.Minute))); err != nil {
		t.Fatalf("StoreRun failed: %v", err)
	}

	got, err := store.GetRuns("ds-a", base.Add(time.Minute), base.Add(3*time.Minute))
	if err != nil {
		t.Fatalf("GetRuns failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 runs in range, got %d", len(got))
	}
	for i, run := range got {
		want := fmt.Sprintf("m%d", i+1)
		if run.Model.ID != want {
			t.Errorf("run %d: expected %s, got %s", i, want, run.Model.ID)
		}
		if run.DatasetID != "ds-a" {
			t.Errorf("run %d: leaked dataset %s", i, run.DatasetID)
		}
	}
}

func TestStorePrediction_GetPredictions(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		record := PredictionRecord{
			ModelID:   "m1",
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Input:     ml.PredictionInput{CreditScore: 720, Income: 80000},
			Result:    ml.PredictionResult{Approved: true, Probability: 0.7, Confidence: 0.4},
		}
		if err := store.StorePrediction(record); err != nil {
			t.Fatalf("StorePrediction failed: %v", err)
		}
	}

	got, err := store.GetPredictions("m1", base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetPredictions failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 predictions, got %d", len(got))
	}
	if got[0].Input.CreditScore != 720 || !got[0].Result.Approved {
		t.Errorf("Prediction did not round trip: %+v", got[0])
	}

	none, err := store.GetPredictions("m2", base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetPredictions failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Expected no predictions for unknown model, got %d", len(none))
	}
}

func TestConcurrentAccess(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().UTC()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			run := testRun("ds", fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Millisecond))
			if err := store.StoreRun(run); err != nil {
				t.Errorf("StoreRun failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	runs, err := store.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 10 {
		t.Errorf("Expected 10 runs, got %d", len(runs))
	}
}
