package engine

import "mlstudio/internal/ml"

// Run is a handle on a training run started in the background.
type Run struct {
	done   chan struct{}
	result ml.Result
	err    error
}

func newRun() *Run {
	return &Run{done: make(chan struct{})}
}

func (r *Run) finish(result ml.Result, err error) {
	r.result = result
	r.err = err
	close(r.done)
}

// Done is closed once the run has committed or failed.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run completes.
func (r *Run) Wait() (ml.Result, error) {
	<-r.done
	return r.result, r.err
}

type nopMetrics struct {
	ml.NopMetrics
}

func (nopMetrics) ModelsRegisteredSet(int)   {}
func (nopMetrics) DatasetsRegisteredSet(int) {}
