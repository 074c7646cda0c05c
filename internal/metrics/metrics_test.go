package metrics

import (
	"errors"
	"testing"
	"time"
)

type capturingBackend struct {
	counters  map[string]float64
	labels    map[string]Labels
	durations map[string]float64
	flushed   int
}

func newCapturing() *capturingBackend {
	return &capturingBackend{
		counters:  map[string]float64{},
		labels:    map[string]Labels{},
		durations: map[string]float64{},
	}
}

func (b *capturingBackend) IncCounter(name string, delta float64, l Labels) {
	b.counters[name] += delta
	b.labels[name] = l
}

func (b *capturingBackend) ObserveDuration(name string, s float64, l Labels) {
	b.durations[name] = s
	b.labels[name] = l
}

func (b *capturingBackend) Flush() error {
	b.flushed++
	return nil
}

// restoreBackend resets the global backend after a test. The backend is
// process-global, so these tests cannot run in parallel.
func restoreBackend(t *testing.T) {
	t.Helper()
	t.Cleanup(func() { backend = nopBackend{} })
}

// TestRecordStep labels counters and durations with job, step, and status.
func TestRecordStep(t *testing.T) {
	restoreBackend(t)
	b := newCapturing()
	SetBackend(b)

	RecordStep("job1", "ingest:orders", nil, 2*time.Second)
	RecordStep("job1", "ingest:orders", errors.New("boom"), time.Second)

	if b.counters["etl_step_total"] != 2 {
		t.Errorf("etl_step_total = %v", b.counters["etl_step_total"])
	}
	if b.durations["etl_step_duration_seconds"] != 1 {
		t.Errorf("last duration = %v", b.durations["etl_step_duration_seconds"])
	}
	l := b.labels["etl_step_total"]
	if l["job"] != "job1" || l["step"] != "ingest:orders" || l["status"] != "failure" {
		t.Errorf("labels = %v", l)
	}
}

// TestRecordRowsAndModels checks delta accumulation.
func TestRecordRowsAndModels(t *testing.T) {
	restoreBackend(t)
	b := newCapturing()
	SetBackend(b)

	RecordRows("j", "loaded", 100)
	RecordRows("j", "loaded", 50)
	RecordModels("j", "built", 6)

	if b.counters["etl_rows_total"] != 150 {
		t.Errorf("etl_rows_total = %v", b.counters["etl_rows_total"])
	}
	if b.counters["etl_models_total"] != 6 {
		t.Errorf("etl_models_total = %v", b.counters["etl_models_total"])
	}
}

// TestSetBackendNil keeps the current backend.
func TestSetBackendNil(t *testing.T) {
	restoreBackend(t)
	b := newCapturing()
	SetBackend(b)
	SetBackend(nil)

	RecordRows("j", "loaded", 1)
	if b.counters["etl_rows_total"] != 1 {
		t.Error("nil SetBackend replaced the backend")
	}
}

// TestFlushDelegates reaches the installed backend.
func TestFlushDelegates(t *testing.T) {
	restoreBackend(t)
	b := newCapturing()
	SetBackend(b)

	if err := Flush(); err != nil {
		t.Fatal(err)
	}
	if b.flushed != 1 {
		t.Errorf("flushed = %d", b.flushed)
	}
}

// TestNopDefault makes metric calls safe without configuration.
func TestNopDefault(t *testing.T) {
	restoreBackend(t)
	RecordStep("j", "s", nil, time.Second)
	RecordRows("j", "loaded", 1)
	if err := Flush(); err != nil {
		t.Fatal(err)
	}
}
