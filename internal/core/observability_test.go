package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestExpvarMetricsRecorderAggregates(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	if !strings.HasPrefix(rec.Name(), "carboncore_metrics_") {
		t.Fatalf("unexpected generated name %q", rec.Name())
	}
	rec.Observe(context.Background(), "simulate", true, 10*time.Millisecond)
	rec.Observe(context.Background(), "simulate", false, 30*time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Second)

	st := rec.Snapshot().Operations["simulate"]
	if st.Successes != 1 || st.Failures != 1 {
		t.Fatalf("unexpected counts %+v", st)
	}
	if st.MaxMS != 30 || st.MeanMS() != 20 {
		t.Fatalf("unexpected durations %+v mean %v", st, st.MeanMS())
	}
	if len(rec.Snapshot().Operations) != 1 {
		t.Fatal("empty operation name should be ignored")
	}
	if v := expvar.Get(rec.Name()); v == nil || !strings.Contains(v.String(), "simulate") {
		t.Fatalf("expvar export missing operation: %v", v)
	}
}

func TestJSONTracerLinksChildSpans(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	svc := NewService(nil, WithTracer(tracer), WithIDGenerator(sequentialIDs("run")))
	if _, err := svc.Run(context.Background(), testScenario(t), 2); err != nil {
		t.Fatalf("run: %v", err)
	}

	entries := tracer.Entries()
	var run JSONTraceEntry
	for _, e := range entries {
		if e.Operation == "run" {
			run = e
		}
	}
	if run.ID == 0 || run.Parent != 0 {
		t.Fatalf("expected a root run span, got %+v", run)
	}
	children := 0
	for _, e := range entries {
		if e.Operation == "simulate" || e.Operation == "store" {
			if e.Parent != run.ID {
				t.Fatalf("span %+v not parented to run %d", e, run.ID)
			}
			children++
		}
	}
	if children != 4 {
		t.Fatalf("expected 4 child spans, got %d", children)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != len(entries) {
		t.Fatalf("wrote %d lines for %d spans", len(lines), len(entries))
	}
	var decoded JSONTraceEntry
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("decode span: %v", err)
	}
}

func TestJSONTracerRecordsErrorsOnce(t *testing.T) {
	tracer := NewJSONTracer(nil)
	_, span := tracer.Start(context.Background(), "store")
	span.End(errors.New("boom"))
	span.End(nil)
	entries := tracer.Entries()
	if len(entries) != 1 || entries[0].Status != "error" || entries[0].Error != "boom" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	svc := NewService(nil, WithMetricsRecorder(rec), WithIDGenerator(sequentialIDs("run")))
	if _, err := svc.Run(context.Background(), testScenario(t), 3); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := testutil.ToFloat64(rec.operations.WithLabelValues("simulate", "success")); got != 3 {
		t.Fatalf("simulate successes = %v", got)
	}
	if got := testutil.ToFloat64(rec.operations.WithLabelValues("run", "success")); got != 1 {
		t.Fatalf("run successes = %v", got)
	}
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestZapLoggerWritesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	svc := NewService(nil, WithLogger(NewZapLogger(zap.New(core))), WithIDGenerator(sequentialIDs("run")))
	if _, err := svc.Run(context.Background(), testScenario(t), 1); err != nil {
		t.Fatalf("run: %v", err)
	}
	started := logs.FilterMessage("run started").All()
	if len(started) != 1 {
		t.Fatalf("expected one run started entry, got %d", len(started))
	}
	if got := started[0].ContextMap()["run_id"]; got != "run-1" {
		t.Fatalf("run_id field = %v", got)
	}
	if logs.FilterMessage("realization stage").Len() != len(pipeline) {
		t.Fatalf("expected one debug entry per stage, got %d", logs.FilterMessage("realization stage").Len())
	}
}

func TestNilZapLoggerIsNoop(t *testing.T) {
	if _, ok := NewZapLogger(nil).(noopLogger); !ok {
		t.Fatal("expected noop logger")
	}
}
