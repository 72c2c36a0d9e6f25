package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"carboncore/internal/processor"
	"carboncore/pkg/domain"
)

type logEntry struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *captureLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: append([]any(nil), args...)})
	l.mu.Unlock()
}

func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args) }

func (l *captureLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			return true
		}
	}
	return false
}

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStubClock() *stubClock {
	return &stubClock{now: time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type metricCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	mu    sync.Mutex
	calls []metricCall
}

func (m *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	m.mu.Lock()
	m.calls = append(m.calls, metricCall{op: op, success: success})
	m.mu.Unlock()
}

func (m *captureMetricsRecorder) has(op string, success bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calls {
		if c.op == op && c.success == success {
			return true
		}
	}
	return false
}

func (m *captureMetricsRecorder) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.op == op {
			n++
		}
	}
	return n
}

type captureTracer struct {
	mu    sync.Mutex
	spans []*captureSpan
}

type captureSpan struct {
	op    string
	err   error
	ended bool
}

func (s *captureSpan) End(err error) {
	s.err = err
	s.ended = true
}

func (t *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	span := &captureSpan{op: op}
	t.mu.Lock()
	t.spans = append(t.spans, span)
	t.mu.Unlock()
	return ctx, span
}

func (t *captureTracer) ops() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.spans))
	for _, s := range t.spans {
		out = append(out, s.op)
	}
	return out
}

// testScenario harvests three uneven-aged stands ten years apart and extends
// the time table by twenty years.
func testScenario(t *testing.T) *Scenario {
	t.Helper()
	graph, err := processor.ReferenceGraph()
	if err != nil {
		t.Fatalf("reference graph: %v", err)
	}
	stands := make([]Stand, 3)
	for i := range stands {
		stands[i] = Stand{
			Date: i * 10,
			Harvest: []WoodPiece{
				{Category: processor.CategorySawlog, Amounts: domain.NewAmountMap(10, 5, 2.5)},
				{Category: processor.CategoryPulpwood, Amounts: domain.NewAmountMap(4, 2, 1)},
				{Category: processor.CategoryResidues, Amounts: domain.NewAmountMap(2, 1, 0.5)},
			},
			Biomass: domain.Biomass{AboveGround: 50 + float64(i), BelowGround: 12},
		}
	}
	return &Scenario{
		Name:           "test",
		Graph:          graph,
		Stands:         stands,
		ExtensionYears: 20,
		Step:           10,
	}
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}
