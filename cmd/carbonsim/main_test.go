package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"carboncore/internal/adapters/runs"
	"carboncore/internal/core"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CARBONCORE_STORAGE_DRIVER", "CARBONCORE_SQLITE_PATH", "CARBONCORE_POSTGRES_DSN",
		"CARBONCORE_BADGER_PATH", "CARBONCORE_INFLUX_URL", "CARBONCORE_BLOB_DRIVER", "CARBONCORE_BLOB_FS_ROOT",
	} {
		t.Setenv(key, "")
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd(&stdout, &stderr)
	root.SetArgs(append([]string{"--env-file", ""}, args...))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestRunPrintsSummary(t *testing.T) {
	isolateEnv(t)
	trace := filepath.Join(t.TempDir(), "spans.jsonl")
	out, err := runCLI(t, "run", "--config", "testdata/reference.yaml", "--run-id", "cli-run", "--trace", trace)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var summary core.RunSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary %q: %v", out, err)
	}
	if summary.RunID != "cli-run" || summary.Succeeded != 3 || summary.Scenario != "reference-thinning" {
		t.Fatalf("unexpected summary %+v", summary)
	}
	spans, err := os.ReadFile(trace)
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	if !strings.Contains(string(spans), `"operation":"simulate"`) {
		t.Fatalf("trace file lacks simulate spans: %s", spans)
	}
}

func TestRunRealizationOverride(t *testing.T) {
	isolateEnv(t)
	t.Setenv("CARBONCORE_STORAGE_DRIVER", "sqlite")
	t.Setenv("CARBONCORE_SQLITE_PATH", filepath.Join(t.TempDir(), "runs.db"))
	out, err := runCLI(t, "run", "-c", "testdata/reference.yaml", "-n", "1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var summary core.RunSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Realizations != 1 || summary.Succeeded != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestRunRequiresConfig(t *testing.T) {
	isolateEnv(t)
	if _, err := runCLI(t, "run"); err == nil || !strings.Contains(err.Error(), "--config") {
		t.Fatalf("expected missing config error, got %v", err)
	}
}

func TestValidateCommand(t *testing.T) {
	isolateEnv(t)
	out, err := runCLI(t, "validate", "-c", "testdata/reference.yaml")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "reference-thinning: ok") {
		t.Fatalf("unexpected output %q", out)
	}

	out, err = runCLI(t, "validate", "-c", "testdata/unbound.yaml")
	if err == nil {
		t.Fatal("expected blocking violations")
	}
	if !strings.Contains(out, "category_binding") || !strings.Contains(out, "veneer") {
		t.Fatalf("expected category_binding violation in %q", out)
	}
}

func TestGraphCommandPrintsReferenceGraph(t *testing.T) {
	isolateEnv(t)
	out, err := runCLI(t, "graph")
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	for _, want := range []string{"sawmill", "lumber", "split", "bind sawlog -> sawmill", "bind residues -> residues"} {
		if !strings.Contains(out, want) {
			t.Fatalf("graph output missing %q:\n%s", want, out)
		}
	}
}

func TestBatchRunsQueuedConfigs(t *testing.T) {
	isolateEnv(t)
	t.Setenv("CARBONCORE_BLOB_DRIVER", "memory")
	out, err := runCLI(t, "batch", "testdata/reference.yaml", "testdata/reference.yaml")
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	var records []runs.Record
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	for _, r := range records {
		if r.Status != runs.StatusSucceeded || r.SummaryKey == "" {
			t.Fatalf("unexpected record %+v", r)
		}
	}
}

func TestBatchReportsFailedRun(t *testing.T) {
	isolateEnv(t)
	if _, err := runCLI(t, "batch", "testdata/unbound.yaml"); err == nil {
		t.Fatal("expected failed batch")
	}
}

func TestEnvFileIsLoaded(t *testing.T) {
	const key = "CARBONCORE_CLI_TEST_MARKER"
	t.Setenv(key, "")
	os.Unsetenv(key)
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(key+"=loaded\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	if err := loadEnv(path); err != nil {
		t.Fatalf("load env: %v", err)
	}
	if got := os.Getenv(key); got != "loaded" {
		t.Fatalf("%s = %q", key, got)
	}
	if err := loadEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing env file should be ignored: %v", err)
	}
}

func TestExecuteReturnsExitCode(t *testing.T) {
	isolateEnv(t)
	if code := execute(context.Background(), []string{"--env-file", "", "graph"}); code != 0 {
		t.Fatalf("graph exit code %d", code)
	}
	if code := execute(context.Background(), []string{"--env-file", "", "nope"}); code != 1 {
		t.Fatalf("unknown command exit code %d", code)
	}
}
