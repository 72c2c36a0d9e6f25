package testutil

import (
	"context"
	"database/sql/driver"
	"testing"
)

func TestStubDBUpsertsAndFilters(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	if err := conn.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	insert := "INSERT INTO results (run_id, seq, payload) VALUES ($1,$2,$3) ON CONFLICT (run_id, seq) DO UPDATE SET payload=EXCLUDED.payload"
	for _, args := range [][]driver.NamedValue{
		{{Value: "a"}, {Value: int64(2)}, {Value: "x"}},
		{{Value: "a"}, {Value: int64(1)}, {Value: "y"}},
		{{Value: "b"}, {Value: int64(1)}, {Value: "z"}},
		{{Value: "a"}, {Value: int64(2)}, {Value: "w"}},
	} {
		if _, err := conn.ExecContext(ctx, insert, args); err != nil {
			t.Fatalf("ExecContext insert: %v", err)
		}
	}
	if len(conn.Tables["results"]) != 3 {
		t.Fatalf("expected upsert to keep 3 rows, got %v", conn.Tables["results"])
	}

	rows, err := conn.QueryContext(ctx, "SELECT seq, payload FROM results WHERE run_id = $1 ORDER BY seq", []driver.NamedValue{{Value: "a"}})
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	defer func() { _ = rows.Close() }()
	dest := make([]driver.Value, 2)
	var got []driver.Value
	for rows.Next(dest) == nil {
		got = append(got, dest[0], dest[1])
	}
	want := []driver.Value{int64(1), "y", int64(2), "w"}
	if len(got) != len(want) {
		t.Fatalf("unexpected rows %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("row value %d: want %v got %v", i, want[i], got[i])
		}
	}
}

func TestStubDBRejectsUnknownStatements(t *testing.T) {
	_, conn := NewStubDB()
	if _, err := conn.QueryContext(context.Background(), "UPDATE results SET x=1", nil); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := conn.ExecContext(context.Background(), "INSERT INTO (", nil); err == nil {
		t.Fatalf("expected parse error")
	}
}
