package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"carboncore/internal/blob/core"
)

func TestStore_PutGetListDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	meta := map[string]string{"run": "r1"}
	if _, err := s.Put(ctx, "runs/r1/b.json", bytes.NewReader([]byte("bb")), core.PutOptions{ContentType: "application/json", Metadata: meta}); err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["run"] = "mutated"
	if _, err := s.Put(ctx, "runs/r1/a.json", bytes.NewReader([]byte("a")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := s.Put(ctx, "runs/r1/a.json", bytes.NewReader([]byte("x")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	info, rc, err := s.Get(ctx, "runs/r1/b.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "bb" || info.Size != 2 || info.Metadata["run"] != "r1" {
		t.Fatalf("unexpected blob %q %+v", data, info)
	}

	list, err := s.List(ctx, "runs/r1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "runs/r1/a.json" || list[1].Key != "runs/r1/b.json" {
		t.Fatalf("unexpected list %+v", list)
	}

	ok, err := s.Delete(ctx, "runs/r1/a.json")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, _ := s.Delete(ctx, "runs/r1/a.json"); ok {
		t.Fatalf("expected second delete to report missing")
	}
	if _, err := s.Head(ctx, "runs/r1/a.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := s.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_PutCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Put(ctx, "k", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
