package health

import (
	"context"
	"errors"
	"testing"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	down := errors.New("connection refused")

	r.Register("storage", CheckerFunc(func(context.Context) error { return nil }))
	r.Register("redis", CheckerFunc(func(context.Context) error { return down }))

	results := r.CheckAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("CheckAll() = %d results, want 2", len(results))
	}
	if results["storage"] != nil {
		t.Errorf("storage: unexpected error %v", results["storage"])
	}
	if !errors.Is(results["redis"], down) {
		t.Errorf("redis: got %v, want %v", results["redis"], down)
	}

	r.Register("redis", CheckerFunc(func(context.Context) error { return nil }))
	if err := r.CheckAll(context.Background())["redis"]; err != nil {
		t.Errorf("re-registered redis: unexpected error %v", err)
	}
}
