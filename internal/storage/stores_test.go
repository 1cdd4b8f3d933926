package storage_test

import (
	"context"
	"testing"

	"hoodrate/internal/shared"
	"hoodrate/internal/storage"
)

func TestOpen_Memory(t *testing.T) {
	b, closeFn, err := storage.Open(context.Background(), shared.Config{StoreDriver: shared.DriverMemory})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if b == nil || closeFn == nil {
		t.Fatal("nil backend or close func")
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, _, err := storage.Open(context.Background(), shared.Config{StoreDriver: "sqlite"}); err == nil {
		t.Fatal("expected error")
	}
}
