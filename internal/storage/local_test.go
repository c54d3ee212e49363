package storage

import (
	"context"
	"io"
	"testing"
)

func TestLocalStore_SaveOpenDelete(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	ctx := context.Background()
	key := "2026-08-29/rec-1.wav"
	data := []byte("RIFF fake audio")

	if err := s.Save(ctx, key, data, "audio/wav"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !s.Exists(ctx, key) {
		t.Error("Exists = false after Save")
	}
	if s.LocalPath(key) == "" {
		t.Error("LocalPath = \"\" for a saved file")
	}

	r, err := s.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("read back %q, want %q", got, data)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Exists(ctx, key) {
		t.Error("Exists = true after Delete")
	}
	// Deleting a missing key is not an error.
	if err := s.Delete(ctx, key); err != nil {
		t.Errorf("Delete of missing key: %v", err)
	}
}

func TestLocalStore_MissingKey(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	if s.LocalPath("nope.wav") != "" {
		t.Error("LocalPath should be empty for a missing key")
	}
	if _, err := s.Open(context.Background(), "nope.wav"); err == nil {
		t.Error("Open of missing key should fail")
	}
}
