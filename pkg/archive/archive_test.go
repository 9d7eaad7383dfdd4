package archive

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"slices"
	"strings"
	"testing"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return New(store)
}

func TestArchiveSaveOpen(t *testing.T) {
	ctx := context.Background()
	a := newTestArchive(t)

	const data = "RIFF fake wav bytes"
	path, err := a.Save(ctx, "conv-1", "m1", strings.NewReader(data))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if path != "recordings/conv-1/m1.wav" {
		t.Errorf("Save path = %q", path)
	}

	r, err := a.Open(ctx, "conv-1", "m1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != data {
		t.Fatalf("Open = %q, want %q", got, data)
	}
}

func TestArchiveOpenMissing(t *testing.T) {
	a := newTestArchive(t)
	_, err := a.Open(context.Background(), "conv-1", "nope")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Open missing = %v, want fs.ErrNotExist", err)
	}
}

func TestArchiveRecordings(t *testing.T) {
	ctx := context.Background()
	a := newTestArchive(t)

	for _, id := range []string{"m2", "m1"} {
		if _, err := a.Save(ctx, "conv-1", id, strings.NewReader("x")); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}
	if _, err := a.Save(ctx, "conv-2", "m9", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}

	got, err := a.Recordings(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Recordings: %v", err)
	}
	if want := []string{"m1", "m2"}; !slices.Equal(got, want) {
		t.Fatalf("Recordings = %v, want %v", got, want)
	}
}

func TestArchiveRemove(t *testing.T) {
	ctx := context.Background()
	a := newTestArchive(t)

	if _, err := a.Save(ctx, "conv-1", "m1", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}
	if err := a.Remove(ctx, "conv-1", "m1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := a.Open(ctx, "conv-1", "m1"); err == nil {
		t.Fatal("recording still readable after Remove")
	}
	// Idempotent.
	if err := a.Remove(ctx, "conv-1", "m1"); err != nil {
		t.Fatalf("Remove again: %v", err)
	}
}

func TestArchiveIDValidation(t *testing.T) {
	ctx := context.Background()
	a := newTestArchive(t)

	if _, err := a.Save(ctx, "", "m1", strings.NewReader("x")); err == nil {
		t.Error("Save without conversation id should fail")
	}
	if _, err := a.Save(ctx, "../evil", "m1", strings.NewReader("x")); err == nil {
		t.Error("Save with path separator in id should fail")
	}
}
