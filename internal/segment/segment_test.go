package segment

import (
	"testing"

	"github.com/nyasuto/lsmkv/internal/memtable"
)

func makeEntries(pairs ...string) []memtable.Entry {
	var entries []memtable.Entry
	for i := 0; i+1 < len(pairs); i += 2 {
		entries = append(entries, memtable.Entry{Key: pairs[i], Value: pairs[i+1]})
	}
	return entries
}

func TestCreateAndGet(t *testing.T) {
	dir := t.TempDir()
	entries := makeEntries("a", "1", "b", "2", "c", "3")

	seg, err := CreateFromMemtable(dir, 1, 4096, 1000, 0.01, entries)
	if err != nil {
		t.Fatalf("CreateFromMemtable: %v", err)
	}

	for _, want := range []struct{ k, v string }{{"a", "1"}, {"b", "2"}, {"c", "3"}} {
		v, found, deleted, err := seg.Get(want.k)
		if err != nil {
			t.Fatalf("Get(%q): %v", want.k, err)
		}
		if !found || deleted || v != want.v {
			t.Fatalf("Get(%q) = %q, %v, %v, want %q, true, false", want.k, v, found, deleted, want.v)
		}
	}

	if _, found, _, err := seg.Get("z"); err != nil || found {
		t.Fatalf("Get(z) = found=%v, err=%v, want a clean miss", found, err)
	}
}

func TestCreateTombstone(t *testing.T) {
	dir := t.TempDir()
	entries := []memtable.Entry{{Key: "k", Deleted: true}}

	seg, err := CreateFromMemtable(dir, 2, 4096, 1000, 0.01, entries)
	if err != nil {
		t.Fatalf("CreateFromMemtable: %v", err)
	}

	_, found, deleted, err := seg.Get("k")
	if err != nil || !found || !deleted {
		t.Fatalf("Get(k) = found=%v deleted=%v err=%v, want found tombstone", found, deleted, err)
	}
}

func TestOpenExistingMatchesCreated(t *testing.T) {
	dir := t.TempDir()
	entries := makeEntries("a", "1", "b", "2", "c", "3", "d", "4")

	created, err := CreateFromMemtable(dir, 3, 24, 1000, 0.01, entries) // small block size forces multiple blocks
	if err != nil {
		t.Fatalf("CreateFromMemtable: %v", err)
	}

	reopened, err := OpenExisting(created.Path, 24, 1000, 0.01)
	if err != nil {
		t.Fatalf("OpenExisting: %v", err)
	}

	if reopened.MinKey() != created.MinKey() || reopened.MaxKey() != created.MaxKey() {
		t.Fatalf("reopened min/max = %q/%q, want %q/%q", reopened.MinKey(), reopened.MaxKey(), created.MinKey(), created.MaxKey())
	}
	if reopened.NumEntries() != created.NumEntries() {
		t.Fatalf("reopened NumEntries = %d, want %d", reopened.NumEntries(), created.NumEntries())
	}

	for _, want := range []struct{ k, v string }{{"a", "1"}, {"d", "4"}} {
		v, found, _, err := reopened.Get(want.k)
		if err != nil || !found || v != want.v {
			t.Fatalf("reopened.Get(%q) = %q, %v, %v, want %q", want.k, v, found, err, want.v)
		}
	}
}

func TestBlockBoundaries(t *testing.T) {
	dir := t.TempDir()
	// Each entry is 4+1+4+1 = 10 bytes; block size 25 fits 2 per block.
	entries := makeEntries("a", "1", "b", "2", "c", "3", "d", "4", "e", "5")

	seg, err := CreateFromMemtable(dir, 4, 25, 1000, 0.01, entries)
	if err != nil {
		t.Fatalf("CreateFromMemtable: %v", err)
	}

	if len(seg.index) < 2 {
		t.Fatalf("expected multiple blocks, got %d", len(seg.index))
	}

	for _, want := range []struct{ k, v string }{{"a", "1"}, {"b", "2"}, {"c", "3"}, {"d", "4"}, {"e", "5"}} {
		v, found, _, err := seg.Get(want.k)
		if err != nil || !found || v != want.v {
			t.Fatalf("Get(%q) = %q, %v, %v, want %q", want.k, v, found, err, want.v)
		}
	}
}

func TestDelete(t *testing.T) {
	dir := t.TempDir()
	seg, err := CreateFromMemtable(dir, 5, 4096, 1000, 0.01, makeEntries("a", "1"))
	if err != nil {
		t.Fatalf("CreateFromMemtable: %v", err)
	}

	if err := seg.Delete(); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := OpenExisting(seg.Path, 4096, 1000, 0.01); err == nil {
		t.Fatalf("expected OpenExisting to fail after Delete")
	}
}
