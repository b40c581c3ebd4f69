package memtable

import "testing"

func TestPutGetOverwrite(t *testing.T) {
	m := New()
	m.Put("a", "1")
	m.Put("b", "2")
	m.Put("a", "3")

	e, ok := m.Get("a")
	if !ok || e.Value != "3" || e.Deleted {
		t.Fatalf("Get(a) = %+v, %v, want value 3", e, ok)
	}

	if _, ok := m.Get("missing"); ok {
		t.Fatalf("Get(missing) reported present")
	}
}

func TestDeleteProducesTombstone(t *testing.T) {
	m := New()
	m.Put("k", "v1")
	m.Delete("k")

	e, ok := m.Get("k")
	if !ok || !e.Deleted {
		t.Fatalf("Get(k) = %+v, %v, want a present tombstone", e, ok)
	}
}

func TestSizeAccounting(t *testing.T) {
	m := New()
	m.Put("ab", "cde") // 2 + 3 = 5
	if got, want := m.Size(), int64(5); got != want {
		t.Fatalf("Size() = %d, want %d", got, want)
	}

	m.Put("ab", "z") // overwrite: 2 + 1 = 3
	if got, want := m.Size(), int64(3); got != want {
		t.Fatalf("Size() after overwrite = %d, want %d", got, want)
	}

	m.Delete("ab") // tombstone: key bytes only = 2
	if got, want := m.Size(), int64(2); got != want {
		t.Fatalf("Size() after delete = %d, want %d", got, want)
	}
}

func TestEntriesAscending(t *testing.T) {
	m := New()
	for _, k := range []string{"banana", "apple", "cherry"} {
		m.Put(k, k)
	}

	entries := m.Entries()
	want := []string{"apple", "banana", "cherry"}
	if len(entries) != len(want) {
		t.Fatalf("len(Entries()) = %d, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.Key != want[i] {
			t.Fatalf("Entries()[%d].Key = %q, want %q", i, e.Key, want[i])
		}
	}
}
