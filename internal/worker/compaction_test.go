package worker

import (
	"testing"
	"time"

	"github.com/nyasuto/lsmkv/internal/logging"
	"github.com/nyasuto/lsmkv/internal/manifest"
	"github.com/nyasuto/lsmkv/internal/memtable"
	"github.com/nyasuto/lsmkv/internal/segment"
)

func fixedThreshold(n int) LevelThresholdFunc {
	return func(level int) int { return n }
}

func TestCompactionMergesOverfullLevel(t *testing.T) {
	dir := t.TempDir()
	man, err := manifest.Open(dir, 4096, 1000, 0.01)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ids := &segment.IDGenerator{}

	// Seed three level-0 segments, newest last so level 0 holds them
	// newest-first after AddSSTable prepends each.
	batches := [][]memtable.Entry{
		{{Key: "a", Value: "1"}},
		{{Key: "a", Value: "2"}, {Key: "b", Value: "3"}},
		{{Key: "c", Value: "4"}},
	}
	for _, b := range batches {
		seg, err := segment.CreateFromMemtable(dir, ids.Next(), 4096, 1000, 0.01, b)
		if err != nil {
			t.Fatalf("CreateFromMemtable: %v", err)
		}
		if err := man.AddSSTable(0, seg); err != nil {
			t.Fatalf("AddSSTable: %v", err)
		}
	}

	if len(man.SSTables(0)) != 3 {
		t.Fatalf("level 0 table count = %d, want 3", len(man.SSTables(0)))
	}

	c := NewCompaction(man, ids, dir, 4096, 1000, 0.01, 1<<20, fixedThreshold(2), time.Hour, logging.Noop())
	c.tick()

	if len(man.SSTables(0)) != 0 {
		t.Fatalf("level 0 table count after compaction = %d, want 0", len(man.SSTables(0)))
	}
	level1 := man.SSTables(1)
	if len(level1) != 1 {
		t.Fatalf("level 1 table count = %d, want 1", len(level1))
	}

	v, found, deleted, err := level1[0].Get("a")
	if err != nil || !found || deleted || v != "2" {
		t.Fatalf("Get(a) = %q, found=%v deleted=%v err=%v, want newest value 2", v, found, deleted, err)
	}
	v, found, _, err = level1[0].Get("b")
	if err != nil || !found || v != "3" {
		t.Fatalf("Get(b) = %q, found=%v err=%v, want 3", v, found, err)
	}
	v, found, _, err = level1[0].Get("c")
	if err != nil || !found || v != "4" {
		t.Fatalf("Get(c) = %q, found=%v err=%v, want 4", v, found, err)
	}
}

func TestCompactionSkipsUnderThresholdLevels(t *testing.T) {
	dir := t.TempDir()
	man, err := manifest.Open(dir, 4096, 1000, 0.01)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ids := &segment.IDGenerator{}

	seg, err := segment.CreateFromMemtable(dir, ids.Next(), 4096, 1000, 0.01, []memtable.Entry{{Key: "a", Value: "1"}})
	if err != nil {
		t.Fatalf("CreateFromMemtable: %v", err)
	}
	if err := man.AddSSTable(0, seg); err != nil {
		t.Fatalf("AddSSTable: %v", err)
	}

	c := NewCompaction(man, ids, dir, 4096, 1000, 0.01, 1<<20, fixedThreshold(4), time.Hour, logging.Noop())
	c.tick()

	if len(man.SSTables(0)) != 1 {
		t.Fatalf("level 0 table count = %d, want untouched 1", len(man.SSTables(0)))
	}
	if len(man.SSTables(1)) != 0 {
		t.Fatalf("level 1 table count = %d, want 0", len(man.SSTables(1)))
	}
}

func TestCompactionRemovesOldTargetLevelDuplicates(t *testing.T) {
	dir := t.TempDir()
	man, err := manifest.Open(dir, 4096, 1000, 0.01)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ids := &segment.IDGenerator{}

	// Level 1 already holds a stale value for "a".
	staleSeg, err := segment.CreateFromMemtable(dir, ids.Next(), 4096, 1000, 0.01, []memtable.Entry{{Key: "a", Value: "stale"}})
	if err != nil {
		t.Fatalf("CreateFromMemtable: %v", err)
	}
	if err := man.AddSSTable(1, staleSeg); err != nil {
		t.Fatalf("AddSSTable: %v", err)
	}

	for i := 0; i < 3; i++ {
		seg, err := segment.CreateFromMemtable(dir, ids.Next(), 4096, 1000, 0.01, []memtable.Entry{{Key: "a", Value: "fresh"}})
		if err != nil {
			t.Fatalf("CreateFromMemtable: %v", err)
		}
		if err := man.AddSSTable(0, seg); err != nil {
			t.Fatalf("AddSSTable: %v", err)
		}
	}

	c := NewCompaction(man, ids, dir, 4096, 1000, 0.01, 1<<20, fixedThreshold(2), time.Hour, logging.Noop())
	c.tick()

	level1 := man.SSTables(1)
	if len(level1) != 1 {
		t.Fatalf("level 1 table count = %d, want 1 (stale table must be replaced, not merely appended to)", len(level1))
	}
	v, found, _, err := level1[0].Get("a")
	if err != nil || !found || v != "fresh" {
		t.Fatalf("Get(a) = %q, found=%v err=%v, want fresh", v, found, err)
	}
}
