// Package engine wires the memtable set, manifest, and background workers
// into the single Put/Get/Delete facade described in SPEC_FULL.md section
// 4.9.
package engine

import (
	"sync/atomic"

	"github.com/nyasuto/lsmkv/internal/config"
	"github.com/nyasuto/lsmkv/internal/errs"
	"github.com/nyasuto/lsmkv/internal/manifest"
	"github.com/nyasuto/lsmkv/internal/memtable"
	"github.com/nyasuto/lsmkv/internal/segment"
	"github.com/nyasuto/lsmkv/internal/worker"
)

// Engine is the embeddable key-value store: one MemtableSet for buffered
// writes, one Manifest for the on-disk segment catalog, and the two
// background workers that move data between them.
type Engine struct {
	cfg      config.Config
	set      *memtable.Set
	manifest *manifest.Manifest
	ids      *segment.IDGenerator
	flush    *worker.Flush
	compact  *worker.Compaction

	closed atomic.Bool
}

// Open constructs an Engine from cfg, loading (or initializing) the manifest
// at cfg.DataDir. It does not start the background workers; call Start for
// that.
func Open(cfg config.Config) (*Engine, error) {
	man, err := manifest.Open(cfg.DataDir, cfg.BlockSize, cfg.BloomExpectedItems, cfg.BloomFalsePositiveRate)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		set:      memtable.NewSet(cfg.MemtableThresholdBytes),
		manifest: man,
		ids:      &segment.IDGenerator{},
	}

	e.flush = worker.NewFlush(e.set, e.manifest, e.ids, cfg.DataDir, cfg.BlockSize, cfg.BloomExpectedItems, cfg.BloomFalsePositiveRate, cfg.FlushInterval, cfg.Logger)
	e.compact = worker.NewCompaction(e.manifest, e.ids, cfg.DataDir, cfg.BlockSize, cfg.BloomExpectedItems, cfg.BloomFalsePositiveRate, cfg.SegmentSize, cfg.LevelThreshold, cfg.CompactionInterval, cfg.Logger)

	return e, nil
}

// Start spawns the flush and compaction workers.
func (e *Engine) Start() {
	e.flush.Start()
	e.compact.Start()
}

// Stop cancels both background workers and waits for their current tick to
// finish. The engine rejects further Put/Delete/Get calls afterward.
func (e *Engine) Stop() {
	e.closed.Store(true)
	e.flush.Stop()
	e.compact.Stop()
}

// Put inserts or overwrites key with value.
func (e *Engine) Put(key, value string) error {
	if e.closed.Load() {
		return errs.ErrEngineClosed
	}
	if key == "" {
		return errs.ErrInvalidKey
	}
	e.set.Put(key, value)
	return nil
}

// Delete writes a tombstone for key.
func (e *Engine) Delete(key string) error {
	if e.closed.Load() {
		return errs.ErrEngineClosed
	}
	if key == "" {
		return errs.ErrInvalidKey
	}
	e.set.Delete(key)
	return nil
}

// Get searches the memtable set, then the manifest's segments in level order
// (within level 0, newest-first), returning the first hit's value. A
// tombstone hit, wherever found, shadows any older value and is reported as
// a miss.
func (e *Engine) Get(key string) (value string, ok bool, err error) {
	if e.closed.Load() {
		return "", false, errs.ErrEngineClosed
	}
	if key == "" {
		return "", false, errs.ErrInvalidKey
	}

	if entry, found := e.set.Get(key); found {
		if entry.Deleted {
			return "", false, nil
		}
		return entry.Value, true, nil
	}

	maxLevel := e.manifest.MaxLevel()
	for level := 0; level <= maxLevel; level++ {
		for _, seg := range e.manifest.SSTables(level) {
			v, found, deleted, gerr := seg.Get(key)
			if gerr != nil {
				return "", false, gerr
			}
			if !found {
				continue
			}
			if deleted {
				return "", false, nil
			}
			return v, true, nil
		}
	}

	return "", false, nil
}
