// Package merge implements the k-way sorted-run builder: the multi-source
// merge that drives compaction, described in SPEC_FULL.md section 4.6.
package merge

import (
	"container/heap"

	"github.com/nyasuto/lsmkv/internal/errs"
	"github.com/nyasuto/lsmkv/internal/memtable"
	"github.com/nyasuto/lsmkv/internal/segment"
)

// Input is one source for the merge, paired with the rank used to break ties
// when two inputs hold the same key. Lower rank wins: by convention the
// caller assigns ranks 0..k0-1 to level-0 inputs newest-first, then
// k0..n-1 to the target level's inputs, so that for any key the
// lowest-ranked producer is the authoritative, most-recent version.
type Input struct {
	Iterator *segment.Iterator
	Rank     int
}

// Result is one finalized output segment from a Build call.
type Result struct {
	Segment *segment.Segment
}

// heapItem is one pending entry in the merge's priority queue.
type heapItem struct {
	entry    segment.SegmentEntry
	rank     int
	srcIndex int
}

type mergeHeap []heapItem

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if h[i].entry.Key != h[j].entry.Key {
		return h[i].entry.Key < h[j].entry.Key
	}
	return h[i].rank < h[j].rank
}
func (h mergeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)        { *h = append(*h, x.(heapItem)) }
func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Build performs the k-way merge described in SPEC_FULL.md section 4.6:
// entries are consumed in ascending key order across all inputs, the
// lowest-ranked producer wins ties on a duplicate key, tombstones are
// preserved, and output is split across multiple segments once the current
// one would exceed targetSize.
//
// Build takes ownership of closing every input's iterator, on both success
// and failure paths.
func Build(dataDir string, ids *segment.IDGenerator, blockSize int, bloomItems uint, bloomFPR float64, targetSize int64, inputs []Input) ([]Result, error) {
	defer func() {
		for _, in := range inputs {
			_ = in.Iterator.Close()
		}
	}()

	h := &mergeHeap{}
	heap.Init(h)

	for i, in := range inputs {
		if err := pushNext(h, in.Iterator, in.Rank, i); err != nil {
			return nil, err
		}
	}

	var (
		results     []Result
		buffer      []memtable.Entry
		bufferSize  int64
		havePrevKey bool
		prevKey     string
	)

	flushBuffer := func() error {
		if len(buffer) == 0 {
			return nil
		}
		seg, err := segment.CreateFromMemtable(dataDir, ids.Next(), blockSize, bloomItems, bloomFPR, buffer)
		if err != nil {
			return err
		}
		results = append(results, Result{Segment: seg})
		buffer = nil
		bufferSize = 0
		return nil
	}

	for h.Len() > 0 {
		item := heap.Pop(h).(heapItem)

		if havePrevKey && item.entry.Key == prevKey {
			// Stale duplicate: a lower-ranked producer already emitted the
			// authoritative version of this key this round.
			if err := pushNext(h, inputs[item.srcIndex].Iterator, item.rank, item.srcIndex); err != nil {
				return nil, err
			}
			continue
		}

		entrySize := int64(4 + len(item.entry.Key) + 4 + len(item.entry.Value))
		if len(buffer) > 0 && bufferSize+entrySize > targetSize {
			if err := flushBuffer(); err != nil {
				return nil, err
			}
		}

		buffer = append(buffer, memtable.Entry{
			Key:     item.entry.Key,
			Value:   item.entry.Value,
			Deleted: item.entry.Deleted,
		})
		bufferSize += entrySize
		prevKey = item.entry.Key
		havePrevKey = true

		if err := pushNext(h, inputs[item.srcIndex].Iterator, item.rank, item.srcIndex); err != nil {
			return nil, err
		}
	}

	if err := flushBuffer(); err != nil {
		return nil, err
	}

	return results, nil
}

func pushNext(h *mergeHeap, it *segment.Iterator, rank, srcIndex int) error {
	if !it.HasNext() {
		return nil
	}
	entry, ok, err := it.Next()
	if err != nil {
		return errs.NewStorageError(err, errs.CodeCorruption, "failed to advance merge input iterator")
	}
	if !ok {
		return nil
	}
	heap.Push(h, heapItem{entry: entry, rank: rank, srcIndex: srcIndex})
	return nil
}
