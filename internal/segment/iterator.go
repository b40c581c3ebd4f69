package segment

import (
	"bytes"
	"io"
	"os"

	"github.com/nyasuto/lsmkv/internal/errs"
)

// Iterator is a restartable, single-pass, forward-only cursor over a
// Segment's entries in ascending key order. It visits every physical entry,
// including tombstones.
type Iterator struct {
	seg *Segment
	f   *os.File

	blockPos  int // index into seg.index of the next block to load
	cur       *bytes.Reader
	peeked    *SegmentEntry
	peekedErr error
	exhausted bool
}

// SegmentEntry is one physical entry as produced by an Iterator.
type SegmentEntry struct {
	Key     string
	Value   string
	Deleted bool
}

// NewIterator opens a fresh file handle onto the segment and positions at
// the first entry.
func (s *Segment) NewIterator() (*Iterator, error) {
	f, err := os.Open(s.Path) // #nosec G304 -- s.Path is set internally from a validated data directory
	if err != nil {
		return nil, errs.NewStorageError(err, errs.CodeIO, "failed to open segment for iteration").WithPath(s.Path)
	}
	return &Iterator{seg: s, f: f}, nil
}

// loadNextBlock reads the next block into memory, or marks the iterator
// exhausted if there are none left.
func (it *Iterator) loadNextBlock() error {
	if it.blockPos >= len(it.seg.index) {
		it.exhausted = true
		return nil
	}
	blk := it.seg.index[it.blockPos]
	it.blockPos++

	buf := make([]byte, blk.length)
	if _, err := it.f.ReadAt(buf, blk.offset); err != nil {
		return errs.NewStorageError(err, errs.CodeIO, "failed to read segment block during iteration").WithPath(it.seg.Path).WithOffset(blk.offset)
	}
	it.cur = bytes.NewReader(buf)
	return nil
}

// fill ensures it.peeked holds the next entry (or peekedErr holds the reason
// there isn't one), if it hasn't already been filled.
func (it *Iterator) fill() {
	if it.peeked != nil || it.peekedErr != nil {
		return
	}
	for {
		if it.exhausted {
			it.peekedErr = io.EOF
			return
		}
		if it.cur == nil {
			if err := it.loadNextBlock(); err != nil {
				it.peekedErr = err
				return
			}
			continue
		}
		key, value, deleted, err := readEntry(it.cur)
		if err == io.EOF {
			it.cur = nil
			continue
		}
		if err != nil {
			it.peekedErr = errs.NewStorageError(err, errs.CodeCorruption, "malformed entry during iteration").WithPath(it.seg.Path)
			return
		}
		it.peeked = &SegmentEntry{Key: key, Value: value, Deleted: deleted}
		return
	}
}

// HasNext reports whether another entry is available.
func (it *Iterator) HasNext() bool {
	it.fill()
	return it.peeked != nil
}

// Next returns the next entry in ascending key order. Callers must check
// HasNext (or handle ok=false) before trusting the result.
func (it *Iterator) Next() (SegmentEntry, bool, error) {
	it.fill()
	if it.peekedErr != nil && it.peekedErr != io.EOF {
		err := it.peekedErr
		it.peekedErr = nil
		return SegmentEntry{}, false, err
	}
	if it.peeked == nil {
		return SegmentEntry{}, false, nil
	}
	e := *it.peeked
	it.peeked = nil
	return e, true, nil
}

// Close releases the iterator's file handle.
func (it *Iterator) Close() error {
	return it.f.Close()
}
