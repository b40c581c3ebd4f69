// Package segment implements the on-disk sorted-string-table (SSTable)
// format: an immutable, sorted key/value file with an in-memory block index
// and a Bloom filter, as described in SPEC_FULL.md section 4.2.
package segment

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/nyasuto/lsmkv/internal/bloom"
	"github.com/nyasuto/lsmkv/internal/errs"
	"github.com/nyasuto/lsmkv/internal/memtable"
)

// blockIndexEntry maps a block's first key to its byte range in the file.
type blockIndexEntry struct {
	firstKey string
	offset   int64
	length   int64
}

// Segment is an immutable sorted key/value file plus the in-memory
// structures (block index, Bloom filter, min/max key) needed to serve point
// lookups without scanning the whole file.
type Segment struct {
	Path string

	minKey string
	maxKey string
	index  []blockIndexEntry // ascending by firstKey
	bloom  *bloom.Filter

	numEntries int
	fileSize   int64
}

// NumEntries returns the number of physical entries (including tombstones)
// written to the segment.
func (s *Segment) NumEntries() int { return s.numEntries }

// MinKey and MaxKey bound the segment's key range, inclusive.
func (s *Segment) MinKey() string { return s.minKey }
func (s *Segment) MaxKey() string { return s.maxKey }

// FileSize returns the on-disk byte size of the segment.
func (s *Segment) FileSize() int64 { return s.fileSize }

func encodedEntrySize(key, value string) int64 {
	return 4 + int64(len(key)) + 4 + int64(len(value))
}

func writeEntry(w io.Writer, key, value string, deleted bool) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(key))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, key); err != nil {
		return err
	}
	if deleted {
		return binary.Write(w, binary.BigEndian, uint32(0))
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(value))); err != nil {
		return err
	}
	_, err := io.WriteString(w, value)
	return err
}

// readEntry reads one entry from r. valueLen == 0 is the tombstone marker
// (see SPEC_FULL.md section 9): the returned deleted flag is true and value
// is empty.
func readEntry(r io.Reader) (key, value string, deleted bool, err error) {
	var keyLen uint32
	if err = binary.Read(r, binary.BigEndian, &keyLen); err != nil {
		return "", "", false, err
	}
	keyBuf := make([]byte, keyLen)
	if _, err = io.ReadFull(r, keyBuf); err != nil {
		return "", "", false, err
	}

	var valueLen uint32
	if err = binary.Read(r, binary.BigEndian, &valueLen); err != nil {
		return "", "", false, err
	}
	if valueLen == 0 {
		return string(keyBuf), "", true, nil
	}
	valueBuf := make([]byte, valueLen)
	if _, err = io.ReadFull(r, valueBuf); err != nil {
		return "", "", false, err
	}
	return string(keyBuf), string(valueBuf), false, nil
}

// FileName returns the canonical file name for segment id.
func FileName(id int64) string {
	return fmt.Sprintf("sstable_%d.sst", id)
}

// CreateFromMemtable writes entries (already in ascending key order, as
// produced by memtable.Memtable.Entries) to a freshly named file under
// dataDir, accumulating them into blocks of at most blockSize on-disk bytes.
func CreateFromMemtable(dataDir string, id int64, blockSize int, bloomExpectedItems uint, bloomFPR float64, entries []memtable.Entry) (*Segment, error) {
	path := filepath.Join(dataDir, FileName(id))

	f, err := os.Create(path) // #nosec G304 -- path built from a validated data directory and a generated id
	if err != nil {
		return nil, errs.NewStorageError(err, errs.CodeIO, "failed to create segment file").WithPath(path)
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	seg := &Segment{Path: path, bloom: bloom.New(bloomExpectedItems, bloomFPR)}

	var (
		offset           int64
		blockStart       int64
		blockSize64      = int64(blockSize)
		currentBlockSize int64
		blockFirstKey    string
		blockHasEntries  bool
	)

	finalizeBlock := func() {
		if !blockHasEntries {
			return
		}
		seg.index = append(seg.index, blockIndexEntry{
			firstKey: blockFirstKey,
			offset:   blockStart,
			length:   offset - blockStart,
		})
		blockHasEntries = false
	}

	for i, e := range entries {
		size := encodedEntrySize(e.Key, e.Value)
		if e.Deleted {
			size = encodedEntrySize(e.Key, "")
		}

		if blockHasEntries && currentBlockSize+size > blockSize64 {
			finalizeBlock()
			blockStart = offset
			currentBlockSize = 0
		}

		if !blockHasEntries {
			blockFirstKey = e.Key
			blockStart = offset
		}

		if err := writeEntry(w, e.Key, e.Value, e.Deleted); err != nil {
			return nil, errs.NewStorageError(err, errs.CodeIO, "failed to write segment entry").WithPath(path).WithOffset(offset)
		}

		offset += size
		currentBlockSize += size
		blockHasEntries = true

		seg.bloom.Add([]byte(e.Key))
		seg.numEntries++

		if i == 0 {
			seg.minKey = e.Key
		}
		seg.maxKey = e.Key
	}
	finalizeBlock()

	if err := w.Flush(); err != nil {
		return nil, errs.NewStorageError(err, errs.CodeIO, "failed to flush segment file").WithPath(path)
	}
	if err := f.Sync(); err != nil {
		return nil, errs.NewStorageError(err, errs.CodeIO, "failed to sync segment file").WithPath(path)
	}

	seg.fileSize = offset
	return seg, nil
}

// OpenExisting rebuilds a Segment's block index, Bloom filter, and min/max
// keys by scanning an already-written segment file sequentially.
func OpenExisting(path string, blockSize int, bloomExpectedItems uint, bloomFPR float64) (*Segment, error) {
	f, err := os.Open(path) // #nosec G304 -- path is read from the manifest, which only ever names files it wrote
	if err != nil {
		return nil, errs.NewStorageError(err, errs.CodeIO, "failed to open segment file").WithPath(path)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, errs.NewStorageError(err, errs.CodeIO, "failed to stat segment file").WithPath(path)
	}

	seg := &Segment{Path: path, bloom: bloom.New(bloomExpectedItems, bloomFPR), fileSize: stat.Size()}

	r := bufio.NewReader(f)

	var (
		offset           int64
		blockStart       int64
		blockSize64      = int64(blockSize)
		currentBlockSize int64
		blockFirstKey    string
		blockHasEntries  bool
		first            = true
	)

	finalizeBlock := func() {
		if !blockHasEntries {
			return
		}
		seg.index = append(seg.index, blockIndexEntry{
			firstKey: blockFirstKey,
			offset:   blockStart,
			length:   offset - blockStart,
		})
		blockHasEntries = false
	}

	for {
		entryStart := offset
		key, value, deleted, err := readEntry(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.NewStorageError(err, errs.CodeCorruption, "short or malformed segment entry").WithPath(path).WithOffset(entryStart)
		}

		size := encodedEntrySize(key, value)
		if deleted {
			size = encodedEntrySize(key, "")
		}

		if blockHasEntries && currentBlockSize+size > blockSize64 {
			finalizeBlock()
			blockStart = offset
			currentBlockSize = 0
		}
		if !blockHasEntries {
			blockFirstKey = key
			blockStart = offset
		}

		offset += size
		currentBlockSize += size
		blockHasEntries = true

		seg.bloom.Add([]byte(key))
		seg.numEntries++

		if first {
			seg.minKey = key
			first = false
		}
		seg.maxKey = key
	}
	finalizeBlock()

	return seg, nil
}

// Get returns the value for key, whether it was found at all, and whether
// the found entry is a tombstone. A miss is reported by found=false.
func (s *Segment) Get(key string) (value string, found bool, deleted bool, err error) {
	if s.numEntries == 0 {
		return "", false, false, nil
	}
	if key < s.minKey || key > s.maxKey {
		return "", false, false, nil
	}
	if !s.bloom.MightContain([]byte(key)) {
		return "", false, false, nil
	}

	blk, ok := s.floorBlock(key)
	if !ok {
		return "", false, false, nil
	}

	f, err := os.Open(s.Path) // #nosec G304 -- s.Path is set internally from a validated data directory
	if err != nil {
		return "", false, false, errs.NewStorageError(err, errs.CodeIO, "failed to open segment for read").WithPath(s.Path)
	}
	defer f.Close()

	buf := make([]byte, blk.length)
	if _, err := f.ReadAt(buf, blk.offset); err != nil {
		return "", false, false, errs.NewStorageError(err, errs.CodeIO, "failed to read segment block").WithPath(s.Path).WithOffset(blk.offset)
	}

	r := bytes.NewReader(buf)
	for {
		k, v, del, err := readEntry(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", false, false, errs.NewStorageError(err, errs.CodeCorruption, "malformed block entry").WithPath(s.Path).WithOffset(blk.offset)
		}
		if k == key {
			return v, true, del, nil
		}
	}
	return "", false, false, nil
}

// floorBlock finds the block whose firstKey is the greatest one ≤ key.
func (s *Segment) floorBlock(key string) (blockIndexEntry, bool) {
	i := sort.Search(len(s.index), func(i int) bool {
		return s.index[i].firstKey > key
	})
	if i == 0 {
		return blockIndexEntry{}, false
	}
	return s.index[i-1], true
}

// Delete unlinks the segment's file. It is a fatal error if the file exists
// but cannot be removed.
func (s *Segment) Delete() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return errs.NewStorageError(err, errs.CodeIO, "failed to unlink segment file").WithPath(s.Path)
	}
	return nil
}

