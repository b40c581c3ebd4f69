// Package manifest implements the authoritative, crash-safe catalog of live
// segments per level, as described in SPEC_FULL.md section 4.5.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/nyasuto/lsmkv/internal/errs"
	"github.com/nyasuto/lsmkv/internal/segment"
)

const currentFileName = "CURRENT"

// snapshot is the on-disk, JSON-serialized form of a manifest generation:
// level index to the ordered list of segment file names at that level.
type snapshot struct {
	Levels map[int][]string `json:"levels"`
}

// Manifest tracks, per level, the ordered list of live segments. Level 0's
// list is newest-first because level-0 segments may overlap; levels ≥ 1
// keep the same ordering convention even though their segments are disjoint.
type Manifest struct {
	mu sync.RWMutex

	dataDir    string
	blockSize  int
	bloomItems uint
	bloomFPR   float64

	levels  map[int][]*segment.Segment
	nextSeq int
}

// Open loads an existing manifest from dataDir (following CURRENT) or
// initializes a fresh one if none exists yet.
func Open(dataDir string, blockSize int, bloomItems uint, bloomFPR float64) (*Manifest, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, errs.NewStorageError(err, errs.CodeIO, "failed to create data directory").WithPath(dataDir)
	}

	m := &Manifest{
		dataDir:    dataDir,
		blockSize:  blockSize,
		bloomItems: bloomItems,
		bloomFPR:   bloomFPR,
		levels:     make(map[int][]*segment.Segment),
	}

	currentPath := filepath.Join(dataDir, currentFileName)
	data, err := os.ReadFile(currentPath) // #nosec G304 -- path is a fixed name under the configured data directory
	switch {
	case os.IsNotExist(err):
		if err := m.persist(); err != nil {
			return nil, err
		}
		return m, nil
	case err != nil:
		return nil, errs.NewStorageError(err, errs.CodeIO, "failed to read CURRENT").WithPath(currentPath)
	}

	manifestName := string(data)
	seq, err := parseManifestSeq(manifestName)
	if err != nil {
		return nil, errs.NewManifestError(err, errs.CodeCorruption, "malformed CURRENT pointer").WithLevel(-1)
	}
	m.nextSeq = seq

	manifestPath := filepath.Join(dataDir, manifestName)
	raw, err := os.ReadFile(manifestPath) // #nosec G304 -- manifestName comes from CURRENT, which this package alone writes
	if err != nil {
		return nil, errs.NewStorageError(err, errs.CodeIO, "failed to read manifest file").WithPath(manifestPath)
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, errs.NewManifestError(err, errs.CodeCorruption, "failed to decode manifest file").WithLevel(-1)
	}

	for level, names := range snap.Levels {
		for _, name := range names {
			seg, err := segment.OpenExisting(filepath.Join(dataDir, name), blockSize, bloomItems, bloomFPR)
			if err != nil {
				return nil, err
			}
			m.levels[level] = append(m.levels[level], seg)
		}
	}

	return m, nil
}

func manifestFileName(seq int) string {
	return fmt.Sprintf("MANIFEST-%06d", seq)
}

func parseManifestSeq(name string) (int, error) {
	var seq int
	if _, err := fmt.Sscanf(name, "MANIFEST-%06d", &seq); err != nil {
		return 0, fmt.Errorf("malformed manifest name %q: %w", name, err)
	}
	return seq, nil
}

// SSTables returns a snapshot copy of the segment list at level; readers
// must never mutate the manifest's live list through it.
func (m *Manifest) SSTables(level int) []*segment.Segment {
	m.mu.RLock()
	defer m.mu.RUnlock()

	src := m.levels[level]
	out := make([]*segment.Segment, len(src))
	copy(out, src)
	return out
}

// MaxLevel returns the largest populated level, or -1 if the manifest is
// empty.
func (m *Manifest) MaxLevel() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	max := -1
	for level, segs := range m.levels {
		if len(segs) > 0 && level > max {
			max = level
		}
	}
	return max
}

// AddSSTable prepends seg at the given level (newest-first; flush always
// passes level 0) and persists the result.
func (m *Manifest) AddSSTable(level int, seg *segment.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.levels[level] = append([]*segment.Segment{seg}, m.levels[level]...)
	return m.persist()
}

// Replace clears sourceLevel entirely (the reference policy: compaction
// always merges the whole source level, so no reconciliation against
// oldSourceTables is needed — see SPEC_FULL.md section 9), removes
// oldTargetTables from targetLevel (the portion of the target level that was
// folded into the merge — in the current always-merge-the-whole-level design
// this is every table targetLevel held), and appends newTables, persisting
// the result.
func (m *Manifest) Replace(sourceLevel int, oldSourceTables []*segment.Segment, targetLevel int, oldTargetTables []*segment.Segment, newTables []*segment.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaceLocked(sourceLevel, targetLevel, oldTargetTables, newTables)
}

// Lock/Unlock expose the manifest's writer lock to callers (flush and
// compaction workers) that must hold it across I/O performed outside the
// methods above, per the reference concurrency policy.
func (m *Manifest) Lock()   { m.mu.Lock() }
func (m *Manifest) Unlock() { m.mu.Unlock() }

// AddSSTableLocked is AddSSTable for a caller that already holds the writer
// lock via Lock.
func (m *Manifest) AddSSTableLocked(level int, seg *segment.Segment) error {
	m.levels[level] = append([]*segment.Segment{seg}, m.levels[level]...)
	return m.persist()
}

// SSTablesLocked is SSTables for a caller that already holds the writer lock
// via Lock.
func (m *Manifest) SSTablesLocked(level int) []*segment.Segment {
	src := m.levels[level]
	out := make([]*segment.Segment, len(src))
	copy(out, src)
	return out
}

// MaxLevelLocked is MaxLevel for a caller that already holds the writer lock
// via Lock.
func (m *Manifest) MaxLevelLocked() int {
	max := -1
	for level, segs := range m.levels {
		if len(segs) > 0 && level > max {
			max = level
		}
	}
	return max
}

// ReplaceLocked is Replace for a caller that already holds the writer lock
// via Lock.
func (m *Manifest) ReplaceLocked(sourceLevel int, oldSourceTables []*segment.Segment, targetLevel int, oldTargetTables []*segment.Segment, newTables []*segment.Segment) error {
	return m.replaceLocked(sourceLevel, targetLevel, oldTargetTables, newTables)
}

// replaceLocked must be called with mu held.
func (m *Manifest) replaceLocked(sourceLevel, targetLevel int, oldTargetTables, newTables []*segment.Segment) error {
	m.levels[sourceLevel] = nil

	if len(oldTargetTables) > 0 {
		stale := make(map[*segment.Segment]struct{}, len(oldTargetTables))
		for _, s := range oldTargetTables {
			stale[s] = struct{}{}
		}
		remaining := m.levels[targetLevel][:0:0]
		for _, s := range m.levels[targetLevel] {
			if _, isStale := stale[s]; !isStale {
				remaining = append(remaining, s)
			}
		}
		m.levels[targetLevel] = remaining
	}

	m.levels[targetLevel] = append(m.levels[targetLevel], newTables...)
	return m.persist()
}

// persist must be called with mu held. It writes a new MANIFEST-NNNNNN file
// then repoints CURRENT at it.
func (m *Manifest) persist() error {
	m.nextSeq++
	name := manifestFileName(m.nextSeq)

	snap := snapshot{Levels: make(map[int][]string)}
	for level, segs := range m.levels {
		names := make([]string, len(segs))
		for i, s := range segs {
			names[i] = filepath.Base(s.Path)
		}
		snap.Levels[level] = names
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return errs.NewManifestError(err, errs.CodeInvariant, "failed to encode manifest snapshot").WithLevel(-1)
	}

	manifestPath := filepath.Join(m.dataDir, name)
	if err := os.WriteFile(manifestPath, raw, 0o640); err != nil {
		return errs.NewStorageError(err, errs.CodeIO, "failed to write manifest file").WithPath(manifestPath)
	}

	currentPath := filepath.Join(m.dataDir, currentFileName)
	if err := os.WriteFile(currentPath, []byte(name), 0o640); err != nil {
		return errs.NewStorageError(err, errs.CodeIO, "failed to rewrite CURRENT").WithPath(currentPath)
	}

	return nil
}
