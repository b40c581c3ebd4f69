package worker

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nyasuto/lsmkv/internal/manifest"
	"github.com/nyasuto/lsmkv/internal/merge"
	"github.com/nyasuto/lsmkv/internal/segment"
)

// LevelThresholdFunc returns the table-count trigger for a level.
type LevelThresholdFunc func(level int) int

// Compaction periodically inspects each populated level and, for the first
// one exceeding its table-count threshold, merges it with the next level via
// merge.Build.
type Compaction struct {
	manifest *manifest.Manifest
	ids      *segment.IDGenerator

	dataDir        string
	blockSize      int
	bloomItems     uint
	bloomFPR       float64
	segmentSize    int64
	levelThreshold LevelThresholdFunc
	interval       time.Duration
	logger         *zap.SugaredLogger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewCompaction constructs a Compaction worker. Call Start to begin ticking.
func NewCompaction(man *manifest.Manifest, ids *segment.IDGenerator, dataDir string, blockSize int, bloomItems uint, bloomFPR float64, segmentSize int64, levelThreshold LevelThresholdFunc, interval time.Duration, logger *zap.SugaredLogger) *Compaction {
	return &Compaction{
		manifest:       man,
		ids:            ids,
		dataDir:        dataDir,
		blockSize:      blockSize,
		bloomItems:     bloomItems,
		bloomFPR:       bloomFPR,
		segmentSize:    segmentSize,
		levelThreshold: levelThreshold,
		interval:       interval,
		logger:         logger,
		stopCh:         make(chan struct{}),
	}
}

// Start spawns the compaction goroutine.
func (c *Compaction) Start() {
	c.wg.Add(1)
	go c.run()
}

// Stop signals the compaction goroutine to exit and waits for the current
// tick to finish.
func (c *Compaction) Stop() {
	close(c.stopCh)
	c.wg.Wait()
}

func (c *Compaction) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

// tick implements one compaction pass, described in SPEC_FULL.md section
// 4.8: under the manifest writer lock, scan levels 0..MaxLevel in order and
// merge the first one whose table count exceeds its threshold into the next
// level. Only one level is compacted per tick.
func (c *Compaction) tick() {
	c.manifest.Lock()
	defer c.manifest.Unlock()

	maxLevel := c.manifest.MaxLevelLocked()
	for level := 0; level <= maxLevel; level++ {
		tables := c.manifest.SSTablesLocked(level)
		if len(tables) <= c.levelThreshold(level) {
			continue
		}

		if err := c.compactLevel(level, tables); err != nil {
			c.logger.Errorw("compaction tick failed", "level", level, "error", err)
		}
		return
	}
}

func (c *Compaction) compactLevel(level int, sourceTables []*segment.Segment) error {
	targetLevel := level + 1
	targetTables := c.manifest.SSTablesLocked(targetLevel)

	inputs := make([]merge.Input, 0, len(sourceTables)+len(targetTables))
	rank := 0
	for _, seg := range sourceTables {
		it, err := seg.NewIterator()
		if err != nil {
			return err
		}
		inputs = append(inputs, merge.Input{Iterator: it, Rank: rank})
		rank++
	}
	for _, seg := range targetTables {
		it, err := seg.NewIterator()
		if err != nil {
			return err
		}
		inputs = append(inputs, merge.Input{Iterator: it, Rank: rank})
		rank++
	}

	results, err := merge.Build(c.dataDir, c.ids, c.blockSize, c.bloomItems, c.bloomFPR, c.segmentSize, inputs)
	if err != nil {
		return err
	}

	newTables := make([]*segment.Segment, len(results))
	for i, r := range results {
		newTables[i] = r.Segment
	}

	if err := c.manifest.ReplaceLocked(level, sourceTables, targetLevel, targetTables, newTables); err != nil {
		return err
	}

	for _, old := range sourceTables {
		if err := old.Delete(); err != nil {
			c.logger.Errorw("failed to unlink compacted segment", "path", old.Path, "error", err)
		}
	}
	for _, old := range targetTables {
		if err := old.Delete(); err != nil {
			c.logger.Errorw("failed to unlink compacted segment", "path", old.Path, "error", err)
		}
	}

	c.logger.Debugw("compacted level", "source_level", level, "target_level", targetLevel, "merged_in", len(sourceTables)+len(targetTables), "produced", len(newTables))
	return nil
}
