// Package config defines the tunables for the storage engine and its
// background workers. It deliberately does not read these from a file or
// environment — configuration-file parsing is an external collaborator, not
// part of this package (see the module's SPEC_FULL.md, section 1).
package config

import (
	"time"

	"go.uber.org/zap"

	"github.com/nyasuto/lsmkv/internal/logging"
)

// Config holds every tunable the engine and its workers need.
type Config struct {
	// DataDir is where segment files, the manifest, and CURRENT live.
	DataDir string

	// MemtableThresholdBytes is the size at which the active memtable is
	// sealed and rotated into the flush queue.
	MemtableThresholdBytes int64

	// BlockSize bounds the on-disk size of a single segment block.
	BlockSize int

	// SegmentSize is the target byte size of a single compaction output
	// segment; a merge splits its output across multiple segments once a
	// segment would exceed this size.
	SegmentSize int64

	// BaseLevelThreshold is the level-0 table-count trigger.
	BaseLevelThreshold int

	// LevelGrowthFactor multiplies BaseLevelThreshold per level above 0:
	// threshold(level) = BaseLevelThreshold * LevelGrowthFactor^level.
	LevelGrowthFactor int

	// BloomExpectedItems and BloomFalsePositiveRate size each segment's
	// Bloom filter.
	BloomExpectedItems     uint
	BloomFalsePositiveRate float64

	// FlushInterval and CompactionInterval are the background tasks' tick
	// periods.
	FlushInterval      time.Duration
	CompactionInterval time.Duration

	// Logger receives structured log output from the engine and its
	// workers. A no-op logger is used if left nil.
	Logger *zap.SugaredLogger
}

// Default values, named individually so callers can reference them (and so
// the defaults are visible at a glance rather than buried in a literal).
const (
	DefaultDataDir               = "./data"
	DefaultMemtableThresholdByte = 4 * 1024 * 1024 // 4MiB
	DefaultBlockSize             = 4096
	DefaultSegmentSize           = 16 * 1024 * 1024 // 16MiB
	DefaultBaseLevelThreshold    = 4
	DefaultLevelGrowthFactor     = 10
	DefaultBloomExpectedItems    = 1000
	DefaultBloomFalsePositive    = 0.03 // 6 hashes, ~7300 bits at 1000 expected items
	DefaultFlushInterval         = 50 * time.Millisecond
	DefaultCompactionInterval    = 200 * time.Millisecond
)

// Option mutates a Config during construction.
type Option func(*Config)

// New builds a Config from defaults with the given options applied.
func New(opts ...Option) Config {
	cfg := Config{
		DataDir:                DefaultDataDir,
		MemtableThresholdBytes: DefaultMemtableThresholdByte,
		BlockSize:              DefaultBlockSize,
		SegmentSize:            DefaultSegmentSize,
		BaseLevelThreshold:     DefaultBaseLevelThreshold,
		LevelGrowthFactor:      DefaultLevelGrowthFactor,
		BloomExpectedItems:     DefaultBloomExpectedItems,
		BloomFalsePositiveRate: DefaultBloomFalsePositive,
		FlushInterval:          DefaultFlushInterval,
		CompactionInterval:     DefaultCompactionInterval,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logging.Noop()
	}

	return cfg
}

// WithDataDir overrides the data directory.
func WithDataDir(dir string) Option {
	return func(c *Config) { c.DataDir = dir }
}

// WithMemtableThreshold overrides the memtable rotation threshold in bytes.
func WithMemtableThreshold(bytes int64) Option {
	return func(c *Config) { c.MemtableThresholdBytes = bytes }
}

// WithBlockSize overrides the on-disk block size.
func WithBlockSize(size int) Option {
	return func(c *Config) { c.BlockSize = size }
}

// WithSegmentSize overrides the compaction output target size.
func WithSegmentSize(size int64) Option {
	return func(c *Config) { c.SegmentSize = size }
}

// WithLevelThresholds overrides the level-0 trigger count and growth factor.
func WithLevelThresholds(base, factor int) Option {
	return func(c *Config) {
		c.BaseLevelThreshold = base
		c.LevelGrowthFactor = factor
	}
}

// WithBloomParams overrides the Bloom filter sizing parameters.
func WithBloomParams(expectedItems uint, falsePositiveRate float64) Option {
	return func(c *Config) {
		c.BloomExpectedItems = expectedItems
		c.BloomFalsePositiveRate = falsePositiveRate
	}
}

// WithIntervals overrides the flush and compaction tick periods.
func WithIntervals(flush, compaction time.Duration) Option {
	return func(c *Config) {
		c.FlushInterval = flush
		c.CompactionInterval = compaction
	}
}

// WithLogger supplies a structured logger; the zero value leaves logging a no-op.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Config) { c.Logger = logger }
}

// LevelThreshold returns the table-count trigger for the given level.
func (c Config) LevelThreshold(level int) int {
	if level <= 0 {
		return c.BaseLevelThreshold
	}
	threshold := c.BaseLevelThreshold
	for i := 0; i < level; i++ {
		threshold *= c.LevelGrowthFactor
	}
	return threshold
}
