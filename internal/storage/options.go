// Package storage provides the shared error taxonomy and options for the
// mvstore storage engine.
package storage

import (
	"github.com/KilimcininKorOglu/mvstore/internal/logging"
	"github.com/cockroachdb/errors"
)

// Backend names the chunk storage implementation.
type Backend string

const (
	// BackendFile stores one file per chunk in the data directory.
	BackendFile Backend = "file"
	// BackendPebble stores chunks as values in a Pebble LSM.
	BackendPebble Backend = "pebble"
	// BackendMemory keeps chunks in process memory only.
	BackendMemory Backend = "memory"
)

// Compression names the algorithm applied to page bodies.
type Compression string

const (
	CompressionNone    Compression = "none"
	CompressionSnappy  Compression = "snappy"
	CompressionDeflate Compression = "deflate"
)

// EvictionPolicy selects the page cache replacement strategy.
type EvictionPolicy string

const (
	// PolicyLRU evicts the least recently used page.
	PolicyLRU EvictionPolicy = "lru"
	// PolicyTwoQ separates pages seen once from pages seen twice and
	// evicts the former first.
	PolicyTwoQ EvictionPolicy = "2q"
)

const (
	defaultSplitSize      = 16 * 1024
	defaultCacheBytes     = 16 * 1024 * 1024
	defaultProtectedRatio = 0.75
	minSplitSize          = 64
)

// CacheConfig configures the page cache.
type CacheConfig struct {
	// Policy is the eviction policy.
	// Default: PolicyTwoQ.
	Policy EvictionPolicy

	// CapacityBytes is the total memory estimate of resident pages.
	// Default: 16MB.
	CapacityBytes uint64

	// ProtectedRatio is the share of the budget the 2Q protected queue may
	// hold. Ignored by LRU.
	// Default: 0.75.
	ProtectedRatio float64
}

// DefaultCacheConfig returns the default cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Policy:         PolicyTwoQ,
		CapacityBytes:  defaultCacheBytes,
		ProtectedRatio: defaultProtectedRatio,
	}
}

// Validate fills defaults and rejects unknown policies.
func (c *CacheConfig) Validate() error {
	switch c.Policy {
	case "":
		c.Policy = PolicyTwoQ
	case PolicyLRU, PolicyTwoQ:
	default:
		return errors.Wrapf(ErrInvalidArgument, "unknown eviction policy %q", c.Policy)
	}
	if c.CapacityBytes == 0 {
		c.CapacityBytes = defaultCacheBytes
	}
	if c.ProtectedRatio <= 0 || c.ProtectedRatio >= 1 {
		c.ProtectedRatio = defaultProtectedRatio
	}
	return nil
}

// Options configures an engine.
type Options struct {
	// CreateIfNotExists creates the data directory if it doesn't exist.
	// Default: true.
	CreateIfNotExists bool

	// ReadOnly opens the engine without a chunk writer. Commits fail.
	// Default: false.
	ReadOnly bool

	// Backend selects the chunk storage.
	// Default: BackendFile.
	Backend Backend

	// SplitSize is the estimated serialized size above which a page holding
	// at least two keys is split at its median.
	// Default: 16KB.
	SplitSize int

	// Compression is applied to page bodies on write.
	// Default: CompressionNone.
	Compression Compression

	// Cache configures the shared page cache.
	Cache CacheConfig

	// SyncOnWrite fsyncs each sealed chunk before the commit returns.
	// Default: true.
	SyncOnWrite bool

	// Logger receives engine events. Nil means a no-op logger.
	Logger logging.Logger
}

// DefaultOptions returns the default engine options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		Backend:           BackendFile,
		SplitSize:         defaultSplitSize,
		Compression:       CompressionNone,
		Cache:             DefaultCacheConfig(),
		SyncOnWrite:       true,
	}
}

// Validate fills zero values with defaults and returns an error for values
// that cannot be repaired.
func (o *Options) Validate() error {
	switch o.Backend {
	case "":
		o.Backend = BackendFile
	case BackendFile, BackendPebble, BackendMemory:
	default:
		return errors.Wrapf(ErrInvalidArgument, "unknown backend %q", o.Backend)
	}

	switch o.Compression {
	case "":
		o.Compression = CompressionNone
	case CompressionNone, CompressionSnappy, CompressionDeflate:
	default:
		return errors.Wrapf(ErrInvalidArgument, "unknown compression %q", o.Compression)
	}

	if o.SplitSize <= 0 {
		o.SplitSize = defaultSplitSize
	}
	if o.SplitSize < minSplitSize {
		o.SplitSize = minSplitSize
	}

	if err := o.Cache.Validate(); err != nil {
		return err
	}

	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	return nil
}

// WithBackend sets the chunk backend.
func (o Options) WithBackend(b Backend) Options {
	o.Backend = b
	return o
}

// WithSplitSize sets the page split threshold.
func (o Options) WithSplitSize(size int) Options {
	o.SplitSize = size
	return o
}

// WithCompression sets the page compression.
func (o Options) WithCompression(c Compression) Options {
	o.Compression = c
	return o
}

// WithCache sets the cache configuration.
func (o Options) WithCache(c CacheConfig) Options {
	o.Cache = c
	return o
}

// WithReadOnly enables or disables read-only mode.
func (o Options) WithReadOnly(readOnly bool) Options {
	o.ReadOnly = readOnly
	return o
}

// WithCreateIfNotExists enables or disables auto-creation.
func (o Options) WithCreateIfNotExists(create bool) Options {
	o.CreateIfNotExists = create
	return o
}

// WithSyncOnWrite enables or disables fsync of sealed chunks.
func (o Options) WithSyncOnWrite(sync bool) Options {
	o.SyncOnWrite = sync
	return o
}

// WithLogger sets the logger.
func (o Options) WithLogger(l logging.Logger) Options {
	o.Logger = l
	return o
}
