package config

import (
	"github.com/KilimcininKorOglu/mvstore/internal/logging"
	"github.com/KilimcininKorOglu/mvstore/internal/storage"
	"github.com/cockroachdb/errors"
)

// ToOptions converts the configuration into engine options. The config
// should have passed ValidateConfig.
func (c *Config) ToOptions(logger logging.Logger) (storage.Options, error) {
	opts := storage.DefaultOptions().
		WithBackend(storage.Backend(c.Storage.Backend)).
		WithCompression(storage.Compression(c.Storage.Compression)).
		WithReadOnly(c.Storage.ReadOnly).
		WithCreateIfNotExists(c.Storage.CreateIfNotExists).
		WithSyncOnWrite(c.Storage.SyncOnWrite).
		WithLogger(logger)

	split, err := ParseSize(c.Storage.SplitSize)
	if err != nil {
		return storage.Options{}, errors.Wrap(err, "storage.splitSize")
	}
	opts = opts.WithSplitSize(int(split))

	capacity, err := ParseSize(c.Cache.Size)
	if err != nil {
		return storage.Options{}, errors.Wrap(err, "cache.size")
	}
	opts = opts.WithCache(storage.CacheConfig{
		Policy:         storage.EvictionPolicy(c.Cache.Policy),
		CapacityBytes:  capacity,
		ProtectedRatio: c.Cache.ProtectedRatio,
	})

	if err := opts.Validate(); err != nil {
		return storage.Options{}, err
	}
	return opts, nil
}

// NewLogger builds the logger described by the logging section.
func (c *Config) NewLogger() (logging.Logger, error) {
	return logging.New(logging.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Output: c.Logging.Output,
	})
}
