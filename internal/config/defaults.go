package config

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir:           "/var/lib/mvstore",
			Backend:           "file",
			SplitSize:         "16KB",
			Compression:       "none",
			ReadOnly:          false,
			CreateIfNotExists: true,
			SyncOnWrite:       true,
		},
		Cache: CacheConfig{
			Policy:         "2q",
			Size:           "16MB",
			ProtectedRatio: 0.75,
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}
