package config

// Config holds the complete mvstore configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LogConfig     `yaml:"logging"`
}

// StorageConfig holds storage engine configuration.
type StorageConfig struct {
	DataDir           string `yaml:"dataDir"`
	Backend           string `yaml:"backend"`
	SplitSize         string `yaml:"splitSize"`
	Compression       string `yaml:"compression"`
	ReadOnly          bool   `yaml:"readOnly"`
	CreateIfNotExists bool   `yaml:"createIfNotExists"`
	SyncOnWrite       bool   `yaml:"syncOnWrite"`
}

// CacheConfig holds page cache configuration.
type CacheConfig struct {
	Policy         string  `yaml:"policy"`
	Size           string  `yaml:"size"`
	ProtectedRatio float64 `yaml:"protectedRatio"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}
