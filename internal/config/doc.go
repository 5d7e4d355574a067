// Package config loads mvstore configuration from YAML files.
//
// # Overview
//
// The parser understands the subset of YAML the configuration needs:
// nested "key: value" maps, quoted scalars and trailing comments.
// Missing keys keep their defaults.
//
// # Configuration File
//
//	storage:
//	  dataDir: /var/lib/mvstore
//	  backend: pebble        # file, pebble or memory
//	  splitSize: 16KB
//	  compression: snappy    # none, snappy or deflate
//	  syncOnWrite: true
//
//	cache:
//	  policy: 2q             # lru or 2q
//	  size: ${MVSTORE_CACHE_SIZE:-64MB}
//	  protectedRatio: 0.75
//
//	logging:
//	  level: info
//	  format: json
//	  output: stderr
//
// # Environment Variables
//
// ${VAR} is replaced with the value of VAR before parsing. ${VAR:-default}
// uses default when VAR is unset or empty.
//
// # Loading
//
//	cfg, err := config.LoadConfig("/etc/mvstore.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if errs := config.ValidateConfig(cfg); len(errs) > 0 {
//	    log.Fatal(errs[0])
//	}
//	logger, err := cfg.NewLogger()
//	opts, err := cfg.ToOptions(logger)
package config
