package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/KilimcininKorOglu/mvstore/internal/config"
	"github.com/KilimcininKorOglu/mvstore/internal/metrics"
	"github.com/KilimcininKorOglu/mvstore/internal/storage"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/btree"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/engine"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/value"
	"github.com/cockroachdb/errors"
)

// storeFlags are the flags shared by every command that opens a store.
type storeFlags struct {
	configFile *string
	dataDir    *string
	backend    *string
	logLevel   *string
	help       *bool
	helpLong   *bool
}

func newFlagSet(name string) (*flag.FlagSet, *storeFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	sf := &storeFlags{
		configFile: fs.String("config", "", "Path to configuration file"),
		dataDir:    fs.String("data-dir", "", "Data directory (overrides config)"),
		backend:    fs.String("backend", "", "Backend: file, pebble (overrides config)"),
		logLevel:   fs.String("log-level", "", "Log level (overrides config)"),
		help:       fs.Bool("h", false, "Show help message"),
		helpLong:   fs.Bool("help", false, "Show help message"),
	}
	return fs, sf
}

func (sf *storeFlags) wantHelp() bool {
	return *sf.help || *sf.helpLong
}

// open loads the configuration, applies flag overrides and opens the
// engine.
func (sf *storeFlags) open(readOnly bool) (*engine.Engine, error) {
	cfg := config.DefaultConfig()
	if *sf.configFile != "" {
		var err error
		if cfg, err = config.LoadConfig(*sf.configFile); err != nil {
			return nil, err
		}
	}
	if *sf.dataDir != "" {
		cfg.Storage.DataDir = *sf.dataDir
	}
	if *sf.backend != "" {
		cfg.Storage.Backend = strings.ToLower(*sf.backend)
	}
	if *sf.logLevel != "" {
		cfg.Logging.Level = *sf.logLevel
	}
	if readOnly {
		cfg.Storage.ReadOnly = true
		cfg.Storage.CreateIfNotExists = false
	}

	if errs := config.ValidateConfig(cfg); len(errs) > 0 {
		return nil, errs[0]
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}
	opts, err := cfg.ToOptions(logger)
	if err != nil {
		return nil, err
	}
	return engine.Open(cfg.Storage.DataDir, opts)
}

// inspectCmd prints the chunk list and table roots.
func inspectCmd(args []string) int {
	fs, sf := newFlagSet("inspect")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if sf.wantHelp() {
		printInspectUsage(stdout)
		return 0
	}

	e, err := sf.open(true)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening store: %v\n", err)
		return 1
	}
	defer e.Close()

	s := e.Stats()
	fmt.Fprintf(stdout, "Store:    %s\n", s.StoreID)
	fmt.Fprintf(stdout, "Version:  %d\n", s.Version)
	fmt.Fprintf(stdout, "Chunks:   %d\n", s.Chunks)
	fmt.Fprintln(stdout)

	fmt.Fprintf(stdout, "%-8s %-10s %-8s %-10s %s\n", "CHUNK", "VERSION", "PAGES", "BYTES", "TABLES")
	for _, m := range e.Chunks() {
		fmt.Fprintf(stdout, "%-8d %-10d %-8d %-10d %s\n",
			m.ID, m.Version, m.PageCount, m.Length, strings.Join(m.RootNames(), ","))
	}

	tables := e.Tables()
	if len(tables) == 0 {
		return 0
	}
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "%-20s %s\n", "TABLE", "DEPTH")
	for _, t := range tables {
		depth, err := e.Depth(t)
		if err != nil {
			fmt.Fprintf(stderr, "Error reading table %s: %v\n", t, err)
			return 1
		}
		fmt.Fprintf(stdout, "%-20s %d\n", t, depth)
	}
	return 0
}

// scanCmd prints the committed rows of one table in key order.
func scanCmd(args []string) int {
	fs, sf := newFlagSet("scan")
	table := fs.String("table", "", "Table to scan (required)")
	from := fs.String("from", "", "Lowest key to print")
	to := fs.String("to", "", "Highest key to print")
	limit := fs.Int("limit", 0, "Maximum rows to print (0 for all)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if sf.wantHelp() {
		printScanUsage(stdout)
		return 0
	}
	if *table == "" {
		fmt.Fprintln(stderr, "Error: -table is required")
		return 1
	}

	e, err := sf.open(true)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening store: %v\n", err)
		return 1
	}
	defer e.Close()

	var r btree.Range
	if *from != "" {
		low := value.Parse(*from)
		r.Low = &low
	}
	if *to != "" {
		high := value.Parse(*to)
		r.High = &high
	}

	sid := e.Begin()
	defer e.Rollback(sid)
	c, err := e.Scan(*table, r, sid)
	if err != nil {
		fmt.Fprintf(stderr, "Error scanning %s: %v\n", *table, err)
		return 1
	}
	defer c.Close()

	n := 0
	for c.Next() {
		cols := make([]string, len(c.Values()))
		for i, v := range c.Values() {
			cols[i] = v.String()
		}
		fmt.Fprintf(stdout, "%s\t%s\n", c.Key(), strings.Join(cols, "\t"))
		n++
		if *limit > 0 && n >= *limit {
			break
		}
	}
	if err := c.Err(); err != nil {
		fmt.Fprintf(stderr, "Error scanning %s: %v\n", *table, err)
		return 1
	}
	return 0
}

// putCmd writes one row and commits it.
func putCmd(args []string) int {
	fs, sf := newFlagSet("put")
	table := fs.String("table", "", "Table to write (required)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if sf.wantHelp() {
		printPutUsage(stdout)
		return 0
	}
	if *table == "" || fs.NArg() < 1 {
		fmt.Fprintln(stderr, "Error: -table and a key are required")
		return 1
	}

	row := make([]value.Value, 0, fs.NArg()-1)
	for _, s := range fs.Args()[1:] {
		row = append(row, value.Parse(s))
	}
	return commitOne(sf, func(e *engine.Engine, sid uint64) error {
		return e.Write(*table, value.Parse(fs.Arg(0)), row, sid)
	})
}

// deleteCmd removes one key and commits.
func deleteCmd(args []string) int {
	fs, sf := newFlagSet("delete")
	table := fs.String("table", "", "Table to delete from (required)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if sf.wantHelp() {
		printDeleteUsage(stdout)
		return 0
	}
	if *table == "" || fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: -table and exactly one key are required")
		return 1
	}

	return commitOne(sf, func(e *engine.Engine, sid uint64) error {
		return e.Delete(*table, value.Parse(fs.Arg(0)), sid)
	})
}

func commitOne(sf *storeFlags, fn func(*engine.Engine, uint64) error) int {
	e, err := sf.open(false)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening store: %v\n", err)
		return 1
	}
	defer e.Close()

	sid := e.Begin()
	if err := fn(e, sid); err != nil {
		e.Rollback(sid)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := e.Commit(sid); err != nil {
		fmt.Fprintf(stderr, "Commit failed: %v\n", err)
		if errors.Is(err, storage.ErrConcurrentUpdate) {
			fmt.Fprintln(stderr, "Another writer changed the key first; run the command again.")
		}
		return 1
	}
	fmt.Fprintf(stdout, "committed version %d\n", e.Version())
	return 0
}

// statsCmd prints engine metrics in Prometheus text format.
func statsCmd(args []string) int {
	fs, sf := newFlagSet("stats")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if sf.wantHelp() {
		printStatsUsage(stdout)
		return 0
	}

	e, err := sf.open(true)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening store: %v\n", err)
		return 1
	}
	defer e.Close()

	if err := metrics.Render(stdout, e); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
