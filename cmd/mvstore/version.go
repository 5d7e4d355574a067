package main

import (
	"flag"
	"fmt"
	"runtime"

	"github.com/KilimcininKorOglu/mvstore/internal/storage"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/chunk"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

// versionCmd prints the release and the chunk format it reads and writes.
func versionCmd(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	fs.SetOutput(stderr)
	short := fs.Bool("short", false, "")
	help := fs.Bool("h", false, "")
	fs.BoolVar(help, "help", false, "")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *help {
		printVersionUsage(stdout)
		return 0
	}
	if *short {
		fmt.Fprintln(stdout, version)
		return 0
	}

	fmt.Fprintf(stdout, "mvstore version %s\n", version)
	fmt.Fprintf(stdout, "  Chunk format: %d\n", chunk.FormatVersion)
	fmt.Fprintf(stdout, "  Backends:     %s, %s, %s\n", storage.BackendFile, storage.BackendPebble, storage.BackendMemory)
	fmt.Fprintf(stdout, "  Go version:   %s (%s/%s)\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return 0
}
