// Package main provides the mvstore command-line tool.
package main

import (
	"fmt"
	"io"
	"os"
)

// Output streams. Tests replace them.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	os.Exit(run(os.Args))
}

// run executes the CLI and returns an exit code.
func run(args []string) int {
	if len(args) < 2 {
		printUsage(stdout)
		return 1
	}

	switch args[1] {
	case "inspect":
		return inspectCmd(args[2:])
	case "scan":
		return scanCmd(args[2:])
	case "put":
		return putCmd(args[2:])
	case "delete":
		return deleteCmd(args[2:])
	case "stats":
		return statsCmd(args[2:])
	case "version":
		return versionCmd(args[2:])
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		fmt.Fprintln(stderr, "Run 'mvstore help' for usage.")
		return 1
	}
}
