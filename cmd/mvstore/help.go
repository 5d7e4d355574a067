package main

import (
	"fmt"
	"io"
)

const storeOptions = `  -config string
        Path to configuration file
  -data-dir string
        Data directory (overrides config)
  -backend string
        Backend: file, pebble (overrides config)
  -log-level string
        Log level: debug, info, warn, error (overrides config)
  -h, -help
        Show this help message
`

// printUsage prints the main usage information to the given writer.
func printUsage(w io.Writer) {
	fmt.Fprint(w, `mvstore - Multi-version B-tree store

Usage:
  mvstore <command> [options]

Commands:
  inspect     Show chunks, versions and table roots
  scan        Print the rows of a table
  put         Write one row
  delete      Delete one key
  stats       Print metrics in Prometheus text format
  version     Show version information

Use "mvstore <command> -h" for more information about a command.
`)
}

func printInspectUsage(w io.Writer) {
	fmt.Fprint(w, `Show chunks, versions and table roots

Usage:
  mvstore inspect [options]

Options:
`+storeOptions)
}

func printScanUsage(w io.Writer) {
	fmt.Fprint(w, `Print the rows of a table in key order

Usage:
  mvstore scan -table name [options]

Options:
  -table string
        Table to scan (required)
  -from string
        Lowest key to print
  -to string
        Highest key to print
  -limit int
        Maximum rows to print (0 for all)
`+storeOptions+`
Keys are parsed as integers when numeric, "quoted" strings, X'hex' bytes
or plain strings otherwise.
`)
}

func printPutUsage(w io.Writer) {
	fmt.Fprint(w, `Write one row and commit it

Usage:
  mvstore put -table name [options] key [column...]

Options:
  -table string
        Table to write (required)
`+storeOptions)
}

func printDeleteUsage(w io.Writer) {
	fmt.Fprint(w, `Delete one key and commit

Usage:
  mvstore delete -table name [options] key

Options:
  -table string
        Table to delete from (required)
`+storeOptions)
}

func printStatsUsage(w io.Writer) {
	fmt.Fprint(w, `Print metrics in Prometheus text format

Usage:
  mvstore stats [options]

Options:
`+storeOptions)
}

func printVersionUsage(w io.Writer) {
	fmt.Fprint(w, `Show version information

Usage:
  mvstore version [options]

Options:
  -short
        Show only version number
  -h, -help
        Show this help message
`)
}
