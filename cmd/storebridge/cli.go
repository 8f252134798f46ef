package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/storebridge/storebridge/internal/batch"
	"github.com/storebridge/storebridge/internal/platform/httpx"
)

// commandRunner executes one batch command.
type commandRunner interface {
	Run(ctx context.Context, command string, opts batch.Options) batch.Result
}

// cliOptions configures one CLI invocation.
type cliOptions struct {
	Command string
	Args    []string
	Stdout  io.Writer
	Stderr  io.Writer
}

// runCLI parses flags for a batch command, runs it and returns the process
// exit status. Flags may appear before or after positional arguments.
func runCLI(ctx context.Context, runner commandRunner, opts cliOptions) int {
	fs := flag.NewFlagSet(opts.Command, flag.ContinueOnError)
	fs.SetOutput(opts.Stderr)
	limit := fs.Int("limit", 0, "maximum number of records (inventory-sync)")
	offset := fs.Int("offset", 0, "records to skip (inventory-sync)")
	asJSON := fs.Bool("json", false, "print the JSON envelope used by the HTTP endpoint")
	fs.Usage = func() {
		fmt.Fprintf(opts.Stderr, "usage: storebridge %s [--limit=N] [--offset=N] [--json] [args...]\n", opts.Command)
		fs.PrintDefaults()
	}

	positional, err := parseInterspersed(fs, opts.Args)
	if err != nil {
		return 1
	}

	res := runner.Run(ctx, opts.Command, batch.Options{Limit: *limit, Offset: *offset, Args: positional})
	if *asJSON {
		enc := json.NewEncoder(opts.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(httpx.Envelope{Success: res.OK, Data: res, Error: res.Error})
		return res.ExitCode()
	}
	for _, line := range res.Lines {
		fmt.Fprintln(opts.Stdout, line)
	}
	if res.Error != "" {
		fmt.Fprintln(opts.Stderr, "error: "+res.Error)
	}
	if res.Usage {
		fs.Usage()
	}
	return res.ExitCode()
}

// parseInterspersed lets flags follow positional arguments. Everything
// after "--" is positional.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var tail []string
	if i := slices.Index(args, "--"); i >= 0 {
		args, tail = args[:i], args[i+1:]
	}
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return append(positional, tail...), nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: storebridge [serve]")
	fmt.Fprintln(w, "       storebridge <command> [--limit=N] [--offset=N] [--json] [args...]")
	fmt.Fprintln(w, "commands: "+strings.Join(batch.Commands, ", "))
}
