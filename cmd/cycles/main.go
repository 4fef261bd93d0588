// Command cycles plays cycle-driven games and inspects their audit ledger.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
)

const usage = `usage: cycles <command> [flags]

commands:
  play    play games from a definition and record them
  serve   serve the audit API and live feed
  trace   print the stored rounds of a game
  token   manage the API bearer token (set | clear)

Run "cycles <command> -h" for the flags of a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "play":
		err = runPlay(ctx, args)
	case "serve":
		err = runServe(ctx, args)
	case "trace":
		err = runTrace(ctx, args, os.Stdout)
	case "token":
		err = runToken(args, os.Stdin, os.Stdout)
	case "help", "-h", "--help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "cycles %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func newLogger(prefix string, quiet bool) *log.Logger {
	if quiet {
		return log.New(io.Discard, "", 0)
	}
	return log.New(os.Stdout, "["+prefix+"] ", log.LstdFlags|log.Lshortfile)
}

func logStartup(logger *log.Logger, what string) {
	logger.Printf("Starting stake-cycles %s (Go %s)...", what, runtime.Version())
}
