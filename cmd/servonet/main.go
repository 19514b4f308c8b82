// Command servonet builds convolutional networks and inspects their scores,
// losses and gradients on random inputs or the servo image set.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
)

const version = "v0.1.0"

const usage = `servonet %s

Usage:
  servonet <command> [flags]

Commands:
  version    Show version
  init       Build a network and list its parameters
  scores     Run the forward pass on a batch
  loss       Compute the loss and gradient norms on a batch
  gradcheck  Compare analytic and numerical gradients

Run "servonet <command> -h" for command flags.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil && !errors.Is(err, flag.ErrHelp) {
		fmt.Fprintln(os.Stderr, "servonet:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintf(stderr, usage, version)
		return flag.ErrHelp
	}

	cmd, args := args[0], args[1:]
	switch cmd {
	case "version":
		fmt.Fprintf(stdout, "servonet %s\n", version)
		return nil
	case "init":
		return runInit(ctx, args, stdout, stderr)
	case "scores":
		return runScores(ctx, args, stdout, stderr)
	case "loss":
		return runLoss(ctx, args, stdout, stderr)
	case "gradcheck":
		return runGradcheck(ctx, args, stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintf(stdout, usage, version)
		return nil
	default:
		fmt.Fprintf(stderr, usage, version)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
