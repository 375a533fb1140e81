package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"cronsched/internal/app"
)

const usage = `usage: cronsched [-config settings.yaml] [-roster config.txt] <pool-size>

Runs every job listed in the roster on its frequency, using at most
<pool-size> concurrent executions.
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("cronsched", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage) }

	var cfgPath, rosterPath string
	fs.StringVar(&cfgPath, "config", "./settings.yaml", "path to settings yaml/json (optional)")
	fs.StringVar(&rosterPath, "roster", "", "path to job roster (overrides roster.path)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	poolSize, err := parsePoolSize(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		return 1
	}

	a, err := app.New(app.Options{ConfigPath: cfgPath, RosterPath: rosterPath, PoolSize: poolSize})
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		return 1
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	if err := a.Start(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_ = a.Stop(stopCtx, app.StopFatalError)
		cancel()
		return 1
	}

	reason := app.StopUnknown
	code := 0
	select {
	case sig := <-sigs:
		if sig == syscall.SIGTERM {
			reason = app.StopSIGTERM
		} else {
			reason = app.StopSIGINT
		}
	case <-a.Done():
		reason = app.StopFatalError
		code = 1
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Stop(stopCtx, reason); err != nil {
		fmt.Fprintln(os.Stderr, "stop:", err)
	}
	if code != 0 && a.Err() != nil {
		fmt.Fprintln(os.Stderr, "fatal:", a.Err())
	}
	return code
}

func parsePoolSize(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("pool size %q is not an integer", s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("pool size must be positive, got %d", n)
	}
	return n, nil
}
