// Command hfsmdemo drives the example device and menu state machines from the terminal.
//
//	hfsmdemo -machine device                      # interactive
//	hfsmdemo -events PowerOn,Start,Fail -diagram plantuml
//	hfsmdemo -events PowerOn -idle 2s -linger 3s   # watch Idle power down
//	hfsmdemo -fleet 100 -events PowerOn,Start -quiet
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/amp-labs/amp-hfsm/cli"
	"github.com/amp-labs/amp-hfsm/logger"
	"github.com/amp-labs/amp-hfsm/shutdown"
	"github.com/amp-labs/amp-hfsm/telemetry"
)

// drain bounds how long shutdown hooks may take once the session ends.
const drain = 5 * time.Second

func main() {
	if err := mainErr(); err != nil {
		logger.Get().Error("hfsmdemo failed", "error", err)
		os.Exit(1)
	}
}

func mainErr() error {
	logger.ConfigureLoggingWithOptions(logger.Options{
		Subsystem: "hfsmdemo",
		MinLevel:  slog.LevelWarn,
		Output:    os.Stderr,
	})

	opts, err := parseOptions(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}

		return err
	}

	ctx := shutdown.SetupHandler(context.Background())

	defer func() {
		hookCtx, cancel := context.WithTimeout(context.Background(), drain)
		defer cancel()

		if err := shutdown.RunHooks(hookCtx); err != nil {
			logger.Get(hookCtx).Error("shutdown failed", "error", err)
		}
	}()

	telemetryConfig, err := telemetry.LoadConfigFromEnv(ctx, "demo")
	if err != nil {
		return err
	}

	if err := telemetry.Initialize(ctx, telemetryConfig); err != nil {
		return err
	}

	shutdown.BeforeShutdown("telemetry", telemetry.Shutdown)

	a, err := newApp(opts, cli.NewConsole())
	if err != nil {
		return err
	}

	return a.run(ctx)
}
