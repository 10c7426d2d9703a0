// granomail notifies about recently finished Granola meetings, exactly
// once per meeting. It is designed to be triggered externally (launchd or
// cron, every ~5 minutes); one process is one run.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"granomail/internal/app"
	"granomail/internal/config"
)

func main() {
	var (
		cfgPath string
		dryRun  bool
		forceID string
	)
	flag.StringVar(&cfgPath, "config", config.DefaultPath(), "path to config file (yaml or json)")
	flag.BoolVar(&dryRun, "dry-run", false, "list meetings that would be notified without sending")
	flag.StringVar(&forceID, "force", "", "force-send the meeting whose id starts with this prefix")
	flag.Parse()

	if dryRun && forceID != "" {
		fmt.Fprintln(os.Stderr, "fatal: -dry-run and -force are mutually exclusive")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := app.Run(ctx, app.Options{
		ConfigPath:  cfgPath,
		DryRun:      dryRun,
		ForcePrefix: forceID,
		Stdout:      os.Stdout,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}
