// Package app wires configuration, storage, the meeting source, the
// notifier and the run orchestrator into one invocation.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"granomail/internal/config"
	"granomail/internal/granola"
	"granomail/internal/meeting"
	"granomail/internal/notify"
	"granomail/internal/schedule"
	"granomail/internal/storage"
	logx "granomail/pkg/logx"
)

// Options is the invocation surface: exactly one of DryRun/ForcePrefix
// may be set (both empty means a normal run).
type Options struct {
	ConfigPath  string
	DryRun      bool
	ForcePrefix string

	// Stdout receives the human-readable run report. Logging goes to
	// stderr/file via logx.
	Stdout io.Writer
}

// Run executes one granomail invocation.
//
// A nil error means the run completed; per-meeting delivery failures are
// reported inside the run and do not fail the process. A non-nil error is
// a fatal setup, source or ledger problem.
func Run(ctx context.Context, opts Options) error {
	if opts.DryRun && opts.ForcePrefix != "" {
		return schedule.ErrModeConflict
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	log, closeLog, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()

	if !opts.DryRun && !cfg.Email.Enabled {
		log.Info("notifications are disabled; set email.enabled (or EMAIL_ENABLED=true)")
		return nil
	}

	lookback, err := config.ParseDurationOrDefault("schedule.lookback", cfg.Schedule.Lookback, schedule.DefaultWindow)
	if err != nil {
		return err
	}
	retention, err := config.ParseDurationField("ledger.retention", cfg.Ledger.Retention)
	if err != nil {
		return err
	}
	busyTimeout, err := config.ParseDurationField("ledger.busy_timeout", cfg.Ledger.BusyTimeout)
	if err != nil {
		return err
	}
	loc, err := config.ParseLocation("schedule.timezone", cfg.Schedule.Timezone)
	if err != nil {
		return err
	}

	var source meeting.Source = granola.NewSource(cfg.Cache.Path, loc, log)

	store, err := storage.Open(storage.Config{
		Driver:      cfg.Ledger.Driver,
		Path:        cfg.Ledger.Path,
		BusyTimeout: busyTimeout,
	}, log)
	if err != nil {
		return fmt.Errorf("open ledger storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	var notifier notify.Notifier
	if !opts.DryRun {
		notifier, err = buildNotifier(ctx, cfg, log)
		if err != nil {
			return err
		}
	}

	runner := schedule.New(schedule.Config{
		Window:    lookback,
		Retention: retention,
		To:        cfg.Email.To,
		From:      cfg.Email.From,
	}, source, notifier, store, log)

	rep, err := runner.Run(ctx, schedule.Options{
		DryRun:      opts.DryRun,
		ForcePrefix: opts.ForcePrefix,
	})
	if err != nil {
		return err
	}

	printReport(opts.Stdout, rep)
	return nil
}

func newLogger(cfg config.LoggingConfig) (logx.Logger, func(), error) {
	console := true
	if cfg.Console != nil {
		console = *cfg.Console
	}
	return logx.New(logx.Config{
		Level:   cfg.Level,
		Console: console,
		File: logx.FileConfig{
			Enabled: cfg.File.Enabled,
			Path:    cfg.File.Path,
		},
	})
}

func buildNotifier(ctx context.Context, cfg *config.Config, log logx.Logger) (notify.Notifier, error) {
	var (
		n   notify.Notifier
		err error
	)
	switch cfg.Notify.Driver {
	case "", "ses":
		if cfg.Email.To == "" {
			return nil, errors.New("email.to is required (or set EMAIL_TO)")
		}
		if cfg.Email.From == "" {
			return nil, errors.New("email.from is required (or set EMAIL_FROM)")
		}
		timeout, terr := config.ParseDurationField("notify.timeout", cfg.Notify.Timeout)
		if terr != nil {
			return nil, terr
		}
		n, err = notify.NewSES(ctx, notify.SESConfig{
			Region:   cfg.Notify.Region,
			Endpoint: cfg.Notify.Endpoint,
			Timeout:  timeout,
		}, log)
	case "telegram":
		n, err = notify.NewTelegram(notify.TelegramConfig{
			Token:  cfg.Notify.Telegram.Token,
			ChatID: cfg.Notify.Telegram.ChatID,
		}, log)
	default:
		return nil, errors.New("unknown notify driver: " + cfg.Notify.Driver)
	}
	if err != nil {
		return nil, err
	}
	return notify.Limit(n, cfg.Notify.RatePerSec), nil
}

func printReport(w io.Writer, rep *schedule.Report) {
	if w == nil {
		return
	}
	for _, o := range rep.Outcomes {
		id := o.MeetingID
		if len(id) > 8 {
			id = id[:8]
		}
		switch {
		case o.WouldSend:
			fmt.Fprintf(w, "  [%s] %s\n      subject: %s\n", id, o.Title, o.Subject)
		case o.Delivered:
			fmt.Fprintf(w, "  [%s] %s: sent\n", id, o.Title)
		default:
			fmt.Fprintf(w, "  [%s] %s: FAILED: %s\n", id, o.Title, o.Err)
		}
	}
	switch rep.Mode {
	case schedule.ModeDryRun:
		fmt.Fprintf(w, "[dry-run] would notify %d of %d meeting(s)\n", rep.Selected, rep.Checked)
	default:
		fmt.Fprintf(w, "notified %d meeting(s), %d failed (checked %d)\n", rep.Sent, rep.Failed, rep.Checked)
	}
}
