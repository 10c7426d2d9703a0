package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"granomail/internal/ledger"
	"granomail/internal/meeting"
	"granomail/internal/notify"
	"granomail/internal/render"
	"granomail/internal/storage"
	logx "granomail/pkg/logx"
)

// Runner orchestrates one notification run.
type Runner struct {
	cfg      Config
	source   meeting.Source
	notifier notify.Notifier
	store    storage.Store
	log      logx.Logger
}

func New(cfg Config, src meeting.Source, n notify.Notifier, st storage.Store, log logx.Logger) *Runner {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Retention > 0 && cfg.Retention < cfg.Window {
		cfg.Retention = cfg.Window
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{cfg: cfg, source: src, notifier: n, store: st, log: log}
}

// Run executes one invocation and returns its report.
//
// A source fetch or ledger-load failure is fatal: no notifications are
// processed and no state is mutated. A single delivery failure is local
// to its meeting; the loop continues and the failed id stays out of the
// ledger so the next run retries it while it remains inside the window.
func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.DryRun && opts.ForcePrefix != "" {
		return nil, ErrModeConflict
	}
	if !opts.DryRun && r.notifier == nil {
		return nil, fmt.Errorf("no notifier configured for live run")
	}

	now := r.cfg.Now()
	rep := &Report{RunID: uuid.NewString(), Mode: runMode(opts)}
	log := r.log.With(logx.String("run_id", rep.RunID), logx.String("mode", rep.Mode))

	meetings, err := r.source.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch meetings: %w", err)
	}
	rep.Checked = len(meetings)

	led, err := r.store.LoadLedger(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if removed := led.Prune(now, r.cfg.Retention); removed > 0 {
		// Persisted only together with the next successful batch; a prune
		// alone never justifies touching the ledger file.
		log.Debug("ledger retention prune", logx.Int("removed", removed))
	}

	selected, err := r.selectMeetings(meetings, led, now, opts)
	if err != nil {
		return nil, err
	}
	rep.Selected = len(selected)

	if len(selected) == 0 {
		log.Info("no new meetings to notify", logx.Int("checked", rep.Checked))
		return rep, nil
	}

	var batch []string
	for _, m := range selected {
		out := r.processOne(ctx, log, rep, m, opts.DryRun)
		rep.Outcomes = append(rep.Outcomes, out)
		if out.Delivered {
			batch = append(batch, m.ID)
		}
	}

	// Single ledger write, only for confirmed successes. An all-failed run
	// leaves the ledger untouched so every failed meeting is retried next
	// time instead of being silently marked done.
	if !opts.DryRun && len(batch) > 0 {
		led.Merge(batch, now)
		led.SetLastRun(now)
		if err := r.store.SaveLedger(ctx, led); err != nil {
			// Mail went out but the ledger write failed: surface loudly,
			// the next run may duplicate these sends.
			return rep, fmt.Errorf("persist ledger after %d send(s): %w", len(batch), err)
		}
		log.Info("ledger updated", logx.Int("newly_notified", len(batch)), logx.Int("total", led.Len()))
	}

	return rep, nil
}

// selectMeetings computes the candidate set. Dry-run uses the exact same
// eligibility path as a live run; only delivery and the ledger write are
// skipped later.
func (r *Runner) selectMeetings(meetings []meeting.Meeting, led *ledger.Ledger, now time.Time, opts Options) ([]meeting.Meeting, error) {
	if opts.ForcePrefix != "" {
		for _, m := range meetings {
			if m.ID != "" && strings.HasPrefix(m.ID, opts.ForcePrefix) {
				// First match in iteration order wins; the prefix is an
				// operator convenience, ambiguity is theirs to resolve.
				return []meeting.Meeting{m}, nil
			}
		}
		return nil, fmt.Errorf("%w: %q", ErrForcedNotFound, opts.ForcePrefix)
	}

	var selected []meeting.Meeting
	for _, m := range meetings {
		if Eligible(m, led, now, r.cfg.Window) {
			selected = append(selected, m)
		}
	}
	return selected, nil
}

// processOne renders and (outside dry-run) delivers a single meeting.
// Failures are recorded, never propagated: one meeting's failure must not
// block another's delivery.
func (r *Runner) processOne(ctx context.Context, log logx.Logger, rep *Report, m meeting.Meeting, dryRun bool) Outcome {
	subject := render.Subject(m)
	out := Outcome{
		MeetingID: m.ID,
		Title:     m.DisplayTitle(),
		Subject:   subject,
		EndTime:   m.EndTime,
	}

	mlog := log.With(logx.String("meeting_id", shortID(m.ID)), logx.String("title", out.Title))

	if dryRun {
		out.WouldSend = true
		mlog.Info("would notify",
			logx.String("subject", subject),
			logx.Bool("has_transcript", m.HasTranscript()))
		return out
	}

	body := render.Body(m)
	start := time.Now()
	err := r.notifier.Deliver(ctx, notify.Message{
		To:      r.cfg.To,
		From:    r.cfg.From,
		Subject: subject,
		Body:    body,
	})
	took := time.Since(start)

	entry := storage.AuditEntry{
		At:        start,
		RunID:     rep.RunID,
		MeetingID: m.ID,
		Title:     out.Title,
		Channel:   r.notifier.Channel(),
		OK:        err == nil,
		TookMS:    took.Milliseconds(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if aerr := r.store.AppendAudit(ctx, entry); aerr != nil {
		mlog.Warn("audit append failed", logx.Err(aerr))
	}

	if err != nil {
		out.Err = err.Error()
		rep.Failed++
		mlog.Error("delivery failed", logx.Err(err), logx.Duration("took", took))
		return out
	}

	out.Delivered = true
	rep.Sent++
	mlog.Info("notified", logx.Duration("took", took))
	return out
}

func runMode(opts Options) string {
	switch {
	case opts.DryRun:
		return ModeDryRun
	case opts.ForcePrefix != "":
		return ModeForced
	default:
		return ModeNormal
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
