// Package watcher runs the dialog detection and acceptance loop.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/deskflow/accept-portal-dialog/internal/config"
	"github.com/deskflow/accept-portal-dialog/internal/desktop"
)

// SequencePlayer replays one accept sequence.
type SequencePlayer interface {
	Play(ctx context.Context, steps []config.Step) error
}

// Watcher polls the desktop for portal permission dialogs and accepts
// them with the configured key sequence.
type Watcher struct {
	variant    desktop.Variant
	backend    desktop.Backend
	lock       desktop.LockChecker
	player     SequencePlayer
	titles     []string
	sequence   []config.Step
	interval   time.Duration
	startDelay time.Duration
	logger     *slog.Logger
}

// New builds a watcher for the detected variant. The variant's titles
// and sequence are resolved here once; the loop never consults the
// variant again.
func New(cfg *config.Config, variant desktop.Variant, backend desktop.Backend, lock desktop.LockChecker, player SequencePlayer, logger *slog.Logger) (*Watcher, error) {
	dc, ok := cfg.Desktop(variant.String())
	if !ok {
		return nil, fmt.Errorf("no config section for desktop %q", variant)
	}
	if len(dc.DialogTitles) == 0 {
		return nil, fmt.Errorf("no dialog titles configured for desktop %q", variant)
	}
	if len(dc.AcceptSequence) == 0 {
		return nil, fmt.Errorf("no accept sequence configured for desktop %q", variant)
	}

	return &Watcher{
		variant:    variant,
		backend:    backend,
		lock:       lock,
		player:     player,
		titles:     dc.DialogTitles,
		sequence:   dc.AcceptSequence,
		interval:   cfg.Program.CheckInterval,
		startDelay: cfg.Program.SequenceStartDelay,
		logger:     logger,
	}, nil
}

// Run executes the poll loop until the context ends. Context
// cancellation is a normal shutdown and returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watching for portal permission dialogs",
		"desktop", w.variant.String(), "titles", w.titles, "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.tick(ctx); err != nil {
			if ctx.Err() != nil {
				w.logger.Info("stopped watching")
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			w.logger.Info("stopped watching")
			return nil
		case <-ticker.C:
		}
	}
}

// tick runs one detection pass. Only fatal errors are returned;
// transient failures are logged and the pass moves on.
func (w *Watcher) tick(ctx context.Context) error {
	locked, err := w.lock.Locked(ctx)
	if err != nil {
		// Unknown screen state; do not type into it.
		w.logger.Warn("cannot determine lock state, skipping checks", "error", err)
		return nil
	}
	if locked {
		w.logger.Debug("desktop session is locked, skipping checks")
		return nil
	}

	for _, title := range w.titles {
		windows, err := w.backend.FindWindows(ctx, title)
		if err != nil {
			if fatal(err) {
				return fmt.Errorf("window discovery: %w", err)
			}
			w.logger.Warn("window discovery failed", "title", title, "error", err)
			continue
		}

		for _, win := range windows {
			if err := w.accept(ctx, win); err != nil {
				return err
			}
		}
	}
	return nil
}

// accept focuses one dialog and replays the sequence into it.
func (w *Watcher) accept(ctx context.Context, win desktop.Window) error {
	w.logger.Info("found portal permission dialog", "title", win.Title, "id", win.ID)

	focused, err := w.backend.HasFocus(ctx, win.ID)
	if err != nil {
		if fatal(err) {
			return fmt.Errorf("focus check: %w", err)
		}
		w.logger.Debug("focus check failed, assuming unfocused", "id", win.ID, "error", err)
		focused = false
	}

	if !focused {
		if err := w.backend.Activate(ctx, win.ID); err != nil {
			if fatal(err) {
				return fmt.Errorf("window activation: %w", err)
			}
			w.logger.Warn("could not activate dialog", "id", win.ID, "error", err)
			return nil
		}
	}

	// Give the dialog time to settle before keys land.
	w.logger.Debug("waiting before accepting dialog", "delay", w.startDelay)
	if err := sleepCtx(ctx, w.startDelay); err != nil {
		return err
	}

	w.logger.Info("accepting portal permission dialog", "title", win.Title)
	if err := w.player.Play(ctx, w.sequence); err != nil {
		if fatal(err) || ctx.Err() != nil {
			return fmt.Errorf("key sequence: %w", err)
		}
		w.logger.Warn("key sequence failed", "error", err)
	}
	return nil
}

// fatal reports errors that mean a broken installation rather than a
// transient failure.
func fatal(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}

// sleepCtx waits for d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
