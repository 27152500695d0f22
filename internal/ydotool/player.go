package ydotool

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/deskflow/accept-portal-dialog/internal/config"
)

// KeyPresser sends one chord of key codes.
type KeyPresser interface {
	PressKeys(ctx context.Context, codes []int) error
}

// Player replays accept sequences through the input daemon.
type Player struct {
	presser  KeyPresser
	keySleep time.Duration
	logger   *slog.Logger
}

// NewPlayer creates a player. keySleep is the pause used for sleep
// steps.
func NewPlayer(presser KeyPresser, keySleep time.Duration, logger *slog.Logger) *Player {
	return &Player{
		presser:  presser,
		keySleep: keySleep,
		logger:   logger,
	}
}

// Play replays the sequence in order: a sleep step waits the configured
// pause, a key step presses one chord. The first failure aborts the
// rest of the sequence.
func (p *Player) Play(ctx context.Context, steps []config.Step) error {
	for i, step := range steps {
		if step.Sleep {
			p.logger.Debug("pausing between key presses", "step", i, "duration", p.keySleep)
			if err := sleepCtx(ctx, p.keySleep); err != nil {
				return err
			}
			continue
		}

		p.logger.Debug("pressing key combination", "step", i, "codes", step.Keys)
		if err := p.presser.PressKeys(ctx, step.Keys); err != nil {
			return fmt.Errorf("sequence step %d: %w", i, err)
		}
	}
	return nil
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
