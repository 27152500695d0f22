package ydotool

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/deskflow/accept-portal-dialog/internal/config"
)

type fakePresser struct {
	calls [][]int
	err   error
}

func (f *fakePresser) PressKeys(_ context.Context, codes []int) error {
	f.calls = append(f.calls, append([]int(nil), codes...))
	return f.err
}

func TestPlaySequence(t *testing.T) {
	presser := &fakePresser{}
	player := NewPlayer(presser, time.Millisecond, testLogger())

	steps := []config.Step{
		{Keys: []int{28}},
		{Sleep: true},
		{Keys: []int{56, 31}},
	}

	if err := player.Play(context.Background(), steps); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	if len(presser.calls) != 2 {
		t.Fatalf("press calls = %d, want 2", len(presser.calls))
	}
	if presser.calls[0][0] != 28 {
		t.Errorf("first chord = %v, want [28]", presser.calls[0])
	}
	if len(presser.calls[1]) != 2 || presser.calls[1][0] != 56 || presser.calls[1][1] != 31 {
		t.Errorf("second chord = %v, want [56 31]", presser.calls[1])
	}
}

func TestPlayStopsOnError(t *testing.T) {
	presser := &fakePresser{err: errors.New("daemon gone")}
	player := NewPlayer(presser, time.Millisecond, testLogger())

	steps := []config.Step{
		{Keys: []int{28}},
		{Keys: []int{15}},
	}

	err := player.Play(context.Background(), steps)
	if err == nil {
		t.Fatal("Play should fail when a press fails")
	}
	if !strings.Contains(err.Error(), "step 0") {
		t.Errorf("error should name the failing step, got: %v", err)
	}
	if len(presser.calls) != 1 {
		t.Errorf("press calls = %d, want 1 (sequence aborted)", len(presser.calls))
	}
}

func TestPlayCancelledDuringPause(t *testing.T) {
	presser := &fakePresser{}
	player := NewPlayer(presser, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	steps := []config.Step{
		{Sleep: true},
		{Keys: []int{28}},
	}

	err := player.Play(ctx, steps)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Play error = %v, want context.Canceled", err)
	}
	if len(presser.calls) != 0 {
		t.Errorf("press calls = %d, want 0 after cancellation", len(presser.calls))
	}
}

func TestPlayEmptySequence(t *testing.T) {
	presser := &fakePresser{}
	player := NewPlayer(presser, time.Millisecond, testLogger())

	if err := player.Play(context.Background(), nil); err != nil {
		t.Errorf("Play of an empty sequence should succeed, got %v", err)
	}
	if len(presser.calls) != 0 {
		t.Errorf("press calls = %d, want 0", len(presser.calls))
	}
}
