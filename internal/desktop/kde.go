package desktop

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	kdotoolBin = "kdotool"

	freedesktopSaverService   = "org.freedesktop.ScreenSaver"
	freedesktopSaverPath      = dbus.ObjectPath("/org/freedesktop/ScreenSaver")
	freedesktopSaverGetActive = "org.freedesktop.ScreenSaver.GetActive"
)

// KdePlasma drives KDE through the kdotool window CLI. Lock state comes
// from the freedesktop screensaver service on the session bus.
type KdePlasma struct {
	saver  dbus.BusObject
	logger *slog.Logger

	// Replaceable in tests.
	run func(ctx context.Context, args ...string) (string, error)
}

// NewKdePlasma verifies kdotool is installed and returns the backend.
func NewKdePlasma(conn *dbus.Conn, logger *slog.Logger) (*KdePlasma, error) {
	if _, err := exec.LookPath(kdotoolBin); err != nil {
		return nil, fmt.Errorf("%s is required on KDE: %w", kdotoolBin, err)
	}
	k := &KdePlasma{
		saver:  conn.Object(freedesktopSaverService, freedesktopSaverPath),
		logger: logger,
	}
	k.run = k.kdotool
	return k, nil
}

func (k *KdePlasma) FindWindows(ctx context.Context, title string) ([]Window, error) {
	out, err := k.run(ctx, "search", "--name", title)
	if err != nil {
		return nil, err
	}

	var windows []Window
	for _, id := range splitLines(out) {
		name, err := k.run(ctx, "getwindowname", id)
		if err != nil || name == "" {
			// The window may have closed between calls; keep the handle
			// under the searched title.
			name = title
		}
		windows = append(windows, Window{ID: id, Title: name})
	}
	return windows, nil
}

func (k *KdePlasma) ActiveWindow(ctx context.Context) (string, error) {
	return k.run(ctx, "getactivewindow")
}

func (k *KdePlasma) Activate(ctx context.Context, id string) error {
	k.logger.Debug("activating window", "id", id)
	_, err := k.run(ctx, "windowactivate", id)
	return err
}

func (k *KdePlasma) HasFocus(ctx context.Context, id string) (bool, error) {
	active, err := k.ActiveWindow(ctx)
	if err != nil {
		return false, err
	}
	return active == id, nil
}

func (k *KdePlasma) Locked(ctx context.Context) (bool, error) {
	var active bool
	if err := k.saver.CallWithContext(ctx, freedesktopSaverGetActive, 0).Store(&active); err != nil {
		return false, fmt.Errorf("calling %s: %w", freedesktopSaverGetActive, err)
	}
	return active, nil
}

// kdotool runs one kdotool subcommand and returns trimmed stdout.
func (k *KdePlasma) kdotool(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, kdotoolBin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s %s: %w: %s", kdotoolBin, args[0], err, msg)
		}
		return "", fmt.Errorf("%s %s: %w", kdotoolBin, args[0], err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// splitLines splits command output into trimmed non-empty lines.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
