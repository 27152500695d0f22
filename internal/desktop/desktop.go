// Package desktop detects the session's desktop shell and provides
// window discovery, activation and lock-state checks for it.
package desktop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/godbus/dbus/v5"
)

// Variant identifies the desktop shell in the current session.
type Variant int

const (
	GNOME Variant = iota + 1
	KDE
)

// String returns the lowercase variant name, which doubles as the config
// section name.
func (v Variant) String() string {
	switch v {
	case GNOME:
		return "gnome"
	case KDE:
		return "kde"
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

// Detect resolves the desktop variant from XDG_CURRENT_DESKTOP.
func Detect() (Variant, error) {
	return ParseVariant(os.Getenv("XDG_CURRENT_DESKTOP"))
}

// ParseVariant resolves an XDG_CURRENT_DESKTOP value. Compound values
// like "ubuntu:GNOME" are common, so substring matching is used, with
// GNOME checked first.
func ParseVariant(value string) (Variant, error) {
	if value == "" {
		return 0, errors.New("XDG_CURRENT_DESKTOP is not set")
	}
	switch {
	case strings.Contains(value, "GNOME"):
		return GNOME, nil
	case strings.Contains(value, "KDE"):
		return KDE, nil
	}
	return 0, fmt.Errorf("unsupported desktop: %q", value)
}

// Window is a candidate dialog window. ID is an opaque identifier whose
// format depends on the variant and is never compared across variants.
type Window struct {
	ID    string
	Title string
}

// Backend provides window discovery and activation for one desktop
// shell. Implementations never cache window handles between calls.
type Backend interface {
	// FindWindows returns the windows whose title contains the given
	// substring, in the order they should be acted on.
	FindWindows(ctx context.Context, title string) ([]Window, error)

	// ActiveWindow returns the id of the focused window, or an empty
	// string when nothing has focus.
	ActiveWindow(ctx context.Context) (string, error)

	// Activate gives the window keyboard focus.
	Activate(ctx context.Context, id string) error

	// HasFocus reports whether the window has keyboard focus.
	HasFocus(ctx context.Context, id string) (bool, error)
}

// LockChecker reports whether the session is locked.
type LockChecker interface {
	Locked(ctx context.Context) (bool, error)
}

// New returns the backend and lock checker for the variant. Both return
// values are the same underlying object; the split keeps consumers
// narrow. This is the only place the variant selects behavior.
func New(ctx context.Context, variant Variant, conn *dbus.Conn, logger *slog.Logger) (Backend, LockChecker, error) {
	switch variant {
	case GNOME:
		g, err := NewGnomeShell(ctx, conn, logger)
		if err != nil {
			return nil, nil, err
		}
		return g, g, nil
	case KDE:
		k, err := NewKdePlasma(conn, logger)
		if err != nil {
			return nil, nil, err
		}
		return k, k, nil
	}
	return nil, nil, fmt.Errorf("unsupported desktop variant: %v", variant)
}
