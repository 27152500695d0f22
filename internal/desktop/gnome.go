package desktop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/godbus/dbus/v5"
)

const (
	gnomeShellService = "org.gnome.Shell"
	gnomeShellPath    = dbus.ObjectPath("/org/gnome/Shell")
	gnomeShellEval    = "org.gnome.Shell.Eval"

	gnomeSaverService   = "org.gnome.ScreenSaver"
	gnomeSaverPath      = dbus.ObjectPath("/org/gnome/ScreenSaver")
	gnomeSaverGetActive = "org.gnome.ScreenSaver.GetActive"
)

// ErrEvalDisabled means GNOME Shell rejected the scripting channel,
// which only works with unsafe mode enabled.
var ErrEvalDisabled = errors.New("GNOME shell eval is unavailable")

const unsafeModeHint = "enable unsafe mode: press Alt+F2, type lg, then run global.context.unsafe_mode = true"

// Window query expressions. Results are JSON.stringify output, decoded
// through decodeEval.
const (
	gnomeWindowQuery = `JSON.stringify(global.get_window_actors()` +
		`.map(w => ({title: w.meta_window?.get_title(), id: w.meta_window?.get_id()}))` +
		`.filter(w => w.title && w.title.includes(%s)))`

	gnomeActiveQuery = `JSON.stringify(String(global.get_window_actors()` +
		`.find(w => w.meta_window?.has_focus())?.meta_window?.get_id() ?? ""))`

	gnomeFocusQuery = `JSON.stringify(global.get_window_actors()` +
		`.find(w => w.meta_window?.get_id() == %s)?.meta_window?.has_focus() ?? false)`

	gnomeActivateExpr = `global.get_window_actors()` +
		`.find(w => w.meta_window?.get_id() == %s)` +
		`?.meta_window?.activate(global.get_current_time());`
)

// GnomeShell drives GNOME through the org.gnome.Shell scripting channel
// on the session bus.
type GnomeShell struct {
	shell  dbus.BusObject
	saver  dbus.BusObject
	logger *slog.Logger
}

// NewGnomeShell verifies the eval channel once and returns the backend.
func NewGnomeShell(ctx context.Context, conn *dbus.Conn, logger *slog.Logger) (*GnomeShell, error) {
	g := &GnomeShell{
		shell:  conn.Object(gnomeShellService, gnomeShellPath),
		saver:  conn.Object(gnomeSaverService, gnomeSaverPath),
		logger: logger,
	}
	if err := g.checkEval(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

// checkEval proves the scripting channel works by evaluating 1+1.
func (g *GnomeShell) checkEval(ctx context.Context) error {
	res, err := g.eval(ctx, "1+1")
	if err != nil {
		return fmt.Errorf("%w (%s): %v", ErrEvalDisabled, unsafeModeHint, err)
	}
	if res != float64(2) {
		return fmt.Errorf("%w (%s): eval check returned %v", ErrEvalDisabled, unsafeModeHint, res)
	}
	g.logger.Debug("gnome shell eval is available")
	return nil
}

// gnomeWindow mirrors the record shape produced by gnomeWindowQuery.
type gnomeWindow struct {
	Title string `json:"title"`
	ID    int64  `json:"id"`
}

func (g *GnomeShell) FindWindows(ctx context.Context, title string) ([]Window, error) {
	res, err := g.eval(ctx, fmt.Sprintf(gnomeWindowQuery, jsString(title)))
	if err != nil {
		return nil, err
	}

	var records []gnomeWindow
	if err := reencode(res, &records); err != nil {
		return nil, fmt.Errorf("decoding window list: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	// GNOME stacks portal dialogs modally and only the top one can take
	// input, so only the frontmost match is returned. The next tick
	// picks up whatever is revealed underneath.
	front := records[0]
	return []Window{{ID: strconv.FormatInt(front.ID, 10), Title: front.Title}}, nil
}

func (g *GnomeShell) ActiveWindow(ctx context.Context) (string, error) {
	res, err := g.eval(ctx, gnomeActiveQuery)
	if err != nil {
		return "", err
	}
	return activeWindowID(res)
}

// activeWindowID normalizes a decoded active window payload to an id
// string. Numeric id strings decode all the way to a number.
func activeWindowID(v any) (string, error) {
	switch id := v.(type) {
	case string:
		return id, nil
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("unexpected active window result: %v", v)
}

func (g *GnomeShell) Activate(ctx context.Context, id string) error {
	if !validWindowID(id) {
		return fmt.Errorf("invalid window id %q", id)
	}
	g.logger.Debug("activating window", "id", id)
	_, err := g.eval(ctx, fmt.Sprintf(gnomeActivateExpr, id))
	return err
}

func (g *GnomeShell) HasFocus(ctx context.Context, id string) (bool, error) {
	if !validWindowID(id) {
		return false, fmt.Errorf("invalid window id %q", id)
	}
	res, err := g.eval(ctx, fmt.Sprintf(gnomeFocusQuery, id))
	if err != nil {
		return false, err
	}
	focused, ok := res.(bool)
	if !ok {
		return false, fmt.Errorf("unexpected focus result: %v", res)
	}
	return focused, nil
}

func (g *GnomeShell) Locked(ctx context.Context) (bool, error) {
	var active bool
	if err := g.saver.CallWithContext(ctx, gnomeSaverGetActive, 0).Store(&active); err != nil {
		return false, fmt.Errorf("calling %s: %w", gnomeSaverGetActive, err)
	}
	return active, nil
}

// eval runs a JS expression in GNOME Shell and returns the decoded
// result.
func (g *GnomeShell) eval(ctx context.Context, expr string) (any, error) {
	var (
		ok  bool
		raw string
	)
	if err := g.shell.CallWithContext(ctx, gnomeShellEval, 0, expr).Store(&ok, &raw); err != nil {
		return nil, fmt.Errorf("calling %s: %w", gnomeShellEval, err)
	}
	if !ok {
		return nil, fmt.Errorf("shell rejected expression: %s", raw)
	}
	return decodeEval(raw), nil
}

// decodeEval unwraps an eval payload that may be JSON-encoded as a
// string any number of times and returns the innermost value. A string
// that is not valid JSON comes back unchanged.
func decodeEval(s string) any {
	var v any = s
	for {
		cur, ok := v.(string)
		if !ok {
			return v
		}
		var next any
		if err := json.Unmarshal([]byte(cur), &next); err != nil {
			return v
		}
		if ns, ok := next.(string); ok && ns == cur {
			return v
		}
		v = next
	}
}

// reencode converts a decoded eval value into a typed structure.
func reencode(v any, out any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// jsString renders s as a JS string literal. JSON string quoting is a
// strict subset of JS.
func jsString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

// validWindowID guards ids embedded into eval expressions. GNOME window
// ids are decimal numbers; anything else never came from our own
// discovery.
func validWindowID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
