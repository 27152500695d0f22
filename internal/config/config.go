// Package config loads the watcher configuration from an INI file,
// creating a commented default on first run.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/ini.v1"
)

const (
	appDirName     = "accept-portal-dialog"
	configFileName = "config.ini"
	configFileMode = 0644
	configDirMode  = 0755

	// sleepStep is the sequence value that pauses instead of pressing.
	sleepStep = "<sleep>"

	// maxSequenceSteps bounds accept_sequence_N lookups.
	maxSequenceSteps = 10
)

// Linux input event codes used in the default sequences.
const (
	keyEnter   = 28
	keyS       = 31
	keyLeftAlt = 56
)

const (
	defaultCheckInterval = 500 * time.Millisecond
	defaultStartDelay    = 500 * time.Millisecond
	defaultKeySleep      = 500 * time.Millisecond

	// minTiming is the floor below which timings are warned about.
	// Portal dialogs animate in and need time to settle before keys land.
	minTiming = 500 * time.Millisecond
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the full watcher configuration. It is built once by Load
// and never mutated afterwards.
type Config struct {
	Program Program
	Gnome   Desktop
	KDE     Desktop
}

// Program holds the desktop-independent settings.
type Program struct {
	VerboseLogging     bool
	SocketPath         string
	CheckInterval      time.Duration
	SequenceStartDelay time.Duration
	SequenceKeySleep   time.Duration
}

// Desktop holds the per-desktop dialog titles and accept sequence.
type Desktop struct {
	DialogTitles   []string
	AcceptSequence []Step
}

// Step is one entry of an accept sequence: either a chord of key codes
// pressed together or a pause between presses. Keys is non-empty exactly
// when Sleep is false.
type Step struct {
	Keys  []int
	Sleep bool
}

func init() {
	// Match the "key = value" layout of configparser-era files.
	ini.PrettyFormat = false
	ini.PrettyEqual = true
}

// DefaultPath returns the config file location under the user config
// directory.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, appDirName, configFileName)
}

// defaultSocketPath prefers YDOTOOL_SOCKET so a daemon managed elsewhere
// keeps working, then falls back to the conventional per-user runtime
// path.
func defaultSocketPath() string {
	if env := os.Getenv("YDOTOOL_SOCKET"); env != "" {
		return env
	}
	return filepath.Join(xdg.RuntimeDir, ".ydotool_socket")
}

// Load reads the configuration from path, writing a default file first
// when none exists.
func Load(path string, logger *slog.Logger) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("checking config file: %w", err)
		}
		logger.Info("creating config file", "path", path)
		if err := writeDefault(path); err != nil {
			return nil, err
		}
	} else {
		logger.Info("using existing config file", "path", path)
	}

	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	var cfg Config
	prog := f.Section("program")

	cfg.Program.VerboseLogging, err = boolKey(prog, "verbose_logging", false)
	if err != nil {
		return nil, err
	}

	cfg.Program.SocketPath = stringKey(prog, "ydotoold_socket_path", defaultSocketPath())

	cfg.Program.CheckInterval, err = timingKey(prog, "check_interval", defaultCheckInterval, logger)
	if err != nil {
		return nil, err
	}
	cfg.Program.SequenceStartDelay, err = timingKey(prog, "sequence_start_delay", defaultStartDelay, logger)
	if err != nil {
		return nil, err
	}
	cfg.Program.SequenceKeySleep, err = timingKey(prog, "sequence_key_sleep", defaultKeySleep, logger)
	if err != nil {
		return nil, err
	}

	cfg.Gnome, err = parseDesktop(f, "gnome")
	if err != nil {
		return nil, err
	}
	cfg.KDE, err = parseDesktop(f, "kde")
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Desktop returns the configuration section for the named desktop
// variant ("gnome" or "kde").
func (c *Config) Desktop(name string) (Desktop, bool) {
	switch name {
	case "gnome":
		return c.Gnome, true
	case "kde":
		return c.KDE, true
	}
	return Desktop{}, false
}

const defaultHeader = `# Key sequences for accepting portal permission dialogs.
# A sequence step is either a comma-separated chord of Linux input event
# key codes pressed together (28 = enter, 56 = left alt, 31 = s,
# 15 = tab) or the literal <sleep> to pause between presses.
# The sequences are the most fragile part of this tool: tab order and
# dialog design differ between desktops and releases, so a changed
# keyboard layout or dialog redesign may need adjustments here.`

func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), configDirMode); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f := ini.Empty()
	f.Section(ini.DefaultSection).Comment = defaultHeader

	prog := f.Section("program")
	prog.Key("verbose_logging").SetValue("false")
	prog.Key("ydotoold_socket_path").SetValue(defaultSocketPath())
	prog.Key("check_interval").SetValue(formatSeconds(defaultCheckInterval))
	prog.Key("sequence_start_delay").SetValue(formatSeconds(defaultStartDelay))
	prog.Key("sequence_key_sleep").SetValue(formatSeconds(defaultKeySleep))

	kde := f.Section("kde")
	kde.Key("dialog_titles").SetValue("Input capture requested,Remote control requested")
	kde.Key("accept_sequence_0").SetValue(strconv.Itoa(keyEnter))

	gnome := f.Section("gnome")
	gnome.Key("dialog_titles").SetValue("Capture Input,Remote Desktop")
	gnome.Key("accept_sequence_0").SetValue(strconv.Itoa(keyEnter))
	gnome.Key("accept_sequence_1").SetValue(sleepStep)
	gnome.Key("accept_sequence_2").SetValue(fmt.Sprintf("%d,%d", keyLeftAlt, keyS))

	if err := f.SaveTo(path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Chmod(path, configFileMode); err != nil {
		return fmt.Errorf("setting config permissions: %w", err)
	}
	return nil
}

func parseDesktop(f *ini.File, name string) (Desktop, error) {
	sec := f.Section(name)

	d := Desktop{DialogTitles: splitTitles(sec.Key("dialog_titles").String())}

	for i := 0; i < maxSequenceSteps; i++ {
		keyName := fmt.Sprintf("accept_sequence_%d", i)
		if !sec.HasKey(keyName) {
			break
		}
		step, err := parseStep(sec.Key(keyName).String())
		if err != nil {
			return Desktop{}, fmt.Errorf("%w: [%s] %s: %v", ErrInvalidConfig, name, keyName, err)
		}
		d.AcceptSequence = append(d.AcceptSequence, step)
	}

	return d, nil
}

func parseStep(raw string) (Step, error) {
	raw = strings.TrimSpace(raw)
	if raw == sleepStep {
		return Step{Sleep: true}, nil
	}

	var keys []int
	for _, part := range strings.Split(raw, ",") {
		code, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return Step{}, fmt.Errorf("invalid key code %q", part)
		}
		keys = append(keys, code)
	}
	return Step{Keys: keys}, nil
}

func splitTitles(raw string) []string {
	var titles []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			titles = append(titles, t)
		}
	}
	return titles
}

func boolKey(sec *ini.Section, name string, def bool) (bool, error) {
	if !sec.HasKey(name) {
		return def, nil
	}
	v, err := sec.Key(name).Bool()
	if err != nil {
		return false, fmt.Errorf("%w: %s must be true or false: %v", ErrInvalidConfig, name, err)
	}
	return v, nil
}

func stringKey(sec *ini.Section, name, def string) string {
	if !sec.HasKey(name) {
		return def
	}
	return sec.Key(name).String()
}

// timingKey reads a duration stored as float seconds. Zero and negative
// values are rejected; values below minTiming load but are warned about.
func timingKey(sec *ini.Section, name string, def time.Duration, logger *slog.Logger) (time.Duration, error) {
	if !sec.HasKey(name) {
		return def, nil
	}
	secs, err := sec.Key(name).Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number of seconds: %v", ErrInvalidConfig, name, err)
	}
	d := time.Duration(secs * float64(time.Second))
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive, got %g", ErrInvalidConfig, name, secs)
	}
	if d < minTiming {
		logger.Warn("config timing below recommended minimum",
			"key", name, "value", d, "minimum", minTiming)
	}
	return d, nil
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'g', -1, 64)
}
