package ydotool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shirou/gopsutil/v3/process"
)

// ErrDaemonUnhealthy means the control socket exists but the daemon does
// not answer on it.
var ErrDaemonUnhealthy = errors.New("ydotool daemon is not responding")

var errSocketNotReady = errors.New("ydotoold socket not ready")

const socketPollInterval = time.Second

// Supervisor ensures a ydotoold daemon is serving the control socket,
// launching one through sudo when needed.
type Supervisor struct {
	socketPath   string
	launchArgv   []string
	pollInterval time.Duration
	logger       *slog.Logger

	// Replaceable in tests.
	lookPath   func(file string) (string, error)
	probe      func(ctx context.Context) error
	launch     func(ctx context.Context) error
	findDaemon func(ctx context.Context) (int32, bool)
}

// NewSupervisor creates a supervisor for the daemon behind socketPath,
// probing it through client.
func NewSupervisor(socketPath string, client *Client, logger *slog.Logger) *Supervisor {
	s := &Supervisor{
		socketPath: socketPath,
		launchArgv: []string{
			"sudo", "-b", daemonBin,
			"--socket-path", socketPath,
			fmt.Sprintf("--socket-own=%d:%d", os.Getuid(), os.Getgid()),
		},
		pollInterval: socketPollInterval,
		logger:       logger,
		lookPath:     exec.LookPath,
		probe:        client.Probe,
		findDaemon:   findDaemonProcess,
	}
	s.launch = s.launchDaemon
	return s
}

// EnsureReady verifies a healthy daemon is behind the socket, launching
// one when the socket is missing. It blocks until the socket appears or
// the context ends. Calling it again with a healthy socket performs no
// launch.
func (s *Supervisor) EnsureReady(ctx context.Context) error {
	if _, err := s.lookPath(clientBin); err != nil {
		return fmt.Errorf("%s is required: %w", clientBin, err)
	}

	if s.socketExists() {
		s.logger.Info("found ydotool daemon", "socket", s.socketPath)
		if err := s.probe(ctx); err != nil {
			return fmt.Errorf("%w: %v (if the daemon is gone, delete the stale socket %s)",
				ErrDaemonUnhealthy, err, s.socketPath)
		}
		return nil
	}

	if pid, ok := s.findDaemon(ctx); ok {
		s.logger.Warn("ydotoold is running but its socket is missing, it may use another socket path",
			"pid", pid, "socket", s.socketPath)
	}

	s.logger.Info("starting ydotool daemon", "socket", s.socketPath)
	if err := s.launch(ctx); err != nil {
		return fmt.Errorf("starting %s (is it installed?): %w", daemonBin, err)
	}

	return s.waitForSocket(ctx)
}

// waitForSocket polls until the daemon socket appears. The wait is
// unbounded: without the daemon there is nothing useful to do, and an
// interrupt still cancels it through the context.
func (s *Supervisor) waitForSocket(ctx context.Context) error {
	wait := backoff.WithContext(backoff.NewConstantBackOff(s.pollInterval), ctx)
	return backoff.Retry(func() error {
		if s.socketExists() {
			s.logger.Info("ydotool daemon is ready", "socket", s.socketPath)
			return nil
		}
		s.logger.Info("waiting for ydotool daemon to start")
		return errSocketNotReady
	}, wait)
}

func (s *Supervisor) socketExists() bool {
	_, err := os.Stat(s.socketPath)
	return err == nil
}

// launchDaemon starts ydotoold in the background through sudo. The
// daemon needs /dev/uinput, which user sessions cannot open directly.
// Stderr passes through as a real file descriptor: a capture pipe
// would be inherited by the daemonized grandchild, and Run would not
// return until the daemon itself exited.
func (s *Supervisor) launchDaemon(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, s.launchArgv[0], s.launchArgv[1:]...)
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// findDaemonProcess scans the process table for a running ydotoold.
func findDaemonProcess(ctx context.Context) (int32, bool) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0, false
	}
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err == nil && name == daemonBin {
			return p.Pid, true
		}
	}
	return 0, false
}
