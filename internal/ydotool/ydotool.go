// Package ydotool drives the ydotool synthetic input tools: a client
// for sending key events, a supervisor for the ydotoold daemon, and a
// player for configured accept sequences.
package ydotool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

const (
	clientBin = "ydotool"
	daemonBin = "ydotoold"
)

// Client invokes the ydotool command against a running ydotoold daemon.
type Client struct {
	socketPath string
	logger     *slog.Logger
}

// NewClient creates a client bound to the given control socket.
func NewClient(socketPath string, logger *slog.Logger) *Client {
	return &Client{
		socketPath: socketPath,
		logger:     logger,
	}
}

// PressKeys presses the key codes as one chord: all downs in order,
// then all ups in reverse order, in a single ydotool invocation.
func (c *Client) PressKeys(ctx context.Context, codes []int) error {
	args, err := keyEventArgs(codes)
	if err != nil {
		return err
	}
	c.logger.Debug("pressing keys", "codes", codes)
	return c.run(ctx, args...)
}

// Probe checks that the daemon answers on the socket.
func (c *Client) Probe(ctx context.Context) error {
	return c.run(ctx, "debug")
}

// run executes ydotool with stderr folded into the returned error. The
// socket path is exported so the client talks to our daemon even when
// the configured path differs from ydotool's built-in default.
func (c *Client) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, clientBin, args...)
	cmd.Env = append(os.Environ(), "YDOTOOL_SOCKET="+c.socketPath)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s %s: %w (%s)", clientBin, args[0], err, msg)
		}
		return fmt.Errorf("%s %s: %w", clientBin, args[0], err)
	}
	return nil
}

// keyEventArgs builds the key subcommand arguments for a chord: each
// code pressed in order, then each released in reverse.
func keyEventArgs(codes []int) ([]string, error) {
	if len(codes) == 0 {
		return nil, errors.New("empty key combination")
	}

	args := make([]string, 0, 2*len(codes)+1)
	args = append(args, "key")
	for _, code := range codes {
		args = append(args, fmt.Sprintf("%d:1", code))
	}
	for i := len(codes) - 1; i >= 0; i-- {
		args = append(args, fmt.Sprintf("%d:0", codes[i]))
	}
	return args, nil
}
