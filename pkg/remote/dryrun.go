package remote

import (
	"context"
	"fmt"
	"io"
	"os"
)

// DryRunDialer pretends to connect and prints every command instead of
// running it. Every command succeeds.
type DryRunDialer struct {
	Out io.Writer
}

func (d *DryRunDialer) Open(_ context.Context, target Target) (Handle, error) {
	out := d.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, "[DRY-RUN] Would connect to %s\n", target)
	return &dryRunHandle{host: target.Host, out: out}, nil
}

type dryRunHandle struct {
	host   string
	out    io.Writer
	closed bool
}

func (h *dryRunHandle) Run(_ context.Context, cmd Command) (Result, error) {
	fmt.Fprintf(h.out, "[DRY-RUN] Would run command on %s: %s\n", h.host, Compose(cmd))
	return Result{}, nil
}

// Fetch leaves dst untouched.
func (h *dryRunHandle) Fetch(_ context.Context, remotePath string, _ io.Writer) (Result, error) {
	fmt.Fprintf(h.out, "[DRY-RUN] Would download %s:%s\n", h.host, remotePath)
	return Result{}, nil
}

func (h *dryRunHandle) Simulated() bool { return true }

func (h *dryRunHandle) Alive() bool { return !h.closed }

func (h *dryRunHandle) Close() error {
	h.closed = true
	return nil
}
