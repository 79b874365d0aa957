// Package remote is the remote command execution provider: it opens a
// session to one host, runs shell commands there and streams files back.
package remote

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

const (
	DefaultDialTimeout      = 10 * time.Second
	DefaultKeepaliveTimeout = 5 * time.Second
)

// Target identifies the host to connect to and how to authenticate.
type Target struct {
	Host                  string
	Port                  int
	User                  string
	KeyPath               string
	KnownHosts            string
	InsecureIgnoreHostKey bool
	Timeout               time.Duration
}

func (t Target) Addr() string {
	port := t.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

func (t Target) String() string {
	return fmt.Sprintf("%s@%s", t.User, t.Addr())
}

// Command is one shell command line plus the context it runs in.
type Command struct {
	Line     string
	Dir      string // working directory, applied to this command only
	Prefix   string // e.g. "source /opt/venv/bin/activate"
	Elevated bool
}

// Result is what a finished remote command reported.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Bytes    int64 // bytes streamed to the destination by Fetch
}

// Dialer opens sessions.
type Dialer interface {
	Open(ctx context.Context, target Target) (Handle, error)
}

// Handle is an open session to a remote host. Run and Fetch return an error
// only when the transport fails or, for Fetch, when dst rejects the data; a
// non-zero exit status is reported through Result.ExitCode.
type Handle interface {
	Run(ctx context.Context, cmd Command) (Result, error)
	Fetch(ctx context.Context, remotePath string, dst io.Writer) (Result, error)
	Alive() bool
	Close() error
}

// Simulator is implemented by handles that only print what they would do.
// Nothing fetched through such a handle may be written locally.
type Simulator interface {
	Simulated() bool
}

// IsSimulated reports whether h is a simulating handle.
func IsSimulated(h Handle) bool {
	s, ok := h.(Simulator)
	return ok && s.Simulated()
}

// WriteError reports that fetched data could not be written to the local
// destination. The remote stream is still read to the end.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("writing fetched data: %v", e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }
