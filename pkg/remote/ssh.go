package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/andrej220/rdeploy/pkg/lg"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/sync/errgroup"
)

// SSHDialer opens SSH connections using public key authentication.
type SSHDialer struct{}

func NewSSHDialer() *SSHDialer { return &SSHDialer{} }

func (d *SSHDialer) Open(ctx context.Context, target Target) (Handle, error) {
	auth, err := publicKeyAuth(target.KeyPath)
	if err != nil {
		return nil, err
	}
	hostKeyCallback, err := hostKeyCallback(target)
	if err != nil {
		return nil, err
	}

	timeout := target.Timeout
	if timeout == 0 {
		timeout = DefaultDialTimeout
	}
	config := &ssh.ClientConfig{
		User:            target.User,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
		BannerCallback:  func(message string) error { return nil }, //ignore banner
	}

	addr := target.Addr()
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}

	lg.FromContext(ctx).Debug("ssh connection established", lg.String("target", target.String()))
	return &sshHandle{
		client:           ssh.NewClient(c, chans, reqs),
		keepaliveTimeout: DefaultKeepaliveTimeout,
	}, nil
}

type sshHandle struct {
	client           *ssh.Client
	keepaliveTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

func (h *sshHandle) Run(ctx context.Context, cmd Command) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	sess, err := h.client.NewSession()
	if err != nil {
		return Result{}, fmt.Errorf("new session: %w", err)
	}
	defer sess.Close()

	stdout, err := sess.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := sess.StderrPipe()
	if err != nil {
		return Result{}, fmt.Errorf("stderr pipe: %w", err)
	}

	line := Compose(cmd)
	lg.FromContext(ctx).Debug("remote exec", lg.String("command", line))
	if err := sess.Start(line); err != nil {
		return Result{}, fmt.Errorf("start command: %w", err)
	}

	// both pipes are drained together so a full stderr can't stall stdout
	var outBuf, errBuf bytes.Buffer
	var g errgroup.Group
	g.Go(func() error { _, err := io.Copy(&outBuf, stdout); return err })
	g.Go(func() error { _, err := io.Copy(&errBuf, stderr); return err })
	copyErr := g.Wait()
	waitErr := sess.Wait()

	res := Result{Stdout: outBuf.String(), Stderr: errBuf.String()}
	return exitResult(res, waitErr, copyErr)
}

func (h *sshHandle) Fetch(ctx context.Context, remotePath string, dst io.Writer) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	sess, err := h.client.NewSession()
	if err != nil {
		return Result{}, fmt.Errorf("new session: %w", err)
	}
	defer sess.Close()

	sink := &drainWriter{w: dst}
	var errBuf bytes.Buffer
	sess.Stdout = sink
	sess.Stderr = &errBuf

	waitErr := sess.Run(FetchLine(remotePath))
	res := Result{Stderr: errBuf.String(), Bytes: sink.n}
	if sink.err != nil {
		return res, &WriteError{Err: sink.err}
	}
	return exitResult(res, waitErr, nil)
}

// Alive reports whether the connection answers a keepalive request within
// the keepalive timeout.
func (h *sshHandle) Alive() bool {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return false
	}

	reply := make(chan error, 1)
	go func() {
		_, _, err := h.client.SendRequest("keepalive@openssh.com", true, nil)
		reply <- err
	}()
	timer := time.NewTimer(h.keepaliveTimeout)
	defer timer.Stop()
	select {
	case err := <-reply:
		return err == nil
	case <-timer.C:
		return false
	}
}

func (h *sshHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.client.Close()
}

// exitResult turns the session's wait error into an exit code. Only
// transport problems are returned as errors.
func exitResult(res Result, waitErr, copyErr error) (Result, error) {
	var exitErr *ssh.ExitError
	switch {
	case waitErr == nil:
		res.ExitCode = 0
	case errors.As(waitErr, &exitErr):
		res.ExitCode = exitErr.ExitStatus()
	default:
		return res, fmt.Errorf("remote command: %w", waitErr)
	}
	if copyErr != nil {
		return res, fmt.Errorf("reading remote output: %w", copyErr)
	}
	return res, nil
}

// drainWriter counts what reaches w. After the first write error it keeps
// accepting and discarding data, so the remote side is never stalled by a
// full channel window.
type drainWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (d *drainWriter) Write(p []byte) (int, error) {
	if d.err != nil {
		return len(p), nil
	}
	n, err := d.w.Write(p)
	d.n += int64(n)
	if err != nil {
		d.err = err
	}
	return len(p), nil
}

func publicKeyAuth(privateKeyPath string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read private key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("unable to parse private key %s: %w", privateKeyPath, err)
	}
	return ssh.PublicKeys(signer), nil
}

func hostKeyCallback(target Target) (ssh.HostKeyCallback, error) {
	if target.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	if target.KnownHosts == "" {
		return nil, fmt.Errorf("no known_hosts file configured for %s", target.Host)
	}
	cb, err := knownhosts.New(target.KnownHosts)
	if err != nil {
		return nil, fmt.Errorf("loading known_hosts %s: %w", target.KnownHosts, err)
	}
	return cb, nil
}
