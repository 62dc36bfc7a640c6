package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/sftp"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/ssh"

	"rrfiler/pkg/platform/tracing"
)

const (
	defaultPort        = 22
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3

	// partialSuffix marks an upload still in flight. List hides such files.
	partialSuffix = ".part"
)

// SFTPConfig holds the transfer host credentials and limits.
type SFTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	// PrivateKey is a PEM encoded key; used instead of Password when set.
	PrivateKey []byte
	// HostKey is the server key in authorized_keys format.
	HostKey string
	// InsecureIgnoreHostKey skips host verification. Sandbox only.
	InsecureIgnoreHostKey bool
	// Timeout bounds connect plus transfer for one attempt.
	Timeout     time.Duration
	MaxAttempts int
}

// SFTPClient talks to the transfer host over SFTP. Every operation opens its
// own session and closes it before returning.
type SFTPClient struct {
	addr        string
	sshConfig   *ssh.ClientConfig
	timeout     time.Duration
	maxAttempts int
	newBackOff  func() backoff.BackOff
	dialer      Dialer
	logger      *slog.Logger
}

// Dialer opens the TCP connection under an SSH session.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// SFTPOption configures an SFTPClient.
type SFTPOption func(*SFTPClient)

// WithLogger sets the logger used for retry notices.
func WithLogger(logger *slog.Logger) SFTPOption {
	return func(c *SFTPClient) {
		c.logger = logger
	}
}

// WithBackOff replaces the retry schedule. Tests use a zero-delay schedule.
func WithBackOff(fn func() backoff.BackOff) SFTPOption {
	return func(c *SFTPClient) {
		c.newBackOff = fn
	}
}

// WithDialer replaces the TCP dialer, e.g. to route through a proxy.
func WithDialer(d Dialer) SFTPOption {
	return func(c *SFTPClient) {
		c.dialer = d
	}
}

// NewSFTPClient validates cfg and prepares the SSH client configuration.
func NewSFTPClient(cfg SFTPConfig, opts ...SFTPOption) (*SFTPClient, error) {
	if cfg.Host == "" || cfg.User == "" {
		return nil, errors.New("sftp host and user are required")
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}

	auth, err := authMethods(cfg)
	if err != nil {
		return nil, err
	}
	hostKey, err := hostKeyCallback(cfg)
	if err != nil {
		return nil, err
	}

	c := &SFTPClient{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		sshConfig: &ssh.ClientConfig{
			User:            cfg.User,
			Auth:            auth,
			HostKeyCallback: hostKey,
			Timeout:         cfg.Timeout,
		},
		timeout:     cfg.Timeout,
		maxAttempts: cfg.MaxAttempts,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 10 * time.Second
			return b
		},
		dialer: &net.Dialer{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func authMethods(cfg SFTPConfig) ([]ssh.AuthMethod, error) {
	if len(cfg.PrivateKey) > 0 {
		signer, err := ssh.ParsePrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("parse sftp private key: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	if cfg.Password != "" {
		return []ssh.AuthMethod{ssh.Password(cfg.Password)}, nil
	}
	return nil, errors.New("sftp password or private key is required")
}

func hostKeyCallback(cfg SFTPConfig) (ssh.HostKeyCallback, error) {
	if cfg.HostKey != "" {
		key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(cfg.HostKey))
		if err != nil {
			return nil, fmt.Errorf("parse sftp host key: %w", err)
		}
		return ssh.FixedHostKey(key), nil
	}
	if cfg.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // sandbox hosts only
	}
	return nil, errors.New("sftp host key is required")
}

// Upload writes data under a temporary name and renames it into place, so
// name only ever holds complete bytes. A leftover temporary file from an
// interrupted attempt is truncated and rewritten.
func (c *SFTPClient) Upload(ctx context.Context, dir, name string, data []byte) error {
	p := joinPath(dir, name)
	tmp := p + partialSuffix
	return c.do(ctx, OpUpload, p, func(cl *sftp.Client) error {
		if _, err := cl.Stat(p); err == nil {
			return NewError(CategoryAlreadyExists, OpUpload, p, nil)
		} else if !errors.Is(err, os.ErrNotExist) {
			return classifyFileError(OpUpload, p, err)
		}

		f, err := cl.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
		if err != nil {
			return classifyFileError(OpUpload, tmp, err)
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			_ = cl.Remove(tmp)
			return classifyFileError(OpUpload, tmp, err)
		}
		if err := f.Close(); err != nil {
			_ = cl.Remove(tmp)
			return classifyFileError(OpUpload, tmp, err)
		}
		// SSH_FXP_RENAME refuses an existing target.
		if err := cl.Rename(tmp, p); err != nil {
			_ = cl.Remove(tmp)
			if _, statErr := cl.Stat(p); statErr == nil {
				return NewError(CategoryAlreadyExists, OpUpload, p, err)
			}
			return classifyFileError(OpUpload, p, err)
		}
		return nil
	})
}

func (c *SFTPClient) Download(ctx context.Context, dir, name string) ([]byte, error) {
	p := joinPath(dir, name)
	var data []byte
	err := c.do(ctx, OpDownload, p, func(cl *sftp.Client) error {
		f, err := cl.Open(p)
		if err != nil {
			return classifyFileError(OpDownload, p, err)
		}
		defer f.Close()
		data, err = io.ReadAll(f)
		if err != nil {
			return classifyFileError(OpDownload, p, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *SFTPClient) List(ctx context.Context, dir string) ([]string, error) {
	var names []string
	err := c.do(ctx, OpList, dir, func(cl *sftp.Client) error {
		entries, err := cl.ReadDir(dir)
		if err != nil {
			return classifyFileError(OpList, dir, err)
		}
		names = names[:0]
		for _, e := range entries {
			if !e.IsDir() && !strings.HasSuffix(e.Name(), partialSuffix) {
				names = append(names, e.Name())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// do runs fn in a fresh session, retrying connection-level failures.
func (c *SFTPClient) do(ctx context.Context, op, p string, fn func(*sftp.Client) error) (err error) {
	ctx, span := tracing.Start(ctx, "transport."+op,
		attribute.String("transport.path", p),
		attribute.String("transport.host", c.addr),
	)
	defer func() { tracing.End(span, err) }()

	attempt := 0
	operation := func() error {
		attempt++
		opErr := c.session(ctx, op, p, fn)
		if opErr != nil && !IsRetryable(opErr) {
			return backoff.Permanent(opErr)
		}
		return opErr
	}
	notify := func(opErr error, wait time.Duration) {
		c.logger.WarnContext(ctx, "transfer host operation failed, retrying",
			"op", op,
			"path", p,
			"attempt", attempt,
			"wait", wait,
			"error", opErr,
		)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(c.newBackOff(), uint64(c.maxAttempts-1)),
		ctx,
	)
	err = backoff.RetryNotify(operation, policy, notify)
	span.SetAttributes(attribute.Int("transport.attempts", attempt))
	return err
}

func (c *SFTPClient) session(ctx context.Context, op, p string, fn func(*sftp.Client) error) error {
	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(opCtx, "tcp", c.addr)
	if err != nil {
		return classifyConnError(op, p, err)
	}
	if deadline, ok := opCtx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(opCtx, func() { _ = conn.Close() })
	defer stop()

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, c.addr, c.sshConfig)
	if err != nil {
		_ = conn.Close()
		return classifyConnError(op, p, err)
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)
	defer sshClient.Close()

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		return classifyConnError(op, p, err)
	}
	defer client.Close()

	if err := fn(client); err != nil {
		if opCtx.Err() != nil && GetCategory(err) != CategoryNotFound && GetCategory(err) != CategoryAlreadyExists {
			return NewError(CategoryTimeout, op, p, err)
		}
		return err
	}
	return nil
}

func classifyConnError(op, p string, err error) *TransportError {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return NewError(CategoryTimeout, op, p, err)
	case isAuthFailure(err):
		return NewError(CategoryAuthentication, op, p, err)
	default:
		return NewError(CategoryConnection, op, p, err)
	}
}

func isAuthFailure(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "host key mismatch") ||
		strings.Contains(msg, "no supported methods remain")
}

func classifyFileError(op, p string, err error) *TransportError {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	switch {
	case errors.Is(err, os.ErrNotExist):
		return NewError(CategoryNotFound, op, p, err)
	case errors.Is(err, os.ErrExist):
		return NewError(CategoryAlreadyExists, op, p, err)
	case errors.Is(err, os.ErrPermission):
		return NewError(CategoryAuthentication, op, p, err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed):
		return NewError(CategoryConnection, op, p, err)
	default:
		return NewError(CategoryInternal, op, p, err)
	}
}
