package transport

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingDialer struct {
	calls atomic.Int32
	err   error
}

func (d *failingDialer) DialContext(context.Context, string, string) (net.Conn, error) {
	d.calls.Add(1)
	return nil, d.err
}

func newTestSFTPClient(t *testing.T, dialer Dialer) *SFTPClient {
	t.Helper()
	c, err := NewSFTPClient(SFTPConfig{
		Host:                  "sftp.regulator.test",
		User:                  "filer",
		Password:              "secret",
		InsecureIgnoreHostKey: true,
		Timeout:               time.Second,
		MaxAttempts:           3,
	},
		WithDialer(dialer),
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	)
	require.NoError(t, err)
	return c
}

func TestSFTPClient_RetriesConnectionFailures(t *testing.T) {
	dialer := &failingDialer{err: errors.New("connect: connection refused")}
	c := newTestSFTPClient(t, dialer)

	err := c.Upload(context.Background(), "submissions", "x.xml", []byte("x"))
	require.Error(t, err)
	assert.Equal(t, CategoryConnection, GetCategory(err))
	assert.Equal(t, int32(3), dialer.calls.Load())
}

func TestSFTPClient_AuthenticationFailureIsPermanent(t *testing.T) {
	dialer := &failingDialer{err: errors.New("ssh: handshake failed: ssh: unable to authenticate")}
	c := newTestSFTPClient(t, dialer)

	_, err := c.Download(context.Background(), "acknowledgements", "x.ACKED")
	require.Error(t, err)
	assert.Equal(t, CategoryAuthentication, GetCategory(err))
	assert.Equal(t, int32(1), dialer.calls.Load())
}

func TestSFTPClient_TimeoutIsRetried(t *testing.T) {
	dialer := &failingDialer{err: context.DeadlineExceeded}
	c := newTestSFTPClient(t, dialer)

	_, err := c.List(context.Background(), "acknowledgements")
	require.Error(t, err)
	assert.Equal(t, CategoryTimeout, GetCategory(err))
	assert.Equal(t, int32(3), dialer.calls.Load())
}

func TestSFTPClient_StopsWhenCallerCancels(t *testing.T) {
	dialer := &failingDialer{err: errors.New("connect: connection refused")}
	c := newTestSFTPClient(t, dialer)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.List(ctx, "acknowledgements")
	require.Error(t, err)
	assert.LessOrEqual(t, dialer.calls.Load(), int32(1))
}

func TestNewSFTPClient_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  SFTPConfig
	}{
		{"missing host", SFTPConfig{User: "u", Password: "p", InsecureIgnoreHostKey: true}},
		{"missing user", SFTPConfig{Host: "h", Password: "p", InsecureIgnoreHostKey: true}},
		{"no credentials", SFTPConfig{Host: "h", User: "u", InsecureIgnoreHostKey: true}},
		{"no host key", SFTPConfig{Host: "h", User: "u", Password: "p"}},
		{"bad host key", SFTPConfig{Host: "h", User: "u", Password: "p", HostKey: "ssh-ed25519 not-base64"}},
		{"bad private key", SFTPConfig{Host: "h", User: "u", PrivateKey: []byte("-----BEGIN nonsense"), InsecureIgnoreHostKey: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSFTPClient(tt.cfg)
			require.Error(t, err)
		})
	}
}

func TestNewSFTPClient_Defaults(t *testing.T) {
	c, err := NewSFTPClient(SFTPConfig{Host: "h", User: "u", Password: "p", InsecureIgnoreHostKey: true})
	require.NoError(t, err)
	assert.Equal(t, "h:22", c.addr)
	assert.Equal(t, defaultTimeout, c.timeout)
	assert.Equal(t, defaultMaxAttempts, c.maxAttempts)
}
