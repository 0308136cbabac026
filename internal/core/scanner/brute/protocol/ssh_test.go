package protocol

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"neorecon/internal/core/lib/network/dialer"
	"neorecon/internal/core/model"
	"neorecon/internal/core/scanner/brute"
)

// startSSHServer 启动只接受一组口令的进程内 SSH 服务端
func startSSHServer(t *testing.T, user, pass string) (host string, port int) {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	config := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if c.User() == user && string(password) == pass {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %q", c.User())
		},
	}
	config.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				sconn, chans, reqs, err := ssh.NewServerConn(conn, config)
				if err != nil {
					return
				}
				go ssh.DiscardRequests(reqs)
				go func() {
					for ch := range chans {
						ch.Reject(ssh.Prohibited, "no channels")
					}
				}()
				sconn.Wait()
			}(conn)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func newCracker() *SSHCracker {
	return NewSSHCracker(dialer.NewDefaultDialer(2 * time.Second))
}

func TestSSHCracker_Check(t *testing.T) {
	host, port := startSSHServer(t, "root", "toor")
	c := newCracker()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok, err := c.Check(ctx, host, port, brute.Auth{Username: "root", Password: "toor"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Check(ctx, host, port, brute.Auth{Username: "root", Password: "wrong"})
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestSSHCracker_WithTester(t *testing.T) {
	host, port := startSSHServer(t, "admin", "admin123")

	tester := brute.NewTester()
	tester.RegisterCracker(newCracker())

	out := tester.Test(context.Background(), brute.Request{
		Host:        host,
		Port:        port,
		Service:     model.ServiceSSH,
		Usernames:   []string{"root", "admin"},
		Passwords:   []string{"123456", "%user%123"},
		StopOnValid: true,
		Timeout:     3 * time.Second,
	})
	assert.Equal(t, model.CredentialValid, out.Status)
	assert.Equal(t, "admin", out.Username)
	assert.Equal(t, "admin123", out.Password)
	assert.Equal(t, 4, out.Attempts)
}

func TestSSHCracker_HandleError(t *testing.T) {
	c := newCracker()

	tests := []struct {
		name     string
		errInput error
		want     error
	}{
		{
			name:     "Auth Failed",
			errInput: errors.New("ssh: handshake failed: ssh: unable to authenticate, attempted methods [none password], no supported methods remain"),
			want:     nil,
		},
		{
			name:     "Timeout",
			errInput: errors.New("dial tcp 1.2.3.4:22: i/o timeout"),
			want:     brute.ErrConnectionFailed,
		},
		{
			name:     "Connection Refused",
			errInput: errors.New("dial tcp 127.0.0.1:22: connect: connection refused"),
			want:     brute.ErrConnectionFailed,
		},
		{
			name:     "Deadline",
			errInput: fmt.Errorf("dial: %w", context.DeadlineExceeded),
			want:     brute.ErrConnectionFailed,
		},
		{
			name:     "Unknown Error",
			errInput: errors.New("some weird error"),
			want:     brute.ErrProtocolError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.handleError(tt.errInput)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestSSHCracker_Check_NetworkError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ok, err := newCracker().Check(ctx, "127.0.0.1", port, brute.Auth{Username: "root", Password: "123"})
	assert.False(t, ok)
	assert.ErrorIs(t, err, brute.ErrConnectionFailed)
}

func TestSSHCracker_Check_NotSSH(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port

	go func() {
		conn, err := l.Accept()
		if err == nil {
			defer conn.Close()
			conn.Write([]byte("NOT SSH\n"))
			io.Copy(io.Discard, conn)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ok, err := newCracker().Check(ctx, "127.0.0.1", port, brute.Auth{Username: "root", Password: "123"})
	assert.False(t, ok)
	assert.Error(t, err)
}
