package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"
)

const DefaultConnectTimeout = 10 * time.Second

type SSHConfig struct {
	Endpoint       Endpoint
	PrivateKeyPath string
	Passphrase     string
	HostKeyPolicy  string
	KnownHostsPath string
	ConnectTimeout time.Duration
}

type Client struct {
	config SSHConfig
	conn   *ssh.Client
}

func NewClient(config SSHConfig) *Client {
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	return &Client{
		config: config,
	}
}

func (c *Client) Connect(ctx context.Context) error {
	signer, err := LoadSigner(c.config.PrivateKeyPath, c.config.Passphrase)
	if err != nil {
		return err
	}

	hostKeyCallback, err := HostKeyCallback(c.config.HostKeyPolicy, c.config.KnownHostsPath)
	if err != nil {
		return err
	}

	config := &ssh.ClientConfig{
		User:            c.config.Endpoint.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		Timeout:         c.config.ConnectTimeout,
		HostKeyCallback: hostKeyCallback,
	}

	addr := c.config.Endpoint.Addr()
	dialer := net.Dialer{Timeout: c.config.ConnectTimeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	// the handshake shares the connect timeout
	_ = netConn.SetDeadline(time.Now().Add(c.config.ConnectTimeout))
	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, config)
	if err != nil {
		netConn.Close()
		return fmt.Errorf("SSH handshake with %s: %w", addr, err)
	}
	_ = netConn.SetDeadline(time.Time{})

	c.conn = ssh.NewClient(sshConn, chans, reqs)
	return nil
}

// Exec runs cmd on the remote host with stdin as its input and waits for it
// to finish, for ctx to be cancelled or for timeout (0 means no timeout).
// A non-zero exit status is returned as *ssh.ExitError.
func (c *Client) Exec(ctx context.Context, cmd string, stdin io.Reader, stdout, stderr io.Writer, timeout time.Duration) error {
	if c.conn == nil {
		return fmt.Errorf("SSH connection not established")
	}

	session, err := c.conn.NewSession()
	if err != nil {
		return fmt.Errorf("open exec channel: %w", err)
	}
	defer session.Close()

	session.Stdin = stdin
	session.Stdout = stdout
	session.Stderr = stderr

	if err := session.Start(cmd); err != nil {
		return fmt.Errorf("start %s: %w", cmd, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return ctx.Err()
	case <-expired:
		_ = session.Signal(ssh.SIGKILL)
		return fmt.Errorf("%s did not finish within %s", cmd, timeout)
	}
}

func (c *Client) Close() error {
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// LoadSigner reads a PEM/OpenSSH private key from disk.
func LoadSigner(path, passphrase string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key %s: %w", path, err)
	}

	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(data)
	}
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("private key %s is encrypted, a passphrase is required", path)
		}
		return nil, fmt.Errorf("parse private key %s: %w", path, err)
	}
	return signer, nil
}

// ExitStatus reports the remote exit status carried by err, if any.
func ExitStatus(err error) (int, bool) {
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus(), true
	}
	return 0, false
}
