// Package sshclient implements authenticated, retrying, streaming command
// execution over SSH. Host key
// verification is disabled throughout: the operator authenticates
// against freshly provisioned hosts using keys minted for this run, so
// there is no prior host identity to pin.
package sshclient

import (
	"bufio"
	"io"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/deployctl/deployctl/pkg/waiter"
)

const (
	defaultExecTimeout = 300 * time.Second
	idleTimeout        = 15 * time.Minute
)

// StreamCallback receives whole lines as they are produced by the remote
// command, buffered on newline boundaries.
type StreamCallback func(line string)

type ExecOptions struct {
	RaiseOnError   bool
	Timeout        time.Duration
	StreamCallback StreamCallback
}

func DefaultExecOptions() ExecOptions {
	return ExecOptions{RaiseOnError: true, Timeout: defaultExecTimeout}
}

type ExecResult struct {
	Output   string
	ExitCode int
}

// Client is a single SSH connection to one host, authenticated with an
// ed25519 private key. One outstanding request per connection:
// callers serialize Execute calls themselves.
type Client struct {
	Host       string
	Port       int
	User       string
	signer     ssh.Signer
	clientConf *ssh.ClientConfig
}

// New parses an ed25519 (or other) private key in PEM form and builds a
// Client that authenticates with it.
func New(host string, port int, user string, privateKeyPEM []byte) (*Client, error) {
	signer, err := ssh.ParsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, &AuthenticationError{Host: host, Err: err}
	}
	return NewWithSigner(host, port, user, signer), nil
}

// NewWithSigner builds a Client from an already-parsed signer, useful
// when the key was generated in-process rather than read from disk.
func NewWithSigner(host string, port int, user string, signer ssh.Signer) *Client {
	return &Client{
		Host:   host,
		Port:   port,
		User:   user,
		signer: signer,
		clientConf: &ssh.ClientConfig{
			User:            user,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
			HostKeyCallback: ssh.InsecureIgnoreHostKey(),
			Timeout:         10 * time.Second,
		},
	}
}

func (c *Client) addr() string {
	return net.JoinHostPort(c.Host, portString(c.Port))
}

func portString(port int) string {
	if port == 0 {
		port = 22
	}
	return strconvItoa(port)
}

func (c *Client) dial() (*ssh.Client, error) {
	conn, err := net.DialTimeout("tcp", c.addr(), c.clientConf.Timeout)
	if err != nil {
		return nil, classifyDialError(c.Host, err)
	}
	_ = conn.SetDeadline(time.Now().Add(idleTimeout))
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, c.addr(), c.clientConf)
	if err != nil {
		_ = conn.Close()
		if isAuthError(err) {
			return nil, &AuthenticationError{Host: c.Host, Err: err}
		}
		return nil, &ConnectionError{Host: c.Host, Err: err}
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

// Execute runs command over a fresh session, streaming combined
// stdout+stderr through opts.StreamCallback as whole lines while also
// buffering the full output for the returned ExecResult.
func (c *Client) Execute(command string, opts ExecOptions) (ExecResult, error) {
	if opts.Timeout == 0 {
		opts.Timeout = defaultExecTimeout
	}

	client, err := c.dial()
	if err != nil {
		return ExecResult{}, err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return ExecResult{}, &ConnectionError{Host: c.Host, Err: err}
	}
	defer session.Close()

	pr, pw := io.Pipe()
	session.Stdout = pw
	session.Stderr = pw

	var combined strings.Builder
	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(pr)
		for scanner.Scan() {
			line := scanner.Text()
			combined.WriteString(line)
			combined.WriteByte('\n')
			if opts.StreamCallback != nil {
				opts.StreamCallback(line)
			}
		}
	}()

	runErr := make(chan error, 1)
	go func() {
		runErr <- session.Run(command)
		_ = pw.Close()
	}()

	var resultErr error
	select {
	case resultErr = <-runErr:
	case <-time.After(opts.Timeout):
		_ = session.Close()
		resultErr = &ConnectionError{Host: c.Host, Err: errTimeout}
	}
	<-done

	output := combined.String()
	exitCode := 0
	if resultErr != nil {
		if exitErr, ok := resultErr.(*ssh.ExitError); ok {
			exitCode = exitErr.ExitStatus()
			if opts.RaiseOnError {
				return ExecResult{Output: output, ExitCode: exitCode}, &CommandError{Command: command, ExitCode: exitCode, Output: output}
			}
			return ExecResult{Output: output, ExitCode: exitCode}, nil
		}
		if connErr, ok := resultErr.(*ConnectionError); ok {
			return ExecResult{Output: output}, connErr
		}
		return ExecResult{Output: output}, &ConnectionError{Host: c.Host, Err: resultErr}
	}

	return ExecResult{Output: output, ExitCode: 0}, nil
}

// ExecuteWithRetry retries Execute only on connection-class failures
// (refused, timeout, unreachable), never on a non-zero exit.
func (c *Client) ExecuteWithRetry(command string, opts ExecOptions, retries int, backoff time.Duration) (ExecResult, error) {
	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		res, err := c.Execute(command, opts)
		if err == nil {
			return res, nil
		}
		if _, isConn := err.(*ConnectionError); !isConn {
			return res, err
		}
		lastErr = err
		if attempt < retries {
			time.Sleep(backoff * time.Duration(1<<uint(attempt-1)))
		}
	}
	return ExecResult{}, lastErr
}

// WaitUntilReady repeatedly opens a session and runs a trivial command
// until it succeeds, up to maxAttempts times, sleeping interval between
// attempts.
func (c *Client) WaitUntilReady(maxAttempts int, interval time.Duration) error {
	return waiter.Poll(maxAttempts, interval, "waiting for SSH on "+c.Host, func() (bool, error) {
		res, err := c.Execute("true", ExecOptions{RaiseOnError: true, Timeout: 10 * time.Second})
		if err != nil {
			return false, err
		}
		return res.ExitCode == 0, nil
	})
}

// ReadFile returns the remote file's content, or nil on any failure.
func (c *Client) ReadFile(path string) []byte {
	res, err := c.Execute("cat "+shellQuote(path), ExecOptions{RaiseOnError: true, Timeout: 30 * time.Second})
	if err != nil {
		return nil
	}
	return []byte(res.Output)
}

// Available reports whether the host currently accepts SSH connections.
func (c *Client) Available() bool {
	client, err := c.dial()
	if err != nil {
		return false
	}
	defer client.Close()
	return true
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
