package sshclient

import (
	"io"
	"net"
)

// Upload streams r into remotePath over a fresh session, for payloads
// (manifests, compose files, image archives) too large to pass on a
// command line.
func (c *Client) Upload(r io.Reader, remotePath string) error {
	client, err := c.dial()
	if err != nil {
		return err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return &ConnectionError{Host: c.Host, Err: err}
	}
	defer session.Close()

	session.Stdin = r
	if err := session.Run("cat > " + shellQuote(remotePath)); err != nil {
		return &ConnectionError{Host: c.Host, Err: err}
	}
	return nil
}

// Forward is an open local-to-remote TCP forward. Close tears down the
// listener and the SSH connection carrying it.
type Forward struct {
	Addr     string
	listener net.Listener
	client   io.Closer
}

func (f *Forward) Close() error {
	_ = f.listener.Close()
	return f.client.Close()
}

// LocalForward listens on a free local port and forwards every
// connection to remoteAddr through the SSH connection, the channel a
// local docker push rides to reach the in-cluster registry.
func (c *Client) LocalForward(remoteAddr string) (*Forward, error) {
	client, err := c.dial()
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		_ = client.Close()
		return nil, &ConnectionError{Host: c.Host, Err: err}
	}

	go func() {
		for {
			local, err := listener.Accept()
			if err != nil {
				return
			}
			go func() {
				defer local.Close()
				remote, err := client.Dial("tcp", remoteAddr)
				if err != nil {
					return
				}
				defer remote.Close()
				go func() { _, _ = io.Copy(remote, local) }()
				_, _ = io.Copy(local, remote)
			}()
		}
	}()

	return &Forward{Addr: listener.Addr().String(), listener: listener, client: client}, nil
}
