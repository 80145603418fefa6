package sshclient

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"golang.org/x/crypto/ssh"
)

var errDenied = errors.New("access denied")

func mustAtoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		panic(err)
	}
	return n
}

func generateTestSigner(t *testing.T) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	Expect(err).To(BeNil())
	signer, err := ssh.NewSignerFromKey(priv)
	Expect(err).To(BeNil())
	return signer
}

func startTestSSHServer(t *testing.T, clientSigner ssh.Signer, handler func(ssh.Channel, <-chan *ssh.Request)) (addr string, stop func()) {
	t.Helper()

	hostSigner := generateTestSigner(t)

	config := &ssh.ServerConfig{
		PublicKeyCallback: func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if string(key.Marshal()) == string(clientSigner.PublicKey().Marshal()) {
				return &ssh.Permissions{}, nil
			}
			return nil, errDenied
		},
	}
	config.AddHostKey(hostSigner)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).To(BeNil())

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func() {
				sshConn, chans, reqs, err := ssh.NewServerConn(conn, config)
				if err != nil {
					return
				}
				go ssh.DiscardRequests(reqs)
				for ch := range chans {
					channel, requests, err := ch.Accept()
					if err != nil {
						continue
					}
					go handler(channel, requests)
				}
				_ = sshConn.Close()
			}()
		}
	}()

	return listener.Addr().String(), func() { _ = listener.Close() }
}

func Test_Client_Execute(t *testing.T) {
	RegisterTestingT(t)

	clientSigner := generateTestSigner(t)

	addr, stop := startTestSSHServer(t, clientSigner, func(channel ssh.Channel, requests <-chan *ssh.Request) {
		defer channel.Close()
		for req := range requests {
			if req.Type == "exec" {
				_, _ = io.WriteString(channel, "hello\nworld\n")
				if req.WantReply {
					_ = req.Reply(true, nil)
				}
				_, _ = channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{0}))
				return
			}
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
		}
	})
	defer stop()

	host, portStr, err := net.SplitHostPort(addr)
	Expect(err).To(BeNil())

	client := NewWithSigner(host, mustAtoi(portStr), "deploy", clientSigner)

	var lines []string
	res, err := client.Execute("echo hi", ExecOptions{
		RaiseOnError:   true,
		Timeout:        5 * time.Second,
		StreamCallback: func(line string) { lines = append(lines, line) },
	})
	Expect(err).To(BeNil())
	Expect(res.ExitCode).To(Equal(0))
	Expect(lines).To(Equal([]string{"hello", "world"}))
}

func Test_Client_Execute_NonZeroExitRaisesCommandError(t *testing.T) {
	RegisterTestingT(t)

	clientSigner := generateTestSigner(t)

	addr, stop := startTestSSHServer(t, clientSigner, func(channel ssh.Channel, requests <-chan *ssh.Request) {
		defer channel.Close()
		for req := range requests {
			if req.Type == "exec" {
				if req.WantReply {
					_ = req.Reply(true, nil)
				}
				_, _ = channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{1}))
				return
			}
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
		}
	})
	defer stop()

	host, portStr, err := net.SplitHostPort(addr)
	Expect(err).To(BeNil())
	client := NewWithSigner(host, mustAtoi(portStr), "deploy", clientSigner)

	_, err = client.Execute("false", ExecOptions{RaiseOnError: true, Timeout: 5 * time.Second})
	Expect(err).NotTo(BeNil())
	cmdErr, ok := err.(*CommandError)
	Expect(ok).To(BeTrue())
	Expect(cmdErr.ExitCode).To(Equal(1))
}

func Test_Client_Available_FalseWhenUnreachable(t *testing.T) {
	RegisterTestingT(t)

	signer := generateTestSigner(t)
	client := NewWithSigner("127.0.0.1", 1, "deploy", signer)
	client.clientConf.Timeout = 200 * time.Millisecond

	Expect(client.Available()).To(BeFalse())
}
