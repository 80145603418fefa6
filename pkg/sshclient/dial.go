package sshclient

import (
	"errors"
	"net"
	"strconv"
	"strings"
)

var errTimeout = errors.New("i/o timeout")

func strconvItoa(n int) string { return strconv.Itoa(n) }

// classifyDialError maps the net package's dial failures onto
// ConnectionError: timeout, refused, host-unreachable, or EOF.
func classifyDialError(host string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &ConnectionError{Host: host, Err: err}
	}
	msg := err.Error()
	if strings.Contains(msg, "refused") || strings.Contains(msg, "unreachable") || strings.Contains(msg, "timeout") {
		return &ConnectionError{Host: host, Err: err}
	}
	return &ConnectionError{Host: host, Err: err}
}

func isAuthError(err error) bool {
	return strings.Contains(err.Error(), "unable to authenticate") || strings.Contains(err.Error(), "authentication")
}
