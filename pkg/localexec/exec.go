// Package localexec runs local commands (docker build, push, save)
// and streams their output line by line, the way
// BuildImage needs to surface build progress through on_log instead
// of leaving it buffered until the command exits.
package localexec

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os/exec"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// LineFunc receives each line of output as it's produced, tagged with
// whether it came from stderr.
type LineFunc func(line string, isErr bool)

// Run executes name with args in dir, calling onLine for every output
// line from both streams as it arrives, and returns the command's
// combined output once it exits.
func Run(ctx context.Context, dir, name string, args []string, onLine LineFunc) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", errors.Wrap(err, "opening stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", errors.Wrap(err, "opening stderr pipe")
	}

	var mu sync.Mutex
	var combined bytes.Buffer

	stream := func(r io.Reader, isErr bool) error {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			combined.WriteString(line)
			combined.WriteByte('\n')
			mu.Unlock()
			if onLine != nil {
				onLine(line, isErr)
			}
		}
		return scanner.Err()
	}

	if err := cmd.Start(); err != nil {
		return "", errors.Wrapf(err, "starting %s", name)
	}

	eg := errgroup.Group{}
	eg.Go(func() error { return stream(stdout, false) })
	eg.Go(func() error { return stream(stderr, true) })
	_ = eg.Wait()

	if err := cmd.Wait(); err != nil {
		return combined.String(), errors.Wrapf(err, "%s exited with error", name)
	}
	return combined.String(), nil
}

// Output runs name with args without streaming and returns its
// combined output as produced (not trimmed), for short commands such
// as docker save.
func Output(ctx context.Context, dir, name string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), errors.Wrapf(err, "%s exited with error", name)
	}
	return string(out), nil
}
