package service

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// ErrTimeout is the cause of a context which expired because the command ran
// longer than Command.Timeout.
var ErrTimeout = errors.New("command timed out")

const maxStderrLine = 1 << 20

type StderrFunc func(ctx context.Context, line string)

type Command struct {
	Path      string
	Args      []string
	Env       []string // appended to the environment of the current process
	Dir       string
	Timeout   time.Duration // zero means no deadline
	KillGrace time.Duration // how long Wait waits for I/O after the process was killed
}

type Result struct {
	Path    string
	Args    []string
	Started time.Time
	Stopped time.Time
	State   *os.ProcessState // nil when the process never started
	Stdout  *bytes.Buffer
	Stderr  *bytes.Buffer
	Err     error
}

// Run starts the command and blocks until it terminates. Stdout and stderr
// are captured in full. When stderrFunc is not nil every stderr line is passed
// to it as soon as it is read.
//
// A command running past its timeout is killed together with its children
// and the Result.Err wraps ErrTimeout.
func Run(ctx context.Context, proto Command, stderrFunc StderrFunc) Result {
	res := Result{
		Path:   proto.Path,
		Args:   append([]string(nil), proto.Args...),
		Stdout: &bytes.Buffer{},
		Stderr: &bytes.Buffer{},
	}

	if proto.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, proto.Timeout, ErrTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, proto.Path, proto.Args...)
	cmd.Dir = proto.Dir
	if len(proto.Env) > 0 {
		cmd.Env = append(os.Environ(), proto.Env...)
	}
	cmd.WaitDelay = proto.KillGrace
	killGroup(cmd)
	cmd.Stdout = res.Stdout

	var pr *io.PipeReader
	var pw *io.PipeWriter
	done := make(chan struct{})
	if stderrFunc != nil {
		pr, pw = io.Pipe()
		cmd.Stderr = io.MultiWriter(res.Stderr, pw)
		go func() {
			defer close(done)
			processStderr(ctx, pr, stderrFunc)
		}()
	} else {
		cmd.Stderr = res.Stderr
		close(done)
	}

	res.Started = time.Now().UTC()
	err := cmd.Start()
	if err == nil {
		err = cmd.Wait()
		res.State = cmd.ProcessState
	}
	res.Stopped = time.Now().UTC()
	if pw != nil {
		_ = pw.Close()
	}
	<-done

	if err != nil && res.State != nil && errors.Is(context.Cause(ctx), ErrTimeout) {
		err = fmt.Errorf("%w after %s: %w", ErrTimeout, proto.Timeout, err)
	}
	res.Err = err
	return res
}

func processStderr(ctx context.Context, stderr io.Reader, stderrFunc StderrFunc) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 4096), maxStderrLine)
	for scanner.Scan() {
		stderrFunc(ctx, scanner.Text())
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		slog.ErrorContext(ctx, "processing stderr", "error", err)
		// keep the writer side unblocked, the full text is still captured
		_, _ = io.Copy(io.Discard, stderr)
	}
}
