package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Kind tells which rule classified a command as failed.
type Kind string

const (
	KindLaunch  Kind = "launch"
	KindTimeout Kind = "timeout"
	KindExit    Kind = "exit"
	KindStderr  Kind = "stderr"
)

// SubprocessError describes a failed run of the external tool.
type SubprocessError struct {
	Kind        Kind
	Description string
	Err         error
}

func (e *SubprocessError) Error() string {
	return e.Description
}

func (e *SubprocessError) Unwrap() error {
	return e.Err
}

// stderrErrorRx flags tools which report errors on stderr and still exit
// with 0. It also matches messages which merely mention the word.
var stderrErrorRx = regexp.MustCompile(`(?i)error`)

// Classify returns nil when the run succeeded, otherwise a *SubprocessError.
// Rules are applied in order: launch failure, timeout, non zero exit and
// finally "error" anywhere on stderr.
func Classify(r Result) error {
	switch {
	case r.State == nil && r.Err != nil:
		return &SubprocessError{
			Kind:        KindLaunch,
			Description: "Error: " + r.Err.Error(),
			Err:         r.Err,
		}
	case errors.Is(r.Err, ErrTimeout):
		return &SubprocessError{
			Kind:        KindTimeout,
			Description: fmt.Sprintf("Error: %s\n%s", r.Err, stderrText(r)),
			Err:         r.Err,
		}
	case r.Err != nil || (r.State != nil && r.State.ExitCode() != 0):
		err := r.Err
		if err == nil {
			err = fmt.Errorf("exit status %d", r.State.ExitCode())
		}
		return &SubprocessError{
			Kind:        KindExit,
			Description: fmt.Sprintf("Error: Command failed: %s\n%s", r.CommandLine(), stderrText(r)),
			Err:         err,
		}
	case stderrErrorRx.Match(stderrBytes(r)):
		return &SubprocessError{
			Kind:        KindStderr,
			Description: fmt.Sprintf("Error: %s reported errors on stderr\n%s", r.Path, stderrText(r)),
		}
	default:
		return nil
	}
}

// ConsoleLog renders the log of a run: stdout, followed by the error
// description when the run failed.
func ConsoleLog(r Result, err error) string {
	var stdout string
	if r.Stdout != nil {
		stdout = r.Stdout.String()
	}
	if err == nil {
		return stdout
	}
	return stdout + "\n\n" + err.Error()
}

// CommandLine is the space separated command as it was launched.
func (r Result) CommandLine() string {
	return strings.Join(append([]string{r.Path}, r.Args...), " ")
}

func stderrBytes(r Result) []byte {
	if r.Stderr == nil {
		return nil
	}
	return r.Stderr.Bytes()
}

func stderrText(r Result) string {
	return string(stderrBytes(r))
}
