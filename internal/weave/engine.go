package weave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/specs-feup/weaver/internal/log"
	"github.com/specs-feup/weaver/internal/model"
	"github.com/specs-feup/weaver/internal/service"
	"github.com/specs-feup/weaver/internal/session"
)

// Outcomes reported to a JobObserver.
const (
	OutcomeOK         = "ok"
	OutcomeValidation = "validation"
	OutcomeIO         = "io"
	OutcomeFault      = "fault" // ExecuteJob panicked
)

// JobObserver is notified once per job with its outcome and duration. Failed
// runs use the service.Kind of the subprocess error as outcome.
type JobObserver interface {
	ObserveJob(outcome string, took time.Duration)
}

type Config struct {
	Launcher   string        // executable, the tool is its first argument
	ScriptName string        // file name of the script inside the session
	Env        []string      // extra KEY=value pairs
	Timeout    time.Duration // zero means no deadline
	KillGrace  time.Duration
}

// NewConfig derives the engine configuration from the weaver section.
func NewConfig(cfg model.Weaver) Config {
	return Config{
		Launcher:   cfg.Launcher,
		ScriptName: cfg.ScriptName(),
		Env:        cfg.EnvList(),
		Timeout:    cfg.TimeoutDuration(),
		KillGrace:  cfg.KillGraceDuration(),
	}
}

// Executor runs one job end to end: validate, materialize inputs, invoke
// the tool, collect outputs and release the session directory.
type Executor struct {
	cfg      Config
	sessions *session.Manager
	observer JobObserver
	run      func(context.Context, service.Command, service.StderrFunc) service.Result
}

func NewExecutor(cfg Config, sessions *session.Manager) *Executor {
	return &Executor{
		cfg:      cfg,
		sessions: sessions,
		run:      service.Run,
	}
}

func (e *Executor) WithObserver(o JobObserver) *Executor {
	e.observer = o
	return e
}

// ExecuteJob returns an error only when the request is invalid; such an error
// matches model.ErrValidation and nothing was written to disk. All other
// failures are reported by a result with ExceptionOccurred set.
//
// The session directory never survives ExecuteJob, even when it panics.
func (e *Executor) ExecuteJob(ctx context.Context, req model.JobRequest) (model.JobResult, error) {
	start := time.Now()
	outcome := OutcomeOK
	defer func() {
		if r := recover(); r != nil {
			e.observe(OutcomeFault, time.Since(start))
			panic(r)
		}
		e.observe(outcome, time.Since(start))
	}()

	if err := e.validate(req); err != nil {
		outcome = OutcomeValidation
		return model.JobResult{}, err
	}

	ctx = log.ContextAttrs(ctx,
		slog.String("session_id", filepath.Base(req.SessionDir)),
		slog.String("tool", req.Tool),
	)

	dir, err := e.sessions.Acquire(req.SessionDir)
	if err != nil {
		outcome = OutcomeIO
		slog.ErrorContext(ctx, "acquiring session", "error", err)
		return model.FailedResult("Error: " + err.Error()), nil
	}
	defer func() {
		if err := e.sessions.Release(dir); err != nil {
			slog.WarnContext(ctx, "releasing session", "error", err)
		}
	}()

	inputPath := filepath.Join(dir, req.InputFilename())
	scriptPath := filepath.Join(dir, e.cfg.ScriptName)
	if err := writeInputs(inputPath, req.SourceCode, scriptPath, req.ScriptCode); err != nil {
		outcome = OutcomeIO
		slog.ErrorContext(ctx, "writing inputs", "error", err)
		return model.FailedResult("Error: " + err.Error()), nil
	}

	args := make([]string, 0, 7+len(req.Args))
	args = append(args, req.Tool, "classic", scriptPath, "-p", inputPath, "-o", dir)
	args = append(args, req.Args...)
	cmd := service.Command{
		Path:      e.cfg.Launcher,
		Args:      args,
		Env:       e.cfg.Env,
		Timeout:   e.cfg.Timeout,
		KillGrace: e.cfg.KillGrace,
	}
	slog.DebugContext(ctx, "running weaver", "path", cmd.Path, "args", cmd.Args)
	run := e.run(ctx, cmd, stderrLine)

	if err := service.Classify(run); err != nil {
		var serr *service.SubprocessError
		if errors.As(err, &serr) {
			outcome = string(serr.Kind)
		}
		slog.InfoContext(ctx, "weaver failed", "kind", outcome, "took", run.Stopped.Sub(run.Started))
		return model.FailedResult(service.ConsoleLog(run, err)), nil
	}

	console := service.ConsoleLog(run, nil)
	res, err := Collect(dir, req.SourceFilename)
	if err != nil {
		outcome = OutcomeIO
		slog.ErrorContext(ctx, "collecting outputs", "error", err)
		res.ConsoleLog = console + "\n\nError: " + err.Error()
		return res, nil
	}
	res.ConsoleLog = console
	slog.InfoContext(ctx, "weaver finished", "files", len(res.FileNames), "took", run.Stopped.Sub(run.Started))
	return res, nil
}

// Validate checks req without touching the filesystem. A failed check is
// reported to the observer with the validation outcome.
func (e *Executor) Validate(req model.JobRequest) error {
	if err := e.validate(req); err != nil {
		e.observe(OutcomeValidation, 0)
		return err
	}
	return nil
}

func (e *Executor) observe(outcome string, took time.Duration) {
	if e.observer != nil {
		e.observer.ObserveJob(outcome, took)
	}
}

func (e *Executor) validate(req model.JobRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if req.SourceFilename == e.cfg.ScriptName {
		return &model.ValidationError{Field: "sourceFilename", Reason: "collides with " + e.cfg.ScriptName}
	}
	return nil
}

// writeInputs returns once both files were written and closed, so the tool
// never observes a partial input.
func writeInputs(inputPath, source, scriptPath, script string) error {
	if err := os.WriteFile(inputPath, []byte(source), 0o644); err != nil {
		return fmt.Errorf("writing file %s: %w", inputPath, err)
	}
	if err := os.WriteFile(scriptPath, []byte(script), 0o644); err != nil {
		return fmt.Errorf("writing file %s: %w", scriptPath, err)
	}
	return nil
}

func stderrLine(ctx context.Context, line string) {
	slog.DebugContext(ctx, "weaver stderr", "line", line)
}
