package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/specs-feup/weaver/internal/model"
)

// Janitor removes session directories which outlived max age and are not
// held by a running job. Such directories are left over by jobs lost when
// the process terminated.
type Janitor struct {
	manager *Manager
	maxAge  time.Duration
	swept   func(n int)
	now     func() time.Time
}

func NewJanitor(manager *Manager, maxAge time.Duration) *Janitor {
	return &Janitor{
		manager: manager,
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// WithSweptFunc registers a callback receiving the number of directories
// removed by each sweep.
func (j *Janitor) WithSweptFunc(fn func(n int)) *Janitor {
	j.swept = fn
	return j
}

// Sweep makes a single pass over the direct children of the base directory.
// A missing base directory is not an error.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(j.manager.Base())
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("listing %s: %w", j.manager.Base(), err)
	}

	cutoff := j.now().Add(-j.maxAge)
	var removed int
	var errs []error
	for _, entry := range entries {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		path := filepath.Join(j.manager.Base(), entry.Name())
		if j.manager.Active(path) {
			continue
		}
		info, err := entry.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, err)
			continue
		}
		slog.DebugContext(ctx, "stale session removed", "path", path, "modified", info.ModTime())
		removed++
	}
	if j.swept != nil {
		j.swept(removed)
	}
	return removed, errors.Join(errs...)
}

// Run sweeps once, then on every tick of the cron schedule until ctx is done.
func (j *Janitor) Run(ctx context.Context, schedule string) error {
	if _, err := model.ParseCron(schedule); err != nil {
		return fmt.Errorf("parsing janitor.schedule: %w", err)
	}

	j.sweep(ctx)

	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("initializing gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.CronJob(schedule, false),
		gocron.NewTask(func() { j.sweep(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("initializing gocron job: %w", err)
	}
	slog.DebugContext(ctx, "janitor scheduled", "schedule", schedule, "max_age", j.maxAge)

	s.Start()
	<-ctx.Done()
	if err := s.Shutdown(); err != nil {
		return fmt.Errorf("stopping janitor: %w", err)
	}
	return nil
}

func (j *Janitor) sweep(ctx context.Context) {
	n, err := j.Sweep(ctx)
	if err != nil && ctx.Err() == nil {
		slog.WarnContext(ctx, "sweeping sessions", "error", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "stale sessions removed", "count", n)
	}
}
