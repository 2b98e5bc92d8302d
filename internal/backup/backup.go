// Package backup writes periodic snapshots of the catalog to disk so an
// operator can recover or inspect the shop state without stopping the
// daemon.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vitrine-io/vitrine/internal/store"
)

// Runner schedules catalog snapshots with a cron expression.
type Runner struct {
	store    store.Store
	dir      string
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
}

// New creates a runner. The schedule is a standard cron expression
// (5 fields) or a predefined schedule like @every 6h.
func New(st store.Store, dir, schedule string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:    st,
		dir:      dir,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Start registers the snapshot job and runs the cron loop. Blocks until
// the context is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	_, err := r.cron.AddFunc(r.schedule, func() {
		path, err := r.Snapshot()
		if err != nil {
			r.logger.Error("backup failed", "error", err)
			return
		}
		r.logger.Info("backup written", "path", path)
	})
	if err != nil {
		return fmt.Errorf("backup: invalid schedule %q: %w", r.schedule, err)
	}

	r.cron.Start()
	r.logger.Info("backup scheduler started", "schedule", r.schedule, "dir", r.dir)

	<-ctx.Done()
	r.cron.Stop()
	r.logger.Info("backup scheduler stopped")
	return ctx.Err()
}

// Snapshot writes the current catalog to a timestamped JSON file and
// returns its path.
func (r *Runner) Snapshot() (string, error) {
	catalog, err := r.store.Load()
	if err != nil {
		return "", fmt.Errorf("backup: load catalog: %w", err)
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("backup: create dir: %w", err)
	}

	data, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return "", fmt.Errorf("backup: encode catalog: %w", err)
	}

	path := filepath.Join(r.dir, fmt.Sprintf("catalog-%s.json", time.Now().UTC().Format("20060102-150405")))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("backup: write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("backup: finalize snapshot: %w", err)
	}
	return path, nil
}
