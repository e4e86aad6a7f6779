// Package cron keeps derived catalog data fresh in the background.
// The refresher recomputes dataset search text and metric last values on a
// fixed schedule, and immediately for a workspace whenever the catalog
// changes, so searches never run against stale denormalized columns.
package cron

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/jaykumar-cb/buster/internal/domain/catalog"
	"github.com/jaykumar-cb/buster/internal/infra/eventbus"
)

// Refresher schedules catalog maintenance sweeps.
type Refresher struct {
	db       *sql.DB
	datasets *catalog.DatasetService
	metrics  *catalog.MetricService
	bus      *eventbus.Bus
	schedule string
	log      *logrus.Entry

	cron   *rcron.Cron
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRefresher(db *sql.DB, datasets *catalog.DatasetService, metrics *catalog.MetricService, bus *eventbus.Bus, schedule string, log *logrus.Entry) *Refresher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Refresher{
		db:       db,
		datasets: datasets,
		metrics:  metrics,
		bus:      bus,
		schedule: schedule,
		log:      log.WithField("component", "cron"),
	}
}

// Start registers the scheduled sweep and begins reacting to catalog change
// events. It returns an error if the schedule expression does not parse.
func (r *Refresher) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.cron = rcron.New()
	if _, err := r.cron.AddFunc(r.schedule, func() {
		if _, err := r.RefreshAll(runCtx); err != nil {
			r.log.WithError(err).Error("scheduled refresh failed")
		}
	}); err != nil {
		cancel()
		return fmt.Errorf("cron: invalid schedule %q: %w", r.schedule, err)
	}
	r.cron.Start()

	if r.bus != nil {
		events := r.bus.Subscribe(eventbus.TopicCatalogChanged)
		r.wg.Add(1)
		go r.watchCatalog(runCtx, events)
	}

	r.log.WithField("schedule", r.schedule).Info("catalog refresher started")
	return nil
}

// Stop cancels the event loop and waits for any in-flight sweep to finish.
func (r *Refresher) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.cron != nil {
		stopCtx := r.cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(5 * time.Second):
			r.log.Warn("timed out waiting for running sweep")
		}
	}
	r.wg.Wait()
	r.log.Info("catalog refresher stopped")
}

func (r *Refresher) watchCatalog(ctx context.Context, events <-chan eventbus.Event) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			change, ok := evt.Payload.(eventbus.CatalogChange)
			if !ok || change.WorkspaceID == "" {
				continue
			}
			if err := r.RefreshWorkspace(ctx, change.WorkspaceID); err != nil {
				r.log.WithError(err).WithField("workspace_id", change.WorkspaceID).
					Error("event-driven refresh failed")
			}
		}
	}
}

// RefreshAll sweeps every workspace and returns how many were refreshed.
func (r *Refresher) RefreshAll(ctx context.Context) (int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM workspace`)
	if err != nil {
		return 0, fmt.Errorf("cron: list workspaces: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	refreshed := 0
	for _, id := range ids {
		if err := r.RefreshWorkspace(ctx, id); err != nil {
			r.log.WithError(err).WithField("workspace_id", id).Error("workspace refresh failed")
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

// RefreshWorkspace recomputes derived data for one workspace.
func (r *Refresher) RefreshWorkspace(ctx context.Context, workspaceID string) error {
	datasets, err := r.datasets.RefreshSearchText(ctx, workspaceID)
	if err != nil {
		return err
	}
	metrics, err := r.metrics.RecomputeLastValues(ctx, workspaceID)
	if err != nil {
		return err
	}
	r.log.WithFields(logrus.Fields{
		"workspace_id": workspaceID,
		"datasets":     datasets,
		"metrics":      metrics,
	}).Debug("workspace refreshed")
	return nil
}
