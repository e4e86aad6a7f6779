package cron

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jaykumar-cb/buster/internal/domain/catalog"
	"github.com/jaykumar-cb/buster/internal/infra/eventbus"
	"github.com/jaykumar-cb/buster/internal/infra/sqlite"
)

const cronWorkspaceID = "ws-cron"

func newCronDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sqlite.NewDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	_, err = db.Exec(`INSERT INTO workspace (id, name) VALUES (?, ?)`, cronWorkspaceID, "Cron Workspace")
	if err != nil {
		t.Fatalf("seed workspace: %v", err)
	}
	return db
}

func cronLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func TestRefreshAll(t *testing.T) {
	db := newCronDB(t)
	ctx := context.Background()

	datasets := catalog.NewDatasetService(db, nil)
	metrics := catalog.NewMetricService(db)

	d, err := datasets.Create(ctx, catalog.CreateDatasetInput{
		WorkspaceID: cronWorkspaceID,
		Name:        "orders",
		Description: "order line items with revenue",
	})
	if err != nil {
		t.Fatalf("create dataset: %v", err)
	}
	// Simulate drift: the denormalized column no longer matches the content.
	if _, err := db.Exec(`UPDATE dataset SET search_text = '' WHERE id = ?`, d.ID); err != nil {
		t.Fatalf("corrupt search_text: %v", err)
	}

	m, err := metrics.Create(ctx, catalog.CreateMetricInput{WorkspaceID: cronWorkspaceID, Name: "orders_total"})
	if err != nil {
		t.Fatalf("create metric: %v", err)
	}
	newer := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	if _, err := metrics.RecordPoint(ctx, m.ID, newer, 500); err != nil {
		t.Fatalf("record point: %v", err)
	}
	if _, err := metrics.RecordPoint(ctx, m.ID, newer.AddDate(0, 0, -1), 400); err != nil {
		t.Fatalf("record point: %v", err)
	}

	r := NewRefresher(db, datasets, metrics, nil, "@every 1h", cronLogger())
	refreshed, err := r.RefreshAll(ctx)
	if err != nil {
		t.Fatalf("refresh all: %v", err)
	}
	if refreshed != 1 {
		t.Errorf("refreshed = %d, want 1", refreshed)
	}

	matches, err := datasets.Search(ctx, cronWorkspaceID, catalog.DatasetSearchInput{
		SpecificQueries: []string{"revenue"},
	}, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 1 || matches[0].Dataset.ID != d.ID {
		t.Errorf("search after refresh = %+v", matches)
	}

	out, err := metrics.Lookup(ctx, cronWorkspaceID, "orders_total", 0)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if out.Metric.LastValue == nil || *out.Metric.LastValue != 500 {
		t.Errorf("last_value = %v, want 500", out.Metric.LastValue)
	}
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	db := newCronDB(t)
	r := NewRefresher(db, catalog.NewDatasetService(db, nil), catalog.NewMetricService(db), nil, "not a schedule", cronLogger())

	if err := r.Start(context.Background()); err == nil {
		r.Stop()
		t.Fatal("expected schedule parse error")
	}
}

func TestEventDrivenRefresh(t *testing.T) {
	db := newCronDB(t)
	ctx := context.Background()
	bus := eventbus.New()

	datasets := catalog.NewDatasetService(db, nil)
	metrics := catalog.NewMetricService(db)

	d, err := datasets.Create(ctx, catalog.CreateDatasetInput{
		WorkspaceID: cronWorkspaceID,
		Name:        "customers",
		Description: "customer accounts and churn flags",
	})
	if err != nil {
		t.Fatalf("create dataset: %v", err)
	}
	if _, err := db.Exec(`UPDATE dataset SET search_text = '' WHERE id = ?`, d.ID); err != nil {
		t.Fatalf("corrupt search_text: %v", err)
	}

	r := NewRefresher(db, datasets, metrics, bus, "@every 1h", cronLogger())
	if err := r.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer r.Stop()

	bus.Publish(eventbus.TopicCatalogChanged, eventbus.CatalogChange{
		WorkspaceID: cronWorkspaceID,
		EntityType:  "dataset",
		EntityID:    d.ID,
	})

	deadline := time.Now().Add(2 * time.Second)
	for {
		matches, searchErr := datasets.Search(ctx, cronWorkspaceID, catalog.DatasetSearchInput{
			SpecificQueries: []string{"churn"},
		}, 0)
		if searchErr != nil {
			t.Fatalf("search: %v", searchErr)
		}
		if len(matches) == 1 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("event-driven refresh never landed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStopIsIdempotentWithoutEvents(t *testing.T) {
	db := newCronDB(t)
	bus := eventbus.New()
	r := NewRefresher(db, catalog.NewDatasetService(db, nil), catalog.NewMetricService(db), bus, "@every 1h", cronLogger())

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	r.Stop()
}
