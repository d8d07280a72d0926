// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/tomtom215/circulation/internal/auth"
	"github.com/tomtom215/circulation/internal/bookshelf"
	"github.com/tomtom215/circulation/internal/circulation"
	"github.com/tomtom215/circulation/internal/config"
	"github.com/tomtom215/circulation/internal/database"
	"github.com/tomtom215/circulation/internal/eventprocessor"
	"github.com/tomtom215/circulation/internal/httpclient"
	"github.com/tomtom215/circulation/internal/logging"
	"github.com/tomtom215/circulation/internal/models"
	"github.com/tomtom215/circulation/internal/overdrive"
)

// DriverMemory keeps everything in process memory. It is meant for local
// development; nothing survives a restart.
const DriverMemory = "memory"

// App holds the assembled components.
type App struct {
	Config     *config.Config
	Store      models.Store
	Collection models.Collection
	Overdrive  *overdrive.API
	Shelf      *bookshelf.Syncer
	Monitor    *overdrive.CirculationMonitor

	// DB is nil for the memory driver.
	DB *database.Store

	closers []io.Closer
}

// New builds the component graph for cfg. On error everything opened so
// far is closed.
func New(ctx context.Context, cfg *config.Config) (a *App, err error) {
	a = &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	base, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	creds, closer, err := auth.NewCredentialStore(ctx, cfg.Credentials)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	a.closers = append(a.closers, closer)
	a.Store = auth.WithCredentialStore(base, creds)

	a.Collection, err = a.ensureCollection(ctx, base)
	if err != nil {
		return nil, err
	}

	sink, err := a.eventSink()
	if err != nil {
		return nil, err
	}

	a.Overdrive, err = overdrive.New(newDoer(cfg.Overdrive), a.Store, a.Collection,
		overdrive.SettingsFromConfig(cfg), overdrive.WithEventSink(sink))
	if err != nil {
		return nil, fmt.Errorf("configure overdrive: %w", err)
	}

	a.Shelf = bookshelf.New(a.Store, a.Overdrive, bookshelf.Scope{
		DataSource:    models.DataSourceOverdrive,
		CollectionIDs: []int64{a.Collection.ID},
	})
	a.Monitor = overdrive.NewCirculationMonitor(a.Overdrive, cfg.Monitor.Overlap)

	logging.Info().
		Int64("collection_id", a.Collection.ID).
		Str("collection", a.Collection.Name).
		Str("database", cfg.Database.Driver).
		Str("credentials", cfg.Credentials.Backend).
		Msg("Circulation components ready")
	return a, nil
}

// Close releases everything New opened, last opened first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) openStore(ctx context.Context) (models.Store, error) {
	if a.Config.Database.Driver == DriverMemory {
		logging.Warn().Msg("Using the in-memory store; nothing will be persisted")
		return models.NewMemoryStore(), nil
	}
	db, err := database.Open(ctx, a.Config.Database)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, db)
	return db, nil
}

// collectionFinder is the part of *database.Store used to resolve the
// configured collection.
type collectionFinder interface {
	FindCollection(ctx context.Context, name string) (*models.Collection, error)
	CreateCollection(ctx context.Context, c models.Collection) (*models.Collection, error)
}

// ensureCollection returns the configured collection, creating its row on
// first start.
func (a *App) ensureCollection(ctx context.Context, base models.Store) (models.Collection, error) {
	cc := a.Config.Collection
	want := models.Collection{
		ID:                cc.ID,
		Name:              cc.Name,
		DataSource:        models.DataSourceOverdrive,
		ExternalAccountID: cc.ExternalAccountID,
		ParentID:          cc.ParentID,
	}

	switch s := base.(type) {
	case *models.MemoryStore:
		return s.AddCollection(want), nil
	case collectionFinder:
		found, err := s.FindCollection(ctx, cc.Name)
		if err == nil {
			return *found, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return models.Collection{}, err
		}
		created, err := s.CreateCollection(ctx, want)
		if err != nil {
			return models.Collection{}, fmt.Errorf("create collection %q: %w", cc.Name, err)
		}
		logging.Info().Int64("collection_id", created.ID).Str("collection", created.Name).Msg("Created collection")
		return *created, nil
	default:
		return models.Collection{}, fmt.Errorf("store %T cannot resolve collections", base)
	}
}

func (a *App) eventSink() (circulation.EventSink, error) {
	cfg := a.Config.Events
	if !cfg.Enabled {
		return circulation.NopSink{}, nil
	}
	pub, err := eventprocessor.NewPublisherFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("events publisher: %w", err)
	}
	a.closers = append(a.closers, pub)
	return eventprocessor.NewSink(pub, cfg.Topic), nil
}

// newDoer builds the vendor transport: the retrying client, behind a
// per-host circuit breaker when enabled.
func newDoer(cfg config.OverdriveConfig) httpclient.Doer {
	client := httpclient.New(httpclient.Config{
		Timeout:           cfg.RequestTimeout,
		MaxRetries:        cfg.MaxRetryCount,
		BackoffBase:       cfg.BackoffBase,
		BackoffMax:        cfg.BackoffMax,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.RequestBurst,
	})
	if !cfg.CircuitBreaker {
		return client
	}
	return httpclient.NewBreakerClient(client, "overdrive")
}
