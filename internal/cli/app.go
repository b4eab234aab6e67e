// Package cli wires the Nocturne client together and exposes it as cobra
// commands.
package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/nocturne-journal/nocturne/internal/analysis"
	"github.com/nocturne-journal/nocturne/internal/config"
	"github.com/nocturne-journal/nocturne/internal/connectivity"
	"github.com/nocturne-journal/nocturne/internal/identity"
	"github.com/nocturne-journal/nocturne/internal/journal"
	"github.com/nocturne-journal/nocturne/internal/logging"
	"github.com/nocturne-journal/nocturne/internal/migrations"
	"github.com/nocturne-journal/nocturne/internal/quota"
	"github.com/nocturne-journal/nocturne/internal/remote"
	"github.com/nocturne-journal/nocturne/internal/repositories/entries"
	"github.com/nocturne-journal/nocturne/internal/repositories/metadata"
	"github.com/nocturne-journal/nocturne/internal/repositories/mutations"
	"github.com/nocturne-journal/nocturne/internal/syncer"
)

// App holds the wired component graph for one CLI invocation.
type App struct {
	Config       *config.Config
	DB           *sql.DB
	Session      *identity.Session
	Meta         metadata.Repository
	Backend      remote.Backend
	Gate         *connectivity.Gate
	Watcher      *connectivity.Watcher
	Queue        *syncer.Queue
	Store        *journal.Store
	Engine       *syncer.Engine
	Quota        *quota.Gate
	Orchestrator *analysis.Orchestrator
	Log          logging.Logger
}

// InitDatabase opens the local SQLite database and applies migrations.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// NewApp builds the full component graph, restores persisted state and
// registers the sync triggers. A drain runs at startup when a previous run
// left mutations queued, and again whenever connectivity returns or the
// auth state changes.
func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	db, err := InitDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}

	meta := metadata.NewSQLiteRepository(db)

	session, err := identity.NewSession(ctx, meta, log)
	if err != nil {
		return nil, err
	}

	backend := remote.NewHTTPClient(cfg.ServerEndpointURL, cfg.RequestTimeout, session, log)
	gate := connectivity.NewGate(connectivity.PingSignal(backend, cfg.RequestTimeout), nil)
	watcher := connectivity.NewWatcher(gate, cfg.OnlineCheckInterval, log)

	queue := syncer.NewQueue(mutations.NewSQLiteRepository(db))
	if err := queue.Load(ctx); err != nil {
		return nil, err
	}

	store := journal.NewStore(entries.NewSQLiteRepository(db), queue, backend, session, gate, log)
	if err := store.Load(ctx); err != nil {
		return nil, err
	}

	engine := syncer.NewEngine(queue, backend, store, session, gate, log)
	quotaGate := quota.NewGate(backend, session, meta, log)
	orchestrator := analysis.NewOrchestrator(store, quotaGate, backend, backend, session, log)

	watcher.Subscribe(func(online bool) {
		if !online {
			return
		}
		if err := engine.Drain(context.Background()); err != nil {
			log.Error(context.Background(), "drain after reconnect failed", "error", err)
		}
	})
	session.OnChange(func(ident identity.Identity) {
		quotaGate.Invalidate()
		bg := context.Background()
		if ident.Guest() {
			if err := store.ClearSynced(bg); err != nil {
				log.Warn(bg, "clearing synced entries on logout failed", "error", err)
			}
			return
		}
		if err := store.EnqueueLocalOnly(bg); err != nil {
			log.Warn(bg, "queuing local entries after login failed", "error", err)
		}
		if err := engine.Hydrate(bg); err != nil {
			log.Warn(bg, "hydrate after auth change failed", "error", err)
		}
		if err := engine.Drain(bg); err != nil {
			log.Error(bg, "drain after auth change failed", "error", err)
		}
	})

	// Replay anything a previous run left queued. Best effort: an offline
	// or failing drain leaves the queue for the next trigger.
	if session.Authenticated() && queue.Len() > 0 {
		if err := engine.Drain(ctx); err != nil {
			log.Warn(ctx, "startup drain failed", "error", err)
		}
	}

	return &App{
		Config:       cfg,
		DB:           db,
		Session:      session,
		Meta:         meta,
		Backend:      backend,
		Gate:         gate,
		Watcher:      watcher,
		Queue:        queue,
		Store:        store,
		Engine:       engine,
		Quota:        quotaGate,
		Orchestrator: orchestrator,
		Log:          log,
	}, nil
}

// Close releases the app's resources.
func (a *App) Close() error {
	return a.DB.Close()
}
