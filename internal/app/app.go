// Package app wires resolved settings into a running webhook server.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/mattjoyce/octox/internal/config"
	"github.com/mattjoyce/octox/internal/credential"
	"github.com/mattjoyce/octox/internal/delivery"
	"github.com/mattjoyce/octox/internal/github"
	"github.com/mattjoyce/octox/internal/lock"
	"github.com/mattjoyce/octox/internal/log"
	"github.com/mattjoyce/octox/internal/storage"
	"github.com/mattjoyce/octox/internal/webhook"
	"github.com/mattjoyce/octox/internal/workflow"
)

// App is one configured server and the resources it owns.
type App struct {
	settings *config.Settings
	logger   *slog.Logger

	Store  *credential.Store
	Client *github.Client
	Engine *workflow.Engine
	Server *webhook.Server

	db      *sql.DB
	pidLock *lock.PIDLock
}

// New builds the credential store, GitHub client, engine and server for s.
// When s.DBPath is set the delivery log is opened and locked against other
// processes. Call Close to release it.
func New(ctx context.Context, s *config.Settings, newWorkflow workflow.Constructor) (*App, error) {
	if newWorkflow == nil {
		return nil, fmt.Errorf("workflow constructor is nil")
	}
	a := &App{settings: s, logger: log.WithComponent("app")}

	a.Store = credential.NewStore(s.Host, s.AppID, s.PrivateKey)
	a.Client = github.NewClient(s.Host, a.Store)

	engineOpts := []workflow.EngineOption{}
	if s.MaxSteps > 0 {
		engineOpts = append(engineOpts, workflow.WithMaxSteps(s.MaxSteps))
	}
	a.Engine = workflow.NewEngine(newWorkflow(s.Host, s.AppID, s.PrivateKey), engineOpts...)

	var serverOpts []webhook.Option
	if s.DBPath != "" {
		deliveries, err := a.openDeliveryLog(ctx)
		if err != nil {
			return nil, err
		}
		serverOpts = append(serverOpts, webhook.WithRecorder(deliveries))
	}

	a.Server = webhook.New(webhook.Config{
		Listen:      s.Listen,
		Secret:      s.WebhookSecret,
		MaxBodySize: s.MaxBodySize,
	}, a.Engine, a.Client, log.WithComponent("webhook"), serverOpts...)

	return a, nil
}

func (a *App) openDeliveryLog(ctx context.Context) (*delivery.Log, error) {
	path := a.settings.DBPath
	l, err := lock.Acquire(lock.PathFor(path))
	if err != nil {
		return nil, fmt.Errorf("lock delivery log (another instance may be running): %w", err)
	}
	a.pidLock = l

	db, err := storage.OpenSQLite(ctx, path)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("open delivery log: %w", err)
	}
	a.db = db
	a.logger.Info("delivery log opened", "path", path, "lock", l.Path())
	return delivery.New(db), nil
}

// Run serves until ctx is cancelled. A pre-bound s.Listener takes precedence
// over s.Listen.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("octox starting",
		"github_host", a.settings.Host.String(),
		"app_id", a.settings.AppID.String(),
		"delivery_log", a.settings.DBPath != "",
	)
	if ln := a.settings.Listener; ln != nil {
		return a.Server.Serve(ctx, ln)
	}
	return a.Server.Start(ctx)
}

// Close releases the delivery log and its lock.
func (a *App) Close() error {
	var err error
	if a.db != nil {
		err = a.db.Close()
		a.db = nil
	}
	if a.pidLock != nil {
		if lerr := a.pidLock.Release(); err == nil {
			err = lerr
		}
		a.pidLock = nil
	}
	return err
}
