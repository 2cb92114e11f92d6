package cmd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nikogura/resumelm/pkg/config"
	"github.com/nikogura/resumelm/pkg/extract"
	"github.com/nikogura/resumelm/pkg/llm"
	"github.com/nikogura/resumelm/pkg/pipeline"
	"github.com/nikogura/resumelm/pkg/store"
	"github.com/nikogura/resumelm/pkg/store/postgres"
	"github.com/nikogura/resumelm/pkg/store/sqlite"
	"github.com/pkg/errors"
)

// app wires configuration, persistence and the AI services for one command.
type app struct {
	cfg     config.Config
	store   store.Store
	service *extract.Service
	runner  *pipeline.Runner
}

func setupApp(ctx context.Context) (a *app, err error) {
	var cfg config.Config
	cfg, err = config.Load(getConfigFile())
	if err != nil {
		err = errors.Wrap(err, "failed to load config")
		return a, err
	}

	var st store.Store
	st, err = openStore(ctx, cfg.Database)
	if err != nil {
		return a, err
	}

	var factory *llm.Factory
	factory, err = cfg.Factory()
	if err != nil {
		_ = st.Close()
		return a, err
	}

	var service *extract.Service
	service, err = extract.NewService(factory)
	if err != nil {
		_ = st.Close()
		err = errors.Wrap(err, "failed to create extraction service")
		return a, err
	}

	a = &app{
		cfg:     cfg,
		store:   st,
		service: service,
		runner:  pipeline.NewRunner(service, st),
	}

	if getVerbose() {
		slog.Debug("configured", "model", cfg.GetModel(), "database", cfg.Database.Driver)
	}

	return a, err
}

func openStore(ctx context.Context, db config.DatabaseConfig) (st store.Store, err error) {
	switch db.Driver {
	case config.DriverPostgres:
		st, err = postgres.Connect(ctx, db.DSN, slog.Default())
		if err != nil {
			err = errors.Wrap(err, "failed to connect to postgres")
			return st, err
		}
	default:
		dir := filepath.Dir(db.DSN)
		err = os.MkdirAll(dir, 0750)
		if err != nil {
			err = errors.Wrapf(err, "failed to create database directory: %s", dir)
			return st, err
		}
		st, err = sqlite.Open(ctx, db.DSN, slog.Default())
		if err != nil {
			err = errors.Wrap(err, "failed to open sqlite database")
			return st, err
		}
	}
	return st, err
}

func (a *app) close() {
	if a == nil || a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("failed to close store", "error", err)
	}
}
