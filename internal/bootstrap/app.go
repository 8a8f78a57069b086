package bootstrap

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/qrawareness/internal/config"
	"github.com/Lllllllleong/qrawareness/internal/gcp"
	"github.com/Lllllllleong/qrawareness/internal/handlers"
	"github.com/Lllllllleong/qrawareness/internal/models"
	"github.com/Lllllllleong/qrawareness/internal/services"
	"github.com/Lllllllleong/qrawareness/internal/sessions"
	"go.uber.org/zap"
	"google.golang.org/api/sheets/v4"
)

// RemoteStore is a record backend that also supports the admin operations.
type RemoteStore interface {
	services.RecordStore
	ReadRecords(ctx context.Context) ([]models.Record, error)
	Reset(ctx context.Context) error
}

// App is the wired landing-page service.
type App struct {
	Handler *handlers.LandingHandler
	Flow    *services.FlowService
	closers []func() error
}

// New wires the landing page. Remote persistence and the export archive are optional:
// when they cannot be set up the app runs local-only and says so in the log.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) *App {
	app := &App{}

	var recordStore services.RecordStore
	remote, closeRemote, err := OpenRemoteStore(ctx, cfg)
	switch {
	case err != nil:
		logger.Warn("Remote persistence unavailable; running local-only.", zap.Error(err), zap.String("backend", cfg.Backend))
	default:
		recordStore = remote
		app.closers = append(app.closers, closeRemote)
		logger.Info("Remote persistence enabled.", zap.String("backend", cfg.Backend))
	}

	var archive services.Archiver
	if cfg.Export.Bucket != "" {
		if a, err := openArchive(ctx, cfg); err != nil {
			logger.Warn("Export archive unavailable.", zap.Error(err), zap.String("bucket", cfg.Export.Bucket))
		} else {
			archive = a
			app.closers = append(app.closers, a.Close)
		}
	}

	store := sessions.NewStore(cfg.App.SessionIdleTimeout, nil)
	persister := services.NewPersister(recordStore, cfg.App.PersistTimeout, logger)
	app.Flow = services.NewFlowService(store, persister, archive, logger)
	app.Handler = handlers.NewLandingHandler(app.Flow, logger)
	return app
}

// Close releases the remote clients.
func (a *App) Close() error {
	var firstErr error
	for _, c := range a.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// OpenRemoteStore connects the configured backend. It returns gcp.ErrConfigurationMissing
// when credentials or the target are absent.
func OpenRemoteStore(ctx context.Context, cfg *config.Config) (RemoteStore, func() error, error) {
	if !cfg.RemoteEnabled() {
		return nil, nil, gcp.ErrConfigurationMissing
	}

	switch cfg.Backend {
	case config.BackendFirestore:
		opts, err := gcp.ClientOptions(cfg.Credentials)
		if err != nil {
			return nil, nil, err
		}
		client, err := gcp.NewFirestoreClient(ctx, cfg.Firestore.ProjectID, opts...)
		if err != nil {
			return nil, nil, err
		}
		store := gcp.NewFirestoreStore(client, cfg.Firestore.Collection)
		return store, store.Close, nil
	default:
		opts, err := gcp.ClientOptions(cfg.Credentials, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, nil, err
		}
		svc, err := gcp.NewSheetsService(ctx, opts...)
		if err != nil {
			return nil, nil, err
		}
		return gcp.NewSheetsStore(svc, cfg.Sheets.SheetID, cfg.Sheets.Tab), func() error { return nil }, nil
	}
}

func openArchive(ctx context.Context, cfg *config.Config) (*gcp.ExportArchive, error) {
	opts, err := gcp.ClientOptions(cfg.Credentials, storage.ScopeReadWrite)
	if err != nil {
		return nil, fmt.Errorf("export archive: %w", err)
	}
	return gcp.NewExportArchive(ctx, cfg.Export.Bucket, opts...)
}
