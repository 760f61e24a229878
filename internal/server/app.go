// Package server initializes and runs the vault server: the gRPC secret
// service, the HTTP surface and the optional backup schedule. It stops
// gracefully on SIGINT/SIGTERM.
package server

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/sbetterfy/internal/logging"
	"github.com/dmitrijs2005/sbetterfy/internal/server/config"
	"github.com/dmitrijs2005/sbetterfy/internal/server/httpapi"
	"github.com/dmitrijs2005/sbetterfy/internal/server/services"

	gs "github.com/dmitrijs2005/sbetterfy/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	deps    *Deps
	creds   *services.CredentialService
	spotify *services.SpotifyAuthService
	backup  *services.BackupService
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {

	deps, err := OpenDeps(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	app := &App{
		config:  c,
		logger:  logger,
		deps:    deps,
		creds:   services.NewCredentialService(deps.Vault),
		spotify: services.NewSpotifyAuthService(deps.Vault, c.SpotifyRedirectURL, logger.With("module", "spotify_auth")),
	}

	if c.BackupSchedule != "" {
		app.backup, err = deps.NewBackupService(ctx, c, logger)
		if err != nil {
			_ = deps.Close()
			return nil, err
		}
	}

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s, err := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.deps.Vault, app.config.SecretKey)

	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	} else {

		if err := s.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s, err := httpapi.NewServer(httpapi.Options{
		Address:   app.config.EndpointAddrHTTP,
		JWTSecret: app.config.SecretKey,
		AppURL:    app.config.AppURL,
		Metrics:   app.deps.Metrics.Handler(),
		Health:    app.deps.DB.PingContext,
	}, app.logger, app.creds, app.spotify)

	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	} else {

		if err := s.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}
}

func (app *App) startBackups(ctx context.Context, cancelFunc context.CancelFunc) {

	c, err := app.backup.Schedule(ctx, app.config.BackupSchedule)
	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
		return
	}
	app.logger.Info(ctx, "Backups scheduled", "schedule", app.config.BackupSchedule, "bucket", app.config.S3Bucket)

	<-ctx.Done()
	// wait for a running backup to finish
	<-c.Stop().Done()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if app.backup != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startBackups(ctx, cancelFunc)
		}()
	}

	wg.Wait()

	if err := app.deps.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
