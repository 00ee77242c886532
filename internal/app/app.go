package app

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/speech-to-contract/internal/data/db"
	"github.com/yungbote/speech-to-contract/internal/data/repos"
	"github.com/yungbote/speech-to-contract/internal/http"
	"github.com/yungbote/speech-to-contract/internal/observability"
	"github.com/yungbote/speech-to-contract/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    repos.Set
	Clients  Clients
	Services Services
	Server   *http.Server
	Jobs     JobRunner

	pg           *db.PostgresService
	shutdownOTel func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	shutdownOTel := observability.InitOTel(ctx, log, observability.OtelConfigFromEnv(cfg.ServiceName))

	pg, err := db.NewPostgresService(log, db.DSN())
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := db.AutoMigrateAll(pg.DB()); err != nil {
		pg.Close()
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	a := &App{Log: log, DB: theDB, Cfg: cfg, pg: pg, shutdownOTel: shutdownOTel}
	a.Repos = repos.NewSet(theDB, log)

	a.Clients, err = wireClients(ctx, log, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Services = wireServices(log, cfg, a.Repos, a.Clients)

	if cfg.Role.ServesHTTP() {
		a.Server = wireServer(log, cfg, wireHandlers(log, a.Services), wireMiddleware(log, cfg))
	}
	if cfg.Role.RunsWorkers() {
		reg, err := wireRegistry(theDB, log, cfg, a.Repos, a.Clients, a.Services)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Jobs, err = wireJobRunner(log, cfg, a.Repos, a.Clients, reg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init job runner: %w", err)
		}
	}
	return a, nil
}

// Run serves HTTP and consumes jobs, per role, until ctx is done or one of
// them fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil {
		return fmt.Errorf("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)
	if a.Server != nil {
		addr := ":" + a.Cfg.Port
		g.Go(func() error {
			a.Log.Info("HTTP server listening", "addr", addr)
			return a.Server.Run(gctx, addr)
		})
	}
	if a.Jobs != nil {
		g.Go(func() error {
			a.Log.Info("Job runner starting", "queue_backend", a.Cfg.QueueBackend)
			return a.Jobs.Run(gctx)
		})
	}
	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.pg != nil {
		a.pg.Close()
		a.pg = nil
	}
	if a.shutdownOTel != nil {
		if err := a.shutdownOTel(context.Background()); err != nil {
			a.Log.Warn("OpenTelemetry shutdown failed", "error", err)
		}
		a.shutdownOTel = nil
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
