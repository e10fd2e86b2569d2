package bootstrap

import (
	"context"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"repairdesk/internal/bootstrap/config"
	"repairdesk/internal/bootstrap/database"
	"repairdesk/internal/bootstrap/logging"
	"repairdesk/internal/errs"
	cacheinfra "repairdesk/internal/infrastructure/cache"
	"repairdesk/internal/infrastructure/catalog"
	"repairdesk/internal/infrastructure/metrics"
	"repairdesk/internal/infrastructure/notify"
	sqliterepo "repairdesk/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "repairdesk/internal/infrastructure/persistence/sqlite/uow"
	"repairdesk/internal/ports"
	"repairdesk/internal/usecase/servicedesk"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(sqliterepo.NewIncidentRepository, fx.As(new(ports.IncidentRepository))),
		fx.Annotate(sqliterepo.NewDiagnosticRepository, fx.As(new(ports.DiagnosticRepository))),
		fx.Annotate(sqliterepo.NewPartsRequestRepository, fx.As(new(ports.PartsRequestRepository))),
		fx.Annotate(sqliterepo.NewChangeRequestRepository, fx.As(new(ports.ChangeRequestRepository))),
		fx.Annotate(sqliterepo.NewRecurrenceVerificationRepository, fx.As(new(ports.RecurrenceVerificationRepository))),
		fx.Annotate(sqliterepo.NewPhotoRepository, fx.As(new(ports.PhotoRepository))),
		fx.Annotate(sqliterepo.NewChangeLogRepository, fx.As(new(ports.ChangeLogRepository))),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(providePartCatalog),
	fx.Provide(provideNotifier),
	fx.Provide(provideMetrics),
	fx.Provide(provideRegisterer),
	fx.Provide(provideService),
	fx.Provide(provideAutoSaver),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func providePartCatalog(cfg config.Config) (ports.PartCatalog, error) {
	parts, err := catalog.Load(cfg.Catalog.File)
	if err != nil {
		return nil, errs.Wrap(err, "load part catalogue")
	}
	return parts, nil
}

func provideNotifier(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (ports.Notifier, error) {
	if !strings.EqualFold(strings.TrimSpace(cfg.Notify.Driver), "redis") {
		return notify.NewLogNotifier(), nil
	}

	notifier, err := notify.NewRedisNotifier(ctx, notify.RedisOptions{
		Addr:     cfg.Notify.RedisAddr,
		Password: cfg.Notify.RedisPassword,
		DB:       cfg.Notify.RedisDB,
		Channel:  cfg.Notify.Channel,
	})
	if err != nil {
		return nil, errs.Wrap(err, "connect redis notifier")
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return notifier.Close()
		},
	})
	return notifier, nil
}

func provideRegisterer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}

func provideMetrics(reg prometheus.Registerer) (ports.Metrics, error) {
	return metrics.New(reg)
}

type serviceParams struct {
	fx.In

	Config         config.Config
	Incidents      ports.IncidentRepository
	Diagnostics    ports.DiagnosticRepository
	PartsRequests  ports.PartsRequestRepository
	ChangeRequests ports.ChangeRequestRepository
	Verifications  ports.RecurrenceVerificationRepository
	Photos         ports.PhotoRepository
	ChangeLog      ports.ChangeLogRepository
	UnitOfWork     ports.UnitOfWork
	Cache          ports.Cache
	Catalog        ports.PartCatalog
	Notifier       ports.Notifier
	Metrics        ports.Metrics
}

func provideService(p serviceParams) (*servicedesk.Service, error) {
	loc, err := p.Config.Engine.Location()
	if err != nil {
		return nil, err
	}
	return servicedesk.NewService(servicedesk.Dependencies{
		Incidents:      p.Incidents,
		Diagnostics:    p.Diagnostics,
		PartsRequests:  p.PartsRequests,
		ChangeRequests: p.ChangeRequests,
		Verifications:  p.Verifications,
		Photos:         p.Photos,
		ChangeLog:      p.ChangeLog,
		UnitOfWork:     p.UnitOfWork,
		Cache:          p.Cache,
		Catalog:        p.Catalog,
		Notifier:       p.Notifier,
		Metrics:        p.Metrics,
	}, servicedesk.WithLocation(loc))
}

func provideAutoSaver(cfg config.Config, svc *servicedesk.Service) *servicedesk.DraftAutoSaver {
	return servicedesk.NewDraftAutoSaver(svc, cfg.Engine.AutosaveInterval)
}
