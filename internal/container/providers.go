package container

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/garyjia/approval-bridge/internal/application/dispatcher"
	"github.com/garyjia/approval-bridge/internal/application/port"
	"github.com/garyjia/approval-bridge/internal/application/render"
	"github.com/garyjia/approval-bridge/internal/application/service"
	"github.com/garyjia/approval-bridge/internal/domain/event"
	"github.com/garyjia/approval-bridge/internal/infrastructure/cache"
	"github.com/garyjia/approval-bridge/internal/infrastructure/export"
	"github.com/garyjia/approval-bridge/internal/infrastructure/external/engine"
	infraLark "github.com/garyjia/approval-bridge/internal/infrastructure/external/lark"
	"github.com/garyjia/approval-bridge/internal/infrastructure/metrics"
	"github.com/garyjia/approval-bridge/internal/infrastructure/persistence/repository"
	"github.com/garyjia/approval-bridge/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/approval-bridge/internal/infrastructure/storage"
	"github.com/garyjia/approval-bridge/internal/infrastructure/token"
	"github.com/garyjia/approval-bridge/internal/infrastructure/worker"
	"github.com/garyjia/approval-bridge/migrations"
	"github.com/garyjia/approval-bridge/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
	ProcMsgs       port.ProcMsgRepository
}

// LarkBundle holds all Lark-related components.
type LarkBundle struct {
	Client    *infraLark.SDKClient
	Chat      port.ChatClient
	Directory port.UserDirectory
}

// ArchiveBundle holds the archive store and, for local disk, its sweeper.
type ArchiveBundle struct {
	Store   port.ArchiveStore
	Sweeper worker.Sweeper
}

// ProvideDatabase opens the database and applies the embedded migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	applied, err := database.NewMigrator(db, logger).Run(migrations.FS)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("Migrations applied", zap.Int("count", applied))

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
		ProcMsgs:       repository.NewProcMsgRepository(db.DB, logger),
	}, nil
}

// ProvideMetrics registers the service collectors on reg.
func ProvideMetrics(reg prometheus.Registerer) *metrics.Metrics {
	return metrics.New(reg)
}

// ProvideGateway creates the process engine client.
func ProvideGateway(cfg *EngineConfig, m *metrics.Metrics, logger *zap.Logger) (*engine.Client, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, fmt.Errorf("engine base URL is required")
	}
	return engine.NewClient(engine.Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	}, m, logger), nil
}

// ProvideRedis connects to Redis, or returns nil when it is not configured.
func ProvideRedis(ctx context.Context, cfg *RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	if cfg == nil || !cfg.Enabled() {
		logger.Info("Redis not configured, backlog signals and profile cache disabled")
		return nil, nil
	}
	client, err := cache.NewClient(ctx, cache.Config{
		Address:  cfg.Address,
		Password: cfg.Password,
		Database: cfg.Database,
		PoolSize: cfg.PoolSize,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Redis connected", zap.String("address", cfg.Address))
	return client, nil
}

// ProvideLarkClients creates the Lark SDK client, the user directory and the
// chat client. The directory is cached in Redis when rdb is set.
func ProvideLarkClients(cfg *LarkConfig, rdb *redis.Client, profileCfg *RedisConfig, logger *zap.Logger) (*LarkBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lark config is required")
	}
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, fmt.Errorf("lark app credentials are required")
	}

	sdk := infraLark.NewSDKClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
	}, logger)

	bots := append([]string{cfg.BotUserID}, cfg.BotUserIDs...)
	var directory port.UserDirectory = infraLark.NewDirectory(sdk, bots, logger)
	if rdb != nil {
		directory = cache.NewCachedDirectory(directory, rdb, profileCfg.ProfileTTL, logger)
	}

	return &LarkBundle{
		Client:    sdk,
		Chat:      infraLark.NewChatClient(sdk, directory, logger),
		Directory: directory,
	}, nil
}

// ProvideArchive creates the configured archive store.
func ProvideArchive(ctx context.Context, cfg *ArchiveConfig, logger *zap.Logger) (*ArchiveBundle, error) {
	switch cfg.Kind {
	case ArchiveS3:
		store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:   cfg.S3Bucket,
			Prefix:   cfg.S3Prefix,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
		}, logger)
		if err != nil {
			return nil, err
		}
		return &ArchiveBundle{Store: store}, nil
	default:
		store, err := storage.NewLocalStore(cfg.LocalDir, logger)
		if err != nil {
			return nil, err
		}
		return &ArchiveBundle{Store: store, Sweeper: store}, nil
	}
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(&dispatcherLoggerAdapter{logger: logger}),
	)
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Gateway    port.WorkflowGateway
	Lark       *LarkBundle
	ProcMsgs   port.ProcMsgRepository
	Archive    *ArchiveBundle
	Dispatcher dispatcher.Dispatcher
	Dispatch   *DispatchConfig
	LarkCfg    *LarkConfig
	TxManager  port.TransactionManager
	Export     *ExportConfig
	Token      *TokenConfig
	Logger     *zap.Logger
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Workflow     service.WorkflowService
	Export       service.ExportService
	Notification service.NotificationService
}

func notificationOptions(deps *ServiceDeps) []service.NotificationOption {
	if deps.TxManager == nil {
		return nil
	}
	return []service.NotificationOption{service.WithTransactions(deps.TxManager)}
}

// ProvideServices creates the application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("workflow gateway is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}

	catalog, err := render.LoadCatalog(deps.Dispatch.TemplatesPath)
	if err != nil {
		return nil, err
	}

	issuer, err := token.NewJWTIssuer(deps.Token.Secret)
	if err != nil {
		return nil, err
	}

	notifications := service.NewNotificationService(
		deps.Lark.Chat,
		deps.Lark.Directory,
		deps.ProcMsgs,
		catalog,
		deps.Dispatcher,
		service.NotificationConfig{
			BotUserID:  deps.LarkCfg.BotUserID,
			BotUserIDs: deps.LarkCfg.BotUserIDs,
			Workers:    deps.Dispatch.Workers,
		},
		serviceLogger,
		notificationOptions(deps)...,
	)

	return &ServiceBundle{
		Workflow: service.NewWorkflowService(
			deps.Gateway,
			notifications,
			deps.Lark.Directory,
			serviceLogger,
		),
		Export: service.NewExportService(
			deps.Gateway,
			deps.Lark.Directory,
			export.NewExcelWriter(deps.Logger),
			export.NewZipPackager(),
			deps.Archive.Store,
			issuer,
			service.ExportConfig{
				WorkDir:  deps.Export.WorkDir,
				TokenTTL: deps.Export.TokenTTL,
				Workers:  deps.Export.Workers,
			},
			serviceLogger,
		),
		Notification: notifications,
	}, nil
}

// SubscribeHandlers wires event handlers onto the dispatcher.
func SubscribeHandlers(d dispatcher.Dispatcher, gateway port.WorkflowGateway, publisher port.BacklogPublisher, m *metrics.Metrics) {
	d.Subscribe(event.TypeBacklogChanged, "backlog_publisher", service.NewBacklogHandler(gateway, publisher))
	d.Subscribe(event.TypeDispatchCompleted, "dispatch_metrics", m.DispatchHandler())
}

// ProvideWorkers creates the worker manager with the workers this
// configuration needs.
func ProvideWorkers(archive *ArchiveBundle, cfg *ExportConfig, logger *zap.Logger) *worker.WorkerManager {
	manager := worker.NewWorkerManager(logger)
	if archive.Sweeper != nil {
		manager.Register(worker.NewArchiveCleanupWorker(worker.CleanupWorkerConfig{
			Interval:  cfg.CleanupInterval,
			Retention: cfg.Retention,
		}, archive.Sweeper, logger))
	}
	return manager
}
