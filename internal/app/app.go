// Package app wires configuration, storage, queue, worker and HTTP transport
// into one runnable inbox service.
package app

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	inbox "github.com/goliatone/go-inbox"
	"github.com/goliatone/go-inbox/adapters/gocommand"
	"github.com/goliatone/go-inbox/adapters/gojob"
	"github.com/goliatone/go-inbox/adapters/gologger"
	"github.com/goliatone/go-inbox/adapters/goredis"
	"github.com/goliatone/go-inbox/adapters/kafka"
	"github.com/goliatone/go-inbox/core"
	"github.com/goliatone/go-inbox/httpapi"
	"github.com/goliatone/go-inbox/ingest"
	"github.com/goliatone/go-inbox/store/memory"
	sqlstore "github.com/goliatone/go-inbox/store/sql"
	"github.com/goliatone/go-inbox/worker"
	"github.com/goliatone/go-job/queue"
	sqlqueue "github.com/goliatone/go-job/queue/adapters/postgres"
	glog "github.com/goliatone/go-logger/glog"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const DefaultShutdownTimeout = 15 * time.Second

// App owns every long-lived collaborator of the service.
type App struct {
	cfg            core.Config
	logger         core.Logger
	loggerProvider core.LoggerProvider
	metrics        core.MetricsRecorder
	publisher      core.EventPublisher

	store    core.MessageStore
	reader   core.MessageReader
	sqlDB    *sql.DB
	ingestor *ingest.Ingestor
	facade   *inbox.Facade
	commands *gocommand.RegistryAdapter

	enqueuer core.JobEnqueuer
	dequeuer queue.Dequeuer
	sqlQueue *gojob.Queue
	runner   *worker.Runner
	router   *gin.Engine

	closeOnce sync.Once
	closers   []func() error
}

type Option func(*App)

// WithLogger replaces the zap logger built from config.
func WithLogger(logger core.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(a *App) {
		a.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(a *App) {
		if recorder != nil {
			a.metrics = recorder
		}
	}
}

// WithStore bypasses the configured database driver.
func WithStore(store core.MessageStore) Option {
	return func(a *App) {
		a.store = store
	}
}

// WithPublisher bypasses the configured publish driver.
func WithPublisher(publisher core.EventPublisher) Option {
	return func(a *App) {
		a.publisher = publisher
	}
}

// WithQueue bypasses the configured queue driver.
func WithQueue(enqueuer core.JobEnqueuer, dequeuer queue.Dequeuer) Option {
	return func(a *App) {
		a.enqueuer = enqueuer
		a.dequeuer = dequeuer
	}
}

// New builds the service from cfg. Close releases what it opened, also when
// New fails half way.
func New(ctx context.Context, cfg core.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, core.NewBadInputError(err.Error())
	}
	a := &App{cfg: cfg, metrics: core.NopMetricsRecorder{}}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	if err := a.build(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	if err := a.buildLogger(); err != nil {
		return err
	}
	if err := a.buildStore(ctx); err != nil {
		return err
	}
	if err := a.buildPublisher(); err != nil {
		return err
	}
	if err := a.buildQueue(ctx); err != nil {
		return err
	}

	policy, err := core.ParseStatusPolicy(a.cfg.Ingest.StatusPolicy)
	if err != nil {
		return core.NewBadInputError(err.Error())
	}
	a.ingestor, err = ingest.New(a.store,
		ingest.WithPublisher(a.publisher),
		ingest.WithLoggerProvider(a.loggerProvider),
		ingest.WithLogger(a.logger),
		ingest.WithMetricsRecorder(a.metrics),
		ingest.WithStatusPolicy(policy),
		ingest.WithDefaultOutboundType(a.cfg.Ingest.DefaultOutboundType),
	)
	if err != nil {
		return err
	}

	a.facade, err = inbox.NewFacade(a.store, a.ingestor,
		inbox.WithEnqueuer(a.enqueuer),
		inbox.WithReader(a.reader),
	)
	if err != nil {
		return err
	}
	a.commands = gocommand.NewRegistryAdapter(nil)
	a.closers = append(a.closers, func() error {
		a.commands.Close()
		return nil
	})
	if err := a.facade.Register(a.commands); err != nil {
		return err
	}

	_, workerLogger := gologger.Resolve("inbox.worker", a.loggerProvider, a.logger)
	a.runner, err = worker.NewRunner(a.dequeuer, worker.IngestHandler(a.ingestor),
		worker.WithPolicy(worker.PolicyFromConfig(a.cfg.Queue)),
		worker.WithLoggerProvider(a.loggerProvider),
		worker.WithLogger(a.logger),
		worker.WithHooks(worker.NewObserver(workerLogger, a.metrics)),
	)
	if err != nil {
		return err
	}

	queries := a.facade.Queries()
	a.router = httpapi.NewRouter(httpapi.Dependencies{
		AcceptWebhook:          a.facade.Commands().AcceptWebhook,
		GetMessage:             queries.GetMessage,
		GetMessageByProviderID: queries.GetMessageByProviderID,
		ListMessages:           queries.ListMessages,
		LoggerProvider:         a.loggerProvider,
		Logger:                 a.logger,
		Metrics:                a.metrics,
		MaxBodyBytes:           int64(a.cfg.HTTP.MaxBodyBytes),
	})
	return nil
}

func (a *App) buildLogger() error {
	if a.logger == nil && a.loggerProvider == nil {
		zapLogger, err := gologger.NewZapLogger(gologger.ZapConfig{
			Level:  a.cfg.Log.Level,
			Format: a.cfg.Log.Format,
		})
		if err != nil {
			return core.NewBadInputError("app: build logger: " + err.Error())
		}
		a.closers = append(a.closers, func() error {
			_ = zapLogger.Sync()
			return nil
		})
		a.loggerProvider = zapLogger
	}
	provider, logger := gologger.Resolve(a.cfg.ServiceName, a.loggerProvider, a.logger)
	a.loggerProvider = provider
	a.logger = glog.Ensure(logger)
	return nil
}

func (a *App) buildStore(ctx context.Context) error {
	if a.store == nil {
		switch a.cfg.Database.Driver {
		case core.DatabaseDriverMemory:
			a.store = memory.NewStore()
		default:
			client, err := sqlstore.Open(ctx, a.cfg.Database)
			if err != nil {
				return err
			}
			a.closers = append(a.closers, client.Close)
			a.sqlDB = client.DB().DB
			if err := client.Migrate(ctx); err != nil {
				return core.WrapStorageError(err, "app: migrate database")
			}
			factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
			if err != nil {
				return err
			}
			a.store = factory.MessageStore()
		}
	}
	if a.cfg.Cache.Enabled {
		config := repositorycache.DefaultConfig()
		if ttl := a.cfg.Cache.TTL(); ttl > 0 {
			config.TTL = ttl
		}
		cacheService, err := repositorycache.NewCacheService(config)
		if err != nil {
			return core.NewInternalError("app: build cache: " + err.Error())
		}
		cached, err := sqlstore.NewCachedMessageStore(a.store, cacheService)
		if err != nil {
			return err
		}
		a.store = cached
	}
	a.reader = a.store
	return nil
}

func (a *App) buildPublisher() error {
	if a.publisher != nil {
		return nil
	}
	switch a.cfg.Publish.Driver {
	case core.PublishDriverKafka:
		publisher, err := kafka.NewPublisher(a.cfg.Publish.Brokers, a.cfg.Publish.Topic)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, publisher.Close)
		a.publisher = publisher
	default:
		a.publisher = core.NopEventPublisher{}
	}
	return nil
}

func (a *App) buildQueue(ctx context.Context) error {
	if a.enqueuer != nil && a.dequeuer != nil {
		return nil
	}
	switch a.cfg.Queue.Driver {
	case core.QueueDriverRedis:
		client, err := goredis.Dial(ctx, a.cfg.Queue.RedisAddr)
		if err != nil {
			return core.WrapStorageError(err, "app: connect redis")
		}
		a.closers = append(a.closers, client.Close)
		q, err := goredis.NewQueue(client, a.cfg.Queue.Name)
		if err != nil {
			return err
		}
		a.enqueuer = gojob.NewEnqueuerAdapter(q)
		a.dequeuer = q
	case core.QueueDriverDatabase:
		if a.sqlDB == nil {
			return core.NewBadInputError("app: queue.driver database needs a sql database driver")
		}
		dialect := sqlqueue.DialectPostgres
		if a.cfg.Database.Driver == core.DatabaseDriverSQLite {
			dialect = sqlqueue.DialectSQLite
		}
		q, err := gojob.NewSQLQueue(ctx, a.sqlDB, dialect, a.cfg.Queue.Name)
		if err != nil {
			return core.WrapStorageError(err, "app: prepare queue tables")
		}
		a.sqlQueue = q
		a.enqueuer = gojob.NewEnqueuerAdapter(q)
		a.dequeuer = q
	default:
		q, err := gojob.NewMemoryQueue(ctx, a.cfg.Queue.Name)
		if err != nil {
			return core.WrapStorageError(err, "app: open memory queue")
		}
		a.closers = append(a.closers, q.Close)
		a.sqlQueue = q
		a.enqueuer = gojob.NewEnqueuerAdapter(q)
		a.dequeuer = q
	}
	return nil
}

func (a *App) Config() core.Config                  { return a.cfg }
func (a *App) Logger() core.Logger                  { return a.logger }
func (a *App) Store() core.MessageStore             { return a.store }
func (a *App) Facade() *inbox.Facade                { return a.facade }
func (a *App) Runner() *worker.Runner               { return a.runner }
func (a *App) Router() *gin.Engine                  { return a.router }
func (a *App) Enqueuer() core.JobEnqueuer           { return a.enqueuer }
func (a *App) Commands() *gocommand.RegistryAdapter { return a.commands }

// PendingJobs counts queued deliveries not yet settled.
func (a *App) PendingJobs(ctx context.Context) (int, error) {
	if a.sqlQueue == nil {
		return 0, errQueueNotInspectable()
	}
	return a.sqlQueue.Pending(ctx)
}

// DeadLetters lists deliveries that exhausted their attempts.
func (a *App) DeadLetters(ctx context.Context) ([]gojob.DeadLetter, error) {
	if a.sqlQueue == nil {
		return nil, errQueueNotInspectable()
	}
	return a.sqlQueue.DeadLetters(ctx)
}

func errQueueNotInspectable() error {
	return core.NewBadInputError("app: queue inspection needs the memory or database queue driver")
}

// Run serves HTTP and consumes the queue until ctx is done, then drains both.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	server := httpapi.NewServer(a.cfg.HTTP.Address, a.router, a.logger)
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := a.runner.Run(ctx); err != nil {
			errs <- err
		}
	}()
	go func() {
		defer wg.Done()
		if err := server.ListenAndServe(); err != nil {
			errs <- err
			cancel()
		}
	}()

	<-ctx.Done()
	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), DefaultShutdownTimeout)
	defer stop()
	shutdownErr := server.Shutdown(shutdownCtx)
	wg.Wait()
	close(errs)

	var runErr error
	for err := range errs {
		runErr = errors.Join(runErr, err)
	}
	return errors.Join(runErr, shutdownErr)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var closeErr error
	a.closeOnce.Do(func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				closeErr = errors.Join(closeErr, err)
			}
		}
		a.closers = nil
	})
	return closeErr
}
