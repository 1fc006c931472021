package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"

	auth "github.com/orderdesk/go-auth"
	"github.com/orderdesk/go-auth/activitymap"
)

type App struct {
	config   Config
	logger   *glog.BaseLogger
	db       *bun.DB
	redis    *redis.Client
	registry *prometheus.Registry
	auther   *auth.Auther
	srv      router.Server[*fiber.App]
	metrics  *http.Server
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	configPath := flag.String("config", os.Getenv(envPrefix+"CONFIG"), "path to a JSON config file")
	flag.Parse()

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("authd"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		lgr.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	fmt.Println("============")
	fmt.Println(print.MaybeHighlightJSON(cfg.Redacted()))
	fmt.Println("============")

	app := &App{
		config: cfg,
		logger: lgr,
	}

	ctx := context.Background()

	steps := []func(context.Context, *App) error{
		WithPersistence,
		WithCache,
		WithMetrics,
		WithAuthenticator,
		WithHTTPServer,
	}
	for _, step := range steps {
		if err := step(ctx, app); err != nil {
			lgr.Error("startup failed", "error", err)
			app.Close(ctx)
			os.Exit(1)
		}
	}

	go func() {
		if err := app.srv.Serve(cfg.Server.Addr); err != nil {
			lgr.Error("http server stopped", "error", err)
		}
	}()

	if app.metrics != nil {
		go func() {
			if err := app.metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				lgr.Error("metrics server stopped", "error", err)
			}
		}()
	}

	sig := WaitExitSignal()
	lgr.Info("shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := app.srv.Shutdown(shutdownCtx); err != nil {
		lgr.Error("http server shutdown", "error", err)
	}
	app.Close(shutdownCtx)
}

func WithPersistence(ctx context.Context, app *App) error {
	dbCfg := app.config.Database

	var (
		driverName = sqliteshim.ShimName
		dialect    schema.Dialect
	)
	switch dbCfg.Driver {
	case "postgres":
		driverName = "pgx"
		dialect = pgdialect.New()
	default:
		dialect = sqlitedialect.New()
	}

	sqldb, err := sql.Open(driverName, dbCfg.GetDSN())
	if err != nil {
		return err
	}
	if dbCfg.Driver != "postgres" {
		sqldb.SetMaxOpenConns(1)
	}

	persistence.RegisterModel((*auth.Account)(nil))

	client, err := persistence.New(dbCfg, sqldb, dialect)
	if err != nil {
		_ = sqldb.Close()
		return goerrors.Wrap(err, goerrors.CategoryInternal, "database unreachable")
	}
	client.SetLogger(app.GetLogger("persistence"))

	migrationsFS, err := fs.Sub(auth.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return err
	}
	client.RegisterDialectMigrations(
		migrationsFS,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)
	if err := client.ValidateDialects(ctx); err != nil {
		return err
	}

	if err := client.Migrate(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to migrate accounts schema")
	}

	if report := client.Report(); report != nil && !report.IsZero() {
		app.GetLogger("persistence").Info("migrations applied", "report", report.String())
	}

	app.db = client.DB()
	return nil
}

func WithCache(ctx context.Context, app *App) error {
	rcfg := app.config.Redis
	if !rcfg.Enabled() {
		app.GetLogger("cache").Info("redis not configured, account cache disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     rcfg.Addr,
		Password: rcfg.Password,
		DB:       rcfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return goerrors.Wrap(err, goerrors.CategoryInternal, "redis unreachable")
	}

	app.redis = client
	return nil
}

func WithMetrics(_ context.Context, app *App) error {
	mcfg := app.config.Metrics
	if !mcfg.Enabled {
		return nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.registry = reg

	mux := http.NewServeMux()
	mux.Handle(mcfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	app.metrics = &http.Server{
		Addr:              mcfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return nil
}

func WithAuthenticator(_ context.Context, app *App) error {
	repo := auth.NewAccountsRepository(app.db)

	auther := auth.NewAuthenticator(repo, app.config.Auth).
		WithLogger(app.GetLogger("auth")).
		WithClaimsDecorator(auth.RoleClaimsDecorator{}).
		WithActivitySink(activityLogger(app.GetLogger("activity")))

	if app.registry != nil {
		metrics, err := auth.NewPrometheusMetrics(app.registry)
		if err != nil {
			return err
		}
		auther.WithMetrics(metrics)
	}

	if app.redis != nil {
		resolver := auth.NewCachedAccountResolver(repo, app.redis, app.config.Redis.CacheTTL).
			WithLogger(app.GetLogger("cache"))
		auther.WithResolver(resolver)
	}

	app.auther = auther
	return nil
}

func WithHTTPServer(_ context.Context, app *App) error {
	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:          true,
			StrictRouting:         false,
			DisableStartupMessage: true,
			ReadTimeout:           10 * time.Second,
			WriteTimeout:          10 * time.Second,
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	httpAuth, err := auth.NewHTTPAuthenticator(app.auther, app.config.Auth)
	if err != nil {
		return err
	}
	httpAuth.WithLogger(app.GetLogger("http"))

	auth.RegisterAuthRoutes(srv.Router(),
		auth.WithAuthenticator(app.auther),
		auth.WithRouteAuthenticator(httpAuth),
		auth.WithControllerLogger(app.GetLogger("controller")),
		auth.WithContextKey(app.config.Auth.GetContextKey()),
		auth.WithErrorHandler(httpAuth.ErrorHandler),
	)

	srv.Router().Get("/healthz", func(ctx router.Context) error {
		return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	app.srv = srv
	return nil
}

func (a *App) Close(ctx context.Context) {
	if a.metrics != nil {
		_ = a.metrics.Shutdown(ctx)
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func activityLogger(logger glog.Logger) auth.ActivitySink {
	return auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
		record := activitymap.Normalize(event)
		logger.Info("auth activity",
			"actor_id", record.ActorID,
			"verb", record.Verb,
			"object_id", record.ObjectID,
			"occurred_at", record.OccurredAt,
			"metadata", print.MaybePrettyJSON(record.Metadata),
		)
		return nil
	})
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
