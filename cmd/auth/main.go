package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/auth_center/internal/config"
	"github.com/Skotchmaster/auth_center/internal/db"
	"github.com/Skotchmaster/auth_center/internal/dispatch"
	"github.com/Skotchmaster/auth_center/internal/events"
	"github.com/Skotchmaster/auth_center/internal/grant"
	"github.com/Skotchmaster/auth_center/internal/httpserver"
	"github.com/Skotchmaster/auth_center/internal/identity"
	"github.com/Skotchmaster/auth_center/internal/logging"
	"github.com/Skotchmaster/auth_center/internal/randcode"
	"github.com/Skotchmaster/auth_center/internal/repo"
	"github.com/Skotchmaster/auth_center/internal/service"
	"github.com/Skotchmaster/auth_center/internal/verification"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	initCtx = logging.IntoContext(initCtx, logger)

	dsn := cfg.SQLitePath
	if cfg.DBDriver == "postgres" {
		dsn = cfg.DatabaseURL
	}
	gdb, err := db.Open(initCtx, db.Options{Driver: cfg.DBDriver, DSN: dsn, AutoMigrate: cfg.DBAutoMigrate})
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer db.Close(gdb)
	store := repo.New(gdb)

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		if rdb, err = verification.NewRedisClient(initCtx, cfg.RedisURL); err != nil {
			log.Fatalf("redis init error: %v", err)
		}
		defer rdb.Close()
	}

	dispatcher, closeDispatcher := newDispatcher(cfg, logger)
	defer closeDispatcher()

	var publisher events.Publisher = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		producer := events.NewProducer(cfg.KafkaBrokers)
		defer producer.Close()
		publisher = producer
	}

	engine := grant.NewEngine(store, grant.Config{
		Secret:               cfg.SigningKey(),
		AccessTokenTTL:       cfg.AccessTokenTTL,
		RefreshTokenTTL:      cfg.RefreshTokenTTL,
		AuthorizationCodeTTL: cfg.AuthorizationCodeTTL,
	})
	linker := identity.NewLinker(store)

	newCore := func(surface string, p service.Policy) *service.Core {
		return &service.Core{
			Engine:     engine,
			Codes:      newCodeRegistry(cfg, rdb, surface),
			Dispatcher: dispatcher,
			Linker:     linker,
			Store:      store,
			Events:     publisher,
			UserTopic:  cfg.KafkaUserTopic,
			Policy:     p,
			Dev:        !cfg.Production(),
		}
	}
	app := service.NewApp(newCore("app", service.AppPolicy))
	admin := service.NewAdmin(newCore("admin", service.AdminPolicy))

	if err := service.Bootstrap(initCtx, store, linker, service.BootstrapConfig{
		ClientID:     cfg.BootstrapAdminClientID,
		ClientSecret: cfg.BootstrapAdminClientSecret,
		Email:        cfg.BootstrapAdminEmail,
		Password:     cfg.BootstrapAdminPassword,
	}); err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.HTTPErrorHandler = httpserver.ErrorHandler
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), httpserver.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		Auth:  httpserver.NewAuthHTTP(app),
		Admin: httpserver.NewAdminHTTP(admin),
		Clients: &httpserver.ClientsHTTP{Registry: &service.ClientRegistry{
			Store:        store,
			Events:       publisher,
			Topic:        cfg.KafkaClientTopic,
			SecretLength: cfg.ClientSecretLength,
		}},
		AppGuard:  httpserver.NewGuard(app),
		AdmGuard:  httpserver.NewGuard(admin),
		Ready:     func(ctx context.Context) error { return db.Ping(ctx, gdb) },
		TestClean: !cfg.Production(),
	})

	runCtx, stopRun := context.WithCancel(logging.IntoContext(context.Background(), logger))
	defer stopRun()
	go sweepExpired(runCtx, store, cfg.TokenSweepInterval)

	go func() {
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	stopRun()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo_shutdown_failed", "error", err)
	}
}

// newCodeRegistry gives each surface its own pending codes. With redis the
// surfaces share a database under different key prefixes.
func newCodeRegistry(cfg *config.Config, rdb *redis.Client, surface string) *verification.Registry {
	var st verification.Store = verification.NewMemoryStore()
	if rdb != nil {
		st = verification.NewRedisStore(rdb, "auth_center:code:"+surface)
	}
	return verification.NewRegistry(st, randcode.Generator{Length: cfg.VerificationCodeLength},
		verification.WithTTL(cfg.VerificationCodeTTL),
		verification.WithGrace(cfg.VerificationGrace),
	)
}

func newDispatcher(cfg *config.Config, logger *slog.Logger) (dispatch.CodeDispatcher, func()) {
	if cfg.AMQPURL == "" {
		if cfg.Production() {
			logger.Warn("amqp_not_configured", "hint", "verification codes are only logged")
		}
		return dispatch.LogDispatcher{Logger: logger}, func() {}
	}
	d, err := dispatch.DialAMQP(cfg.AMQPURL, cfg.AMQPMailQueue, cfg.AMQPSMSQueue)
	if err != nil {
		log.Fatalf("amqp init error: %v", err)
	}
	return d, func() {
		if err := d.Close(); err != nil {
			logger.Error("amqp_close_failed", "error", err)
		}
	}
}

type expiredSweeper interface {
	DeleteExpired(ctx context.Context, now time.Time) (tokens, codes int64, err error)
}

func sweepExpired(ctx context.Context, s expiredSweeper, every time.Duration) {
	if every <= 0 {
		return
	}
	l := logging.FromContext(ctx).With("svc", "sweep.expired")
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			tokens, codes, err := s.DeleteExpired(ctx, now.UTC())
			if err != nil {
				l.Error("sweep_failed", "error", err)
				continue
			}
			if tokens > 0 || codes > 0 {
				l.Info("sweep_done", "tokens", tokens, "codes", codes)
			}
		}
	}
}
