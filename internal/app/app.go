// Package app wires the service's components together and runs them as
// one unit: the HTTP API, the billing consumer, and the user-verification
// gRPC listener start with the process and stop in dependency order on
// shutdown.
package app

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/subflow/subscription-service/internal/auth"
	"github.com/subflow/subscription-service/internal/breaker"
	"github.com/subflow/subscription-service/internal/client"
	"github.com/subflow/subscription-service/internal/config"
	"github.com/subflow/subscription-service/internal/database"
	"github.com/subflow/subscription-service/internal/handler"
	"github.com/subflow/subscription-service/internal/queue"
	"github.com/subflow/subscription-service/internal/repository"
	"github.com/subflow/subscription-service/internal/router"
	"github.com/subflow/subscription-service/internal/rpc"
)

// App owns the long-running pieces of the service.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	echo     *echo.Echo
	grpcSrv  *grpc.Server
	consumer *queue.Consumer
}

// New builds the full component graph.  Nothing starts running until
// Start is called.
func New(cfg config.Config, db *sql.DB, rdb *redis.Client, logger *zap.Logger) *App {
	users := repository.NewUserRepo(db)
	billing := repository.NewBillingRepo(db)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.AccessTTL)

	// The billing API is the one dependency across a network boundary
	// other than the primary datastore, so it gets the breaker.
	brk := breaker.New("billing-api", breaker.Config{
		FailMax:      cfg.BreakerFailMax,
		ResetTimeout: cfg.BreakerResetTimeout,
		ShouldTrip:   client.IsFailure,
	}, logger)
	api := client.New(cfg.BillingAPIURL, brk, logger)

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e)
	router.RegisterAuth(e,
		handler.NewAuthHandler(cfg, users, tokens),
		handler.NewSubscriptionHandler(users, billing, api),
		tokens, cfg.RateLimit, rdb)

	return &App{
		cfg:      cfg,
		logger:   logger,
		echo:     e,
		grpcSrv:  rpc.NewServer(users, logger),
		consumer: queue.NewConsumer(cfg.RabbitMQURL, cfg.BillingQueue, cfg.ConsumerBackoff, billing, logger),
	}
}

// Start initializes the schema, launches the billing consumer, and brings
// up the gRPC and HTTP listeners.  It returns once everything is running;
// listener failures after that point are fatal and logged as such.
func (a *App) Start(ctx context.Context, db *sql.DB) error {
	if err := database.InitSchema(ctx, db); err != nil {
		return err
	}

	a.consumer.Start()

	grpcLis, err := net.Listen("tcp", ":"+a.cfg.GRPCPort)
	if err != nil {
		return err
	}
	go func() {
		a.logger.Info("verification rpc listening", zap.String("addr", grpcLis.Addr().String()))
		if err := a.grpcSrv.Serve(grpcLis); err != nil {
			a.logger.Fatal("grpc server failed", zap.Error(err))
		}
	}()

	go func() {
		a.logger.Info("http api listening", zap.String("port", a.cfg.Port), zap.String("env", a.cfg.Env))
		if err := a.echo.Start(":" + a.cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	return nil
}

// Shutdown stops the components in dependency order: first the HTTP
// surface so no new work arrives, then the consumer (waiting for it to
// settle), then the gRPC listener.  Producers of new work stop before the
// storage layer they depend on goes away with the process.
func (a *App) Shutdown(ctx context.Context) {
	if err := a.echo.Shutdown(ctx); err != nil {
		a.logger.Warn("http shutdown", zap.Error(err))
	}

	if err := a.consumer.Stop(ctx); err != nil {
		a.logger.Warn("billing consumer did not settle", zap.Error(err))
	}

	stopped := make(chan struct{})
	go func() {
		a.grpcSrv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		a.grpcSrv.Stop()
	}

	a.logger.Info("shutdown complete")
}
