package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/cinema-projection-booking/internal/config"
	"github.com/iliyamo/cinema-projection-booking/internal/database"
	"github.com/iliyamo/cinema-projection-booking/internal/handler"
	"github.com/iliyamo/cinema-projection-booking/internal/lock"
	"github.com/iliyamo/cinema-projection-booking/internal/middleware"
	"github.com/iliyamo/cinema-projection-booking/internal/payment"
	"github.com/iliyamo/cinema-projection-booking/internal/queue"
	"github.com/iliyamo/cinema-projection-booking/internal/repository"
	"github.com/iliyamo/cinema-projection-booking/internal/router"
	"github.com/iliyamo/cinema-projection-booking/internal/service"
	"github.com/iliyamo/cinema-projection-booking/internal/utils"
)

func main() {
	cfg := config.Load()
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.WithError(err).Fatal("schema migration failed")
	}

	rdb := config.NewRedisClient(log)
	var locker lock.Locker = lock.NewLocal()
	if rdb != nil {
		defer rdb.Close()
		locker = lock.NewRedis(rdb, "lock", cfg.Booking.LockTTL, log)
	}

	seats := repository.NewSeatRepo(db)
	auditoriums := repository.NewAuditoriumRepo(db)
	projections := repository.NewProjectionRepo(db)
	tickets := repository.NewTicketRepo(db)
	users := repository.NewUserRepo(db)
	loyalty := repository.NewLoyaltyRepo(db)

	now := time.Now
	scheduler := service.NewProjectionScheduler(projections, auditoriums, tickets, locker,
		cfg.Booking.ProjectionWindow, cfg.DBTimeout, log.WithField("component", "scheduler"))
	engine := service.NewSeatReservationEngine(
		service.NewSeatDirectory(seats, cfg.DBTimeout),
		scheduler, tickets, users, locker, now, cfg.DBTimeout,
		log.WithField("component", "reservations"))
	ledger := service.NewLoyaltyLedger(loyalty, tickets, cfg.Booking.PointsPerTicket, cfg.DBTimeout,
		log.WithField("component", "loyalty"))
	publisher := queue.NewPublisher(cfg.RabbitMQURL, cfg.RabbitMQDial, log.WithField("component", "publisher"))
	orchestrator := service.NewReservationOrchestrator(
		payment.NewStub(cfg.Booking.PaymentAlwaysApprove, log.WithField("component", "payment")),
		engine, ledger, publisher, now, log.WithField("component", "purchase"))

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(requestLogger(log))

	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log.WithField("component", "ratelimit"))
	decoy, err := utils.DecoyHash(cfg.BcryptCost)
	if err != nil {
		log.WithError(err).Fatal("decoy hash")
	}
	router.RegisterRoutes(e)
	router.RegisterAuth(e, &handler.AuthHandler{
		Users:     users,
		JWTSecret: cfg.JWTSecret,
		AccessTTL: time.Duration(cfg.AccessTTLMin) * time.Minute,
		DBTimeout: cfg.DBTimeout,
		DecoyHash: decoy,
		Now:       now,
		Log:       log,
	})
	router.RegisterProjections(e, handler.NewProjectionHandler(scheduler, engine, log), cfg.JWTSecret, limit)
	router.RegisterTickets(e, handler.NewTicketHandler(orchestrator, engine, log), cfg.JWTSecret, limit)

	consumer := &queue.LoyaltyConsumer{
		URL:        cfg.RabbitMQURL,
		Crediter:   ledger,
		Log:        log.WithField("component", "loyalty-consumer"),
		RetryDelay: cfg.Booking.LoyaltyRetryDelay,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		log.WithField("addr", addr).WithField("env", cfg.Env).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(sctx)
	})
	g.Go(func() error {
		return consumer.Run(ctx)
	})
	g.Go(func() error {
		return reconcileLoop(ctx, ledger, cfg.Booking, log)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
	log.Info("shutdown complete")
}

// reconcileLoop credits tickets that missed their loyalty credit, once at
// startup and then every ReconcileInterval.
func reconcileLoop(ctx context.Context, ledger *service.LoyaltyLedger, cfg config.BookingConfig, log logrus.FieldLogger) error {
	t := time.NewTicker(cfg.ReconcileInterval)
	defer t.Stop()
	for {
		if _, err := ledger.Reconcile(ctx, cfg.ReconcileBatch); err != nil && ctx.Err() == nil {
			log.WithError(err).Warn("loyalty reconcile failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

func newLogger(cfg config.Config) *logrus.Logger {
	log := logrus.New()
	if cfg.Env != "dev" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

func requestLogger(log logrus.FieldLogger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v echomw.RequestLoggerValues) error {
			entry := log.WithFields(logrus.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	})
}
