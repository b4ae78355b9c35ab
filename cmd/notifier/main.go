package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/rabbitmq"
	"github.com/wb-go/wbf/redis"
	"github.com/wb-go/wbf/zlog"

	devicehandler "github.com/bangbuy/notification-service/internal/api/handlers/device"
	notifyhandler "github.com/bangbuy/notification-service/internal/api/handlers/notify"
	sweephandler "github.com/bangbuy/notification-service/internal/api/handlers/sweep"
	"github.com/bangbuy/notification-service/internal/api/router"
	"github.com/bangbuy/notification-service/internal/api/server"
	"github.com/bangbuy/notification-service/internal/config"
	immediatemsg "github.com/bangbuy/notification-service/internal/rabbitmq/handlers/immediate"
	"github.com/bangbuy/notification-service/internal/rabbitmq/queue"
	deduperepo "github.com/bangbuy/notification-service/internal/repository/dedupe"
	devicerepo "github.com/bangbuy/notification-service/internal/repository/device"
	digestrepo "github.com/bangbuy/notification-service/internal/repository/digest"
	jobrepo "github.com/bangbuy/notification-service/internal/repository/job"
	recipientrepo "github.com/bangbuy/notification-service/internal/repository/recipient"
	deliverysvc "github.com/bangbuy/notification-service/internal/service/delivery"
	digestsvc "github.com/bangbuy/notification-service/internal/service/digest"
	ingestsvc "github.com/bangbuy/notification-service/internal/service/ingest"
	"github.com/bangbuy/notification-service/internal/worker"
	"github.com/bangbuy/notification-service/pkg/email"
	"github.com/bangbuy/notification-service/pkg/push"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zlog.Init()
	cfg := config.Must()
	val := validator.New()

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL(), cfg.RabbitMQ.Retries, cfg.RabbitMQ.Pause)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}

	ch, err := conn.Channel()
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to open channel")
	}

	q, err := queue.NewImmediateQueue(ch, cfg)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to create immediate queue")
	}

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))
	for _, s := range cfg.Database.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}

	db, err := dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	jobs := jobrepo.NewRepository(db)
	entries := digestrepo.NewRepository(db)
	dedupe := deduperepo.NewRepository(db)
	prefs := recipientrepo.NewRepository(db)
	devices := devicerepo.NewRepository(db)

	dbNum, err := strconv.Atoi(cfg.Redis.Database)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to parse redis database")
	}

	rdb := redis.New(cfg.Redis.Address, cfg.Redis.Password, dbNum)

	if err = rdb.Ping(ctx).Err(); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to redis")
	}

	smtpPort, err := strconv.Atoi(cfg.Email.SMTPPort)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to parse email smtp port")
	}

	emailClient := email.NewClient(
		cfg.Email.SMTPHost,
		smtpPort,
		cfg.Email.Username,
		cfg.Email.Password,
		cfg.Email.From,
	)
	pushClient := push.NewClient(cfg.Push.URL)

	aggregator := digestsvc.NewService(entries, jobs, cfg.Sweep.InitialDelay)
	ingest := ingestsvc.NewService(dedupe, aggregator, q, prefs)
	delivery := deliverysvc.NewService(jobs, prefs, emailClient, rdb, cfg.Sweep.BatchSize, cfg.Sweep.MaxAttempts, cfg.Sweep.Backoff)

	notifyHandler := notifyhandler.NewHandler(ingest, aggregator, delivery, val, cfg)
	sweepHandler := sweephandler.NewHandler(delivery, cfg)
	deviceHandler := devicehandler.NewHandler(devices, val)
	messageHandler := immediatemsg.NewHandler(prefs, devices, emailClient, pushClient)

	dispatcher := worker.NewDispatcher(q, messageHandler)
	sweeper := worker.NewSweeper(delivery, cfg.Sweep.Interval)

	go dispatcher.Run(ctx, cfg.Retry, cfg.Workers.Count)
	go sweeper.Run(ctx, cfg.Retry)

	r := router.New(notifyHandler, sweepHandler, deviceHandler)
	s := server.New(cfg.Server.HTTPPort, r)

	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}

	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	if err := db.Master.Close(); err != nil {
		zlog.Logger.Printf("failed to close master DB: %v", err)
	}

	for i, slave := range db.Slaves {
		if err := slave.Close(); err != nil {
			zlog.Logger.Printf("failed to close slave DB %d: %v", i, err)
		}
	}

	if err := ch.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close RabbitMQ channel")
	}

	if err := conn.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close RabbitMQ connection")
	}
}
