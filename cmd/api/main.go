package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"shop/internal/config"
	"shop/internal/handler"
	"shop/internal/infra/db"
	"shop/internal/infra/momo"
	"shop/internal/infra/notify"
	infraRepo "shop/internal/infra/repository"
	"shop/internal/metrics"
	"shop/internal/server"
	"shop/internal/usecase"
	"shop/internal/validator"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
)

func main() {
	// .env is optional; real environments inject variables directly
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("could not read .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.WithError(err).Fatal("shop api stopped with error")
	}
	log.Info("shop api stopped")
}

func run(ctx context.Context, cfg config.Config) error {
	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	// repositories
	txManager := infraRepo.NewTxManagerGorm(gormDB)
	txlog := infraRepo.NewPaymentTransactionGormRepository(gormDB)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	orderMetrics := metrics.NewOrderMetrics(reg)

	momoClient := momo.NewClient(cfg.MoMo, log.WithField("component", "momo"))
	if !momoClient.Configured() {
		log.Warn("MoMo credentials missing; redirect payments are disabled")
	}

	notifier, closeNotifier, err := newNotifier(cfg)
	if err != nil {
		return err
	}
	defer closeNotifier()

	gateway := usecase.NewPaymentGateway(momoClient, txlog, orderMetrics, log.WithField("component", "payment_gateway"))
	orderUC := usecase.NewOrderUsecase(
		txManager,
		txlog,
		gateway,
		notifier,
		validator.NewOrderValidator(cfg.MinOrderAmount),
		orderMetrics,
		log.WithField("component", "order"),
	)
	reconciler := usecase.NewCallbackReconciler(
		momoClient,
		txlog,
		txManager,
		notifier,
		orderMetrics,
		log.WithField("component", "callback"),
	)

	orderH := handler.NewOrderHandler(orderUC, reconciler)

	e := server.New(log.WithField("component", "http"), reg, orderH)
	return server.Start(ctx, e, ":"+cfg.Port, log.WithField("component", "http"))
}

// newNotifier picks Kafka when brokers are configured, the log otherwise.
func newNotifier(cfg config.Config) (usecase.Notifier, func(), error) {
	if !cfg.Kafka.Enabled() {
		return notify.NewLogNotifier(log.WithField("component", "invoice")), func() {}, nil
	}

	kn, err := notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.InvoiceTopic, log.WithField("component", "invoice-kafka"))
	if err != nil {
		return nil, nil, err
	}
	log.WithFields(log.Fields{
		"brokers": cfg.Kafka.Brokers,
		"topic":   cfg.Kafka.InvoiceTopic,
	}).Info("invoice requests go to kafka")

	return kn, func() {
		if err := kn.Close(); err != nil {
			log.WithError(err).Warn("close kafka notifier")
		}
	}, nil
}

func setupLogger(cfg config.Config) {
	if cfg.GoEnv == "prod" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("unknown LOG_LEVEL, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
