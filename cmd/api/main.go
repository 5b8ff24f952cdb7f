package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ayflow350/Ice-empire/internal/config"
	"github.com/Ayflow350/Ice-empire/internal/handler"
	"github.com/Ayflow350/Ice-empire/internal/infra/db"
	"github.com/Ayflow350/Ice-empire/internal/infra/notifier"
	"github.com/Ayflow350/Ice-empire/internal/infra/paystack"
	infraRepo "github.com/Ayflow350/Ice-empire/internal/infra/repository"
	"github.com/Ayflow350/Ice-empire/internal/server"
	"github.com/Ayflow350/Ice-empire/internal/usecase"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const notifyTimeout = 10 * time.Second

func main() {
	log := logrus.New()

	app := &cli.App{
		Name:  "api",
		Usage: "storefront payment API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "dotenv file to load if present"},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "start the HTTP server",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "migrate", Usage: "run auto migration before serving"},
				},
				Action: func(c *cli.Context) error {
					return serve(c, log)
				},
			},
			{
				Name:  "migrate",
				Usage: "create or update tables",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c, log)
					if err != nil {
						return err
					}
					gdb, err := db.Connect(cfg.DB)
					if err != nil {
						return err
					}
					if err := db.Migrate(gdb); err != nil {
						return err
					}
					log.Info("migration done")
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("exit")
	}
}

func loadConfig(c *cli.Context, log *logrus.Logger) (config.Config, error) {
	cfg, err := config.Load(c.String("env-file"))
	if err != nil {
		return config.Config{}, err
	}

	lvl, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	if cfg.IsProd() {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return cfg, nil
}

func serve(c *cli.Context, log *logrus.Logger) error {
	cfg, err := loadConfig(c, log)
	if err != nil {
		return err
	}

	//DB接続
	gdb, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if c.Bool("migrate") {
		if err := db.Migrate(gdb); err != nil {
			return err
		}
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	//Repository（GORM実装）
	orderRepo := infraRepo.NewOrderGormRepository(gdb, cfg.ReferencePrefix)
	productRepo := infraRepo.NewProductGormRepository(gdb)
	auditRepo := infraRepo.NewAuditLogGormRepository(gdb)
	txm := infraRepo.NewTxManagerGorm(gdb, cfg.ReferencePrefix)

	//通知（AMQP_URL未設定ならログだけ）
	var sender notifier.Sender = notifier.NewLogNotifier(log)
	if cfg.AMQPURL != "" {
		pub, err := notifier.NewAMQPPublisher(cfg.AMQPURL, cfg.NotifyExchange, log)
		if err != nil {
			return err
		}
		defer pub.Close()
		sender = pub
	}
	notify := notifier.NewAsync(sender, notifyTimeout, log)
	defer notify.Wait()

	//決済ゲートウェイ
	client := paystack.NewClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey, cfg.GatewayTimeout)
	gateway := usecase.NewGatewayAdapter(client, orderRepo, usecase.GatewayAdapterConfig{
		SecretKey:   cfg.PaystackSecretKey,
		CallbackURL: cfg.SiteURL + "/checkout",
		Channels:    cfg.Channels,
	})

	//Usecase
	settle := usecase.NewSettlement(txm, notify, log, cfg.LowStockThreshold)
	paymentUC := usecase.NewPaymentUsecase(txm, orderRepo, gateway, settle, usecase.PaymentConfig{
		Currency:        cfg.Currency,
		ShippingFee:     cfg.ShippingFee,
		RecomputeAmount: cfg.RecomputeAmount,
	}, log)
	webhookUC := usecase.NewWebhookUsecase(gateway, orderRepo, settle, log)
	adminOrderUC := usecase.NewAdminOrderUsecase(txm, orderRepo, auditRepo)
	productUC := usecase.NewProductUsecase(productRepo)

	//Handler
	e := server.New(cfg, log, server.Handlers{
		Payment:    handler.NewPaymentHandler(paymentUC),
		Webhook:    handler.NewWebhookHandler(webhookUC),
		AdminOrder: handler.NewAdminOrderHandler(adminOrderUC),
		Product:    handler.NewProductHandler(productUC),
		Health:     handler.NewHealthHandler(sqlDB),
	})

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Run(ctx, e, ":"+cfg.Port, log)
}
