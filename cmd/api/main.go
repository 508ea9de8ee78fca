package main

import (
	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/gateway"
	"app/internal/gateway/afterpay"
	"app/internal/gateway/cod"
	"app/internal/gateway/paypal"
	"app/internal/gateway/stripe"
	"app/internal/handler"
	"app/internal/infra/db"
	infraRepo "app/internal/infra/repository"
	"app/internal/messaging/kafka"
	"app/internal/metrics"
	"app/internal/server"
	"app/internal/usecase"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	//ローカルでは.envを読む（なければ環境変数だけで動く）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	if cfg.GoEnv == "prod" {
		log.SetFormatter(&log.JSONFormatter{})
	}

	//DB接続
	gormDB, err := db.Connect()
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	if err := gormDB.AutoMigrate(
		&model.Order{},
		&model.OrderItem{},
		&model.Payment{},
		&model.Invoice{},
		&model.DeliveryZone{},
		&model.WebhookEvent{},
		&model.StaffUser{},
	); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}

	//Repository（GORM実装）生成
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	orderItemRepo := infraRepo.NewOrderItemGormRepository(gormDB)
	paymentRepo := infraRepo.NewPaymentGormRepository(gormDB)
	zoneRepo := infraRepo.NewDeliveryZoneGormRepository(gormDB)
	staffRepo := infraRepo.NewStaffUserGormRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	//決済ゲートウェイ。資格情報が無いものはモック経路で動く
	registry := gateway.NewRegistry(
		stripe.New(stripe.Config{
			SecretKey:      cfg.StripeSecretKey,
			PublishableKey: cfg.StripePublishableKey,
			WebhookSecret:  cfg.StripeWebhookSecret,
		}, nil),
		paypal.New(paypal.Config{
			ClientID:  cfg.PayPalClientID,
			Secret:    cfg.PayPalSecret,
			WebhookID: cfg.PayPalWebhookID,
		}, nil),
		afterpay.New(afterpay.Config{
			MerchantID: cfg.AfterpayMerchantID,
			SecretKey:  cfg.AfterpaySecretKey,
		}, nil),
		cod.New(cod.Config{
			Enabled:  cfg.CODEnabled,
			MaxTotal: cfg.CODMaxTotal,
		}),
	)

	//イベント発行。ブローカー未設定ならno-op
	var publisher usecase.Publisher = usecase.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to kafka")
		}
		defer producer.Close()
		publisher = producer
	}

	paymentMetrics := metrics.NewPaymentMetrics()

	//Usecase生成
	checkoutUC := usecase.NewCheckoutUsecase(registry, txManager, orderRepo, orderItemRepo, paymentRepo, zoneRepo, publisher, paymentMetrics)
	webhookUC := usecase.NewWebhookUsecase(registry, txManager, paymentRepo, orderRepo, publisher, paymentMetrics)
	adminUC := usecase.NewAdminPaymentUsecase(paymentRepo)
	authUC := usecase.NewAuthUsecase(staffRepo, cfg.JWTSecret)

	//Handler生成とサーバー起動
	e := server.New(cfg, server.Handlers{
		Auth:         handler.NewAuthHandler(authUC),
		Checkout:     handler.NewCheckoutHandler(checkoutUC),
		Webhook:      handler.NewWebhookHandler(webhookUC),
		AdminPayment: handler.NewAdminPaymentHandler(adminUC, checkoutUC),
	}, staffRepo)

	if err := server.Start(e, cfg.Port); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
