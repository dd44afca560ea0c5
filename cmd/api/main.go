package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/infra/cache"
	"storefront/internal/infra/db"
	"storefront/internal/infra/events"
	"storefront/internal/infra/memstore"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/logger"
	"storefront/internal/payment"
	"storefront/internal/repository"
	"storefront/internal/server"
	"storefront/internal/usecase"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	//.env は無くてもよい（本番は環境変数）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.GoEnv, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//ストア（Postgres or インメモリ）
	tx, userRepo, err := buildStore(ctx, cfg, log)
	if err != nil {
		return err
	}

	//イベント送信
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		rp, err := events.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange, log)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		defer func() { _ = rp.Close() }()
		publisher = rp
	}

	//決済ゲートウェイ
	var gateway payment.Gateway
	if cfg.StripeSecretKey != "" {
		gateway, err = payment.NewStripeGateway(cfg.StripeSecretKey)
		if err != nil {
			return err
		}
	} else {
		log.Warn("STRIPE_SECRET_KEY is empty, using sandbox gateway")
		gateway = payment.NewSandboxGateway()
	}
	verifier := payment.NewSignatureVerifier(cfg.PaymentWebhookSecret)

	//Usecase生成
	clock := usecase.SystemClock{}
	reconciler := usecase.NewReconciler(tx, publisher, clock, log)
	payments := usecase.NewPaymentUsecase(tx, verifier, publisher, clock, log)
	wallets := usecase.NewWalletUsecase(tx, gateway, verifier, publisher, clock, cfg.PaymentCurrency,
		usecase.ReferralPolicy{SignupBonus: cfg.ReferralSignupBonus, Reward: cfg.ReferralReward}, log)
	checkout := usecase.NewCheckoutUsecase(tx, gateway, publisher, clock, usecase.ULIDCodeGenerator{}, cfg.PaymentCurrency, log)

	//Handler生成
	h := server.Handlers{
		Product:    handler.NewProductHandler(usecase.NewProductUsecase(tx, clock)),
		Cart:       handler.NewCartHandler(usecase.NewCartUsecase(tx, clock)),
		Address:    handler.NewAddressHandler(usecase.NewAddressUsecase(tx)),
		Checkout:   handler.NewCheckoutHandler(checkout, usecase.NewCouponUsecase(tx, clock)),
		Payment:    handler.NewPaymentHandler(payments),
		Order:      handler.NewOrderHandler(usecase.NewOrderUsecase(tx), reconciler, payments),
		Wallet:     handler.NewWalletHandler(wallets),
		AdminOrder: handler.NewAdminOrderHandler(usecase.NewAdminOrderUsecase(tx, reconciler, clock, log), reconciler),
		AdminUser:  handler.NewAdminUserHandler(cfg, userRepo, wallets),
	}

	//Server起動
	return server.New(cfg, log, userRepo, h).Start(ctx)
}

func buildStore(ctx context.Context, cfg config.Config, log *zap.Logger) (repository.TransactionManager, repository.UserRepository, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn("using in-memory store with demo data")
		store := memstore.New()
		memstore.SeedDemo(store)
		return store, store.UserRepository(), nil
	}

	//DB接続
	gdb, err := db.Connect(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(gdb); err != nil {
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}

	var opts []infraRepo.TxManagerOption
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		offers := cache.NewCategoryOfferCache(nil, client, cfg.OfferCacheTTL, log)
		opts = append(opts, infraRepo.WithCategoryOfferDecorator(offers.Wrap))
	}

	return infraRepo.NewTxManagerGorm(gdb, opts...), infraRepo.NewUserGormRepository(gdb), nil
}
