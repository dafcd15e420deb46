package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/devclassik/harmoney-backend-sub000/internal/config"
	"github.com/devclassik/harmoney-backend-sub000/internal/funding"
	"github.com/devclassik/harmoney-backend-sub000/internal/gateway"
	"github.com/devclassik/harmoney-backend-sub000/internal/identity"
	"github.com/devclassik/harmoney-backend-sub000/internal/ledger"
	"github.com/devclassik/harmoney-backend-sub000/internal/middleware"
	"github.com/devclassik/harmoney-backend-sub000/internal/notification"
	"github.com/devclassik/harmoney-backend-sub000/internal/settlement"
	"github.com/devclassik/harmoney-backend-sub000/internal/store"
	"github.com/devclassik/harmoney-backend-sub000/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes. A nil DB selects the
// in-memory stores.
type Deps struct {
	Cfg        config.Config
	DB         *pgxpool.Pool
	Cache      *redis.Client
	Logger     *slog.Logger
	Gateway    gateway.PaymentGateway
	Dispatcher notification.Dispatcher
}

// Services holds the domain services behind the HTTP surface.
type Services struct {
	Wallets  *wallet.Service
	Identity *identity.Service
	Ledger   ledger.Ledger
	Engine   *settlement.Engine
	Funding  *funding.Service
}

// NewServices builds the domain services over Postgres, or over in-memory stores when
// no database is configured.
func NewServices(d Deps) (*Services, error) {
	if d.Gateway == nil {
		return nil, fmt.Errorf("payment gateway is required")
	}

	var (
		walletStore  wallet.Store
		ledgerStore  ledger.Ledger
		identityRepo identity.Repository
		uow          store.UnitOfWork
	)
	if d.DB != nil {
		walletStore = wallet.NewPostgresStore(d.DB)
		ledgerStore = ledger.NewPostgresLedger(d.DB)
		identityRepo = identity.NewPostgresRepository(d.DB)
		uow = store.NewPostgres(d.DB)
	} else {
		walletStore = wallet.NewMemoryStore()
		ledgerStore = ledger.NewInMemory()
		identityRepo = identity.NewMemoryRepository()
		uow = store.NewMemory(walletStore, ledgerStore)
	}

	walletSvc := wallet.NewService(walletStore, wallet.Defaults{
		Currency: d.Cfg.Wallet.Currency,
		BankCode: d.Cfg.Wallet.BankCode,
		BankName: d.Cfg.Wallet.BankName,
	})
	identitySvc := identity.NewService(identityRepo, walletSvc)

	engine, err := settlement.NewEngine(settlement.Options{
		UnitOfWork: uow,
		Wallets:    walletStore,
		Ledger:     ledgerStore,
		Gateway:    d.Gateway,
		PINs:       identitySvc,
		Timeout:    d.Cfg.Gateway.Timeout,
		Logger:     d.Logger,
	})
	if err != nil {
		return nil, err
	}

	dispatcher := d.Dispatcher
	if dispatcher == nil {
		dispatcher = notification.NewLoggerDispatcher(d.Logger)
	}
	fundingSvc, err := funding.NewService(uow, walletStore, identitySvc, dispatcher, d.Logger)
	if err != nil {
		return nil, err
	}

	return &Services{
		Wallets:  walletSvc,
		Identity: identitySvc,
		Ledger:   ledgerStore,
		Engine:   engine,
		Funding:  fundingSvc,
	}, nil
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps, s *Services) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDev() {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
		}))
	}
	app.Use(middleware.Audit(d.Logger))
	app.Use(cors.New())

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	RegisterWebhookRoutes(app, funding.NewHandler(s.Funding), middleware.WebhookSignature(d.Cfg.WebhookSecret))

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	protected := api.Group("", middleware.JWTAuth(d.Cfg.JWTSecret))
	RegisterIdentityRoutes(protected, identity.NewHandler(s.Identity))
	RegisterWalletRoutes(protected, wallet.NewHandler(s.Wallets))
	RegisterTransactionRoutes(protected, ledger.NewHandler(s.Ledger, s.Wallets))

	guards := []fiber.Handler{middleware.PurchaseRateLimit(d.Cache, d.Cfg.PurchaseRateLimit)}
	if d.Cache != nil {
		guards = append(guards, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterPurchaseRoutes(protected, settlement.NewHandler(s.Engine), guards...)

	return nil
}
