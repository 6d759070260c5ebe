package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/dialpay/dial_pay/internal/chain"
	"github.com/dialpay/dial_pay/internal/config"
	"github.com/dialpay/dial_pay/internal/history"
	"github.com/dialpay/dial_pay/internal/middleware"
	"github.com/dialpay/dial_pay/internal/notify"
	"github.com/dialpay/dial_pay/internal/phonehash"
	"github.com/dialpay/dial_pay/internal/record"
	"github.com/dialpay/dial_pay/internal/registry"
	"github.com/dialpay/dial_pay/internal/settlement"
	"github.com/dialpay/dial_pay/internal/transfer"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !isDev(d.Cfg.AppEnv) && d.Cfg.NodeRPCURL == "" && d.DB == nil {
		return fmt.Errorf("a node endpoint or database is required when APP_ENV=%s", d.Cfg.AppEnv)
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	// Backend selection: a node endpoint serves both capabilities; without
	// one the ledger is simulated in process and the keyed store is Postgres
	// when configured, otherwise the same simulation.
	sim := chain.NewSim(d.Cfg.EngineOwner)
	sim.ProvisionSchema(d.Cfg.RegistrationSchema)
	sim.ProvisionSchema(d.Cfg.TransferSchema)

	var (
		store       chain.Store  = sim
		ledger      chain.Ledger = sim
		engineOwner              = sim.Signer()
	)
	switch {
	case d.Cfg.NodeRPCURL != "":
		rpc := chain.NewRPCClient(d.Cfg.NodeRPCURL, d.Cfg.EngineOwner)
		store, ledger = rpc, rpc
		engineOwner = d.Cfg.EngineOwner
	case d.DB != nil:
		pg := chain.NewPostgresStore(d.DB, d.Cfg.EngineOwner)
		if err := pg.EnsureSchema(context.Background(), d.Cfg.RegistrationSchema); err != nil {
			return err
		}
		if err := pg.EnsureSchema(context.Background(), d.Cfg.TransferSchema); err != nil {
			return err
		}
		store = pg
		if d.Cfg.EngineOwner != "" {
			engineOwner = d.Cfg.EngineOwner
		}
	}

	owners := d.Cfg.RegistryOwners
	if len(owners) == 0 {
		owners = []string{engineOwner}
	}

	hasher := phonehash.NewHasher(d.Cfg.DefaultCountryCode)
	cache := registry.NewCache(d.Cache, d.Cfg.ResolutionCacheTTL)
	resolver := registry.NewResolver(store, d.Cfg.RegistrationSchema, owners, cache, d.Logger)
	executor := settlement.NewExecutor(ledger, d.Cfg.NativeToken, d.Cfg.ConfirmTimeout, d.Logger)
	recorder := record.NewRecorder(store, d.Cfg.TransferSchema, d.Logger)
	notifier := notify.NewNotifier(ledger, d.Logger, notify.WithMaxAttempts(d.Cfg.NotifyMaxAttempts))
	aggregator := history.NewAggregator(store, ledger, resolver, d.Cfg.TransferSchema, engineOwner, d.Logger)

	transferSvc := transfer.NewService(hasher, resolver, executor, recorder, notifier, d.Logger)
	transferHandler := transfer.NewHandler(transferSvc)
	historyHandler := history.NewHandler(aggregator)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	api.Post("/transfers", transferHandler.Send)
	api.Get("/history/:ref", historyHandler.Query)

	// Enrollment is an external flow in production; a local seeding route is
	// exposed only against the in-memory store so the engine can be exercised
	// end to end without a node.
	if d.Cfg.NodeRPCURL == "" && d.DB == nil && isDev(d.Cfg.AppEnv) {
		RegisterDevRegistrationRoute(api, sim, hasher, d.Cfg.RegistrationSchema)
	}

	return nil
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}
