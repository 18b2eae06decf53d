package main // Entry point package

import (
	"context"
	"errors"
	"log" // Logging library
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/labstack/echo/v4"                   // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // request logging and panic recovery
	glog "github.com/labstack/gommon/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/iliyamo/museum-tour-access/internal/config" // Internal config loader
	"github.com/iliyamo/museum-tour-access/internal/database"
	"github.com/iliyamo/museum-tour-access/internal/entitlement"
	"github.com/iliyamo/museum-tour-access/internal/handler"
	"github.com/iliyamo/museum-tour-access/internal/middleware"
	"github.com/iliyamo/museum-tour-access/internal/obs"
	"github.com/iliyamo/museum-tour-access/internal/payment"
	"github.com/iliyamo/museum-tour-access/internal/queue"
	"github.com/iliyamo/museum-tour-access/internal/repository"
	"github.com/iliyamo/museum-tour-access/internal/router" // Internal router setup
	"github.com/iliyamo/museum-tour-access/internal/service"
)

const serviceName = "museum-tour-access"

func main() {
	config.LoadDotEnv()
	cfg := config.Load() // Load environment config
	payCfg, err := config.LoadPaymentConfig()
	if err != nil {
		log.Fatalf("payment config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, serviceName, cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("tracer: %v", err)
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	rdb := config.NewRedisClient() // nil when Redis is disabled or unreachable

	// ---- Storage ----
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db, clock.WallClock)
	museums := repository.NewMuseumRepo(db)
	bundles := repository.NewBundleRepo(db)
	purchases := repository.NewPurchaseRepo(db)
	catalog := repository.NewCachedCatalog(museums, bundles, cfg.CatalogCacheTTL)

	// ---- Entitlements ----
	resolver := entitlement.NewResolver(purchases)
	recorder := entitlement.NewRecorder(purchases, catalog)

	// ---- Payments ----
	gateway, err := payment.NewOmiseGateway(payCfg.OmisePublicKey, payCfg.OmiseSecretKey)
	if err != nil {
		log.Fatalf("payment gateway: %v", err)
	}
	var publisher service.EventPublisher
	if pub, err := queue.NewPublisher(payCfg.RabbitURL, clock.WallClock); err != nil {
		log.Printf("purchase events disabled: %v", err)
	} else {
		defer pub.Close()
		publisher = pub
	}
	checkout := service.NewCheckout(catalog, gateway, recorder, publisher, clock.WallClock, payCfg.Currency)

	if payCfg.ConsumerOn {
		go func() {
			if err := queue.StartPurchaseConsumer(ctx, payCfg.RabbitURL, payCfg.PurchaseLogDir); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("purchase-consumer: stopped: %v", err)
			}
		}()
	}

	// ---- HTTP ----
	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Logger.SetLevel(parseLevel(cfg.LogLevel))
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	e.Use(otelecho.Middleware(serviceName))

	paymentHandler := handler.NewPaymentHandler(checkout)
	catalogCache := middleware.NewCatalogCache(config.LoadCacheConfig(), rdb)
	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens, clock.WallClock), cfg.JWTSecret)
	router.RegisterPublic(e, handler.NewCatalogHandler(museums, bundles), paymentHandler,
		catalogCache.Middleware())
	router.RegisterCustomer(e, router.CustomerHandlers{
		Access:    handler.NewAccessHandler(resolver, museums, clock.WallClock),
		Payment:   paymentHandler,
		Analytics: handler.NewAnalyticsHandler(users, purchases, resolver, museums, clock.WallClock),
	}, cfg.JWTSecret, middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	router.RegisterAdmin(e, handler.NewAdminHandler(museums, bundles, catalogCache), cfg.JWTSecret)

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) { // Start HTTP server
			log.Fatal(err) // Log and exit if server fails
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := shutdownTracer(sctx); err != nil {
		log.Printf("tracer shutdown: %v", err)
	}
}

// parseLevel maps LOG_LEVEL onto the echo logger levels.
func parseLevel(s string) glog.Lvl {
	switch strings.ToLower(s) {
	case "debug":
		return glog.DEBUG
	case "warn":
		return glog.WARN
	case "error":
		return glog.ERROR
	case "off":
		return glog.OFF
	}
	return glog.INFO
}
