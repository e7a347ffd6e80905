package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticket-reconcile/config"
	"ticket-reconcile/internal/handlers"
	"ticket-reconcile/internal/services"
	"ticket-reconcile/internal/services/backend"
	"ticket-reconcile/internal/store"
	"ticket-reconcile/models"
	"ticket-reconcile/monitoring"
	"ticket-reconcile/security"
	"ticket-reconcile/utils"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"
	"github.com/redis/go-redis/v9"
)

// deps is the wired service graph shared by the HTTP routes and the CLI commands.
type deps struct {
	cfg     *config.Config
	redis   *redis.Client
	breaker *utils.CircuitBreaker
	client  *backend.Client
	monitor *monitoring.Monitor

	view       *services.TicketView
	purchase   *services.PurchaseService
	reconciler *services.Reconciler
	actions    *services.ManualActions
	sessions   *services.SessionResolver
}

func buildDeps(cfg *config.Config) (*deps, error) {
	d := &deps{cfg: cfg}

	d.breaker = utils.NewCircuitBreaker("ticketing-backend").
		WithSettings(uint32(cfg.BreakerMaxRequests), cfg.BreakerFailureRatio, cfg.BreakerTimeout)
	d.client = backend.NewClient(cfg.BackendURL, cfg.BackendTimeout, d.breaker)

	var (
		ticketCache  services.Cache[[]models.Ticket]
		profileCache services.Cache[models.User]
		locker       services.Locker
	)
	if cfg.UseRedis() {
		redisClient, err := utils.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		d.redis = redisClient
		ticketCache = store.NewRedisCache[[]models.Ticket](redisClient, "tickets:mine:", cfg.TicketViewTTL)
		profileCache = store.NewRedisCache[models.User](redisClient, "profile:", cfg.ProfileCacheTTL)
		locker = store.NewRedisLocker(redisClient, cfg.OperationLockTTL)
	} else {
		log.Println("Using in-memory ticket view and locks")
		ticketCache = store.NewMemoryCache[[]models.Ticket](cfg.TicketViewTTL)
		profileCache = store.NewMemoryCache[models.User](cfg.ProfileCacheTTL)
		locker = store.NewMemoryLocker()
	}

	var notifier services.Notifier = services.NoopNotifier{}
	if cfg.PubNubPublishKey != "" {
		pnConfig := pubnub.NewConfig()
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey

		notifier = services.NewPubNubNotifier(pubnub.NewPubNub(pnConfig))
	}

	d.monitor = monitoring.NewMonitor(d.redis, d.breaker)
	d.view = services.NewTicketView(d.client, ticketCache)
	d.sessions = services.NewSessionResolver(d.client, profileCache)
	d.client.OnUnauthorized(d.sessions.Forget)

	d.purchase = services.NewPurchaseService(d.client, d.client, d.view, locker, d.monitor)
	d.reconciler = services.NewReconciler(d.client, d.view, locker, notifier, d.monitor, services.ReconcilerConfig{
		PollInterval: cfg.PollInterval,
		MaxAttempts:  cfg.PollMaxAttempts,
		SuccessDelay: cfg.SuccessSettleDelay,
		PendingDelay: cfg.PendingSettleDelay,
		FailureDelay: cfg.FailureSettleDelay,
	})
	d.actions = services.NewManualActions(d.client, d.client, d.view, d.purchase, locker, d.monitor)

	return d, nil
}

func (d *deps) Close() {
	if d.redis != nil {
		d.redis.Close()
	}
}

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	d, err := buildDeps(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	go handleShutdown(cancel)

	d.monitor.Start(ctx, 30*time.Second)
	if cfg.EnableMetrics {
		go serveMetrics(ctx, cfg.MetricsPort)
	}

	registerTicketCommands(app, d)

	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		registerRoutes(se, d)
		log.Println("Server routes registered")
		return se.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

func registerRoutes(se *core.ServeEvent, d *deps) {
	sessions := handlers.NewSessionMiddleware(d.sessions)
	paymentHandler := handlers.NewPaymentHandler(d.client, d.purchase, d.reconciler)
	ticketHandler := handlers.NewTicketHandler(d.view, d.actions)

	api := se.Router.Group("/api/v1")
	api.BindFunc(sessions.RequireSession)

	// Ticket list
	api.GET("/my-tickets", ticketHandler.MyTickets)

	actions := api.Group("")
	if d.redis != nil {
		limiter := security.NewRateLimiter(d.redis, d.cfg.RateLimitPerMinute, handlers.CallerKey)
		actions.BindFunc(limiter.Limit)
	}

	// Purchase and return path
	actions.POST("/events/{eventId}/purchase", paymentHandler.Purchase).BindFunc(security.AntiBot)
	actions.GET("/payments/callback", paymentHandler.PaymentCallback)

	// Manual reconciliation
	actions.POST("/tickets/{ticketId}/verify", ticketHandler.VerifyPayment)
	actions.POST("/tickets/{ticketId}/retry", ticketHandler.RetryPayment)
	actions.POST("/tickets/{ticketId}/cancel", ticketHandler.CancelTicket)

	// Health check
	se.Router.GET("/health", func(e *core.RequestEvent) error {
		body := map[string]string{
			"status":  "healthy",
			"backend": d.breaker.State().String(),
		}
		if d.redis != nil {
			if err := utils.RedisHealthCheck(d.redis); err != nil {
				body["status"] = "unhealthy"
				body["error"] = err.Error()
				return e.JSON(http.StatusServiceUnavailable, body)
			}
		}
		return e.JSON(http.StatusOK, body)
	})
}

func serveMetrics(ctx context.Context, port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Metrics listening on :%s", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("metrics server: %v", err)
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
