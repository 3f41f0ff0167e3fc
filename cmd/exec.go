package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"ticket-pay/config"
	"ticket-pay/handlers"
	"ticket-pay/internal/gateway/tripay"
	"ticket-pay/internal/referral"
	"ticket-pay/internal/store"
	"ticket-pay/monitoring"
	"ticket-pay/security"
	"ticket-pay/services"
	"ticket-pay/utils"

	"github.com/pocketbase/dbx"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	pubnub "github.com/pubnub/go/v7"
	"github.com/redis/go-redis/v9"

	"github.com/pocketbase/pocketbase"

	_ "ticket-pay/migrations"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL)
	defer redisClient.Close()

	// Initialize PubNub (optional; skipped when no keys are configured)
	var publisher services.Publisher
	if cfg.PubNubPublishKey != "" {
		pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.PubNubUserID))
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey

		publisher = services.NewPubNubPublisher(pubnub.NewPubNub(pnConfig))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	st := store.NewPB(app)
	gw := tripay.New(&cfg.Tripay)
	ledger := referral.NewLedger(st, int64(cfg.ReferralLimit))
	notifyService := services.NewNotifyService(redisClient, st, services.LogMailer{}, publisher)
	orderService := services.NewOrderService(st, gw, gw.Signer(), ledger, notifyService)
	webhookService := services.NewWebhookService(st, gw.Signer(), notifyService)

	// Initialize handlers
	paymentHandler := handlers.NewPaymentHandler(orderService, webhookService)
	referralHandler := handlers.NewReferralHandler(ledger)
	eventHandler := handlers.NewEventHandler(st, redisClient)
	limiter := security.NewRateLimiter(redisClient, cfg.RateLimitPerMinute, cfg.RateLimitWindow)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Start background tasks
	go notifyService.Run(ctx)

	if cfg.EnableMetrics {
		go monitoring.Serve(cfg.MetricsPort)
	}

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		syncActiveEventsToRedis(app, redisClient)
		reportPendingBacklog(app)

		// Payment endpoints
		e.Router.POST("/api/v1/payments/create", paymentHandler.Create).BindFunc(limiter.Middleware())
		e.Router.POST("/api/v1/payments/cancel", paymentHandler.Cancel)
		e.Router.GET("/api/v1/payments/status", paymentHandler.Status)
		e.Router.POST("/api/v1/payments/status", paymentHandler.Status)
		e.Router.POST("/api/v1/payments/webhook", paymentHandler.Webhook)

		// Referral endpoints
		e.Router.POST("/api/v1/referrals/validate", referralHandler.Validate)

		// Event endpoints
		e.Router.GET("/api/v1/events/active", eventHandler.Active)
		e.Router.GET("/api/v1/events/{eventId}/availability", eventHandler.Availability)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		setupEventHooks(app, redisClient)

		return e.Next()
	})

	return app.Start()
}

func syncActiveEventsToRedis(app *pocketbase.PocketBase, redisClient *redis.Client) {
	ctx := context.Background()

	var records []dbx.NullStringMap
	if err := app.DB().NewQuery(
		"SELECT id FROM events WHERE status = 'published'",
	).All(&records); err != nil {
		log.Printf("Error fetching active events: %v", err)
		return
	}

	// Rebuild the set from scratch so unpublished events drop out
	redisClient.Del(ctx, "active_events")

	if len(records) > 0 {
		var eventIDs []interface{}
		for _, record := range records {
			if id := record["id"].String; id != "" {
				eventIDs = append(eventIDs, id)
			}
		}

		if len(eventIDs) > 0 {
			redisClient.SAdd(ctx, "active_events", eventIDs...)
			log.Printf("Synced %d active events to Redis", len(eventIDs))
		}
	}
}

// reportPendingBacklog logs how many orders were left mid-payment before the
// restart. Orders stuck pending past their expiry need manual reconciliation
// against the gateway dashboard.
func reportPendingBacklog(app *pocketbase.PocketBase) {
	var counts []dbx.NullStringMap
	if err := app.DB().NewQuery(
		"SELECT status, COUNT(*) AS total FROM orders WHERE status = 'pending' OR notification_status = 'error' GROUP BY status",
	).All(&counts); err != nil {
		log.Printf("Error counting order backlog: %v", err)
		return
	}

	for _, row := range counts {
		slog.Info("order backlog at startup",
			"status", row["status"].String,
			"count", row["total"].String,
		)
	}
}

func setupEventHooks(app *pocketbase.PocketBase, redisClient *redis.Client) {
	// Keep the active_events set in step with admin edits so /events/active
	// stays accurate between restarts.
	app.OnRecordCreateRequest("events").BindFunc(func(e *core.RecordRequestEvent) error {
		ctx := e.Request.Context()

		if e.Record.GetString("status") == "published" {
			if err := redisClient.SAdd(ctx, "active_events", e.Record.Id).Err(); err != nil {
				slog.Error("failed to add active event to Redis", "eventID", e.Record.Id, "error", err)
			}
		}
		return e.Next()
	})

	app.OnRecordUpdateRequest("events").BindFunc(func(e *core.RecordRequestEvent) error {
		ctx := e.Request.Context()

		if e.Record.GetString("status") == "published" {
			if err := redisClient.SAdd(ctx, "active_events", e.Record.Id).Err(); err != nil {
				slog.Error("failed to add active event to Redis", "eventID", e.Record.Id, "error", err)
			}
		} else {
			if err := redisClient.SRem(ctx, "active_events", e.Record.Id).Err(); err != nil {
				slog.Error("failed to remove inactive event from Redis", "eventID", e.Record.Id, "error", err)
			}
		}
		return e.Next()
	})

	app.OnRecordDeleteRequest("events").BindFunc(func(e *core.RecordRequestEvent) error {
		ctx := e.Request.Context()

		if err := redisClient.SRem(ctx, "active_events", e.Record.Id).Err(); err != nil {
			slog.Error("failed to remove deleted event from Redis", "eventID", e.Record.Id, "error", err)
		}
		return e.Next()
	})
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
