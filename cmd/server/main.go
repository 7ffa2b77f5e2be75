// Package main runs the classroom HTTP server: websocket rooms, lesson-fee payments and graceful shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/yare-hub/classroom/config"
	"github.com/yare-hub/classroom/internal/app"
	"github.com/yare-hub/classroom/internal/auth"
	"github.com/yare-hub/classroom/internal/billing"
	"github.com/yare-hub/classroom/internal/emaillogs"
	"github.com/yare-hub/classroom/internal/middleware"
	"github.com/yare-hub/classroom/internal/models"
	"github.com/yare-hub/classroom/internal/realtime"
	"github.com/yare-hub/classroom/pkg/database"
	"github.com/yare-hub/classroom/pkg/logger"
	"github.com/yare-hub/classroom/pkg/redis"
	"github.com/yare-hub/classroom/pkg/response"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output}, "classroom-api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{}, log)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if _, err := database.Migrate(ctx, pool, log); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
	}

	router := newRouter(cfg, pool, rdb, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	var jobs *app.Jobs
	if cfg.Server.RunBackground {
		jobs = app.NewJobs(ctx, cfg, pool, rdb, log)
		jobs.Start(ctx)
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if jobs != nil {
		jobs.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}

func newRouter(cfg *config.Config, pool *pgxpool.Pool, rdb *redis.Client, log *zap.Logger) *gin.Engine {
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Rooms
	var store realtime.Store = realtime.NewMemoryStore()
	var hub *realtime.Hub
	if rdb != nil {
		if cfg.Realtime.PresenceStore == "redis" {
			store = realtime.NewRedisStore(rdb.Client, cfg.Realtime.PresenceTTL)
		}
		pubsub := realtime.NewRedisPubSub(rdb.Client, log)
		hub = realtime.NewHub(log, pubsub, pubsub)
	} else {
		hub = realtime.NewHub(log, nil, nil)
	}
	registry := realtime.NewRegistry(store)
	relay := realtime.NewRelay(registry, hub, log)
	roomHandler := realtime.NewHandler(registry, log)
	iceServers := realtime.ICEServers(cfg.WebRTC.ICEUrls, cfg.WebRTC.TURNUsername, cfg.WebRTC.TURNCredential)
	log.Info("rooms configured", zap.String("presence_store", cfg.Realtime.PresenceStore), zap.Bool("redis_fanout", rdb != nil))

	// Payments
	paystack := billing.NewPaystack(cfg.Paystack.SecretKey, cfg.Paystack.BaseURL, cfg.Paystack.Timeout)
	ledger := billing.NewLedger(billing.NewRepository(pool), paystack, app.NewNotifier(pool, rdb, log), cfg.Server.FrontendURL, cfg.Paystack.Currency, log)
	billingHandler := billing.NewHandler(ledger, log)
	emailLogsHandler := emaillogs.NewHandler(emaillogs.NewRepository(pool))

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(log))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/rtc/ice-servers", realtime.ICEHandler(iceServers))

	// WebSocket (token in query; required only when WS_REQUIRE_AUTH is set)
	router.GET("/ws", realtime.ServeWs(hub, relay, realtime.WSOptions{
		RequireAuth:     cfg.Realtime.WSRequireAuth,
		Validate:        jwtService.ValidateIdentity,
		SendBuffer:      cfg.Realtime.SendBufferSize,
		MaxMessageBytes: cfg.Realtime.MaxMessageBytes,
	}, log))

	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/rooms/:id", middleware.RequireRole(models.RoleAdmin, models.RoleTeacher), roomHandler.GetRoom)

		api.POST("/payments/lesson-fees", middleware.RequireRole(models.RoleParent, models.RoleStudent, models.RoleAdmin), billingHandler.CreateCharge)
		api.GET("/payments/lesson-fees/verify/:reference", billingHandler.VerifyPayment)
		api.GET("/payments/lesson-fees/history/:payerId", billingHandler.History)
		api.GET("/payments/lesson-fees/:reference/emails", middleware.RequireRole(models.RoleAdmin), emailLogsHandler.ListByReference)
		api.GET("/students/:id/subscription", billingHandler.Subscription)
	}
	return router
}
