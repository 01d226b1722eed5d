package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/firmdesk/firmdesk-backend/internal/db"
	"github.com/firmdesk/firmdesk-backend/internal/handlers"
	"github.com/firmdesk/firmdesk-backend/internal/middleware"
	"github.com/firmdesk/firmdesk-backend/internal/observability"
	"github.com/firmdesk/firmdesk-backend/internal/platform/logger"
	"github.com/firmdesk/firmdesk-backend/internal/realtime"
	"github.com/firmdesk/firmdesk-backend/internal/realtime/bus"
	"github.com/firmdesk/firmdesk-backend/internal/repos"
	"github.com/firmdesk/firmdesk-backend/internal/server"
	"github.com/firmdesk/firmdesk-backend/internal/services"
	"github.com/firmdesk/firmdesk-backend/internal/utils"
)

func main() {
	_ = godotenv.Load()

	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	port := utils.GetEnv("PORT", "8080", log)
	allowedOrigins := strings.Split(utils.GetEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000", log), ",")
	eventLogSize := utils.GetEnvAsInt("REALTIME_EVENT_LOG_SIZE", 100, log)
	redisAddr := utils.GetEnv("REDIS_ADDR", "", log)
	autoMigrate := utils.GetEnvAsBool("POSTGRES_AUTO_MIGRATE", true, log)
	shutdownTimeout := utils.GetEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second, log)

	// Tracing
	ctx := context.Background()
	if shutdownTracing := observability.InitTracing(ctx, log, observability.Config{
		ServiceName: "firmdesk-backend",
		Environment: utils.GetEnv("APP_ENV", "development", log),
		Version:     utils.GetEnv("APP_VERSION", "dev", log),
	}); shutdownTracing != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				log.Warn("otel shutdown failed", "error", err)
			}
		}()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if autoMigrate {
		if err := postgresService.AutoMigrateAll(); err != nil {
			log.Warn("Postgres auto migration failed", "error", err)
		}
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	activityRepo := repos.NewActivityRepo(thePG, log)
	notificationRepo := repos.NewNotificationRepo(thePG, log)

	// Realtime
	log.Info("Setting up realtime bus and emitter from main...")
	emitter := realtime.NewServerEventEmitter(log)
	eventLog := realtime.NewEventLog(eventLogSize)

	var eventBus bus.Bus
	if redisAddr != "" {
		redisBus, err := bus.NewRedisBus(log, bus.RedisConfig{
			Addr:     redisAddr,
			Password: utils.GetEnv("REDIS_PASSWORD", "", log),
			DB:       utils.GetEnvAsInt("REDIS_DB", 0, log),
			Channel:  utils.GetEnv("REDIS_REALTIME_CHANNEL", "firmdesk:realtime", log),
		})
		if err != nil {
			log.Error("Redis bus init failed", "error", err)
			os.Exit(1)
		}
		eventBus = redisBus
	} else {
		log.Info("REDIS_ADDR not set, using in-process bus")
		eventBus = bus.NewLocalBus(log)
	}
	defer eventBus.Close()

	// Services
	log.Info("Setting up Services from main...")
	busCtx, cancelBus := context.WithCancel(ctx)
	defer cancelBus()
	realtimeService := services.NewRealtimeService(log, eventBus, emitter, eventLog)
	if err := realtimeService.Start(busCtx); err != nil {
		log.Error("Could not start RealtimeService", "error", err)
		os.Exit(1)
	}
	activityNotifier := services.NewActivityNotifier(log, thePG, activityRepo, realtimeService)
	notificationNotifier := services.NewNotificationNotifier(log, thePG, notificationRepo, realtimeService)

	// Handlers
	log.Info("Setting up handlers from main...")
	realtimeHandler := handlers.NewRealtimeHandler(log, realtimeService)
	activityHandler := handlers.NewActivityHandler(log, activityRepo, activityNotifier)
	notificationHandler := handlers.NewNotificationHandler(log, notificationRepo, notificationNotifier)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, jwtSecretKey)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		Mode:                logMode,
		AllowedOrigins:      allowedOrigins,
		Auth:                authMiddleware,
		RealtimeHandler:     realtimeHandler,
		ActivityHandler:     activityHandler,
		NotificationHandler: notificationHandler,
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
		// Streaming endpoints hold connections open; no write timeout.
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		log.Info("Server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server failed", "error", err)
		os.Exit(1)
	}
	log.Info("Server stopped")
}
