package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sitebrief-backend-go/internal/api"
	"sitebrief-backend-go/internal/config"
	"sitebrief-backend-go/internal/core"
	"sitebrief-backend-go/internal/db"
	"sitebrief-backend-go/internal/maps"
	"sitebrief-backend-go/internal/middleware"
	"sitebrief-backend-go/pkg/cache"
	"sitebrief-backend-go/pkg/mailer"
	"sitebrief-backend-go/pkg/messagequeue"
)

func main() {
	// --- 1. Initialize Logger (Zap) ---
	zapLogger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync()
	zapLogger.Info("Zap logger initialized successfully.")

	// --- 2. Load Application Configuration ---
	appConfig, err := config.LoadConfig()
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to load application configuration", zap.Error(err))
	}
	zapLogger.Info("Application configuration loaded successfully.")

	// --- 3. Initialize Firebase Admin SDK (Firestore and Auth clients) ---
	initCtx, cancelInitCtx := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelInitCtx()
	if err := db.InitFirestore(initCtx, appConfig); err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize Firestore and Firebase Admin SDK", zap.Error(err))
	}
	zapLogger.Info("Firebase Admin SDK (Firestore, Auth) initialized successfully.")

	firestoreClient := db.GetFirestoreClient()
	firebaseAuthClient := db.GetFirebaseAuthClient()
	if firestoreClient == nil {
		zapLogger.Fatal("CRITICAL_ERROR: Firestore client is nil after initialization. Application cannot start.")
	}
	if firebaseAuthClient == nil {
		zapLogger.Fatal("CRITICAL_ERROR: Firebase Auth client is nil after initialization. Application cannot start.")
	}

	// --- 4. Initialize optional infrastructure (Redis, RabbitMQ, SMTP) ---
	// Each of these degrades a feature when absent instead of blocking startup.
	var redisCache cache.Cache
	if appConfig.RedisAddr != "" {
		redisCache, err = cache.NewRedisCache(cache.NewRedisCacheConfig{
			Address:  appConfig.RedisAddr,
			Password: appConfig.RedisPassword,
			DB:       appConfig.RedisDB,
		})
		if err != nil {
			zapLogger.Warn("Redis unavailable, maps link expansion will not be cached", zap.Error(err))
			redisCache = nil
		}
	} else {
		zapLogger.Info("REDIS_ADDR not set, maps link expansion cache disabled.")
	}

	var queue messagequeue.MessageQueue
	if appConfig.AMQPURL != "" {
		queue, err = messagequeue.NewRabbitMQService(messagequeue.NewRabbitMQServiceConfig{URL: appConfig.AMQPURL})
		if err != nil {
			zapLogger.Warn("RabbitMQ unavailable, brief generation disabled", zap.Error(err))
			queue = nil
		}
	} else {
		zapLogger.Info("AMQP_URL not set, brief generation disabled.")
	}

	var inviteMailer core.Mailer
	if appConfig.SMTPHost != "" {
		smtpMailer, mailErr := mailer.NewSMTPMailer(mailer.NewSMTPMailerConfig{
			Host:     appConfig.SMTPHost,
			Port:     appConfig.SMTPPort,
			Username: appConfig.SMTPUser,
			Password: appConfig.SMTPPass,
			From:     appConfig.InviteFromAddress,
		})
		if mailErr != nil {
			zapLogger.Warn("Mailer misconfigured, invite emails disabled", zap.Error(mailErr))
		} else {
			inviteMailer = smtpMailer
		}
	} else {
		zapLogger.Info("SMTP_HOST not set, invite emails disabled.")
	}

	// --- 5. Initialize Repositories ---
	userRepo := db.NewFirestoreUserRepository(firestoreClient)
	promptRepo := db.NewFirestorePromptRepository(firestoreClient)
	sessionRepo := db.NewFirestoreSessionRepository(firestoreClient)
	lockRepo := db.NewFirestoreLockRepository(firestoreClient)
	editRepo := db.NewFirestoreEditRepository(firestoreClient)
	inviteRepo := db.NewFirestoreInviteRepository(firestoreClient)
	zapLogger.Info("Repositories initialized successfully.")

	// --- 6. Initialize maps link expander ---
	var expander maps.LinkExpander = maps.NewHTTPExpander(nil)
	if redisCache != nil {
		ttl := time.Duration(appConfig.MapsCacheTTLSecond) * time.Second
		expander = maps.NewCachedExpander(expander, redisCache, ttl)
	}

	// --- 7. Initialize Services ---
	userService := core.NewUserService(userRepo)
	promptService := core.NewPromptService(promptRepo, sessionRepo, lockRepo, editRepo, inviteRepo)
	presenceService := core.NewPresenceService(sessionRepo, promptRepo, userRepo)
	lockService := core.NewLockService(lockRepo, promptRepo, userRepo)
	editService := core.NewEditService(promptRepo, editRepo, userRepo)
	inviteService := core.NewInviteService(inviteRepo, promptRepo, userRepo, inviteMailer, appConfig.AppBaseURL)
	generationService := core.NewGenerationService(promptRepo, userRepo, queue, expander)
	zapLogger.Info("Core services initialized successfully.")

	// Apply finished briefs as the generation worker reports them back.
	if queue != nil {
		if err := generationService.ConsumeResults(); err != nil {
			zapLogger.Warn("Failed to subscribe to generation results queue. Generated briefs will not be applied.", zap.Error(err))
		} else {
			zapLogger.Info("Subscribed to generation results queue.", zap.String("queue", core.GenerationResultsQueueName))
		}
	}

	// --- 8. Setup Gin HTTP Engine ---
	if strings.ToLower(appConfig.GinMode) == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()

	// --- 9. Apply Global Middleware (order matters) ---
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware(appConfig))

	// --- 10. Setup API Routes ---
	api.SetupRoutes(
		router,
		appConfig,
		zapLogger,
		userService,
		promptService,
		presenceService,
		lockService,
		editService,
		inviteService,
		generationService,
		expander,
	)

	// --- 11. Configure and Start HTTP Server ---
	serverAddr := fmt.Sprintf(":%s", appConfig.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	zapLogger.Info("Starting HTTP server...", zap.String("address", serverAddr), zap.String("ginMode", gin.Mode()))

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// --- 12. Graceful Shutdown Handling ---
	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quitChannel
	zapLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Fatal("Server forced to shutdown due to error during graceful shutdown", zap.Error(err))
	}

	if queue != nil {
		if err := queue.Close(); err != nil {
			zapLogger.Warn("Error closing message queue connection", zap.Error(err))
		}
	}

	zapLogger.Info("Server exiting gracefully.")
}
