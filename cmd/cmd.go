package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"maum-baedal-backend/internal/config"
	"maum-baedal-backend/internal/handlers"
	"maum-baedal-backend/internal/middleware"
	"maum-baedal-backend/internal/repository"
	"maum-baedal-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/certificate"
)

func Run() {
	// Local overrides; missing .env is fine
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.Log.Level)

	// Connect to database
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	st := repository.NewStore(db)

	// Push delivery is optional; without a certificate only WebSocket
	// events are sent.
	var apnsClient *apns2.Client
	if cfg.APNS.P12Path != "" {
		cert, err := certificate.FromP12File(cfg.APNS.P12Path, cfg.APNS.P12Password)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load APNs certificate")
		}
		apnsClient = apns2.NewClient(cert).Development()
		if cfg.APNS.Production {
			apnsClient = apns2.NewClient(cert).Production()
		}
		log.Info().Msg("APNs push delivery enabled")
	}

	// Initialize services
	wsHub := services.NewWSHub()
	notifier := services.NewDispatcher(st, wsHub, apnsClient, cfg.APNS.Topic)
	userService := services.NewUserService(st, cfg.JWT.Secret)
	questionService := services.NewQuestionService(st)
	companionService := services.NewCompanionService(st, notifier)
	shareTokenService := services.NewShareTokenService(st, cfg.App.BaseURL)
	assignmentService := services.NewAssignmentService(st, questionService, notifier)

	var avatarService *services.AvatarService
	if cfg.AWS.S3Bucket != "" {
		avatarService, err = services.NewAvatarService(st, services.AvatarConfig{
			Region:          cfg.AWS.Region,
			Bucket:          cfg.AWS.S3Bucket,
			AccessKeyID:     cfg.AWS.AccessKey,
			SecretAccessKey: cfg.AWS.SecretKey,
			Endpoint:        cfg.AWS.Endpoint,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create avatar service")
		}
	}

	// Make sure the question pool can serve assignments before taking
	// traffic.
	if result, err := questionService.EnsureAvailable(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Question pool unavailable")
	} else if result.Recovered {
		log.Warn().Int("active_questions", result.Count).Msg("Question pool restored from defaults")
	}

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService, avatarService)
	todayHandler := handlers.NewTodayHandler(assignmentService)
	answerHandler := handlers.NewAnswerHandler(assignmentService)
	shareHandler := handlers.NewShareHandler(assignmentService, shareTokenService)
	companionHandler := handlers.NewCompanionHandler(companionService)
	conversationHandler := handlers.NewConversationHandler(assignmentService)
	adminHandler := handlers.NewAdminHandler(questionService, assignmentService, companionService, shareTokenService)
	wsHandler := handlers.NewWebSocketHandler(wsHub, userService, companionService)

	// Setup router
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/users", userHandler.CreateUser)
		r.Get("/share/join/{token}", shareHandler.PreviewShared)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))

			r.Get("/profile", userHandler.GetProfile)
			r.Put("/profile", userHandler.UpdateProfile)
			r.Put("/profile/push-token", userHandler.UpdatePushToken)
			r.Post("/profile/avatar", userHandler.GetAvatarUploadURL)

			r.Get("/today", todayHandler.GetToday)
			r.Post("/answer", answerHandler.SubmitAnswer)

			r.Get("/conversation/{id}", conversationHandler.GetConversation)
			r.Get("/history", conversationHandler.GetHistory)

			r.Post("/companions/invite", companionHandler.CreateInvite)
			r.Post("/companions/connect", companionHandler.Connect)
			r.Get("/companions", companionHandler.GetCompanion)

			r.Post("/share", shareHandler.CreateShare)
			r.Post("/share/join/{token}", shareHandler.JoinShared)
			r.Get("/share/{assignmentId}", shareHandler.GetSharedAssignment)
			r.Post("/share/{assignmentId}/answer", shareHandler.AnswerShared)
		})

		// Operational routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminMiddleware(cfg.App.AdminToken))

			r.Get("/admin/questions/health", adminHandler.QuestionHealth)
			r.Post("/admin/questions/recover", adminHandler.RecoverQuestions)
			r.Post("/admin/cleanup", adminHandler.Cleanup)
			r.Post("/admin/broadcast/daily", adminHandler.BroadcastDaily)
			r.Post("/admin/broadcast/reminder", adminHandler.BroadcastReminder)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Admin-Token")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
