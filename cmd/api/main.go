package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/challenge-api/internal/config"
	"github.com/yourusername/challenge-api/internal/handler"
	"github.com/yourusername/challenge-api/internal/middleware"
	pgRepo "github.com/yourusername/challenge-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/challenge-api/internal/repository/redis"
	"github.com/yourusername/challenge-api/internal/service"
	"github.com/yourusername/challenge-api/pkg/auth"
	"github.com/yourusername/challenge-api/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к Redis
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Инициализируем репозитории
	userRepo := pgRepo.NewUserRepo(db)
	challengeRepo := pgRepo.NewChallengeRepo(db)
	questionRepo := pgRepo.NewQuestionRepo(db)
	attemptRepo := pgRepo.NewAttemptRepo(db)
	competitionRepo := pgRepo.NewCompetitionRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	// Инициализируем JWT сервис
	jwtService, err := auth.NewJWTService(cfg.JWT.SecretKey, cfg.JWT.ExpirationHrs)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}

	// Конфигурация жизненного цикла челленджей
	challengeConfig := service.DefaultConfig()
	if cfg.Challenge.WaitingTTLMinutes > 0 {
		challengeConfig.WaitingTTL = time.Duration(cfg.Challenge.WaitingTTLMinutes) * time.Minute
	}
	if cfg.Challenge.MaxQuestionsPerGame > 0 {
		challengeConfig.MaxQuestionsPerGame = cfg.Challenge.MaxQuestionsPerGame
	}

	// Инициализируем сервисы
	authService := service.NewAuthService(userRepo, jwtService)
	challengeService := service.NewChallengeService(challengeRepo, questionRepo, userRepo, attemptRepo, challengeConfig)
	leaderboardService := service.NewLeaderboardService(attemptRepo, challengeRepo, competitionRepo, cacheRepo)

	// Инициализируем обработчики
	authHandler := handler.NewAuthHandler(authService)
	challengeHandler := handler.NewChallengeHandler(challengeService)
	leaderboardHandler := handler.NewLeaderboardHandler(leaderboardService)

	authMiddleware := middleware.NewAuthMiddleware(jwtService)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	isProduction := os.Getenv("GIN_MODE") == "release"

	router := gin.Default()

	// Настройка доверенных прокси для корректной работы c.ClientIP()
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Настройка CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Настраиваем маршруты API
	api := router.Group("/api")
	{
		// Аутентификация
		authGroup := api.Group("/auth")
		{
			strictLimit := rateLimiter.LimitByIP(middleware.StrictAuthRateLimitConfig())
			authGroup.POST("/register", strictLimit, authHandler.Register)
			authGroup.POST("/login", strictLimit, authHandler.Login)
		}

		// Челленджи
		challenges := api.Group("/challenges")
		{
			challenges.POST("",
				authMiddleware.RequireAuth(),
				rateLimiter.LimitByUser(middleware.CreateChallengeRateLimitConfig()),
				challengeHandler.CreateChallenge)

			// Группа маршрутов, требующих invite-код
			withCode := challenges.Group("/:code")
			withCode.Use(middleware.ExtractCodeParam("code", "challengeCode"))
			{
				// Чтение открыто: приглашённый видит метаданные до логина,
				// токен (если есть) лишь расширяет ответ для участника
				withCode.GET("", authMiddleware.OptionalAuth(), challengeHandler.GetChallenge)
				withCode.GET("/leaderboard", leaderboardHandler.GetChallengeLeaderboard)

				// Мутации: аутентификация + общий лимит на пользователя
				mutate := withCode.Group("")
				mutate.Use(
					authMiddleware.RequireAuth(),
					rateLimiter.LimitByUser(middleware.MutateChallengeRateLimitConfig()))
				{
					mutate.DELETE("", challengeHandler.DeleteChallenge)
					mutate.POST("/accept", challengeHandler.AcceptChallenge)
					mutate.POST("/start", challengeHandler.StartChallenge)
					mutate.POST("/score", challengeHandler.SubmitScore)
					mutate.POST("/rematch", challengeHandler.RematchChallenge)
				}
			}
		}

		// Соревнования (read-проекции, доступны аутентифицированным)
		competitions := api.Group("/competitions")
		competitions.Use(authMiddleware.RequireAuth())
		{
			withID := competitions.Group("/:id")
			withID.Use(middleware.ExtractUintParam("id", "competitionID"))
			{
				withID.GET("/leaderboard", leaderboardHandler.GetCompetitionLeaderboard)
				withID.GET("/leaderboard/export", leaderboardHandler.ExportCompetitionLeaderboard)
			}
		}
	}

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Server started on port %s", cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
