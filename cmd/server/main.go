package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/andestours/experience-booking/internal/booking"
	"github.com/andestours/experience-booking/internal/capacity"
	"github.com/andestours/experience-booking/internal/config"
	"github.com/andestours/experience-booking/internal/database"
	"github.com/andestours/experience-booking/internal/handler"
	"github.com/andestours/experience-booking/internal/middleware"
	"github.com/andestours/experience-booking/internal/queue"
	"github.com/andestours/experience-booking/internal/repository"
	"github.com/andestours/experience-booking/internal/router"
	queue_publisher "github.com/andestours/experience-booking/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.Load()
	capCfg := config.LoadCapacityConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis: unavailable; rate limiting and caching disabled")
	}

	// Pick the capacity store backend.  Redis is the default; the http
	// backend delegates to a remote experiences service.
	var capStore capacity.Store
	switch capCfg.Backend {
	case "http":
		if capCfg.BaseURL == "" {
			log.Fatal("CAPACITY_BASE_URL required when CAPACITY_BACKEND=http")
		}
		capStore = capacity.NewHTTPStore(capCfg.BaseURL, capCfg.HTTPTimeout)
	default:
		if rdb == nil {
			log.Fatal("redis unavailable and CAPACITY_BACKEND=redis; cannot serve bookings")
		}
		capStore = capacity.NewRedisStore(rdb, capCfg.TokenTTL)
	}
	ledger := capacity.NewLedger(capStore, capCfg.RetryAttempts, capCfg.RetryBackoff)

	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)
	expRepo := repository.NewExperienceRepo(db)
	resRepo := repository.NewReservationRepo(db)
	ratRepo := repository.NewRatingRepo(db)

	publisher := queue_publisher.NewPublisher()
	controller := booking.NewController(ledger, resRepo, publisher, nil)

	authHandler := handler.NewAuthHandler(cfg, userRepo, tokenRepo)
	expHandler := handler.NewExperienceHandler(expRepo, capStore)
	resHandler := handler.NewReservationHandler(controller, resRepo)
	ratHandler := handler.NewRatingHandler(ratRepo)

	// Background consumer appends confirmed bookings to logs/booking.log.
	go func() {
		if err := queue.StartBookingConsumer(); err != nil {
			log.Printf("booking-consumer: %v", err)
		}
	}()

	e := echo.New()
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterPublic(e, expHandler, ratHandler, cache)
	router.RegisterExperiences(e, expHandler, cfg.JWTSecret)
	router.RegisterReservations(e, resHandler, cfg.JWTSecret)
	router.RegisterRatings(e, ratHandler, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
