package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"stationmatrix-backend/config"
	"stationmatrix-backend/controllers"
	"stationmatrix-backend/routes"
	"stationmatrix-backend/services"
	"stationmatrix-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	config.ConnectDB(cfg.DBURL)
	if err := services.Migrate(config.DB); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	var cache services.SessionCache = services.NewMemoryCache(cfg.SessionCacheTTL)
	if cfg.RedisURL != "" {
		client, err := config.ConnectRedis(cfg.RedisURL, cfg.RedisPassword)
		if err != nil {
			log.Fatalf("Failed to connect redis: %v", err)
		}
		defer client.Close()
		cache = services.NewRedisCache(client, cfg.SessionCacheTTL)
		log.Println("[CACHE] using redis session cache")
	}

	var notifier services.TransferNotifier
	if cfg.TwilioEnabled() {
		notifier = services.NewTwilioNotifier(config.DB, services.TwilioConfig{
			AccountSID:     cfg.TwilioAccountSID,
			AuthToken:      cfg.TwilioAuthToken,
			PhoneNumber:    cfg.TwilioPhoneNumber,
			WhatsAppNumber: cfg.TwilioWhatsAppNumber,
		})
	} else {
		log.Println("[NOTIFY] Twilio not configured, transfer notifications disabled")
	}

	sessions := services.NewSessionManager(
		func(salonID uuid.UUID) services.Gateway {
			return services.NewGormGateway(config.DB, salonID)
		},
		cache,
		notifier,
		services.SessionOptions{ServicePageSize: cfg.ServicePageSize, StationPageSize: cfg.StationPageSize},
	)

	tokens := utils.NewTokenIssuer(cfg.JWTSecret, time.Duration(cfg.JWTExpiryHours)*time.Hour)
	limiter := utils.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	scheduler, err := services.StartMaintenance(cache, sessions, cfg.SessionIdleTimeout)
	if err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	if _, err := scheduler.AddFunc("@every 10m", func() {
		limiter.Cleanup(10 * time.Minute)
	}); err != nil {
		log.Fatalf("Failed to schedule rate limiter cleanup: %v", err)
	}

	r := routes.SetupRouter(routes.Deps{
		Config:  cfg,
		Auth:    &controllers.AuthController{DB: config.DB, Tokens: tokens},
		Matrix:  &controllers.MatrixController{Sessions: sessions},
		Tokens:  tokens,
		Limiter: limiter,
	})
	printRoutes(r)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()
	<-ctx.Done()

	log.Println("Shutting down")
	<-scheduler.Stop().Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown: %v", err)
	}
	sessions.EvictIdle(shutdownCtx, 0)
}

func printRoutes(r *gin.Engine) {
	routes := r.Routes()
	for _, route := range routes {
		fmt.Printf("%-6s %s\n", route.Method, route.Path)
	}
}
