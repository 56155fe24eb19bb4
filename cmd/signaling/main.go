package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stillwater-health/telesession/config"
	"github.com/stillwater-health/telesession/internal/handlers"
	"github.com/stillwater-health/telesession/internal/middleware"
	"github.com/stillwater-health/telesession/internal/rooms"
	"github.com/stillwater-health/telesession/internal/store"
	"github.com/stillwater-health/telesession/internal/token"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	cfg := config.Load()
	if cfg.Environment != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	db, err := store.NewRedis(cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer db.Close()
	log.Info().Msg("redis connection established")

	issuer := token.NewIssuer(cfg.RealtimeTokenSecret, cfg.TokenTTL)
	registry := rooms.NewRegistry(db)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.Use(handlers.OriginFilter(cfg.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api", middleware.SessionAuth(cfg.SessionJWTSecret))
	{
		api.POST("/session-token", handlers.IssueSessionToken(issuer))
		api.GET("/appointments/:appointmentId/admission", handlers.CheckAdmission(db))
	}

	ws := router.Group("/ws")
	{
		ws.GET("/session", handlers.HandleSignaling(issuer, registry))
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("signaling server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
