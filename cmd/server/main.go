package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"secondhand-price/internal/analysis"
	"secondhand-price/internal/api"
	"secondhand-price/internal/config"
	"secondhand-price/internal/kv"
	"secondhand-price/internal/notify"
	"secondhand-price/internal/predict"
	"secondhand-price/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger := config.SetupLogging(cfg)
	log := logrus.NewEntry(logger)

	adapter, closer, err := kv.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open %s storage: %v", cfg.StorageBackend, err)
	}
	defer closer.Close()

	// The one store instance shared by every component
	st := store.New(adapter, log)
	log.WithFields(logrus.Fields{
		"backend": cfg.StorageBackend,
		"entries": len(st.History()),
	}).Info("Analysis store initialized")

	dispatcher := notify.NewDispatcher(log)
	if cfg.BarkKey != "" {
		dispatcher.AddChannel(notify.NewBarkService(cfg.BarkKey))
	}
	email := notify.NewEmailService(cfg.SMTPHost, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom, cfg.NotifyEmailTo, cfg.SMTPPort)
	if email.Enabled() {
		dispatcher.AddChannel(email)
	}
	log.Infof("Notification channels: %v", dispatcher.Channels())

	svc := analysis.NewService(st, predict.NewComparablesPredictor(st), dispatcher, log)

	// Periodically re-price recorded items against newer comparables
	scheduler := analysis.NewScheduler(svc, cfg.RepriceInterval, log)
	scheduler.Start()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), api.RequestLogger(log), api.CORS(cfg.AllowedOrigins()))
	api.SetupRoutes(r, st, svc, scheduler, cfg.StorageBackend)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: r,
	}

	go func() {
		log.Infof("Server starting on %s", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}
	scheduler.Stop()
	svc.Wait()

	log.Info("Server exited")
}
