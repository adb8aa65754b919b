package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/phonginreallife/fieldwatch/db"
	"github.com/phonginreallife/fieldwatch/handlers"
	"github.com/phonginreallife/fieldwatch/internal/config"
	"github.com/phonginreallife/fieldwatch/router"
	"github.com/phonginreallife/fieldwatch/services"
	"github.com/phonginreallife/fieldwatch/workers"
)

var noAutoStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitor and its HTTP API",
	Long: `Load configuration, start a monitoring session for today's schedule and
serve the status and inbound-message API until interrupted.

Examples:
  fieldwatch serve
  fieldwatch serve --config ./config/fieldwatch.yaml
  fieldwatch serve --no-start      # wait for POST /monitor/start`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&noAutoStart, "no-start", false, "do not start a monitoring session on boot")
}

func runServe() error {
	log.Println("Starting fieldwatch...")

	if err := config.LoadConfig(configPath); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := config.App

	// Database connection (optional)
	var pg *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		pg, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pg.Close()

		if err := pg.Ping(); err != nil {
			return fmt.Errorf("failed to ping database: %w", err)
		}
		log.Println("  Connected to database successfully")
	} else {
		log.Println("ℹ️  DATABASE_URL not set: schedule source is empty and the notification log is disabled")
	}

	// Schedule source
	var source services.ScheduleSource = services.StaticScheduleSource(nil)
	if pg != nil {
		source = services.NewPostgresScheduleSource(pg, cfg.Monitor.Location())
	}

	// Notification sink
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sinks := services.MultiNotifier{services.LogNotifier{}}
	if slack := services.NewSlackService(cfg.Slack.BotToken, cfg.Slack.APIURL); slack.IsEnabled() {
		sinks = append(sinks, slack)
	}
	if fcm := services.NewFCMService(ctx, cfg.Firebase.CredentialsFile); fcm.IsEnabled() {
		sinks = append(sinks, fcm)
	}

	var notifier services.Notifier = sinks
	var notificationLog *services.NotificationLogService
	if pg != nil {
		notificationLog = services.NewNotificationLogService(pg)
		notifier = &services.AuditedNotifier{Next: sinks, Log: notificationLog}
	}

	monitor := workers.NewMonitorWorker(cfg.Monitor, source, notifier, services.RealClock{})
	if !noAutoStart {
		monitor.Start(ctx)
	}

	// Redis inbound (optional)
	if cfg.RedisURL != "" {
		inbound, err := services.NewRedisInbound(cfg.RedisURL, cfg.Redis.CheckInChannel)
		if err != nil {
			return err
		}
		defer inbound.Close()

		go func() {
			err := inbound.Run(ctx, func(ctx context.Context, msg db.InboundMessage) error {
				_, err := monitor.HandleMessage(ctx, msg)
				return err
			})
			if err != nil {
				log.Printf("⚠️  Redis inbound stopped: %v", err)
			}
		}()
	}

	// HTTP API
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router.NewGinRouter(handlers.NewMonitorHandler(monitor, notificationLog)),
	}
	go func() {
		log.Printf("HTTP API listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("❌ HTTP server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	cancel()
	monitor.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown: %v", err)
	}
	if err := monitor.Wait(shutdownCtx); err != nil {
		log.Printf("Monitor did not drain in time: %v", err)
	}
	return nil
}
