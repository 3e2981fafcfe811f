package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/USA-RedDragon/crashgate/internal/config"
	"github.com/USA-RedDragon/crashgate/internal/db"
	"github.com/USA-RedDragon/crashgate/internal/events"
	"github.com/USA-RedDragon/crashgate/internal/gate"
	"github.com/USA-RedDragon/crashgate/internal/metrics"
	"github.com/USA-RedDragon/crashgate/internal/server"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/ztrue/shutdown"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the crash submission gate as an HTTP service",
		RunE:  runServe,
	}
}

//nolint:gocyclo
func runServe(cmd *cobra.Command, _ []string) error {
	annotations := cmd.Root().Annotations
	slog.Info("crashgate", "version", annotations["version"], "commit", annotations["commit"])

	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	err = config.ValidateServe()
	if err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	var limiter gate.Limiter = gate.NewRateLimiter(gate.DefaultWindow, gate.RealClock())
	var redisClient *redis.Client
	if config.Redis.Enabled {
		redisClient = connectRedis(config)
		defer redisClient.Close()
		limiter = gate.NewRedisLimiter(redisClient, config.Redis.RateLimitKey, gate.DefaultWindow, limiter)
		slog.Info("Using Redis for rate limiting", "key", config.Redis.RateLimitKey)
	}

	settings := gate.Settings{PostExceptionsInEditor: config.Reporting.PostExceptionsInEditor}
	if len(config.Reporting.IgnoredExceptions) > 0 {
		settings.ShouldPostException = gate.IgnoreTypes(config.Reporting.IgnoredExceptions, limiter)
	}
	submissionGate := gate.New(settings, limiter)
	submissionGate.SetObserver(func(_ *gate.Event, decision gate.Decision) {
		m.ObserveGateDecision(string(decision.Reason), decision.Submit)
	})

	publisher := events.Discard()
	var natsConn *nats.Conn
	if config.NATS.Enabled {
		natsConn, err = events.Connect(config.NATS.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		publisher = natsConn
		slog.Info("NATS connection established", "url", config.NATS.URL, "subject", config.NATS.Subject)
	}
	bus := events.NewEventBus(publisher, config.NATS.Subject, events.DefaultQueueSize)
	bus.SetObserver(m.ObservePublish)
	bus.Start()

	var database *gorm.DB
	if config.Persistence.Database.Enabled {
		database, err = db.MakeDB(config)
		if err != nil {
			return fmt.Errorf("failed to make database: %w", err)
		}
		slog.Info("Database connection established")
	}

	slog.Info("Starting HTTP server")
	server := server.NewServer(config, server.Deps{
		Gate:   submissionGate,
		Events: bus,
		DB:     database,
	})
	err = server.Start()
	if err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	stop := func(_ os.Signal) {
		slog.Info("Shutting down")

		errGrp := errgroup.Group{}

		errGrp.Go(func() error {
			return server.Stop()
		})

		errGrp.Go(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return bus.Close(ctx)
		})

		err := errGrp.Wait()
		if err != nil {
			slog.Error("Shutdown error", "error", err.Error())
		}

		if natsConn != nil {
			if err := natsConn.Drain(); err != nil {
				slog.Error("Failed to drain NATS connection", "error", err.Error())
			}
		}
		if database != nil {
			if err := db.Close(database); err != nil {
				slog.Error("Failed to close database", "error", err.Error())
			}
		}
		stats := bus.Stats()
		slog.Info("Shutdown complete", "published", stats.Published, "failed", stats.Failed, "dropped", stats.Dropped)
	}

	if annotations["version"] == "testing" {
		doneChannel := make(chan struct{})
		go func() {
			slog.Info("Sleeping for 5 seconds")
			time.Sleep(5 * time.Second)
			slog.Info("Sending SIGTERM")
			stop(syscall.SIGTERM)
			doneChannel <- struct{}{}
		}()
		<-doneChannel
	} else {
		shutdown.AddWithParam(stop)
		shutdown.Listen(syscall.SIGINT, syscall.SIGKILL, syscall.SIGTERM, syscall.SIGQUIT)
	}

	return nil
}

func connectRedis(config *config.Config) *redis.Client {
	if config.Redis.Sentinel.Enabled {
		return redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:       config.Redis.Sentinel.MasterName,
			SentinelAddrs:    config.Redis.Sentinel.Addresses,
			SentinelPassword: config.Redis.Sentinel.Password,
			Password:         config.Redis.Password,
			Username:         config.Redis.Username,
			DB:               config.Redis.Database,
		})
	}
	return redis.NewClient(&redis.Options{
		Addr:     config.Redis.Address,
		Username: config.Redis.Username,
		Password: config.Redis.Password,
		DB:       config.Redis.Database,
	})
}
