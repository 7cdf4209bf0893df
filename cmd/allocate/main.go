// Command allocate runs the room randomizer for one event and prints the
// outcome.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/srgjo27/roomshare/internal/adapter/lock"
	"github.com/srgjo27/roomshare/internal/adapter/queue"
	"github.com/srgjo27/roomshare/internal/adapter/repository/postgres"
	"github.com/srgjo27/roomshare/internal/config"
	"github.com/srgjo27/roomshare/internal/core/domain"
	"github.com/srgjo27/roomshare/internal/core/services"
	"github.com/srgjo27/roomshare/internal/platform/cache"
	"github.com/srgjo27/roomshare/internal/platform/database"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		eventID     int64
		force       bool
		hostControl bool
		output      string
		envFile     string
	)
	pflag.Int64VarP(&eventID, "event", "e", 0, "event id to allocate rooms for")
	pflag.BoolVarP(&force, "force", "f", false, "commit partial results instead of rolling back")
	pflag.BoolVar(&hostControl, "host-control", false, "respect room opt-outs from overflow assignment")
	pflag.StringVarP(&output, "output", "o", "yaml", "report format: yaml or json")
	pflag.StringVar(&envFile, "env-file", ".env", "optional dotenv file")
	pflag.Parse()

	if eventID <= 0 {
		fmt.Fprintln(os.Stderr, "--event is required")
		pflag.Usage()
		return 2
	}
	if output != "yaml" && output != "json" {
		fmt.Fprintf(os.Stderr, "unknown --output %q\n", output)
		return 2
	}

	if err := config.LoadDotEnv(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", envFile, err)
		return 1
	}
	cfg := config.Load()
	if pflag.CommandLine.Changed("host-control") {
		cfg.HostControl = hostControl
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgresDB(ctx, cfg.Database(), logger)
	if err != nil {
		logger.Error("failed to connect to db", "error", err)
		return 1
	}
	defer db.Close()

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		return 1
	}
	defer redisClient.Close()

	publisher := queue.NewPublisher(cfg.AMQPURL, cfg.AMQPQueue, logger)
	defer publisher.Close()

	allocator := services.NewAllocator(
		postgres.NewTransactor(db, cfg.TxAttempts, logger),
		services.NewOccupancy(time.Now),
		lock.NewRedisLocker(redisClient, cfg.AllocationLock),
		publisher,
		services.AllocatorConfig{HostControl: cfg.HostControl},
		logger,
	)

	result, err := allocator.RunAllocation(ctx, eventID, force)
	var partial *domain.PartialAssignmentError
	if err != nil && !errors.As(err, &partial) {
		logger.Error("allocation failed", "event_id", eventID, "error", err)
		return 1
	}

	if werr := writeReport(os.Stdout, output, result); werr != nil {
		logger.Error("failed to write report", "error", werr)
		return 1
	}
	if partial != nil {
		logger.Warn("allocation rolled back, rerun with --force to keep partial results", "failed", len(partial.Failed))
		return 3
	}
	return 0
}

func writeReport(w io.Writer, format string, result *services.AllocationResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(result); err != nil {
		return err
	}
	return enc.Close()
}
