package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/psdglot/psdglot/internal/api"
	"github.com/psdglot/psdglot/internal/auth"
	"github.com/psdglot/psdglot/internal/config"
	"github.com/psdglot/psdglot/internal/imagejob"
	"github.com/psdglot/psdglot/internal/lock"
	"github.com/psdglot/psdglot/internal/log"
	"github.com/psdglot/psdglot/internal/pipeline"
	"github.com/psdglot/psdglot/internal/stage"
	"github.com/psdglot/psdglot/internal/state"
	"github.com/psdglot/psdglot/internal/storage"
	"github.com/psdglot/psdglot/internal/translate"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "serve":
		os.Exit(runServe(args))
	case "config":
		os.Exit(runConfig(args))
	case "version":
		fmt.Printf("psdglot version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`psdglot - Translate text layers inside layered-image documents

Usage:
  psdglot <command> [flags]

Commands:
  serve          Start the HTTP service in foreground
  config check   Validate configuration without starting
  version        Show version information
  help           Show this help message

Flags:
  --config <path>   Path to config.yaml (default ./config.yaml)
`)
}

func runConfig(args []string) int {
	if len(args) < 1 || args[0] != "check" {
		fmt.Fprintln(os.Stderr, "Usage: psdglot config check [--config <path>]")
		return 1
	}

	fs := flag.NewFlagSet("config check", flag.ExitOnError)
	configPath := fs.String("config", "./config.yaml", "path to config file")
	_ = fs.Parse(args[1:])

	if _, err := config.Load(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Config check failed: %v\n", err)
		return 1
	}
	fmt.Println("Config OK")
	return 0
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "./config.yaml", "path to config file")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("starting", "service", cfg.Service.Name, "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// One instance per state database: the cleanup timers assume a single writer.
	pidLock, err := lock.Acquire(lock.ForStateDB(cfg.State.Path))
	if err != nil {
		logger.Error("failed to acquire instance lock", "error", err)
		return 1
	}
	defer pidLock.Release()

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		logger.Error("failed to open state database", "error", err)
		return 1
	}
	defer db.Close()
	store := state.NewStore(db)

	objects, err := stage.NewS3Store(ctx, stage.StoreConfig{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Error("failed to connect to object storage", "error", err)
		return 1
	}

	stager := stage.NewStager(objects, store)
	// Clean up anything a previous process left behind.
	if err := stager.SweepExpired(ctx); err != nil {
		logger.Warn("startup sweep failed", "error", err)
	}

	tokens := auth.NewProvider(auth.Credential{
		ClientID:     cfg.ImageAPI.ClientID,
		ClientSecret: cfg.ImageAPI.ClientSecret,
		TokenURL:     cfg.ImageAPI.TokenURL,
		Scopes:       cfg.ImageAPI.Scopes,
	})

	translator := translate.NewBatcher(cfg.Translation.BaseURL, cfg.Translation.AuthKey, cfg.Translation.CallDelay)

	orchestrator := pipeline.New(
		tokens,
		stager,
		translator,
		store,
		func(token string) pipeline.JobClient {
			return imagejob.NewClient(cfg.ImageAPI.BaseURL, token, cfg.ImageAPI.ClientID)
		},
		pipeline.Config{
			URLTTL:       cfg.Storage.URLTTL,
			DeleteAfter:  cfg.Storage.DeleteAfter,
			PollInterval: cfg.ImageAPI.PollInterval,
			PollAttempts: cfg.ImageAPI.PollAttempts,
		},
	)

	server := api.New(api.Config{
		Listen:         cfg.Service.Listen,
		MaxUploadBytes: cfg.Service.MaxUploadBytes,
	}, orchestrator, store, log.WithComponent("api"))

	if err := server.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("server exited", "error", err)
		return 1
	}

	logger.Info("shutdown complete")
	return 0
}
