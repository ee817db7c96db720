// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finetune-orchestrator/internal/config"
	"finetune-orchestrator/internal/domain"
	aiAdapters "finetune-orchestrator/internal/infra/adapters/ai"
	"finetune-orchestrator/internal/infra/logging"
	"finetune-orchestrator/internal/infra/metrics"
	"finetune-orchestrator/internal/infra/store"
	"finetune-orchestrator/internal/infra/web"
	"finetune-orchestrator/internal/usecase"

	"github.com/google/uuid"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

// Process exit codes. Operators script against these.
const (
	exitOK        = 0
	exitFailure   = 1
	exitNoInput   = 2
	exitExhausted = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs)")
	lineageID := flag.String("lineage", "", "lineage id to run or resume (fresh uuid when empty)")
	trainingFile := flag.String("training-file", "", "explicit uploaded training-file id, overrides artifact selection")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Printf("config: %v", err)
		return exitFailure
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	lineage := *lineageID
	if lineage == "" {
		lineage = uuid.NewString()
		logger.Info().Str("lineage_id", lineage).Msg("starting fresh lineage")
	}

	// ---- State store ----
	lineageStore, err := store.NewFileStore(cfg.Store.Dir, logger)
	if err != nil {
		logger.Error().Err(err).Msg("state store init failed")
		return exitFailure
	}

	// ---- Remote job client ----
	jobs, err := aiAdapters.NewFineTuneAdapter(cfg.Tuning.APIKey, cfg.Tuning.BaseURL)
	if err != nil {
		logger.Error().Err(err).Msg("fine-tune adapter init failed")
		return exitFailure
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ---- Status server ----
	if cfg.Admin.Port > 0 {
		srv := web.NewServer(cfg.Admin.Port, lineage, lineageStore, logger)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error().Err(err).Msg("status server stopped")
			}
		}()
		defer func() {
			shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shCancel()
			_ = srv.Shutdown(shCtx)
		}()
	}

	// ---- Orchestrator ----
	orch := usecase.NewOrchestrator(usecase.Config{
		BaseModel:         cfg.Tuning.BaseModel,
		FallbackModel:     cfg.Tuning.FallbackModel,
		SwitchAfter:       cfg.Tuning.SwitchAfter,
		MaxRetries:        cfg.Tuning.MaxRetries,
		WatchdogThreshold: cfg.Tuning.WatchdogThreshold(),
		PollInterval:      cfg.Tuning.PollInterval(),
		RequestTimeout:    cfg.Tuning.RequestTimeout(),
		EventWindow:       cfg.Tuning.EventWindow,
		ArtifactDir:       cfg.Store.Dir,
		MinInputBytes:     cfg.Store.MinInputBytes,
	}, jobs, lineageStore, metrics.Recorder{}, logger)

	res, runErr := orch.Run(ctx, lineage, *trainingFile)
	if res != nil {
		// final status line for the human operator, also on fatal paths
		fmt.Fprintln(os.Stderr, res.Summary())
	}

	switch {
	case runErr == nil:
		return exitOK
	case errors.Is(runErr, domain.ErrNoAcceptableInput):
		logger.Error().Err(runErr).Msg("no acceptable training input")
		return exitNoInput
	case errors.Is(runErr, domain.ErrRetryBudgetExhausted):
		logger.Error().Err(runErr).Msg("lineage exhausted its retry budget")
		return exitExhausted
	default:
		logger.Error().Err(runErr).Msg("orchestrator failed")
		return exitFailure
	}
}
