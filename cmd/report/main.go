package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/icagency/secretary/common/gcp"
	"github.com/icagency/secretary/common/llm"
	"github.com/icagency/secretary/common/logger"
	"github.com/icagency/secretary/common/otel"
	"github.com/icagency/secretary/core/config"
	"github.com/icagency/secretary/internal/analysis"
	"github.com/icagency/secretary/internal/directory"
	"github.com/icagency/secretary/internal/history"
	"github.com/icagency/secretary/internal/sheets"
	"github.com/icagency/secretary/internal/store"
)

// report runs one full analysis cycle and exits. It is meant to be triggered
// periodically (cron, Cloud Scheduler).
func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeReport)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "secretary report starting", "env", cfg.Env)

	fsClient, err := firestore.NewClient(ctx, cfg.Google.ProjectID, gcp.ClientOptions(cfg.Google.Credentials)...)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create firestore client", "error", err)
		os.Exit(1)
	}
	defer fsClient.Close()

	sheetsClient, err := sheets.NewClient(ctx, cfg.Google.Credentials)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create sheets client", "error", err)
		os.Exit(1)
	}

	llmClient, err := llm.New(llm.Config{
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create llm client", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "llm client ready", "model", llmClient.Model())

	conversationStore := store.NewFirestoreStore(fsClient)
	tracker := history.NewTracker(conversationStore)

	router := directory.NewRouter(directory.Directory{
		Ignored:   cfg.Directory.Ignored,
		Admins:    cfg.Directory.Admins,
		Employees: cfg.Directory.Employees,
		Partners:  cfg.Directory.Partners,
	})

	strategies := map[directory.Role]analysis.Strategy{
		directory.RoleAdmin:    analysis.NewAdminStrategy(llmClient, cfg.Sheets.StrategySheetID),
		directory.RoleEmployee: analysis.NewEmployeeStrategy(llmClient, cfg.Sheets.SalesSheetID),
		directory.RolePartner:  analysis.NewPartnerStrategy(llmClient, cfg.Sheets.SalesSheetID),
		directory.RoleExternal: analysis.NewSalesStrategy(llmClient, cfg.Sheets.SalesSheetID),
	}

	dispatcher := analysis.NewDispatcher(
		conversationStore,
		tracker,
		router,
		sheetsClient,
		strategies,
		analysis.NewFoundersStrategy(llmClient, cfg.Sheets.StrategySheetID),
		analysis.NewFinanceStrategy(llmClient, cfg.Sheets.FinanceSheetID),
		analysis.Config{
			OperatorChatID: cfg.Analysis.OperatorChatID,
			FoundersChatID: cfg.Analysis.FoundersChatID,
			FoundersLabel:  cfg.Analysis.FoundersLabel,
			FinanceGroupID: cfg.Analysis.FinanceGroupID,
		},
	)

	start := time.Now()
	stats, err := dispatcher.RunCycle(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "analysis cycle failed", "error", err)
	}

	slog.InfoContext(ctx, "report finished",
		"duration_ms", time.Since(start).Milliseconds(),
		"analyzed", stats.Analyzed,
		"empty", stats.Empty,
		"skipped", stats.Skipped,
		"failed", stats.Failed)

	if telemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	if err != nil {
		os.Exit(1)
	}
}
