package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/icagency/secretary/common/logger"
	"github.com/icagency/secretary/internal/directory"
	"github.com/icagency/secretary/internal/model"
	"github.com/icagency/secretary/internal/sheets"
)

// foundersWindow is the rolling lookback for the founders strategy pass,
// which reads by time window rather than by watermark.
const foundersWindow = 7 * 24 * time.Hour

// History is the watermark tracker surface the dispatcher needs.
type History interface {
	UnanalyzedText(ctx context.Context, chatID string) (string, error)
	WindowText(ctx context.Context, chatID string, since time.Duration) (string, error)
	MarkAnalyzed(ctx context.Context, chatID string) error
}

// ConversationLister yields the conversations flagged for analysis.
type ConversationLister interface {
	ListNeedingAnalysis(ctx context.Context) ([]model.Conversation, error)
}

// Classifier routes a conversation identifier to an analysis role.
type Classifier interface {
	Classify(senderID string) directory.Classification
}

type Config struct {
	// OperatorChatID is the operator's own conversation, never analyzed.
	OperatorChatID string
	// FoundersChatID is handled by the dedicated founders pass.
	FoundersChatID string
	FoundersLabel  string
	// FinanceGroupID is handled by the dedicated finance pass.
	FinanceGroupID string
}

// Stats summarizes one analysis cycle.
type Stats struct {
	Analyzed int // strategy ran, rows persisted, watermark advanced
	Empty    int // nothing new, watermark advanced without a strategy
	Skipped  int // excluded or ignored conversations
	Failed   int // left flagged for the next cycle
}

// Dispatcher drives the periodic analysis cycle: a role-routed pass over
// every flagged conversation, then the dedicated founders and finance passes.
// Conversations are processed sequentially; one failure never blocks the rest.
type Dispatcher struct {
	lister     ConversationLister
	history    History
	classifier Classifier
	appender   sheets.Appender
	strategies map[directory.Role]Strategy
	founders   Strategy
	finance    Strategy
	cfg        Config
}

func NewDispatcher(
	lister ConversationLister,
	history History,
	classifier Classifier,
	appender sheets.Appender,
	strategies map[directory.Role]Strategy,
	founders Strategy,
	finance Strategy,
	cfg Config,
) *Dispatcher {
	return &Dispatcher{
		lister:     lister,
		history:    history,
		classifier: classifier,
		appender:   appender,
		strategies: strategies,
		founders:   founders,
		finance:    finance,
		cfg:        cfg,
	}
}

// RunCycle executes one full analysis cycle. The returned error covers only
// batch-level failures (listing the queue); per-conversation failures are
// counted in Stats and leave the conversation flagged for the next cycle.
func (d *Dispatcher) RunCycle(ctx context.Context) (Stats, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "secretary.analysis.dispatcher",
	})

	var stats Stats

	if err := d.runRoutedPass(ctx, &stats); err != nil {
		return stats, err
	}
	d.runFoundersPass(ctx, &stats)
	d.runFinancePass(ctx, &stats)

	slog.InfoContext(ctx, "analysis cycle complete",
		"analyzed", stats.Analyzed,
		"empty", stats.Empty,
		"skipped", stats.Skipped,
		"failed", stats.Failed)
	return stats, nil
}

func (d *Dispatcher) runRoutedPass(ctx context.Context, stats *Stats) error {
	conversations, err := d.lister.ListNeedingAnalysis(ctx)
	if err != nil {
		return fmt.Errorf("listing flagged conversations: %w", err)
	}

	excluded := d.excludedChats()

	for _, conv := range conversations {
		if _, ok := excluded[conv.ChatID]; ok {
			stats.Skipped++
			continue
		}
		d.analyzeOne(ctx, conv, stats)
	}
	return nil
}

func (d *Dispatcher) analyzeOne(ctx context.Context, conv model.Conversation, stats *Stats) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ChatID: logger.Ptr(conv.ChatID),
	})

	text, err := d.history.UnanalyzedText(ctx, conv.ChatID)
	if err != nil {
		slog.ErrorContext(ctx, "fetching unanalyzed text failed", "error", err)
		stats.Failed++
		return
	}

	// Empty batch goes straight to done; an analysis strategy never sees it.
	if text == "" {
		if err := d.history.MarkAnalyzed(ctx, conv.ChatID); err != nil {
			slog.ErrorContext(ctx, "advancing watermark failed", "error", err)
			stats.Failed++
			return
		}
		stats.Empty++
		return
	}

	class := d.classifier.Classify(conv.ChatID)
	if class.Role == directory.RoleIgnored {
		// Ignored conversations still advance, otherwise they would be
		// re-scanned every cycle forever.
		if err := d.history.MarkAnalyzed(ctx, conv.ChatID); err != nil {
			slog.ErrorContext(ctx, "advancing watermark failed", "error", err)
			stats.Failed++
			return
		}
		stats.Skipped++
		return
	}

	strategy, ok := d.strategies[class.Role]
	if !ok {
		slog.WarnContext(ctx, "no strategy bound for role",
			"role", string(class.Role))
		stats.Skipped++
		return
	}

	label := class.Label
	if conv.IsGroup && conv.ChatName != "" {
		label = conv.ChatName
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Strategy: logger.Ptr(strategy.Name()),
	})
	slog.InfoContext(ctx, "analyzing conversation", "role", string(class.Role))

	report, err := strategy.Analyze(ctx, Input{
		Identifier: conv.ChatID,
		Label:      label,
		Text:       text,
	})
	if err != nil {
		slog.ErrorContext(ctx, "analysis failed, conversation stays flagged", "error", err)
		stats.Failed++
		return
	}

	// Persist before advancing: a persistence failure must leave the flag
	// set so the same batch is retried next cycle.
	if err := d.persist(ctx, report); err != nil {
		slog.ErrorContext(ctx, "persisting report failed, conversation stays flagged", "error", err)
		stats.Failed++
		return
	}

	if err := d.history.MarkAnalyzed(ctx, conv.ChatID); err != nil {
		slog.ErrorContext(ctx, "advancing watermark failed", "error", err)
		stats.Failed++
		return
	}
	stats.Analyzed++
}

func (d *Dispatcher) runFoundersPass(ctx context.Context, stats *Stats) {
	if d.founders == nil || d.cfg.FoundersChatID == "" {
		return
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ChatID:   logger.Ptr(d.cfg.FoundersChatID),
		Strategy: logger.Ptr(d.founders.Name()),
	})

	text, err := d.history.WindowText(ctx, d.cfg.FoundersChatID, foundersWindow)
	if err != nil {
		slog.ErrorContext(ctx, "fetching founders window failed", "error", err)
		stats.Failed++
		return
	}
	if text == "" {
		slog.InfoContext(ctx, "no recent founders messages")
		stats.Empty++
		return
	}

	label := d.cfg.FoundersLabel
	if label == "" {
		label = "Founders"
	}

	report, err := d.founders.Analyze(ctx, Input{
		Identifier: d.cfg.FoundersChatID,
		Label:      label,
		Text:       text,
	})
	if err != nil {
		slog.ErrorContext(ctx, "founders analysis failed", "error", err)
		stats.Failed++
		return
	}

	if err := d.persist(ctx, report); err != nil {
		slog.ErrorContext(ctx, "persisting founders report failed", "error", err)
		stats.Failed++
		return
	}

	if err := d.history.MarkAnalyzed(ctx, d.cfg.FoundersChatID); err != nil {
		slog.ErrorContext(ctx, "advancing founders watermark failed", "error", err)
		stats.Failed++
		return
	}
	stats.Analyzed++
}

func (d *Dispatcher) runFinancePass(ctx context.Context, stats *Stats) {
	if d.finance == nil || d.cfg.FinanceGroupID == "" {
		return
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ChatID:   logger.Ptr(d.cfg.FinanceGroupID),
		Strategy: logger.Ptr(d.finance.Name()),
	})

	text, err := d.history.UnanalyzedText(ctx, d.cfg.FinanceGroupID)
	if err != nil {
		slog.ErrorContext(ctx, "fetching finance messages failed", "error", err)
		stats.Failed++
		return
	}
	if text == "" {
		slog.InfoContext(ctx, "no new finance messages")
		stats.Empty++
		return
	}

	report, err := d.finance.Analyze(ctx, Input{
		Identifier: d.cfg.FinanceGroupID,
		Label:      "Finance",
		Text:       text,
	})
	if err != nil {
		slog.ErrorContext(ctx, "finance analysis failed", "error", err)
		stats.Failed++
		return
	}

	// Zero extracted transactions still advances the watermark: the
	// messages were read, there was just nothing to record.
	if err := d.persist(ctx, report); err != nil {
		slog.ErrorContext(ctx, "persisting finance rows failed", "error", err)
		stats.Failed++
		return
	}

	if err := d.history.MarkAnalyzed(ctx, d.cfg.FinanceGroupID); err != nil {
		slog.ErrorContext(ctx, "advancing finance watermark failed", "error", err)
		stats.Failed++
		return
	}
	stats.Analyzed++

	slog.InfoContext(ctx, "finance pass complete", "transactions", len(report.Rows))
}

func (d *Dispatcher) persist(ctx context.Context, report *Report) error {
	for _, row := range report.Rows {
		if err := d.appender.AppendRow(ctx, report.SpreadsheetID, row); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) excludedChats() map[string]struct{} {
	excluded := make(map[string]struct{}, 3)
	for _, id := range []string{d.cfg.OperatorChatID, d.cfg.FoundersChatID, d.cfg.FinanceGroupID} {
		if id != "" {
			excluded[id] = struct{}{}
		}
	}
	return excluded
}
