package analysis_test

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/icagency/secretary/internal/analysis"
	"github.com/icagency/secretary/internal/directory"
	"github.com/icagency/secretary/internal/model"
)

type fakeLister struct {
	conversations []model.Conversation
	err           error
}

func (f *fakeLister) ListNeedingAnalysis(context.Context) ([]model.Conversation, error) {
	return f.conversations, f.err
}

type fakeHistory struct {
	unanalyzed map[string]string
	window     map[string]string
	marked     []string
	markErr    error
}

func (f *fakeHistory) UnanalyzedText(_ context.Context, chatID string) (string, error) {
	return f.unanalyzed[chatID], nil
}

func (f *fakeHistory) WindowText(_ context.Context, chatID string, _ time.Duration) (string, error) {
	return f.window[chatID], nil
}

func (f *fakeHistory) MarkAnalyzed(_ context.Context, chatID string) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.marked = append(f.marked, chatID)
	return nil
}

type fakeStrategy struct {
	name        string
	analyzeFunc func(ctx context.Context, in analysis.Input) (*analysis.Report, error)
	inputs      []analysis.Input
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Analyze(ctx context.Context, in analysis.Input) (*analysis.Report, error) {
	f.inputs = append(f.inputs, in)
	if f.analyzeFunc != nil {
		return f.analyzeFunc(ctx, in)
	}
	return &analysis.Report{
		SpreadsheetID: "sheet_" + f.name,
		Rows:          [][]any{{"row", in.Identifier}},
	}, nil
}

type fakeAppender struct {
	appendFunc func(ctx context.Context, spreadsheetID string, row []any) error
	appended   []string
}

func (f *fakeAppender) AppendRow(ctx context.Context, spreadsheetID string, row []any) error {
	if f.appendFunc != nil {
		if err := f.appendFunc(ctx, spreadsheetID, row); err != nil {
			return err
		}
	}
	f.appended = append(f.appended, spreadsheetID)
	return nil
}

var _ = Describe("Dispatcher", func() {
	var (
		ctx      context.Context
		lister   *fakeLister
		hist     *fakeHistory
		appender *fakeAppender
		sales    *fakeStrategy
		router   *directory.Router
	)

	BeforeEach(func() {
		ctx = context.Background()
		lister = &fakeLister{}
		hist = &fakeHistory{
			unanalyzed: map[string]string{},
			window:     map[string]string{},
		}
		appender = &fakeAppender{}
		sales = &fakeStrategy{name: "sales"}
		router = directory.NewRouter(directory.Directory{
			Ignored: []string{"ignored_chat"},
			Admins:  map[string]string{"admin_chat": "Vincent"},
		})
	})

	newDispatcher := func(cfg analysis.Config, founders, finance analysis.Strategy) *analysis.Dispatcher {
		return analysis.NewDispatcher(lister, hist, router, appender,
			map[directory.Role]analysis.Strategy{
				directory.RoleExternal: sales,
				directory.RoleAdmin:    sales,
			},
			founders, finance, cfg)
	}

	Describe("routed pass", func() {
		It("analyzes, persists, then advances the watermark", func() {
			lister.conversations = []model.Conversation{{ChatID: "chat_1"}}
			hist.unanalyzed["chat_1"] = "[date] Alice: hello"

			stats, err := newDispatcher(analysis.Config{}, nil, nil).RunCycle(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Analyzed).To(Equal(1))
			Expect(sales.inputs).To(HaveLen(1))
			Expect(sales.inputs[0].Text).To(Equal("[date] Alice: hello"))
			Expect(appender.appended).To(Equal([]string{"sheet_sales"}))
			Expect(hist.marked).To(Equal([]string{"chat_1"}))
		})

		It("advances the watermark on an empty batch without invoking a strategy", func() {
			lister.conversations = []model.Conversation{{ChatID: "chat_1"}}

			stats, err := newDispatcher(analysis.Config{}, nil, nil).RunCycle(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Empty).To(Equal(1))
			Expect(sales.inputs).To(BeEmpty())
			Expect(hist.marked).To(Equal([]string{"chat_1"}))
		})

		It("skips conversations in the exclusion set", func() {
			lister.conversations = []model.Conversation{
				{ChatID: "operator"},
				{ChatID: "founders"},
				{ChatID: "finance"},
			}

			stats, err := newDispatcher(analysis.Config{
				OperatorChatID: "operator",
				FoundersChatID: "founders",
				FinanceGroupID: "finance",
			}, nil, nil).RunCycle(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Skipped).To(Equal(3))
			Expect(sales.inputs).To(BeEmpty())
		})

		It("advances past ignored conversations without invoking a strategy", func() {
			lister.conversations = []model.Conversation{{ChatID: "ignored_chat"}}
			hist.unanalyzed["ignored_chat"] = "some text"

			stats, err := newDispatcher(analysis.Config{}, nil, nil).RunCycle(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Skipped).To(Equal(1))
			Expect(sales.inputs).To(BeEmpty())
			Expect(hist.marked).To(Equal([]string{"ignored_chat"}))
		})

		It("passes the router label through to the strategy", func() {
			lister.conversations = []model.Conversation{{ChatID: "admin_chat"}}
			hist.unanalyzed["admin_chat"] = "text"

			_, err := newDispatcher(analysis.Config{}, nil, nil).RunCycle(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(sales.inputs[0].Label).To(Equal("Vincent"))
		})

		It("prefers the chat name as label for groups", func() {
			lister.conversations = []model.Conversation{
				{ChatID: "-group1", IsGroup: true, ChatName: "Ops Team"},
			}
			hist.unanalyzed["-group1"] = "text"

			_, err := newDispatcher(analysis.Config{}, nil, nil).RunCycle(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(sales.inputs[0].Label).To(Equal("Ops Team"))
		})

		It("leaves the conversation flagged when the strategy fails", func() {
			lister.conversations = []model.Conversation{{ChatID: "chat_1"}}
			hist.unanalyzed["chat_1"] = "text"
			sales.analyzeFunc = func(context.Context, analysis.Input) (*analysis.Report, error) {
				return nil, fmt.Errorf("model unavailable")
			}

			stats, err := newDispatcher(analysis.Config{}, nil, nil).RunCycle(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Failed).To(Equal(1))
			Expect(hist.marked).To(BeEmpty())
		})

		It("leaves the conversation flagged when persistence fails", func() {
			lister.conversations = []model.Conversation{{ChatID: "chat_1"}}
			hist.unanalyzed["chat_1"] = "text"
			appender.appendFunc = func(context.Context, string, []any) error {
				return fmt.Errorf("quota exceeded")
			}

			stats, err := newDispatcher(analysis.Config{}, nil, nil).RunCycle(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Failed).To(Equal(1))
			Expect(hist.marked).To(BeEmpty())
		})

		It("isolates failures so one conversation never blocks the rest", func() {
			lister.conversations = []model.Conversation{
				{ChatID: "bad"},
				{ChatID: "good"},
			}
			hist.unanalyzed["bad"] = "text"
			hist.unanalyzed["good"] = "text"
			sales.analyzeFunc = func(_ context.Context, in analysis.Input) (*analysis.Report, error) {
				if in.Identifier == "bad" {
					return nil, fmt.Errorf("boom")
				}
				return &analysis.Report{SpreadsheetID: "sheet", Rows: [][]any{{"r"}}}, nil
			}

			stats, err := newDispatcher(analysis.Config{}, nil, nil).RunCycle(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Failed).To(Equal(1))
			Expect(stats.Analyzed).To(Equal(1))
			Expect(hist.marked).To(Equal([]string{"good"}))
		})
	})

	Describe("founders pass", func() {
		It("reads a rolling window and persists the digest", func() {
			founders := &fakeStrategy{name: "founders"}
			hist.window["founders_chat"] = "[date] Vincent: plan"

			stats, err := newDispatcher(analysis.Config{
				FoundersChatID: "founders_chat",
				FoundersLabel:  "Vincent & Me",
			}, founders, nil).RunCycle(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Analyzed).To(Equal(1))
			Expect(founders.inputs[0].Label).To(Equal("Vincent & Me"))
			Expect(founders.inputs[0].Text).To(Equal("[date] Vincent: plan"))
			Expect(hist.marked).To(Equal([]string{"founders_chat"}))
		})

		It("does nothing when the window is empty", func() {
			founders := &fakeStrategy{name: "founders"}

			stats, err := newDispatcher(analysis.Config{
				FoundersChatID: "founders_chat",
			}, founders, nil).RunCycle(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Empty).To(Equal(1))
			Expect(founders.inputs).To(BeEmpty())
			Expect(hist.marked).To(BeEmpty())
		})
	})

	Describe("finance pass", func() {
		It("advances the watermark even when zero transactions are extracted", func() {
			finance := &fakeStrategy{
				name: "finance",
				analyzeFunc: func(context.Context, analysis.Input) (*analysis.Report, error) {
					return &analysis.Report{SpreadsheetID: "sheet_fin", Rows: nil}, nil
				},
			}
			hist.unanalyzed["fin_group"] = "[date] Bob: nothing financial here"

			stats, err := newDispatcher(analysis.Config{
				FinanceGroupID: "fin_group",
			}, nil, finance).RunCycle(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Analyzed).To(Equal(1))
			Expect(appender.appended).To(BeEmpty())
			Expect(hist.marked).To(Equal([]string{"fin_group"}))
		})

		It("appends one row per transaction", func() {
			finance := &fakeStrategy{
				name: "finance",
				analyzeFunc: func(context.Context, analysis.Input) (*analysis.Report, error) {
					return &analysis.Report{
						SpreadsheetID: "sheet_fin",
						Rows: [][]any{
							{"2026-02-01", "EXPENSE", 45.5, "Client dinner", "Vincent"},
							{"2026-02-02", "INCOME", 300.0, "League fees", "Alice"},
						},
					}, nil
				},
			}
			hist.unanalyzed["fin_group"] = "transcript"

			stats, err := newDispatcher(analysis.Config{
				FinanceGroupID: "fin_group",
			}, nil, finance).RunCycle(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Analyzed).To(Equal(1))
			Expect(appender.appended).To(Equal([]string{"sheet_fin", "sheet_fin"}))
		})

		It("keeps the group flagged when persistence fails", func() {
			finance := &fakeStrategy{name: "finance"}
			hist.unanalyzed["fin_group"] = "transcript"
			appender.appendFunc = func(context.Context, string, []any) error {
				return fmt.Errorf("quota exceeded")
			}

			stats, err := newDispatcher(analysis.Config{
				FinanceGroupID: "fin_group",
			}, nil, finance).RunCycle(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Failed).To(Equal(1))
			Expect(hist.marked).To(BeEmpty())
		})
	})

	It("surfaces a listing failure as a cycle error", func() {
		lister.err = fmt.Errorf("store down")

		_, err := newDispatcher(analysis.Config{}, nil, nil).RunCycle(ctx)
		Expect(err).To(HaveOccurred())
	})
})
