package analysis_test

import (
	"context"
	"encoding/json"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/icagency/secretary/common/llm"
	"github.com/icagency/secretary/internal/analysis"
)

type fakeLLM struct {
	chatFunc     func(ctx context.Context, req llm.Request, result any) (*llm.Response, error)
	completeFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

func (f *fakeLLM) Chat(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
	return f.chatFunc(ctx, req, result)
}

func (f *fakeLLM) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.completeFunc(ctx, systemPrompt, userPrompt)
}

func (f *fakeLLM) Model() string { return "fake-model" }

var _ = Describe("NarrativeStrategy", func() {
	It("emits one [date, label, narrative] row", func() {
		client := &fakeLLM{
			completeFunc: func(_ context.Context, _, userPrompt string) (string, error) {
				Expect(userPrompt).To(ContainSubstring("Alice"))
				return "Prospect wants to book a futsal league.", nil
			},
		}

		report, err := analysis.NewSalesStrategy(client, "sheet_sales").Analyze(context.Background(), analysis.Input{
			Identifier: "33612345678",
			Label:      "Alice",
			Text:       "[date] Alice: can we book a league?",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(report.SpreadsheetID).To(Equal("sheet_sales"))
		Expect(report.Rows).To(HaveLen(1))
		Expect(report.Rows[0]).To(HaveLen(3))
		Expect(report.Rows[0][1]).To(Equal("Alice"))
		Expect(report.Rows[0][2]).To(Equal("Prospect wants to book a futsal league."))
	})

	It("falls back to the identifier when no label is set", func() {
		client := &fakeLLM{
			completeFunc: func(context.Context, string, string) (string, error) {
				return "summary", nil
			},
		}

		report, err := analysis.NewSalesStrategy(client, "sheet").Analyze(context.Background(), analysis.Input{
			Identifier: "33612345678",
			Text:       "text",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Rows[0][1]).To(Equal("33612345678"))
	})

	It("surfaces non-retryable failures", func() {
		client := &fakeLLM{
			completeFunc: func(ctx context.Context, _, _ string) (string, error) {
				return "", context.Canceled
			},
		}

		_, err := analysis.NewSalesStrategy(client, "sheet").Analyze(context.Background(), analysis.Input{Text: "text"})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("FinanceStrategy", func() {
	chatReturning := func(payload string) *fakeLLM {
		return &fakeLLM{
			chatFunc: func(_ context.Context, req llm.Request, result any) (*llm.Response, error) {
				Expect(req.Schema).NotTo(BeNil())
				Expect(req.SchemaName).To(Equal("transaction_extraction"))
				if err := json.Unmarshal([]byte(payload), result); err != nil {
					return nil, err
				}
				return &llm.Response{}, nil
			},
		}
	}

	analyze := func(client llm.Client) (*analysis.Report, error) {
		return analysis.NewFinanceStrategy(client, "sheet_fin").Analyze(context.Background(), analysis.Input{
			Identifier: "fin_group",
			Label:      "Finance",
			Text:       "[date] Vincent: paid 45.50 for the client dinner",
		})
	}

	It("emits one row per extracted transaction", func() {
		report, err := analyze(chatReturning(`{
			"transactions": [
				{"date": "2026-02-01", "type": "EXPENSE", "amount": 45.5, "description": "Client dinner", "paid_by": "Vincent"},
				{"date": "2026-02-03", "type": "INCOME", "amount": 300, "description": "League fees", "paid_by": "Alice"}
			]
		}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(report.SpreadsheetID).To(Equal("sheet_fin"))
		Expect(report.Rows).To(HaveLen(2))
		Expect(report.Rows[0]).To(Equal([]any{"2026-02-01", "EXPENSE", 45.5, "Client dinner", "Vincent"}))
	})

	It("drops rows failing validation without aborting the batch", func() {
		report, err := analyze(chatReturning(`{
			"transactions": [
				{"date": "2026-02-01", "type": "EXPENSE", "amount": 0, "description": "no amount", "paid_by": "x"},
				{"date": "2026-02-01", "type": "EXPENSE", "amount": 10, "description": "", "paid_by": "x"},
				{"date": "2026-02-01", "type": "EXPENSE", "amount": 20, "description": "valid", "paid_by": "x"}
			]
		}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Rows).To(HaveLen(1))
		Expect(report.Rows[0][3]).To(Equal("valid"))
	})

	It("fills defaults for optional fields", func() {
		report, err := analyze(chatReturning(`{
			"transactions": [
				{"amount": 12.0, "description": "taxi"}
			]
		}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Rows).To(HaveLen(1))
		Expect(report.Rows[0][0]).NotTo(BeEmpty())
		Expect(report.Rows[0][1]).To(Equal("EXPENSE"))
		Expect(report.Rows[0][4]).To(Equal("Unknown"))
	})

	It("treats an empty extraction as success", func() {
		report, err := analyze(chatReturning(`{"transactions": []}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Rows).To(BeEmpty())
	})

	It("surfaces extraction failures", func() {
		client := &fakeLLM{
			chatFunc: func(ctx context.Context, _ llm.Request, _ any) (*llm.Response, error) {
				return nil, fmt.Errorf("%w", context.Canceled)
			},
		}
		_, err := analyze(client)
		Expect(err).To(HaveOccurred())
	})
})
