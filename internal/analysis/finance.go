package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/icagency/secretary/common/llm"
	"github.com/icagency/secretary/common/retry"
)

const financePersona = `You are a rigorous accountant.
Your task: extract the financial transactions mentioned in this WhatsApp conversation.

Rules:
1. Ignore off-topic chatter.
2. For each transaction capture: date, type (EXPENSE or INCOME), amount,
   description, and who paid.
3. When the date is not explicit, use today's date.
4. When nothing in the conversation is a transaction, return an empty list.`

// Transaction is one extracted finance row. Rows missing an amount or a
// description fail validation and are dropped silently.
type Transaction struct {
	Date        string  `json:"date" jsonschema_description:"Transaction date, YYYY-MM-DD"`
	Type        string  `json:"type" jsonschema:"enum=EXPENSE,enum=INCOME" jsonschema_description:"Direction of the transaction"`
	Amount      float64 `json:"amount" jsonschema_description:"Amount in the conversation's currency"`
	Description string  `json:"description" jsonschema_description:"What the transaction was for"`
	PaidBy      string  `json:"paid_by" jsonschema_description:"Who paid or received"`
}

type transactionList struct {
	Transactions []Transaction `json:"transactions" jsonschema_description:"Every transaction found, possibly empty"`
}

var transactionSchema = llm.GenerateSchema[transactionList]()

// FinanceStrategy extracts structured transactions from the finance group and
// emits one row per valid transaction. An empty extraction is success.
type FinanceStrategy struct {
	sheetID string
	client  llm.Client
	retry   retry.Config
	now     func() time.Time
}

func NewFinanceStrategy(client llm.Client, sheetID string) *FinanceStrategy {
	return &FinanceStrategy{
		sheetID: sheetID,
		client:  client,
		retry:   retry.DefaultConfig,
		now:     time.Now,
	}
}

func (s *FinanceStrategy) Name() string { return "finance" }

func (s *FinanceStrategy) Analyze(ctx context.Context, in Input) (*Report, error) {
	req := llm.Request{
		SystemPrompt: financePersona,
		UserPrompt:   fmt.Sprintf("Conversation to analyze:\n%s", in.Text),
		SchemaName:   "transaction_extraction",
		Schema:       transactionSchema,
		Temperature:  llm.Temp(0),
	}

	var extracted transactionList
	err := retry.Do(ctx, s.retry, llm.IsRetryable, func(ctx context.Context) error {
		_, callErr := s.client.Chat(ctx, req, &extracted)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("finance extraction: %w", err)
	}

	today := s.now().Format("2006-01-02")
	rows := make([][]any, 0, len(extracted.Transactions))
	dropped := 0
	for _, t := range extracted.Transactions {
		if t.Amount == 0 || t.Description == "" {
			dropped++
			continue
		}
		if t.Date == "" {
			t.Date = today
		}
		if t.Type == "" {
			t.Type = "EXPENSE"
		}
		if t.PaidBy == "" {
			t.PaidBy = "Unknown"
		}
		rows = append(rows, []any{t.Date, t.Type, t.Amount, t.Description, t.PaidBy})
	}

	if dropped > 0 {
		slog.DebugContext(ctx, "dropped invalid transactions",
			"dropped", dropped,
			"kept", len(rows))
	}

	return &Report{
		SpreadsheetID: s.sheetID,
		Rows:          rows,
	}, nil
}
