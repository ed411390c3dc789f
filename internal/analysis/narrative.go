package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/icagency/secretary/common/llm"
	"github.com/icagency/secretary/common/retry"
)

const salesPersona = `You are a business analyst for a sports club and events agency.
You are reviewing a WhatsApp conversation with a prospect, client or external contact.

Summarize, in a few short sentences:
1. Who the contact is and what they want (play, organize an event, partner, other).
2. Where the conversation stands and any commitments made.
3. The concrete next action for the team, if any.

Be factual. Do not invent details absent from the conversation.`

const adminPersona = `You are the executive assistant to the agency's founders.
You are reviewing a WhatsApp conversation involving one of them.

Produce an ultra-concise digest: decisions taken, tasks assigned, open questions.
Skip pleasantries. Bullet points over prose.`

const employeePersona = `You are an operations analyst for a sports club and events agency.
You are reviewing a WhatsApp conversation with a team member.

Summarize the operational substance: work reported, blockers raised, requests
made to or by the team member. Keep it short and factual.`

const partnerPersona = `You are a partnerships analyst for a sports club and events agency.
You are reviewing a WhatsApp conversation with a business partner.

Summarize the state of the relationship: commitments on each side, deliverables
discussed, risks or friction, and the next step. Keep it short and factual.`

const foundersPersona = `You are the executive assistant to the agency's two co-founders.
You are reviewing their private strategy discussion from the last few days.

Produce a structured digest: strategic decisions, agreed priorities, tasks each
founder took on, and unresolved disagreements. Ultra-concise, bullet points.`

// NarrativeStrategy runs a persona prompt over the transcript and emits one
// [date, label, narrative] row.
type NarrativeStrategy struct {
	name    string
	persona string
	sheetID string
	client  llm.Client
	retry   retry.Config
	now     func() time.Time
}

func newNarrative(name, persona, sheetID string, client llm.Client) *NarrativeStrategy {
	return &NarrativeStrategy{
		name:    name,
		persona: persona,
		sheetID: sheetID,
		client:  client,
		retry:   retry.DefaultConfig,
		now:     time.Now,
	}
}

func NewSalesStrategy(client llm.Client, sheetID string) *NarrativeStrategy {
	return newNarrative("sales", salesPersona, sheetID, client)
}

func NewAdminStrategy(client llm.Client, sheetID string) *NarrativeStrategy {
	return newNarrative("admin", adminPersona, sheetID, client)
}

func NewEmployeeStrategy(client llm.Client, sheetID string) *NarrativeStrategy {
	return newNarrative("employee", employeePersona, sheetID, client)
}

func NewPartnerStrategy(client llm.Client, sheetID string) *NarrativeStrategy {
	return newNarrative("partner", partnerPersona, sheetID, client)
}

func NewFoundersStrategy(client llm.Client, sheetID string) *NarrativeStrategy {
	return newNarrative("founders", foundersPersona, sheetID, client)
}

func (s *NarrativeStrategy) Name() string { return s.name }

func (s *NarrativeStrategy) Analyze(ctx context.Context, in Input) (*Report, error) {
	prompt := fmt.Sprintf("Conversation with %s:\n\n%s", in.Label, in.Text)

	var narrative string
	err := retry.Do(ctx, s.retry, llm.IsRetryable, func(ctx context.Context) error {
		var callErr error
		narrative, callErr = s.client.Complete(ctx, s.persona, prompt)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("%s analysis: %w", s.name, err)
	}

	label := in.Label
	if label == "" {
		label = in.Identifier
	}

	return &Report{
		SpreadsheetID: s.sheetID,
		Rows: [][]any{
			{s.now().Format("2006-01-02"), label, narrative},
		},
	}, nil
}
