package analysis

import (
	"context"
)

// Input is the single capability contract all strategies analyze over: who
// the conversation is with and the transcript slice to analyze.
type Input struct {
	Identifier string // chat id or sender id
	Label      string // display label from the identity router
	Text       string // transcript, "[date] sender: text" lines
}

// Report is a strategy's output bound to its spreadsheet. Zero rows is a
// normal outcome (nothing worth recording), not a failure.
type Report struct {
	SpreadsheetID string
	Rows          [][]any
}

// Strategy turns a transcript into spreadsheet rows. Implementations vary in
// prompt persona and output shape; narrative strategies emit one free-text
// row, the finance strategy emits zero or more structured rows.
type Strategy interface {
	Name() string
	Analyze(ctx context.Context, in Input) (*Report, error)
}
