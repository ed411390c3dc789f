package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/sheets/v4"

	"github.com/icagency/secretary/common/gcp"
	"github.com/icagency/secretary/common/retry"
)

// Appender persists analysis rows. Implementations must be safe for
// sequential reuse across analysis cycles.
type Appender interface {
	AppendRow(ctx context.Context, spreadsheetID string, row []any) error
}

type Client struct {
	svc   *sheets.Service
	retry retry.Config
}

func NewClient(ctx context.Context, credentials string) (*Client, error) {
	opts := gcp.ClientOptions(credentials)
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	return &Client{
		svc:   svc,
		retry: retry.DefaultConfig,
	}, nil
}

// AppendRow appends one row after the last non-empty row of the first sheet.
// Values go through USER_ENTERED so dates and numbers are typed by the sheet.
func (c *Client) AppendRow(ctx context.Context, spreadsheetID string, row []any) error {
	if spreadsheetID == "" {
		return fmt.Errorf("spreadsheet id is required")
	}

	body := &sheets.ValueRange{
		Values: [][]any{row},
	}

	err := retry.Do(ctx, c.retry, isRetryable, func(ctx context.Context) error {
		_, err := c.svc.Spreadsheets.Values.
			Append(spreadsheetID, "A1", body).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("appending row to %s: %w", spreadsheetID, err)
	}

	slog.DebugContext(ctx, "row appended to sheet",
		"spreadsheet_id", spreadsheetID,
		"cells", len(row))
	return nil
}

func isRetryable(ctx context.Context, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}

	// No structured API error means a network failure.
	return true
}
