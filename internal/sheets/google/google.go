package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"expenses/internal/core"
	"expenses/internal/log"
	ports "expenses/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// maxRowsPerAppend bounds the size of a single Values.Append request.
const maxRowsPerAppend = 500

var _ ports.RecordExporter = (*Client)(nil)

type Config struct {
	SpreadsheetID string
	SheetName     string
	// CredentialsJSON takes precedence over CredentialsFile.
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

// New creates a Sheets client authenticated with a service account. Extra
// client options are appended after the credentials.
func New(ctx context.Context, cfg Config, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	if creds != nil {
		opts = append([]goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}, opts...)
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName, logger), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string, logger *log.Logger) *Client {
	if sheetName == "" {
		sheetName = "Expenses"
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

// credentials returns nil when neither inline JSON nor a file is configured,
// leaving authentication to the caller's options.
func credentials(cfg Config) ([]byte, error) {
	if s := strings.TrimSpace(cfg.CredentialsJSON); s != "" {
		return []byte(s), nil
	}
	if path := strings.TrimSpace(cfg.CredentialsFile); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, nil
}

// Export appends one row per record to the configured sheet.
func (c *Client) Export(ctx context.Context, records []core.Expense) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if len(records) == 0 {
		return nil
	}

	rng := fmt.Sprintf("%s!A:D", c.sheetName)
	exported := 0
	for start := 0; start < len(records); start += maxRowsPerAppend {
		end := min(start+maxRowsPerAppend, len(records))

		values := make([][]any, 0, end-start)
		for _, e := range records[start:end] {
			values = append(values, ports.Row(e))
		}

		resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
		if err != nil {
			err = fmt.Errorf("append rows to %s: %w", c.sheetName, err)
			if exported > 0 {
				return &ports.PartialExportError{Exported: exported, Err: err}
			}
			return err
		}
		exported += len(values)

		updated := int64(len(values))
		if resp != nil && resp.Updates != nil {
			updated = resp.Updates.UpdatedRows
		}
		c.logger.InfoContext(ctx, "Rows exported",
			log.FieldRecords, updated,
			log.FieldOperation, log.OpExport)
	}
	return nil
}
