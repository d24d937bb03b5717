// Package google adapts the Google Sheets v4 API to the sheets ports.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"budgetpipe/internal/core"
	"budgetpipe/internal/ledger"
	"budgetpipe/internal/log"
	ports "budgetpipe/internal/sheets"
)

var _ ports.TableStore = (*Client)(nil)

// Options configure a Client. Credentials come from CredentialsJSON, then
// CredentialsFile. ClientOptions, when set, replace credential handling
// entirely (tests point the client at a fake endpoint this way).
type Options struct {
	SpreadsheetID   string
	CredentialsJSON []byte
	CredentialsFile string
	ClientOptions   []goption.ClientOption
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	id := strings.TrimSpace(opts.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	copts, err := clientOptions(opts)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx, copts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	log.FromContext(ctx).WithComponent(log.ComponentSheets).DebugContext(ctx, "Google Sheets service created", "spreadsheet_id", id)
	return &Client{svc: svc, spreadsheetID: id}, nil
}

func clientOptions(opts Options) ([]goption.ClientOption, error) {
	if len(opts.ClientOptions) > 0 {
		return opts.ClientOptions, nil
	}
	creds := opts.CredentialsJSON
	if len(creds) == 0 && opts.CredentialsFile != "" {
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		creds = b
	}
	if len(creds) == 0 {
		return nil, errors.New("missing service account credentials")
	}
	return []goption.ClientOption{
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, nil
}

// WriteTable replaces the tab's content, creating the tab when missing. Cells
// are written RAW so dates and amounts keep their exact text.
func (c *Client) WriteTable(ctx context.Context, sheet string, t core.Table) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if strings.TrimSpace(sheet) == "" {
		return "", errors.New("missing sheet name")
	}
	if err := c.ensureSheet(ctx, sheet); err != nil {
		return "", err
	}

	rng := quoteSheet(sheet)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", sheet, err)
	}

	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng+"!A1", &gsheet.ValueRange{Values: toValues(t)}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", sheet, err)
	}
	return resp.UpdatedRange, nil
}

// ReadTable reads a tab whose first row is a header of column names.
func (c *Client) ReadTable(ctx context.Context, sheet string) (core.Table, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, quoteSheet(sheet)).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusBadRequest {
			return nil, fmt.Errorf("%w: %s", ports.ErrSheetNotFound, sheet)
		}
		return nil, fmt.Errorf("read %s: %w", sheet, err)
	}
	return parseValues(resp.Values)
}

func (c *Client) ensureSheet(ctx context.Context, sheet string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == sheet {
			return nil
		}
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: sheet}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", sheet, err)
	}
	log.FromContext(ctx).WithComponent(log.ComponentSheets).InfoContext(ctx, "Created sheet", "sheet", sheet)
	return nil
}

// quoteSheet renders a tab name for A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func toValues(t core.Table) [][]any {
	cols := t.Columns()
	values := make([][]any, 0, len(t)+1)
	values = append(values, toCells(ledger.Header(cols)))
	for _, row := range ledger.Rows(t, cols) {
		values = append(values, toCells(row))
	}
	return values
}

func toCells(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
