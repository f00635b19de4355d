package google

import (
	"context"
	"errors"
	"fmt"
	"sync"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"saldo/internal/core"
	"saldo/internal/log"
	ports "saldo/internal/sheets"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	logger        *log.Logger

	// tabs already known to exist, so steady-state mirrors skip the metadata read
	mu    sync.Mutex
	known map[string]bool
}

// Ensure interface conformance
var _ ports.Mirror = (*Client)(nil)

// New creates a Sheets client authenticated with service account credentials.
func New(ctx context.Context, spreadsheetID string, credentialsJSON []byte, logger *log.Logger) (*Client, error) {
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if len(credentialsJSON) == 0 {
		return nil, errors.New("missing service account credentials")
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, spreadsheetID, logger), nil
}

func NewWithService(svc *gsheet.Service, spreadsheetID string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default(log.ComponentSheets)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		logger:        logger.WithComponent(log.ComponentSheets),
		known:         map[string]bool{},
	}
}

// Mirror clears and rewrites the debts and incomes tabs of scope.
func (c *Client) Mirror(ctx context.Context, scope string, l core.Ledger) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	tabs := ports.Tabs(scope, l)
	if err := c.ensureTabs(ctx, tabs); err != nil {
		return err
	}

	ranges := make([]string, 0, len(tabs))
	data := make([]*gsheet.ValueRange, 0, len(tabs))
	for _, t := range tabs {
		ranges = append(ranges, ports.A1(t.Name, "A:Z"))
		data = append(data, &gsheet.ValueRange{Range: ports.A1(t.Name, "A1"), Values: t.Rows})
	}

	_, err := c.svc.Spreadsheets.Values.BatchClear(c.spreadsheetID,
		&gsheet.BatchClearValuesRequest{Ranges: ranges}).Context(ctx).Do()
	if err != nil {
		c.forget(tabs)
		return fmt.Errorf("clear tabs: %w", err)
	}
	_, err = c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write tabs: %w", err)
	}

	c.logger.DebugContext(ctx, "Ledger mirrored",
		log.FieldScope, scope,
		log.FieldOperation, log.OpMirror,
		"debts", len(l.Debts),
		"incomes", len(l.Incomes))
	return nil
}

// ensureTabs adds any missing tab in a single batch request.
func (c *Client) ensureTabs(ctx context.Context, tabs []ports.Tab) error {
	c.mu.Lock()
	missing := false
	for _, t := range tabs {
		if !c.known[t.Name] {
			missing = true
			break
		}
	}
	c.mu.Unlock()
	if !missing {
		return nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	existing := map[string]bool{}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			existing[sh.Properties.Title] = true
		}
	}

	var reqs []*gsheet.Request
	for _, t := range tabs {
		if !existing[t.Name] {
			reqs = append(reqs, &gsheet.Request{
				AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: t.Name}},
			})
		}
	}
	if len(reqs) > 0 {
		_, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID,
			&gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("add tabs: %w", err)
		}
		c.logger.InfoContext(ctx, "Created mirror tabs", "count", len(reqs))
	}

	c.mu.Lock()
	for _, t := range tabs {
		c.known[t.Name] = true
	}
	c.mu.Unlock()
	return nil
}

// forget drops tabs from the known set, e.g. after they were deleted by hand.
func (c *Client) forget(tabs []ports.Tab) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range tabs {
		delete(c.known, t.Name)
	}
}
