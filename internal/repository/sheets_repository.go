package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/godilite/feedback-server/internal/feedback"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	DefaultOPDWorksheet = "OPD_Feedback"
	DefaultIPDWorksheet = "IPD_Feedback"

	// RAW keeps timestamps as text instead of letting Sheets coerce them.
	valueInputRaw = "RAW"
	insertRows    = "INSERT_ROWS"
)

// NewSheetsService authorizes a Sheets client with a service-account key file.
// Extra options are appended, so tests can point the client at a fake endpoint.
func NewSheetsService(ctx context.Context, credentialsFile string, opts ...option.ClientOption) (*sheets.Service, error) {
	base := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	if credentialsFile != "" {
		base = append(base, option.WithCredentialsFile(credentialsFile))
	}
	srv, err := sheets.NewService(ctx, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return srv, nil
}

// SheetsRepository appends to and reads one worksheet per category. Row 1 of
// each worksheet is the header.
type SheetsRepository struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	worksheets    map[feedback.Category]string
}

func NewSheetsRepository(srv *sheets.Service, spreadsheetID string, worksheets map[feedback.Category]string) *SheetsRepository {
	ws := map[feedback.Category]string{
		feedback.OPD: DefaultOPDWorksheet,
		feedback.IPD: DefaultIPDWorksheet,
	}
	for c, name := range worksheets {
		if name != "" {
			ws[c] = name
		}
	}
	return &SheetsRepository{
		values:        srv.Spreadsheets.Values,
		spreadsheetID: spreadsheetID,
		worksheets:    ws,
	}
}

func (r *SheetsRepository) worksheet(category feedback.Category) (string, error) {
	name, ok := r.worksheets[category]
	if !ok {
		return "", fmt.Errorf("%w: %q", feedback.ErrUnknownCategory, category)
	}
	return quoteSheet(name), nil
}

// EnsureSchema writes the header row into worksheets whose first row is empty.
func (r *SheetsRepository) EnsureSchema(ctx context.Context) error {
	for _, c := range feedback.Categories {
		ws, err := r.worksheet(c)
		if err != nil {
			return err
		}
		resp, err := r.values.Get(r.spreadsheetID, ws+"!1:1").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("read header of %s: %w", ws, err)
		}
		if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
			continue
		}
		header := &sheets.ValueRange{Values: [][]interface{}{toCells(feedback.Header(c))}}
		if _, err := r.values.Update(r.spreadsheetID, ws+"!A1", header).
			ValueInputOption(valueInputRaw).
			Context(ctx).
			Do(); err != nil {
			return fmt.Errorf("write header of %s: %w", ws, err)
		}
	}
	return nil
}

func (r *SheetsRepository) AppendRow(ctx context.Context, category feedback.Category, record feedback.Record) error {
	ws, err := r.worksheet(category)
	if err != nil {
		return err
	}
	vr := &sheets.ValueRange{Values: [][]interface{}{toCells(record.Row())}}
	_, err = r.values.Append(r.spreadsheetID, ws+"!A1", vr).
		ValueInputOption(valueInputRaw).
		InsertDataOption(insertRows).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", ws, err)
	}
	return nil
}

// ReadAll returns every row below the header. Sheets drops trailing empty
// cells, so rows are padded back to the schema width by RecordFromRow.
func (r *SheetsRepository) ReadAll(ctx context.Context, category feedback.Category) ([]feedback.Record, error) {
	ws, err := r.worksheet(category)
	if err != nil {
		return nil, err
	}
	resp, err := r.values.Get(r.spreadsheetID, ws).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ws, err)
	}
	if len(resp.Values) <= 1 {
		return nil, nil
	}

	results := make([]feedback.Record, 0, len(resp.Values)-1)
	for _, raw := range resp.Values[1:] {
		row := fromCells(raw)
		if blank(row) {
			continue
		}
		results = append(results, feedback.RecordFromRow(row))
	}
	return results, nil
}

func (r *SheetsRepository) Close() error {
	return nil
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func toCells(row []string) []interface{} {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return cells
}

func fromCells(cells []interface{}) []string {
	row := make([]string, len(cells))
	for i, c := range cells {
		if c != nil {
			row[i] = fmt.Sprint(c)
		}
	}
	return row
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
