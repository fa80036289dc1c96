package adapter

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// RowUpdate is one replacement row targeting a specific 1-based sheet row.
type RowUpdate struct {
	Row   int
	Cells []string
}

type Sheets interface {
	// ReadRows returns all rows of the A:E range in stored order,
	// header row included. Cells are decoded as strings; missing cells
	// are returned as empty strings.
	ReadRows(ctx context.Context) ([][]string, error)

	// BatchUpdate writes all updates in a single batched request with
	// RAW value semantics.
	BatchUpdate(ctx context.Context, updates []RowUpdate) error

	// Append appends rows after the last row of existing data with
	// RAW value semantics and INSERT_ROWS insertion.
	Append(ctx context.Context, rows [][]string) error
}

type SheetsClient struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
}

// NewSheets creates a Sheets client authenticated as a service account.
func NewSheets(ctx context.Context, email, privateKey, spreadsheetID, sheetName string) (*SheetsClient, error) {
	conf := &jwt.Config{
		Email:      email,
		PrivateKey: []byte(privateKey),
		Scopes:     []string{sheets.SpreadsheetsScope},
		TokenURL:   google.JWTTokenURL,
	}

	svc, err := sheets.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create sheets service")
	}

	return &SheetsClient{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func (s *SheetsClient) ReadRows(ctx context.Context) ([][]string, error) {
	readRange := fmt.Sprintf("%s!A:E", s.sheetName)
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read sheet values", goerr.V("range", readRange))
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			row = append(row, cellString(cell))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *SheetsClient) BatchUpdate(ctx context.Context, updates []RowUpdate) error {
	data := make([]*sheets.ValueRange, 0, len(updates))
	for _, u := range updates {
		data = append(data, &sheets.ValueRange{
			Range:  fmt.Sprintf("%s!A%d:E%d", s.sheetName, u.Row, u.Row),
			Values: [][]any{cellValues(u.Cells)},
		})
	}

	req := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}
	if _, err := s.svc.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return goerr.Wrap(err, "failed to batch update sheet values", goerr.V("rows", len(updates)))
	}
	return nil
}

func (s *SheetsClient) Append(ctx context.Context, rows [][]string) error {
	values := make([][]any, 0, len(rows))
	for _, row := range rows {
		values = append(values, cellValues(row))
	}

	appendRange := fmt.Sprintf("%s!A:E", s.sheetName)
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, appendRange, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return goerr.Wrap(err, "failed to append sheet rows", goerr.V("rows", len(rows)))
	}
	return nil
}

func cellString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func cellValues(cells []string) []any {
	values := make([]any, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	return values
}
