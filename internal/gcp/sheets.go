package gcp

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Lllllllleong/qrawareness/internal/models"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// NewSheetsService creates a Sheets API client scoped to spreadsheets.
func NewSheetsService(ctx context.Context, opts ...option.ClientOption) (*sheets.Service, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Sheets service: %w", err)
	}
	return svc, nil
}

// SheetsStore persists session records as rows of one tab, one row per session.
// Column order is models.Columns; row 1 is the header.
type SheetsStore struct {
	service *sheets.Service
	sheetID string
	tab     string
}

func NewSheetsStore(service *sheets.Service, sheetID, tab string) *SheetsStore {
	if tab == "" {
		tab = "Sheet1"
	}
	return &SheetsStore{service: service, sheetID: sheetID, tab: tab}
}

var plainTab = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// a1 qualifies ref with the tab name.
func (s *SheetsStore) a1(ref string) string {
	if plainTab.MatchString(s.tab) {
		return s.tab + "!" + ref
	}
	return "'" + strings.ReplaceAll(s.tab, "'", "''") + "'!" + ref
}

func lastColumn() string {
	return columnLetter(len(models.Columns) - 1)
}

// EnsureInitialized checks the header row and rewrites it when it is missing or wrong.
// Data rows are left untouched.
func (s *SheetsStore) EnsureInitialized(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.sheetID, s.a1("A1:"+lastColumn()+"1")).Context(ctx).Do()
	if err != nil {
		return remoteError("read header", err)
	}
	if headerMatches(resp.Values) {
		return nil
	}
	if err := s.writeHeader(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedSheetState, err)
	}
	return nil
}

// Upsert appends rec as a new row, or, when a row with the same Session_ID exists,
// writes only the cells whose value is non-empty and different.
func (s *SheetsStore) Upsert(ctx context.Context, rec models.Record) error {
	rows, err := s.readRows(ctx)
	if err != nil {
		return err
	}

	if !headerMatches(rows) {
		if err := s.writeHeader(ctx); err != nil {
			return fmt.Errorf("upsert %s: %w: %w", rec.SessionID, ErrMalformedSheetState, err)
		}
		if len(rows) == 0 {
			rows = append(rows, nil)
		}
		rows[0] = toCells(models.Columns)
	}

	newRow := rec.Row()
	idx := findRow(rows, rec.SessionID)
	if idx < 0 {
		vr := &sheets.ValueRange{Values: [][]interface{}{toCells(newRow)}}
		_, err := s.service.Spreadsheets.Values.Append(s.sheetID, s.a1("A:"+lastColumn()), vr).
			ValueInputOption("RAW").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
		if err != nil {
			return remoteError("append "+rec.SessionID, err)
		}
		return nil
	}

	var data []*sheets.ValueRange
	for col, v := range newRow {
		if v == "" || v == cellString(rows[idx], col) {
			continue
		}
		data = append(data, &sheets.ValueRange{
			Range:  s.a1(fmt.Sprintf("%s%d", columnLetter(col), idx+1)),
			Values: [][]interface{}{{v}},
		})
	}
	if len(data) == 0 {
		return nil
	}
	req := &sheets.BatchUpdateValuesRequest{ValueInputOption: "RAW", Data: data}
	if _, err := s.service.Spreadsheets.Values.BatchUpdate(s.sheetID, req).Context(ctx).Do(); err != nil {
		return remoteError("update "+rec.SessionID, err)
	}
	return nil
}

// ReadRecords returns every data row that carries a Session_ID.
func (s *SheetsStore) ReadRecords(ctx context.Context) ([]models.Record, error) {
	rows, err := s.readRows(ctx)
	if err != nil {
		return nil, err
	}
	if headerMatches(rows) {
		rows = rows[1:]
	}
	var records []models.Record
	for _, row := range rows {
		if cellString(row, 0) == "" {
			continue
		}
		cells := make([]string, len(row))
		for c := range row {
			cells[c] = cellString(row, c)
		}
		records = append(records, models.RecordFromRow(cells))
	}
	return records, nil
}

// Reset clears the tab and writes a fresh header.
func (s *SheetsStore) Reset(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Clear(s.sheetID, s.a1("A:Z"), &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return remoteError("clear", err)
	}
	return s.writeHeader(ctx)
}

func (s *SheetsStore) readRows(ctx context.Context) ([][]interface{}, error) {
	resp, err := s.service.Spreadsheets.Values.Get(s.sheetID, s.a1("A:"+lastColumn())).Context(ctx).Do()
	if err != nil {
		return nil, remoteError("read rows", err)
	}
	return resp.Values, nil
}

func (s *SheetsStore) writeHeader(ctx context.Context) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{toCells(models.Columns)}}
	_, err := s.service.Spreadsheets.Values.Update(s.sheetID, s.a1("A1:"+lastColumn()+"1"), vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return remoteError("write header", err)
	}
	return nil
}

// headerMatches compares the first len(models.Columns) cells of row 1; cells past the
// last column are ignored.
func headerMatches(rows [][]interface{}) bool {
	if len(rows) == 0 || len(rows[0]) < len(models.Columns) {
		return false
	}
	for i, name := range models.Columns {
		if cellString(rows[0], i) != name {
			return false
		}
	}
	return true
}

// findRow returns the 0-based index of the row for sessionID, skipping the header.
func findRow(rows [][]interface{}, sessionID string) int {
	for i := 1; i < len(rows); i++ {
		if cellString(rows[i], 0) == sessionID {
			return i
		}
	}
	return -1
}

func cellString(row []interface{}, col int) string {
	if col >= len(row) || row[col] == nil {
		return ""
	}
	return fmt.Sprint(row[col])
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

// columnLetter maps a 0-based column index to its A1 letter(s).
func columnLetter(col int) string {
	name := ""
	for col >= 0 {
		name = string(rune('A'+col%26)) + name
		col = col/26 - 1
	}
	return name
}
