package projector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsDestination projects tables as worksheets of one Google
// spreadsheet (DESTINATION_KIND=sheets, DESTINATION_ID=<spreadsheet
// id>), authenticated with a service-account credentials file.
type SheetsDestination struct {
	srv           *sheets.Service
	spreadsheetID string
	log           *zap.Logger

	sheetIDs map[string]int64
}

// headerColor is the fixed header-row background.
var headerColor = &sheets.Color{Red: 0.26, Green: 0.52, Blue: 0.96}

// NewSheetsDestination builds the Sheets client from the
// service-account file at credentialsFile.
func NewSheetsDestination(ctx context.Context, spreadsheetID, credentialsFile string, log *zap.Logger) (*SheetsDestination, error) {
	srv, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("build sheets client: %w", err)
	}
	return &SheetsDestination{
		srv:           srv,
		spreadsheetID: spreadsheetID,
		log:           log,
		sheetIDs:      make(map[string]int64),
	}, nil
}

// wrapAPIError maps authorization failures onto ErrAuthorization so
// the projector can suppress further sync work; everything else passes
// through as a transport error for the retry policy.
func wrapAPIError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == 401 || gerr.Code == 403) {
		return fmt.Errorf("%w: %v", ErrAuthorization, err)
	}
	return err
}

// sheetID resolves (and caches) the numeric sheet ID for a worksheet
// title, creating the worksheet if it does not exist yet.
func (d *SheetsDestination) sheetID(ctx context.Context, table string) (int64, error) {
	if id, ok := d.sheetIDs[table]; ok {
		return id, nil
	}

	ss, err := d.srv.Spreadsheets.Get(d.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, wrapAPIError(err)
	}
	for _, sh := range ss.Sheets {
		d.sheetIDs[sh.Properties.Title] = sh.Properties.SheetId
	}
	if id, ok := d.sheetIDs[table]; ok {
		return id, nil
	}

	resp, err := d.srv.Spreadsheets.BatchUpdate(d.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: table},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return 0, wrapAPIError(err)
	}
	id := resp.Replies[0].AddSheet.Properties.SheetId
	d.sheetIDs[table] = id
	d.log.Info("created worksheet", zap.String("table", table))
	return id, nil
}

// ReplaceTable clears the worksheet and writes header plus rows in one
// update, then re-applies the header formatting.
func (d *SheetsDestination) ReplaceTable(ctx context.Context, table string, header []string, rows [][]string) error {
	sheetID, err := d.sheetID(ctx, table)
	if err != nil {
		return err
	}

	if _, err := d.srv.Spreadsheets.Values.Clear(d.spreadsheetID, table, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return wrapAPIError(err)
	}

	values := make([][]interface{}, 0, len(rows)+1)
	values = append(values, toInterfaces(header))
	for _, row := range rows {
		values = append(values, toInterfaces(row))
	}
	_, err = d.srv.Spreadsheets.Values.Update(d.spreadsheetID, table+"!A1", &sheets.ValueRange{
		Values: values,
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return wrapAPIError(err)
	}

	return d.formatHeader(ctx, sheetID)
}

// formatHeader bolds row 1 and applies the fixed background color.
func (d *SheetsDestination) formatHeader(ctx context.Context, sheetID int64) error {
	_, err := d.srv.Spreadsheets.BatchUpdate(d.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:       sheetID,
					StartRowIndex: 0,
					EndRowIndex:   1,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						BackgroundColor: headerColor,
						TextFormat: &sheets.TextFormat{
							Bold: true,
							ForegroundColor: &sheets.Color{
								Red: 1, Green: 1, Blue: 1,
							},
						},
					},
				},
				Fields: "userEnteredFormat(backgroundColor,textFormat)",
			},
		}},
	}).Context(ctx).Do()
	return wrapAPIError(err)
}

// findRow returns the 1-based spreadsheet row number holding recordID
// in column A, or 0 if absent.
func (d *SheetsDestination) findRow(ctx context.Context, table, recordID string) (int, []string, error) {
	resp, err := d.srv.Spreadsheets.Values.Get(d.spreadsheetID, table).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == 400 {
			return 0, nil, nil // worksheet does not exist yet
		}
		return 0, nil, wrapAPIError(err)
	}
	for i, row := range resp.Values {
		if i == 0 || len(row) == 0 {
			continue // header
		}
		if fmt.Sprint(row[0]) == recordID {
			return i + 1, toStrings(row), nil
		}
	}
	return 0, nil, nil
}

// ReadRow returns the worksheet's current row for recordID. Sheets
// does not expose per-row modification times; the zero time tells the
// projector to report the conflict observation time instead.
func (d *SheetsDestination) ReadRow(ctx context.Context, table, recordID string) ([]string, time.Time, bool, error) {
	rowNum, row, err := d.findRow(ctx, table, recordID)
	if err != nil {
		return nil, time.Time{}, false, err
	}
	if rowNum == 0 {
		return nil, time.Time{}, false, nil
	}
	return row, time.Time{}, true, nil
}

// UpsertRow updates the existing row in place or appends a new one.
// An empty worksheet gets the header written first.
func (d *SheetsDestination) UpsertRow(ctx context.Context, table, recordID string, header []string, row []string) error {
	if _, err := d.sheetID(ctx, table); err != nil {
		return err
	}

	rowNum, _, err := d.findRow(ctx, table, recordID)
	if err != nil {
		return err
	}

	if rowNum > 0 {
		rng := fmt.Sprintf("%s!A%d", table, rowNum)
		_, err = d.srv.Spreadsheets.Values.Update(d.spreadsheetID, rng, &sheets.ValueRange{
			Values: [][]interface{}{toInterfaces(row)},
		}).ValueInputOption("RAW").Context(ctx).Do()
		return wrapAPIError(err)
	}

	resp, err := d.srv.Spreadsheets.Values.Get(d.spreadsheetID, table+"!A1:A1").Context(ctx).Do()
	if err != nil {
		return wrapAPIError(err)
	}
	values := [][]interface{}{}
	if len(resp.Values) == 0 {
		values = append(values, toInterfaces(header))
	}
	values = append(values, toInterfaces(row))

	_, err = d.srv.Spreadsheets.Values.Append(d.spreadsheetID, table, &sheets.ValueRange{
		Values: values,
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return wrapAPIError(err)
}

// DeleteRow removes the row for recordID if present.
func (d *SheetsDestination) DeleteRow(ctx context.Context, table, recordID string) error {
	sheetID, err := d.sheetID(ctx, table)
	if err != nil {
		return err
	}
	rowNum, _, err := d.findRow(ctx, table, recordID)
	if err != nil || rowNum == 0 {
		return err
	}

	_, err = d.srv.Spreadsheets.BatchUpdate(d.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(rowNum - 1),
					EndIndex:   int64(rowNum),
				},
			},
		}},
	}).Context(ctx).Do()
	return wrapAPIError(err)
}

func toInterfaces(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

func toStrings(row []interface{}) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = fmt.Sprint(v)
	}
	return out
}
