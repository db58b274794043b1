// Package sheets implements the spreadsheet sink on top of xlsx workbooks.
// Each created sheet is one workbook file; the sink only accepts writes
// after an access credential has been supplied with Connect.
package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"mercator-hq/scanport/pkg/export"
	"mercator-hq/scanport/pkg/export/encoders"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet that holds exported rows.
const SheetName = "Scans"

// Workbook is a SpreadsheetSink writing one xlsx file per sheet.
type Workbook struct {
	dir     string
	baseURL string
	logger  *slog.Logger

	mu         sync.Mutex
	credential string
	sheets     map[string]*sheetState
}

type sheetState struct {
	path    string
	title   string
	nextRow int
}

// NewWorkbook creates a disconnected Workbook sink writing under dir.
func NewWorkbook(dir, baseURL string, logger *slog.Logger) *Workbook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workbook{
		dir:     dir,
		baseURL: baseURL,
		logger:  logger.With("component", "sheets"),
		sheets:  make(map[string]*sheetState),
	}
}

// Connect establishes the access credential.
func (w *Workbook) Connect(credential string) error {
	if credential == "" {
		return export.ErrAuthRequired
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.credential = credential
	return nil
}

// Disconnect drops the access credential.
func (w *Workbook) Disconnect() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.credential = ""
}

// Connected implements encoders.SpreadsheetSink.
func (w *Workbook) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.credential != ""
}

// CreateSheet implements encoders.SpreadsheetSink.
func (w *Workbook) CreateSheet(ctx context.Context, title string, headers []string, rows [][]string) (*encoders.Sheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.credential == "" {
		return nil, export.ErrAuthRequired
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sheets directory: %w", err)
	}

	id := uuid.NewString()
	path, err := filepath.Abs(filepath.Join(w.dir, id+".xlsx"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sheet path: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("failed to name worksheet: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: title, Creator: "scanport"}); err != nil {
		return nil, fmt.Errorf("failed to set workbook title: %w", err)
	}

	if err := writeRow(f, 1, headers); err != nil {
		return nil, err
	}
	next, err := writeRows(f, 2, rows)
	if err != nil {
		return nil, err
	}

	if err := f.SaveAs(path); err != nil {
		return nil, fmt.Errorf("failed to save workbook: %w", err)
	}

	w.sheets[id] = &sheetState{path: path, title: title, nextRow: next}
	w.logger.Info("sheet created", "sheet_id", id, "rows", len(rows))

	return &encoders.Sheet{
		ID:    id,
		URL:   w.baseURL + path,
		Title: title,
	}, nil
}

// AppendRows implements encoders.SpreadsheetSink.
func (w *Workbook) AppendRows(ctx context.Context, sheetID string, rows [][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.credential == "" {
		return export.ErrAuthRequired
	}
	state, ok := w.sheets[sheetID]
	if !ok {
		return fmt.Errorf("unknown sheet %q", sheetID)
	}

	f, err := excelize.OpenFile(state.path)
	if err != nil {
		return fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	next, err := writeRows(f, state.nextRow, rows)
	if err != nil {
		return err
	}
	if err := f.Save(); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	state.nextRow = next
	return nil
}

// Rows reads every row of a sheet back, header first.
func (w *Workbook) Rows(sheetID string) ([][]string, error) {
	w.mu.Lock()
	state, ok := w.sheets[sheetID]
	w.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown sheet %q", sheetID)
	}

	f, err := excelize.OpenFile(state.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return f.GetRows(SheetName)
}

func writeRows(f *excelize.File, start int, rows [][]string) (int, error) {
	row := start
	for _, r := range rows {
		if err := writeRow(f, row, r); err != nil {
			return row, err
		}
		row++
	}
	return row, nil
}

func writeRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}
