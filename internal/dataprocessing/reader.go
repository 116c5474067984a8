package dataprocessing

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// workbookReader is the read side shared by the xlsx and legacy xls backends.
type workbookReader interface {
	SheetNames() []string
	// Grid returns the header row as display text and the data rows as typed values.
	Grid(sheet string) (header []string, rows [][]Value, err error)
	Close() error
}

// Workbook extensions the loader understands.
const (
	ExtXLSX = ".xlsx"
	ExtXLSM = ".xlsm"
	ExtXLS  = ".xls"
)

// IsWorkbookExt reports whether ext (with dot, any case) is a supported workbook extension.
func IsWorkbookExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ExtXLSX, ExtXLSM, ExtXLS:
		return true
	}
	return false
}

// IsWritable reports whether statistics can be written back to the workbook at path.
func IsWritable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtXLSX, ExtXLSM:
		return true
	}
	return false
}

func openReader(path string) (workbookReader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtXLSX, ExtXLSM:
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, wrapKind(ErrWorkbookOpen, err)
		}
		return newXLSXReader(f), nil
	case ExtXLS:
		return openXLS(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// xlsxReader reads typed cells through excelize.
type xlsxReader struct {
	f         *excelize.File
	date1904  bool
	dateStyle map[int]bool
}

func newXLSXReader(f *excelize.File) *xlsxReader {
	r := &xlsxReader{f: f, dateStyle: make(map[int]bool)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		r.date1904 = *props.Date1904
	}
	return r
}

func (r *xlsxReader) SheetNames() []string {
	return r.f.GetSheetList()
}

func (r *xlsxReader) Close() error {
	return r.f.Close()
}

func (r *xlsxReader) Grid(sheet string) ([]string, [][]Value, error) {
	if idx, err := r.f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, nil, ErrSheetNotFound
	}

	raw, err := r.f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, err
	}
	if len(raw) == 0 {
		return nil, nil, nil
	}

	// Header cells use the formatted text so dates and numbers read as shown.
	header := make([]string, len(raw[0]))
	for c := range raw[0] {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		text, err := r.f.GetCellValue(sheet, cell)
		if err != nil {
			text = raw[0][c]
		}
		header[c] = text
	}

	rows := make([][]Value, 0, len(raw)-1)
	for i := 1; i < len(raw); i++ {
		row := make([]Value, len(raw[i]))
		for c, s := range raw[i] {
			cell, _ := excelize.CoordinatesToCellName(c+1, i+1)
			row[c] = r.cellValue(sheet, cell, s)
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

func (r *xlsxReader) cellValue(sheet, cell, raw string) Value {
	if raw == "" {
		return Null()
	}
	typ, err := r.f.GetCellType(sheet, cell)
	if err != nil {
		return Text(raw)
	}
	switch typ {
	case excelize.CellTypeBool:
		return Boolean(raw == "1" || strings.EqualFold(raw, "true"))
	case excelize.CellTypeError:
		return Null()
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		return Text(raw)
	case excelize.CellTypeDate:
		if t, ok := parseISODate(raw); ok {
			return DateTime(t)
		}
		return Text(raw)
	default:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Text(raw)
		}
		if r.isDateCell(sheet, cell) {
			if t, err := excelize.ExcelDateToTime(f, r.date1904); err == nil {
				return DateTime(t)
			}
		}
		return Number(f)
	}
}

func (r *xlsxReader) isDateCell(sheet, cell string) bool {
	id, err := r.f.GetCellStyle(sheet, cell)
	if err != nil || id == 0 {
		return false
	}
	if known, ok := r.dateStyle[id]; ok {
		return known
	}
	style, err := r.f.GetStyle(id)
	isDate := err == nil && style != nil && isDateFormat(style.NumFmt, style.CustomNumFmt)
	r.dateStyle[id] = isDate
	return isDate
}

var (
	quotedLiteral  = regexp.MustCompile(`"[^"]*"|\\.`)
	bracketSection = regexp.MustCompile(`\[[^\]]*\]`)
)

// isDateFormat reports whether a built-in number format id or a custom format
// code renders a serial number as a date or time.
func isDateFormat(numFmt int, custom *string) bool {
	if custom != nil && *custom != "" {
		code := quotedLiteral.ReplaceAllString(*custom, "")
		// Elapsed-time sections like [h] still count as time.
		if strings.Contains(strings.ToLower(code), "[h]") || strings.Contains(strings.ToLower(code), "[mm]") {
			return true
		}
		code = strings.ToLower(bracketSection.ReplaceAllString(code, ""))
		if i := strings.IndexByte(code, ';'); i >= 0 {
			code = code[:i]
		}
		return strings.ContainsAny(code, "ydhs")
	}
	switch {
	case numFmt >= 14 && numFmt <= 22,
		numFmt >= 27 && numFmt <= 36,
		numFmt >= 45 && numFmt <= 47,
		numFmt >= 50 && numFmt <= 58:
		return true
	}
	return false
}

func parseISODate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// openXLS keeps the file open for the reader's lifetime because sheets are
// parsed lazily from it. The file is closed on every failure path.
func openXLS(path string) (r workbookReader, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapKind(ErrWorkbookOpen, err)
	}
	defer func() {
		if rec := recover(); rec != nil {
			r, err = nil, wrapKind(ErrWorkbookOpen, fmt.Errorf("malformed xls: %v", rec))
		}
		if err != nil {
			f.Close()
		}
	}()

	wb, err := xls.OpenReader(f, "utf-8")
	if err != nil {
		return nil, wrapKind(ErrWorkbookOpen, err)
	}
	if wb == nil {
		return nil, wrapKind(ErrWorkbookOpen, errors.New("no workbook stream"))
	}
	return &xlsReader{f: f, wb: wb}, nil
}

// xlsReader reads legacy BIFF workbooks. Cells arrive as display strings.
type xlsReader struct {
	f  *os.File
	wb *xls.WorkBook
}

func (r *xlsReader) SheetNames() []string {
	names := make([]string, 0, r.wb.NumSheets())
	for i := 0; i < r.wb.NumSheets(); i++ {
		if s := r.wb.GetSheet(i); s != nil {
			names = append(names, s.Name)
		}
	}
	return names
}

func (r *xlsReader) Close() error { return r.f.Close() }

func (r *xlsReader) Grid(sheet string) (header []string, rows [][]Value, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			header, rows, err = nil, nil, fmt.Errorf("malformed xls sheet %q: %v", sheet, rec)
		}
	}()

	var ws *xls.WorkSheet
	for i := 0; i < r.wb.NumSheets(); i++ {
		if s := r.wb.GetSheet(i); s != nil && s.Name == sheet {
			ws = s
			break
		}
	}
	if ws == nil {
		return nil, nil, ErrSheetNotFound
	}

	width := 0
	for i := 0; i <= int(ws.MaxRow); i++ {
		if row := xlsRow(ws, i); row != nil {
			width = max(width, row.LastCol()+1)
		}
	}

	for i := 0; i <= int(ws.MaxRow); i++ {
		cells := make([]string, width)
		if row := xlsRow(ws, i); row != nil {
			for c := range cells {
				cells[c] = row.Col(c)
			}
		}
		if i == 0 {
			header = cells
			continue
		}
		values := make([]Value, len(cells))
		for c, s := range cells {
			values[c] = xlsCellValue(s)
		}
		rows = append(rows, values)
	}
	return header, rows, nil
}

// xlsRow returns nil for rows without any record. WorkSheet.Row dereferences
// the missing entry itself.
func xlsRow(ws *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return ws.Row(i)
}

func xlsCellValue(s string) Value {
	if strings.TrimSpace(s) == "" {
		return Null()
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return Number(f)
	}
	if strings.EqualFold(s, "true") || strings.EqualFold(s, "false") {
		return Boolean(strings.EqualFold(s, "true"))
	}
	return Text(s)
}
