package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"projectdash/internal/dataprocessing"
)

// utf8BOM lets Excel detect the encoding of downloaded files.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteTableCSV writes the header and every row of t to w, preceded by a
// UTF-8 BOM. Null cells are written as empty fields.
func WriteTableCSV(w io.Writer, t *dataprocessing.Table) error {
	if t == nil {
		return dataprocessing.ErrNilTable
	}
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(t.ColumnNames()); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	record := make([]string, t.ColumnCount())
	for i := 0; i < t.RowCount(); i++ {
		for j := range t.Columns {
			record[j] = t.Columns[j].Values[i].String()
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// CSVFileName is the download name for a sheet export: {project}_{file}_{sheet}.csv
// with characters that are unsafe in file names replaced by underscores.
func CSVFileName(project, file, sheet string) string {
	return SafeFileName(fmt.Sprintf("%s_%s_%s", project, file, sheet)) + ".csv"
}

var unsafeFileChars = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_",
)

// SafeFileName replaces path separators and characters Windows rejects.
func SafeFileName(name string) string {
	return unsafeFileChars.Replace(name)
}
