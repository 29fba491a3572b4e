// Package sheet reads an uploaded spreadsheet (XLSX or CSV) into a header
// line and data lines, with each row's cells joined by " | ".
package sheet

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rotisserie/eris"
)

// Format is a supported spreadsheet container.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// CellSeparator joins the cells of one row.
const CellSeparator = " | "

// ErrUnsupported is returned for uploads that are neither XLSX nor CSV.
var ErrUnsupported = eris.New("sheet: unsupported file type")

// ErrNoRows is returned when the sheet has no non-blank rows.
var ErrNoRows = eris.New("sheet: no rows")

// Options selects what to read.
type Options struct {
	SheetName  string // if set, overrides SheetIndex
	SheetIndex int    // default 0
	Delimiter  rune   // CSV only; sniffed from the first line when 0
}

// Table is a sheet flattened to text lines. The first non-blank row is the
// header; blank rows are dropped.
type Table struct {
	Format   Format
	Sheet    string
	Header   string
	DataRows []string
}

var (
	zipMagic = []byte("PK\x03\x04")
	csvExt   = map[string]bool{".csv": true, ".tsv": true, ".txt": true}
)

// Detect sniffs the container format from content, falling back to the
// file extension for ambiguous content.
func Detect(data []byte, filename string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	m := mimetype.Detect(data)
	switch {
	case m.Is("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"):
		return FormatXLSX, nil
	case ext == ".xlsx" && bytes.HasPrefix(data, zipMagic):
		return FormatXLSX, nil
	case m.Is("text/csv"), m.Is("text/tab-separated-values"):
		return FormatCSV, nil
	case csvExt[ext] && (strings.HasPrefix(m.String(), "text/") || m.Is("application/octet-stream")):
		return FormatCSV, nil
	}
	return "", eris.Wrapf(ErrUnsupported, "%s (%s)", filepath.Base(filename), m.String())
}

// Read parses an uploaded file.
func Read(data []byte, filename string, opts Options) (*Table, error) {
	format, err := Detect(data, filename)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	var name string
	switch format {
	case FormatXLSX:
		rows, name, err = readXLSX(data, opts)
	default:
		rows, err = readCSV(data, opts)
		name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	if err != nil {
		return nil, err
	}

	t := &Table{Format: format, Sheet: name}
	for _, cells := range rows {
		line, ok := JoinCells(cells)
		if !ok {
			continue
		}
		if t.Header == "" {
			t.Header = line
			continue
		}
		t.DataRows = append(t.DataRows, line)
	}
	if t.Header == "" {
		return nil, eris.Wrapf(ErrNoRows, "%s", filepath.Base(filename))
	}
	return t, nil
}

// ReadFile reads and parses a file from disk.
func ReadFile(path string, opts Options) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "sheet: read %s", path)
	}
	return Read(data, path, opts)
}

// JoinCells trims each cell, drops trailing empty cells, and joins the rest
// with CellSeparator. ok is false for a blank row.
func JoinCells(cells []string) (line string, ok bool) {
	trimmed := make([]string, len(cells))
	last := -1
	for i, c := range cells {
		trimmed[i] = strings.TrimSpace(c)
		if trimmed[i] != "" {
			last = i
		}
	}
	if last < 0 {
		return "", false
	}
	return strings.Join(trimmed[:last+1], CellSeparator), true
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, utf8BOM)
}
