package dataset

import (
	"encoding/csv"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/YuminosukeSato/attrisk/pkg/errors"
)

// Options controls how a file is read or written.
type Options struct {
	// Sheet is the worksheet name. Empty means the first sheet when reading
	// and "Sheet1" when writing.
	Sheet string
}

// Option configures Options.
type Option func(*Options)

// WithSheet selects a worksheet by name.
func WithSheet(name string) Option {
	return func(o *Options) {
		o.Sheet = name
	}
}

func buildOptions(opts []Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Load reads a table from path. The format is chosen by extension:
// .xlsx and .xlsm are read with excelize, .csv with encoding/csv.
// The first row is the header. Fully blank rows are skipped and short rows
// are padded with empty cells.
func Load(path string, opts ...Option) (*Table, error) {
	o := buildOptions(opts)

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewFileNotFoundError(path, err)
		}
		return nil, errors.NewFormatError(path, "cannot stat file", err)
	}

	var (
		records [][]string
		err     error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		records, err = readWorkbook(path, o.Sheet)
	case ".csv":
		records, err = readCSV(path)
	default:
		return nil, errors.NewFormatError(path, "unsupported file extension "+ext, nil)
	}
	if err != nil {
		return nil, err
	}

	return buildTable(path, records)
}

func readWorkbook(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.NewFormatError(path, "cannot open workbook", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.NewFormatError(path, "workbook has no sheets", nil)
		}
		sheet = sheets[0]
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, errors.NewFormatError(path, "sheet "+sheet+" not found", err)
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.NewFormatError(path, "cannot read sheet "+sheet, err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewFormatError(path, "cannot open file", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var records [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewFormatError(path, "malformed csv", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func buildTable(path string, records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, errors.NewFormatError(path, "missing header row", nil)
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}
	// excelize keeps trailing empty header cells when a later row is wider
	for len(header) > 0 && header[len(header)-1] == "" {
		header = header[:len(header)-1]
	}
	if err := validateHeader(path, header); err != nil {
		return nil, err
	}

	t := &Table{Columns: header, Source: path}
	for i, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		if len(rec) > len(header) {
			if !isBlank(rec[len(header):]) {
				return nil, errors.NewCellFormatError(path, "", i+2, "row is wider than header")
			}
			rec = rec[:len(header)]
		}
		t.Rows = append(t.Rows, padRow(rec, len(header)))
	}
	return t, nil
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
