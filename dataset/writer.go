package dataset

import (
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/YuminosukeSato/attrisk/pkg/errors"
)

const defaultSheet = "Sheet1"

// WriteXLSX writes the table to path as a single-sheet workbook.
//
// Cells holding a number in canonical form (as FormatNumber prints it, which
// is also how excelize returns raw numeric cells) are written as numbers;
// every other cell stays text, so codes like "00042" survive unchanged.
// The workbook is built in memory, written to a temporary file next to path
// and renamed over it, so a failed write never leaves a partial file at path.
// An existing path must itself be writable and keeps its permission bits;
// a new file gets 0644. Every failure is reported as a WriteError.
func WriteXLSX(t *Table, path string, opts ...Option) (err error) {
	o := buildOptions(opts)
	if o.Sheet == "" {
		o.Sheet = defaultSheet
	}

	mode, err := destinationMode(path)
	if err != nil {
		return errors.NewWriteError(path, err)
	}

	f, err := buildWorkbook(t, o.Sheet)
	if err != nil {
		return errors.NewWriteError(path, err)
	}
	defer f.Close()

	tmp, err := os.CreateTemp(filepath.Dir(path), ".attrisk-*.xlsx")
	if err != nil {
		return errors.NewWriteError(path, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = f.WriteTo(tmp); err != nil {
		_ = tmp.Close()
		return errors.NewWriteError(path, err)
	}
	if err = tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return errors.NewWriteError(path, err)
	}
	if err = tmp.Close(); err != nil {
		return errors.NewWriteError(path, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return errors.NewWriteError(path, err)
	}
	return nil
}

// destinationMode returns the permission bits for the published file.
// rename only needs write access to the directory, so an existing file is
// opened for writing first to honour its own permissions.
func destinationMode(path string) (os.FileMode, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0o644, nil
		}
		return 0, err
	}
	if info.IsDir() {
		return 0, errors.Newf("%s is a directory", path)
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	return info.Mode().Perm(), nil
}

func buildWorkbook(t *Table, sheet string) (*excelize.File, error) {
	f := excelize.NewFile()
	if sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	header := make([]interface{}, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		_ = f.Close()
		return nil, err
	}

	for r, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		values := make([]interface{}, len(row))
		for i, v := range row {
			values[i] = cellValue(v)
		}
		if err := sw.SetRow(cell, values); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	if err := sw.Flush(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func cellValue(s string) interface{} {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || FormatNumber(v) != s {
		return s
	}
	return v
}
