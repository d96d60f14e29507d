package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/YuminosukeSato/attrisk/pkg/errors"
)

// writeFixture creates a workbook with one sheet holding rows.
func writeFixture(t *testing.T, path, sheet string, rows [][]interface{}) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if sheet != "Sheet1" {
		require.NoError(t, f.SetSheetName("Sheet1", sheet))
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

func TestLoad_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "staff.xlsx")
	writeFixture(t, path, "Employees", [][]interface{}{
		{"Age", "Department", "MonthlyIncome", "Attrition"},
		{41, "Sales", 5993.5, "Yes"},
		{49, "Research"},
		{},
		{37, "Research", 2090, "No"},
	})

	tbl, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Age", "Department", "MonthlyIncome", "Attrition"}, tbl.Columns)
	require.Equal(t, 3, tbl.NumRows())
	assert.Equal(t, []string{"41", "Sales", "5993.5", "Yes"}, tbl.Rows[0])
	assert.Equal(t, []string{"49", "Research", "", ""}, tbl.Rows[1])
	assert.Equal(t, "2090", tbl.Rows[2][2])
	assert.Equal(t, path, tbl.Source)
}

func TestLoad_XLSXNamedSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "staff.xlsx")
	writeFixture(t, path, "Employees", [][]interface{}{
		{"Age", "Attrition"},
		{30, "No"},
	})

	tbl, err := Load(path, WithSheet("Employees"))
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.NumRows())

	_, err = Load(path, WithSheet("Missing"))
	var fe *errors.FormatError
	assert.True(t, errors.As(err, &fe), "got %v", err)
}

func TestLoad_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "staff.csv")
	content := "Age, Department ,Attrition\n41,Sales,Yes\n49,Research\n\n37,\"R&D, Labs\",No\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tbl, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Age", "Department", "Attrition"}, tbl.Columns)
	require.Equal(t, 3, tbl.NumRows())
	assert.Equal(t, []string{"49", "Research", ""}, tbl.Rows[1])
	assert.Equal(t, "R&D, Labs", tbl.Rows[2][1])
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.xlsx"))
		var nf *errors.FileNotFoundError
		assert.True(t, errors.As(err, &nf), "got %v", err)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "data.txt")
		require.NoError(t, os.WriteFile(path, []byte("a,b\n"), 0o644))
		_, err := Load(path)
		var fe *errors.FormatError
		assert.True(t, errors.As(err, &fe))
	})

	t.Run("corrupt workbook", func(t *testing.T) {
		path := filepath.Join(dir, "broken.xlsx")
		require.NoError(t, os.WriteFile(path, []byte("not a zip archive"), 0o644))
		_, err := Load(path)
		var fe *errors.FormatError
		assert.True(t, errors.As(err, &fe), "got %v", err)
	})

	t.Run("empty csv", func(t *testing.T) {
		path := filepath.Join(dir, "empty.csv")
		require.NoError(t, os.WriteFile(path, nil, 0o644))
		_, err := Load(path)
		var fe *errors.FormatError
		assert.True(t, errors.As(err, &fe))
	})

	t.Run("duplicate header", func(t *testing.T) {
		path := filepath.Join(dir, "dup.csv")
		require.NoError(t, os.WriteFile(path, []byte("Age,Age\n1,2\n"), 0o644))
		_, err := Load(path)
		var fe *errors.FormatError
		require.True(t, errors.As(err, &fe))
		assert.Contains(t, fe.Reason, "duplicate")
	})

	t.Run("row wider than header", func(t *testing.T) {
		path := filepath.Join(dir, "wide.csv")
		require.NoError(t, os.WriteFile(path, []byte("Age\n1,2\n"), 0o644))
		_, err := Load(path)
		var fe *errors.FormatError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, 2, fe.Row)
	})
}
