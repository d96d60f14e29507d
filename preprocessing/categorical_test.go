package preprocessing

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/attrisk/dataset"
	"github.com/YuminosukeSato/attrisk/internal/synthetic"
	"github.com/YuminosukeSato/attrisk/pkg/errors"
)

func smallTable(t *testing.T) *dataset.Table {
	t.Helper()
	tbl, err := dataset.NewTable(
		[]string{"Age", "Department", "Attrition", "OverTime"},
		[][]string{
			{"41", "Sales", "Yes", "Y"},
			{"49", "Research", "No", "N"},
			{"37", "Research", "yes", "Y"},
			{"33", "HR", "no", "N"},
		},
	)
	require.NoError(t, err)
	return tbl
}

func TestCategoricalEncoder_AutoDetect(t *testing.T) {
	enc := NewCategoricalEncoder("Attrition")
	X, y, err := enc.FitTransform(smallTable(t))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Age",
		"Department_HR", "Department_Research", "Department_Sales",
		"OverTime_N", "OverTime_Y",
	}, enc.FeatureNames())

	r, c := X.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 6, c)
	assert.Equal(t, []float64{41, 0, 0, 1, 0, 1}, X.RawRowView(0))
	assert.Equal(t, []float64{33, 1, 0, 0, 1, 0}, X.RawRowView(3))

	// Yes/yes は陽性、No/no は陰性
	assert.Equal(t, []float64{1, 0, 1, 0}, y.RawVector().Data)
}

func TestCategoricalEncoder_NamedAndExcluded(t *testing.T) {
	enc := NewCategoricalEncoder("Attrition",
		WithCategoricalColumns("Department"),
		WithExcludedColumns("OverTime"),
	)
	X, _, err := enc.FitTransform(smallTable(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"Age", "Department_HR", "Department_Research", "Department_Sales"}, enc.FeatureNames())
	_, c := X.Dims()
	assert.Equal(t, 4, c)
	assert.Equal(t, []string{"Age"}, enc.Vocabulary().ColumnsOfKind(KindNumeric))
}

func TestCategoricalEncoder_PositiveLabel(t *testing.T) {
	tbl, err := dataset.NewTable(
		[]string{"Age", "Left"},
		[][]string{{"30", "1"}, {"31", "0"}, {"32", "TRUE"}, {"33", "Left"}},
	)
	require.NoError(t, err)

	// 既定の陽性ラベルでは 1 と true も陽性
	_, y, err := NewCategoricalEncoder("Left").FitTransform(tbl)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 1, 0}, y.RawVector().Data)

	// 独自の陽性ラベルはその値だけが陽性
	_, y, err = NewCategoricalEncoder("Left", WithPositiveLabel("left")).FitTransform(tbl)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 1}, y.RawVector().Data)
}

func TestCategoricalEncoder_VocabularyMismatch(t *testing.T) {
	enc := NewCategoricalEncoder("Attrition")
	require.NoError(t, enc.Fit(smallTable(t)))
	saved := enc.Vocabulary()

	tests := []struct {
		name  string
		enc   *CategoricalEncoder
		param string
	}{
		{"other label", NewCategoricalEncoder("OverTime", WithVocabulary(saved)), "vocabulary.label"},
		{"other positive", NewCategoricalEncoder("Attrition", WithPositiveLabel("No"), WithVocabulary(saved)), "vocabulary.positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.enc.Fit(smallTable(t))
			var ve *errors.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.param, ve.ParamName)
		})
	}

	// 大文字小文字の違いは許容する
	same := NewCategoricalEncoder("Attrition", WithPositiveLabel("YES"), WithVocabulary(saved))
	assert.NoError(t, same.Fit(smallTable(t)))
}

func TestCategoricalEncoder_SchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		enc  *CategoricalEncoder
		col  string
	}{
		{"missing label", NewCategoricalEncoder("Left"), "Left"},
		{"missing categorical", NewCategoricalEncoder("Attrition", WithCategoricalColumns("JobRole")), "JobRole"},
		{"missing excluded", NewCategoricalEncoder("Attrition", WithExcludedColumns("EmployeeID")), "EmployeeID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.enc.Fit(smallTable(t))
			var se *errors.SchemaError
			require.True(t, errors.As(err, &se), "got %v", err)
			assert.Equal(t, tt.col, se.Column)
			assert.False(t, tt.enc.IsFitted())
		})
	}
}

func TestCategoricalEncoder_NonNumericCell(t *testing.T) {
	enc := NewCategoricalEncoder("Attrition", WithCategoricalColumns("Department", "OverTime"))
	require.NoError(t, enc.Fit(smallTable(t)))

	bad := smallTable(t)
	bad.Rows[2][0] = "thirty"
	_, _, err := enc.Transform(bad)

	var fe *errors.FormatError
	require.True(t, errors.As(err, &fe), "got %v", err)
	assert.Equal(t, "Age", fe.Column)
	assert.Equal(t, 4, fe.Row)
}

func TestCategoricalEncoder_UnseenCategory(t *testing.T) {
	enc := NewCategoricalEncoder("Attrition")
	require.NoError(t, enc.Fit(smallTable(t)))

	other := smallTable(t)
	other.Rows[0][1] = "Finance"
	X, _, err := enc.Transform(other)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, X.RawRowView(0)[1:4])
}

func TestCategoricalEncoder_NotFitted(t *testing.T) {
	_, _, err := NewCategoricalEncoder("Attrition").Transform(smallTable(t))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
	assert.Nil(t, NewCategoricalEncoder("Attrition").FeatureNames())
}

func TestCategoricalEncoder_EmptyTable(t *testing.T) {
	tbl, err := dataset.NewTable([]string{"Age", "Attrition"}, nil)
	require.NoError(t, err)
	_, _, err = NewCategoricalEncoder("Attrition").FitTransform(tbl)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}

func TestCategoricalEncoder_Idempotent(t *testing.T) {
	tbl, err := synthetic.Generate(synthetic.Config{Rows: 200, Positives: 40, Seed: 3})
	require.NoError(t, err)

	enc := NewCategoricalEncoder(synthetic.LabelColumn, WithExcludedColumns("EmployeeID"))
	X1, y1, err := enc.FitTransform(tbl)
	require.NoError(t, err)

	enc2 := NewCategoricalEncoder(synthetic.LabelColumn, WithExcludedColumns("EmployeeID"))
	X2, y2, err := enc2.FitTransform(tbl.Clone())
	require.NoError(t, err)

	assert.Equal(t, enc.FeatureNames(), enc2.FeatureNames())
	assert.Equal(t, X1.RawMatrix().Data, X2.RawMatrix().Data)
	assert.Equal(t, y1.RawVector().Data, y2.RawVector().Data)
}

func TestCategoricalEncoder_FeatureCount(t *testing.T) {
	tbl, err := synthetic.Generate(synthetic.Config{Rows: 1000, Positives: 170, Seed: 42})
	require.NoError(t, err)
	before := tbl.Clone()

	enc := NewCategoricalEncoder(synthetic.LabelColumn, WithExcludedColumns("EmployeeID"))
	X, y, err := enc.FitTransform(tbl)
	require.NoError(t, err)

	r, c := X.Dims()
	assert.Equal(t, 1000, r)
	// 6 numeric + 4 + 5 + 3 indicator columns
	assert.Equal(t, 18, c)
	assert.Len(t, enc.FeatureNames(), 18)

	var positives float64
	for i := 0; i < y.Len(); i++ {
		positives += y.AtVec(i)
	}
	assert.Equal(t, 170.0, positives)

	// テーブル自体は変更されない
	assert.Equal(t, before.Rows, tbl.Rows)
	assert.Equal(t, before.Columns, tbl.Columns)

	// 行の順序が保たれる
	age, err := tbl.Column("Age")
	require.NoError(t, err)
	assert.Equal(t, age[10], formatInt(X.At(10, 0)))
}

func TestCategoricalEncoder_VocabularyRoundTrip(t *testing.T) {
	enc := NewCategoricalEncoder("Attrition")
	require.NoError(t, enc.Fit(smallTable(t)))

	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, enc.Vocabulary().Save(path))

	loaded, err := LoadVocabulary(path)
	require.NoError(t, err)
	assert.Equal(t, enc.Vocabulary(), loaded)

	// 保存した対応表で別のテーブルを変換すると同じ列になる
	other := smallTable(t)
	other.Rows = other.Rows[:1]
	enc2 := NewCategoricalEncoder("Attrition", WithVocabulary(loaded))
	X, _, err := enc2.FitTransform(other)
	require.NoError(t, err)
	_, c := X.Dims()
	assert.Equal(t, 6, c)
	assert.Equal(t, enc.FeatureNames(), enc2.FeatureNames())
}

func TestCategoricalEncoder_InvalidSavedVocabulary(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadVocabulary(filepath.Join(dir, "missing.yaml"))
	var nf *errors.FileNotFoundError
	assert.True(t, errors.As(err, &nf))

	bad := &Vocabulary{Label: "Attrition", Columns: []ColumnSpec{{Name: "Age", Kind: "text"}}}
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, bad.Save(path))
	_, err = LoadVocabulary(path)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve), "got %v", err)
}

func formatInt(v float64) string {
	return dataset.FormatNumber(v)
}
