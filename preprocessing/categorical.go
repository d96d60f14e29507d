package preprocessing

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/attrisk/core/model"
	"github.com/YuminosukeSato/attrisk/dataset"
	"github.com/YuminosukeSato/attrisk/pkg/errors"
)

// DefaultPositiveLabel はラベル列で陽性（離職）を表す値
const DefaultPositiveLabel = "Yes"

// CategoricalEncoder は dataset.Table を数値の特徴量行列と0/1の目的変数に変換する。
//
// カテゴリ列は観測された値ごとの指示列（0/1）に置き換えられ、数値列はそのまま渡される。
// 列の順序は入力テーブルの列順に従い、カテゴリ値は辞書順に並ぶ。
// 同じテーブルからは常に同じ列と値が得られる。
//
// 使用例:
//
//	enc := preprocessing.NewCategoricalEncoder("Attrition")
//	X, y, err := enc.FitTransform(table)
//	names := enc.FeatureNames()
type CategoricalEncoder struct {
	model.BaseEstimator

	label       string
	positive    string
	categorical []string
	excluded    []string

	// fixed は外部から与えられた対応表（Fit で学習しない）
	fixed *Vocabulary
	vocab *Vocabulary
}

// EncoderOption は CategoricalEncoder の設定を変更する
type EncoderOption func(*CategoricalEncoder)

// WithCategoricalColumns はカテゴリ列を明示する。
// 指定しない場合、非空のセルが全て数値でない列をカテゴリ列とみなす。
func WithCategoricalColumns(names ...string) EncoderOption {
	return func(e *CategoricalEncoder) {
		e.categorical = append([]string(nil), names...)
	}
}

// WithExcludedColumns は特徴量から除外する列（社員IDなど）を指定する
func WithExcludedColumns(names ...string) EncoderOption {
	return func(e *CategoricalEncoder) {
		e.excluded = append([]string(nil), names...)
	}
}

// WithPositiveLabel は陽性を表すラベル値を指定する（大文字小文字は区別しない）
func WithPositiveLabel(v string) EncoderOption {
	return func(e *CategoricalEncoder) {
		e.positive = v
	}
}

// WithVocabulary は保存済みの対応表を使う。Fit は列の存在確認のみ行う。
// 対応表のラベル列名と陽性値はエンコーダの設定と一致している必要がある。
func WithVocabulary(v *Vocabulary) EncoderOption {
	return func(e *CategoricalEncoder) {
		e.fixed = v
	}
}

// NewCategoricalEncoder は label 列を目的変数とするエンコーダを作成する
func NewCategoricalEncoder(label string, opts ...EncoderOption) *CategoricalEncoder {
	e := &CategoricalEncoder{
		label:    label,
		positive: DefaultPositiveLabel,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fit はテーブルから対応表を学習する。
// ラベル列や指定されたカテゴリ列が無い場合は SchemaError を返す。
func (e *CategoricalEncoder) Fit(t *dataset.Table) error {
	if _, ok := t.ColumnIndex(e.label); !ok {
		return errors.NewSchemaError(e.label, "label", t.Columns)
	}

	if e.fixed != nil {
		if err := e.checkFixed(); err != nil {
			return err
		}
		for _, c := range e.fixed.Columns {
			if _, ok := t.ColumnIndex(c.Name); !ok {
				return errors.NewSchemaError(c.Name, string(c.Kind), t.Columns)
			}
		}
		e.vocab = e.fixed
		e.SetFitted()
		return nil
	}

	categorical, err := e.resolve(t, e.categorical, "categorical")
	if err != nil {
		return err
	}
	excluded, err := e.resolve(t, e.excluded, "excluded")
	if err != nil {
		return err
	}

	v := &Vocabulary{Label: e.label, Positive: e.positive}
	for j, name := range t.Columns {
		if name == e.label || excluded[name] {
			continue
		}

		isCategorical := categorical[name]
		if len(e.categorical) == 0 {
			isCategorical = !isNumericColumn(t, j)
		}

		if !isCategorical {
			v.Columns = append(v.Columns, ColumnSpec{Name: name, Kind: KindNumeric})
			continue
		}
		v.Columns = append(v.Columns, ColumnSpec{
			Name:       name,
			Kind:       KindCategorical,
			Categories: distinctValues(t, j),
		})
	}

	e.vocab = v
	e.SetFitted()
	return nil
}

// resolve は列名の集合を作り、存在しない列があれば SchemaError を返す
func (e *CategoricalEncoder) resolve(t *dataset.Table, names []string, role string) (map[string]bool, error) {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := t.ColumnIndex(name); !ok {
			return nil, errors.NewSchemaError(name, role, t.Columns)
		}
		if name == e.label {
			return nil, errors.NewValidationError(role, "label column cannot be a predictor option", name)
		}
		set[name] = true
	}
	return set, nil
}

// Transform はテーブルを特徴量行列 X (n×特徴量数) と目的変数 y に変換する。
// 学習時に無かったカテゴリ値は全ての指示列が0になる。
func (e *CategoricalEncoder) Transform(t *dataset.Table) (*mat.Dense, *mat.VecDense, error) {
	if err := e.RequireFitted("CategoricalEncoder", "Transform"); err != nil {
		return nil, nil, err
	}

	labelIdx, ok := t.ColumnIndex(e.label)
	if !ok {
		return nil, nil, errors.NewSchemaError(e.label, "label", t.Columns)
	}

	n := t.NumRows()
	width := e.vocab.NumFeatures()
	if n == 0 || width == 0 {
		return nil, nil, errors.NewModelError("CategoricalEncoder.Transform",
			fmt.Sprintf("empty data (%d rows, %d features)", n, width), errors.ErrEmptyData)
	}

	X := mat.NewDense(n, width, nil)
	offset := 0
	for _, c := range e.vocab.Columns {
		j, ok := t.ColumnIndex(c.Name)
		if !ok {
			return nil, nil, errors.NewSchemaError(c.Name, string(c.Kind), t.Columns)
		}

		switch c.Kind {
		case KindCategorical:
			pos := make(map[string]int, len(c.Categories))
			for k, v := range c.Categories {
				pos[v] = k
			}
			for i, row := range t.Rows {
				if k, ok := pos[strings.TrimSpace(row[j])]; ok {
					X.Set(i, offset+k, 1)
				}
			}
		default:
			for i, row := range t.Rows {
				val, err := parseNumeric(row[j])
				if err != nil {
					return nil, nil, errors.NewCellFormatError(t.Source, c.Name, i+2,
						fmt.Sprintf("non-numeric value %q in numeric column", row[j]))
				}
				X.Set(i, offset, val)
			}
		}
		offset += c.Width()
	}

	y := mat.NewVecDense(n, nil)
	for i, row := range t.Rows {
		if e.isPositive(row[labelIdx]) {
			y.SetVec(i, 1)
		}
	}

	return X, y, nil
}

// FitTransform は Fit と Transform を続けて実行する
func (e *CategoricalEncoder) FitTransform(t *dataset.Table) (*mat.Dense, *mat.VecDense, error) {
	if err := e.Fit(t); err != nil {
		return nil, nil, err
	}
	return e.Transform(t)
}

// FeatureNames は特徴量名を行列の列順で返す（未学習なら nil）
func (e *CategoricalEncoder) FeatureNames() []string {
	if e.vocab == nil {
		return nil
	}
	return e.vocab.FeatureNames()
}

// Vocabulary は学習済みの対応表を返す（未学習なら nil）
func (e *CategoricalEncoder) Vocabulary() *Vocabulary {
	return e.vocab
}

// Label は目的変数の列名を返す
func (e *CategoricalEncoder) Label() string {
	return e.label
}

// checkFixed は保存済み対応表が現在のラベル設定と食い違っていないか確認する
func (e *CategoricalEncoder) checkFixed() error {
	if e.fixed.Label != e.label {
		return errors.NewValidationError("vocabulary.label",
			fmt.Sprintf("vocabulary was built for label %q", e.fixed.Label), e.label)
	}
	if e.fixed.Positive != "" && !strings.EqualFold(e.fixed.Positive, e.positive) {
		return errors.NewValidationError("vocabulary.positive",
			fmt.Sprintf("vocabulary was built with positive label %q", e.fixed.Positive), e.positive)
	}
	return nil
}

// isPositive は陽性ラベルと一致するかを返す。
// 既定の "Yes" のときに限り 1 と true も陽性として扱う。
func (e *CategoricalEncoder) isPositive(cell string) bool {
	v := strings.TrimSpace(cell)
	if strings.EqualFold(v, e.positive) {
		return true
	}
	if !strings.EqualFold(e.positive, DefaultPositiveLabel) {
		return false
	}
	return v == "1" || strings.EqualFold(v, "true")
}

func parseNumeric(cell string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}

// isNumericColumn は非空のセルが全て数値として解釈できるかを返す。
// 全て空の列は数値列として扱う。
func isNumericColumn(t *dataset.Table, j int) bool {
	for _, row := range t.Rows {
		cell := strings.TrimSpace(row[j])
		if cell == "" {
			continue
		}
		if _, err := parseNumeric(cell); err != nil {
			return false
		}
	}
	return true
}

// distinctValues は空でない値を重複なく辞書順で返す
func distinctValues(t *dataset.Table, j int) []string {
	seen := make(map[string]struct{})
	for _, row := range t.Rows {
		if cell := strings.TrimSpace(row[j]); cell != "" {
			seen[cell] = struct{}{}
		}
	}
	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}
