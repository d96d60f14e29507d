package preprocessing

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/attrisk/pkg/errors"
)

// ColumnKind は予測列の種類
type ColumnKind string

const (
	// KindNumeric はそのまま数値として渡す列
	KindNumeric ColumnKind = "numeric"
	// KindCategorical は値ごとの指示列に展開する列
	KindCategorical ColumnKind = "categorical"
)

// ColumnSpec は1つの入力列をどう特徴量に展開するかを表す
type ColumnSpec struct {
	Name       string     `yaml:"name"`
	Kind       ColumnKind `yaml:"kind"`
	Categories []string   `yaml:"categories,omitempty"`
}

// Width はこの列が生成する特徴量の数
func (c ColumnSpec) Width() int {
	if c.Kind == KindCategorical {
		return len(c.Categories)
	}
	return 1
}

// FeatureNames はこの列が生成する特徴量名を返す。
// カテゴリ列は "<列名>_<値>" になる。
func (c ColumnSpec) FeatureNames() []string {
	if c.Kind != KindCategorical {
		return []string{c.Name}
	}
	names := make([]string, len(c.Categories))
	for i, v := range c.Categories {
		names[i] = c.Name + "_" + v
	}
	return names
}

// Vocabulary はカテゴリ値と特徴量列の対応表。
// 列の順序は入力テーブルの列順で、ラベル列と除外列は含まない。
// YAMLとして保存すれば、別々に読み込んだデータセットでも同じ特徴量スキーマを再現できる。
type Vocabulary struct {
	Label    string       `yaml:"label"`
	Positive string       `yaml:"positive"`
	Columns  []ColumnSpec `yaml:"columns"`
}

// NumFeatures は特徴量の総数
func (v *Vocabulary) NumFeatures() int {
	n := 0
	for _, c := range v.Columns {
		n += c.Width()
	}
	return n
}

// FeatureNames は全特徴量名を行列の列順で返す
func (v *Vocabulary) FeatureNames() []string {
	names := make([]string, 0, v.NumFeatures())
	for _, c := range v.Columns {
		names = append(names, c.FeatureNames()...)
	}
	return names
}

// ColumnsOfKind は指定した種類の列名を返す
func (v *Vocabulary) ColumnsOfKind(kind ColumnKind) []string {
	var names []string
	for _, c := range v.Columns {
		if c.Kind == kind {
			names = append(names, c.Name)
		}
	}
	return names
}

// Validate は対応表の整合性を検証する
func (v *Vocabulary) Validate() error {
	if v.Label == "" {
		return errors.NewValidationError("label", "must not be empty", v.Label)
	}
	seen := make(map[string]bool, len(v.Columns))
	for _, c := range v.Columns {
		if c.Name == "" {
			return errors.NewValidationError("columns.name", "must not be empty", c.Name)
		}
		if seen[c.Name] || c.Name == v.Label {
			return errors.NewValidationError("columns.name", "duplicate column", c.Name)
		}
		seen[c.Name] = true

		switch c.Kind {
		case KindNumeric:
			if len(c.Categories) > 0 {
				return errors.NewValidationError("columns.categories", "numeric column cannot have categories", c.Name)
			}
		case KindCategorical:
			cats := make(map[string]bool, len(c.Categories))
			for _, cat := range c.Categories {
				if cats[cat] {
					return errors.NewValidationError("columns.categories", fmt.Sprintf("duplicate category %q", cat), c.Name)
				}
				cats[cat] = true
			}
		default:
			return errors.NewValidationError("columns.kind", "must be numeric or categorical", string(c.Kind))
		}
	}
	return nil
}

// Save は対応表をYAMLで保存する
func (v *Vocabulary) Save(path string) error {
	b, err := yaml.Marshal(v)
	if err != nil {
		return errors.NewWriteError(path, err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.NewWriteError(path, err)
	}
	return nil
}

// LoadVocabulary はYAMLで保存された対応表を読み込む
func LoadVocabulary(path string) (*Vocabulary, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewFileNotFoundError(path, err)
		}
		return nil, errors.NewFormatError(path, "cannot read vocabulary", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	var v Vocabulary
	if err := dec.Decode(&v); err != nil {
		return nil, errors.NewFormatError(path, "invalid vocabulary yaml", err)
	}
	if err := v.Validate(); err != nil {
		return nil, errors.Wrapf(err, "vocabulary %s", path)
	}
	return &v, nil
}
