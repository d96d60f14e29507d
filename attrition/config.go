package attrition

import (
	"bytes"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/attrisk/pkg/errors"
)

// Model names accepted by Config.ScoringModel.
const (
	ModelLogisticRegression = "logistic_regression"
	ModelRandomForest       = "random_forest"
)

// LogisticConfig holds the logistic regression hyperparameters.
type LogisticConfig struct {
	C       float64 `yaml:"c"`
	MaxIter int     `yaml:"max_iter"`
	Solver  string  `yaml:"solver"`
	Tol     float64 `yaml:"tol"`
}

// ForestConfig holds the random forest hyperparameters.
type ForestConfig struct {
	NEstimators    int    `yaml:"n_estimators"`
	MaxDepth       int    `yaml:"max_depth"`
	MinSamplesLeaf int    `yaml:"min_samples_leaf"`
	MaxFeatures    string `yaml:"max_features"`
	NJobs          int    `yaml:"n_jobs"`
}

// Config is the complete run configuration. It is built once at the entry
// point and passed down to every stage.
type Config struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
	Sheet  string `yaml:"sheet"`

	Label              string   `yaml:"label"`
	PositiveLabel      string   `yaml:"positive_label"`
	CategoricalColumns []string `yaml:"categorical_columns"`
	ExcludedColumns    []string `yaml:"excluded_columns"`

	// SchemaPath, when set, receives the fitted vocabulary as YAML.
	SchemaPath string `yaml:"schema_path"`
	// VocabularyPath, when set, fixes the encoding to a previously saved vocabulary.
	VocabularyPath string `yaml:"vocabulary_path"`

	TestSize float64 `yaml:"test_size"`
	Seed     int64   `yaml:"seed"`

	LogisticRegression LogisticConfig `yaml:"logistic_regression"`
	RandomForest       ForestConfig   `yaml:"random_forest"`

	ScoringModel string `yaml:"scoring_model"`
	RiskColumn   string `yaml:"risk_column"`

	TopFeatures int `yaml:"top_features"`
	PreviewRows int `yaml:"preview_rows"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Input:         "NHS Attrition Data_UK.xlsx",
		Output:        "NHS_Attrition_Data_with_Risk.xlsx",
		Label:         "Attrition",
		PositiveLabel: "Yes",
		TestSize:      0.3,
		Seed:          42,
		LogisticRegression: LogisticConfig{
			C:       1.0,
			MaxIter: 2000,
			Solver:  "newton",
			Tol:     1e-4,
		},
		RandomForest: ForestConfig{
			NEstimators:    100,
			MaxDepth:       -1,
			MinSamplesLeaf: 1,
			MaxFeatures:    "sqrt",
		},
		ScoringModel: ModelRandomForest,
		RiskColumn:   "AttritionRisk",
		TopFeatures:  10,
		PreviewRows:  5,
	}
}

// LoadConfig reads a YAML file and overlays it onto DefaultConfig.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Config{}, errors.NewFileNotFoundError(path, err)
		}
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	return ParseConfig(path, data)
}

// ParseConfig decodes YAML bytes onto DefaultConfig and validates the result.
// name is only used in error messages.
func ParseConfig(name string, data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.NewFormatError(name, "invalid config", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and required fields.
func (c Config) Validate() error {
	switch {
	case c.Input == "":
		return errors.NewValidationError("input", "must not be empty", c.Input)
	case c.Output == "":
		return errors.NewValidationError("output", "must not be empty", c.Output)
	case c.Label == "":
		return errors.NewValidationError("label", "must not be empty", c.Label)
	case c.PositiveLabel == "":
		return errors.NewValidationError("positive_label", "must not be empty", c.PositiveLabel)
	case c.RiskColumn == "":
		return errors.NewValidationError("risk_column", "must not be empty", c.RiskColumn)
	case c.TestSize <= 0 || c.TestSize >= 1:
		return errors.NewValidationError("test_size", "must be in (0, 1)", c.TestSize)
	case c.LogisticRegression.C <= 0:
		return errors.NewValidationError("logistic_regression.c", "must be positive", c.LogisticRegression.C)
	case c.LogisticRegression.MaxIter <= 0:
		return errors.NewValidationError("logistic_regression.max_iter", "must be positive", c.LogisticRegression.MaxIter)
	case c.LogisticRegression.Tol <= 0:
		return errors.NewValidationError("logistic_regression.tol", "must be positive", c.LogisticRegression.Tol)
	case c.RandomForest.NEstimators <= 0:
		return errors.NewValidationError("random_forest.n_estimators", "must be positive", c.RandomForest.NEstimators)
	case c.RandomForest.MaxDepth == 0 || c.RandomForest.MaxDepth < -1:
		return errors.NewValidationError("random_forest.max_depth", "must be positive or -1 for unlimited", c.RandomForest.MaxDepth)
	case c.RandomForest.MinSamplesLeaf <= 0:
		return errors.NewValidationError("random_forest.min_samples_leaf", "must be positive", c.RandomForest.MinSamplesLeaf)
	case c.TopFeatures < 0:
		return errors.NewValidationError("top_features", "must not be negative", c.TopFeatures)
	case c.PreviewRows < 0:
		return errors.NewValidationError("preview_rows", "must not be negative", c.PreviewRows)
	}
	switch c.LogisticRegression.Solver {
	case "newton", "gd":
	default:
		return errors.NewValidationError("logistic_regression.solver", "must be newton or gd", c.LogisticRegression.Solver)
	}
	switch c.RandomForest.MaxFeatures {
	case "", "sqrt", "log2":
	default:
		return errors.NewValidationError("random_forest.max_features", "must be sqrt, log2 or empty", c.RandomForest.MaxFeatures)
	}
	switch c.ScoringModel {
	case ModelRandomForest, ModelLogisticRegression:
	default:
		return errors.NewValidationError("scoring_model", "must be random_forest or logistic_regression", c.ScoringModel)
	}
	return nil
}
