package attrition

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/attrisk/pkg/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "NHS Attrition Data_UK.xlsx", cfg.Input)
	assert.Equal(t, "NHS_Attrition_Data_with_Risk.xlsx", cfg.Output)
	assert.Equal(t, "Attrition", cfg.Label)
	assert.Equal(t, "AttritionRisk", cfg.RiskColumn)
	assert.Equal(t, 0.3, cfg.TestSize)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, 2000, cfg.LogisticRegression.MaxIter)
	assert.Equal(t, 100, cfg.RandomForest.NEstimators)
	assert.Equal(t, ModelRandomForest, cfg.ScoringModel)
}

func TestParseConfig_OverlaysDefaults(t *testing.T) {
	data := []byte(`
input: staff.csv
excluded_columns: [EmployeeID]
test_size: 0.25
random_forest:
  n_estimators: 20
scoring_model: logistic_regression
`)
	cfg, err := ParseConfig("inline", data)
	require.NoError(t, err)

	assert.Equal(t, "staff.csv", cfg.Input)
	assert.Equal(t, []string{"EmployeeID"}, cfg.ExcludedColumns)
	assert.Equal(t, 0.25, cfg.TestSize)
	assert.Equal(t, 20, cfg.RandomForest.NEstimators)
	assert.Equal(t, ModelLogisticRegression, cfg.ScoringModel)

	// untouched keys keep their defaults, including siblings in nested blocks
	assert.Equal(t, "NHS_Attrition_Data_with_Risk.xlsx", cfg.Output)
	assert.Equal(t, "sqrt", cfg.RandomForest.MaxFeatures)
	assert.Equal(t, int64(42), cfg.Seed)
}

func TestParseConfig_Empty(t *testing.T) {
	cfg, err := ParseConfig("empty", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseConfig_UnknownKey(t *testing.T) {
	_, err := ParseConfig("typo", []byte("tset_size: 0.2\n"))
	require.Error(t, err)

	var fe *errors.FormatError
	assert.True(t, errors.As(err, &fe))
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		param string
	}{
		{"test size too large", "test_size: 1.0", "test_size"},
		{"test size zero", "test_size: 0", "test_size"},
		{"unknown scoring model", "scoring_model: svm", "scoring_model"},
		{"no trees", "random_forest: {n_estimators: 0}", "random_forest.n_estimators"},
		{"zero depth", "random_forest: {max_depth: 0}", "random_forest.max_depth"},
		{"bad solver", "logistic_regression: {solver: lbfgs}", "logistic_regression.solver"},
		{"empty risk column", "risk_column: ''", "risk_column"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig(tt.name, []byte(tt.yaml))
			require.Error(t, err)

			var ve *errors.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.param, ve.ParamName)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attrisk.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seed: 7\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.Seed)
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	var nf *errors.FileNotFoundError
	assert.True(t, errors.As(err, &nf))
}
