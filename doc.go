// Package attrisk estimates employee attrition risk from an HR spreadsheet.
//
// A run loads the spreadsheet, one-hot encodes its categorical columns,
// trains logistic regression and random forest classifiers on a stratified
// 70/30 split, prints their holdout metrics and writes the spreadsheet back
// with an AttritionRisk column holding each employee's probability of leaving.
//
// # Installation
//
//	go install github.com/YuminosukeSato/attrisk/cmd/attrisk@latest
//
// # Quick Start
//
// With no arguments attrisk reads "NHS Attrition Data_UK.xlsx" from the
// working directory and writes "NHS_Attrition_Data_with_Risk.xlsx":
//
//	attrisk
//
// Generate a synthetic workbook to try it out, then override the defaults:
//
//	attrisk sample -o staff.xlsx
//	attrisk --config attrisk.yaml -i staff.xlsx -o staff_with_risk.xlsx
//
// A configuration file overlays the defaults; unknown keys are rejected:
//
//	excluded_columns: [EmployeeID]
//	test_size: 0.3
//	seed: 42
//	random_forest:
//	  n_estimators: 100
//	scoring_model: random_forest
//	schema_path: vocabulary.yaml
//
// # Packages
//
//   - attrition: configuration, trainer, risk scoring and the Pipeline
//   - dataset: spreadsheet loading (xlsx, csv) and atomic xlsx writing
//   - preprocessing: CategoricalEncoder, Vocabulary, StandardScaler
//   - sklearn/linear_model: binary LogisticRegression
//   - sklearn/tree, sklearn/ensemble: CART trees and RandomForestClassifier
//   - sklearn/model_selection: StratifiedTrainTestSplit
//   - metrics: classification report, ROC AUC, confusion matrix
//   - core/model: estimator interfaces and fitted-state tracking
//   - core/parallel: worker fan-out used by the random forest
//   - pkg/errors, pkg/log: typed errors and structured logging
//
// # Library use
//
//	cfg := attrition.DefaultConfig()
//	cfg.Input = "staff.xlsx"
//	p, err := attrition.NewPipeline(cfg, attrition.WithOutput(os.Stdout))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := p.Run(ctx)
//
// See examples/risk_scoring for the individual stages.
package attrisk
