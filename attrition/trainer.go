package attrition

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/attrisk/core/model"
	"github.com/YuminosukeSato/attrisk/metrics"
	"github.com/YuminosukeSato/attrisk/pkg/errors"
	"github.com/YuminosukeSato/attrisk/pkg/log"
	"github.com/YuminosukeSato/attrisk/preprocessing"
	"github.com/YuminosukeSato/attrisk/sklearn/ensemble"
	"github.com/YuminosukeSato/attrisk/sklearn/linear_model"
	"github.com/YuminosukeSato/attrisk/sklearn/model_selection"
)

// Evaluation is the holdout evaluation of one fitted model.
type Evaluation struct {
	Name   string
	Model  model.Classifier
	Report *metrics.ClassificationReport
	AUC    float64
	// Proba holds P(attrition) for each holdout row.
	Proba *mat.VecDense
}

// TrainingResult collects everything the trainer produced.
type TrainingResult struct {
	TrainIndex  []int
	TestIndex   []int
	TrainCounts map[int]int
	TestCounts  map[int]int

	Logistic *Evaluation
	Forest   *Evaluation

	// Importances lists the forest's most important features, largest first.
	Importances []ensemble.Importance
}

// Model returns the evaluation for a Config.ScoringModel name.
func (r *TrainingResult) Model(name string) (*Evaluation, error) {
	switch name {
	case ModelRandomForest:
		return r.Forest, nil
	case ModelLogisticRegression:
		return r.Logistic, nil
	}
	return nil, errors.NewValidationError("scoring_model", "must be random_forest or logistic_regression", name)
}

// Trainer splits the encoded data, fits both classifiers and evaluates them
// on the holdout partition.
type Trainer struct {
	cfg    Config
	logger log.Logger
}

// NewTrainer returns a Trainer. A nil logger uses the process logger.
func NewTrainer(cfg Config, logger log.Logger) *Trainer {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &Trainer{cfg: cfg, logger: logger.With(log.ComponentKey, "trainer")}
}

// Train runs the stratified split, fits logistic regression and random
// forest on the training rows and evaluates both on the holdout rows.
// featureNames label the columns of X for the importance ranking.
func (t *Trainer) Train(ctx context.Context, X *mat.Dense, y *mat.VecDense, featureNames []string) (*TrainingResult, error) {
	rows, cols := X.Dims()
	if y.Len() != rows {
		return nil, errors.NewDimensionError("Trainer.Train", rows, y.Len(), 0)
	}
	if len(featureNames) != cols {
		return nil, errors.NewDimensionError("Trainer.Train", cols, len(featureNames), 1)
	}

	trainIdx, testIdx, err := model_selection.StratifiedTrainTestSplit(y, t.cfg.TestSize, t.cfg.Seed)
	if err != nil {
		return nil, err
	}
	XTrain, yTrain := model_selection.TakeRows(X, y, trainIdx)
	XTest, yTest := model_selection.TakeRows(X, y, testIdx)

	res := &TrainingResult{
		TrainIndex:  trainIdx,
		TestIndex:   testIdx,
		TrainCounts: model_selection.ClassCounts(yTrain),
		TestCounts:  model_selection.ClassCounts(yTest),
	}
	if res.TestCounts[0] == 0 || res.TestCounts[1] == 0 {
		return nil, errors.NewInsufficientDataError("Trainer.Train", "holdout partition must contain both classes", res.TestCounts)
	}
	t.logger.Info("Data split",
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.TestSizeKey, t.cfg.TestSize,
		log.RandomSeedKey, t.cfg.Seed,
		"data.train_samples", len(trainIdx),
		"data.test_samples", len(testIdx),
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lr := t.newLogistic()
	res.Logistic, err = t.fitAndEvaluate("LogisticRegression", lr, XTrain, yTrain, XTest, yTest)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rf := t.newForest()
	res.Forest, err = t.fitAndEvaluate("RandomForestClassifier", rf, XTrain, yTrain, XTest, yTest)
	if err != nil {
		return nil, err
	}

	res.Importances, err = rf.TopFeatures(featureNames, t.cfg.TopFeatures)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (t *Trainer) newLogistic() *ScaledClassifier {
	c := t.cfg.LogisticRegression
	lr := linear_model.NewLogisticRegression(
		linear_model.WithLRC(c.C),
		linear_model.WithLRMaxIter(c.MaxIter),
		linear_model.WithLRSolver(c.Solver),
		linear_model.WithLRTol(c.Tol),
		linear_model.WithLRRandomState(t.cfg.Seed),
	)
	return NewScaledClassifier(preprocessing.NewStandardScalerDefault(), lr)
}

func (t *Trainer) newForest() *ensemble.RandomForestClassifier {
	c := t.cfg.RandomForest
	return ensemble.NewRandomForestClassifier(
		ensemble.WithNEstimators(c.NEstimators),
		ensemble.WithMaxDepth(c.MaxDepth),
		ensemble.WithMinSamplesLeaf(c.MinSamplesLeaf),
		ensemble.WithMaxFeatures(c.MaxFeatures),
		ensemble.WithNJobs(c.NJobs),
		ensemble.WithRandomState(t.cfg.Seed),
	)
}

func (t *Trainer) fitAndEvaluate(name string, clf model.Classifier, XTrain *mat.Dense, yTrain *mat.VecDense, XTest *mat.Dense, yTest *mat.VecDense) (*Evaluation, error) {
	logger := t.logger.With(log.ModelNameKey, name)
	start := time.Now()

	err := errors.SafeExecute(name+".Fit", func() error {
		return clf.Fit(XTrain, yTrain)
	})
	if err != nil {
		logger.Error("Model training failed", err, log.OperationKey, log.OperationFit)
		return nil, errors.NewModelError(name+".Fit", "training", err)
	}
	n, _ := XTrain.Dims()
	logger.Info("Model trained",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	pred, err := clf.Predict(XTest)
	if err != nil {
		return nil, err
	}
	proba, err := model.PositiveProba(clf, XTest)
	if err != nil {
		return nil, err
	}
	yPred := firstColumn(pred)

	report, err := metrics.NewClassificationReport(yTest, yPred, nil)
	if err != nil {
		return nil, err
	}
	auc, err := metrics.AUC(yTest, proba)
	if err != nil {
		return nil, err
	}
	logger.Info("Model evaluated",
		log.OperationKey, log.OperationScore,
		log.PhaseKey, log.PhaseValidation,
		log.SamplesKey, yTest.Len(),
		log.AccuracyKey, report.Accuracy,
		log.AUCKey, auc,
	)
	return &Evaluation{Name: name, Model: clf, Report: report, AUC: auc, Proba: proba}, nil
}

func firstColumn(m mat.Matrix) *mat.VecDense {
	r, _ := m.Dims()
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v
}
