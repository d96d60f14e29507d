// Package ensemble はランダムフォレスト分類器を提供する
package ensemble

import (
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/attrisk/core/model"
	"github.com/YuminosukeSato/attrisk/core/parallel"
	"github.com/YuminosukeSato/attrisk/pkg/errors"
	"github.com/YuminosukeSato/attrisk/sklearn/tree"
)

// RandomForestClassifier は決定木のバギング分類器。
//
// 木 i は seed+i の乱数でブートストラップ標本と特徴量サンプリングを行う。
// 木は core/parallel で並列に学習されるが、各木は自分の枠にだけ書き込むため、
// 結果は逐次実行と同じになる。確率は各木の葉のクラス比率の平均。
type RandomForestClassifier struct {
	state *model.StateManager

	// Hyperparameters
	nEstimators     int
	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string
	bootstrap       bool
	randomState     int64
	nJobs           int // 0 以下は CPU コア数

	// Fitted state
	estimators_  []*tree.DecisionTreeClassifier
	classes_     []int
	nFeatures_   int
	importances_ []float64
}

// Option is a functional option for RandomForestClassifier
type Option func(*RandomForestClassifier)

// WithNEstimators sets the number of trees
func WithNEstimators(n int) Option {
	return func(rf *RandomForestClassifier) { rf.nEstimators = n }
}

// WithCriterion sets the split criterion of every tree
func WithCriterion(c string) Option {
	return func(rf *RandomForestClassifier) { rf.criterion = c }
}

// WithMaxDepth limits tree depth; negative means unlimited
func WithMaxDepth(d int) Option {
	return func(rf *RandomForestClassifier) { rf.maxDepth = d }
}

// WithMinSamplesSplit sets the minimum samples to split a node
func WithMinSamplesSplit(n int) Option {
	return func(rf *RandomForestClassifier) { rf.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum samples per leaf
func WithMinSamplesLeaf(n int) Option {
	return func(rf *RandomForestClassifier) { rf.minSamplesLeaf = n }
}

// WithMaxFeatures sets the per-split feature sampling ("sqrt", "log2", "")
func WithMaxFeatures(s string) Option {
	return func(rf *RandomForestClassifier) { rf.maxFeatures = s }
}

// WithBootstrap toggles bootstrap sampling
func WithBootstrap(b bool) Option {
	return func(rf *RandomForestClassifier) { rf.bootstrap = b }
}

// WithRandomState sets the base seed
func WithRandomState(seed int64) Option {
	return func(rf *RandomForestClassifier) { rf.randomState = seed }
}

// WithNJobs sets the number of goroutines used for fitting and prediction
func WithNJobs(n int) Option {
	return func(rf *RandomForestClassifier) { rf.nJobs = n }
}

// NewRandomForestClassifier creates a forest with scikit-learn defaults:
// 100 trees, gini, unlimited depth, sqrt features, bootstrap
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:           model.NewStateManager(),
		nEstimators:     100,
		criterion:       "gini",
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     "sqrt",
		bootstrap:       true,
		randomState:     -1,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

var _ model.Classifier = (*RandomForestClassifier)(nil)

// Fit trains every tree on its own bootstrap sample of X and y
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	if rf.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", rf.nEstimators)
	}
	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("RandomForestClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if r, _ := y.Dims(); r != nSamples {
		return errors.NewDimensionError("RandomForestClassifier.Fit", nSamples, r, 0)
	}

	rf.state.Reset()
	seed := rf.randomState
	if seed < 0 {
		seed = rand.Int63()
	}

	// X を一度だけ密行列に複製し、各木から読み取り専用で共有する
	Xd := mat.DenseCopyOf(X)
	yd := mat.DenseCopyOf(y)

	estimators := make([]*tree.DecisionTreeClassifier, rf.nEstimators)
	errs := make([]error, rf.nEstimators)

	parallel.ParallelizeWorkers(rf.nEstimators, rf.nJobs, func(start, end int) {
		for i := start; i < end; i++ {
			errs[i] = errors.SafeExecute(fmt.Sprintf("RandomForestClassifier.Fit tree %d", i), func() error {
				est, err := rf.fitTree(Xd, yd, seed+int64(i))
				estimators[i] = est
				return err
			})
		}
	})
	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	rf.estimators_ = estimators
	rf.classes_ = estimators[0].Classes()
	rf.nFeatures_ = nFeatures

	rf.importances_ = make([]float64, nFeatures)
	for _, est := range estimators {
		floats.Add(rf.importances_, est.GetFeatureImportances())
	}
	if sum := floats.Sum(rf.importances_); sum > 0 {
		floats.Scale(1/sum, rf.importances_)
	}

	rf.state.SetDimensions(nFeatures, nSamples)
	rf.state.SetFitted()
	return nil
}

// fitTree draws the bootstrap sample for one tree and fits it
func (rf *RandomForestClassifier) fitTree(X, y *mat.Dense, seed int64) (*tree.DecisionTreeClassifier, error) {
	rng := rand.New(rand.NewSource(seed))
	nSamples, _ := X.Dims()

	var weights []float64
	if rf.bootstrap {
		weights = make([]float64, nSamples)
		for k := 0; k < nSamples; k++ {
			weights[rng.Intn(nSamples)]++
		}
	}

	est := tree.NewDecisionTreeClassifier(
		tree.WithCriterion(rf.criterion),
		tree.WithMaxDepth(rf.maxDepth),
		tree.WithMinSamplesSplit(rf.minSamplesSplit),
		tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
		tree.WithMaxFeatures(rf.maxFeatures),
		tree.WithRandomState(rng.Int63()),
	)
	if err := est.FitWeighted(X, y, weights); err != nil {
		return nil, err
	}
	return est, nil
}

// PredictProba returns the mean of the trees' leaf class fractions (n×nClasses)
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.state.RequireFitted("RandomForestClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	_, c := X.Dims()
	if err := rf.state.CheckFeatures("RandomForestClassifier.PredictProba", c); err != nil {
		return nil, err
	}

	perTree := make([]mat.Matrix, len(rf.estimators_))
	errs := make([]error, len(rf.estimators_))
	parallel.ParallelizeWorkers(len(rf.estimators_), rf.nJobs, func(start, end int) {
		for i := start; i < end; i++ {
			perTree[i], errs[i] = rf.estimators_[i].PredictProba(X)
		}
	})

	r, _ := X.Dims()
	sum := mat.NewDense(r, len(rf.classes_), nil)
	for i, p := range perTree {
		if errs[i] != nil {
			return nil, errs[i]
		}
		sum.Add(sum, p)
	}
	sum.Scale(1/float64(len(perTree)), sum)
	return sum, nil
}

// Predict returns the class with the highest mean probability as n×1
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	r, c := proba.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		best := 0
		for k := 1; k < c; k++ {
			if proba.At(i, k) > proba.At(i, best) {
				best = k
			}
		}
		out.Set(i, 0, float64(rf.classes_[best]))
	}
	return out, nil
}

// Score returns the mean accuracy on X and y
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0
	}
	r, _ := X.Dims()
	correct := 0
	for i := 0; i < r; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(r)
}

// IsFitted reports whether Fit has completed
func (rf *RandomForestClassifier) IsFitted() bool {
	return rf.state.IsFitted()
}

// Classes returns the class labels in probability column order
func (rf *RandomForestClassifier) Classes() []int {
	return append([]int(nil), rf.classes_...)
}

// Estimators returns the fitted trees
func (rf *RandomForestClassifier) Estimators() []*tree.DecisionTreeClassifier {
	return append([]*tree.DecisionTreeClassifier(nil), rf.estimators_...)
}

// FeatureImportances returns the mean impurity decrease per feature, summing to 1
func (rf *RandomForestClassifier) FeatureImportances() []float64 {
	return append([]float64(nil), rf.importances_...)
}

// Importance is one entry of a ranked feature importance list
type Importance struct {
	Feature string
	Value   float64
}

// TopFeatures pairs importances with names and returns the k largest,
// ties broken by name
func (rf *RandomForestClassifier) TopFeatures(names []string, k int) ([]Importance, error) {
	if err := rf.state.RequireFitted("RandomForestClassifier", "TopFeatures"); err != nil {
		return nil, err
	}
	if len(names) != len(rf.importances_) {
		return nil, errors.NewDimensionError("RandomForestClassifier.TopFeatures", len(rf.importances_), len(names), 0)
	}
	out := make([]Importance, len(names))
	for i, name := range names {
		out[i] = Importance{Feature: name, Value: rf.importances_[i]}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Value != out[b].Value {
			return out[a].Value > out[b].Value
		}
		return out[a].Feature < out[b].Feature
	})
	if k >= 0 && k < len(out) {
		out = out[:k]
	}
	return out, nil
}

// GetParams returns the model hyperparameters
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.nEstimators,
		"criterion":         rf.criterion,
		"max_depth":         rf.maxDepth,
		"min_samples_split": rf.minSamplesSplit,
		"min_samples_leaf":  rf.minSamplesLeaf,
		"max_features":      rf.maxFeatures,
		"bootstrap":         rf.bootstrap,
		"random_state":      rf.randomState,
		"n_jobs":            rf.nJobs,
	}
}
