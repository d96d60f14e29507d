// Package linear_model は線形分類モデルを提供する
package linear_model

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/attrisk/core/model"
	"github.com/YuminosukeSato/attrisk/pkg/errors"
)

// LogisticRegression implements binary logistic regression.
// The objective follows scikit-learn: C·Σ logloss + ½‖w‖² for penalty "l2",
// which is minimized here in its per-sample form with λ = 1/(C·n).
// The intercept is never penalized.
type LogisticRegression struct {
	state *model.StateManager

	// Hyperparameters
	penalty      string  // "l2" or "none"
	C            float64 // Inverse regularization strength
	fitIntercept bool
	randomState  int64  // Seed for the weight initialization, negative means random
	solver       string // "newton" or "gd"
	maxIter      int
	tol          float64 // Stop when the largest gradient component drops below tol

	// Model parameters
	coef_      []float64
	intercept_ float64
	classes_   []int
	nClasses_  int
	nFeatures_ int
	nIter_     int
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		randomState:  -1,
		solver:       "newton",
		maxIter:      100,
		tol:          1e-4,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

var _ model.Classifier = (*LogisticRegression)(nil)

// WithLRPenalty sets the regularization type ("l2" or "none")
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRSolver sets the optimizer ("newton" or "gd")
func WithLRSolver(solver string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.solver = solver
	}
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// WithLRRandomState sets the random seed
func WithLRRandomState(seed int64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.randomState = seed
	}
}

func (lr *LogisticRegression) validateParams() error {
	switch {
	case lr.penalty != "l2" && lr.penalty != "none":
		return errors.NewValidationError("penalty", "must be 'l2' or 'none'", lr.penalty)
	case lr.C <= 0:
		return errors.NewValidationError("C", "must be positive", lr.C)
	case lr.solver != "newton" && lr.solver != "gd":
		return errors.NewValidationError("solver", "must be 'newton' or 'gd'", lr.solver)
	case lr.maxIter <= 0:
		return errors.NewValidationError("max_iter", "must be positive", lr.maxIter)
	case lr.tol <= 0:
		return errors.NewValidationError("tol", "must be positive", lr.tol)
	}
	return nil
}

// Fit trains the model. y is an n×1 column of class labels with exactly two
// distinct values; the larger one is the positive class.
// A ConvergenceWarning is emitted when maxIter is reached before tol.
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	if err := lr.validateParams(); err != nil {
		return err
	}

	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("LogisticRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LogisticRegression.Fit", 1, yCols, 1)
	}

	lr.state.Reset()
	lr.extractClasses(y)
	if lr.nClasses_ != 2 {
		return errors.NewValueError("LogisticRegression.Fit",
			fmt.Sprintf("binary classification requires exactly 2 classes, got %d", lr.nClasses_))
	}
	lr.nFeatures_ = nFeatures

	target := make([]float64, nSamples)
	for i := range target {
		if int(y.At(i, 0)) == lr.classes_[1] {
			target[i] = 1
		}
	}

	lr.initializeWeights(nFeatures)

	var converged bool
	var err error
	switch lr.solver {
	case "gd":
		converged, err = lr.fitGradientDescent(X, target)
	default:
		converged, err = lr.fitNewton(X, target)
	}
	if err != nil {
		return err
	}
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.nIter_,
			"maximum iterations reached; increase max_iter or scale the data"))
	}

	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()
	return nil
}

// extractClasses identifies unique class labels in ascending order
func (lr *LogisticRegression) extractClasses(y mat.Matrix) {
	rows, _ := y.Dims()
	seen := make(map[int]bool)
	lr.classes_ = lr.classes_[:0]
	for i := 0; i < rows; i++ {
		label := int(y.At(i, 0))
		if !seen[label] {
			seen[label] = true
			lr.classes_ = append(lr.classes_, label)
		}
	}
	sort.Ints(lr.classes_)
	lr.nClasses_ = len(lr.classes_)
}

// initializeWeights initializes model weights with small seeded noise
func (lr *LogisticRegression) initializeWeights(nFeatures int) {
	seed := lr.randomState
	if seed < 0 {
		seed = rand.Int63()
	}
	rng := rand.New(rand.NewSource(seed))

	lr.coef_ = make([]float64, nFeatures)
	for j := range lr.coef_ {
		lr.coef_[j] = rng.NormFloat64() * 0.01
	}
	lr.intercept_ = 0
	lr.nIter_ = 0
}

func (lr *LogisticRegression) lambda(nSamples int) float64 {
	if lr.penalty == "none" {
		return 0
	}
	return 1.0 / (lr.C * float64(nSamples))
}

// gradient returns the gradient of the per-sample objective and the
// predicted probabilities at the current weights
func (lr *LogisticRegression) gradient(X mat.Matrix, target []float64, lambda float64) (gradW []float64, gradB float64, p []float64) {
	nSamples, nFeatures := X.Dims()
	p = lr.decision(X)
	for i := range p {
		p[i] = sigmoid(p[i])
	}

	gradW = make([]float64, nFeatures)
	for i := 0; i < nSamples; i++ {
		e := p[i] - target[i]
		gradB += e
		for j := 0; j < nFeatures; j++ {
			gradW[j] += e * X.At(i, j)
		}
	}
	n := float64(nSamples)
	for j := range gradW {
		gradW[j] = gradW[j]/n + lambda*lr.coef_[j]
	}
	gradB /= n
	if !lr.fitIntercept {
		gradB = 0
	}
	return gradW, gradB, p
}

func maxAbs(gradW []float64, gradB float64) float64 {
	m := math.Abs(gradB)
	for _, g := range gradW {
		if a := math.Abs(g); a > m {
			m = a
		}
	}
	return m
}

// fitNewton minimizes the objective with Newton-Raphson steps (IRLS).
// The Hessian is factorized with Cholesky; when it is not positive definite
// the step falls back to a plain gradient step.
func (lr *LogisticRegression) fitNewton(X mat.Matrix, target []float64) (bool, error) {
	nSamples, nFeatures := X.Dims()
	lambda := lr.lambda(nSamples)
	dim := nFeatures + 1
	n := float64(nSamples)

	for iter := 0; iter < lr.maxIter; iter++ {
		gradW, gradB, p := lr.gradient(X, target, lambda)
		lr.nIter_ = iter + 1
		if maxAbs(gradW, gradB) < lr.tol {
			return true, nil
		}

		// 最後の行・列が切片
		hess := mat.NewSymDense(dim, nil)
		for i := 0; i < nSamples; i++ {
			w := p[i] * (1 - p[i]) / n
			for a := 0; a < nFeatures; a++ {
				xa := X.At(i, a)
				if xa == 0 {
					continue
				}
				for b := a; b < nFeatures; b++ {
					hess.SetSym(a, b, hess.At(a, b)+w*xa*X.At(i, b))
				}
				hess.SetSym(a, nFeatures, hess.At(a, nFeatures)+w*xa)
			}
			hess.SetSym(nFeatures, nFeatures, hess.At(nFeatures, nFeatures)+w)
		}
		for a := 0; a < nFeatures; a++ {
			hess.SetSym(a, a, hess.At(a, a)+lambda)
		}
		if !lr.fitIntercept {
			for a := 0; a < nFeatures; a++ {
				hess.SetSym(a, nFeatures, 0)
			}
			hess.SetSym(nFeatures, nFeatures, 1)
		}
		// 完全分離で重みが消える場合の特異性を避ける
		hess.SetSym(nFeatures, nFeatures, hess.At(nFeatures, nFeatures)+1e-10)

		grad := mat.NewVecDense(dim, append(append([]float64(nil), gradW...), gradB))

		var chol mat.Cholesky
		var step mat.VecDense
		if ok := chol.Factorize(hess); ok {
			if err := chol.SolveVecTo(&step, grad); err != nil {
				step.CloneFromVec(grad)
			}
		} else {
			step.CloneFromVec(grad)
		}

		for j := 0; j < nFeatures; j++ {
			lr.coef_[j] -= step.AtVec(j)
		}
		if lr.fitIntercept {
			lr.intercept_ -= step.AtVec(nFeatures)
		}

		if err := errors.CheckNumericalStability("LogisticRegression.newton", lr.coef_, iter); err != nil {
			return false, err
		}
	}

	gradW, gradB, _ := lr.gradient(X, target, lambda)
	return maxAbs(gradW, gradB) < lr.tol, nil
}

// fitGradientDescent minimizes the objective with full-batch gradient
// descent and a decaying learning rate
func (lr *LogisticRegression) fitGradientDescent(X mat.Matrix, target []float64) (bool, error) {
	nSamples, _ := X.Dims()
	lambda := lr.lambda(nSamples)
	baseLearningRate := 1.0

	for iter := 0; iter < lr.maxIter; iter++ {
		gradW, gradB, _ := lr.gradient(X, target, lambda)
		lr.nIter_ = iter + 1
		if maxAbs(gradW, gradB) < lr.tol {
			return true, nil
		}

		learningRate := baseLearningRate / (1.0 + 0.01*float64(iter))
		floats.AddScaled(lr.coef_, -learningRate, gradW)
		lr.intercept_ -= learningRate * gradB

		if err := errors.CheckNumericalStability("LogisticRegression.gd", lr.coef_, iter); err != nil {
			return false, err
		}
	}

	gradW, gradB, _ := lr.gradient(X, target, lambda)
	return maxAbs(gradW, gradB) < lr.tol, nil
}

// decision returns X·w + b for every row
func (lr *LogisticRegression) decision(X mat.Matrix) []float64 {
	nSamples, _ := X.Dims()
	var z mat.VecDense
	z.MulVec(X, mat.NewVecDense(len(lr.coef_), lr.coef_))
	out := make([]float64, nSamples)
	for i := range out {
		out[i] = z.AtVec(i) + lr.intercept_
	}
	return out
}

func (lr *LogisticRegression) checkPredict(X mat.Matrix, method string) error {
	if err := lr.state.RequireFitted("LogisticRegression", method); err != nil {
		return err
	}
	_, c := X.Dims()
	return lr.state.CheckFeatures("LogisticRegression."+method, c)
}

// Predict returns the class label (threshold 0.5) for each row as n×1
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.checkPredict(X, "Predict"); err != nil {
		return nil, err
	}

	z := lr.decision(X)
	predictions := mat.NewDense(len(z), 1, nil)
	for i, v := range z {
		label := lr.classes_[0]
		if sigmoid(v) >= 0.5 {
			label = lr.classes_[1]
		}
		predictions.Set(i, 0, float64(label))
	}
	return predictions, nil
}

// PredictProba returns n×2 class probabilities in Classes() order
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.checkPredict(X, "PredictProba"); err != nil {
		return nil, err
	}

	z := lr.decision(X)
	probas := mat.NewDense(len(z), 2, nil)
	for i, v := range z {
		p := sigmoid(v)
		probas.Set(i, 0, 1-p)
		probas.Set(i, 1, p)
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) float64 {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0.0
	}

	nSamples, _ := X.Dims()
	correct := 0
	for i := 0; i < nSamples; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(nSamples)
}

// IsFitted reports whether Fit has completed
func (lr *LogisticRegression) IsFitted() bool {
	return lr.state.IsFitted()
}

// Classes returns the class labels seen during Fit
func (lr *LogisticRegression) Classes() []int {
	return append([]int(nil), lr.classes_...)
}

// Coef returns a copy of the fitted coefficients
func (lr *LogisticRegression) Coef() []float64 {
	return append([]float64(nil), lr.coef_...)
}

// Intercept returns the fitted intercept
func (lr *LogisticRegression) Intercept() float64 {
	return lr.intercept_
}

// NIter returns the number of iterations run by the last Fit
func (lr *LogisticRegression) NIter() int {
	return lr.nIter_
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"random_state":  lr.randomState,
		"solver":        lr.solver,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
	}
}

// SetParams sets the model hyperparameters
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "penalty":
			lr.penalty, ok = value.(string)
		case "C":
			lr.C, ok = value.(float64)
		case "fit_intercept":
			lr.fitIntercept, ok = value.(bool)
		case "random_state":
			lr.randomState, ok = value.(int64)
		case "solver":
			lr.solver, ok = value.(string)
		case "max_iter":
			lr.maxIter, ok = value.(int)
		case "tol":
			lr.tol, ok = value.(float64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	return lr.validateParams()
}

// sigmoid computes the logistic function without overflowing for large |z|
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1.0 / (1.0 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1.0 + e)
}
