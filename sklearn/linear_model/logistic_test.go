package linear_model

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/attrisk/pkg/errors"
)

// separable returns two clusters around (1,1) and (3,3)
func separable() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(6, 2, []float64{
		0.5, 0.5,
		1.0, 1.5,
		1.5, 1.0,
		3.0, 2.5,
		2.5, 3.0,
		3.5, 3.5,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})
	return X, y
}

// noisy returns a linearly generated problem with label noise
func noisy(n int, seed int64) (*mat.Dense, *mat.Dense) {
	return noisyWith(n, seed, 0.5)
}

func noisyWith(n int, seed int64, noise float64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewSource(seed))
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a, b, c := rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()
		X.SetRow(i, []float64{a, b, c})
		z := 2*a - b + 0.5 + rng.NormFloat64()*noise
		if z > 0 {
			y.Set(i, 0, 1)
		}
	}
	return X, y
}

func TestLogisticRegression_FitPredict_Binary(t *testing.T) {
	for _, solver := range []string{"newton", "gd"} {
		t.Run(solver, func(t *testing.T) {
			X, y := separable()
			lr := NewLogisticRegression(
				WithLRSolver(solver),
				WithLRMaxIter(2000),
				WithLRRandomState(42),
			)
			if err := lr.Fit(X, y); err != nil {
				t.Fatalf("Failed to fit model: %v", err)
			}

			predictions, err := lr.Predict(X)
			if err != nil {
				t.Fatalf("Failed to predict: %v", err)
			}
			for i := 0; i < 6; i++ {
				if predictions.At(i, 0) != y.At(i, 0) {
					t.Errorf("Sample %d: expected %v, got %v", i, y.At(i, 0), predictions.At(i, 0))
				}
			}

			XTest := mat.NewDense(2, 2, []float64{1.0, 1.0, 3.0, 3.0})
			testPreds, err := lr.Predict(XTest)
			if err != nil {
				t.Fatalf("Failed to predict on test data: %v", err)
			}
			if testPreds.At(0, 0) != 0 || testPreds.At(1, 0) != 1 {
				t.Errorf("unexpected predictions %v", mat.Formatted(testPreds))
			}
		})
	}
}

func TestLogisticRegression_PredictProba(t *testing.T) {
	X, y := noisy(300, 1)
	lr := NewLogisticRegression(WithLRRandomState(42))
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	probas, err := lr.PredictProba(X)
	if err != nil {
		t.Fatalf("Failed to predict proba: %v", err)
	}
	rows, cols := probas.Dims()
	if rows != 300 || cols != 2 {
		t.Fatalf("expected 300x2, got %dx%d", rows, cols)
	}
	for i := 0; i < rows; i++ {
		p0, p1 := probas.At(i, 0), probas.At(i, 1)
		if p0 < 0 || p0 > 1 || p1 < 0 || p1 > 1 {
			t.Errorf("row %d: probabilities out of range: %v, %v", i, p0, p1)
		}
		if math.Abs(p0+p1-1) > 1e-12 {
			t.Errorf("row %d: probabilities do not sum to 1: %v", i, p0+p1)
		}
	}

	if got := lr.Classes(); len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("unexpected classes %v", got)
	}
}

func TestLogisticRegression_Score(t *testing.T) {
	X, y := noisy(400, 2)
	lr := NewLogisticRegression(WithLRRandomState(42))
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}
	if score := lr.Score(X, y); score < 0.8 {
		t.Errorf("expected accuracy >= 0.8, got %v", score)
	}
}

// 両ソルバーは同じ目的関数を最小化するので係数がほぼ一致する
func TestLogisticRegression_SolversAgree(t *testing.T) {
	X, y := noisyWith(200, 3, 2.0)

	newton := NewLogisticRegression(WithLRRandomState(42), WithLRTol(1e-8))
	if err := newton.Fit(X, y); err != nil {
		t.Fatalf("newton: %v", err)
	}
	gd := NewLogisticRegression(WithLRSolver("gd"), WithLRMaxIter(20000), WithLRRandomState(42), WithLRTol(1e-6))
	if err := gd.Fit(X, y); err != nil {
		t.Fatalf("gd: %v", err)
	}

	for j, c := range newton.Coef() {
		if math.Abs(c-gd.Coef()[j]) > 1e-2 {
			t.Errorf("coef %d: newton %v, gd %v", j, c, gd.Coef()[j])
		}
	}
	if math.Abs(newton.Intercept()-gd.Intercept()) > 1e-2 {
		t.Errorf("intercept: newton %v, gd %v", newton.Intercept(), gd.Intercept())
	}
	if newton.NIter() >= gd.NIter() {
		t.Errorf("expected newton to need fewer iterations: %d vs %d", newton.NIter(), gd.NIter())
	}
}

func TestLogisticRegression_Regularization(t *testing.T) {
	X, y := noisy(200, 4)

	strong := NewLogisticRegression(WithLRC(0.001), WithLRRandomState(42))
	weak := NewLogisticRegression(WithLRC(100.0), WithLRRandomState(42))
	if err := strong.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if err := weak.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	norm := func(w []float64) float64 {
		var s float64
		for _, v := range w {
			s += v * v
		}
		return math.Sqrt(s)
	}
	if norm(strong.Coef()) >= norm(weak.Coef()) {
		t.Errorf("strong regularization should shrink weights: %v vs %v", norm(strong.Coef()), norm(weak.Coef()))
	}
}

func TestLogisticRegression_Deterministic(t *testing.T) {
	X, y := noisy(150, 5)
	a := NewLogisticRegression(WithLRSolver("gd"), WithLRMaxIter(50), WithLRRandomState(42))
	b := NewLogisticRegression(WithLRSolver("gd"), WithLRMaxIter(50), WithLRRandomState(42))

	errors.SetWarningHandler(func(error) {})
	defer errors.SetWarningHandler(nil)

	if err := a.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if err := b.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	for j := range a.Coef() {
		if a.Coef()[j] != b.Coef()[j] {
			t.Fatalf("coef %d differs: %v vs %v", j, a.Coef()[j], b.Coef()[j])
		}
	}
}

func TestLogisticRegression_ConvergenceWarning(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(nil)

	X, y := noisy(100, 6)
	lr := NewLogisticRegression(WithLRSolver("gd"), WithLRMaxIter(2), WithLRRandomState(42))
	if err := lr.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
	var cw *errors.ConvergenceWarning
	if !errors.As(warnings[0], &cw) {
		t.Fatalf("expected ConvergenceWarning, got %T", warnings[0])
	}
	if cw.Iterations != 2 {
		t.Errorf("expected 2 iterations, got %d", cw.Iterations)
	}
}

func TestLogisticRegression_Errors(t *testing.T) {
	X, y := separable()

	t.Run("single class", func(t *testing.T) {
		lr := NewLogisticRegression()
		err := lr.Fit(X, mat.NewDense(6, 1, nil))
		var ve *errors.ValueError
		if !errors.As(err, &ve) {
			t.Errorf("expected ValueError, got %v", err)
		}
	})

	t.Run("three classes", func(t *testing.T) {
		lr := NewLogisticRegression()
		err := lr.Fit(X, mat.NewDense(6, 1, []float64{0, 1, 2, 0, 1, 2}))
		if err == nil {
			t.Error("expected error for multiclass target")
		}
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		lr := NewLogisticRegression()
		err := lr.Fit(X, mat.NewDense(5, 1, nil))
		var de *errors.DimensionError
		if !errors.As(err, &de) {
			t.Errorf("expected DimensionError, got %v", err)
		}
	})

	t.Run("invalid C", func(t *testing.T) {
		lr := NewLogisticRegression(WithLRC(0))
		err := lr.Fit(X, y)
		var ve *errors.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("expected ValidationError, got %v", err)
		}
	})

	t.Run("feature count at predict", func(t *testing.T) {
		lr := NewLogisticRegression()
		if err := lr.Fit(X, y); err != nil {
			t.Fatal(err)
		}
		_, err := lr.PredictProba(mat.NewDense(1, 3, nil))
		var de *errors.DimensionError
		if !errors.As(err, &de) {
			t.Errorf("expected DimensionError, got %v", err)
		}
	})
}

func TestLogisticRegression_GetSetParams(t *testing.T) {
	lr := NewLogisticRegression()

	params := lr.GetParams()
	if params["C"] != 1.0 || params["penalty"] != "l2" || params["max_iter"] != 100 {
		t.Errorf("unexpected defaults: %v", params)
	}

	err := lr.SetParams(map[string]interface{}{
		"C":        2.0,
		"max_iter": 200,
		"penalty":  "none",
		"tol":      1e-5,
	})
	if err != nil {
		t.Fatalf("Failed to set params: %v", err)
	}
	if lr.C != 2.0 || lr.maxIter != 200 || lr.penalty != "none" || lr.tol != 1e-5 {
		t.Errorf("params not updated: %v", lr.GetParams())
	}

	if err := lr.SetParams(map[string]interface{}{"alpha": 1.0}); err == nil {
		t.Error("expected error for unknown parameter")
	}
	if err := lr.SetParams(map[string]interface{}{"C": "big"}); err == nil {
		t.Error("expected error for wrong type")
	}
	if err := lr.SetParams(map[string]interface{}{"penalty": "l1"}); err == nil {
		t.Error("expected error for unsupported penalty")
	}
}

func TestLogisticRegression_NotFitted(t *testing.T) {
	lr := NewLogisticRegression()
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	_, err := lr.Predict(X)
	var nf *errors.NotFittedError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFittedError from Predict, got %v", err)
	}
	_, err = lr.PredictProba(X)
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFittedError from PredictProba, got %v", err)
	}
	if lr.IsFitted() {
		t.Error("expected IsFitted to be false")
	}
}

func TestSigmoid(t *testing.T) {
	if got := sigmoid(0); got != 0.5 {
		t.Errorf("sigmoid(0) = %v", got)
	}
	if got := sigmoid(-1000); got != 0 || math.IsNaN(got) {
		t.Errorf("sigmoid(-1000) = %v", got)
	}
	if got := sigmoid(1000); got != 1 {
		t.Errorf("sigmoid(1000) = %v", got)
	}
}
