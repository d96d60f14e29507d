package tree

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// overtimeData: columns are overtime hours and job satisfaction (1-4).
// Employees working more than 10 overtime hours left.
func overtimeData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 2, []float64{
		2, 4,
		4, 3,
		6, 1,
		8, 2,
		12, 4,
		14, 3,
		16, 1,
		18, 2,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	return X, y
}

func TestDecisionTreeClassifier_FitPredict(t *testing.T) {
	X, y := overtimeData()

	for _, criterion := range []string{"gini", "entropy"} {
		t.Run(criterion, func(t *testing.T) {
			dt := NewDecisionTreeClassifier(WithCriterion(criterion), WithMaxDepth(3))
			if err := dt.Fit(X, y); err != nil {
				t.Fatalf("Failed to fit: %v", err)
			}
			if score := dt.Score(X, y); score != 1.0 {
				t.Errorf("expected perfect training score, got %v", score)
			}
			// one split on overtime separates the classes
			if dt.GetDepth() != 1 || dt.GetNLeaves() != 2 {
				t.Errorf("expected a single split, got depth %d with %d leaves", dt.GetDepth(), dt.GetNLeaves())
			}

			preds, err := dt.Predict(mat.NewDense(2, 2, []float64{5, 2, 20, 3}))
			if err != nil {
				t.Fatal(err)
			}
			if preds.At(0, 0) != 0 || preds.At(1, 0) != 1 {
				t.Errorf("unexpected predictions %v, %v", preds.At(0, 0), preds.At(1, 0))
			}
		})
	}
}

func TestDecisionTreeClassifier_PredictProbaLeafFractions(t *testing.T) {
	// the same overtime value for three employees, one of whom left
	X := mat.NewDense(5, 1, []float64{3, 3, 3, 15, 15})
	y := mat.NewDense(5, 1, []float64{0, 0, 1, 1, 1})

	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	proba, err := dt.PredictProba(mat.NewDense(2, 1, []float64{3, 15}))
	if err != nil {
		t.Fatal(err)
	}

	if r, c := proba.Dims(); r != 2 || c != 2 {
		t.Fatalf("expected 2x2 probabilities, got %dx%d", r, c)
	}
	if got := proba.At(0, 1); math.Abs(got-1.0/3) > 1e-12 {
		t.Errorf("P(leave | overtime=3) = %v, want 1/3", got)
	}
	if got := proba.At(1, 1); got != 1 {
		t.Errorf("P(leave | overtime=15) = %v, want 1", got)
	}
	for i := 0; i < 2; i++ {
		if s := proba.At(i, 0) + proba.At(i, 1); math.Abs(s-1) > 1e-12 {
			t.Errorf("row %d probabilities sum to %v", i, s)
		}
	}
}

func TestDecisionTreeClassifier_Multiclass(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{1, 2, 10, 11, 20, 21})
	y := mat.NewDense(6, 1, []float64{0, 0, 1, 1, 2, 2})

	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if got := dt.Classes(); len(got) != 3 || got[2] != 2 {
		t.Errorf("unexpected classes %v", got)
	}
	if score := dt.Score(X, y); score != 1 {
		t.Errorf("expected perfect score, got %v", score)
	}
}

func TestDecisionTreeClassifier_FeatureImportances(t *testing.T) {
	X, y := overtimeData()
	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	imp := dt.GetFeatureImportances()
	if len(imp) != 2 {
		t.Fatalf("expected 2 importances, got %d", len(imp))
	}
	if imp[0] != 1 || imp[1] != 0 {
		t.Errorf("overtime should carry all importance, got %v", imp)
	}
}

func TestDecisionTreeClassifier_Constraints(t *testing.T) {
	// alternating labels force a deep tree when unconstrained
	X := mat.NewDense(16, 1, nil)
	y := mat.NewDense(16, 1, nil)
	for i := 0; i < 16; i++ {
		X.Set(i, 0, float64(i))
		y.Set(i, 0, float64(i%2))
	}

	tests := []struct {
		name      string
		opts      []Option
		maxDepth  int
		maxLeaves int
	}{
		{"max depth", []Option{WithMaxDepth(2)}, 2, 4},
		{"min samples leaf", []Option{WithMinSamplesLeaf(4)}, -1, 4},
		{"min samples split", []Option{WithMinSamplesSplit(17)}, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt := NewDecisionTreeClassifier(tt.opts...)
			if err := dt.Fit(X, y); err != nil {
				t.Fatal(err)
			}
			if tt.maxDepth >= 0 && dt.GetDepth() > tt.maxDepth {
				t.Errorf("depth %d exceeds %d", dt.GetDepth(), tt.maxDepth)
			}
			if dt.GetNLeaves() > tt.maxLeaves {
				t.Errorf("%d leaves exceeds %d", dt.GetNLeaves(), tt.maxLeaves)
			}
		})
	}
}

func TestDecisionTreeClassifier_Params(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	params := dt.GetParams()
	if params["criterion"] != "gini" || params["min_samples_split"] != 2 || params["max_depth"] != -1 {
		t.Errorf("unexpected defaults %v", params)
	}

	err := dt.SetParams(map[string]interface{}{
		"criterion":        "entropy",
		"max_depth":        4,
		"min_samples_leaf": 3,
	})
	if err != nil {
		t.Fatal(err)
	}
	if dt.criterion != "entropy" || dt.maxDepth != 4 || dt.minSamplesLeaf != 3 {
		t.Errorf("params not applied: %v", dt.GetParams())
	}
}

func TestDecisionTreeClassifier_Errors(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	if _, err := dt.Predict(X); err == nil {
		t.Error("expected error predicting before fit")
	}
	if _, err := dt.PredictProba(X); err == nil {
		t.Error("expected error from PredictProba before fit")
	}

	Xtrain, y := overtimeData()
	if err := dt.Fit(Xtrain, y); err != nil {
		t.Fatal(err)
	}
	if _, err := dt.Predict(mat.NewDense(1, 3, nil)); err == nil {
		t.Error("expected error for wrong feature count")
	}
	if err := NewDecisionTreeClassifier(WithMaxDepth(0)).Fit(Xtrain, y); err == nil {
		t.Error("expected error for max_depth 0")
	}
}
