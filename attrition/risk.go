package attrition

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/attrisk/core/model"
	"github.com/YuminosukeSato/attrisk/dataset"
	"github.com/YuminosukeSato/attrisk/pkg/errors"
)

// ScoreRisk returns P(attrition) for every row of X, clipped into [0, 1].
// A NaN probability is reported as a ValueError.
func ScoreRisk(clf model.Classifier, X mat.Matrix) ([]float64, error) {
	if clf == nil || !clf.IsFitted() {
		return nil, errors.NewNotFittedError("ScoreRisk", "PredictProba")
	}
	proba, err := model.PositiveProba(clf, X)
	if err != nil {
		return nil, err
	}
	risk := make([]float64, proba.Len())
	for i := range risk {
		p := proba.AtVec(i)
		if math.IsNaN(p) {
			return nil, errors.NewValueError("ScoreRisk", "model returned NaN probability")
		}
		risk[i] = errors.ClipValue(p, 0, 1)
	}
	return risk, nil
}

// AppendRisk returns a copy of t with risk appended as the last column.
// t itself is left unchanged.
func AppendRisk(t *dataset.Table, column string, risk []float64) (*dataset.Table, error) {
	return t.WithFloatColumn(column, risk)
}
