package attrition

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/attrisk/core/model"
)

// ScaledClassifier chains a feature transformer in front of a classifier.
// The transformer is fitted on the training matrix only and reused for every
// later prediction, so holdout rows never leak into the scaling statistics.
type ScaledClassifier struct {
	Scaler     model.Transformer
	Classifier model.Classifier
}

var _ model.Classifier = (*ScaledClassifier)(nil)

// NewScaledClassifier returns a ScaledClassifier.
func NewScaledClassifier(scaler model.Transformer, clf model.Classifier) *ScaledClassifier {
	return &ScaledClassifier{Scaler: scaler, Classifier: clf}
}

// Fit fits the scaler on X, then the classifier on the scaled X.
func (s *ScaledClassifier) Fit(X, y mat.Matrix) error {
	Xs, err := s.Scaler.FitTransform(X)
	if err != nil {
		return err
	}
	return s.Classifier.Fit(Xs, y)
}

// Predict scales X and returns class labels.
func (s *ScaledClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	Xs, err := s.Scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	return s.Classifier.Predict(Xs)
}

// PredictProba scales X and returns class probabilities.
func (s *ScaledClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	Xs, err := s.Scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	return s.Classifier.PredictProba(Xs)
}

// IsFitted reports whether the classifier has been fitted.
func (s *ScaledClassifier) IsFitted() bool { return s.Classifier.IsFitted() }

// Classes returns the classifier's class labels.
func (s *ScaledClassifier) Classes() []int { return s.Classifier.Classes() }
