package metrics

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Averages はクラス横断の集計値
type Averages struct {
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// ClassificationReport は scikit-learn の classification_report に相当する評価結果。
// 各クラスの指標と、正解率、マクロ平均、サポート加重平均を保持する。
type ClassificationReport struct {
	Classes  []ClassScores
	Accuracy float64
	Macro    Averages
	Weighted Averages

	// TargetNames はラベル値から表示名への対応（任意）
	TargetNames map[int]string
}

// NewClassificationReport は真値と予測ラベルから評価レポートを作成する
func NewClassificationReport(yTrue, yPred *mat.VecDense, targetNames map[int]string) (*ClassificationReport, error) {
	scores, err := PrecisionRecallFScoreSupport(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return nil, err
	}

	r := &ClassificationReport{
		Classes:     scores,
		Accuracy:    acc,
		TargetNames: targetNames,
	}

	var total int
	for _, s := range scores {
		total += s.Support
	}
	k := float64(len(scores))
	for _, s := range scores {
		r.Macro.Precision += s.Precision / k
		r.Macro.Recall += s.Recall / k
		r.Macro.F1 += s.F1 / k

		w := float64(s.Support) / float64(total)
		r.Weighted.Precision += s.Precision * w
		r.Weighted.Recall += s.Recall * w
		r.Weighted.F1 += s.F1 * w
	}
	r.Macro.Support = total
	r.Weighted.Support = total
	return r, nil
}

// Class はラベルに対応する指標を返す
func (r *ClassificationReport) Class(label int) (ClassScores, bool) {
	for _, s := range r.Classes {
		if s.Label == label {
			return s, true
		}
	}
	return ClassScores{}, false
}

func (r *ClassificationReport) labelName(label int) string {
	if name, ok := r.TargetNames[label]; ok {
		return name
	}
	return fmt.Sprintf("%d", label)
}

// String は scikit-learn と同じレイアウトの表を返す
func (r *ClassificationReport) String() string {
	width := len("weighted avg")
	for _, s := range r.Classes {
		if l := len(r.labelName(s.Label)); l > width {
			width = l
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%*s %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")
	for _, s := range r.Classes {
		fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, r.labelName(s.Label), s.Precision, s.Recall, s.F1, s.Support)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s %9s %9s %9.2f %9d\n", width, "accuracy", "", "", r.Accuracy, r.Macro.Support)
	fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, "macro avg", r.Macro.Precision, r.Macro.Recall, r.Macro.F1, r.Macro.Support)
	fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, "weighted avg", r.Weighted.Precision, r.Weighted.Recall, r.Weighted.F1, r.Weighted.Support)
	return b.String()
}
