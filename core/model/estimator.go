package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	// y は n×1 の列ベクトルで、二値分類では 0/1 のラベルを持つ
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対するクラスラベルを n×1 で返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator は学習状態を問い合わせられるモデル
type Estimator interface {
	Fitter
	IsFitted() bool
}

// Classifier は確率を出力できる分類器のインターフェース。
// ロジスティック回帰とランダムフォレストの両方がこれを満たす。
type Classifier interface {
	Estimator
	Predictor

	// PredictProba は各クラスの確率を n×nClasses で返す
	// 列の順序は Classes() と同じ
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes は学習時に観測したクラスラベルを昇順で返す
	Classes() []int
}

// PositiveProba は二値分類器の陽性クラス（ラベル1）の確率を取り出す。
// 学習データにラベル1が無かった場合は全て0を返す。
func PositiveProba(c Classifier, X mat.Matrix) (*mat.VecDense, error) {
	proba, err := c.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, _ := proba.Dims()
	out := mat.NewVecDense(n, nil)
	col := -1
	for j, cls := range c.Classes() {
		if cls == 1 {
			col = j
		}
	}
	if col < 0 {
		return out, nil
	}
	for i := 0; i < n; i++ {
		out.SetVec(i, proba.At(i, col))
	}
	return out, nil
}
