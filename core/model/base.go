package model

import "github.com/YuminosukeSato/attrisk/pkg/errors"

// EstimatorState はモデルの学習状態を表す
type EstimatorState int

const (
	// NotFitted はモデルが未学習の状態
	NotFitted EstimatorState = iota
	// Fitted はモデルが学習済みの状態
	Fitted
)

// BaseEstimator は前処理器が埋め込む学習状態。
// 並行アクセスが必要なモデルは StateManager を使う。
type BaseEstimator struct {
	state EstimatorState
}

// IsFitted はモデルが学習済みかどうかを返す
func (e *BaseEstimator) IsFitted() bool {
	return e.state == Fitted
}

// SetFitted はモデルを学習済み状態に設定する
func (e *BaseEstimator) SetFitted() {
	e.state = Fitted
}

// Reset はモデルを初期状態にリセットする
func (e *BaseEstimator) Reset() {
	e.state = NotFitted
}

// RequireFitted は未学習なら NotFittedError を返す
func (e *BaseEstimator) RequireFitted(name, method string) error {
	if e.state != Fitted {
		return errors.NewNotFittedError(name, method)
	}
	return nil
}
