// Package model_selection は学習用と評価用へのデータ分割を提供する
package model_selection

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/attrisk/pkg/errors"
)

// StratifiedTrainTestSplit はクラス比率を保ったまま標本の添字を学習用と評価用に分ける。
//
// 評価用の件数は ceil(testSize·n)。各クラスへの割り当ては最大剰余法で決めるため、
// 評価用のクラス比率は全体の比率と一致する（端数は1件以内）。
// 各クラス内の並びは seed から作った乱数で並べ替えるので、同じ seed なら結果は同じになる。
// 返す添字は昇順。
//
// 使用例:
//
//	train, test, err := model_selection.StratifiedTrainTestSplit(y, 0.3, 42)
//	XTrain, yTrain := model_selection.TakeRows(X, y, train)
func StratifiedTrainTestSplit(y *mat.VecDense, testSize float64, seed int64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 || math.IsNaN(testSize) {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	if y == nil || y.Len() == 0 {
		return nil, nil, errors.NewModelError("StratifiedTrainTestSplit", "empty data", errors.ErrEmptyData)
	}

	n := y.Len()
	byClass := make(map[int][]int)
	for i := 0; i < n; i++ {
		c := int(y.AtVec(i))
		byClass[c] = append(byClass[c], i)
	}
	counts := ClassCounts(y)

	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	for _, c := range classes {
		if len(byClass[c]) < 2 {
			return nil, nil, errors.NewInsufficientDataError("StratifiedTrainTestSplit",
				"the least populated class has fewer than 2 members", counts)
		}
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest < len(classes) || nTrain < len(classes) {
		return nil, nil, errors.NewInsufficientDataError("StratifiedTrainTestSplit",
			"each partition needs at least one sample per class", counts)
	}

	alloc := allocate(classes, byClass, nTest, n)

	rng := rand.New(rand.NewSource(seed))
	for _, c := range classes {
		idx := append([]int(nil), byClass[c]...)
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		test = append(test, idx[:alloc[c]]...)
		train = append(train, idx[alloc[c]:]...)
	}

	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

// allocate は最大剰余法で評価用の件数をクラスに配分する。
// 剰余が同じ場合は件数の多いクラス、次にラベルの小さいクラスを優先する。
func allocate(classes []int, byClass map[int][]int, nTest, n int) map[int]int {
	type share struct {
		class     int
		count     int
		remainder float64
	}

	alloc := make(map[int]int, len(classes))
	shares := make([]share, 0, len(classes))
	assigned := 0
	for _, c := range classes {
		exact := float64(nTest) * float64(len(byClass[c])) / float64(n)
		base := int(math.Floor(exact))
		alloc[c] = base
		assigned += base
		shares = append(shares, share{class: c, count: len(byClass[c]), remainder: exact - float64(base)})
	}

	sort.SliceStable(shares, func(i, j int) bool {
		if shares[i].remainder != shares[j].remainder {
			return shares[i].remainder > shares[j].remainder
		}
		return shares[i].count > shares[j].count
	})
	for i := 0; assigned < nTest; i++ {
		alloc[shares[i%len(shares)].class]++
		assigned++
	}
	return alloc
}

// ClassCounts はラベルごとの件数を返す
func ClassCounts(y *mat.VecDense) map[int]int {
	counts := make(map[int]int)
	if y == nil {
		return counts
	}
	for i := 0; i < y.Len(); i++ {
		counts[int(y.AtVec(i))]++
	}
	return counts
}

// TakeRows は添字で指定した行だけを取り出した X と y を返す
func TakeRows(X mat.Matrix, y *mat.VecDense, idx []int) (*mat.Dense, *mat.VecDense) {
	_, c := X.Dims()
	xs := mat.NewDense(len(idx), c, nil)
	ys := mat.NewVecDense(len(idx), nil)
	for i, r := range idx {
		for j := 0; j < c; j++ {
			xs.Set(i, j, X.At(r, j))
		}
		ys.SetVec(i, y.AtVec(r))
	}
	return xs, ys
}
