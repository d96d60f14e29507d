package model_selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/attrisk/pkg/errors"
)

func labels(n, positives int) *mat.VecDense {
	y := mat.NewVecDense(n, nil)
	// 陽性を均等に散らす
	for k := 0; k < positives; k++ {
		y.SetVec(k*n/positives, 1)
	}
	return y
}

func TestStratifiedTrainTestSplit_Sizes(t *testing.T) {
	tests := []struct {
		name      string
		n, pos    int
		testSize  float64
		wantTest  int
		wantPosTe int
	}{
		{"attrition scenario", 1000, 170, 0.3, 300, 51},
		{"ceil of test size", 101, 20, 0.3, 31, 6},
		{"balanced", 10, 5, 0.5, 5, 2},
		{"small minority", 20, 2, 0.3, 6, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			y := labels(tt.n, tt.pos)
			train, test, err := StratifiedTrainTestSplit(y, tt.testSize, 42)
			require.NoError(t, err)

			assert.Len(t, test, tt.wantTest)
			assert.Len(t, train, tt.n-tt.wantTest)

			counts := ClassCounts(pick(y, test))
			assert.Equal(t, tt.wantPosTe, counts[1])
		})
	}
}

func TestStratifiedTrainTestSplit_Partition(t *testing.T) {
	y := labels(200, 37)
	train, test, err := StratifiedTrainTestSplit(y, 0.3, 7)
	require.NoError(t, err)

	seen := make(map[int]bool)
	for _, i := range append(append([]int(nil), train...), test...) {
		assert.False(t, seen[i], "index %d used twice", i)
		seen[i] = true
	}
	assert.Len(t, seen, 200)
	assert.IsIncreasing(t, train)
	assert.IsIncreasing(t, test)

	trainPos := float64(ClassCounts(pick(y, train))[1]) / float64(len(train))
	testPos := float64(ClassCounts(pick(y, test))[1]) / float64(len(test))
	assert.InDelta(t, 37.0/200.0, trainPos, 0.01)
	assert.InDelta(t, 37.0/200.0, testPos, 0.02)
}

func TestStratifiedTrainTestSplit_Deterministic(t *testing.T) {
	y := labels(300, 50)
	tr1, te1, err := StratifiedTrainTestSplit(y, 0.3, 42)
	require.NoError(t, err)
	tr2, te2, err := StratifiedTrainTestSplit(y, 0.3, 42)
	require.NoError(t, err)
	assert.Equal(t, tr1, tr2)
	assert.Equal(t, te1, te2)

	_, te3, err := StratifiedTrainTestSplit(y, 0.3, 43)
	require.NoError(t, err)
	assert.NotEqual(t, te1, te3)
}

func TestStratifiedTrainTestSplit_Errors(t *testing.T) {
	t.Run("invalid test size", func(t *testing.T) {
		for _, ts := range []float64{0, 1, -0.1, 1.5} {
			_, _, err := StratifiedTrainTestSplit(labels(10, 5), ts, 0)
			var ve *errors.ValidationError
			assert.True(t, errors.As(err, &ve), "test size %v", ts)
		}
	})

	t.Run("singleton class", func(t *testing.T) {
		_, _, err := StratifiedTrainTestSplit(labels(10, 1), 0.3, 0)
		var ide *errors.InsufficientDataError
		require.True(t, errors.As(err, &ide))
		assert.Equal(t, 1, ide.Counts[1])
	})

	t.Run("empty", func(t *testing.T) {
		_, _, err := StratifiedTrainTestSplit(nil, 0.3, 0)
		assert.True(t, errors.Is(err, errors.ErrEmptyData))
	})
}

func TestTakeRows(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	y := mat.NewVecDense(3, []float64{0, 1, 0})

	xs, ys := TakeRows(X, y, []int{2, 0})
	assert.Equal(t, []float64{5, 6, 1, 2}, xs.RawMatrix().Data)
	assert.Equal(t, []float64{0, 0}, ys.RawVector().Data)
}

func pick(y *mat.VecDense, idx []int) *mat.VecDense {
	out := mat.NewVecDense(len(idx), nil)
	for i, r := range idx {
		out.SetVec(i, y.AtVec(r))
	}
	return out
}
