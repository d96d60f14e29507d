// Package tree は CART 決定木分類器を提供する。
// ランダムフォレストの基本学習器としても使われる。
package tree

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/attrisk/core/model"
	"github.com/YuminosukeSato/attrisk/pkg/errors"
)

// featureThreshold 未満の差しかない値は同じ値とみなし、その間では分割しない
const featureThreshold = 1e-7

// DecisionTreeClassifier は scikit-learn 互換の CART 分類木。
//
// 分割は criterion（gini または entropy）の減少量が最大になる閾値を選び、
// 閾値は隣接する値の中点になる。葉はクラスごとの（重み付き）比率を保持する。
type DecisionTreeClassifier struct {
	state *model.StateManager

	// Hyperparameters
	criterion       string // "gini", "entropy"
	maxDepth        int    // -1 は無制限
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string // "", "sqrt", "log2"。空は全特徴量
	randomState     int64  // 負の場合は毎回異なる乱数

	// Fitted state
	nodes        []node
	classes_     []int
	nClasses_    int
	nFeatures_   int
	importances_ []float64
}

// node は木の1ノード。left < 0 なら葉。
type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     []float64 // クラス比率（Classes() の順）
	nSamples  int
	impurity  float64
	depth     int
}

// Option is a functional option for DecisionTreeClassifier
type Option func(*DecisionTreeClassifier)

// WithCriterion sets the split quality measure ("gini" or "entropy")
func WithCriterion(c string) Option {
	return func(dt *DecisionTreeClassifier) { dt.criterion = c }
}

// WithMaxDepth limits the depth of the tree. A negative value means unlimited.
func WithMaxDepth(d int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxDepth = d }
}

// WithMinSamplesSplit sets the minimum number of samples needed to split a node
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesLeaf = n }
}

// WithMaxFeatures sets how many features are considered per split:
// "sqrt", "log2", or "" for all of them
func WithMaxFeatures(s string) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxFeatures = s }
}

// WithRandomState sets the seed used for feature sampling
func WithRandomState(seed int64) Option {
	return func(dt *DecisionTreeClassifier) { dt.randomState = seed }
}

// NewDecisionTreeClassifier creates a classifier with scikit-learn defaults
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       "gini",
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		randomState:     -1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

var _ model.Classifier = (*DecisionTreeClassifier)(nil)

func (dt *DecisionTreeClassifier) validateParams() error {
	switch {
	case dt.criterion != "gini" && dt.criterion != "entropy":
		return errors.NewValidationError("criterion", "must be 'gini' or 'entropy'", dt.criterion)
	case dt.minSamplesSplit < 2:
		return errors.NewValidationError("min_samples_split", "must be at least 2", dt.minSamplesSplit)
	case dt.minSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", dt.minSamplesLeaf)
	case dt.maxDepth == 0:
		return errors.NewValidationError("max_depth", "must be positive or negative for unlimited", dt.maxDepth)
	case dt.maxFeatures != "" && dt.maxFeatures != "sqrt" && dt.maxFeatures != "log2":
		return errors.NewValidationError("max_features", "must be 'sqrt', 'log2' or empty", dt.maxFeatures)
	}
	return nil
}

// Fit builds the tree from X (n×p) and class labels y (n×1)
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted builds the tree with per-sample weights. Samples with zero
// weight are ignored; a nil slice gives every sample weight 1. The class
// set is taken from all of y, so trees fitted on bootstrap samples share
// the same probability columns.
func (dt *DecisionTreeClassifier) FitWeighted(X, y mat.Matrix, sampleWeight []float64) error {
	if err := dt.validateParams(); err != nil {
		return err
	}

	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows != nSamples {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", 1, yCols, 1)
	}
	if sampleWeight != nil && len(sampleWeight) != nSamples {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, len(sampleWeight), 0)
	}

	dt.state.Reset()
	classIdx := dt.extractClasses(y)

	cols := make([][]float64, nFeatures)
	for j := range cols {
		cols[j] = make([]float64, nSamples)
		mat.Col(cols[j], j, X)
	}

	weights := sampleWeight
	if weights == nil {
		weights = make([]float64, nSamples)
		for i := range weights {
			weights[i] = 1
		}
	}

	idx := make([]int, 0, nSamples)
	for i, w := range weights {
		if w > 0 {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "all sample weights are zero")
	}

	seed := dt.randomState
	if seed < 0 {
		seed = rand.Int63()
	}

	b := &builder{
		dt:       dt,
		cols:     cols,
		classIdx: classIdx,
		weights:  weights,
		rng:      rand.New(rand.NewSource(seed)),
		nTry:     dt.featuresPerSplit(nFeatures),
		gains:    make([]float64, nFeatures),
	}
	dt.nodes = dt.nodes[:0]
	dt.nFeatures_ = nFeatures
	b.build(idx, 0)

	dt.importances_ = normalize(b.gains)
	dt.state.SetDimensions(nFeatures, nSamples)
	dt.state.SetFitted()
	return nil
}

// extractClasses returns the class index of every sample
func (dt *DecisionTreeClassifier) extractClasses(y mat.Matrix) []int {
	n, _ := y.Dims()
	seen := make(map[int]bool)
	dt.classes_ = nil
	for i := 0; i < n; i++ {
		label := int(y.At(i, 0))
		if !seen[label] {
			seen[label] = true
			dt.classes_ = append(dt.classes_, label)
		}
	}
	sort.Ints(dt.classes_)
	dt.nClasses_ = len(dt.classes_)

	pos := make(map[int]int, dt.nClasses_)
	for k, c := range dt.classes_ {
		pos[c] = k
	}
	classIdx := make([]int, n)
	for i := range classIdx {
		classIdx[i] = pos[int(y.At(i, 0))]
	}
	return classIdx
}

func (dt *DecisionTreeClassifier) featuresPerSplit(nFeatures int) int {
	var k int
	switch dt.maxFeatures {
	case "sqrt":
		k = int(math.Sqrt(float64(nFeatures)))
	case "log2":
		k = int(math.Log2(float64(nFeatures)))
	default:
		k = nFeatures
	}
	if k < 1 {
		k = 1
	}
	if k > nFeatures {
		k = nFeatures
	}
	return k
}

// builder holds the state used while growing one tree
type builder struct {
	dt       *DecisionTreeClassifier
	cols     [][]float64
	classIdx []int
	weights  []float64
	rng      *rand.Rand
	nTry     int
	gains    []float64 // 特徴量ごとの重み付き不純度減少量の合計
}

type split struct {
	feature   int
	threshold float64
	pos       int // sorted idx[:pos] が左
	impurity  float64
}

func (b *builder) counts(idx []int) ([]float64, float64) {
	counts := make([]float64, b.dt.nClasses_)
	var total float64
	for _, i := range idx {
		counts[b.classIdx[i]] += b.weights[i]
		total += b.weights[i]
	}
	return counts, total
}

func (b *builder) impurity(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	var s float64
	if b.dt.criterion == "entropy" {
		for _, c := range counts {
			if c > 0 {
				p := c / total
				s -= p * math.Log2(p)
			}
		}
		return s
	}
	s = 1
	for _, c := range counts {
		p := c / total
		s -= p * p
	}
	return s
}

// build grows the subtree for idx and returns its node index
func (b *builder) build(idx []int, depth int) int {
	counts, total := b.counts(idx)
	imp := b.impurity(counts, total)

	id := len(b.dt.nodes)
	value := make([]float64, len(counts))
	for k, c := range counts {
		value[k] = c / total
	}
	b.dt.nodes = append(b.dt.nodes, node{
		feature:  -1,
		left:     -1,
		right:    -1,
		value:    value,
		nSamples: len(idx),
		impurity: imp,
		depth:    depth,
	})

	dt := b.dt
	if imp <= 0 ||
		len(idx) < dt.minSamplesSplit ||
		len(idx) < 2*dt.minSamplesLeaf ||
		(dt.maxDepth > 0 && depth >= dt.maxDepth) {
		return id
	}

	best, ok := b.bestSplit(idx, imp)
	if !ok {
		return id
	}

	col := b.cols[best.feature]
	sorted := append([]int(nil), idx...)
	sort.SliceStable(sorted, func(a, c int) bool { return col[sorted[a]] < col[sorted[c]] })
	left, right := sorted[:best.pos], sorted[best.pos:]

	b.gains[best.feature] += total * (imp - best.impurity)

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	n := &b.dt.nodes[id]
	n.feature = best.feature
	n.threshold = best.threshold
	n.left = l
	n.right = r
	return id
}

// bestSplit evaluates up to nTry non-constant features in random order and
// returns the split with the lowest weighted child impurity
func (b *builder) bestSplit(idx []int, parentImpurity float64) (split, bool) {
	nFeatures := len(b.cols)
	features := b.rng.Perm(nFeatures)

	best := split{impurity: math.Inf(1)}
	found := false
	visited := 0
	sorted := make([]int, len(idx))

	for _, f := range features {
		if visited >= b.nTry {
			break
		}
		col := b.cols[f]
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool { return col[sorted[a]] < col[sorted[c]] })
		if col[sorted[len(sorted)-1]] <= col[sorted[0]]+featureThreshold {
			// 定数列は試行回数に数えない
			continue
		}
		visited++

		if s, ok := b.scanFeature(f, sorted); ok && s.impurity < best.impurity {
			best = s
			found = true
		}
	}
	return best, found
}

// scanFeature sweeps the sorted samples once, keeping running class counts
func (b *builder) scanFeature(f int, sorted []int) (split, bool) {
	col := b.cols[f]
	right, totalRight := b.counts(sorted)
	left := make([]float64, len(right))
	var totalLeft float64

	best := split{feature: f, impurity: math.Inf(1)}
	found := false
	minLeaf := b.dt.minSamplesLeaf
	n := len(sorted)

	for pos := 1; pos < n; pos++ {
		i := sorted[pos-1]
		w := b.weights[i]
		left[b.classIdx[i]] += w
		right[b.classIdx[i]] -= w
		totalLeft += w
		totalRight -= w

		lo, hi := col[i], col[sorted[pos]]
		if hi <= lo+featureThreshold {
			continue
		}
		if pos < minLeaf || n-pos < minLeaf {
			continue
		}

		total := totalLeft + totalRight
		imp := (totalLeft*b.impurity(left, totalLeft) + totalRight*b.impurity(right, totalRight)) / total
		if imp < best.impurity {
			threshold := lo/2 + hi/2
			if threshold >= hi {
				threshold = lo
			}
			best.impurity = imp
			best.threshold = threshold
			best.pos = pos
			found = true
		}
	}
	return best, found
}

func normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	var sum float64
	for _, x := range v {
		sum += x
	}
	if sum <= 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / sum
	}
	return out
}

func (dt *DecisionTreeClassifier) checkPredict(X mat.Matrix, method string) error {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", method); err != nil {
		return err
	}
	_, c := X.Dims()
	return dt.state.CheckFeatures("DecisionTreeClassifier."+method, c)
}

// leaf returns the leaf reached by row i of X
func (dt *DecisionTreeClassifier) leaf(X mat.Matrix, i int) *node {
	n := &dt.nodes[0]
	for n.left >= 0 {
		if X.At(i, n.feature) <= n.threshold {
			n = &dt.nodes[n.left]
		} else {
			n = &dt.nodes[n.right]
		}
	}
	return n
}

// PredictProba returns n×nClasses class fractions of the reached leaves
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.checkPredict(X, "PredictProba"); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, dt.nClasses_, nil)
	for i := 0; i < r; i++ {
		out.SetRow(i, dt.leaf(X, i).value)
	}
	return out, nil
}

// Predict returns the majority class of the reached leaf as n×1
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.checkPredict(X, "Predict"); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, float64(dt.classes_[argmax(dt.leaf(X, i).value)]))
	}
	return out, nil
}

// argmax returns the first index of the largest value
func argmax(v []float64) int {
	best := 0
	for k := 1; k < len(v); k++ {
		if v[k] > v[best] {
			best = k
		}
	}
	return best
}

// Score returns the mean accuracy on X and y
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	r, _ := X.Dims()
	correct := 0
	for i := 0; i < r; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(r)
}

// IsFitted reports whether Fit has completed
func (dt *DecisionTreeClassifier) IsFitted() bool {
	return dt.state.IsFitted()
}

// Classes returns the class labels in probability column order
func (dt *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), dt.classes_...)
}

// GetFeatureImportances returns the normalized total impurity decrease per feature
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.importances_...)
}

// GetDepth returns the depth of the deepest leaf (root is depth 0)
func (dt *DecisionTreeClassifier) GetDepth() int {
	depth := 0
	for _, n := range dt.nodes {
		if n.depth > depth {
			depth = n.depth
		}
	}
	return depth
}

// GetNLeaves returns the number of leaves
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	leaves := 0
	for _, n := range dt.nodes {
		if n.left < 0 {
			leaves++
		}
	}
	return leaves
}

// GetParams returns the model hyperparameters
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"max_features":      dt.maxFeatures,
		"random_state":      dt.randomState,
	}
}

// SetParams sets the model hyperparameters
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "criterion":
			dt.criterion, ok = value.(string)
		case "max_depth":
			dt.maxDepth, ok = value.(int)
		case "min_samples_split":
			dt.minSamplesSplit, ok = value.(int)
		case "min_samples_leaf":
			dt.minSamplesLeaf, ok = value.(int)
		case "max_features":
			dt.maxFeatures, ok = value.(string)
		case "random_state":
			dt.randomState, ok = value.(int64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	return dt.validateParams()
}
