package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Node is one entry of a fitted tree. Nodes are stored flat; the root is
// index 0, so Left == 0 marks a leaf.
type Node struct {
	Feature   int
	Threshold float64 // x <= Threshold goes left
	Left      int
	Right     int
	Value     []float64 // class distribution, aligned with the tree's Classes
}

// IsLeaf reports whether n has no children.
func (n Node) IsLeaf() bool { return n.Left == 0 }

// DecisionTree is a CART classifier.
type DecisionTree struct {
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 => all features
	RandomState     int64

	Classes   []float64
	NFeatures int
	Nodes     []Node
}

// NewDecisionTree builds an unfitted tree from p. NEstimators is ignored.
func NewDecisionTree(p Params) *DecisionTree {
	return &DecisionTree{
		Criterion:       p.Criterion,
		MaxDepth:        p.MaxDepth,
		MinSamplesSplit: p.MinSamplesSplit,
		MinSamplesLeaf:  p.MinSamplesLeaf,
		MaxFeatures:     p.MaxFeatures,
		RandomState:     p.RandomState,
	}
}

// Fit grows the tree on every row of X.
func (t *DecisionTree) Fit(X mat.Matrix, y []float64) error {
	data, err := newDataset(X, y)
	if err != nil {
		return err
	}
	samples := make([]int, len(y))
	for i := range samples {
		samples[i] = i
	}
	rng := rand.New(rand.NewSource(t.RandomState))
	maxFeatures := t.MaxFeatures
	if maxFeatures == 0 || maxFeatures > data.nFeatures {
		maxFeatures = data.nFeatures
	}
	return t.fit(data, samples, rng, maxFeatures)
}

// Predict returns the majority class of the leaf each row lands in.
func (t *DecisionTree) Predict(X mat.Matrix) ([]float64, error) {
	probs, err := t.PredictProba(X)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(probs))
	for i, p := range probs {
		out[i] = t.Classes[argmax(p)]
	}
	return out, nil
}

// PredictProba returns the leaf class distribution for each row of X.
func (t *DecisionTree) PredictProba(X mat.Matrix) ([][]float64, error) {
	if len(t.Nodes) == 0 {
		return nil, errors.New("decision tree is not fitted")
	}
	r, c := X.Dims()
	if c != t.NFeatures {
		return nil, fmt.Errorf("decision tree fitted on %d features, got %d", t.NFeatures, c)
	}
	out := make([][]float64, r)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		out[i] = t.leaf(row).Value
	}
	return out, nil
}

func (t *DecisionTree) leaf(x []float64) Node {
	n := t.Nodes[0]
	for !n.IsLeaf() {
		if x[n.Feature] <= n.Threshold {
			n = t.Nodes[n.Left]
		} else {
			n = t.Nodes[n.Right]
		}
	}
	return n
}

// fit grows the tree over samples, which may repeat rows (bootstrap).
func (t *DecisionTree) fit(data *dataset, samples []int, rng *rand.Rand, maxFeatures int) error {
	impurity, err := impurityFunc(t.Criterion)
	if err != nil {
		return err
	}
	t.Classes = data.classes
	t.NFeatures = data.nFeatures
	t.Nodes = t.Nodes[:0]

	b := &treeBuilder{
		tree:        t,
		data:        data,
		rng:         rng,
		impurity:    impurity,
		maxFeatures: maxFeatures,
	}
	b.grow(samples, 0)
	return nil
}

type treeBuilder struct {
	tree        *DecisionTree
	data        *dataset
	rng         *rand.Rand
	impurity    func([]float64, float64) float64
	maxFeatures int
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

func (b *treeBuilder) grow(samples []int, depth int) int {
	counts := b.data.classCounts(samples)
	n := len(samples)

	idx := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{Value: normalize(counts)})

	t := b.tree
	if n < t.MinSamplesSplit || n < 2*t.MinSamplesLeaf || isPure(counts) {
		return idx
	}
	if t.MaxDepth > 0 && depth >= t.MaxDepth {
		return idx
	}

	best, ok := b.bestSplit(samples, counts)
	if !ok {
		return idx
	}

	col := b.data.cols[best.feature]
	left := make([]int, 0, n)
	right := make([]int, 0, n)
	for _, s := range samples {
		if col[s] <= best.threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.tree.Nodes[idx].Feature = best.feature
	b.tree.Nodes[idx].Threshold = best.threshold
	b.tree.Nodes[idx].Left = l
	b.tree.Nodes[idx].Right = r
	return idx
}

func (b *treeBuilder) bestSplit(samples []int, counts []float64) (split, bool) {
	n := len(samples)
	total := float64(n)
	parent := b.impurity(counts, total)
	minLeaf := b.tree.MinSamplesLeaf

	features := b.rng.Perm(b.data.nFeatures)[:b.maxFeatures]

	best := split{feature: -1}
	order := make([]int, n)
	leftCounts := make([]float64, len(counts))
	rightCounts := make([]float64, len(counts))

	for _, f := range features {
		col := b.data.cols[f]
		copy(order, samples)
		sort.Slice(order, func(i, j int) bool { return col[order[i]] < col[order[j]] })

		for k := range leftCounts {
			leftCounts[k] = 0
		}
		copy(rightCounts, counts)

		for i := 0; i < n-1; i++ {
			label := b.data.labels[order[i]]
			leftCounts[label]++
			rightCounts[label]--

			v, next := col[order[i]], col[order[i+1]]
			if next <= v {
				continue
			}
			nl := i + 1
			nr := n - nl
			if nl < minLeaf || nr < minLeaf {
				continue
			}

			weighted := (float64(nl)*b.impurity(leftCounts, float64(nl)) +
				float64(nr)*b.impurity(rightCounts, float64(nr))) / total
			gain := parent - weighted
			if gain > best.gain+1e-12 {
				thr := v + (next-v)/2
				if thr >= next {
					thr = v
				}
				best = split{feature: f, threshold: thr, gain: gain}
			}
		}
	}
	return best, best.feature >= 0
}

// dataset is a column-major copy of the training matrix with labels mapped
// to class indices.
type dataset struct {
	cols      [][]float64
	labels    []int
	classes   []float64
	nFeatures int
}

func newDataset(X mat.Matrix, y []float64) (*dataset, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, errors.New("empty training matrix")
	}
	if len(y) != r {
		return nil, fmt.Errorf("got %d labels for %d rows", len(y), r)
	}

	seen := make(map[float64]struct{})
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("label %d is not finite", i)
		}
		seen[v] = struct{}{}
	}
	classes := make([]float64, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Float64s(classes)

	index := make(map[float64]int, len(classes))
	for i, v := range classes {
		index[v] = i
	}
	labels := make([]int, r)
	for i, v := range y {
		labels[i] = index[v]
	}

	cols := make([][]float64, c)
	for j := range cols {
		cols[j] = mat.Col(nil, j, X)
		for i, v := range cols[j] {
			if math.IsNaN(v) {
				return nil, fmt.Errorf("feature %d of row %d is NaN", j, i)
			}
		}
	}

	return &dataset{cols: cols, labels: labels, classes: classes, nFeatures: c}, nil
}

func (d *dataset) classCounts(samples []int) []float64 {
	counts := make([]float64, len(d.classes))
	for _, s := range samples {
		counts[d.labels[s]]++
	}
	return counts
}

func gini(counts []float64, total float64) float64 {
	if total == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := c / total
		sum += p * p
	}
	return 1 - sum
}

func entropy(counts []float64, total float64) float64 {
	if total == 0 {
		return 0
	}
	h := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := c / total
		h -= p * math.Log2(p)
	}
	return h
}

func isPure(counts []float64) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func normalize(counts []float64) []float64 {
	total := 0.0
	for _, c := range counts {
		total += c
	}
	p := make([]float64, len(counts))
	if total == 0 {
		return p
	}
	for i, c := range counts {
		p[i] = c / total
	}
	return p
}

func argmax(xs []float64) int {
	best := 0
	for i := 1; i < len(xs); i++ {
		if xs[i] > xs[best] {
			best = i
		}
	}
	return best
}
