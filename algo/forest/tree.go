package forest

import (
	"container/heap"
	"math"
	"math/rand/v2"
	"slices"
)

// node is a tree node; left < 0 marks a leaf.
type node struct {
	feature   int
	threshold float64
	left      int32
	right     int32
	value     float64
}

type tree struct {
	nodes []node
}

func (t *tree) predict(row []float64) float64 {
	i := 0

	for {
		n := &t.nodes[i]
		if n.left < 0 {
			return n.value
		}

		if row[n.feature] <= n.threshold {
			i = int(n.left)
		} else {
			i = int(n.right)
		}
	}
}

// split is the best partition found for one node. The first pos entries
// of order go left.
type split struct {
	feature   int
	threshold float64
	gain      float64
	order     []int
	pos       int
}

type pending struct {
	node  int
	depth int
	split split
}

// frontier is a max-heap of splittable leaves ordered by gain.
type frontier []pending

func (f frontier) Len() int           { return len(f) }
func (f frontier) Less(i, j int) bool { return f[i].split.gain > f[j].split.gain }
func (f frontier) Swap(i, j int)      { f[i], f[j] = f[j], f[i] }
func (f *frontier) Push(x any)        { *f = append(*f, x.(pending)) }

func (f *frontier) Pop() any {
	old := *f
	p := old[len(old)-1]
	*f = old[:len(old)-1]

	return p
}

type builder struct {
	cfg         Config
	columns     [][]float64
	y           []float64
	maxFeatures int
	rng         *rand.Rand

	total float64
	nodes []node
}

// grow builds one tree on the sample idx. Leaves are expanded in order of
// decreasing impurity decrease, which only matters when MaxLeafNodes caps
// the tree.
func (b *builder) grow(idx []int) *tree {
	b.total = float64(len(idx))
	b.nodes = append(b.nodes[:0], b.leaf(idx))

	var queue frontier

	b.enqueue(&queue, 0, 0, idx)

	leaves := 1
	for queue.Len() > 0 {
		if b.cfg.MaxLeafNodes > 0 && leaves >= b.cfg.MaxLeafNodes {
			break
		}

		p := heap.Pop(&queue).(pending)
		left, right := p.split.order[:p.split.pos], p.split.order[p.split.pos:]

		li := len(b.nodes)
		b.nodes = append(b.nodes, b.leaf(left), b.leaf(right))

		parent := &b.nodes[p.node]
		parent.feature = p.split.feature
		parent.threshold = p.split.threshold
		parent.left = int32(li)
		parent.right = int32(li + 1)

		leaves++

		b.enqueue(&queue, li, p.depth+1, left)
		b.enqueue(&queue, li+1, p.depth+1, right)
	}

	return &tree{nodes: slices.Clip(b.nodes)}
}

func (b *builder) enqueue(queue *frontier, nodeIdx, depth int, idx []int) {
	if len(idx) < b.cfg.MinSamplesSplit {
		return
	}

	if b.cfg.MaxDepth > 0 && depth >= b.cfg.MaxDepth {
		return
	}

	s, ok := b.bestSplit(idx)
	if !ok || s.gain < b.cfg.MinImpurityDecrease {
		return
	}

	heap.Push(queue, pending{node: nodeIdx, depth: depth, split: s})
}

func (b *builder) leaf(idx []int) node {
	ys := b.targets(idx)

	var v float64
	if b.cfg.Criterion == MAE {
		v = median(ys)
	} else {
		v = mean(ys)
	}

	return node{left: -1, right: -1, value: v}
}

func (b *builder) targets(idx []int) []float64 {
	ys := make([]float64, len(idx))
	for i, k := range idx {
		ys[i] = b.y[k]
	}

	return ys
}

func (b *builder) bestSplit(idx []int) (split, bool) {
	parent := b.impurity(b.targets(idx))
	if parent <= 1e-12 {
		return split{}, false
	}

	var (
		best  split
		found bool
	)

	features := b.rng.Perm(len(b.columns))[:b.maxFeatures]

	for _, f := range features {
		col := b.columns[f]
		order := slices.Clone(idx)
		slices.SortFunc(order, func(i, j int) int {
			switch {
			case col[i] < col[j]:
				return -1
			case col[i] > col[j]:
				return 1
			default:
				return 0
			}
		})

		var (
			pos   int
			child float64
			ok    bool
		)

		if b.cfg.Criterion == MAE {
			pos, child, ok = b.sweepMAE(col, order)
		} else {
			pos, child, ok = b.sweepMSE(col, order)
		}

		if !ok {
			continue
		}

		n := float64(len(idx))
		gain := n / b.total * (parent - child)

		if !found || gain > best.gain {
			best = split{
				feature:   f,
				threshold: (col[order[pos-1]] + col[order[pos]]) / 2,
				gain:      gain,
				order:     order,
				pos:       pos,
			}
			found = true
		}
	}

	return best, found
}

// sweepMSE scans every threshold of a sorted feature with running sums
// and returns the position with the lowest weighted child variance.
func (b *builder) sweepMSE(col []float64, order []int) (int, float64, bool) {
	n := len(order)

	var totalSum, totalSq float64
	for _, k := range order {
		totalSum += b.y[k]
		totalSq += b.y[k] * b.y[k]
	}

	var (
		sumL, sqL float64
		bestPos   int
		bestChild = math.Inf(1)
	)

	for pos := 1; pos < n; pos++ {
		yk := b.y[order[pos-1]]
		sumL += yk
		sqL += yk * yk

		if col[order[pos-1]] == col[order[pos]] {
			continue
		}

		nl, nr := float64(pos), float64(n-pos)
		sumR, sqR := totalSum-sumL, totalSq-sqL

		varL := sqL/nl - (sumL/nl)*(sumL/nl)
		varR := sqR/nr - (sumR/nr)*(sumR/nr)
		child := (nl*varL + nr*varR) / float64(n)

		if child < bestChild {
			bestChild, bestPos = child, pos
		}
	}

	return bestPos, bestChild, bestPos > 0
}

// maeCandidates bounds the thresholds tried per feature under MAE, whose
// child impurity has no running-sum form.
const maeCandidates = 64

func (b *builder) sweepMAE(col []float64, order []int) (int, float64, bool) {
	n := len(order)
	step := max(1, (n-1)/maeCandidates)

	var (
		bestPos   int
		bestChild = math.Inf(1)
	)

	for pos := step; pos < n; pos += step {
		if col[order[pos-1]] == col[order[pos]] {
			continue
		}

		left, right := b.targets(order[:pos]), b.targets(order[pos:])
		child := (float64(len(left))*meanAbsDev(left) + float64(len(right))*meanAbsDev(right)) / float64(n)

		if child < bestChild {
			bestChild, bestPos = child, pos
		}
	}

	return bestPos, bestChild, bestPos > 0
}

func (b *builder) impurity(ys []float64) float64 {
	if b.cfg.Criterion == MAE {
		return meanAbsDev(ys)
	}

	m := mean(ys)

	var ss float64
	for _, y := range ys {
		ss += (y - m) * (y - m)
	}

	return ss / float64(len(ys))
}

func mean(ys []float64) float64 {
	var s float64
	for _, y := range ys {
		s += y
	}

	return s / float64(len(ys))
}

// median sorts ys in place.
func median(ys []float64) float64 {
	slices.Sort(ys)

	n := len(ys)
	if n%2 == 1 {
		return ys[n/2]
	}

	return (ys[n/2-1] + ys[n/2]) / 2
}

func meanAbsDev(ys []float64) float64 {
	m := median(ys)

	var s float64
	for _, y := range ys {
		s += math.Abs(y - m)
	}

	return s / float64(len(ys))
}
