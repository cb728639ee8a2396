package tree

// Node は学習済み決定木の1ノード。
// 葉では Feature が -1、Left と Right が -1 になる。
type Node struct {
	// Feature は分割に使う特徴量の列番号
	Feature int
	// Threshold 以下なら Left、超えれば Right に進む
	Threshold float64
	Left      int
	Right     int

	// Value はノードに届いた訓練サンプルのクラス比率
	Value []float64
	// Cover はノードに届いた訓練サンプル数
	Cover float64
	// Impurity はノードの不純度（gini または entropy）
	Impurity float64
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return n.Left < 0
}

// Tree はノード配列で表した二分木。Nodes[0] が根。
// TreeExplainer はこの構造を直接たどる。
type Tree struct {
	Nodes     []Node
	NFeatures int
	NClasses  int
}

// Leaf は x が到達する葉の番号を返す
func (t *Tree) Leaf(x []float64) int {
	i := 0
	for !t.Nodes[i].IsLeaf() {
		n := &t.Nodes[i]
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return i
}

// Value は x が到達する葉のクラス比率を返す
func (t *Tree) Value(x []float64) []float64 {
	return t.Nodes[t.Leaf(x)].Value
}

// Depth は根から最も深い葉までの辺の数を返す
func (t *Tree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(i int) int
	walk = func(i int) int {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

// Leaves は葉の数を返す
func (t *Tree) Leaves() int {
	count := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			count++
		}
	}
	return count
}

// UsesFeature reports whether any split tests feature f.
func (t *Tree) UsesFeature(f int) bool {
	for i := range t.Nodes {
		if !t.Nodes[i].IsLeaf() && t.Nodes[i].Feature == f {
			return true
		}
	}
	return false
}
