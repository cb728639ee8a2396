// Package cluster は k-means クラスタリング。
// KernelExplainer の背景データを少数の重み付き代表点に要約するのに使う。
package cluster

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/YuminosukeSato/censusml/core/model"
	"github.com/YuminosukeSato/censusml/core/parallel"
	"github.com/YuminosukeSato/censusml/pkg/errors"
	"github.com/YuminosukeSato/censusml/pkg/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const parallelThreshold = 1024

// KMeans は Lloyd 法による k-means クラスタリング。
// 初期中心は k-means++ で選び、nInit 回の試行から慣性が最小のものを採用する。
type KMeans struct {
	model.BaseEstimator

	// ハイパーパラメータ
	nClusters   int
	maxIter     int
	nInit       int
	tol         float64
	randomState int64

	// 学習パラメータ
	clusterCenters_ [][]float64
	labels_         []int
	counts_         []int
	inertia_        float64
	nIter_          int
	nFeatures_      int

	mu sync.RWMutex
}

// KMeansOption はKMeansの設定オプション
type KMeansOption func(*KMeans)

// WithKMeansNClusters はクラスタ数を設定
func WithKMeansNClusters(n int) KMeansOption {
	return func(k *KMeans) { k.nClusters = n }
}

// WithKMeansMaxIter は最大イテレーション数を設定
func WithKMeansMaxIter(maxIter int) KMeansOption {
	return func(k *KMeans) { k.maxIter = maxIter }
}

// WithKMeansNInit は初期化の試行回数を設定
func WithKMeansNInit(n int) KMeansOption {
	return func(k *KMeans) { k.nInit = n }
}

// WithKMeansTol は中心の移動量に対する収束判定の閾値を設定
func WithKMeansTol(tol float64) KMeansOption {
	return func(k *KMeans) { k.tol = tol }
}

// WithKMeansRandomState は乱数シードを設定
func WithKMeansRandomState(seed int64) KMeansOption {
	return func(k *KMeans) { k.randomState = seed }
}

// NewKMeans は新しいKMeansを作成
func NewKMeans(options ...KMeansOption) *KMeans {
	k := &KMeans{
		nClusters: 8,
		maxIter:   300,
		nInit:     3,
		tol:       1e-6,
	}
	for _, opt := range options {
		opt(k)
	}
	return k
}

// Fit はXをクラスタリングする。yは無視される
func (k *KMeans) Fit(X, _ mat.Matrix) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	rows, cols := X.Dims()
	if k.nClusters < 1 {
		return errors.NewValidationError("n_clusters", "must be at least 1", k.nClusters)
	}
	if k.maxIter < 1 {
		return errors.NewValidationError("max_iter", "must be at least 1", k.maxIter)
	}
	if rows < k.nClusters {
		return errors.NewValueError("KMeans.Fit",
			fmt.Sprintf("n_samples=%d should be >= n_clusters=%d", rows, k.nClusters))
	}

	data := make([][]float64, rows)
	for i := range data {
		data[i] = mat.Row(nil, i, X)
	}

	rng := rand.New(rand.NewPCG(uint64(k.randomState), 0x2545f4914f6cdd1d))
	nInit := max(k.nInit, 1)

	bestInertia := math.Inf(1)
	var bestCenters [][]float64
	var bestLabels []int
	var bestNIter int
	for run := 0; run < nInit; run++ {
		centers, labels, inertia, nIter := k.fitSingleRun(data, rng)
		if inertia < bestInertia {
			bestInertia = inertia
			bestCenters = centers
			bestLabels = labels
			bestNIter = nIter
		}
	}

	k.clusterCenters_ = bestCenters
	k.labels_ = bestLabels
	k.inertia_ = bestInertia
	k.nIter_ = bestNIter
	k.nFeatures_ = cols
	k.counts_ = make([]int, k.nClusters)
	for _, l := range bestLabels {
		k.counts_[l]++
	}
	k.SetFitted()

	log.GetLoggerWithName("cluster").Debug("k-means fitted",
		log.ModelNameKey, "KMeans",
		log.SamplesKey, rows,
		log.IterationKey, bestNIter,
		"inertia", bestInertia,
	)
	return nil
}

// fitSingleRun は単一回の学習を実行
func (k *KMeans) fitSingleRun(data [][]float64, rng *rand.Rand) ([][]float64, []int, float64, int) {
	cols := len(data[0])
	centers := k.initKMeansPlusPlus(data, rng)
	labels := make([]int, len(data))
	sums := make([][]float64, k.nClusters)
	for c := range sums {
		sums[c] = make([]float64, cols)
	}
	counts := make([]int, k.nClusters)

	iter := 0
	for iter < k.maxIter {
		iter++
		assignLabels(data, centers, labels)
		if updateCenters(data, labels, centers, sums, counts) <= k.tol {
			break
		}
	}

	// 最後の割り当てに合わせて中心を平均に揃える。Counts と中心が同じ点の集合を指す
	assignLabels(data, centers, labels)
	updateCenters(data, labels, centers, sums, counts)
	return centers, labels, computeInertia(data, centers, labels), iter
}

// updateCenters は各クラスタの中心をラベルが付いた点の平均にし、中心の移動量の二乗和を返す。
// 空のクラスタは中心を動かさない。
func updateCenters(data [][]float64, labels []int, centers, sums [][]float64, counts []int) float64 {
	for c := range sums {
		for j := range sums[c] {
			sums[c][j] = 0
		}
		counts[c] = 0
	}
	for i, sample := range data {
		floats.Add(sums[labels[i]], sample)
		counts[labels[i]]++
	}

	shift := 0.0
	for c := range centers {
		if counts[c] == 0 {
			continue
		}
		floats.Scale(1/float64(counts[c]), sums[c])
		shift += sqDistance(centers[c], sums[c])
		copy(centers[c], sums[c])
	}
	return shift
}

// initKMeansPlusPlus はk-means++初期化を実行
func (k *KMeans) initKMeansPlusPlus(data [][]float64, rng *rand.Rand) [][]float64 {
	centers := make([][]float64, 0, k.nClusters)
	centers = append(centers, append([]float64(nil), data[rng.IntN(len(data))]...))

	distances := make([]float64, len(data))
	for len(centers) < k.nClusters {
		total := 0.0
		for i, sample := range data {
			distances[i] = sqDistance(sample, centers[findNearestCluster(sample, centers)])
			total += distances[i]
		}

		// 全点が既存の中心と重なるときは先頭から順に採る
		selected := len(centers) % len(data)
		if total > 0 {
			target := rng.Float64() * total
			cum := 0.0
			for i, d := range distances {
				cum += d
				if cum >= target && d > 0 {
					selected = i
					break
				}
			}
		}
		centers = append(centers, append([]float64(nil), data[selected]...))
	}
	return centers
}

// Predict は各行の最近傍クラスタ番号を n×1 行列で返す
func (k *KMeans) Predict(X mat.Matrix) (mat.Matrix, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if !k.IsFitted() {
		return nil, errors.NewNotFittedError("KMeans", "Predict")
	}
	rows, cols := X.Dims()
	if cols != k.nFeatures_ {
		return nil, errors.NewDimensionError("KMeans.Predict", k.nFeatures_, cols, 1)
	}

	data := make([][]float64, rows)
	for i := range data {
		data[i] = mat.Row(nil, i, X)
	}
	labels := make([]int, rows)
	assignLabels(data, k.clusterCenters_, labels)

	predictions := mat.NewDense(rows, 1, nil)
	for i, c := range labels {
		predictions.Set(i, 0, float64(c))
	}
	return predictions, nil
}

// ClusterCenters は学習されたクラスタ中心を nClusters × nFeatures の行列で返す
func (k *KMeans) ClusterCenters() *mat.Dense {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if len(k.clusterCenters_) == 0 {
		return nil
	}
	out := mat.NewDense(len(k.clusterCenters_), k.nFeatures_, nil)
	for c, center := range k.clusterCenters_ {
		out.SetRow(c, center)
	}
	return out
}

// Labels は学習データのクラスタラベルを返す
func (k *KMeans) Labels() []int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return append([]int(nil), k.labels_...)
}

// Counts は各クラスタに属する学習サンプル数を返す
func (k *KMeans) Counts() []int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return append([]int(nil), k.counts_...)
}

// Inertia は慣性（クラスタ内平方和誤差）を返す
func (k *KMeans) Inertia() float64 {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.inertia_
}

// NIterations は採用した試行のイテレーション数を返す
func (k *KMeans) NIterations() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.nIter_
}

// GetParams はハイパーパラメータを返す
func (k *KMeans) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_clusters":   k.nClusters,
		"max_iter":     k.maxIter,
		"n_init":       k.nInit,
		"tol":          k.tol,
		"random_state": k.randomState,
	}
}

// assignLabels は行ごとに最近傍の中心を求める。行数が多いときは CPU ごとに分割する
func assignLabels(data, centers [][]float64, labels []int) {
	parallel.ParallelizeWithThreshold(len(data), parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			labels[i] = findNearestCluster(data[i], centers)
		}
	})
}

func findNearestCluster(sample []float64, centers [][]float64) int {
	minDist := math.Inf(1)
	nearest := 0
	for c, center := range centers {
		if d := sqDistance(sample, center); d < minDist {
			minDist = d
			nearest = c
		}
	}
	return nearest
}

func computeInertia(data, centers [][]float64, labels []int) float64 {
	inertia := 0.0
	for i, sample := range data {
		inertia += sqDistance(sample, centers[labels[i]])
	}
	return inertia
}

func sqDistance(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}
