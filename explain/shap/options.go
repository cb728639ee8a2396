package shap

// Option は TreeExplainer / KernelExplainer の共通設定
type Option func(*config)

type config struct {
	outputClass  int
	hasClass     bool
	featureNames []string
	nSamples     int
	seed         int64
	workers      int
	bgWeights    []float64
}

func newConfig(opts []Option) config {
	var c config
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithOutputClass は説明するクラスラベルを指定する。
// 指定しなければ最後のクラス（2値分類では陽性クラス）。
func WithOutputClass(label int) Option {
	return func(c *config) {
		c.outputClass = label
		c.hasClass = true
	}
}

// WithFeatureNames は Explanation.FeatureNames に入れる列名
func WithFeatureNames(names ...string) Option {
	return func(c *config) { c.featureNames = append([]string(nil), names...) }
}

// WithNSamples は Kernel SHAP が1行あたりに評価する coalition 数の上限。
// 0 以下なら 2*M + 2048。M はその行で背景と値が異なる特徴量の数。
func WithNSamples(n int) Option {
	return func(c *config) { c.nSamples = n }
}

// WithSeed は coalition サンプリングの乱数シード
func WithSeed(seed int64) Option {
	return func(c *config) { c.seed = seed }
}

// WithWorkers は行を並列に処理するワーカー数。0 以下なら CPU 数
func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

// WithBackgroundWeights は背景行ごとの重み。KMeansBackground の戻り値を渡す
func WithBackgroundWeights(w []float64) Option {
	return func(c *config) { c.bgWeights = append([]float64(nil), w...) }
}
