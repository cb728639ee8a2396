package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// BrierScore は予測確率と0/1ラベルの平均二乗誤差を計算する
func BrierScore(yTrue, yProb *mat.VecDense) (float64, error) {
	n, err := checkPair("BrierScore", yTrue, yProb)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("BrierScore", yTrue); err != nil {
		return 0, err
	}
	var diff mat.VecDense
	diff.SubVec(yTrue, yProb)
	return mat.Dot(&diff, &diff) / float64(n), nil
}

// MAE は平均絶対誤差を計算する。
// 説明値の加法性チェック（sum(phi)+base と予測値の差）にも使う。
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}
