package dataframe

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/censusml/pkg/errors"
	"github.com/YuminosukeSato/censusml/pkg/log"
)

// SplitOptions は Split の設定
type SplitOptions struct {
	// Shuffle は分割前に行をシャッフルする
	Shuffle bool
	// Seed はシャッフルの乱数シード
	Seed int64
}

// splitEpsilon は fraction*rows の浮動小数点誤差を吸収する。
// 0.07*100 が 7.000000000000001 になっても訓練用は 7 行になる。
const splitEpsilon = 1e-9

// Split は行を訓練用と検証用に分ける。
// 行順（Shuffle ならシード付きで並べ替えた順）の先頭 ceil(fraction*rows) 行が訓練用、
// 残りが検証用になる。どちらもすべての列を持つ。
func (f *Frame) Split(fraction float64, opts SplitOptions) (train, validation *Frame, err error) {
	if !(fraction > 0 && fraction < 1) {
		return nil, nil, errors.NewValidationError("fraction", "must be in (0, 1)", fraction)
	}
	return f.splitAt("dataframe.Split", opts, func(n int) int { return TrainRows(fraction, n) })
}

// SplitValidation は検証用の割合 share から分割する。
// 検証用は floor(share*rows) 行で、訓練用は Split(1-share) と同じ ceil((1-share)*rows) 行になる。
// 1-share を実行時に計算したときの丸め誤差を受けない。
func (f *Frame) SplitValidation(share float64, opts SplitOptions) (train, validation *Frame, err error) {
	if !(share > 0 && share < 1) {
		return nil, nil, errors.NewValidationError("validation_fraction", "must be in (0, 1)", share)
	}
	return f.splitAt("dataframe.SplitValidation", opts, func(n int) int { return n - ValidationRows(share, n) })
}

// TrainRows は Split(fraction) の訓練用の行数 ceil(fraction*rows)。少なくとも1行
func TrainRows(fraction float64, n int) int {
	cut := int(math.Ceil(fraction*float64(n) - splitEpsilon))
	return min(max(cut, 1), n)
}

// ValidationRows は SplitValidation(share) の検証用の行数 floor(share*rows)
func ValidationRows(share float64, n int) int {
	return min(max(int(math.Floor(share*float64(n)+splitEpsilon)), 0), n-1)
}

func (f *Frame) splitAt(op string, opts SplitOptions, trainRows func(n int) int) (train, validation *Frame, err error) {
	n := f.Rows()
	if n == 0 {
		return nil, nil, errors.NewModelError(op, "empty frame", errors.ErrEmptyData)
	}

	order := SplitOrder(n, opts)
	cut := trainRows(n)
	if train, err = f.Take(order[:cut]); err != nil {
		return nil, nil, err
	}
	if validation, err = f.Take(order[cut:]); err != nil {
		return nil, nil, err
	}

	f.logger().Debug("frame split",
		log.OperationKey, op,
		"train_rows", train.Rows(),
		"validation_rows", validation.Rows(),
		log.RandomSeedKey, opts.Seed,
	)
	return train, validation, nil
}

// SplitOrder は Split が使う行の並びを返す
func SplitOrder(n int, opts SplitOptions) []int {
	if !opts.Shuffle {
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		return order
	}
	rng := rand.New(rand.NewPCG(uint64(opts.Seed), 0x9e3779b97f4a7c15))
	return rng.Perm(n)
}
