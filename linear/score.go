package linear

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/tabprep/pkg/errors"
)

// residuals は n×1 行列 yTrue, yPred を検証し、値を取り出す
func residuals(op string, yTrue, yPred mat.Matrix) (truth, pred []float64, err error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()
	if rTrue == 0 || cTrue == 0 {
		return nil, nil, errors.NewValueError(op, "empty matrix")
	}
	if rTrue != rPred {
		return nil, nil, errors.NewDimensionError(op, rTrue, rPred, 0)
	}
	if cTrue != 1 || cPred != 1 {
		return nil, nil, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}

	truth = make([]float64, rTrue)
	pred = make([]float64, rTrue)
	for i := range truth {
		truth[i] = yTrue.At(i, 0)
		pred[i] = yPred.At(i, 0)
	}
	return truth, pred, nil
}

// MeanSquaredError は平均二乗誤差を計算する
func MeanSquaredError(yTrue, yPred mat.Matrix) (float64, error) {
	truth, pred, err := residuals("MeanSquaredError", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := range truth {
		d := truth[i] - pred[i]
		sum += d * d
	}
	return sum / float64(len(truth)), nil
}

// MeanAbsoluteError は平均絶対誤差を計算する
func MeanAbsoluteError(yTrue, yPred mat.Matrix) (float64, error) {
	truth, pred, err := residuals("MeanAbsoluteError", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := range truth {
		sum += math.Abs(truth[i] - pred[i])
	}
	return sum / float64(len(truth)), nil
}

// R2Score は決定係数（R²）を計算する
// yTrue に分散がない場合はエラー
func R2Score(yTrue, yPred mat.Matrix) (float64, error) {
	truth, pred, err := residuals("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	mean := stat.Mean(truth, nil)

	// 全変動（TSS）と残差変動（RSS）
	var tss, rss float64
	for i := range truth {
		tss += (truth[i] - mean) * (truth[i] - mean)
		rss += (truth[i] - pred[i]) * (truth[i] - pred[i])
	}
	if tss == 0 {
		return 0, errors.NewValueError("R2Score", "total sum of squares is zero (no variance in yTrue)")
	}
	return 1 - rss/tss, nil
}
