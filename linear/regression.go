// Package linear は パイプライン終端に置ける線形回帰モデルを提供する
package linear

import (
	"encoding/json"
	"io"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabprep/core/model"
	"github.com/YuminosukeSato/tabprep/pkg/errors"
)

// LinearRegression は線形回帰モデル
// model.Consumer を満たし、パイプラインの終端ステージとして使える
type LinearRegression struct {
	mu           sync.RWMutex
	fitIntercept bool
	fitted       bool
	weights      *mat.VecDense // 重み（係数）
	intercept    float64       // 切片
	nFeatures    int           // 特徴量の数
}

var _ model.Consumer = (*LinearRegression)(nil)

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{fitIntercept: true}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習させる
// 正規方程式 w = (X^T * X)^(-1) * X^T * y を使用
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	// 入力の検証
	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LinearRegression.Fit", "y must be a column vector")
	}

	// 切片項のために X に 1 の列を追加
	offset := 0
	if lr.fitIntercept {
		offset = 1
	}
	design := mat.NewDense(r, c+offset, nil)
	for i := 0; i < r; i++ {
		if lr.fitIntercept {
			design.Set(i, 0, 1.0)
		}
		for j := 0; j < c; j++ {
			design.Set(i, j+offset, X.At(i, j))
		}
	}

	var XTX mat.Dense
	XTX.Mul(design.T(), design)

	// 逆行列を計算
	var XTXInv mat.Dense
	if err := XTXInv.Inverse(&XTX); err != nil {
		return errors.NewModelError("LinearRegression.Fit", "singular matrix", err)
	}

	yVec := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		yVec.SetVec(i, y.At(i, 0))
	}

	var XTy mat.VecDense
	XTy.MulVec(design.T(), yVec)

	solution := mat.NewVecDense(c+offset, nil)
	solution.MulVec(&XTXInv, &XTy)

	// 切片と重みを分離
	weights := mat.NewVecDense(c, nil)
	for j := 0; j < c; j++ {
		weights.SetVec(j, solution.AtVec(j+offset))
	}
	intercept := 0.0
	if lr.fitIntercept {
		intercept = solution.AtVec(0)
	}

	lr.mu.Lock()
	defer lr.mu.Unlock()
	lr.weights = weights
	lr.intercept = intercept
	lr.nFeatures = c
	lr.fitted = true
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	if !lr.fitted {
		return nil, errors.NewNotFittedError("LinearRegression", "Predict")
	}

	r, c := X.Dims()
	if c != lr.nFeatures {
		return nil, errors.NewDimensionError("LinearRegression.Predict", lr.nFeatures, c, 1)
	}

	// 予測: y = X * weights + intercept
	predictions := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		pred := lr.intercept
		for j := 0; j < c; j++ {
			pred += X.At(i, j) * lr.weights.AtVec(j)
		}
		predictions.Set(i, 0, pred)
	}
	return predictions, nil
}

// Weights は学習された重み（係数）を返す
func (lr *LinearRegression) Weights() []float64 {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	if lr.weights == nil {
		return nil
	}
	weights := make([]float64, lr.weights.Len())
	for i := range weights {
		weights[i] = lr.weights.AtVec(i)
	}
	return weights
}

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	return lr.intercept
}

// Score はモデルの決定係数（R²）を計算する
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	yPred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return R2Score(y, yPred)
}

// Params は係数のシリアライズ形式
type Params struct {
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	NFeatures    int       `json:"n_features"`
}

// Export はモデルを JSON で w に書き出す
func (lr *LinearRegression) Export(w io.Writer) error {
	lr.mu.RLock()
	fitted := lr.fitted
	lr.mu.RUnlock()
	if !fitted {
		return errors.NewNotFittedError("LinearRegression", "Export")
	}

	params := Params{Coefficients: lr.Weights(), Intercept: lr.Intercept(), NFeatures: len(lr.Weights())}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(&params); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// Load は Export が書き出した JSON からモデルを読み込む
//
// 使用例:
//
//	lr := linear.NewLinearRegression()
//	err := lr.Load(file)
func (lr *LinearRegression) Load(r io.Reader) error {
	var params Params
	if err := json.NewDecoder(r).Decode(&params); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	if params.NFeatures != len(params.Coefficients) || params.NFeatures == 0 {
		return errors.NewValidationError("n_features", "does not match coefficients", params.NFeatures)
	}

	lr.mu.Lock()
	defer lr.mu.Unlock()
	lr.weights = mat.NewVecDense(len(params.Coefficients), params.Coefficients)
	lr.intercept = params.Intercept
	lr.nFeatures = params.NFeatures
	lr.fitted = true
	return nil
}
