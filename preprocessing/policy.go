// Package preprocessing はテーブル列に対するスケーリング・エンコーディング変換を提供する。
//
// 数値列向けに StandardScaler, MinMaxScaler, MeanNormalizer, MaxAbsScaler,
// RobustScaler、カテゴリ列向けに OneHotEncoder, OrdinalEncoder を実装する。
// いずれも model.Transformer を満たし、Fit が返す *State は不変で
// JSON にシリアライズできる。
package preprocessing

import "github.com/YuminosukeSato/tabprep/pkg/errors"

// Policy は変換方式の名前
type Policy string

const (
	// Standardize は (x−μ)/σ
	Standardize Policy = "standardize"
	// MinMax は (x−min)/(max−min)
	MinMax Policy = "min_max"
	// MeanNormalize は (x−mean)/(max−min)
	MeanNormalize Policy = "mean_normalize"
	// MaxAbs は x/max|x|
	MaxAbs Policy = "max_abs"
	// Robust は (x−median)/IQR
	Robust Policy = "robust"
	// OneHot はカテゴリごとの 0/1 列
	OneHot Policy = "one_hot"
	// Ordinal はカテゴリの順位
	Ordinal Policy = "ordinal"
)

// Policies は全ての変換方式を宣言順で返す
func Policies() []Policy {
	return []Policy{Standardize, MinMax, MeanNormalize, MaxAbs, Robust, OneHot, Ordinal}
}

// ParsePolicy は文字列を Policy に変換する
func ParsePolicy(s string) (Policy, error) {
	p := Policy(s)
	if !p.Valid() {
		return "", errors.NewValidationError("policy", "unknown policy", s)
	}
	return p, nil
}

// Valid は既知の方式かどうかを返す
func (p Policy) Valid() bool {
	for _, known := range Policies() {
		if p == known {
			return true
		}
	}
	return false
}

// Categorical はカテゴリ列を入力とする方式かどうかを返す
func (p Policy) Categorical() bool {
	return p == OneHot || p == Ordinal
}

// String は方式名を返す
func (p Policy) String() string {
	return string(p)
}
