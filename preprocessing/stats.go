package preprocessing

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/tabprep/pkg/errors"
)

// finite は NaN と ±Inf を除いた値を新しいスライスで返す
func finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// describe は有限値から全統計量を計算する
// 有限値が無い列は ErrEmptyData
func describe(op, column string, values []float64) (Stats, error) {
	x := finite(values)
	if len(x) == 0 {
		return Stats{}, errors.NewModelError(op, "column '"+column+"' has no finite values", errors.ErrEmptyData)
	}

	mean, std := stat.PopMeanStdDev(x, nil)
	sort.Float64s(x)

	st := Stats{
		Mean:   mean,
		Std:    std,
		Min:    floats.Min(x),
		Max:    floats.Max(x),
		Median: quantile(x, 0.5),
		Q1:     quantile(x, 0.25),
		Q3:     quantile(x, 0.75),
	}
	st.MaxAbs = math.Max(math.Abs(st.Min), math.Abs(st.Max))
	return st, nil
}

// quantile はソート済みの値から p 分位点を線形補間で求める
// h=(n−1)p の前後の順位を補間する（R type 7）
func quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i >= n-1 {
		return sorted[n-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}
