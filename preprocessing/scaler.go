package preprocessing

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/tabprep/core/model"
	"github.com/YuminosukeSato/tabprep/pkg/errors"
	"github.com/YuminosukeSato/tabprep/table"
)

// numericFormula は数値方式ごとの変換式
type numericFormula struct {
	owner  string
	policy Policy

	// scale は除数と統計量名を返す。nil なら除算しない
	scale   func(s *State, st Stats) (float64, string)
	forward func(s *State, st Stats, x float64) float64
	inverse func(s *State, st Stats, y float64) float64
}

// fitNumeric は t の全列を独立に学習する
func fitNumeric(f numericFormula, t *table.Table, state *State) (*State, error) {
	op := f.owner + ".Fit"
	if t == nil {
		return nil, errors.NewModelError(op, "nil table", errors.ErrEmptyData)
	}

	state.Policy = f.policy
	state.Columns = make([]ColumnState, 0, t.NumCols())
	for i := 0; i < t.NumCols(); i++ {
		col := t.ColumnAt(i)
		if col.Kind != table.Numeric {
			return nil, errors.NewKindMismatchError(op, col.Name, table.Numeric.String(), col.Kind.String())
		}

		st, err := describe(op, col.Name, col.Floats)
		if err != nil {
			return nil, err
		}
		if f.scale != nil {
			if v, statistic := f.scale(state, st); degenerate(v) {
				return nil, errors.NewDegenerateScaleError(op, col.Name, string(f.policy), statistic)
			}
		}

		stats := st
		state.Columns = append(state.Columns, ColumnState{Name: col.Name, Kind: table.Numeric, Stats: &stats})
	}
	return state, nil
}

// degenerate は除数として使えない値かどうかを返す
func degenerate(v float64) bool {
	return v == 0 || math.IsNaN(v) || math.IsInf(v, 0)
}

// numericFormulas は数値方式から変換式を引く
var numericFormulas = map[Policy]numericFormula{
	Standardize:   standardFormula,
	MinMax:        minMaxFormula,
	MeanNormalize: meanNormFormula,
	MaxAbs:        maxAbsFormula,
	Robust:        robustFormula,
}

// mapNumeric は状態の列順に t の列を選び、要素ごとに fn を適用する
func mapNumeric(op string, t *table.Table, s *State, fn func(s *State, st Stats, x float64) float64) (*table.Table, error) {
	if t == nil {
		return nil, errors.NewModelError(op, "nil table", errors.ErrEmptyData)
	}

	cols := make([]table.Column, len(s.Columns))
	for i, c := range s.Columns {
		values, err := numericColumn(op, t, c.Name)
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(values))
		for r, x := range values {
			out[r] = fn(s, *c.Stats, x)
		}
		cols[i] = table.Column{Name: c.Name, Kind: table.Numeric, Floats: out}
	}
	return table.New(cols...)
}

func numericColumn(op string, t *table.Table, name string) ([]float64, error) {
	if !t.Has(name) {
		return nil, errors.NewMissingColumnError(op, name)
	}
	values, ok := t.Floats(name)
	if !ok {
		col, _ := t.Column(name)
		return nil, errors.NewKindMismatchError(op, name, table.Numeric.String(), col.Kind.String())
	}
	return values, nil
}

func transformNumeric(f numericFormula, t *table.Table, state model.FittedState) (*table.Table, error) {
	s, err := stateFor(f.owner, "Transform", f.policy, state)
	if err != nil {
		return nil, err
	}
	return mapNumeric(f.owner+".Transform", t, s, f.forward)
}

func inverseNumeric(f numericFormula, t *table.Table, state model.FittedState) (*table.Table, error) {
	s, err := stateFor(f.owner, "InverseTransform", f.policy, state)
	if err != nil {
		return nil, err
	}
	return mapNumeric(f.owner+".InverseTransform", t, s, f.inverse)
}

// ===========================================================================
// StandardScaler
// ===========================================================================

var standardFormula = numericFormula{
	owner:  "StandardScaler",
	policy: Standardize,
	scale: func(s *State, st Stats) (float64, string) {
		if !s.WithStd {
			return 1, ""
		}
		return st.Std, "std"
	},
	forward: func(s *State, st Stats, x float64) float64 {
		if s.WithMean {
			x -= st.Mean
		}
		if s.WithStd {
			x /= st.Std
		}
		return x
	},
	inverse: func(s *State, st Stats, y float64) float64 {
		if s.WithStd {
			y *= st.Std
		}
		if s.WithMean {
			y += st.Mean
		}
		return y
	},
}

// StandardScaler は各列を平均0、標準偏差1に変換する
// 標準偏差は母標準偏差（n で割る）を用いる
type StandardScaler struct {
	withMean bool
	withStd  bool
}

// StandardScalerOption は StandardScaler の設定
type StandardScalerOption func(*StandardScaler)

// WithMean は平均を引くかどうかを設定する（デフォルト: true）
func WithMean(on bool) StandardScalerOption {
	return func(s *StandardScaler) {
		s.withMean = on
	}
}

// WithStd は標準偏差で割るかどうかを設定する（デフォルト: true）
// false の場合は定数列でもエラーにならない
func WithStd(on bool) StandardScalerOption {
	return func(s *StandardScaler) {
		s.withStd = on
	}
}

// NewStandardScaler は新しいStandardScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewStandardScaler()
//	state, err := scaler.Fit(train)
//	scaled, err := scaler.Transform(test, state)
func NewStandardScaler(opts ...StandardScalerOption) *StandardScaler {
	s := &StandardScaler{withMean: true, withStd: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fit は各列の平均と標準偏差を学習する
// 標準偏差が0の列は DegenerateScaleError
func (s *StandardScaler) Fit(t *table.Table) (model.FittedState, error) {
	return fitted(fitNumeric(standardFormula, t, &State{WithMean: s.withMean, WithStd: s.withStd}))
}

// Transform は (x−μ)/σ を適用する
func (s *StandardScaler) Transform(t *table.Table, state model.FittedState) (*table.Table, error) {
	return transformNumeric(standardFormula, t, state)
}

// InverseTransform は x·σ+μ で元のスケールに戻す
func (s *StandardScaler) InverseTransform(t *table.Table, state model.FittedState) (*table.Table, error) {
	return inverseNumeric(standardFormula, t, state)
}

// DecodeState implements model.StateDecoder.
func (s *StandardScaler) DecodeState(raw []byte) (model.FittedState, error) {
	return fitted(decodeState(raw, Standardize))
}

// String はスケーラーの文字列表現を返す
func (s *StandardScaler) String() string {
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.withMean, s.withStd)
}

// ===========================================================================
// MinMaxScaler
// ===========================================================================

var minMaxFormula = numericFormula{
	owner:  "MinMaxScaler",
	policy: MinMax,
	scale: func(_ *State, st Stats) (float64, string) {
		return st.Range(), "range"
	},
	forward: func(s *State, st Stats, x float64) float64 {
		lo, hi := s.FeatureRange[0], s.FeatureRange[1]
		return (x-st.Min)/st.Range()*(hi-lo) + lo
	},
	inverse: func(s *State, st Stats, y float64) float64 {
		lo, hi := s.FeatureRange[0], s.FeatureRange[1]
		return (y-lo)/(hi-lo)*st.Range() + st.Min
	},
}

// MinMaxScaler は各列を指定した範囲（デフォルト[0,1]）にスケーリングする
// 学習範囲外の値はクリップしない
type MinMaxScaler struct {
	featureRange [2]float64
}

// MinMaxOption は MinMaxScaler の設定
type MinMaxOption func(*MinMaxScaler)

// WithFeatureRange は出力範囲 [lo, hi] を設定する
func WithFeatureRange(lo, hi float64) MinMaxOption {
	return func(m *MinMaxScaler) {
		m.featureRange = [2]float64{lo, hi}
	}
}

// NewMinMaxScaler は新しいMinMaxScalerを作成する
func NewMinMaxScaler(opts ...MinMaxOption) *MinMaxScaler {
	m := &MinMaxScaler{featureRange: [2]float64{0, 1}}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Validate は出力範囲が lo < hi を満たすか検証する
func (m *MinMaxScaler) Validate() error {
	if !(m.featureRange[0] < m.featureRange[1]) {
		return errors.NewValidationError("feature_range", "lower bound must be less than upper bound", m.featureRange)
	}
	return nil
}

// Fit は各列の最小値・最大値を学習する
// max=min の列は DegenerateScaleError
func (m *MinMaxScaler) Fit(t *table.Table) (model.FittedState, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return fitted(fitNumeric(minMaxFormula, t, &State{FeatureRange: m.featureRange}))
}

// Transform は (x−min)/(max−min)·(hi−lo)+lo を適用する
func (m *MinMaxScaler) Transform(t *table.Table, state model.FittedState) (*table.Table, error) {
	return transformNumeric(minMaxFormula, t, state)
}

// InverseTransform はスケーリングされたデータを元の範囲に戻す
func (m *MinMaxScaler) InverseTransform(t *table.Table, state model.FittedState) (*table.Table, error) {
	return inverseNumeric(minMaxFormula, t, state)
}

// DecodeState implements model.StateDecoder.
func (m *MinMaxScaler) DecodeState(raw []byte) (model.FittedState, error) {
	return fitted(decodeState(raw, MinMax))
}

// String はスケーラーの文字列表現を返す
func (m *MinMaxScaler) String() string {
	return fmt.Sprintf("MinMaxScaler(feature_range=[%g, %g])", m.featureRange[0], m.featureRange[1])
}

// ===========================================================================
// MeanNormalizer
// ===========================================================================

var meanNormFormula = numericFormula{
	owner:  "MeanNormalizer",
	policy: MeanNormalize,
	scale: func(_ *State, st Stats) (float64, string) {
		return st.Range(), "range"
	},
	forward: func(_ *State, st Stats, x float64) float64 {
		return (x - st.Mean) / st.Range()
	},
	inverse: func(_ *State, st Stats, y float64) float64 {
		return y*st.Range() + st.Mean
	},
}

// MeanNormalizer は (x−mean)/(max−min) で各列を正規化する
type MeanNormalizer struct{}

// NewMeanNormalizer は新しいMeanNormalizerを作成する
func NewMeanNormalizer() *MeanNormalizer {
	return &MeanNormalizer{}
}

// Fit は各列の平均・最小値・最大値を学習する
func (n *MeanNormalizer) Fit(t *table.Table) (model.FittedState, error) {
	return fitted(fitNumeric(meanNormFormula, t, &State{}))
}

// Transform は (x−mean)/(max−min) を適用する
func (n *MeanNormalizer) Transform(t *table.Table, state model.FittedState) (*table.Table, error) {
	return transformNumeric(meanNormFormula, t, state)
}

// InverseTransform は x·(max−min)+mean で元に戻す
func (n *MeanNormalizer) InverseTransform(t *table.Table, state model.FittedState) (*table.Table, error) {
	return inverseNumeric(meanNormFormula, t, state)
}

// DecodeState implements model.StateDecoder.
func (n *MeanNormalizer) DecodeState(raw []byte) (model.FittedState, error) {
	return fitted(decodeState(raw, MeanNormalize))
}

func (n *MeanNormalizer) String() string { return "MeanNormalizer()" }

// ===========================================================================
// MaxAbsScaler
// ===========================================================================

var maxAbsFormula = numericFormula{
	owner:  "MaxAbsScaler",
	policy: MaxAbs,
	scale: func(_ *State, st Stats) (float64, string) {
		return st.MaxAbs, "max_abs"
	},
	forward: func(_ *State, st Stats, x float64) float64 {
		return x / st.MaxAbs
	},
	inverse: func(_ *State, st Stats, y float64) float64 {
		return y * st.MaxAbs
	},
}

// MaxAbsScaler は各列を絶対値の最大値で割る
// 符号と0は保たれる
type MaxAbsScaler struct{}

// NewMaxAbsScaler は新しいMaxAbsScalerを作成する
func NewMaxAbsScaler() *MaxAbsScaler {
	return &MaxAbsScaler{}
}

// Fit は各列の max|x| を学習する
func (m *MaxAbsScaler) Fit(t *table.Table) (model.FittedState, error) {
	return fitted(fitNumeric(maxAbsFormula, t, &State{}))
}

// Transform は x/max|x| を適用する
func (m *MaxAbsScaler) Transform(t *table.Table, state model.FittedState) (*table.Table, error) {
	return transformNumeric(maxAbsFormula, t, state)
}

// InverseTransform は x·max|x| で元に戻す
func (m *MaxAbsScaler) InverseTransform(t *table.Table, state model.FittedState) (*table.Table, error) {
	return inverseNumeric(maxAbsFormula, t, state)
}

// DecodeState implements model.StateDecoder.
func (m *MaxAbsScaler) DecodeState(raw []byte) (model.FittedState, error) {
	return fitted(decodeState(raw, MaxAbs))
}

func (m *MaxAbsScaler) String() string { return "MaxAbsScaler()" }

// ===========================================================================
// RobustScaler
// ===========================================================================

var robustFormula = numericFormula{
	owner:  "RobustScaler",
	policy: Robust,
	scale: func(_ *State, st Stats) (float64, string) {
		return st.IQR(), "iqr"
	},
	forward: func(_ *State, st Stats, x float64) float64 {
		return (x - st.Median) / st.IQR()
	},
	inverse: func(_ *State, st Stats, y float64) float64 {
		return y*st.IQR() + st.Median
	},
}

// RobustScaler は中央値と四分位範囲で各列をスケーリングする
// 外れ値の影響を受けにくい
type RobustScaler struct{}

// NewRobustScaler は新しいRobustScalerを作成する
func NewRobustScaler() *RobustScaler {
	return &RobustScaler{}
}

// Fit は各列の中央値・Q1・Q3 を学習する
// IQR=0 の列は DegenerateScaleError
func (r *RobustScaler) Fit(t *table.Table) (model.FittedState, error) {
	return fitted(fitNumeric(robustFormula, t, &State{}))
}

// Transform は (x−median)/IQR を適用する
func (r *RobustScaler) Transform(t *table.Table, state model.FittedState) (*table.Table, error) {
	return transformNumeric(robustFormula, t, state)
}

// InverseTransform は x·IQR+median で元に戻す
func (r *RobustScaler) InverseTransform(t *table.Table, state model.FittedState) (*table.Table, error) {
	return inverseNumeric(robustFormula, t, state)
}

// DecodeState implements model.StateDecoder.
func (r *RobustScaler) DecodeState(raw []byte) (model.FittedState, error) {
	return fitted(decodeState(raw, Robust))
}

func (r *RobustScaler) String() string { return "RobustScaler()" }

var (
	_ model.InverseTransformer = (*StandardScaler)(nil)
	_ model.InverseTransformer = (*MinMaxScaler)(nil)
	_ model.InverseTransformer = (*MeanNormalizer)(nil)
	_ model.InverseTransformer = (*MaxAbsScaler)(nil)
	_ model.InverseTransformer = (*RobustScaler)(nil)
	_ model.StateDecoder       = (*StandardScaler)(nil)
	_ model.StateDecoder       = (*MinMaxScaler)(nil)
	_ model.StateDecoder       = (*MeanNormalizer)(nil)
	_ model.StateDecoder       = (*MaxAbsScaler)(nil)
	_ model.StateDecoder       = (*RobustScaler)(nil)
)
