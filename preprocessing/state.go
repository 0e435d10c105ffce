package preprocessing

import (
	"encoding/json"
	"slices"

	"github.com/YuminosukeSato/tabprep/core/model"
	"github.com/YuminosukeSato/tabprep/pkg/errors"
	"github.com/YuminosukeSato/tabprep/table"
)

// Stats は数値列から学習した統計量
type Stats struct {
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	Q1     float64 `json:"q1"`
	Q3     float64 `json:"q3"`
	MaxAbs float64 `json:"max_abs"`
}

// IQR は四分位範囲 Q3−Q1 を返す
func (s Stats) IQR() float64 {
	return s.Q3 - s.Q1
}

// Range は max−min を返す
func (s Stats) Range() float64 {
	return s.Max - s.Min
}

// ColumnState は1列分の学習結果
type ColumnState struct {
	// Name は入力列名
	Name string `json:"name"`

	// Kind は入力列の種類
	Kind table.Kind `json:"kind"`

	// Stats は数値方式の統計量
	Stats *Stats `json:"stats,omitempty"`

	// Categories はカテゴリ方式の語彙（OneHot は出力順、Ordinal は順位順）
	Categories []string `json:"categories,omitempty"`

	// DropFirst は OneHot で先頭カテゴリの列を出力しないかどうか
	DropFirst bool `json:"drop_first,omitempty"`
}

// OutputNames はこの列から生成される出力列名を返す
func (c ColumnState) OutputNames(p Policy) []string {
	if p != OneHot {
		return []string{c.Name}
	}
	cats := c.retained()
	names := make([]string, len(cats))
	for i, cat := range cats {
		names[i] = oneHotName(c.Name, cat)
	}
	return names
}

func (c ColumnState) retained() []string {
	if c.DropFirst && len(c.Categories) > 0 {
		return c.Categories[1:]
	}
	return c.Categories
}

// State は preprocessing の全変換器が共有する学習済み状態
// Fit 後は変更されない
type State struct {
	Policy  Policy        `json:"policy"`
	Columns []ColumnState `json:"columns"`

	// FeatureRange は MinMax の出力範囲
	FeatureRange [2]float64 `json:"feature_range"`

	// WithMean / WithStd は Standardize の設定
	WithMean bool `json:"with_mean,omitempty"`
	WithStd  bool `json:"with_std,omitempty"`
}

var (
	_ model.FittedState = (*State)(nil)
	_ model.StateCloner = (*State)(nil)
)

// StateType は方式名を返す
func (s *State) StateType() string {
	return string(s.Policy)
}

// Names は学習した入力列名を順に返す
func (s *State) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// OutputNames は Transform の出力列名を順に返す
func (s *State) OutputNames() []string {
	var names []string
	for _, c := range s.Columns {
		names = append(names, c.OutputNames(s.Policy)...)
	}
	return names
}

// Column は名前で列の状態を探す
func (s *State) Column(name string) (ColumnState, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnState{}, false
}

// Clone は深いコピーを返す
func (s *State) Clone() *State {
	out := *s
	out.Columns = make([]ColumnState, len(s.Columns))
	for i, c := range s.Columns {
		cc := c
		if c.Stats != nil {
			st := *c.Stats
			cc.Stats = &st
		}
		cc.Categories = slices.Clone(c.Categories)
		out.Columns[i] = cc
	}
	return &out
}

// CloneState implements model.StateCloner.
func (s *State) CloneState() model.FittedState {
	return s.Clone()
}

// decodeState は JSON から State を復元し、方式を検証する
func decodeState(raw []byte, want Policy) (*State, error) {
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.Wrapf(err, "decode %s state", want)
	}
	if s.Policy != want {
		return nil, errors.NewValidationError("state.policy", "does not match the transformer "+string(want), s.Policy)
	}
	if len(s.Columns) == 0 {
		return nil, errors.NewValidationError("state.columns", "must not be empty", 0)
	}
	for _, c := range s.Columns {
		if want.Categorical() {
			if len(c.Categories) == 0 {
				return nil, errors.NewValidationError("state.categories", "must not be empty", c.Name)
			}
		} else if c.Stats == nil {
			return nil, errors.NewValidationError("state.stats", "missing statistics", c.Name)
		}
	}
	if want.Categorical() {
		if err := checkOutputNames(&s); err != nil {
			return nil, err
		}
		return &s, nil
	}

	// 保存済み状態も Fit と同じ条件で検証する
	f := numericFormulas[want]
	if want == MinMax && !(s.FeatureRange[0] < s.FeatureRange[1]) {
		return nil, errors.NewValidationError("state.feature_range", "min must be less than max", s.FeatureRange)
	}
	if f.scale != nil {
		for _, c := range s.Columns {
			if v, statistic := f.scale(&s, *c.Stats); degenerate(v) {
				return nil, errors.NewDegenerateScaleError(f.owner+".DecodeState", c.Name, string(want), statistic)
			}
		}
	}
	return &s, nil
}

// stateFor は FittedState を期待する方式の *State に変換する
func stateFor(owner, method string, want Policy, state model.FittedState) (*State, error) {
	if state == nil {
		return nil, errors.NewNotFittedError(owner, method)
	}
	s, ok := state.(*State)
	if !ok {
		return nil, errors.NewValidationError("state", "not a preprocessing state", state.StateType())
	}
	if s.Policy != want {
		return nil, errors.NewValidationError("state.policy", "does not match "+owner, s.Policy)
	}
	return s, nil
}

// fitted は型付き nil を避けて *State を FittedState として返す
func fitted(s *State, err error) (model.FittedState, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
