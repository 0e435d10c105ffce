package preprocessing

import (
	"fmt"
	"math"
	"sort"

	"github.com/YuminosukeSato/tabprep/core/model"
	"github.com/YuminosukeSato/tabprep/pkg/errors"
	"github.com/YuminosukeSato/tabprep/table"
)

func oneHotName(column, category string) string {
	return column + "_" + category
}

// categoricalColumn は t から名前でカテゴリ列を取り出す
func categoricalColumn(op string, t *table.Table, name string) ([]string, error) {
	if !t.Has(name) {
		return nil, errors.NewMissingColumnError(op, name)
	}
	values, ok := t.Strings(name)
	if !ok {
		col, _ := t.Column(name)
		return nil, errors.NewKindMismatchError(op, name, table.Categorical.String(), col.Kind.String())
	}
	return values, nil
}

// distinct は出現順で重複を除いたカテゴリを返す
func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// checkVocabulary は指定された語彙が空でなく重複しないことを検証する
func checkVocabulary(param, column string, cats []string) error {
	if len(cats) == 0 {
		return errors.NewValidationError(param, "must not be empty", column)
	}
	seen := make(map[string]struct{}, len(cats))
	for _, c := range cats {
		if _, dup := seen[c]; dup {
			return errors.NewValidationError(param, fmt.Sprintf("duplicate category %q for column '%s'", c, column), cats)
		}
		seen[c] = struct{}{}
	}
	return nil
}

func indexOf(cats []string) map[string]int {
	idx := make(map[string]int, len(cats))
	for i, c := range cats {
		idx[c] = i
	}
	return idx
}

// ===========================================================================
// OneHotEncoder
// ===========================================================================

// OneHotEncoder はカテゴリ列を語彙ごとの 0/1 列に展開する
//
// 出力列名は "<列名>_<カテゴリ>"。語彙に無い値は全て0の行になり、エラーにはならない。
type OneHotEncoder struct {
	dropFirst  bool
	sorted     bool
	categories map[string][]string
}

// OneHotOption は OneHotEncoder の設定
type OneHotOption func(*OneHotEncoder)

// WithDropFirst は語彙の先頭カテゴリの列を出力しない
func WithDropFirst() OneHotOption {
	return func(e *OneHotEncoder) {
		e.dropFirst = true
	}
}

// WithSortedCategories は語彙を出現順ではなく辞書順にする
func WithSortedCategories() OneHotOption {
	return func(e *OneHotEncoder) {
		e.sorted = true
	}
}

// WithCategories は column の語彙を固定する
// 学習データ中の語彙外の値は Fit で無視され、Transform では全て0になる
func WithCategories(column string, categories ...string) OneHotOption {
	return func(e *OneHotEncoder) {
		e.categories[column] = append([]string(nil), categories...)
	}
}

// NewOneHotEncoder は新しいOneHotEncoderを作成する
//
// 使用例:
//
//	enc := preprocessing.NewOneHotEncoder(preprocessing.WithDropFirst())
//	state, err := enc.Fit(train)
//	encoded, err := enc.Transform(test, state)
func NewOneHotEncoder(opts ...OneHotOption) *OneHotEncoder {
	e := &OneHotEncoder{categories: make(map[string][]string)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate は固定語彙を検証する
func (e *OneHotEncoder) Validate() error {
	for column, cats := range e.categories {
		if err := checkVocabulary("categories", column, cats); err != nil {
			return err
		}
	}
	return nil
}

// Fit は各列の語彙を学習する
func (e *OneHotEncoder) Fit(t *table.Table) (model.FittedState, error) {
	const op = "OneHotEncoder.Fit"
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.NewModelError(op, "nil table", errors.ErrEmptyData)
	}

	state := &State{Policy: OneHot, Columns: make([]ColumnState, 0, t.NumCols())}
	for i := 0; i < t.NumCols(); i++ {
		col := t.ColumnAt(i)
		if col.Kind != table.Categorical {
			return nil, errors.NewKindMismatchError(op, col.Name, table.Categorical.String(), col.Kind.String())
		}

		cats, fixed := e.categories[col.Name]
		if !fixed {
			cats = distinct(col.Strings)
			if e.sorted {
				sort.Strings(cats)
			}
		}
		if len(cats) == 0 {
			return nil, errors.NewModelError(op, "column '"+col.Name+"' has no categories", errors.ErrEmptyData)
		}
		if e.dropFirst && len(cats) < 2 {
			return nil, errors.NewValidationError("drop_first", "requires at least two categories", col.Name)
		}

		state.Columns = append(state.Columns, ColumnState{
			Name:       col.Name,
			Kind:       table.Categorical,
			Categories: append([]string(nil), cats...),
			DropFirst:  e.dropFirst,
		})
	}

	if err := checkOutputNames(state); err != nil {
		return nil, err
	}
	return state, nil
}

// checkOutputNames は出力列名の重複を検出する
// 列名とカテゴリの組み合わせによっては a + "_" + "b_c" と a_b + "_" + "c" が衝突する
func checkOutputNames(s *State) error {
	seen := make(map[string]struct{})
	for _, name := range s.OutputNames() {
		if _, dup := seen[name]; dup {
			return errors.NewValidationError("one_hot.output", "duplicate output column name", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Transform は各カテゴリ列を 0/1 の数値列に展開する
func (e *OneHotEncoder) Transform(t *table.Table, state model.FittedState) (*table.Table, error) {
	const op = "OneHotEncoder.Transform"
	s, err := stateFor("OneHotEncoder", "Transform", OneHot, state)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.NewModelError(op, "nil table", errors.ErrEmptyData)
	}

	var cols []table.Column
	for _, c := range s.Columns {
		values, err := categoricalColumn(op, t, c.Name)
		if err != nil {
			return nil, err
		}
		retained := c.retained()
		idx := indexOf(retained)
		block := make([][]float64, len(retained))
		for j := range block {
			block[j] = make([]float64, len(values))
		}
		for r, v := range values {
			if j, ok := idx[v]; ok {
				block[j][r] = 1
			}
		}
		for j, cat := range retained {
			cols = append(cols, table.Column{Name: oneHotName(c.Name, cat), Kind: table.Numeric, Floats: block[j]})
		}
	}
	return table.New(cols...)
}

// InverseTransform は指示列のブロックを最大値のカテゴリに戻す
// 全て0の行は DropFirst なら先頭カテゴリ、そうでなければ空文字列になる
func (e *OneHotEncoder) InverseTransform(t *table.Table, state model.FittedState) (*table.Table, error) {
	const op = "OneHotEncoder.InverseTransform"
	s, err := stateFor("OneHotEncoder", "InverseTransform", OneHot, state)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.NewModelError(op, "nil table", errors.ErrEmptyData)
	}

	cols := make([]table.Column, len(s.Columns))
	for i, c := range s.Columns {
		retained := c.retained()
		block := make([][]float64, len(retained))
		for j, name := range c.OutputNames(OneHot) {
			values, err := numericColumn(op, t, name)
			if err != nil {
				return nil, err
			}
			block[j] = values
		}

		fallback := ""
		if c.DropFirst {
			fallback = c.Categories[0]
		}
		out := make([]string, t.NumRows())
		for r := range out {
			best, bestVal := -1, 0.0
			for j := range block {
				if v := block[j][r]; v > bestVal {
					best, bestVal = j, v
				}
			}
			if best < 0 {
				out[r] = fallback
			} else {
				out[r] = retained[best]
			}
		}
		cols[i] = table.Column{Name: c.Name, Kind: table.Categorical, Strings: out}
	}
	return table.New(cols...)
}

// DecodeState implements model.StateDecoder.
func (e *OneHotEncoder) DecodeState(raw []byte) (model.FittedState, error) {
	return fitted(decodeState(raw, OneHot))
}

// String はエンコーダの文字列表現を返す
func (e *OneHotEncoder) String() string {
	return fmt.Sprintf("OneHotEncoder(drop_first=%t, sorted=%t)", e.dropFirst, e.sorted)
}

// ===========================================================================
// OrdinalEncoder
// ===========================================================================

// OrdinalEncoder はカテゴリを0始まりの順位に変換する
//
// 順位は WithCategoryOrder / WithDefaultOrder で指定するか、
// 指定が無ければ学習データの異なり語を辞書順に並べたものになる。
type OrdinalEncoder struct {
	orders       map[string][]string
	defaultOrder []string
}

// OrdinalOption は OrdinalEncoder の設定
type OrdinalOption func(*OrdinalEncoder)

// WithCategoryOrder は column のカテゴリ順を指定する
func WithCategoryOrder(column string, order ...string) OrdinalOption {
	return func(e *OrdinalEncoder) {
		e.orders[column] = append([]string(nil), order...)
	}
}

// WithDefaultOrder は順序指定の無い全ての列に使うカテゴリ順を指定する
func WithDefaultOrder(order ...string) OrdinalOption {
	return func(e *OrdinalEncoder) {
		e.defaultOrder = append([]string(nil), order...)
	}
}

// NewOrdinalEncoder は新しいOrdinalEncoderを作成する
//
// 使用例:
//
//	enc := preprocessing.NewOrdinalEncoder(
//	    preprocessing.WithCategoryOrder("education", "High School", "Bachelor", "Master", "PhD"),
//	)
func NewOrdinalEncoder(opts ...OrdinalOption) *OrdinalEncoder {
	e := &OrdinalEncoder{orders: make(map[string][]string)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate は指定されたカテゴリ順を検証する
func (e *OrdinalEncoder) Validate() error {
	for column, order := range e.orders {
		if err := checkVocabulary("category_order", column, order); err != nil {
			return err
		}
	}
	if e.defaultOrder != nil {
		if err := checkVocabulary("default_order", "*", e.defaultOrder); err != nil {
			return err
		}
	}
	return nil
}

// Fit は各列のカテゴリ順を決める
// 指定順に無いカテゴリが学習データにあれば UnknownCategoryError
func (e *OrdinalEncoder) Fit(t *table.Table) (model.FittedState, error) {
	const op = "OrdinalEncoder.Fit"
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.NewModelError(op, "nil table", errors.ErrEmptyData)
	}

	state := &State{Policy: Ordinal, Columns: make([]ColumnState, 0, t.NumCols())}
	for i := 0; i < t.NumCols(); i++ {
		col := t.ColumnAt(i)
		if col.Kind != table.Categorical {
			return nil, errors.NewKindMismatchError(op, col.Name, table.Categorical.String(), col.Kind.String())
		}

		seen := distinct(col.Strings)
		order, ok := e.orders[col.Name]
		if !ok {
			order = e.defaultOrder
		}
		if order == nil {
			order = append([]string(nil), seen...)
			sort.Strings(order)
		} else {
			idx := indexOf(order)
			for _, v := range seen {
				if _, known := idx[v]; !known {
					return nil, errors.NewUnknownCategoryError(op, col.Name, v)
				}
			}
			order = append([]string(nil), order...)
		}
		if len(order) == 0 {
			return nil, errors.NewModelError(op, "column '"+col.Name+"' has no categories", errors.ErrEmptyData)
		}

		state.Columns = append(state.Columns, ColumnState{Name: col.Name, Kind: table.Categorical, Categories: order})
	}
	return state, nil
}

// Transform は各カテゴリを順位（float64）に変換する
// 学習していないカテゴリは UnknownCategoryError
func (e *OrdinalEncoder) Transform(t *table.Table, state model.FittedState) (*table.Table, error) {
	const op = "OrdinalEncoder.Transform"
	s, err := stateFor("OrdinalEncoder", "Transform", Ordinal, state)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.NewModelError(op, "nil table", errors.ErrEmptyData)
	}

	cols := make([]table.Column, len(s.Columns))
	for i, c := range s.Columns {
		values, err := categoricalColumn(op, t, c.Name)
		if err != nil {
			return nil, err
		}
		idx := indexOf(c.Categories)
		out := make([]float64, len(values))
		for r, v := range values {
			rank, ok := idx[v]
			if !ok {
				return nil, errors.NewUnknownCategoryError(op, c.Name, v)
			}
			out[r] = float64(rank)
		}
		cols[i] = table.Column{Name: c.Name, Kind: table.Numeric, Floats: out}
	}
	return table.New(cols...)
}

// InverseTransform は順位を最も近い整数に丸めてカテゴリに戻す
// 範囲外の順位は ValueError
func (e *OrdinalEncoder) InverseTransform(t *table.Table, state model.FittedState) (*table.Table, error) {
	const op = "OrdinalEncoder.InverseTransform"
	s, err := stateFor("OrdinalEncoder", "InverseTransform", Ordinal, state)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.NewModelError(op, "nil table", errors.ErrEmptyData)
	}

	cols := make([]table.Column, len(s.Columns))
	for i, c := range s.Columns {
		values, err := numericColumn(op, t, c.Name)
		if err != nil {
			return nil, err
		}
		out := make([]string, len(values))
		for r, x := range values {
			rank := math.Round(x)
			if math.IsNaN(rank) || rank < 0 || rank >= float64(len(c.Categories)) {
				return nil, errors.NewValueError(op, fmt.Sprintf("rank %v out of range for column '%s'", x, c.Name))
			}
			out[r] = c.Categories[int(rank)]
		}
		cols[i] = table.Column{Name: c.Name, Kind: table.Categorical, Strings: out}
	}
	return table.New(cols...)
}

// DecodeState implements model.StateDecoder.
func (e *OrdinalEncoder) DecodeState(raw []byte) (model.FittedState, error) {
	return fitted(decodeState(raw, Ordinal))
}

// String はエンコーダの文字列表現を返す
func (e *OrdinalEncoder) String() string {
	return fmt.Sprintf("OrdinalEncoder(explicit_orders=%d)", len(e.orders))
}

var (
	_ model.InverseTransformer = (*OneHotEncoder)(nil)
	_ model.InverseTransformer = (*OrdinalEncoder)(nil)
	_ model.StateDecoder       = (*OneHotEncoder)(nil)
	_ model.StateDecoder       = (*OrdinalEncoder)(nil)
)
