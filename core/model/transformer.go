// Package model はテーブル変換コンポーネントが共有するインターフェースを定義する。
//
// Fit は学習データから不変の FittedState を作り、Transform は入力テーブルと
// その FittedState だけから出力を計算する。変換器自身は設定のみを保持し、
// 学習結果を内部に書き込まないため、同じ設定から何度でも独立した状態を学習できる。
package model

import "github.com/YuminosukeSato/tabprep/table"

// FittedState は Fit が返す学習済み状態
// 生成後は変更されず、JSON にシリアライズ可能な値の集まりである
type FittedState interface {
	// StateType は状態の種類（"standardize", "router" など）を返す
	StateType() string
}

// Transformer はテーブル変換のインターフェース
type Transformer interface {
	// Fit は学習データから変換に必要な統計量・語彙を学習する
	Fit(t *table.Table) (FittedState, error)

	// Transform は学習済み状態を使ってテーブルを変換する
	// 状態を変更せず、入力テーブルの統計量にも依存しない
	Transform(t *table.Table, state FittedState) (*table.Table, error)
}

// InverseTransformer は逆変換可能な変換器のインターフェース
type InverseTransformer interface {
	Transformer

	// InverseTransform は Transform の出力を元の表現に戻す
	InverseTransform(t *table.Table, state FittedState) (*table.Table, error)
}

// StateDecoder は永続化された状態を復元できる変換器のインターフェース
type StateDecoder interface {
	// DecodeState は MarshalJSON された状態を復元する
	DecodeState(raw []byte) (FittedState, error)
}

// StateCloner は深いコピーを作れる学習済み状態
type StateCloner interface {
	CloneState() FittedState
}

// CloneState は state が StateCloner なら深いコピーを返す
// そうでなければ state をそのまま返す
func CloneState(state FittedState) FittedState {
	if c, ok := state.(StateCloner); ok {
		return c.CloneState()
	}
	return state
}

// FitTransform は Fit と Transform を続けて実行する
func FitTransform(tr Transformer, t *table.Table) (*table.Table, FittedState, error) {
	state, err := tr.Fit(t)
	if err != nil {
		return nil, nil, err
	}
	out, err := tr.Transform(t, state)
	if err != nil {
		return nil, nil, err
	}
	return out, state, nil
}
