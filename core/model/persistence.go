package model

import (
	"encoding/json"
	"io"

	"github.com/YuminosukeSato/tabprep/pkg/errors"
)

// StateRecord は名前付きの学習済み状態をシリアライズした形
type StateRecord struct {
	// Name はステップ名またはステージ名
	Name string `json:"name"`

	// Type は FittedState.StateType の値（復元時の検証用）
	Type string `json:"type"`

	// State は状態本体の JSON
	State json.RawMessage `json:"state"`
}

// EncodeState は FittedState を StateRecord に変換する
func EncodeState(name string, state FittedState) (StateRecord, error) {
	if state == nil {
		return StateRecord{}, errors.NewValidationError("state", "must not be nil", name)
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return StateRecord{}, errors.Wrapf(err, "encode state of %q", name)
	}
	return StateRecord{Name: name, Type: state.StateType(), State: raw}, nil
}

// DecodeState は StateRecord を tr の StateDecoder で復元する
//
// 使用例:
//
//	state, err := model.DecodeState(scaler, record)
func DecodeState(tr Transformer, rec StateRecord) (FittedState, error) {
	dec, ok := tr.(StateDecoder)
	if !ok {
		return nil, errors.NewModelError("model.DecodeState", "transformer cannot decode state", errors.ErrNotImplemented)
	}
	state, err := dec.DecodeState(rec.State)
	if err != nil {
		return nil, errors.Wrapf(err, "decode state of %q", rec.Name)
	}
	if rec.Type != "" && state.StateType() != rec.Type {
		return nil, errors.NewValidationError("state.type", "does not match the transformer", rec.Type)
	}
	return state, nil
}

// WriteStates は StateRecord の列を JSON として w に書き出す
func WriteStates(w io.Writer, records []StateRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return errors.Wrap(err, "failed to encode states")
	}
	return nil
}

// ReadStates は WriteStates が書き出した JSON を読み込む
func ReadStates(r io.Reader) ([]StateRecord, error) {
	var records []StateRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, errors.Wrap(err, "failed to decode states")
	}
	return records, nil
}
