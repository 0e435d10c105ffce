package compose

import (
	"encoding/json"
	"slices"

	"github.com/YuminosukeSato/tabprep/core/model"
)

// StageState is the fitted state of one router stage.
type StageState struct {
	Name string
	// Columns are the resolved input columns, in ColumnSpec order.
	Columns []string
	// Outputs are the columns the stage produced at fit time.
	Outputs []string
	State   model.FittedState
}

// RouterState is the fitted state of a ColumnRouter.
type RouterState struct {
	Stages []StageState
	// Remainder lists passthrough columns captured at fit time.
	Remainder []string
}

var (
	_ model.FittedState = (*RouterState)(nil)
	_ model.StateCloner = (*RouterState)(nil)
)

// StateType implements model.FittedState.
func (s *RouterState) StateType() string { return "router" }

// OutputNames returns the output columns of Transform, in order.
func (s *RouterState) OutputNames() []string {
	var names []string
	for _, st := range s.Stages {
		names = append(names, st.Outputs...)
	}
	return append(names, s.Remainder...)
}

// Stage returns the state of the named stage.
func (s *RouterState) Stage(name string) (StageState, bool) {
	i := slices.IndexFunc(s.Stages, func(st StageState) bool { return st.Name == name })
	if i < 0 {
		return StageState{}, false
	}
	return s.Stages[i], true
}

// CloneState implements model.StateCloner. Stage states are cloned with
// model.CloneState.
func (s *RouterState) CloneState() model.FittedState {
	out := &RouterState{
		Stages:    make([]StageState, len(s.Stages)),
		Remainder: slices.Clone(s.Remainder),
	}
	for i, st := range s.Stages {
		out.Stages[i] = StageState{
			Name:    st.Name,
			Columns: slices.Clone(st.Columns),
			Outputs: slices.Clone(st.Outputs),
			State:   model.CloneState(st.State),
		}
	}
	return out
}

type stageWire struct {
	model.StateRecord
	Columns []string `json:"columns"`
	Outputs []string `json:"outputs"`
}

type routerWire struct {
	Stages    []stageWire `json:"stages"`
	Remainder []string    `json:"remainder,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s *RouterState) MarshalJSON() ([]byte, error) {
	w := routerWire{Stages: make([]stageWire, len(s.Stages)), Remainder: s.Remainder}
	for i, st := range s.Stages {
		rec, err := model.EncodeState(st.Name, st.State)
		if err != nil {
			return nil, err
		}
		w.Stages[i] = stageWire{StateRecord: rec, Columns: st.Columns, Outputs: st.Outputs}
	}
	return json.Marshal(w)
}
