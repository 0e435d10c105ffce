// Package compose routes column subsets of a table to independent
// transformers and reassembles their outputs into one table.
package compose

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/YuminosukeSato/tabprep/core/model"
	"github.com/YuminosukeSato/tabprep/pkg/errors"
	"github.com/YuminosukeSato/tabprep/pkg/log"
	"github.com/YuminosukeSato/tabprep/table"
)

// Remainder decides what happens to columns no stage claims.
type Remainder int

const (
	// Drop removes unclaimed columns from the output.
	Drop Remainder = iota
	// Passthrough appends unclaimed columns, unchanged, after all stage outputs.
	Passthrough
)

func (r Remainder) String() string {
	if r == Passthrough {
		return "passthrough"
	}
	return "drop"
}

// MarshalText implements encoding.TextMarshaler.
func (r Remainder) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Remainder) UnmarshalText(text []byte) error {
	parsed, err := ParseRemainder(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRemainder parses "drop" (or "") and "passthrough".
func ParseRemainder(s string) (Remainder, error) {
	switch s {
	case "drop", "":
		return Drop, nil
	case "passthrough":
		return Passthrough, nil
	default:
		return Drop, errors.NewValidationError("remainder", "must be drop or passthrough", s)
	}
}

// ColumnSpec selects the input columns of a stage. Names are resolved first,
// then Positions against the table being fitted. Kind, when set, is checked
// against every selected column.
type ColumnSpec struct {
	Names     []string
	Positions []int
	Kind      table.Kind
}

// Columns is shorthand for a ColumnSpec selecting names of any kind.
func Columns(names ...string) ColumnSpec {
	return ColumnSpec{Names: names}
}

// Stage binds a transformer to the columns it consumes.
type Stage struct {
	Name        string
	Transformer model.Transformer
	Columns     ColumnSpec
}

// ColumnRouter dispatches column subsets to stages. It holds configuration
// only; fitted state lives in the RouterState returned by Fit.
type ColumnRouter struct {
	stages    []Stage
	remainder Remainder
	logger    log.Logger
}

// Option configures a ColumnRouter.
type Option func(*ColumnRouter)

// WithRemainder sets the remainder policy (default Drop).
func WithRemainder(r Remainder) Option {
	return func(c *ColumnRouter) {
		c.remainder = r
	}
}

// WithLogger sets the logger used for debug records.
func WithLogger(l log.Logger) Option {
	return func(c *ColumnRouter) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewColumnRouter validates the stage list and builds a router.
//
// Stage names must be unique and non-empty and transformers non-nil. Two
// stages naming the same column fail with a DuplicateColumnClaimError; claims
// made through positions are checked at Fit.
func NewColumnRouter(stages []Stage, opts ...Option) (*ColumnRouter, error) {
	seen := make(map[string]struct{}, len(stages))
	claims := make(map[string]string)
	for i, s := range stages {
		if s.Name == "" {
			return nil, errors.NewValidationError("stage.name", "must not be empty", i)
		}
		if _, dup := seen[s.Name]; dup {
			return nil, errors.NewValidationError("stage.name", "duplicate stage name", s.Name)
		}
		seen[s.Name] = struct{}{}
		if s.Transformer == nil {
			return nil, errors.NewValidationError("stage.transformer", "must not be nil", s.Name)
		}
		if len(s.Columns.Names) == 0 && len(s.Columns.Positions) == 0 {
			return nil, errors.NewValidationError("stage.columns", "must select at least one column", s.Name)
		}
		for _, name := range s.Columns.Names {
			if other, ok := claims[name]; ok {
				return nil, errors.NewDuplicateColumnClaimError(name, other, s.Name)
			}
			claims[name] = s.Name
		}
	}

	r := &ColumnRouter{
		stages:    slices.Clone(stages),
		remainder: Drop,
		logger:    log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(log.ComponentKey, "compose")
	return r, nil
}

// Stages returns a copy of the configured stages.
func (r *ColumnRouter) Stages() []Stage {
	return slices.Clone(r.stages)
}

// Remainder returns the remainder policy.
func (r *ColumnRouter) Remainder() Remainder {
	return r.remainder
}

func (r *ColumnRouter) String() string {
	return fmt.Sprintf("ColumnRouter(stages=%d, remainder=%s)", len(r.stages), r.remainder)
}

// resolve maps a ColumnSpec to column names of t, checking existence and kind.
func resolve(op string, t *table.Table, spec ColumnSpec) ([]string, error) {
	names := make([]string, 0, len(spec.Names)+len(spec.Positions))
	for _, name := range spec.Names {
		if !t.Has(name) {
			return nil, errors.NewMissingColumnError(op, name)
		}
		names = append(names, name)
	}
	for _, pos := range spec.Positions {
		if pos < 0 || pos >= t.NumCols() {
			return nil, errors.NewMissingPositionError(op, pos)
		}
		names = append(names, t.ColumnAt(pos).Name)
	}
	return names, checkKinds(op, t, names, spec.Kind)
}

func checkKinds(op string, t *table.Table, names []string, want table.Kind) error {
	for _, name := range names {
		i := t.Index(name)
		if i < 0 {
			return errors.NewMissingColumnError(op, name)
		}
		if got := t.ColumnAt(i).Kind; !want.Matches(got) {
			return errors.NewKindMismatchError(op, name, want.String(), got.String())
		}
	}
	return nil
}

// selectColumns is Table.Select reporting missing columns under op.
func selectColumns(op string, t *table.Table, names []string) (*table.Table, error) {
	for _, name := range names {
		if !t.Has(name) {
			return nil, errors.NewMissingColumnError(op, name)
		}
	}
	return t.Select(names...)
}

// outputNamer is implemented by states that know their output columns
// without transforming data.
type outputNamer interface {
	OutputNames() []string
}

func describeTransformer(tr model.Transformer) string {
	if s, ok := tr.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", tr)
}

// Fit fits every stage on its columns of t and captures the passthrough
// remainder. t is not modified.
func (r *ColumnRouter) Fit(t *table.Table) (model.FittedState, error) {
	const op = "ColumnRouter.Fit"
	if t == nil {
		return nil, errors.NewModelError(op, "nil table", errors.ErrEmptyData)
	}

	claims := make(map[string]string)
	resolved := make([][]string, len(r.stages))
	for i, s := range r.stages {
		names, err := resolve(op, t, s.Columns)
		if err != nil {
			return nil, errors.Wrapf(err, "stage %q", s.Name)
		}
		for _, name := range names {
			if other, ok := claims[name]; ok {
				return nil, errors.NewDuplicateColumnClaimError(name, other, s.Name)
			}
			claims[name] = s.Name
		}
		resolved[i] = names
	}

	state := &RouterState{Stages: make([]StageState, len(r.stages))}
	var outputs []string
	for i, s := range r.stages {
		sub, err := t.Select(resolved[i]...)
		if err != nil {
			return nil, err
		}
		st, err := s.Transformer.Fit(sub)
		if err != nil {
			return nil, errors.Wrapf(err, "stage %q", s.Name)
		}

		var names []string
		if namer, ok := st.(outputNamer); ok {
			names = namer.OutputNames()
		} else {
			out, err := s.Transformer.Transform(sub, st)
			if err != nil {
				return nil, errors.Wrapf(err, "stage %q", s.Name)
			}
			names = out.Names()
		}

		state.Stages[i] = StageState{Name: s.Name, Columns: resolved[i], Outputs: names, State: st}
		outputs = append(outputs, names...)
		r.logger.Debug("router stage fitted",
			log.OperationKey, log.OperationFit,
			log.StageKey, s.Name,
			log.PolicyKey, describeTransformer(s.Transformer),
			log.ColumnNamesKey, resolved[i],
		)
	}

	if r.remainder == Passthrough {
		for _, name := range t.Names() {
			if _, claimed := claims[name]; !claimed {
				state.Remainder = append(state.Remainder, name)
			}
		}
		outputs = append(outputs, state.Remainder...)
	}

	if len(outputs) == 0 {
		return nil, errors.NewValidationError("router", "produces no output columns", r.remainder)
	}
	seen := make(map[string]struct{}, len(outputs))
	for _, name := range outputs {
		if _, dup := seen[name]; dup {
			return nil, errors.NewValidationError("router.outputs", "duplicate output column", name)
		}
		seen[name] = struct{}{}
	}

	r.logger.Debug("router fitted",
		log.OperationKey, log.OperationFit,
		log.RowsKey, t.NumRows(),
		log.ColumnsKey, len(outputs),
		log.RemainderKey, state.Remainder,
	)
	return state, nil
}

func (r *ColumnRouter) routerState(method string, state model.FittedState) (*RouterState, error) {
	if state == nil {
		return nil, errors.NewNotFittedError("ColumnRouter", method)
	}
	rs, ok := state.(*RouterState)
	if !ok {
		return nil, errors.NewValidationError("state", "not a router state", state.StateType())
	}
	if len(rs.Stages) != len(r.stages) {
		return nil, errors.NewValidationError("state.stages", fmt.Sprintf("router has %d stages", len(r.stages)), len(rs.Stages))
	}
	for i, s := range r.stages {
		if rs.Stages[i].Name != s.Name {
			return nil, errors.NewValidationError("state.stages", "stage name does not match "+s.Name, rs.Stages[i].Name)
		}
	}
	return rs, nil
}

// Transform replays every fitted stage on t, concatenating outputs in stage
// order followed by the passthrough remainder. Columns of t that were not
// seen at fit time are dropped.
func (r *ColumnRouter) Transform(t *table.Table, state model.FittedState) (*table.Table, error) {
	const op = "ColumnRouter.Transform"
	rs, err := r.routerState("Transform", state)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.NewModelError(op, "nil table", errors.ErrEmptyData)
	}

	parts := make([]*table.Table, 0, len(rs.Stages)+1)
	for i, s := range r.stages {
		st := rs.Stages[i]
		sub, err := selectColumns(op, t, st.Columns)
		if err != nil {
			return nil, errors.Wrapf(err, "stage %q", s.Name)
		}
		if err := checkKinds(op, sub, st.Columns, s.Columns.Kind); err != nil {
			return nil, errors.Wrapf(err, "stage %q", s.Name)
		}
		out, err := s.Transformer.Transform(sub, st.State)
		if err != nil {
			return nil, errors.Wrapf(err, "stage %q", s.Name)
		}
		if !slices.Equal(out.Names(), st.Outputs) {
			return nil, errors.NewValidationError("stage.outputs", "output columns differ from fit", s.Name)
		}
		parts = append(parts, out)
	}

	if len(rs.Remainder) > 0 {
		rest, err := selectColumns(op, t, rs.Remainder)
		if err != nil {
			return nil, err
		}
		parts = append(parts, rest)
	}

	out, err := table.Concat(parts...)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("router transformed",
		log.OperationKey, log.OperationTransform,
		log.RowsKey, out.NumRows(),
		log.ColumnsKey, out.NumCols(),
	)
	return out, nil
}

// InverseTransform splits t back into per-stage blocks using the output
// columns recorded at fit and inverts each one. Every stage must be a
// model.InverseTransformer. The result holds stage inputs in stage order
// followed by the passthrough remainder.
func (r *ColumnRouter) InverseTransform(t *table.Table, state model.FittedState) (*table.Table, error) {
	const op = "ColumnRouter.InverseTransform"
	rs, err := r.routerState("InverseTransform", state)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.NewModelError(op, "nil table", errors.ErrEmptyData)
	}

	parts := make([]*table.Table, 0, len(rs.Stages)+1)
	for i, s := range r.stages {
		inv, ok := s.Transformer.(model.InverseTransformer)
		if !ok {
			return nil, errors.NewValidationError("stage.transformer", "does not support inverse transform", s.Name)
		}
		st := rs.Stages[i]
		sub, err := selectColumns(op, t, st.Outputs)
		if err != nil {
			return nil, errors.Wrapf(err, "stage %q", s.Name)
		}
		back, err := inv.InverseTransform(sub, st.State)
		if err != nil {
			return nil, errors.Wrapf(err, "stage %q", s.Name)
		}
		parts = append(parts, back)
	}
	if len(rs.Remainder) > 0 {
		rest, err := selectColumns(op, t, rs.Remainder)
		if err != nil {
			return nil, err
		}
		parts = append(parts, rest)
	}
	return table.Concat(parts...)
}

// DecodeState restores a RouterState encoded with json.Marshal, delegating
// each stage to its transformer's model.StateDecoder.
func (r *ColumnRouter) DecodeState(raw []byte) (model.FittedState, error) {
	var w routerWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, errors.Wrap(err, "decode router state")
	}
	if len(w.Stages) != len(r.stages) {
		return nil, errors.NewValidationError("state.stages", fmt.Sprintf("router has %d stages", len(r.stages)), len(w.Stages))
	}

	state := &RouterState{Stages: make([]StageState, len(w.Stages)), Remainder: w.Remainder}
	for i, s := range r.stages {
		ws := w.Stages[i]
		if ws.Name != s.Name {
			return nil, errors.NewValidationError("state.stages", "stage name does not match "+s.Name, ws.Name)
		}
		st, err := model.DecodeState(s.Transformer, ws.StateRecord)
		if err != nil {
			return nil, err
		}
		state.Stages[i] = StageState{Name: s.Name, Columns: ws.Columns, Outputs: ws.Outputs, State: st}
	}
	return state, nil
}

var (
	_ model.InverseTransformer = (*ColumnRouter)(nil)
	_ model.StateDecoder       = (*ColumnRouter)(nil)
)
