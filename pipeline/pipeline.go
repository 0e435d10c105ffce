// Package pipeline chains transformers into one fit/transform lifecycle,
// optionally ending in a model that consumes the transformed table.
//
// Fit runs every step in order, feeding each step's output to the next, and
// installs the resulting state tree only when every step succeeded. Transform
// replays the stored states and never re-estimates statistics. Transforms may
// run concurrently; Fit may run while transforms are in flight and the new
// state becomes visible to transforms that start after Fit returns.
package pipeline

import (
	"context"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabprep/core/model"
	"github.com/YuminosukeSato/tabprep/pkg/errors"
	"github.com/YuminosukeSato/tabprep/pkg/log"
	"github.com/YuminosukeSato/tabprep/pkg/metrics"
	"github.com/YuminosukeSato/tabprep/table"
)

// Step is a named pipeline stage.
type Step struct {
	Name        string
	Transformer model.Transformer
}

// Pipeline is an ordered composition of steps sharing one fitted state.
type Pipeline struct {
	name     string
	steps    []Step
	consumer model.Consumer
	logger   log.Logger
	recorder *metrics.Recorder

	fitMu  sync.Mutex
	states *model.StateManager
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConsumer sets the terminal model fitted on the transformed table.
func WithConsumer(c model.Consumer) Option {
	return func(p *Pipeline) {
		p.consumer = c
	}
}

// WithLogger sets the logger used for debug records.
func WithLogger(l log.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics records every operation with r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

// WithName names the pipeline in logs and metrics (default "pipeline").
func WithName(name string) Option {
	return func(p *Pipeline) {
		p.name = name
	}
}

// New validates steps and builds an unfitted pipeline.
//
// Example:
//
//	p, err := pipeline.New([]pipeline.Step{
//	    {Name: "columns", Transformer: router},
//	}, pipeline.WithConsumer(linear.NewLinearRegression()))
func New(steps []Step, opts ...Option) (*Pipeline, error) {
	seen := make(map[string]struct{}, len(steps))
	for i, s := range steps {
		if s.Name == "" {
			return nil, errors.NewValidationError("step.name", "must not be empty", i)
		}
		if _, dup := seen[s.Name]; dup {
			return nil, errors.NewValidationError("step.name", "duplicate step name", s.Name)
		}
		seen[s.Name] = struct{}{}
		if s.Transformer == nil {
			return nil, errors.NewValidationError("step.transformer", "must not be nil", s.Name)
		}
	}

	p := &Pipeline{
		name:   "pipeline",
		steps:  append([]Step(nil), steps...),
		logger: log.NewNopLogger(),
		states: model.NewStateManager(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if len(p.steps) == 0 && p.consumer == nil {
		return nil, errors.NewValidationError("steps", "pipeline needs at least one step or a consumer", 0)
	}
	p.logger = p.logger.With(log.ComponentKey, "pipeline", log.PipelineKey, p.name)
	return p, nil
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Steps returns a copy of the configured steps.
func (p *Pipeline) Steps() []Step { return append([]Step(nil), p.steps...) }

// IsFitted reports whether a fitted or restored state is installed.
func (p *Pipeline) IsFitted() bool { return p.states.IsFitted() }

func numRows(t *table.Table) int {
	if t == nil {
		return 0
	}
	return t.NumRows()
}

// Fit fits every step in order on t, then the consumer on the final table
// and labels. labels may be nil when there is no consumer. On failure the
// previously installed state, if any, stays active.
func (p *Pipeline) Fit(t *table.Table, labels mat.Matrix) error {
	start := time.Now()
	_, err := p.fit(t, labels)
	p.observe(log.OperationFit, numRows(t), start, err)
	return err
}

// FitTransform fits the pipeline and returns the transformed training table.
func (p *Pipeline) FitTransform(t *table.Table, labels mat.Matrix) (*table.Table, error) {
	start := time.Now()
	out, err := p.fit(t, labels)
	p.observe(log.OperationFitTransform, numRows(t), start, err)
	return out, err
}

func (p *Pipeline) fit(t *table.Table, labels mat.Matrix) (*table.Table, error) {
	const op = "Pipeline.Fit"
	p.fitMu.Lock()
	defer p.fitMu.Unlock()

	if t == nil {
		return nil, errors.NewModelError(op, "nil table", errors.ErrEmptyData)
	}
	if p.consumer != nil {
		if labels == nil {
			return nil, errors.NewValidationError("labels", "required when the pipeline has a consumer", nil)
		}
		if r, _ := labels.Dims(); r != t.NumRows() {
			return nil, errors.NewDimensionError(op, t.NumRows(), r, 0)
		}
	}

	states := make([]model.FittedState, len(p.steps))
	cur := t
	for i, s := range p.steps {
		stepStart := time.Now()
		out, st, err := model.FitTransform(s.Transformer, cur)
		if err != nil {
			p.logger.Debug("pipeline step failed",
				log.OperationKey, log.OperationFit,
				log.StepKey, s.Name,
				log.ErrorTypeKey, errorType(err),
			)
			return nil, errors.Wrapf(err, "step %q", s.Name)
		}
		states[i] = st
		cur = out
		p.logger.Debug("pipeline step fitted",
			log.OperationKey, log.OperationFit,
			log.StepKey, s.Name,
			log.RowsKey, cur.NumRows(),
			log.ColumnsKey, cur.NumCols(),
			log.DurationMsKey, time.Since(stepStart).Milliseconds(),
		)
	}

	if p.consumer != nil {
		X, err := cur.ToDense()
		if err != nil {
			return nil, errors.Wrap(err, "consumer input")
		}
		if err := p.fitConsumer(X, labels); err != nil {
			return nil, err
		}
	}

	p.states.Set(states, cur.NumCols(), t.NumRows())
	return cur, nil
}

func (p *Pipeline) fitConsumer(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "Pipeline.consumer.Fit")
	return p.consumer.Fit(X, y)
}

func (p *Pipeline) predictConsumer(X mat.Matrix) (pred mat.Matrix, err error) {
	defer errors.Recover(&err, "Pipeline.consumer.Predict")
	return p.consumer.Predict(X)
}

// Transform replays every fitted step on t.
func (p *Pipeline) Transform(t *table.Table) (*table.Table, error) {
	start := time.Now()
	out, err := p.transform("Transform", t)
	p.observe(log.OperationTransform, numRows(t), start, err)
	return out, err
}

func (p *Pipeline) transform(method string, t *table.Table) (*table.Table, error) {
	states, err := p.states.Get("Pipeline", method)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.NewModelError("Pipeline."+method, "nil table", errors.ErrEmptyData)
	}

	cur := t
	for i, s := range p.steps {
		out, err := s.Transformer.Transform(cur, states[i])
		if err != nil {
			return nil, errors.Wrapf(err, "step %q", s.Name)
		}
		cur = out
	}
	return cur, nil
}

// Predict transforms t and passes the result to the consumer.
func (p *Pipeline) Predict(t *table.Table) (mat.Matrix, error) {
	start := time.Now()
	pred, err := p.predict(t)
	p.observe(log.OperationPredict, numRows(t), start, err)
	return pred, err
}

func (p *Pipeline) predict(t *table.Table) (mat.Matrix, error) {
	if p.consumer == nil {
		return nil, errors.NewValidationError("consumer", "pipeline has no consumer", p.name)
	}
	out, err := p.transform("Predict", t)
	if err != nil {
		return nil, err
	}
	X, err := out.ToDense()
	if err != nil {
		return nil, errors.Wrap(err, "consumer input")
	}
	return p.predictConsumer(X)
}

// InverseTransform undoes the steps in reverse order. Every step must be a
// model.InverseTransformer.
func (p *Pipeline) InverseTransform(t *table.Table) (*table.Table, error) {
	start := time.Now()
	out, err := p.inverse(t)
	p.observe(log.OperationInverseTransform, numRows(t), start, err)
	return out, err
}

func (p *Pipeline) inverse(t *table.Table) (*table.Table, error) {
	states, err := p.states.Get("Pipeline", "InverseTransform")
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.NewModelError("Pipeline.InverseTransform", "nil table", errors.ErrEmptyData)
	}

	cur := t
	for i := len(p.steps) - 1; i >= 0; i-- {
		s := p.steps[i]
		inv, ok := s.Transformer.(model.InverseTransformer)
		if !ok {
			return nil, errors.NewValidationError("step.transformer", "does not support inverse transform", s.Name)
		}
		out, err := inv.InverseTransform(cur, states[i])
		if err != nil {
			return nil, errors.Wrapf(err, "step %q", s.Name)
		}
		cur = out
	}
	return cur, nil
}

func (p *Pipeline) observe(operation string, rows int, start time.Time, err error) {
	p.recorder.Observe(p.name, operation, rows, start, err)
	if err != nil {
		p.logger.Debug("pipeline operation failed",
			err,
			log.OperationKey, operation,
			log.ErrorTypeKey, errorType(err),
		)
		return
	}
	if p.logger.Enabled(context.Background(), log.LevelDebug) {
		p.logger.Debug("pipeline operation done",
			log.OperationKey, operation,
			log.RowsKey, rows,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
}

// errorType names the structured error kind carried by err.
func errorType(err error) string {
	var (
		notFitted  *errors.NotFittedError
		degenerate *errors.DegenerateScaleError
		unknown    *errors.UnknownCategoryError
		missing    *errors.MissingColumnError
		duplicate  *errors.DuplicateColumnClaimError
		kind       *errors.KindMismatchError
		dimension  *errors.DimensionError
		validation *errors.ValidationError
		panicErr   *errors.PanicError
	)
	switch {
	case errors.As(err, &notFitted):
		return "NotFittedError"
	case errors.As(err, &degenerate):
		return "DegenerateScaleError"
	case errors.As(err, &unknown):
		return "UnknownCategoryError"
	case errors.As(err, &missing):
		return "MissingColumnError"
	case errors.As(err, &duplicate):
		return "DuplicateColumnClaimError"
	case errors.As(err, &kind):
		return "KindMismatchError"
	case errors.As(err, &dimension):
		return "DimensionError"
	case errors.As(err, &validation):
		return "ValidationError"
	case errors.As(err, &panicErr):
		return "PanicError"
	default:
		return "error"
	}
}
