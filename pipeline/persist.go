package pipeline

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/YuminosukeSato/tabprep/core/model"
	"github.com/YuminosukeSato/tabprep/pkg/errors"
	"github.com/YuminosukeSato/tabprep/pkg/log"
	"github.com/YuminosukeSato/tabprep/store"
)

// State returns copies of the installed per-step states in step order.
// Changing a returned state does not affect the pipeline.
func (p *Pipeline) State() ([]model.FittedState, error) {
	states, err := p.states.Get("Pipeline", "State")
	if err != nil {
		return nil, err
	}
	out := make([]model.FittedState, len(states))
	for i, st := range states {
		out[i] = model.CloneState(st)
	}
	return out, nil
}

// MarshalState writes the fitted state of every step to w as JSON. The
// consumer is not included; models such as linear.LinearRegression persist
// themselves.
func (p *Pipeline) MarshalState(w io.Writer) error {
	states, err := p.states.Get("Pipeline", "MarshalState")
	if err != nil {
		return err
	}
	records := make([]model.StateRecord, len(p.steps))
	for i, s := range p.steps {
		rec, err := model.EncodeState(s.Name, states[i])
		if err != nil {
			return errors.Wrapf(err, "step %q", s.Name)
		}
		records[i] = rec
	}
	return model.WriteStates(w, records)
}

// UnmarshalState restores the step states written by MarshalState and
// installs them. The pipeline must have the same steps, by name and order,
// as the one that wrote the state. A pipeline with a consumer must have the
// consumer fitted or loaded separately before Predict.
func (p *Pipeline) UnmarshalState(r io.Reader) error {
	records, err := model.ReadStates(r)
	if err != nil {
		return err
	}
	if len(records) != len(p.steps) {
		return errors.NewDimensionError("Pipeline.UnmarshalState", len(p.steps), len(records), 0)
	}

	states := make([]model.FittedState, len(p.steps))
	for i, s := range p.steps {
		rec := records[i]
		if rec.Name != s.Name {
			return errors.NewValidationError("state.name", "does not match step "+s.Name, rec.Name)
		}
		st, err := model.DecodeState(s.Transformer, rec)
		if err != nil {
			return errors.Wrapf(err, "step %q", s.Name)
		}
		states[i] = st
	}

	p.fitMu.Lock()
	defer p.fitMu.Unlock()
	p.states.Set(states, 0, 0)
	p.logger.Debug("pipeline state restored", "steps", len(states))
	return nil
}

// Save marshals the fitted state and stores it under key.
func (p *Pipeline) Save(ctx context.Context, s store.Store, key string) error {
	start := time.Now()
	var buf bytes.Buffer
	if err := p.MarshalState(&buf); err != nil {
		return err
	}
	if err := s.Put(ctx, key, buf.Bytes()); err != nil {
		return errors.Wrapf(err, "save state %q", key)
	}
	p.logger.Debug("pipeline state saved",
		"key", key,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Load fetches the state stored under key and installs it.
func (p *Pipeline) Load(ctx context.Context, s store.Store, key string) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return errors.Wrapf(err, "load state %q", key)
	}
	return p.UnmarshalState(bytes.NewReader(data))
}
