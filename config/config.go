// Package config reads declarative YAML pipeline descriptions.
//
// A description names the pipeline, its remainder policy and an ordered list
// of stages. Each stage selects columns and a policy with its options:
//
//	name: housing
//	remainder: passthrough
//	stages:
//	  - name: scale
//	    policy: standardize
//	    columns: [age, income]
//	  - name: city
//	    policy: one_hot
//	    columns: [city]
//	    drop_first: true
//
// Build turns a description into a pipeline with one ColumnRouter step.
package config

import (
	"fmt"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/tabprep/compose"
	"github.com/YuminosukeSato/tabprep/core/model"
	"github.com/YuminosukeSato/tabprep/pipeline"
	"github.com/YuminosukeSato/tabprep/pkg/errors"
	"github.com/YuminosukeSato/tabprep/preprocessing"
	"github.com/YuminosukeSato/tabprep/table"
)

// RouterStep is the name of the single step Build creates.
const RouterStep = "columns"

// File is a parsed pipeline description.
type File struct {
	Name      string  `yaml:"name"`
	Remainder string  `yaml:"remainder"`
	Stages    []Stage `yaml:"stages"`
}

// Stage describes one router stage. Policy options are inlined.
type Stage struct {
	Name      string   `yaml:"name"`
	Columns   []string `yaml:"columns"`
	Positions []int    `yaml:"positions"`
	Kind      string   `yaml:"kind"`

	preprocessing.Config `yaml:",inline"`
}

// Parse decodes a YAML description and validates it.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parse pipeline config")
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load reads and parses the description at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read pipeline config %q", path)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "pipeline config %q", path)
	}
	return f, nil
}

// Validate reports every problem in the description. The returned error
// combines them; multierr.Errors splits it back into individual errors.
func (f *File) Validate() error {
	var err error
	if _, rerr := compose.ParseRemainder(f.Remainder); rerr != nil {
		err = multierr.Append(err, rerr)
	}
	if len(f.Stages) == 0 {
		err = multierr.Append(err, errors.NewValidationError("stages", "must not be empty", 0))
	}

	names := make(map[string]struct{}, len(f.Stages))
	claims := make(map[string]int)
	for i, s := range f.Stages {
		label := stageLabel(f.Stages, i)
		if s.Name == "" {
			err = multierr.Append(err, errors.NewValidationError("stages.name", "must not be empty", i))
		} else if _, dup := names[s.Name]; dup {
			err = multierr.Append(err, errors.NewValidationError("stages.name", "duplicate stage name", s.Name))
		}
		names[s.Name] = struct{}{}

		if len(s.Columns) == 0 && len(s.Positions) == 0 {
			err = multierr.Append(err, errors.NewValidationError("stages.columns", "stage "+label+" selects no columns", nil))
		}
		for _, c := range s.Columns {
			if owner, taken := claims[c]; taken && owner != i {
				err = multierr.Append(err, errors.NewDuplicateColumnClaimError(c, stageLabel(f.Stages, owner), label))
				continue
			}
			claims[c] = i
		}
		if _, kerr := table.ParseKind(s.Kind); kerr != nil {
			err = multierr.Append(err, errors.Wrapf(kerr, "stage %s", label))
		}
		if _, terr := preprocessing.New(s.Config); terr != nil {
			err = multierr.Append(err, errors.Wrapf(terr, "stage %s", label))
		}
	}
	return err
}

func stageLabel(stages []Stage, i int) string {
	if stages[i].Name == "" {
		return fmt.Sprintf("#%d", i)
	}
	return stages[i].Name
}

// Router builds the ColumnRouter the description declares.
func (f *File) Router(opts ...compose.Option) (*compose.ColumnRouter, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	remainder, _ := compose.ParseRemainder(f.Remainder)

	stages := make([]compose.Stage, len(f.Stages))
	for i, s := range f.Stages {
		tr, err := newTransformer(s)
		if err != nil {
			return nil, err
		}
		kind, _ := table.ParseKind(s.Kind)
		stages[i] = compose.Stage{
			Name:        s.Name,
			Transformer: tr,
			Columns: compose.ColumnSpec{
				Names:     append([]string(nil), s.Columns...),
				Positions: append([]int(nil), s.Positions...),
				Kind:      kind,
			},
		}
	}
	return compose.NewColumnRouter(stages, append([]compose.Option{compose.WithRemainder(remainder)}, opts...)...)
}

func newTransformer(s Stage) (model.Transformer, error) {
	tr, err := preprocessing.New(s.Config)
	if err != nil {
		return nil, errors.Wrapf(err, "stage %s", s.Name)
	}
	return tr, nil
}

// Build returns an unfitted pipeline with a single router step named
// RouterStep. The description's name is applied before opts, so a
// pipeline.WithName in opts wins.
func (f *File) Build(opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	router, err := f.Router()
	if err != nil {
		return nil, err
	}
	if f.Name != "" {
		opts = append([]pipeline.Option{pipeline.WithName(f.Name)}, opts...)
	}
	return pipeline.New([]pipeline.Step{{Name: RouterStep, Transformer: router}}, opts...)
}
