// Package tabprep provides fit/transform feature preprocessing for tabular
// data in Go, designed for backend services that must apply exactly the
// training-time transformation to every request.
//
// A transformer learns its statistics once, in Fit, and returns them as an
// immutable, serialisable state. Transform replays that state and never
// re-estimates anything, so test and serving data cannot leak into the
// parameters.
//
// # Features
//
//   - Seven policies: standardize, min-max, mean-normalize, max-abs, robust,
//     one-hot and ordinal
//   - Column routing: named or positional column subsets go to independent
//     transformers, with drop or passthrough for the rest
//   - Pipelines ending in an optional model, with all-or-nothing fitting
//   - JSON state that can be saved to a file or Redis store and restored
//   - Structured errors (cockroachdb/errors), slog/zerolog logging and
//     Prometheus metrics
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/tabprep/compose"
//	    "github.com/YuminosukeSato/tabprep/pipeline"
//	    "github.com/YuminosukeSato/tabprep/preprocessing"
//	    "github.com/YuminosukeSato/tabprep/table"
//	)
//
//	func main() {
//	    train := table.MustNew(
//	        table.NewNumeric("age", []float64{20, 30, 40}),
//	        table.NewCategorical("city", []string{"Lahore", "Karachi", "Lahore"}),
//	    )
//
//	    router, err := compose.NewColumnRouter([]compose.Stage{
//	        {Name: "age", Transformer: preprocessing.NewStandardScaler(), Columns: compose.Columns("age")},
//	        {Name: "city", Transformer: preprocessing.NewOneHotEncoder(), Columns: compose.Columns("city")},
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    p, err := pipeline.New([]pipeline.Step{{Name: "columns", Transformer: router}})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    if err := p.Fit(train, nil); err != nil {
//	        log.Fatal(err)
//	    }
//
//	    out, err := p.Transform(train)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(out.Names()) // [age city_Lahore city_Karachi]
//	}
//
// # Packages
//
//   - table: columnar tables, CSV reading, conversion to gonum matrices
//   - preprocessing: the seven policies and their fitted State
//   - compose: ColumnRouter
//   - pipeline: ordered steps, optional consumer, state persistence
//   - config: YAML pipeline descriptions
//   - store: file and Redis state stores
//   - linear: LinearRegression, usable as a pipeline consumer
//   - core/model: Transformer and FittedState interfaces, state encoding
//   - pkg/errors, pkg/log, pkg/metrics: ambient error, logging and metrics support
package tabprep
