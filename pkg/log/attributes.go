// Package log defines standard attribute keys for preprocessing operations.
//
// Using these keys keeps records from the router, the pipeline and the
// transformers consistent so that logs can be filtered by step or column.
// Keys follow a hierarchical "category.name" convention.

package log

// Component and operation context.
const (
	// ComponentKey identifies the package emitting the record.
	// Examples: "pipeline", "compose", "preprocessing"
	ComponentKey = "ml.component"

	// OperationKey is the operation being performed.
	// Standard values: "fit", "transform", "inverse_transform", "predict"
	OperationKey = "ml.operation"

	// PipelineKey is the name given to a pipeline with pipeline.WithName.
	PipelineKey = "pipeline.name"

	// StepKey is the name of the pipeline step being executed.
	StepKey = "pipeline.step"

	// StageKey is the name of a column router stage.
	StageKey = "router.stage"

	// PolicyKey is the transformation policy of a stage.
	// Examples: "standardize", "one_hot"
	PolicyKey = "transform.policy"
)

// Data shape.
const (
	// RowsKey is the number of rows in the table being processed.
	RowsKey = "data.rows"

	// ColumnsKey is the number of columns in the table being processed.
	ColumnsKey = "data.columns"

	// ColumnNamesKey lists the column names a stage consumes or produces.
	ColumnNamesKey = "data.column_names"

	// RemainderKey lists the columns passed through unchanged.
	RemainderKey = "data.remainder"
)

// Performance.
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"
)

// Error context.
const (
	// ErrorTypeKey categorizes the error encountered.
	// Examples: "MissingColumnError", "DegenerateScaleError"
	ErrorTypeKey = "error.type"

	// SuggestionKey carries a hint for resolving the problem.
	SuggestionKey = "error.suggestion"
)

// Standard attribute values.
const (
	OperationFit              = "fit"
	OperationTransform        = "transform"
	OperationFitTransform     = "fit_transform"
	OperationInverseTransform = "inverse_transform"
	OperationPredict          = "predict"
)
