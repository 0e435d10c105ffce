// Package errors provides the structured error kinds and the warning hook used
// across tabprep. Every constructor attaches a stack trace through
// cockroachdb/errors so that failures surfaced from deep inside a pipeline can
// be traced back to the stage that produced them.
package errors

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Global warning handling
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("tabprep-warning: %v\n", w)
	}
	// set by pkg/log to avoid an import cycle
	zerologWarnFunc func(warning error)
)

// SetWarningHandler sets the handler invoked by Warn.
//
// Example:
//
//	errors.SetWarningHandler(func(w error) {
//	    // ignore warnings
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc installs a zerolog-backed warning function. When set it
// takes precedence over the handler installed with SetWarningHandler.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn emits a warning through the configured handler.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	Warnings
//
// ===========================================================================

// DataConversionWarning is raised when input values were implicitly converted,
// for example empty CSV cells in a numeric column becoming NaN.
type DataConversionWarning struct {
	FromType string
	ToType   string
	Reason   string
}

func (w *DataConversionWarning) Error() string {
	return fmt.Sprintf("data converted from %s to %s. Reason: %s", w.FromType, w.ToType, w.Reason)
}

// MarshalZerologObject adds the warning fields to a zerolog event.
func (w *DataConversionWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("from_type", w.FromType).
		Str("to_type", w.ToType).
		Str("reason", w.Reason).
		Str("type", "DataConversionWarning")
}

// NewDataConversionWarning creates a DataConversionWarning.
func NewDataConversionWarning(from, to, reason string) *DataConversionWarning {
	return &DataConversionWarning{FromType: from, ToType: to, Reason: reason}
}

// ===========================================================================
//
//	Structured errors
//
// ===========================================================================

// NotFittedError is returned when Transform, Predict or InverseTransform is
// called before Fit.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("tabprep: %s: this component is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a NotFittedError with a stack trace.
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// DegenerateScaleError is returned by Fit when the scale statistic a policy
// divides by is zero, e.g. the standard deviation of a constant column.
type DegenerateScaleError struct {
	Op        string
	Column    string
	Policy    string
	Statistic string
}

func (e *DegenerateScaleError) Error() string {
	return fmt.Sprintf("tabprep: %s: column '%s' has zero %s, %s scaling is undefined", e.Op, e.Column, e.Statistic, e.Policy)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *DegenerateScaleError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("column", e.Column).
		Str("policy", e.Policy).
		Str("statistic", e.Statistic).
		Str("type", "DegenerateScaleError")
}

// NewDegenerateScaleError creates a DegenerateScaleError with a stack trace.
func NewDegenerateScaleError(op, column, policy, statistic string) error {
	err := &DegenerateScaleError{Op: op, Column: column, Policy: policy, Statistic: statistic}
	return errors.WithStack(err)
}

// UnknownCategoryError is returned when an ordinal encoder meets a category
// outside its vocabulary.
type UnknownCategoryError struct {
	Op       string
	Column   string
	Category string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("tabprep: %s: unknown category %q in column '%s'", e.Op, e.Category, e.Column)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *UnknownCategoryError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("column", e.Column).
		Str("category", e.Category).
		Str("type", "UnknownCategoryError")
}

// NewUnknownCategoryError creates an UnknownCategoryError with a stack trace.
func NewUnknownCategoryError(op, column, category string) error {
	err := &UnknownCategoryError{Op: op, Column: column, Category: category}
	return errors.WithStack(err)
}

// MissingColumnError is returned when a declared column is absent from the
// input table. Position is -1 when the column was declared by name.
type MissingColumnError struct {
	Op       string
	Column   string
	Position int
}

func (e *MissingColumnError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("tabprep: %s: column position %d is out of range", e.Op, e.Position)
	}
	return fmt.Sprintf("tabprep: %s: column '%s' not found in input table", e.Op, e.Column)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *MissingColumnError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("column", e.Column).
		Int("position", e.Position).
		Str("type", "MissingColumnError")
}

// NewMissingColumnError creates a MissingColumnError for a named column.
func NewMissingColumnError(op, column string) error {
	err := &MissingColumnError{Op: op, Column: column, Position: -1}
	return errors.WithStack(err)
}

// NewMissingPositionError creates a MissingColumnError for a column position.
func NewMissingPositionError(op string, position int) error {
	err := &MissingColumnError{Op: op, Position: position}
	return errors.WithStack(err)
}

// DuplicateColumnClaimError is a configuration error: two router stages claim
// the same input column.
type DuplicateColumnClaimError struct {
	Column string
	Stages []string
}

func (e *DuplicateColumnClaimError) Error() string {
	return fmt.Sprintf("tabprep: column '%s' is claimed by more than one stage: %s", e.Column, strings.Join(e.Stages, ", "))
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *DuplicateColumnClaimError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("column", e.Column).
		Strs("stages", e.Stages).
		Str("type", "DuplicateColumnClaimError")
}

// NewDuplicateColumnClaimError creates a DuplicateColumnClaimError with a stack trace.
func NewDuplicateColumnClaimError(column string, stages ...string) error {
	err := &DuplicateColumnClaimError{Column: column, Stages: stages}
	return errors.WithStack(err)
}

// KindMismatchError is returned when a column's kind differs from the kind a
// component expects.
type KindMismatchError struct {
	Op       string
	Column   string
	Expected string
	Got      string
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("tabprep: %s: column '%s' must be %s, got %s", e.Op, e.Column, e.Expected, e.Got)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *KindMismatchError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("column", e.Column).
		Str("expected", e.Expected).
		Str("got", e.Got).
		Str("type", "KindMismatchError")
}

// NewKindMismatchError creates a KindMismatchError with a stack trace.
func NewKindMismatchError(op, column, expected, got string) error {
	err := &KindMismatchError{Op: op, Column: column, Expected: expected, Got: got}
	return errors.WithStack(err)
}

// DimensionError is returned when the shape of an input differs from what was
// expected.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns
}

func (e *DimensionError) Error() string {
	axisName := "columns"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("tabprep: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	axisName := "columns"
	if e.Axis == 0 {
		axisName = "rows"
	}
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ValidationError is returned when a configuration parameter is invalid.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tabprep: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError creates a ValidationError with a stack trace.
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ValueError is returned when an argument has an inappropriate value.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("tabprep: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError with a stack trace.
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ModelError is a general failure of a fit/transform component.
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tabprep: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("tabprep: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError creates a ModelError with a stack trace.
func NewModelError(op, kind string, err error) error {
	modelErr := &ModelError{Op: op, Kind: kind, Err: err}
	return errors.WithStack(modelErr)
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap annotates err with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf annotates err with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates an error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack attaches a stack trace to err.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	Sentinel errors
//
// ===========================================================================

var (
	// ErrNotImplemented is returned for unsupported operations.
	ErrNotImplemented = New("not implemented")

	// ErrEmptyData is returned when an input holds no usable values.
	ErrEmptyData = New("empty data")
)
