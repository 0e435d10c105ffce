package errors

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "StandardScaler.Fit",
			kind:    "empty data",
			err:     fmt.Errorf("no finite values"),
			wantMsg: "tabprep: StandardScaler.Fit: empty data: no finite values",
		},
		{
			name:    "without original error",
			op:      "Pipeline.Fit",
			kind:    "aborted",
			err:     nil,
			wantMsg: "tabprep: Pipeline.Fit: aborted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)
			assert.Equal(t, tt.wantMsg, err.Error())

			formatted := fmt.Sprintf("%+v", err)
			assert.Contains(t, formatted, "errors_test.go", "stack trace should point at the caller")

			var modelErr *ModelError
			assert.True(t, As(err, &modelErr))
		})
	}
}

func TestModelErrorUnwrapsSentinel(t *testing.T) {
	err := NewModelError("RobustScaler.Fit", "no finite values in column 'x'", ErrEmptyData)
	assert.True(t, Is(err, ErrEmptyData))
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "not fitted",
			err:  NewNotFittedError("Pipeline", "Transform"),
			want: "tabprep: Pipeline: this component is not fitted yet. Call Fit() before using Transform()",
		},
		{
			name: "degenerate scale",
			err:  NewDegenerateScaleError("StandardScaler.Fit", "age", "standardize", "standard deviation"),
			want: "tabprep: StandardScaler.Fit: column 'age' has zero standard deviation, standardize scaling is undefined",
		},
		{
			name: "unknown category",
			err:  NewUnknownCategoryError("OrdinalEncoder.Transform", "degree", "Diploma"),
			want: `tabprep: OrdinalEncoder.Transform: unknown category "Diploma" in column 'degree'`,
		},
		{
			name: "missing column by name",
			err:  NewMissingColumnError("ColumnRouter.Fit", "income"),
			want: "tabprep: ColumnRouter.Fit: column 'income' not found in input table",
		},
		{
			name: "missing column by position",
			err:  NewMissingPositionError("ColumnRouter.Fit", 7),
			want: "tabprep: ColumnRouter.Fit: column position 7 is out of range",
		},
		{
			name: "duplicate claim",
			err:  NewDuplicateColumnClaimError("city", "onehot", "ordinal"),
			want: "tabprep: column 'city' is claimed by more than one stage: onehot, ordinal",
		},
		{
			name: "kind mismatch",
			err:  NewKindMismatchError("MinMaxScaler.Fit", "city", "numeric", "categorical"),
			want: "tabprep: MinMaxScaler.Fit: column 'city' must be numeric, got categorical",
		},
		{
			name: "dimension",
			err:  NewDimensionError("Pipeline.Fit", 10, 9, 0),
			want: "tabprep: Pipeline.Fit: dimension mismatch on axis 0 (rows). Expected 10, got 9",
		},
		{
			name: "validation",
			err:  NewValidationError("feature_range", "lower bound must be below upper bound", [2]float64{1, 0}),
			want: "tabprep: validation failed for parameter 'feature_range': lower bound must be below upper bound (got: [1 0])",
		},
		{
			name: "value",
			err:  NewValueError("OrdinalEncoder.InverseTransform", "rank 9 out of range"),
			want: "tabprep: OrdinalEncoder.InverseTransform: rank 9 out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorKindsAreDetectable(t *testing.T) {
	wrapped := Wrap(NewUnknownCategoryError("OrdinalEncoder.Transform", "degree", "Diploma"), "stage 'edu'")

	var unknown *UnknownCategoryError
	require.True(t, As(wrapped, &unknown))
	assert.Equal(t, "Diploma", unknown.Category)
	assert.Contains(t, wrapped.Error(), "stage 'edu'")

	var claim *DuplicateColumnClaimError
	assert.False(t, As(wrapped, &claim))
}

func TestMarshalZerologObject(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	degenerate := &DegenerateScaleError{Op: "MaxAbsScaler.Fit", Column: "x", Policy: "max_abs", Statistic: "maximum absolute value"}
	logger.Error().EmbedObject(degenerate).Msg("fit failed")

	out := buf.String()
	assert.Contains(t, out, `"type":"DegenerateScaleError"`)
	assert.Contains(t, out, `"column":"x"`)
	assert.Contains(t, out, `"policy":"max_abs"`)
}

func TestWrapfAndIs(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: column %q", "MinMaxScaler.Fit", "price")

	assert.True(t, Is(wrapped, ErrEmptyData))
	assert.Contains(t, wrapped.Error(), `in MinMaxScaler.Fit: column "price"`)
}

func TestWarnUsesHandler(t *testing.T) {
	var got []string
	SetWarningHandler(func(w error) { got = append(got, w.Error()) })
	defer SetWarningHandler(func(w error) {})

	Warn(NewDataConversionWarning("string", "float64", "empty cell in column 'age'"))

	require.Len(t, got, 1)
	assert.True(t, strings.HasPrefix(got[0], "data converted from string to float64"))
}

func TestWarnPrefersZerolog(t *testing.T) {
	var handled, zerologged int
	SetWarningHandler(func(w error) { handled++ })
	SetZerologWarnFunc(func(w error) { zerologged++ })
	defer func() {
		SetZerologWarnFunc(nil)
		SetWarningHandler(func(w error) {})
	}()

	Warn(NewDataConversionWarning("string", "float64", "test"))

	assert.Equal(t, 0, handled)
	assert.Equal(t, 1, zerologged)
}
