package pipeline

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabprep/compose"
	"github.com/YuminosukeSato/tabprep/linear"
	"github.com/YuminosukeSato/tabprep/pkg/errors"
	"github.com/YuminosukeSato/tabprep/pkg/log"
	"github.com/YuminosukeSato/tabprep/pkg/metrics"
	"github.com/YuminosukeSato/tabprep/preprocessing"
	"github.com/YuminosukeSato/tabprep/store"
	"github.com/YuminosukeSato/tabprep/table"
)

// y = 3*x + 5*[city=B] + 2*[city=C] + 1
func training() (*table.Table, *mat.Dense) {
	t := table.MustNew(
		table.NewNumeric("x", []float64{1, 2, 3, 4, 5}),
		table.NewCategorical("city", []string{"A", "B", "A", "B", "C"}),
		table.NewCategorical("id", []string{"r1", "r2", "r3", "r4", "r5"}),
	)
	y := mat.NewDense(5, 1, []float64{4, 12, 10, 18, 18})
	return t, y
}

func newRouter(t *testing.T) *compose.ColumnRouter {
	t.Helper()
	r, err := compose.NewColumnRouter([]compose.Stage{
		{Name: "numeric", Transformer: preprocessing.NewStandardScaler(), Columns: compose.Columns("x")},
		{Name: "city", Transformer: preprocessing.NewOneHotEncoder(preprocessing.WithDropFirst()), Columns: compose.Columns("city")},
	})
	require.NoError(t, err)
	return r
}

func newPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New([]Step{{Name: "columns", Transformer: newRouter(t)}}, opts...)
	require.NoError(t, err)
	return p
}

type recordingConsumer struct {
	rows, cols int
}

func (c *recordingConsumer) Fit(X, y mat.Matrix) error {
	c.rows, c.cols = X.Dims()
	return nil
}

func (c *recordingConsumer) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	return mat.NewDense(r, 1, nil), nil
}

type panickingConsumer struct{}

func (panickingConsumer) Fit(mat.Matrix, mat.Matrix) error      { panic("fit exploded") }
func (panickingConsumer) Predict(mat.Matrix) (mat.Matrix, error) { panic("predict exploded") }

func TestNewValidation(t *testing.T) {
	scaler := preprocessing.NewStandardScaler()
	tests := []struct {
		name  string
		steps []Step
	}{
		{"empty", nil},
		{"unnamed step", []Step{{Transformer: scaler}}},
		{"duplicate names", []Step{{Name: "a", Transformer: scaler}, {Name: "a", Transformer: scaler}}},
		{"nil transformer", []Step{{Name: "a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.steps)
			var vErr *errors.ValidationError
			assert.True(t, errors.As(err, &vErr), "got %v", err)
		})
	}
}

func TestPipelineFitTransform(t *testing.T) {
	data, _ := training()
	p := newPipeline(t)
	assert.False(t, p.IsFitted())

	out, err := p.FitTransform(data, nil)
	require.NoError(t, err)
	assert.True(t, p.IsFitted())
	assert.Equal(t, []string{"x", "city_B", "city_C"}, out.Names())

	x, _ := out.Floats("x")
	assert.InDeltaSlice(t, []float64{-1.4142135623730951, -0.7071067811865476, 0, 0.7071067811865476, 1.4142135623730951}, x, 1e-12)

	again, err := p.Transform(data)
	require.NoError(t, err)
	assert.True(t, out.Equal(again))

	// replaying the same state is idempotent
	third, err := p.Transform(data)
	require.NoError(t, err)
	assert.True(t, again.Equal(third))
}

func TestPipelineNotFitted(t *testing.T) {
	data, _ := training()
	p := newPipeline(t)

	_, err := p.Transform(data)
	var nfErr *errors.NotFittedError
	assert.True(t, errors.As(err, &nfErr))

	_, err = p.InverseTransform(data)
	assert.True(t, errors.As(err, &nfErr))

	err = p.MarshalState(&bytes.Buffer{})
	assert.True(t, errors.As(err, &nfErr))
}

func TestPipelineTransformUsesFittedStatistics(t *testing.T) {
	data, _ := training()
	p := newPipeline(t)
	require.NoError(t, p.Fit(data, nil))

	fresh := table.MustNew(
		table.NewNumeric("x", []float64{3, 100}),
		table.NewCategorical("city", []string{"C", "A"}),
	)
	out, err := p.Transform(fresh)
	require.NoError(t, err)

	x, _ := out.Floats("x")
	assert.InDelta(t, 0.0, x[0], 1e-12)
	assert.InDelta(t, 97/1.4142135623730951, x[1], 1e-9)
	c, _ := out.Floats("city_C")
	assert.Equal(t, []float64{1, 0}, c)
}

func TestPipelineFailedFitKeepsPreviousState(t *testing.T) {
	data, _ := training()
	p := newPipeline(t)
	require.NoError(t, p.Fit(data, nil))
	before, err := p.Transform(data)
	require.NoError(t, err)

	constant := table.MustNew(
		table.NewNumeric("x", []float64{7, 7, 7}),
		table.NewCategorical("city", []string{"A", "B", "A"}),
	)
	err = p.Fit(constant, nil)
	var degenerate *errors.DegenerateScaleError
	require.True(t, errors.As(err, &degenerate), "got %v", err)
	assert.Contains(t, err.Error(), `step "columns"`)

	after, err := p.Transform(data)
	require.NoError(t, err)
	assert.True(t, before.Equal(after))
}

func TestPipelineRefitReplacesState(t *testing.T) {
	data, _ := training()
	p := newPipeline(t)
	require.NoError(t, p.Fit(data, nil))

	shifted := table.MustNew(
		table.NewNumeric("x", []float64{11, 12, 13, 14, 15}),
		table.NewCategorical("city", []string{"A", "B", "A", "B", "C"}),
	)
	require.NoError(t, p.Fit(shifted, nil))

	out, err := p.Transform(shifted)
	require.NoError(t, err)
	x, _ := out.Floats("x")
	assert.InDelta(t, 0.0, x[2], 1e-12)
}

func TestPipelineConsumer(t *testing.T) {
	data, y := training()
	c := &recordingConsumer{}
	p := newPipeline(t, WithConsumer(c))

	require.NoError(t, p.Fit(data, y))
	assert.Equal(t, 5, c.rows)
	assert.Equal(t, 3, c.cols)

	pred, err := p.Predict(data)
	require.NoError(t, err)
	r, _ := pred.Dims()
	assert.Equal(t, 5, r)
}

func TestPipelineConsumerErrors(t *testing.T) {
	data, y := training()

	t.Run("missing labels", func(t *testing.T) {
		p := newPipeline(t, WithConsumer(&recordingConsumer{}))
		var vErr *errors.ValidationError
		assert.True(t, errors.As(p.Fit(data, nil), &vErr))
	})

	t.Run("label rows", func(t *testing.T) {
		p := newPipeline(t, WithConsumer(&recordingConsumer{}))
		var dimErr *errors.DimensionError
		assert.True(t, errors.As(p.Fit(data, mat.NewDense(2, 1, nil)), &dimErr))
	})

	t.Run("no consumer", func(t *testing.T) {
		p := newPipeline(t)
		require.NoError(t, p.Fit(data, nil))
		_, err := p.Predict(data)
		var vErr *errors.ValidationError
		assert.True(t, errors.As(err, &vErr))
	})

	t.Run("panic", func(t *testing.T) {
		p := newPipeline(t, WithConsumer(panickingConsumer{}))
		err := p.Fit(data, y)
		var panicErr *errors.PanicError
		require.True(t, errors.As(err, &panicErr), "got %v", err)
		assert.False(t, p.IsFitted())
	})
}

func TestPipelineLinearRegression(t *testing.T) {
	data, y := training()
	p := newPipeline(t, WithConsumer(linear.NewLinearRegression()))
	require.NoError(t, p.Fit(data, y))

	pred, err := p.Predict(data)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		assert.InDelta(t, y.At(i, 0), pred.At(i, 0), 1e-8, "row %d", i)
	}

	fresh := table.MustNew(
		table.NewNumeric("x", []float64{10}),
		table.NewCategorical("city", []string{"C"}),
	)
	pred, err = p.Predict(fresh)
	require.NoError(t, err)
	assert.InDelta(t, 33.0, pred.At(0, 0), 1e-8)
}

func TestPipelineInverseTransform(t *testing.T) {
	data, _ := training()
	p := newPipeline(t)
	out, err := p.FitTransform(data, nil)
	require.NoError(t, err)

	back, err := p.InverseTransform(out)
	require.NoError(t, err)
	x, _ := back.Floats("x")
	assert.InDeltaSlice(t, []float64{1, 2, 3, 4, 5}, x, 1e-12)
	city, _ := back.Strings("city")
	assert.Equal(t, []string{"A", "B", "A", "B", "C"}, city)
}

func TestPipelineMultipleSteps(t *testing.T) {
	numeric := table.MustNew(table.NewNumeric("x", []float64{-4, 0, 2, 8}))
	p, err := New([]Step{
		{Name: "standardize", Transformer: preprocessing.NewStandardScaler()},
		{Name: "max_abs", Transformer: preprocessing.NewMaxAbsScaler()},
	})
	require.NoError(t, err)

	out, err := p.FitTransform(numeric, nil)
	require.NoError(t, err)
	x, _ := out.Floats("x")
	top := 0.0
	for _, v := range x {
		if v > top {
			top = v
		}
	}
	assert.InDelta(t, 1.0, top, 1e-12)

	back, err := p.InverseTransform(out)
	require.NoError(t, err)
	orig, _ := back.Floats("x")
	assert.InDeltaSlice(t, []float64{-4, 0, 2, 8}, orig, 1e-12)
}

func TestPipelineStateRoundTrip(t *testing.T) {
	data, _ := training()
	p := newPipeline(t)
	want, err := p.FitTransform(data, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, p.MarshalState(&buf))

	restored := newPipeline(t)
	require.NoError(t, restored.UnmarshalState(&buf))
	assert.True(t, restored.IsFitted())

	got, err := restored.Transform(data)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
}

func TestPipelineStateReturnsCopies(t *testing.T) {
	data, _ := training()
	p := newPipeline(t)
	want, err := p.FitTransform(data, nil)
	require.NoError(t, err)

	states, err := p.State()
	require.NoError(t, err)
	require.Len(t, states, 1)

	router, ok := states[0].(*compose.RouterState)
	require.True(t, ok)
	numeric, ok := router.Stage("numeric")
	require.True(t, ok)
	numeric.State.(*preprocessing.State).Columns[0].Stats.Mean = 1000
	city, _ := router.Stage("city")
	city.State.(*preprocessing.State).Columns[0].Categories[1] = "Z"
	router.Stages[0].Outputs[0] = "renamed"
	router.Remainder = append(router.Remainder, "extra")

	got, err := p.Transform(data)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
}

func TestPipelineUnmarshalStateMismatch(t *testing.T) {
	data, _ := training()
	p := newPipeline(t)
	require.NoError(t, p.Fit(data, nil))
	var buf bytes.Buffer
	require.NoError(t, p.MarshalState(&buf))

	other, err := New([]Step{{Name: "other", Transformer: newRouter(t)}})
	require.NoError(t, err)
	err = other.UnmarshalState(bytes.NewReader(buf.Bytes()))
	var vErr *errors.ValidationError
	assert.True(t, errors.As(err, &vErr))
	assert.False(t, other.IsFitted())

	two, err := New([]Step{
		{Name: "columns", Transformer: newRouter(t)},
		{Name: "extra", Transformer: preprocessing.NewMaxAbsScaler()},
	})
	require.NoError(t, err)
	err = two.UnmarshalState(bytes.NewReader(buf.Bytes()))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}

func TestPipelineSaveLoad(t *testing.T) {
	ctx := context.Background()
	fs, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	data, _ := training()
	p := newPipeline(t)
	want, err := p.FitTransform(data, nil)
	require.NoError(t, err)
	require.NoError(t, p.Save(ctx, fs, "housing"))

	restored := newPipeline(t)
	require.NoError(t, restored.Load(ctx, fs, "housing"))
	got, err := restored.Transform(data)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))

	err = newPipeline(t).Load(ctx, fs, "missing")
	assert.True(t, errors.Is(err, store.ErrStateNotFound))
}

func TestPipelineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewRecorder(metrics.Config{Enabled: true, Registry: reg})
	require.NoError(t, err)

	data, _ := training()
	p := newPipeline(t, WithMetrics(rec), WithName("housing"))
	_, err = p.Transform(data)
	require.Error(t, err)
	require.NoError(t, p.Fit(data, nil))
	_, err = p.Transform(data)
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "tabprep_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = testutil.GatherAndCount(reg, "tabprep_rows_processed_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPipelineDebugLogging(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	data, _ := training()
	p := newPipeline(t, WithLogger(logger), WithName("housing"))
	require.NoError(t, p.Fit(data, nil))

	assert.True(t, logger.ContainsMessage("pipeline step fitted"))
	assert.True(t, logger.ContainsField(log.StepKey, "columns"))
	assert.True(t, logger.ContainsField(log.PipelineKey, "housing"))
}

func TestPipelineConcurrentTransform(t *testing.T) {
	data, _ := training()
	p := newPipeline(t)
	want, err := p.FitTransform(data, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]bool, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := p.Transform(data)
			results[i] = err == nil && want.Equal(got)
		}(i)
	}
	wg.Wait()
	for i, ok := range results {
		assert.True(t, ok, "goroutine %d", i)
	}
}
