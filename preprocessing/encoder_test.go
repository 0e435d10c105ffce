package preprocessing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tabprep/core/model"
	"github.com/YuminosukeSato/tabprep/pkg/errors"
	"github.com/YuminosukeSato/tabprep/table"
)

func categorical(name string, values ...string) *table.Table {
	return table.MustNew(table.NewCategorical(name, values))
}

func TestOneHotEncoder(t *testing.T) {
	cities := categorical("city", "Lahore", "Karachi", "Islamabad", "Lahore")

	tests := []struct {
		name      string
		opts      []OneHotOption
		wantNames []string
		wantSum   float64
	}{
		{
			name:      "first seen order",
			wantNames: []string{"city_Lahore", "city_Karachi", "city_Islamabad"},
			wantSum:   1,
		},
		{
			name:      "sorted",
			opts:      []OneHotOption{WithSortedCategories()},
			wantNames: []string{"city_Islamabad", "city_Karachi", "city_Lahore"},
			wantSum:   1,
		},
		{
			name:      "drop first",
			opts:      []OneHotOption{WithDropFirst()},
			wantNames: []string{"city_Karachi", "city_Islamabad"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := NewOneHotEncoder(tt.opts...)
			out, state, err := model.FitTransform(enc, cities)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNames, out.Names())
			assert.Equal(t, tt.wantNames, state.(*State).OutputNames())

			labels, _ := cities.Strings("city")
			for r, label := range labels {
				sum := 0.0
				for _, name := range out.Names() {
					v := floatsOf(t, out, name)[r]
					sum += v
					if name == "city_"+label {
						assert.Equal(t, 1.0, v)
					} else {
						assert.Equal(t, 0.0, v)
					}
				}
				if tt.wantSum > 0 {
					assert.Equal(t, tt.wantSum, sum)
				} else {
					assert.LessOrEqual(t, sum, 1.0)
				}
			}

			back, err := enc.InverseTransform(out, state)
			require.NoError(t, err)
			assert.True(t, cities.Equal(back))
		})
	}
}

func TestOneHotOutOfVocabulary(t *testing.T) {
	enc := NewOneHotEncoder()
	state, err := enc.Fit(categorical("city", "Lahore", "Karachi"))
	require.NoError(t, err)

	out, err := enc.Transform(categorical("city", "Quetta", "Karachi"), state)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, floatsOf(t, out, "city_Lahore"))
	assert.Equal(t, []float64{0, 1}, floatsOf(t, out, "city_Karachi"))

	back, err := enc.InverseTransform(out, state)
	require.NoError(t, err)
	labels, _ := back.Strings("city")
	assert.Equal(t, []string{"", "Karachi"}, labels)
}

func TestOneHotFixedCategories(t *testing.T) {
	enc := NewOneHotEncoder(WithCategories("size", "S", "M", "L"))
	out, _, err := model.FitTransform(enc, categorical("size", "M", "XL"))
	require.NoError(t, err)
	assert.Equal(t, []string{"size_S", "size_M", "size_L"}, out.Names())
	assert.Equal(t, []float64{1, 0}, floatsOf(t, out, "size_M"))

	_, err = NewOneHotEncoder(WithCategories("size", "S", "S")).Fit(categorical("size", "S"))
	var vErr *errors.ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestOneHotDropFirstNeedsTwoCategories(t *testing.T) {
	_, err := NewOneHotEncoder(WithDropFirst()).Fit(categorical("c", "x", "x"))
	var vErr *errors.ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestOneHotOutputNameCollision(t *testing.T) {
	// a + "_" + "b_c" と a_b + "_" + "c" はどちらも a_b_c になる
	tbl := table.MustNew(
		table.NewCategorical("a", []string{"b_c", "d"}),
		table.NewCategorical("a_b", []string{"c", "e"}),
	)
	_, err := NewOneHotEncoder().Fit(tbl)
	var vErr *errors.ValidationError
	require.True(t, errors.As(err, &vErr), "got %v", err)
	assert.Equal(t, "a_b_c", vErr.Value)

	tbl = table.MustNew(
		table.NewCategorical("a", []string{"b", "d"}),
		table.NewCategorical("a_b", []string{"c", "e"}),
	)
	_, err = NewOneHotEncoder().Fit(tbl)
	assert.NoError(t, err)

	raw := `{"policy":"one_hot","columns":[` +
		`{"name":"a","kind":"categorical","categories":["b_c"]},` +
		`{"name":"a_b","kind":"categorical","categories":["c"]}]}`
	_, err = NewOneHotEncoder().DecodeState([]byte(raw))
	assert.True(t, errors.As(err, &vErr), "got %v", err)
}

func TestOrdinalEncoder(t *testing.T) {
	order := []string{"High School", "Bachelor", "Master", "PhD"}
	enc := NewOrdinalEncoder(WithCategoryOrder("education", order...))

	train := categorical("education", "Bachelor", "PhD", "Master")
	state, err := enc.Fit(train)
	require.NoError(t, err)
	assert.Equal(t, order, state.(*State).Columns[0].Categories)

	out, err := enc.Transform(categorical("education", "Bachelor", "PhD", "High School"), state)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3, 0}, floatsOf(t, out, "education"))

	back, err := enc.InverseTransform(table.MustNew(table.NewNumeric("education", []float64{0.8, 2.2})), state)
	require.NoError(t, err)
	labels, _ := back.Strings("education")
	assert.Equal(t, []string{"Bachelor", "Master"}, labels)

	_, err = enc.InverseTransform(table.MustNew(table.NewNumeric("education", []float64{4})), state)
	var valErr *errors.ValueError
	assert.True(t, errors.As(err, &valErr))
}

func TestOrdinalDefaultOrders(t *testing.T) {
	t.Run("lexicographic", func(t *testing.T) {
		enc := NewOrdinalEncoder()
		out, state, err := model.FitTransform(enc, categorical("g", "b", "c", "a", "b"))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, state.(*State).Columns[0].Categories)
		assert.Equal(t, []float64{1, 2, 0, 1}, floatsOf(t, out, "g"))
	})

	t.Run("shared default", func(t *testing.T) {
		enc := NewOrdinalEncoder(WithDefaultOrder("low", "mid", "high"))
		tbl := table.MustNew(
			table.NewCategorical("a", []string{"high", "low"}),
			table.NewCategorical("b", []string{"mid", "mid"}),
		)
		out, _, err := model.FitTransform(enc, tbl)
		require.NoError(t, err)
		assert.Equal(t, []float64{2, 0}, floatsOf(t, out, "a"))
		assert.Equal(t, []float64{1, 1}, floatsOf(t, out, "b"))
	})
}

func TestOrdinalErrors(t *testing.T) {
	t.Run("unseen category at transform", func(t *testing.T) {
		enc := NewOrdinalEncoder()
		state, err := enc.Fit(categorical("g", "a", "b"))
		require.NoError(t, err)

		_, err = enc.Transform(categorical("g", "a", "z"), state)
		var unk *errors.UnknownCategoryError
		require.True(t, errors.As(err, &unk))
		assert.Equal(t, "z", unk.Category)
		assert.Equal(t, "g", unk.Column)
	})

	t.Run("training category outside order", func(t *testing.T) {
		enc := NewOrdinalEncoder(WithCategoryOrder("g", "a", "b"))
		_, err := enc.Fit(categorical("g", "a", "c"))
		var unk *errors.UnknownCategoryError
		require.True(t, errors.As(err, &unk))
		assert.Equal(t, "c", unk.Category)
	})

	t.Run("duplicate order", func(t *testing.T) {
		enc := NewOrdinalEncoder(WithCategoryOrder("g", "a", "a"))
		_, err := enc.Fit(categorical("g", "a"))
		var vErr *errors.ValidationError
		assert.True(t, errors.As(err, &vErr))
	})

	t.Run("numeric input", func(t *testing.T) {
		_, err := NewOrdinalEncoder().Fit(numeric("x", 1, 2))
		var kindErr *errors.KindMismatchError
		assert.True(t, errors.As(err, &kindErr))
	})

	t.Run("not fitted", func(t *testing.T) {
		_, err := NewOrdinalEncoder().Transform(categorical("g", "a"), nil)
		var nfErr *errors.NotFittedError
		assert.True(t, errors.As(err, &nfErr))
	})
}

func TestEncoderStateRoundTrip(t *testing.T) {
	enc := NewOneHotEncoder(WithDropFirst())
	state, err := enc.Fit(categorical("city", "Lahore", "Karachi", "Islamabad"))
	require.NoError(t, err)

	raw, err := json.Marshal(state)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"policy":"one_hot"`)
	assert.Contains(t, string(raw), `"kind":"categorical"`)

	restored, err := enc.DecodeState(raw)
	require.NoError(t, err)
	assert.Equal(t, state, restored)

	_, err = NewOrdinalEncoder().DecodeState(raw)
	var vErr *errors.ValidationError
	assert.True(t, errors.As(err, &vErr))
}
