package preprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tabprep/pkg/errors"
)

func TestNewFromConfig(t *testing.T) {
	off := false
	tests := []struct {
		cfg  Config
		want string
	}{
		{Config{Policy: Standardize, WithStd: &off}, "StandardScaler(with_mean=true, with_std=false)"},
		{Config{Policy: MinMax, FeatureRange: []float64{-1, 1}}, "MinMaxScaler(feature_range=[-1, 1])"},
		{Config{Policy: MeanNormalize}, "MeanNormalizer()"},
		{Config{Policy: MaxAbs}, "MaxAbsScaler()"},
		{Config{Policy: Robust}, "RobustScaler()"},
		{Config{Policy: OneHot, DropFirst: true}, "OneHotEncoder(drop_first=true, sorted=false)"},
		{Config{Policy: Ordinal, CategoryOrder: map[string][]string{"g": {"a", "b"}}}, "OrdinalEncoder(explicit_orders=1)"},
	}

	for _, tt := range tests {
		t.Run(string(tt.cfg.Policy), func(t *testing.T) {
			tr, err := New(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tr.(interface{ String() string }).String())
		})
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"unknown policy", Config{Policy: "log"}},
		{"feature range arity", Config{Policy: MinMax, FeatureRange: []float64{1}}},
		{"inverted feature range", Config{Policy: MinMax, FeatureRange: []float64{1, 0}}},
		{"empty category list", Config{Policy: OneHot, Categories: map[string][]string{"c": {}}}},
		{"duplicate default order", Config{Policy: Ordinal, DefaultOrder: []string{"a", "a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			var vErr *errors.ValidationError
			assert.True(t, errors.As(err, &vErr), "got %v", err)
		})
	}
}

func TestParsePolicy(t *testing.T) {
	for _, p := range Policies() {
		got, err := ParsePolicy(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParsePolicy("zscore")
	assert.Error(t, err)
	assert.True(t, OneHot.Categorical())
	assert.False(t, Robust.Categorical())
}
