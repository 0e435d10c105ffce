package preprocessing

import (
	"github.com/YuminosukeSato/tabprep/core/model"
	"github.com/YuminosukeSato/tabprep/pkg/errors"
)

// Config は変換器を静的に列挙可能な形で記述する
// Policy に関係しないフィールドは無視される
type Config struct {
	Policy Policy `yaml:"policy" json:"policy"`

	// Standardize
	WithMean *bool `yaml:"with_mean,omitempty" json:"with_mean,omitempty"`
	WithStd  *bool `yaml:"with_std,omitempty" json:"with_std,omitempty"`

	// MinMax
	FeatureRange []float64 `yaml:"feature_range,omitempty" json:"feature_range,omitempty"`

	// OneHot
	DropFirst      bool                `yaml:"drop_first,omitempty" json:"drop_first,omitempty"`
	SortCategories bool                `yaml:"sort_categories,omitempty" json:"sort_categories,omitempty"`
	Categories     map[string][]string `yaml:"categories,omitempty" json:"categories,omitempty"`

	// Ordinal
	CategoryOrder map[string][]string `yaml:"category_order,omitempty" json:"category_order,omitempty"`
	DefaultOrder  []string            `yaml:"default_order,omitempty" json:"default_order,omitempty"`
}

// validator は設定を検証できる変換器
type validator interface {
	Validate() error
}

// New は Config から変換器を作成し、設定を検証する
//
// 使用例:
//
//	tr, err := preprocessing.New(preprocessing.Config{Policy: preprocessing.Robust})
func New(cfg Config) (model.Transformer, error) {
	var tr model.Transformer
	switch cfg.Policy {
	case Standardize:
		var opts []StandardScalerOption
		if cfg.WithMean != nil {
			opts = append(opts, WithMean(*cfg.WithMean))
		}
		if cfg.WithStd != nil {
			opts = append(opts, WithStd(*cfg.WithStd))
		}
		tr = NewStandardScaler(opts...)
	case MinMax:
		var opts []MinMaxOption
		if cfg.FeatureRange != nil {
			if len(cfg.FeatureRange) != 2 {
				return nil, errors.NewValidationError("feature_range", "must have exactly two values", cfg.FeatureRange)
			}
			opts = append(opts, WithFeatureRange(cfg.FeatureRange[0], cfg.FeatureRange[1]))
		}
		tr = NewMinMaxScaler(opts...)
	case MeanNormalize:
		tr = NewMeanNormalizer()
	case MaxAbs:
		tr = NewMaxAbsScaler()
	case Robust:
		tr = NewRobustScaler()
	case OneHot:
		var opts []OneHotOption
		if cfg.DropFirst {
			opts = append(opts, WithDropFirst())
		}
		if cfg.SortCategories {
			opts = append(opts, WithSortedCategories())
		}
		for column, cats := range cfg.Categories {
			opts = append(opts, WithCategories(column, cats...))
		}
		tr = NewOneHotEncoder(opts...)
	case Ordinal:
		var opts []OrdinalOption
		for column, order := range cfg.CategoryOrder {
			opts = append(opts, WithCategoryOrder(column, order...))
		}
		if cfg.DefaultOrder != nil {
			opts = append(opts, WithDefaultOrder(cfg.DefaultOrder...))
		}
		tr = NewOrdinalEncoder(opts...)
	default:
		return nil, errors.NewValidationError("policy", "unknown policy", cfg.Policy)
	}

	if v, ok := tr.(validator); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	return tr, nil
}
