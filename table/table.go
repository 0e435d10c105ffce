// Package table defines the in-memory tabular data exchanged between
// preprocessing components: an ordered set of named, row-aligned columns,
// each holding numeric or categorical values.
//
// A Table is immutable once built. Constructors copy the caller's slices and
// accessors return copies, so a fitted component can never observe a later
// change to its training data.
package table

import (
	"math"

	"github.com/YuminosukeSato/tabprep/pkg/errors"
)

// Kind is the declared value kind of a column.
type Kind int

const (
	// AnyKind matches either kind. It is only meaningful in column specs.
	AnyKind Kind = iota
	// Numeric columns hold float64 values.
	Numeric
	// Categorical columns hold string labels.
	Categorical
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	case AnyKind:
		return "any"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind parses "numeric", "categorical" or "any" (or the empty string).
func ParseKind(s string) (Kind, error) {
	switch s {
	case "numeric":
		return Numeric, nil
	case "categorical":
		return Categorical, nil
	case "any", "":
		return AnyKind, nil
	default:
		return AnyKind, errors.NewValidationError("kind", "must be numeric, categorical or any", s)
	}
}

// Matches reports whether a column of kind got satisfies the expectation k.
func (k Kind) Matches(got Kind) bool {
	return k == AnyKind || k == got
}

// Column is a named sequence of values of one kind. Exactly one of Floats and
// Strings is populated, according to Kind.
type Column struct {
	Name    string
	Kind    Kind
	Floats  []float64
	Strings []string
}

// NewNumeric creates a numeric column holding a copy of values.
func NewNumeric(name string, values []float64) Column {
	v := make([]float64, len(values))
	copy(v, values)
	return Column{Name: name, Kind: Numeric, Floats: v}
}

// NewCategorical creates a categorical column holding a copy of values.
func NewCategorical(name string, values []string) Column {
	v := make([]string, len(values))
	copy(v, values)
	return Column{Name: name, Kind: Categorical, Strings: v}
}

// Len returns the number of values in the column.
func (c Column) Len() int {
	if c.Kind == Categorical {
		return len(c.Strings)
	}
	return len(c.Floats)
}

// Clone returns a deep copy of the column.
func (c Column) Clone() Column {
	if c.Kind == Categorical {
		return NewCategorical(c.Name, c.Strings)
	}
	return NewNumeric(c.Name, c.Floats)
}

// Rename returns a copy of the column under a new name.
func (c Column) Rename(name string) Column {
	out := c.Clone()
	out.Name = name
	return out
}

// Table is an ordered collection of equally long, uniquely named columns.
type Table struct {
	columns []Column
	index   map[string]int
	rows    int
}

// New builds a table from the given columns. Columns are copied.
func New(columns ...Column) (*Table, error) {
	if len(columns) == 0 {
		return nil, errors.NewModelError("table.New", "no columns", errors.ErrEmptyData)
	}

	t := &Table{
		columns: make([]Column, len(columns)),
		index:   make(map[string]int, len(columns)),
		rows:    columns[0].Len(),
	}
	for i, c := range columns {
		if c.Name == "" {
			return nil, errors.NewValidationError("column.name", "must not be empty", i)
		}
		if c.Kind != Numeric && c.Kind != Categorical {
			return nil, errors.NewValidationError("column.kind", "must be numeric or categorical", c.Kind)
		}
		if _, dup := t.index[c.Name]; dup {
			return nil, errors.NewValidationError("column.name", "duplicate column name", c.Name)
		}
		if c.Len() != t.rows {
			return nil, errors.NewDimensionError("table.New", t.rows, c.Len(), 0)
		}
		t.columns[i] = c.Clone()
		t.index[c.Name] = i
	}
	return t, nil
}

// MustNew is like New but panics on error. Intended for tests and examples.
func MustNew(columns ...Column) *Table {
	t, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return t
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return t.rows }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.columns) }

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Has reports whether the table has a column with the given name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i].Clone(), true
}

// ColumnAt returns a copy of the column at position i.
func (t *Table) ColumnAt(i int) Column {
	return t.columns[i].Clone()
}

// Columns returns copies of all columns in order.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.Clone()
	}
	return out
}

// Floats returns the values of a numeric column without copying. Callers must
// not modify the returned slice.
func (t *Table) Floats(name string) ([]float64, bool) {
	i, ok := t.index[name]
	if !ok || t.columns[i].Kind != Numeric {
		return nil, false
	}
	return t.columns[i].Floats, true
}

// Strings returns the values of a categorical column without copying. Callers
// must not modify the returned slice.
func (t *Table) Strings(name string) ([]string, bool) {
	i, ok := t.index[name]
	if !ok || t.columns[i].Kind != Categorical {
		return nil, false
	}
	return t.columns[i].Strings, true
}

// Select returns a new table with the named columns in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	cols := make([]Column, 0, len(names))
	for _, name := range names {
		i, ok := t.index[name]
		if !ok {
			return nil, errors.NewMissingColumnError("Table.Select", name)
		}
		cols = append(cols, t.columns[i])
	}
	return New(cols...)
}

// Concat joins tables side by side. All tables must have the same number of
// rows and column names must stay unique.
func Concat(tables ...*Table) (*Table, error) {
	var cols []Column
	for _, t := range tables {
		if t == nil {
			continue
		}
		cols = append(cols, t.columns...)
	}
	if len(cols) == 0 {
		return nil, errors.NewModelError("table.Concat", "no columns", errors.ErrEmptyData)
	}
	return New(cols...)
}

// Equal reports whether two tables have the same columns, kinds and values.
// NaN values compare equal to each other.
func (t *Table) Equal(other *Table) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.rows != other.rows || len(t.columns) != len(other.columns) {
		return false
	}
	for i, c := range t.columns {
		o := other.columns[i]
		if c.Name != o.Name || c.Kind != o.Kind {
			return false
		}
		if c.Kind == Categorical {
			for r := range c.Strings {
				if c.Strings[r] != o.Strings[r] {
					return false
				}
			}
			continue
		}
		for r := range c.Floats {
			a, b := c.Floats[r], o.Floats[r]
			if a != b && !(math.IsNaN(a) && math.IsNaN(b)) {
				return false
			}
		}
	}
	return true
}
