package table

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabprep/pkg/errors"
)

// ToDense converts an all-numeric table into a rows × columns gonum matrix,
// preserving row and column order.
func (t *Table) ToDense() (*mat.Dense, error) {
	for _, c := range t.columns {
		if c.Kind != Numeric {
			return nil, errors.NewKindMismatchError("Table.ToDense", c.Name, Numeric.String(), c.Kind.String())
		}
	}
	m := mat.NewDense(t.rows, len(t.columns), nil)
	for j, c := range t.columns {
		m.SetCol(j, c.Floats)
	}
	return m, nil
}

// FromDense builds a numeric table from a matrix, naming column j names[j].
func FromDense(names []string, m mat.Matrix) (*Table, error) {
	r, c := m.Dims()
	if len(names) != c {
		return nil, errors.NewDimensionError("table.FromDense", c, len(names), 1)
	}
	cols := make([]Column, c)
	for j := 0; j < c; j++ {
		values := make([]float64, r)
		for i := 0; i < r; i++ {
			values[i] = m.At(i, j)
		}
		cols[j] = Column{Name: names[j], Kind: Numeric, Floats: values}
	}
	return New(cols...)
}
