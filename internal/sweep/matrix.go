package sweep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Matrix holds one complex S21 value per (angle, frequency point). Rows follow
// the angle schedule and columns follow the sweep points.
type Matrix struct {
	data *mat.CDense
}

// NewMatrix returns a zeroed angles×points matrix.
func NewMatrix(angles, points int) *Matrix {
	return &Matrix{data: mat.NewCDense(angles, points, nil)}
}

// MatrixFromRows builds a matrix from equal-length rows.
func MatrixFromRows(rows [][]complex128) (*Matrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("matrix needs at least one row and column")
	}
	m := NewMatrix(len(rows), len(rows[0]))
	for i, row := range rows {
		if err := m.SetRow(i, row); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Dims returns the number of angles and frequency points.
func (m *Matrix) Dims() (angles, points int) {
	return m.data.Dims()
}

// At returns the value at angle i, point j.
func (m *Matrix) At(i, j int) complex128 {
	return m.data.At(i, j)
}

// Set stores v at angle i, point j.
func (m *Matrix) Set(i, j int, v complex128) {
	m.data.Set(i, j, v)
}

// SetRow stores the sweep taken at angle i.
func (m *Matrix) SetRow(i int, row []complex128) error {
	r, c := m.data.Dims()
	if i < 0 || i >= r {
		return fmt.Errorf("row %d out of range [0, %d)", i, r)
	}
	if len(row) != c {
		return fmt.Errorf("row %d has %d points, want %d", i, len(row), c)
	}
	for j, v := range row {
		m.data.Set(i, j, v)
	}
	return nil
}

// Row returns a copy of the sweep at angle i.
func (m *Matrix) Row(i int) []complex128 {
	_, c := m.data.Dims()
	out := make([]complex128, c)
	for j := range out {
		out[j] = m.data.At(i, j)
	}
	return out
}

// Column returns a copy of frequency point j across all angles.
func (m *Matrix) Column(j int) []complex128 {
	r, _ := m.data.Dims()
	out := make([]complex128, r)
	for i := range out {
		out[i] = m.data.At(i, j)
	}
	return out
}
