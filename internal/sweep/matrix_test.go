package sweep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatrix_Rows(t *testing.T) {
	m := NewMatrix(2, 3)
	r, c := m.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)

	require.NoError(t, m.SetRow(1, []complex128{1 + 2i, 3, -4i}))
	assert.Equal(t, []complex128{0, 0, 0}, m.Row(0))
	assert.Equal(t, []complex128{1 + 2i, 3, -4i}, m.Row(1))
	assert.Equal(t, []complex128{0, 3}, m.Column(1))
	assert.Equal(t, complex128(-4i), m.At(1, 2))

	assert.Error(t, m.SetRow(2, []complex128{1, 2, 3}))
	assert.Error(t, m.SetRow(0, []complex128{1, 2}))
}

func TestMatrixFromRows(t *testing.T) {
	m, err := MatrixFromRows([][]complex128{{1, 2}, {3, 4}, {5, 6}})
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, []complex128{2, 4, 6}, m.Column(1))

	_, err = MatrixFromRows([][]complex128{{1, 2}, {3}})
	assert.Error(t, err)
	_, err = MatrixFromRows(nil)
	assert.Error(t, err)
}
