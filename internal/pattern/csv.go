package pattern

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/antenna.report/internal/sweep"
)

// FormatComplex writes v the way numpy.savetxt writes complex cells, e.g.
// "(1.000000000000000000e+00-2.500000000000000000e-01j)".
func FormatComplex(v complex128) string {
	return fmt.Sprintf("(%.18e%+.18ej)", real(v), imag(v))
}

// ParseComplex reads a numpy-style complex cell. Both "+-" (numpy) and "-"
// imaginary signs are accepted, as are plain real numbers.
func ParseComplex(s string) (complex128, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "+-", "-")
	s = strings.Replace(s, "j", "i", 1)
	return strconv.ParseComplex(s, 128)
}

// WriteCSV writes one line per angle and one cell per frequency point, with
// no header, so the file loads with numpy.loadtxt(dtype=complex).
func WriteCSV(w io.Writer, m *sweep.Matrix) error {
	cw := csv.NewWriter(w)
	rows, cols := m.Dims()
	record := make([]string, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			record[j] = FormatComplex(m.At(i, j))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads a matrix written by WriteCSV or numpy.savetxt. Lines starting
// with # are ignored.
func ReadCSV(r io.Reader) (*sweep.Matrix, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	var rows [][]complex128
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read measurement CSV: %w", err)
		}
		row := make([]complex128, len(record))
		for j, cell := range record {
			v, err := ParseComplex(cell)
			if err != nil {
				line, _ := cr.FieldPos(j)
				return nil, fmt.Errorf("line %d column %d: invalid complex value %q", line, j+1, cell)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("measurement CSV is empty")
	}
	return sweep.MatrixFromRows(rows)
}
