package diag

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// WriteMatrixCSV persists a draw matrix to path as CSV, one row per line,
// for bit-exact regression comparison of deterministic runs. Values are
// formatted with full float64 round-trip precision.
func WriteMatrixCSV(path string, m *mat.Dense) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %v", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	rows, cols := m.Dims()

	record := make([]string, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			record[j] = strconv.FormatFloat(m.At(i, j), 'g', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %v", i, err)
		}
	}

	w.Flush()

	return w.Error()
}

// ReadMatrixCSV loads a matrix previously written by WriteMatrixCSV.
func ReadMatrixCSV(path string) (*mat.Dense, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %v", path, err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v", path, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("empty matrix file: %s", path)
	}

	rows, cols := len(records), len(records[0])
	m := mat.NewDense(rows, cols, nil)
	for i, record := range records {
		if len(record) != cols {
			return nil, fmt.Errorf("ragged row %d in %s", i, path)
		}
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid value at [%d, %d]: %v", i, j, err)
			}
			m.Set(i, j, v)
		}
	}

	return m, nil
}

// WriteIndexHistory persists the resampling index history to path as CSV,
// one correction sub-step per line.
func WriteIndexHistory(path string, history [][]int) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %v", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	for i, idx := range history {
		record := make([]string, len(idx))
		for j, k := range idx {
			record[j] = strconv.Itoa(k)
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write sub-step %d: %v", i, err)
		}
	}

	w.Flush()

	return w.Error()
}
