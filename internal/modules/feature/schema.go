package feature

import "math"

// Align lays v out in the expected column order. Expected columns absent from v are
// zero-filled, extra columns are ignored and non-finite values become 0.
func Align(v Vector, expected []string) []float64 {
	row := make([]float64, len(expected))
	for i, name := range expected {
		x, ok := v[name]
		if !ok || math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		row[i] = x
	}
	return row
}

// AlignBatch aligns a table of vectors.
func AlignBatch(vs []Vector, expected []string) [][]float64 {
	rows := make([][]float64, len(vs))
	for i, v := range vs {
		rows[i] = Align(v, expected)
	}
	return rows
}

// Missing lists expected columns the vector does not carry.
func Missing(v Vector, expected []string) []string {
	var out []string
	for _, name := range expected {
		if _, ok := v[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}
