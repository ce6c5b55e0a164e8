package utils

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"

	"github.com/facette/natsort"
)

// CSV rows are ordered naturally by their first column, so "cell_10" sorts
// after "cell_9".
type CSV [][]string

func (data CSV) Less(i, j int) bool {
	return natsort.Compare(data[i][0], data[j][0])
}

func (data CSV) Len() int {
	return len(data)
}
func (data CSV) Swap(i, j int) {
	data[i], data[j] = data[j], data[i]
}

// WriteCSV writes the header row followed by the naturally sorted data.
func WriteCSV(w io.Writer, columns []string, data CSV) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	sort.Stable(data)
	return cw.WriteAll(data)
}

func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
