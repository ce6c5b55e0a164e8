package output

import (
	"io"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/brambozz/kmcdn/internal/utils"
)

// Simulation is the raw simulator state after a hop budget.
type Simulation struct {
	Traffic           mat.Matrix
	ElectrodeCurrents []float64
	Hops              int
	Time              float64
}

func NewSimulationOutputs() *Outputs[*Simulation] {
	return newOutputs(map[string]*Item[*Simulation]{
		"Traffic": {
			Flag:       "traffic",
			Usage:      "save the hop count matrix",
			FileSuffix: "traffic",
			Ext:        "csv",
			Default:    true,
			Write:      writeTraffic,
		},
		"Electrode currents": {
			Flag:       "electrodes",
			Usage:      "save net carrier counts through each electrode",
			FileSuffix: "electrodes",
			Ext:        "csv",
			Default:    true,
			Write:      writeElectrodeCurrents,
		},
	})
}

func siteName(i int) string {
	return "site_" + strconv.Itoa(i)
}

func writeTraffic(w io.Writer, _ string, s *Simulation) error {
	r, c := s.Traffic.Dims()
	columns := make([]string, 0, c+1)
	columns = append(columns, "from")
	for j := range c {
		columns = append(columns, siteName(j))
	}
	rows := make(utils.CSV, r)
	for i := range r {
		row := make([]string, 0, c+1)
		row = append(row, siteName(i))
		for j := range c {
			row = append(row, utils.FormatFloat(s.Traffic.At(i, j)))
		}
		rows[i] = row
	}
	return utils.WriteCSV(w, columns, rows)
}

func writeElectrodeCurrents(w io.Writer, _ string, s *Simulation) error {
	rows := make(utils.CSV, len(s.ElectrodeCurrents))
	for e, c := range s.ElectrodeCurrents {
		rows[e] = []string{"electrode_" + strconv.Itoa(e), utils.FormatFloat(c)}
	}
	return utils.WriteCSV(w, []string{"electrode", "net_carriers"}, rows)
}
