package output

import (
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/brambozz/kmcdn/internal/current"
	"github.com/brambozz/kmcdn/internal/utils"
)

// Density is what the density command produces for one network.
type Density struct {
	Reconstruction    *current.Reconstruction
	ElectrodeCurrents []float64
	Normalized        bool
	Hops              int
	Time              float64
}

type densityReport struct {
	Network           string    `yaml:"network"`
	Hops              int       `yaml:"hops"`
	Time              float64   `yaml:"time"`
	Cells             [2]int    `yaml:"cells"`
	CellMax           float64   `yaml:"cell_max"`
	Normalized        bool      `yaml:"normalized"`
	ElectrodeCurrents []float64 `yaml:"electrode_currents"`
	NetCurrent        float64   `yaml:"net_electrode_current"`
	ElectrodeRelative []float64 `yaml:"electrode_currents_relative,omitempty"`
}

func NewDensityOutputs() *Outputs[*Density] {
	return newOutputs(map[string]*Item[*Density]{
		"Current density": {
			Flag:       "grid",
			Usage:      "save the current density grid",
			FileSuffix: "density",
			Ext:        "csv",
			Default:    true,
			Write:      writeGrid,
		},
		"Site currents": {
			Flag:       "vectors",
			Usage:      "save per-site current directions and magnitudes",
			FileSuffix: "vectors",
			Ext:        "csv",
			Write:      writeArrows,
		},
		"Density report": {
			Flag:       "report",
			Usage:      "save a YAML summary of the reconstruction",
			FileSuffix: "density_report",
			Ext:        "yaml",
			Default:    true,
			Write:      writeDensityReport,
		},
	})
}

func writeGrid(w io.Writer, _ string, d *Density) error {
	g := d.Reconstruction.Grid
	rows := make(utils.CSV, 0, len(g.Values))
	for i := range g.Nx {
		for j := range g.Ny {
			rows = append(rows, []string{
				fmt.Sprintf("cell_%d_%d", i, j),
				utils.FormatFloat(g.XEdges[i]),
				utils.FormatFloat(g.XEdges[i+1]),
				utils.FormatFloat(g.YEdges[j]),
				utils.FormatFloat(g.YEdges[j+1]),
				utils.FormatFloat(g.At(i, j)),
			})
		}
	}
	return utils.WriteCSV(w, []string{"cell", "x_min", "x_max", "y_min", "y_max", "current_density"}, rows)
}

func arrowRows(kind string, arrows []current.Arrow) utils.CSV {
	rows := make(utils.CSV, 0, len(arrows))
	for i, a := range arrows {
		rows = append(rows, []string{
			kind + "_" + strconv.Itoa(i),
			utils.FormatFloat(a.Pos.X),
			utils.FormatFloat(a.Pos.Y),
			utils.FormatFloat(a.Pos.Z),
			utils.FormatFloat(a.Dir.X),
			utils.FormatFloat(a.Dir.Y),
			utils.FormatFloat(a.Dir.Z),
			utils.FormatFloat(a.Magnitude),
		})
	}
	return rows
}

func writeArrows(w io.Writer, _ string, d *Density) error {
	rows := arrowRows("acceptor", d.Reconstruction.Acceptors)
	rows = append(rows, arrowRows("electrode", d.Reconstruction.Electrodes)...)
	return utils.WriteCSV(w, []string{"site", "x", "y", "z", "ux", "uy", "uz", "magnitude"}, rows)
}

func writeDensityReport(w io.Writer, networkName string, d *Density) error {
	g := d.Reconstruction.Grid
	r := densityReport{
		Network:           networkName,
		Hops:              d.Hops,
		Time:              d.Time,
		Cells:             [2]int{g.Nx, g.Ny},
		CellMax:           g.Max(),
		Normalized:        d.Normalized,
		ElectrodeCurrents: d.ElectrodeCurrents,
		NetCurrent:        utils.SumSlice(d.ElectrodeCurrents),
	}
	// an all-zero electrode set simply has no relative currents
	r.ElectrodeRelative, _ = current.NormalizeElectrodeCurrents(d.ElectrodeCurrents)
	return encodeYAML(w, r)
}

func encodeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
