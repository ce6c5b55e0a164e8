package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/brambozz/kmcdn/internal/boltzmann"
	"github.com/brambozz/kmcdn/internal/utils"
)

// Validation is what the validate command produces for one network.
type Validation struct {
	Result   *boltzmann.Result
	Sites    int
	Carriers int
}

type microstateReport struct {
	Occupation string  `yaml:"occupation"`
	Energy     float64 `yaml:"energy"`
	Theory     float64 `yaml:"p_theory"`
	Empirical  float64 `yaml:"p_empirical"`
}

type validationReport struct {
	Network          string             `yaml:"network"`
	Sites            int                `yaml:"sites"`
	Carriers         int                `yaml:"carriers"`
	Hops             int                `yaml:"hops"`
	Elapsed          float64            `yaml:"elapsed"`
	NormOfDifference float64            `yaml:"norm_of_difference"`
	MostProbable     string             `yaml:"most_probable"`
	MostVisited      string             `yaml:"most_visited"`
	Microstates      []microstateReport `yaml:"microstates"`
}

func NewValidationOutputs() *Outputs[*Validation] {
	return newOutputs(map[string]*Item[*Validation]{
		"Probabilities": {
			Flag:       "probabilities",
			Usage:      "save theoretical and empirical microstate probabilities",
			FileSuffix: "probabilities",
			Ext:        "csv",
			Default:    true,
			Write:      writeProbabilities,
		},
		"Convergence": {
			Flag:       "convergence",
			Usage:      "save the empirical probabilities at every checkpoint",
			FileSuffix: "convergence",
			Ext:        "csv",
			Write:      writeConvergence,
		},
		"Convergence plot": {
			Flag:       "plot",
			Usage:      "plot the empirical probabilities against theory",
			FileSuffix: "convergence_plot",
			Ext:        "png",
			Write:      plotConvergence,
		},
		"Validation report": {
			Flag:       "report",
			Usage:      "save a YAML summary of the validation",
			FileSuffix: "validation_report",
			Ext:        "yaml",
			Default:    true,
			Write:      writeValidationReport,
		},
	})
}

// OccupationString renders an occupation as a row of 0 and 1.
func OccupationString(occupation []bool) string {
	var sb strings.Builder
	sb.Grow(len(occupation))
	for _, o := range occupation {
		if o {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

func stateName(k int) string {
	return "state_" + strconv.Itoa(k)
}

func writeProbabilities(w io.Writer, _ string, v *Validation) error {
	r := v.Result
	rows := make(utils.CSV, len(r.Microstates))
	for k, occ := range r.Microstates {
		rows[k] = []string{
			stateName(k),
			OccupationString(occ),
			utils.FormatFloat(r.Energies[k]),
			utils.FormatFloat(r.Theory[k]),
			utils.FormatFloat(r.Empirical[k]),
		}
	}
	return utils.WriteCSV(w, []string{"state", "occupation", "energy", "p_theory", "p_empirical"}, rows)
}

func writeConvergence(w io.Writer, _ string, v *Validation) error {
	r := v.Result
	columns := make([]string, 0, len(r.Microstates)+1)
	columns = append(columns, "hop")
	for k := range r.Microstates {
		columns = append(columns, stateName(k))
	}
	rows := make(utils.CSV, len(r.Checkpoints))
	for c, cp := range r.Checkpoints {
		row := make([]string, 0, len(cp.Probabilities)+1)
		row = append(row, strconv.Itoa(cp.Hop))
		for _, p := range cp.Probabilities {
			row = append(row, utils.FormatFloat(p))
		}
		rows[c] = row
	}
	return utils.WriteCSV(w, columns, rows)
}

func writeValidationReport(w io.Writer, networkName string, v *Validation) error {
	r := v.Result
	report := validationReport{
		Network:          networkName,
		Sites:            v.Sites,
		Carriers:         v.Carriers,
		Hops:             r.Hops,
		Elapsed:          r.Elapsed,
		NormOfDifference: r.Convergence,
		Microstates:      make([]microstateReport, len(r.Microstates)),
	}
	if len(r.Microstates) > 0 {
		report.MostProbable = OccupationString(r.Microstates[utils.Argmax(r.Theory)])
		report.MostVisited = OccupationString(r.Microstates[utils.Argmax(r.Empirical)])
	}
	for k, occ := range r.Microstates {
		report.Microstates[k] = microstateReport{
			Occupation: OccupationString(occ),
			Energy:     r.Energies[k],
			Theory:     r.Theory[k],
			Empirical:  r.Empirical[k],
		}
	}
	return encodeYAML(w, report)
}

// maxPlotted bounds the number of microstates drawn in one plot.
const maxPlotted = 8

func plotConvergence(w io.Writer, networkName string, v *Validation) error {
	r := v.Result
	if len(r.Checkpoints) == 0 {
		return fmt.Errorf("no checkpoints recorded")
	}

	p := plot.New()
	p.Title.Text = networkName
	p.X.Label.Text = "hop"
	p.Y.Label.Text = "probability"
	p.Legend.Top = true

	for k := range min(len(r.Microstates), maxPlotted) {
		pts := make(plotter.XYs, len(r.Checkpoints))
		for c, cp := range r.Checkpoints {
			pts[c].X = float64(cp.Hop)
			pts[c].Y = cp.Probabilities[k]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(k)
		p.Add(line)
		p.Legend.Add(OccupationString(r.Microstates[k]), line)

		level := r.Theory[k]
		theory := plotter.NewFunction(func(float64) float64 { return level })
		theory.Color = plotutil.Color(k)
		theory.Dashes = plotutil.Dashes(1)
		p.Add(theory)
	}
	p.X.Min = 0
	p.X.Max = float64(r.Checkpoints[len(r.Checkpoints)-1].Hop)

	wt, err := p.WriterTo(6*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
