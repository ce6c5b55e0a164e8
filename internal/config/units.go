package config

import (
	"fmt"
	"reflect"

	"github.com/brambozz/kmcdn/internal/constants"
)

// energies are kept in eV internally; a unit charge makes volts and eV equal
var unitToEV = map[string]float64{
	"eV":  1,
	"meV": 1e-3,
	"V":   1,
	"mV":  1e-3,
	"J":   1 / constants.ElectronCharge,
}

var defaultEnergyUnit = "eV"

// energy valued fields of NetworkParameters
var energyFields = []string{"KT", "Mu", "InteractionStrength"}

func checkUnit(unit string) (float64, error) {
	if unit == "" {
		unit = defaultEnergyUnit
	}
	scale, ok := unitToEV[unit]
	if !ok {
		return 0, fmt.Errorf("%w: unknown energy unit %q", ErrInvalidParameter, unit)
	}
	return scale, nil
}

func (p *NetworkParameters) toEV(parameterNames []string, scale float64) {
	r := reflect.ValueOf(p).Elem()
	for _, name := range parameterNames {
		if f := r.FieldByName(name); f.CanFloat() {
			f.SetFloat(f.Float() * scale)
		}
	}
	for i := range p.Electrodes {
		p.Electrodes[i].Potential *= scale
	}
}
