package config

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/brambozz/kmcdn/internal/constants"
)

var (
	ErrNoNetworks         = errors.New("no networks provided")
	ErrMissingParameter   = errors.New("missing parameter")
	ErrAmbiguousParameter = errors.New("ambiguous parameter")
	ErrInvalidParameter   = errors.New("invalid parameter")
)

type Electrode struct {
	X, Y, Z   float64
	Potential float64 // energy level of the contact
}

type Config struct {
	OutputDir  string
	EnergyUnit string
	Networks   map[string]NetworkParameters
	NetworkParameters
}

type NetworkParameters struct {
	XDim, YDim, ZDim float64
	Acceptors        int
	Donors           int
	PositionsFile    string // acceptor coordinates, 2 or 3 columns
	Electrodes       []Electrode

	Temperature         float64 // [K]
	KT                  float64 // [eV]; wins over Temperature
	Mu                  float64 // chemical potential [eV]
	InteractionStrength float64 // Coulomb prefactor I0 [eV * length]
	LocalizationRadius  float64
	AttemptFrequency    float64

	Resolution float64 // density cell size; XDim/10 when unset
	Normalize  bool

	Hops     int
	Carriers int
	Points   int // validation checkpoints
	Seed     int64

	MakeDir bool
}

var defaultValues = map[string]any{
	"Temperature":         77.,
	"Mu":                  1.,
	"InteractionStrength": 1.,
	"LocalizationRadius":  1.,
	"AttemptFrequency":    1.,
	"Normalize":           true,
	"Hops":                1000,
	"Carriers":            2,
	"Seed":                int64(1),
	"MakeDir":             true,
}

// checkpoints when the network sets none, capped by its hop budget
const defaultPoints = 100

var requiredFields = []string{"XDim", "YDim"}

// fields that must not be given together in one table
var fieldsXor = map[string][]string{
	"KT":            {"Temperature"},
	"PositionsFile": {"Acceptors"},
}

// LoadConfig decodes a TOML file. Keys that match no parameter are returned
// so the caller can warn about typos.
func LoadConfig(fileName string) (Config, toml.MetaData, []string, error) {
	var config Config
	meta, err := toml.DecodeFile(fileName, &config)
	if err != nil {
		return config, meta, nil, err
	}
	if len(config.Networks) == 0 {
		return config, meta, nil, ErrNoNetworks
	}
	var undecoded []string
	for _, key := range meta.Undecoded() {
		undecoded = append(undecoded, key.String())
	}
	return config, meta, undecoded, nil
}

func isDefined(meta *toml.MetaData, path []string, field string) bool {
	return meta.IsDefined(append(slices.Clone(path), field)...)
}

func checkFieldProblems(path []string, meta *toml.MetaData) (ambiguities [][]string) {
	for field, alternatives := range fieldsXor {
		if !isDefined(meta, path, field) {
			continue
		}
		for _, alternative := range alternatives {
			if isDefined(meta, path, alternative) {
				ambiguities = append(ambiguities, []string{field, alternative})
			}
		}
	}
	return
}

/*
field value priority:
1. network table
2. global
3. default
4. derived (KT from Temperature, Resolution from XDim)
*/

// CheckAndUnify fills every parameter of the network called networkName that
// its own table leaves out, converts energies to eV and validates the result.
func (p *NetworkParameters) CheckAndUnify(networkName string, config *Config, meta *toml.MetaData) error {
	local := []string{"Networks", networkName}
	for _, path := range [][]string{nil, local} {
		if ambiguities := checkFieldProblems(path, meta); len(ambiguities) > 0 {
			return fmt.Errorf("%w: %v", ErrAmbiguousParameter, ambiguities)
		}
	}

	scale, err := checkUnit(config.EnergyUnit)
	if err != nil {
		return err
	}

	localReflect := reflect.ValueOf(p).Elem()
	globalReflect := reflect.ValueOf(&config.NetworkParameters).Elem()
	fields := localReflect.Type()

	var discovered, missing []string
	fromGlobal := map[string]bool{}
	for i := range fields.NumField() {
		name := fields.Field(i).Name
		switch {
		case isDefined(meta, local, name):
			discovered = append(discovered, name)
		case meta.IsDefined(name) && !blockedByLocal(name, local, meta):
			localReflect.Field(i).Set(globalReflect.Field(i))
			if name == "Electrodes" {
				p.Electrodes = slices.Clone(p.Electrodes)
			}
			discovered = append(discovered, name)
			fromGlobal[name] = true
		}
	}

	for _, name := range requiredFields {
		if !slices.Contains(discovered, name) {
			missing = append(missing, name)
		}
	}
	if !slices.Contains(discovered, "Acceptors") && !slices.Contains(discovered, "PositionsFile") {
		missing = append(missing, "Acceptors or PositionsFile")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingParameter, strings.Join(missing, ", "))
	}

	p.toEV(intersect(energyFields, discovered), scale)

	for name, value := range defaultValues {
		if !slices.Contains(discovered, name) {
			localReflect.FieldByName(name).Set(reflect.ValueOf(value))
		}
	}

	if !slices.Contains(discovered, "KT") {
		p.KT = constants.KBolzmannEV * p.Temperature
	}
	if !slices.Contains(discovered, "Resolution") {
		p.Resolution = p.XDim / 10
	}
	if !slices.Contains(discovered, "Points") {
		p.Points = min(defaultPoints, p.Hops)
	}
	return p.validate()
}

// a global value must not fill a field whose xor partner the network sets
func blockedByLocal(name string, local []string, meta *toml.MetaData) bool {
	for _, alternative := range fieldsXor[name] {
		if isDefined(meta, local, alternative) {
			return true
		}
	}
	return false
}

func intersect(a, b []string) (out []string) {
	for i := range a {
		if slices.Contains(b, a[i]) {
			out = append(out, a[i])
		}
	}
	return
}

func (p *NetworkParameters) validate() error {
	var problems []string
	if !(p.XDim > 0) || !(p.YDim > 0) || p.ZDim < 0 {
		problems = append(problems, fmt.Sprintf("domain %vx%vx%v", p.XDim, p.YDim, p.ZDim))
	}
	if p.PositionsFile == "" && p.Acceptors < 1 {
		problems = append(problems, fmt.Sprintf("%d acceptors", p.Acceptors))
	}
	if p.Donors < 0 {
		problems = append(problems, fmt.Sprintf("%d donors", p.Donors))
	}
	if !(p.KT > 0) {
		problems = append(problems, fmt.Sprintf("kT %v", p.KT))
	}
	if !(p.LocalizationRadius > 0) || !(p.AttemptFrequency > 0) {
		problems = append(problems, "localization radius and attempt frequency must be positive")
	}
	if !(p.Resolution > 0) || p.Resolution > p.XDim || p.Resolution > p.YDim {
		problems = append(problems, fmt.Sprintf("resolution %v", p.Resolution))
	}
	if p.Hops < 1 || p.Points < 0 || p.Points > p.Hops {
		problems = append(problems, fmt.Sprintf("%d hops with %d points", p.Hops, p.Points))
	}
	if p.Carriers < 0 || (p.PositionsFile == "" && p.Carriers > p.Acceptors) {
		problems = append(problems, fmt.Sprintf("%d carriers", p.Carriers))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidParameter, strings.Join(problems, "; "))
	}
	return nil
}
