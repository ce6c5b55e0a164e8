package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

const testConfig = `
XDim = 1.0
YDim = 1.0
KT = 1.0
Hops = 2000
Carriers = 1
MakeDir = false
PositionsFile = "%POSITIONS%"

[Networks.net2]
Electrodes = [
  { X = 0.0, Y = 0.5, Potential = 3.0 },
  { X = 1.0, Y = 0.5, Potential = -3.0 },
]

[Networks.net10]
Points = 10
Electrodes = [
  { X = 0.0, Y = 0.5, Potential = 3.0 },
]
`

func writeConfig(t *testing.T, extra string) (configFile, outDir string) {
	t.Helper()
	dir := t.TempDir()
	positions := filepath.Join(dir, "positions.txt")
	if err := os.WriteFile(positions, []byte("0.2 0.5\n0.5 0.4\n0.8 0.5\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	configFile = filepath.Join(dir, "networks.toml")
	content := strings.ReplaceAll(testConfig, "%POSITIONS%", positions) + extra
	if err := os.WriteFile(configFile, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return configFile, filepath.Join(dir, "out")
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd.Execute()
}

func TestRootCmdFlags(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"config", "log-level", "output"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("missing --%s flag", name)
		}
	}
	for _, sub := range []string{"validate", "density", "simulate"} {
		c, _, err := cmd.Find([]string{sub})
		if err != nil || c.Name() != sub {
			t.Errorf("missing %s command", sub)
		}
	}
}

func TestValidateCmd(t *testing.T) {
	configFile, out := writeConfig(t, "")
	if err := execute(t, "validate", "--config", configFile, "--output", out, "--convergence"); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"net2_probabilities.csv", "net2_validation_report.yaml", "net10_convergence.csv"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(out, "net10_validation_report.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	var report struct {
		Sites       int `yaml:"sites"`
		Hops        int `yaml:"hops"`
		Microstates []struct {
			Occupation string `yaml:"occupation"`
		} `yaml:"microstates"`
	}
	if err := yaml.Unmarshal(data, &report); err != nil {
		t.Fatal(err)
	}
	if report.Sites != 3 || report.Hops != 2000 || len(report.Microstates) != 3 {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestDensityCmd(t *testing.T) {
	configFile, out := writeConfig(t, "")
	if err := execute(t, "density", "--config", configFile, "--output", out, "--vectors"); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"net2_density.csv", "net2_vectors.csv", "net2_density_report.yaml", "net10_density.csv"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestSimulateCmd(t *testing.T) {
	configFile, out := writeConfig(t, "")
	if err := execute(t, "simulate", "--config", configFile, "--output", out); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(out, "net2_traffic.csv")); err != nil {
		t.Error(err)
	}
}

func TestInvalidNetworkDoesNotStopOthers(t *testing.T) {
	configFile, out := writeConfig(t, "\n[Networks.broken]\nXDim = -1.0\n")
	err := execute(t, "simulate", "--config", configFile, "--output", out)
	if err == nil || !strings.Contains(err.Error(), "1 of 3 networks failed") {
		t.Fatalf("unexpected error %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "net2_traffic.csv")); err != nil {
		t.Error(err)
	}
}

func TestMissingConfig(t *testing.T) {
	if err := execute(t, "validate", "--config", filepath.Join(t.TempDir(), "none.toml")); err == nil {
		t.Error("expected an error for a missing configuration file")
	}
}
