package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kmcdn",
		Short: "Current density and Boltzmann validation for dopant networks",
		Long: `kmcdn runs a kinetic Monte Carlo model of hopping transport through
dopant networks described in a TOML file.

Every network in the file is processed in turn. The density command maps
where current flows, validate checks that the hopping dynamics sample the
Boltzmann distribution, and simulate dumps raw hop statistics.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "networks.toml", "network configuration in toml format")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (info, debug, trace)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "output directory (overrides OutputDir, defaults to the config file name)")

	rootCmd.AddCommand(
		newValidateCmd(),
		newDensityCmd(),
		newSimulateCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
