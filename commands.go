package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/facette/natsort"
	"github.com/spf13/cobra"

	"github.com/brambozz/kmcdn/internal/boltzmann"
	"github.com/brambozz/kmcdn/internal/config"
	"github.com/brambozz/kmcdn/internal/current"
	"github.com/brambozz/kmcdn/internal/logging"
	"github.com/brambozz/kmcdn/internal/model"
	"github.com/brambozz/kmcdn/internal/output"
	"github.com/brambozz/kmcdn/internal/utils"
)

// saver is the part of output.Outputs a run needs after flags are bound.
type saver interface {
	SetOutputPath(path string, makeDir bool)
	GetOutputPath() string
	SetLogger(l *slog.Logger)
}

// run holds what every command shares: the decoded configuration and the
// logger.
type run struct {
	cfg    config.Config
	meta   toml.MetaData
	logger *slog.Logger
	output string
}

func newRun(cmd *cobra.Command) (*run, error) {
	level, _ := cmd.Flags().GetString("log-level")
	configFile, _ := cmd.Flags().GetString("config")
	outputDir, _ := cmd.Flags().GetString("output")

	r := &run{logger: logging.NewLogger(level, os.Stderr)}
	r.logger.Info("started", "time", time.Now().UTC().Format(time.UnixDate), "config", configFile)

	cfg, meta, undecoded, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("unable to load %s: %w", configFile, err)
	}
	for _, key := range undecoded {
		r.logger.Warn("unknown configuration key", "key", key)
	}
	r.cfg, r.meta = cfg, meta
	switch {
	case outputDir != "":
		r.output = outputDir
	case cfg.OutputDir != "":
		r.output = cfg.OutputDir
	default:
		r.output = utils.GetFilename(configFile)
	}
	return r, nil
}

// forEach prepares every network in natural name order and hands it to fn.
// A failing network is logged and does not stop the others.
func (r *run) forEach(ctx context.Context, s saver, fn func(ctx context.Context, name string, p config.NetworkParameters, logger *slog.Logger) error) error {
	names := make([]string, 0, len(r.cfg.Networks))
	for name := range r.cfg.Networks {
		names = append(names, name)
	}
	natsort.Sort(names)

	start := time.Now()
	failed := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger := r.logger.With("network", name)
		p := r.cfg.Networks[name]
		if err := p.CheckAndUnify(name, &r.cfg, &r.meta); err != nil {
			logger.Error("invalid parameters", "error", err)
			failed++
			continue
		}
		s.SetOutputPath(r.output, p.MakeDir)
		s.SetLogger(logger)
		logger.Debug("network ready", "output", s.GetOutputPath(), "make_dir", p.MakeDir)
		if err := fn(ctx, name, p, logger); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			logger.Error("failed", "error", err)
			failed++
		}
	}
	r.logger.Info("finished", "networks", len(names), "failed", failed, "elapsed", time.Since(start))
	if failed > 0 {
		return fmt.Errorf("%d of %d networks failed", failed, len(names))
	}
	return nil
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt)
}

func newValidateCmd() *cobra.Command {
	outputs := output.NewValidationOutputs()
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that hopping samples the Boltzmann distribution",
		Long: `Runs every network without its electrodes at a fixed carrier count and
compares the time spent in each microstate with the Boltzmann weights of
the microstate energies.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRun(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()
			return r.forEach(ctx, outputs, func(ctx context.Context, name string, p config.NetworkParameters, logger *slog.Logger) error {
				network, err := model.FromParameters(p)
				if err != nil {
					return err
				}
				closed, err := network.WithoutElectrodes()
				if err != nil {
					return err
				}
				v, err := boltzmann.NewValidator(closed, boltzmann.Options{
					Hops:        p.Hops,
					Checkpoints: p.Points,
					Carriers:    p.Carriers,
					Seed:        p.Seed,
					Logger:      logger,
				})
				if err != nil {
					return err
				}
				result, err := v.Run(ctx)
				if err != nil {
					return err
				}
				return outputs.Save(name, &output.Validation{
					Result:   result,
					Sites:    closed.N(),
					Carriers: p.Carriers,
				})
			})
		},
	}
	outputs.Bind(cmd.Flags())
	return cmd
}

func newDensityCmd() *cobra.Command {
	outputs := output.NewDensityOutputs()
	cmd := &cobra.Command{
		Use:   "density",
		Short: "Reconstruct the current density of every network",
		Long: `Simulates Hops hops of every network and turns the hop counts into
per-site current vectors and a current density grid with cells of size
Resolution.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRun(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()
			return r.forEach(ctx, outputs, func(ctx context.Context, name string, p config.NetworkParameters, logger *slog.Logger) error {
				network, err := model.FromParameters(p)
				if err != nil {
					return err
				}
				if err := network.Occupy(p.Carriers); err != nil {
					return err
				}
				if err := network.Simulate(ctx, p.Hops); err != nil {
					return err
				}
				rec, err := current.Reconstruct(network.Snapshot(), current.Domain{XDim: p.XDim, YDim: p.YDim}, p.Resolution, p.Normalize)
				normalized := p.Normalize
				switch {
				case errors.Is(err, current.ErrEmptyField):
					logger.Warn("no net current, density left unnormalized")
					normalized = false
				case err != nil:
					return err
				}
				logger.Info("reconstructed", "hops", p.Hops, "time", network.Time(), "cells", rec.Grid.Nx*rec.Grid.Ny)
				return outputs.Save(name, &output.Density{
					Reconstruction:    rec,
					ElectrodeCurrents: network.ElectrodeCurrents(),
					Normalized:        normalized,
					Hops:              p.Hops,
					Time:              network.Time(),
				})
			})
		},
	}
	outputs.Bind(cmd.Flags())
	return cmd
}

func newSimulateCmd() *cobra.Command {
	outputs := output.NewSimulationOutputs()
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the hop budget and save raw hop counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRun(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()
			return r.forEach(ctx, outputs, func(ctx context.Context, name string, p config.NetworkParameters, logger *slog.Logger) error {
				network, err := model.FromParameters(p)
				if err != nil {
					return err
				}
				if err := network.Occupy(p.Carriers); err != nil {
					return err
				}
				if err := network.Simulate(ctx, p.Hops); err != nil {
					return err
				}
				currents := network.ElectrodeCurrents()
				logger.Info("simulated", "hops", p.Hops, "time", network.Time(), "electrode_currents", currents)
				return outputs.Save(name, &output.Simulation{
					Traffic:           network.Traffic(),
					ElectrodeCurrents: currents,
					Hops:              p.Hops,
					Time:              network.Time(),
				})
			})
		},
	}
	outputs.Bind(cmd.Flags())
	return cmd
}
