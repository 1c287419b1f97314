package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ryandielhenn/dtngossip/internal/config"
	"github.com/ryandielhenn/dtngossip/internal/experiment"
	"github.com/ryandielhenn/dtngossip/internal/logging"
	"github.com/ryandielhenn/dtngossip/internal/telemetry"
	"github.com/ryandielhenn/dtngossip/pkg/sim"
)

// Set with -ldflags "-X main.version=... -X main.gitSHA=...".
var (
	version = "dev"
	gitSHA  = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfgPath string
	cfg     *config.Config
	log     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "dtngossip",
		Short:         "Delay-tolerant gossip and SIRS contagion simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.cfgPath)
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Logger)
			if err != nil {
				return err
			}
			a.cfg, a.log = cfg, log
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "dtngossip.yaml", "path to YAML config")
	root.AddCommand(newRunCmd(a), newSweepCmd(a), newServeCmd(a))
	return root
}

func newRunCmd(a *app) *cobra.Command {
	var (
		rate   float64
		seed   uint64
		policy string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one simulation and print the infected count per tick",
		RunE: func(cmd *cobra.Command, _ []string) error {
			applyFlags(cmd, a.cfg, rate, seed, policy)
			if err := config.Validate(a.cfg); err != nil {
				return err
			}

			stats := sim.NewStats()
			s, err := experiment.Build(a.cfg, stats, a.log)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := s.Run(ctx, a.cfg.Simulation.Duration); err != nil {
				return err
			}

			if a.cfg.Simulation.Policy == config.PolicyContagion {
				return stats.WriteSeries(cmd.OutOrStdout())
			}
			snap := s.Snapshot()
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "held=%d delivered=%d/%d tx=%d rx=%d dup=%d\n",
				snap.Held, snap.Arrived, snap.Originated, snap.Tx, snap.Rx, snap.Dup)
			return err
		},
	}
	cmd.Flags().Float64Var(&rate, "rate", 0, "override contagion.infection_rate")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "override simulation.seed")
	cmd.Flags().StringVar(&policy, "policy", "", "override simulation.policy (contagion|carryonly)")
	return cmd
}

func newSweepCmd(a *app) *cobra.Command {
	var trials, workers int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Estimate epidemic persistence across infection rates, as CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("trials") {
				a.cfg.Sweep.Trials = trials
			}
			if cmd.Flags().Changed("workers") {
				a.cfg.Sweep.Workers = workers
			}
			a.cfg.Simulation.Policy = config.PolicyContagion
			if err := config.Validate(a.cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			res, err := experiment.Sweep(ctx, a.cfg, a.log)
			if err != nil {
				return err
			}
			return res.WriteCSV(cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&trials, "trials", 0, "override sweep.trials")
	cmd.Flags().IntVar(&workers, "workers", 0, "override sweep.workers")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a simulation in the background and expose its state over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Metrics.Addr = addr
			}
			return serve(cmd.Context(), a.cfg, a.log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "override metrics.addr")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Build the simulation with Prometheus export alongside the stats series
	telemetry.SetBuildInfo(version, gitSHA)
	stats := sim.NewStats()
	s, err := experiment.Build(cfg, sim.Multi{stats, telemetry.NewMonitor()}, log)
	if err != nil {
		return err
	}

	// 2. Wire up HTTP endpoints
	mux := http.NewServeMux()
	mux.Handle("/healthz", telemetry.Instrument("healthz", http.HandlerFunc(s.Healthz)))
	mux.Handle("/info", telemetry.Instrument("info", http.HandlerFunc(s.Info)))
	mux.Handle("/agents", telemetry.Instrument("agents", http.HandlerFunc(s.AgentList)))
	mux.Handle("/metrics", telemetry.MetricsHandler())
	srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Metrics.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// 3. Step the simulation until the horizon, then keep serving the final state
	go func() {
		if err := s.Run(ctx, cfg.Simulation.Duration); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("simulation stopped", zap.Error(err))
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// applyFlags copies explicitly set run flags over the loaded config.
func applyFlags(cmd *cobra.Command, cfg *config.Config, rate float64, seed uint64, policy string) {
	if cmd.Flags().Changed("rate") {
		cfg.Contagion.InfectionRate = rate
	}
	if cmd.Flags().Changed("seed") {
		cfg.Simulation.Seed = seed
	}
	if policy != "" {
		cfg.Simulation.Policy = policy
	}
}
