package main

import (
	"context"
	"flag"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ryandielhenn/dtngossip/internal/config"
	"github.com/ryandielhenn/dtngossip/internal/experiment"
	"github.com/ryandielhenn/dtngossip/internal/logging"
	"github.com/ryandielhenn/dtngossip/pkg/sim"
)

func main() {
	n := flag.Int("n", 32, "simulations")
	conc := flag.Int("c", 8, "concurrency")
	agents := flag.Int("agents", 200, "agents per simulation")
	ticks := flag.Int("ticks", 500, "ticks per simulation")
	policy := flag.String("policy", config.PolicyContagion, "contagion | carryonly")
	flag.Parse()

	base := config.Defaults()
	base.Simulation.Agents = *agents
	base.Simulation.Duration = float64(*ticks) * base.Simulation.Delta
	base.Simulation.Policy = *policy
	base.Contagion.ImmuneDuration = 2000

	logger, err := logging.New(base.Logger)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	start := time.Now()
	res, err := bench(base, *n, *conc, logger)
	if err != nil {
		logger.Fatal("bench failed", zap.Error(err))
	}
	dur := time.Since(start)
	fmt.Printf("Completed %d ticks of %d agents in %s (%.2f ticks/s, %.2f agent-steps/s, %d messages sent)\n",
		res.ticks, *agents, dur,
		float64(res.ticks)/dur.Seconds(),
		float64(res.ticks)*float64(*agents)/dur.Seconds(),
		res.tx)
}

type result struct {
	ticks uint64
	tx    uint64
}

// bench runs n copies of base, conc at a time, each with seed i+1.
// The first failing simulation is logged and returned.
func bench(base *config.Config, n, conc int, logger *zap.Logger) (result, error) {
	if err := config.Validate(base); err != nil {
		return result{}, err
	}
	if conc <= 0 {
		return result{}, fmt.Errorf("%w: concurrency must be positive", sim.ErrBadConfig)
	}

	var (
		wg       sync.WaitGroup
		stepped  atomic.Uint64
		tx       atomic.Uint64
		errOnce  sync.Once
		firstErr error
	)
	ch := make(chan int, conc)

	for i := 0; i < n; i++ {
		wg.Add(1)
		ch <- 1
		go func(i int) {
			defer wg.Done()
			defer func() { <-ch }()

			cfg := *base
			cfg.Simulation.Seed = uint64(i + 1)
			err := func() error {
				s, err := experiment.Build(&cfg, sim.NullMonitor{}, nil)
				if err != nil {
					return err
				}
				if err := s.Run(context.Background(), cfg.Simulation.Duration); err != nil {
					return err
				}
				snap := s.Snapshot()
				stepped.Add(snap.Ticks)
				tx.Add(snap.Tx)
				return nil
			}()
			if err != nil {
				logger.Error("simulation failed", zap.Uint64("seed", cfg.Simulation.Seed), zap.Error(err))
				errOnce.Do(func() { firstErr = err })
			}
		}(i)
	}
	wg.Wait()
	if firstErr != nil {
		return result{}, firstErr
	}
	return result{ticks: stepped.Load(), tx: tx.Load()}, nil
}
