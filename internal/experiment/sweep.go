package experiment

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/ryandielhenn/dtngossip/internal/config"
	"github.com/ryandielhenn/dtngossip/pkg/sim"
)

// Row summarises every trial run at one infection rate.
type Row struct {
	Rate        float64
	Trials      int
	PersistRate float64
	MeanPeak    float64
	StdDevPeak  float64
}

type Result struct {
	RunID string
	Rows  []Row
}

// Rates lists from, from+step, ... up to and including to.
func Rates(from, to, step float64) []float64 {
	if step <= 0 || to < from {
		return nil
	}
	n := int(math.Floor((to-from)/step+1e-9)) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Round((from+float64(i)*step)*1e9) / 1e9
	}
	return out
}

type trial struct {
	persisted bool
	peak      int
}

// Sweep runs cfg.Sweep.Trials simulations of cfg.Simulation.Duration for
// each infection rate in the sweep range. A trial persists if any agent is
// infected after (1 - tail) of the duration has elapsed; the trial stops as
// soon as that is seen. Trials run on cfg.Sweep.Workers goroutines and each
// gets its own seed derived from cfg.Simulation.Seed, so results do not
// depend on the worker count.
func Sweep(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	sc := cfg.Sweep
	rates := Rates(sc.From, sc.To, sc.Step)
	if len(rates) == 0 || sc.Trials <= 0 || sc.Workers <= 0 {
		return nil, fmt.Errorf("%w: empty sweep", sim.ErrBadConfig)
	}

	res := &Result{RunID: uuid.NewString()}
	log = log.With(zap.String("run_id", res.RunID))
	log.Info("sweep starting",
		zap.Int("rates", len(rates)),
		zap.Int("trials", sc.Trials),
		zap.Int("workers", sc.Workers))

	results := make([][]trial, len(rates))
	for i := range results {
		results[i] = make([]trial, sc.Trials)
	}

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sem := make(chan struct{}, sc.Workers)

loop:
	for i, rate := range rates {
		for j := range sc.Trials {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				break loop
			}
			wg.Add(1)
			go func(i, j int, rate float64) {
				defer wg.Done()
				defer func() { <-sem }()

				tc := *cfg
				tc.Contagion.InfectionRate = rate
				tc.Simulation.Seed = cfg.Simulation.Seed + uint64(i*sc.Trials+j)
				t, err := runTrial(ctx, &tc)
				if err != nil {
					errOnce.Do(func() {
						firstErr = fmt.Errorf("rate %g trial %d: %w", rate, j, err)
						cancel()
					})
					return
				}
				results[i][j] = t
			}(i, j, rate)
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	peaks := make([]float64, sc.Trials)
	for i, rate := range rates {
		persisted := 0
		for j, t := range results[i] {
			if t.persisted {
				persisted++
			}
			peaks[j] = float64(t.peak)
		}
		mean, std := stat.MeanStdDev(peaks, nil)
		if sc.Trials < 2 {
			std = 0
		}
		row := Row{
			Rate:        rate,
			Trials:      sc.Trials,
			PersistRate: float64(persisted) / float64(sc.Trials),
			MeanPeak:    mean,
			StdDevPeak:  std,
		}
		res.Rows = append(res.Rows, row)
		log.Info("rate done",
			zap.Float64("rate", rate),
			zap.Float64("persist", row.PersistRate),
			zap.Float64("mean_peak", mean))
	}
	return res, nil
}

func runTrial(ctx context.Context, cfg *config.Config) (trial, error) {
	stats := sim.NewStats()
	s, err := Build(cfg, stats, nil)
	if err != nil {
		return trial{}, err
	}
	end := cfg.Simulation.Duration
	threshold := end * (1 - cfg.Sweep.Tail)

	var t trial
	err = s.RunWhile(ctx, end, func(snap sim.Snapshot) bool {
		if snap.Time > threshold && snap.Infected > 0 {
			t.persisted = true
			return false
		}
		return true
	})
	if err != nil {
		return trial{}, err
	}
	t.peak = stats.PeakInfected()
	return t, nil
}

// WriteCSV writes a header and one record per rate.
func (r *Result) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"run_id", "rate", "trials", "persist_rate", "mean_peak", "stddev_peak"}); err != nil {
		return err
	}
	for _, row := range r.Rows {
		rec := []string{
			r.RunID,
			strconv.FormatFloat(row.Rate, 'g', -1, 64),
			strconv.Itoa(row.Trials),
			strconv.FormatFloat(row.PersistRate, 'g', -1, 64),
			strconv.FormatFloat(row.MeanPeak, 'f', 3, 64),
			strconv.FormatFloat(row.StdDevPeak, 'f', 3, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
