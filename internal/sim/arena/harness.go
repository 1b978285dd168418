package arena

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/crownfall/internal/sim/combat"
	"github.com/cory-johannsen/crownfall/internal/sim/profile"
	"github.com/cory-johannsen/crownfall/internal/sim/rng"
)

// Harness runs batches of independent simulations. Runs are fanned out
// across workers, but each run's seed is derived from its run index and the
// fold walks results in run order, so worker count never changes the
// statistics.
type Harness struct {
	registry *profile.Registry
	tuning   combat.Tuning
	workers  int
	logger   *zap.Logger
}

// NewHarness creates a harness over the given unit registry and engine
// tuning. workers <= 0 selects one worker per CPU; a nil logger disables
// logging.
//
// Postcondition: Returns a harness ready for RunBatch, or a non-nil error
// if tuning does not validate.
func NewHarness(reg *profile.Registry, tuning combat.Tuning, workers int, logger *zap.Logger) (*Harness, error) {
	if reg == nil {
		return nil, fmt.Errorf("arena: registry must be non-nil")
	}
	if err := tuning.Validate(); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Harness{registry: reg, tuning: tuning, workers: workers, logger: logger}, nil
}

// RunBatch simulates the scenario runs times and folds the outcomes into
// batch statistics. Identical (scenario, runs, seed) inputs always produce
// bit-identical statistics regardless of worker count.
//
// Cancelling ctx stops scheduling further runs; runs already started finish
// and the result is marked Partial. A run failure (a simulation invariant
// panic, which should be unreachable) aborts the batch the same way and is
// returned as the error, so partial aggregates are never silently wrong.
//
// Precondition: scenario must be non-nil; runs must be >= 1.
// Postcondition: Returns statistics over the completed runs, plus the first
// run error or the context error if the batch stopped early.
func (h *Harness) RunBatch(ctx context.Context, scenario *Scenario, runs int, seed uint64) (*BatchStatistics, error) {
	if scenario == nil {
		return nil, fmt.Errorf("arena: scenario must be non-nil")
	}
	if err := scenario.Validate(h.registry); err != nil {
		return nil, err
	}
	if runs < 1 {
		return nil, fmt.Errorf("arena: runs must be >= 1, got %d", runs)
	}

	h.logger.Info("starting arena batch",
		zap.String("scenario", scenario.Name),
		zap.Int("runs", runs),
		zap.Uint64("seed", seed),
		zap.Int("workers", h.workers),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]*runResult, runs)
	jobs := make(chan int)

	var (
		errOnce  sync.Once
		firstErr error
	)
	abort := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	var wg sync.WaitGroup
	for w := 0; w < h.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := h.runOne(scenario, seed, i)
				if err != nil {
					abort(err)
					return
				}
				results[i] = res
			}
		}()
	}

scheduling:
	for i := 0; i < runs; i++ {
		select {
		case <-runCtx.Done():
			break scheduling
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	stats := foldResults(scenario, runs, results)

	h.logger.Info("arena batch complete",
		zap.String("scenario", scenario.Name),
		zap.Int("completed", stats.Completed),
		zap.Bool("partial", stats.Partial),
		zap.Float64("attacker_win_rate", stats.AttackerWinRate),
		zap.Float64("defender_win_rate", stats.DefenderWinRate),
		zap.Float64("draw_rate", stats.DrawRate),
		zap.Float64("avg_duration_ticks", stats.AvgDurationTicks),
	)
	if stats.Completed > 0 && stats.DrawRate >= 0.5 {
		// Draw-heavy batches usually mean the tuning cannot break a
		// stalemate between these compositions.
		h.logger.Warn("draw-heavy batch",
			zap.String("scenario", scenario.Name),
			zap.Float64("draw_rate", stats.DrawRate),
		)
	}

	if firstErr != nil {
		return stats, firstErr
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}

// RunDetailed simulates the scenario once with the given seed and returns
// the full combat records of every pairing, in the order the pairings
// ended. Used for archiving representative battles; RunBatch keeps only
// aggregates.
//
// Precondition: scenario must be non-nil and valid.
func (h *Harness) RunDetailed(scenario *Scenario, seed uint64) ([]*combat.DetailedCombatRecord, error) {
	if scenario == nil {
		return nil, fmt.Errorf("arena: scenario must be non-nil")
	}
	if err := scenario.Validate(h.registry); err != nil {
		return nil, err
	}

	src := rng.NewSeeded(rng.DeriveSeed(seed, 0))
	sc, err := combat.NewStackCombat(scenario.site(), h.registry,
		scenario.attackerGroups(), scenario.defenderGroups(), h.tuning)
	if err != nil {
		return nil, err
	}
	for !sc.IsEnded() {
		sc.Tick(src)
	}

	h.logger.Info("detailed run complete",
		zap.String("scenario", scenario.Name),
		zap.Uint64("seed", seed),
		zap.Stringer("winner", sc.Winner()),
		zap.Int("ticks", sc.ElapsedTicks()),
	)
	return sc.Records(), nil
}

// runOne simulates a single run. Engine invariant panics are converted to
// errors here so one bad run aborts the batch instead of crashing it.
func (h *Harness) runOne(scenario *Scenario, seed uint64, run int) (res *runResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("arena: run %d: invariant failure: %v", run, r)
		}
	}()

	src := rng.NewSeeded(rng.DeriveSeed(seed, run))

	attackers := scenario.attackerGroups()
	defenders := scenario.defenderGroups()
	atkInitial := sideInitial(attackers)
	defInitial := sideInitial(defenders)

	sc, err := combat.NewStackCombat(scenario.site(), h.registry, attackers, defenders, h.tuning)
	if err != nil {
		return nil, fmt.Errorf("arena: run %d: %w", run, err)
	}
	for !sc.IsEnded() {
		sc.Tick(src)
	}

	atkSurvivors := sideInitial(attackers)
	defSurvivors := sideInitial(defenders)
	return &runResult{
		winner:        sc.Winner(),
		durationTicks: sc.ElapsedTicks(),
		atkCasualties: totalUnits(atkInitial) - totalUnits(atkSurvivors),
		defCasualties: totalUnits(defInitial) - totalUnits(defSurvivors),
		atkSurvivors:  atkSurvivors,
		defSurvivors:  defSurvivors,
	}, nil
}
