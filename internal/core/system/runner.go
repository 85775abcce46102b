package system

import (
	"sort"
	"time"

	"go.uber.org/zap"
)

// Runner executes systems in phase order each tick. Systems sharing a phase
// run in registration order. A full tick slower than the budget is logged
// with the slowest phase.
type Runner struct {
	systems []System
	sorted  bool
	budget  time.Duration
	overrun int
	log     *zap.Logger
}

// NewRunner builds a runner; a zero budget disables overrun reporting.
func NewRunner(budget time.Duration, log *zap.Logger) *Runner {
	return &Runner{
		systems: make([]System, 0, 8),
		budget:  budget,
		log:     log,
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

func (r *Runner) Tick(dt time.Duration) {
	r.ensureSorted()
	start := time.Now()
	var slowest Phase
	var slowestTook time.Duration
	for _, s := range r.systems {
		begin := time.Now()
		s.Update(dt)
		if took := time.Since(begin); took > slowestTook {
			slowest, slowestTook = s.Phase(), took
		}
	}
	if elapsed := time.Since(start); r.budget > 0 && elapsed > r.budget {
		r.overrun++
		r.log.Warn("tick over budget",
			zap.Duration("elapsed", elapsed),
			zap.Duration("budget", r.budget),
			zap.Stringer("slowest_phase", slowest),
			zap.Duration("slowest", slowestTook),
		)
	}
}

// TickPhase runs only the systems of one phase. The daemon polls
// PhaseInput between full ticks to keep announcement latency low.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	r.ensureSorted()
	for _, s := range r.systems {
		if s.Phase() == phase {
			s.Update(dt)
		}
	}
}

// Overruns returns how many full ticks exceeded the budget.
func (r *Runner) Overruns() int {
	return r.overrun
}

func (r *Runner) ensureSorted() {
	if r.sorted {
		return
	}
	sort.SliceStable(r.systems, func(i, j int) bool {
		return r.systems[i].Phase() < r.systems[j].Phase()
	})
	r.sorted = true
}
