package system

import (
	"time"

	coresys "github.com/l1jgo/gamefactory/internal/core/system"
	"github.com/l1jgo/gamefactory/internal/factory"
	"go.uber.org/zap"
)

// AuditSystem checks the registry's indexes every interval ticks and logs
// its counters. Phase 5 (Cleanup).
type AuditSystem struct {
	reg       *factory.Registry
	log       *zap.Logger
	tickCount int
	interval  int
	failures  int
}

func NewAuditSystem(reg *factory.Registry, intervalTicks int, log *zap.Logger) *AuditSystem {
	return &AuditSystem{reg: reg, interval: intervalTicks, log: log.With(zap.String("component", "audit"))}
}

func (s *AuditSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *AuditSystem) Update(_ time.Duration) {
	if s.interval <= 0 {
		return
	}
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0

	st := s.reg.Stats()
	if err := s.reg.Verify(); err != nil {
		s.failures++
		s.log.Error("registry index inconsistent", zap.Error(err))
		return
	}
	s.log.Debug("registry audit",
		zap.Int("live", st.Live),
		zap.Int("retired", st.Retired),
		zap.Int64("pending_reclaim", st.PendingReclaim),
		zap.Int("slots", st.SlotsHeld),
	)
}

// Failures returns how many audits found an inconsistency.
func (s *AuditSystem) Failures() int {
	return s.failures
}
