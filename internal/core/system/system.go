package system

import (
	"fmt"
	"time"
)

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput     Phase = iota // 0: accept peers, drain packet queues
	PhasePreUpdate              // 1: deliver last tick's lifecycle events
	PhaseUpdate                 // 2: scripts
	PhaseOutput                 // 3: flush peer output
	PhasePersist                // 4: journal flush + snapshot
	PhaseCleanup                // 5: index audit
)

var phaseNames = [...]string{"input", "pre-update", "update", "output", "persist", "cleanup"}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// System is the interface every tick system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
