package convergence

import (
	"time"

	"go.uber.org/zap"
)

// Round is one scored sampling round. Sets are not retained: only the
// scalar score and per-replica sizes survive the round.
type Round struct {
	Timestamp time.Time
	Iteration int
	Score     float64
	Replicas  int
	SetSizes  []int
}

// Tracker accumulates the convergence time series across rounds. Reaching
// a score of exactly 1.0 is recorded and logged but never stops anything;
// the orchestrator owns termination.
type Tracker struct {
	log       *zap.Logger
	rounds    []Round
	converged bool
	firstFull int // iteration of the first fully converged round, -1 if none
}

func NewTracker(log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{log: log, firstFull: -1}
}

// Observe scores the given replica sets and appends a round record.
func (t *Tracker) Observe(at time.Time, sets []Set) Round {
	sizes := make([]int, len(sets))
	for i, s := range sets {
		sizes[i] = s.Len()
	}
	r := Round{
		Timestamp: at,
		Iteration: len(t.rounds),
		Score:     Index(sets),
		Replicas:  len(sets),
		SetSizes:  sizes,
	}
	t.rounds = append(t.rounds, r)

	t.log.Info("convergence round",
		zap.Int("iteration", r.Iteration),
		zap.Float64("score", r.Score),
		zap.Int("replicas", r.Replicas))
	if r.Score == 1.0 && !t.converged {
		t.converged = true
		t.firstFull = r.Iteration
		t.log.Info("replicas fully converged", zap.Int("iteration", r.Iteration))
	} else if r.Score != 1.0 {
		// divergence can reappear when new deltas are injected
		t.converged = false
	}
	return r
}

// Converged reports whether the most recent round scored exactly 1.0.
func (t *Tracker) Converged() bool {
	return t.converged
}

// FirstConvergedIteration returns the iteration at which full convergence
// was first observed, or -1.
func (t *Tracker) FirstConvergedIteration() int {
	return t.firstFull
}

func (t *Tracker) Rounds() []Round {
	return t.rounds
}
