package execution

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"qad/internal/config"
	"qad/internal/domain"
)

// ErrOutcomesExhausted is returned by a SequenceOracle that has no outcomes left.
var ErrOutcomesExhausted = errors.New("outcome sequence exhausted")

// OutcomeOracle decides whether a run passed
type OutcomeOracle interface {
	Decide(ctx context.Context, run domain.ScheduledRun) (bool, error)
}

// OracleFunc adapts a function to OutcomeOracle.
type OracleFunc func(ctx context.Context, run domain.ScheduledRun) (bool, error)

// Decide calls f
func (f OracleFunc) Decide(ctx context.Context, run domain.ScheduledRun) (bool, error) {
	return f(ctx, run)
}

// NewOracle returns the oracle selected by cfg.Engine.Oracle.
func NewOracle(cfg *config.Config) OutcomeOracle {
	if cfg.Engine.Oracle == config.OracleCommand {
		return NewCommandOracle(cfg)
	}
	return NewRandomOracle(cfg.Engine.Seed)
}

// RandomOracle passes or fails runs with equal probability.
type RandomOracle struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomOracle seeds the oracle; a zero seed uses the current time.
func NewRandomOracle(seed int64) *RandomOracle {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomOracle{rng: rand.New(rand.NewSource(seed))}
}

// Decide returns a coin flip
func (o *RandomOracle) Decide(_ context.Context, _ domain.ScheduledRun) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rng.Intn(2) == 1, nil
}

// SequenceOracle replays a fixed list of outcomes in order.
type SequenceOracle struct {
	mu       sync.Mutex
	outcomes []bool
	pos      int
}

// NewSequenceOracle returns an oracle yielding outcomes one per call.
func NewSequenceOracle(outcomes ...bool) *SequenceOracle {
	return &SequenceOracle{outcomes: outcomes}
}

// Decide returns the next outcome or ErrOutcomesExhausted.
func (o *SequenceOracle) Decide(_ context.Context, _ domain.ScheduledRun) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pos >= len(o.outcomes) {
		return false, ErrOutcomesExhausted
	}
	passed := o.outcomes[o.pos]
	o.pos++
	return passed, nil
}
