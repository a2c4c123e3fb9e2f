package spacecore

import (
	"fmt"
	"time"
)

// WarpError defines the rejected time warp requests. The warp factor is left
// unchanged on error.
type WarpError uint8

// The possible warp errors.
const (
	ErrUnsafeContext WarpError = iota + 1
	ErrUnknownWarpFactor
)

func (e WarpError) Error() string {
	switch e {
	case ErrUnsafeContext:
		return "warp unsafe in a physics sensitive context"
	case ErrUnknownWarpFactor:
		return "warp factor is not on the ladder"
	}
	return "unknown warp error"
}

// PropagationRegime selects how vehicle state is advanced for a step.
type PropagationRegime uint8

// The possible propagation regimes.
const (
	// RegimeIntegrated advances state numerically. Required during thrust,
	// atmospheric flight and close maneuvering, and always at warp 1.
	RegimeIntegrated PropagationRegime = iota + 1
	// RegimeOnRails advances state by closed form Keplerian propagation.
	// Cheap and exact for an unpowered coast, invalid the instant thrust is
	// applied or an SOI boundary is crossed.
	RegimeOnRails
)

func (r PropagationRegime) String() string {
	switch r {
	case RegimeIntegrated:
		return "integrated"
	case RegimeOnRails:
		return "on-rails"
	}
	return "unknown"
}

// WarpContext captures the physics sensitive conditions sampled from the
// previous committed step for the active vehicle.
type WarpContext struct {
	Thrusting    bool
	InAtmosphere bool
	NearVehicle  bool
}

func (ctx WarpContext) unsafe() bool {
	return ctx.Thrusting || ctx.InAtmosphere || ctx.NearVehicle
}

// SimulationClock tracks monotonically increasing simulated time, the current
// warp factor and the active propagation regime.
type SimulationClock struct {
	epoch  time.Time
	factor int
	regime PropagationRegime
	ladder []int
}

// NewSimulationClock returns a real time clock starting at the given epoch,
// with the warp ladder from the configuration.
func NewSimulationClock(start time.Time) *SimulationClock {
	ladder := simConfig().WarpLadder
	if len(ladder) == 0 || ladder[0] != 1 {
		panic(fmt.Errorf("warp ladder must start at factor 1, got %v", ladder))
	}
	return &SimulationClock{epoch: start.UTC(), factor: 1, regime: RegimeIntegrated, ladder: ladder}
}

// Epoch returns the current simulated time.
func (c *SimulationClock) Epoch() time.Time { return c.epoch }

// WarpFactor returns the current warp factor.
func (c *SimulationClock) WarpFactor() int { return c.factor }

// Regime returns the propagation regime of the last committed step.
func (c *SimulationClock) Regime() PropagationRegime { return c.regime }

// Ladder returns the allowed warp factors.
func (c *SimulationClock) Ladder() []int { return c.ladder }

// Advance moves simulated time forward by the warped step. Simulated time
// only ever increases.
func (c *SimulationClock) Advance(dt time.Duration) {
	if dt <= 0 {
		return
	}
	c.epoch = c.epoch.Add(dt * time.Duration(c.factor))
}

// RequestFactor applies a warp change. A factor above 1 is rejected with
// ErrUnsafeContext when the sampled context is physics sensitive; dropping
// back to warp 1 is always legal and immediate.
func (c *SimulationClock) RequestFactor(factor int, ctx WarpContext) error {
	if factor == 1 {
		c.factor = 1
		c.regime = RegimeIntegrated
		return nil
	}
	onLadder := false
	for _, allowed := range c.ladder {
		if factor == allowed {
			onLadder = true
			break
		}
	}
	if !onLadder {
		return ErrUnknownWarpFactor
	}
	if ctx.unsafe() {
		return ErrUnsafeContext
	}
	c.factor = factor
	c.regime = RegimeOnRails
	return nil
}
