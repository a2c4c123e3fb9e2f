package spacecore

import (
	"os"
	"sync"
	"time"

	kitlog "github.com/go-kit/kit/log"
)

// Command is the per-vehicle input batch sampled at a step boundary. Nil
// pointer fields leave the corresponding setting untouched.
type Command struct {
	Throttle     *float64
	Attitude     *Quaternion
	StageAdvance bool
	WarpRequest  *int
}

// Snapshot is the read-only vehicle state committed at the end of a step.
// Consumers (rendering, UI, replication) only ever see these.
type Snapshot struct {
	Name          string
	Epoch         time.Time
	R, V          []float64
	Attitude      Quaternion
	Body          string
	Stage         int
	FuelRemaining float64
	Flagged       bool
}

// Simulation drives all tracked vehicles along a single logical timeline.
// One Step advances every vehicle deterministically; vehicles propagate in
// parallel within a step but are joined before the step commits, so no
// vehicle ever observes another's mid-step state.
type Simulation struct {
	registry *BodyRegistry
	clock    *SimulationClock
	vehicles []*Vehicle
	byName   map[string]*Vehicle
	prev     map[string]Snapshot
	history  chan State
	histWG   sync.WaitGroup
	logger   kitlog.Logger
}

// NewSimulation returns a simulation over the given registry starting at the
// provided epoch. If the export configuration is not useless, every
// integrated sub-step state is streamed to disk.
func NewSimulation(registry *BodyRegistry, start time.Time, conf ExportConfig) *Simulation {
	klog := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	klog = kitlog.With(klog, "subsys", "sim")
	s := &Simulation{
		registry: registry,
		clock:    NewSimulationClock(start),
		byName:   make(map[string]*Vehicle),
		prev:     make(map[string]Snapshot),
		logger:   klog,
	}
	if !conf.IsUseless() {
		s.history = make(chan State, 1000) // a 1k entry buffer
		s.histWG.Add(1)
		go func() {
			defer s.histWG.Done()
			StreamStates(conf, s.history)
		}()
	}
	return s
}

// Clock returns the simulation clock.
func (s *Simulation) Clock() *SimulationClock { return s.clock }

// Registry returns the celestial body registry of this simulation.
func (s *Simulation) Registry() *BodyRegistry { return s.registry }

// Track adds a vehicle to the timeline. Its kinematic state must already be
// expressed in the frame of its current reference body.
func (s *Simulation) Track(v *Vehicle) {
	s.vehicles = append(s.vehicles, v)
	s.byName[v.Name] = v
	s.prev[v.Name] = s.snapshot(v)
}

// Close flushes and closes the export stream, if any.
func (s *Simulation) Close() {
	if s.history != nil {
		close(s.history)
		s.histWG.Wait()
		s.history = nil
	}
}

func (s *Simulation) snapshot(v *Vehicle) Snapshot {
	return Snapshot{
		Name:          v.Name,
		Epoch:         s.clock.Epoch(),
		R:             append([]float64{}, v.R...),
		V:             append([]float64{}, v.V...),
		Attitude:      v.Attitude,
		Body:          v.Body.Name,
		Stage:         v.Stage(),
		FuelRemaining: v.Aggregate().Fuel,
		Flagged:       v.Flagged(),
	}
}

// warpContext samples the physics sensitive conditions from the previous
// committed step, never from in-progress state. Warp skips integrated steps
// for the whole timeline, so a burn on any tracked vehicle blocks it, not
// just one on the requesting vehicle.
func (s *Simulation) warpContext(v *Vehicle) WarpContext {
	ctx := WarpContext{}
	for _, tracked := range s.vehicles {
		if tracked.Throttle > 0 {
			ctx.Thrusting = true
			break
		}
	}
	last, found := s.prev[v.Name]
	if !found {
		return ctx
	}
	// The altitude test uses the snapshot's own body: the vehicle may have
	// rebased since that snapshot was committed.
	if body, err := s.registry.Body(last.Body); err == nil {
		if alt := norm(last.R) - body.Radius; alt < body.atmosAlt {
			ctx.InAtmosphere = true
		}
	}
	proximity := simConfig().ProximityKm
	for name, other := range s.prev {
		if name == v.Name || other.Body != last.Body {
			continue
		}
		if norm(sub(last.R, other.R)) < proximity {
			ctx.NearVehicle = true
			break
		}
	}
	return ctx
}

// Step advances the whole simulation by one wall step of dt, warped by the
// current factor. Commands are applied atomically at the boundary before any
// integration runs, and are either fully applied or rejected outright. The
// returned snapshots are the committed state; per-vehicle command and
// propagation errors are reported in the second return value.
func (s *Simulation) Step(dt time.Duration, commands map[string]Command) (map[string]Snapshot, map[string]error) {
	stepErrs := make(map[string]error)

	// Apply the command batch at the boundary.
	for name, cmd := range commands {
		v, tracked := s.byName[name]
		if !tracked {
			continue
		}
		if cmd.Throttle != nil {
			v.Throttle = *cmd.Throttle
			if v.Throttle > 0 && s.clock.WarpFactor() > 1 {
				// Thrust invalidates on-rails: drop to real time, always legal.
				s.clock.RequestFactor(1, WarpContext{})
				s.logger.Log("level", "info", "vehicle", name, "warp", 1, "reason", "thrust")
			}
		}
		if cmd.Attitude != nil {
			v.Attitude = cmd.Attitude.Normalized()
		}
		if cmd.StageAdvance {
			if err := v.AdvanceStage(); err != nil {
				stepErrs[name] = err
			}
		}
		if cmd.WarpRequest != nil {
			if err := s.clock.RequestFactor(*cmd.WarpRequest, s.warpContext(v)); err != nil {
				stepErrs[name] = err
				s.logger.Log("level", "warning", "vehicle", name, "warp", *cmd.WarpRequest, "rejected", err.Error())
			}
		}
	}

	simDt := dt * time.Duration(s.clock.WarpFactor())
	regime := RegimeIntegrated
	if s.clock.WarpFactor() > 1 {
		regime = RegimeOnRails
	}

	// Propagate independent vehicles in parallel; the barrier commits the step.
	var wg sync.WaitGroup
	var errMutex sync.Mutex
	epoch := s.clock.Epoch()
	for _, v := range s.vehicles {
		wg.Add(1)
		go func(v *Vehicle) {
			defer wg.Done()
			vRegime := regime
			if v.Throttle > 0 {
				vRegime = RegimeIntegrated
			}
			if err := PropagateVehicle(v, epoch, simDt, vRegime, s.history); err != nil {
				errMutex.Lock()
				stepErrs[v.Name] = err
				errMutex.Unlock()
				s.logger.Log("level", "critical", "vehicle", v.Name, "err", err.Error())
			}
		}(v)
	}
	wg.Wait()

	s.clock.Advance(dt)
	snapshots := make(map[string]Snapshot, len(s.vehicles))
	for _, v := range s.vehicles {
		snapshots[v.Name] = s.snapshot(v)
	}
	s.prev = snapshots
	return snapshots, stepErrs
}
