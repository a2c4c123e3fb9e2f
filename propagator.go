package spacecore

import (
	"math"
	"time"

	"github.com/ChristopherRabotin/ode"
)

const (
	// StepSize is the default integrator sub-step.
	StepSize = 1 * time.Second
	// thrust2Acc converts N/kg (m/s^2) into km/s^2.
	thrust2Acc = 1e-3
)

// PropagationError defines the fatal propagation failures. The failing
// vehicle is rolled back to its last known good state and flagged; the rest
// of the step is unaffected.
type PropagationError uint8

// The possible propagation errors.
const (
	ErrNumericalInstability PropagationError = iota + 1
)

func (e PropagationError) Error() string {
	switch e {
	case ErrNumericalInstability:
		return "propagation produced non-finite state"
	}
	return "unknown propagation error"
}

// propagation advances one vehicle through one simulation step in the
// integrated regime. It implements the ode Integrable interface, mirroring
// the state vector layout [Rx Ry Rz Vx Vy Vz fuel].
type propagation struct {
	vehicle  *Vehicle
	epoch    time.Time // start of this step
	duration float64   // seconds to advance
	elapsed  float64
	step     float64
	unstable bool
	history  chan<- State
}

// newPropagation returns a step propagation clamped to sane sub-steps.
func newPropagation(v *Vehicle, epoch time.Time, dt time.Duration, history chan<- State) *propagation {
	step := StepSize.Seconds()
	if dt.Seconds() < step {
		step = dt.Seconds()
	}
	return &propagation{vehicle: v, epoch: epoch, duration: dt.Seconds(), step: step, history: history}
}

// GetState returns the integrator state from the vehicle. The fuel component
// is the active fuel: pending stages hold theirs until activation.
func (p *propagation) GetState() (s []float64) {
	s = make([]float64, 7)
	for i := 0; i < 3; i++ {
		s[i] = p.vehicle.R[i]
		s[i+3] = p.vehicle.V[i]
	}
	s[6] = p.vehicle.ActiveFuel()
	return
}

// SetState writes the integrated state back onto the vehicle.
func (p *propagation) SetState(t float64, s []float64) {
	for _, val := range s {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			p.unstable = true
			return
		}
	}
	v := p.vehicle
	prevFuel := v.ActiveFuel()
	v.R = []float64{s[0], s[1], s[2]}
	v.V = []float64{s[3], s[4], s[5]}
	if burned := prevFuel - s[6]; burned > 0 {
		v.ConsumeFuel(burned)
	}
	// Attitude integrates kinematically from the body rates.
	if w := norm(v.AngVel); w > 0 {
		v.Attitude = v.Attitude.Mul(NewQuaternionFromAxisAngle(v.AngVel, w*p.step)).Normalized()
	}
	p.elapsed += p.step
	if p.history != nil {
		p.history <- State{p.epoch.Add(time.Duration(p.elapsed * float64(time.Second))), v.Name, v.Body.Name, v.Stage(), v.R, v.V, v.Aggregate()}
	}
	// Auto-stage fires between sub-steps, never inside one.
	if v.autoStage && v.Throttle > 0 && v.ActiveFuel() <= fuelε && !v.TerminalStage() {
		if err := v.AdvanceStage(); err == nil {
			v.logger.Log("subsys", "staging", "auto", true, "stage", v.Stage())
		}
	}
}

// Stop implements the integrator stop condition.
func (p *propagation) Stop(t float64) bool {
	return p.unstable || p.elapsed >= p.duration-1e-9
}

// Func is the equation of motion: two body gravity of the current reference
// body plus thrust along the vehicle attitude, with the matching fuel flow.
func (p *propagation) Func(t float64, f []float64) (fDot []float64) {
	fDot = make([]float64, 7)
	v := p.vehicle
	r := norm(f[:3])
	bodyAcc := -v.Body.μ / math.Pow(r, 3)
	agg := v.Aggregate()
	var thrustAcc []float64
	var flow float64
	if v.Throttle > 0 && agg.Thrust > 0 && f[6] > 0 {
		mass := agg.Mass - (v.ActiveFuel() - f[6]) // account for fuel burned within this sub-step
		thrustAcc = vscale(v.Throttle*agg.Thrust*thrust2Acc/mass, v.ThrustDirection())
		flow = v.Throttle * agg.FuelFlow
	} else {
		thrustAcc = []float64{0, 0, 0}
	}
	// d\vec{R}/dt
	fDot[0] = f[3]
	fDot[1] = f[4]
	fDot[2] = f[5]
	// d\vec{V}/dt
	fDot[3] = bodyAcc*f[0] + thrustAcc[0]
	fDot[4] = bodyAcc*f[1] + thrustAcc[1]
	fDot[5] = bodyAcc*f[2] + thrustAcc[2]
	// d(fuel)/dt
	fDot[6] = -flow
	return
}

const fuelε = 1e-9 // kg, below this the tanks are considered dry

// vehicleSnapshot captures the rollback state before a step.
type vehicleSnapshot struct {
	R, V  []float64
	att   Quaternion
	fuels map[string]float64
}

func snapshotVehicle(v *Vehicle) vehicleSnapshot {
	snap := vehicleSnapshot{
		R:     append([]float64{}, v.R...),
		V:     append([]float64{}, v.V...),
		att:   v.Attitude,
		fuels: make(map[string]float64, len(v.order)),
	}
	for id, p := range v.parts {
		snap.fuels[id] = p.Fuel
	}
	return snap
}

func restoreVehicle(v *Vehicle, snap vehicleSnapshot) {
	v.R = append([]float64{}, snap.R...)
	v.V = append([]float64{}, snap.V...)
	v.Attitude = snap.att
	for id, fuel := range snap.fuels {
		if p, found := v.parts[id]; found {
			p.Fuel = fuel
		}
	}
	v.invalidate()
}

// PropagateVehicle advances one vehicle by dt of simulated time starting at
// the given epoch, in the provided regime. On numerical instability the
// vehicle is restored to its pre-step state and flagged, and the error is
// returned; the aggregate-mass and single-reference-body invariants hold on
// every exit path.
func PropagateVehicle(v *Vehicle, epoch time.Time, dt time.Duration, regime PropagationRegime, history chan<- State) error {
	snap := snapshotVehicle(v)
	switch regime {
	case RegimeOnRails:
		orbit := NewOrbitFromRV(v.R, v.V, v.Body)
		remaining := dt
		maxStep := time.Duration(simConfig().MaxOnRailsStep * float64(time.Second))
		for remaining > 0 {
			chunk := remaining
			if chunk > maxStep {
				chunk = maxStep
			}
			orbit.PropagateBy(chunk)
			remaining -= chunk
		}
		R, V := orbit.RV()
		if !finiteState(R, V) {
			restoreVehicle(v, snap)
			v.flagged = true
			return ErrNumericalInstability
		}
		v.R = R
		v.V = V
	default:
		prop := newPropagation(v, epoch, dt, history)
		ode.NewRK4(0, prop.step, prop).Solve()
		if prop.unstable || !finiteState(v.R, v.V) {
			restoreVehicle(v, snap)
			v.flagged = true
			return ErrNumericalInstability
		}
	}
	v.flagged = false
	checkSOITransition(v, epoch.Add(dt))
	return nil
}

func finiteState(R, V []float64) bool {
	for i := 0; i < 3; i++ {
		if math.IsNaN(R[i]) || math.IsInf(R[i], 0) || math.IsNaN(V[i]) || math.IsInf(V[i], 0) {
			return false
		}
	}
	return true
}

// checkSOITransition reassigns the vehicle's reference body when its position
// lies inside a different sphere of influence. Hysteresis: the vehicle must be
// strictly inside the new sphere (and strictly outside the old one, for an
// ascent) by the configured margin before switching, so a slow crossing does
// not thrash between bodies.
func checkSOITransition(v *Vehicle, dt time.Time) {
	margin := simConfig().SOIHysteresis
	for {
		current := v.Body
		switched := false
		// Ascent: past the current body's sphere, hand over to its parent.
		if current.parent != nil && norm(v.R) > current.soi*(1+margin) {
			v.Rebase(current.parent, dt)
			switched = true
		} else {
			// Descent: capture by a satellite of the current body.
			for _, sat := range current.satellites {
				satR, _ := sat.PositionVelocityAt(dt)
				if norm(sub(v.R, satR)) < sat.soi*(1-margin) {
					v.Rebase(sat, dt)
					switched = true
					break
				}
			}
		}
		if !switched {
			return
		}
	}
}
