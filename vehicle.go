package spacecore

import (
	"fmt"
	"os"

	kitlog "github.com/go-kit/kit/log"
)

const (
	// g0 is the standard gravity in m/s^2, used for the thrust to fuel flow relation.
	g0 = 9.80665
)

// GraphError defines the structural vehicle graph violations. A rejected
// mutation leaves the graph untouched.
type GraphError uint8

// The possible graph errors.
const (
	ErrCycleDetected GraphError = iota + 1
	ErrUnknownParent
	ErrUnknownPart
	ErrDuplicatePart
	ErrRootDetach
)

func (e GraphError) Error() string {
	switch e {
	case ErrCycleDetected:
		return "attachment would create a cycle"
	case ErrUnknownParent:
		return "unknown parent part"
	case ErrUnknownPart:
		return "unknown part"
	case ErrDuplicatePart:
		return "part already attached"
	case ErrRootDetach:
		return "cannot detach the command root"
	}
	return "unknown graph error"
}

// PartStatus defines the lifecycle of a part within its vehicle.
type PartStatus uint8

// The possible part statuses.
const (
	PartInactive PartStatus = iota
	PartActive
	PartDetached
)

func (s PartStatus) String() string {
	switch s {
	case PartInactive:
		return "inactive"
	case PartActive:
		return "active"
	case PartDetached:
		return "detached"
	}
	return "unknown"
}

// Part defines one element of a vehicle: a tank, an engine, a decoupler, or
// any combination thereof. A part with no thrust is inert mass, a part with
// no fuel capacity is a pure engine or structure. Parts are owned exclusively
// by their vehicle and referenced by id, never by pointer, so that cycle
// checks are walks over ids.
type Part struct {
	ID           string
	DryMass      float64 // kg
	Fuel         float64 // kg, current
	FuelCapacity float64 // kg
	Thrust       float64 // N, at full throttle
	Isp          float64 // s
	Stage        int     // activation stage index, negative for unstaged parts
	status       PartStatus
	parent       string
	children     []string
}

// Status returns the current lifecycle status of this part.
func (p *Part) Status() PartStatus { return p.status }

// Mass returns the current total mass of the part in kg.
func (p *Part) Mass() float64 { return p.DryMass + p.Fuel }

// fuelFlow returns the fuel mass flow in kg/s at full throttle.
func (p *Part) fuelFlow() float64 {
	if p.Thrust == 0 || p.Isp == 0 {
		return 0
	}
	return p.Thrust / (p.Isp * g0)
}

// Aggregate holds the cached vehicle totals consumed by the propagator.
type Aggregate struct {
	Mass     float64 // kg, dry + fuel over all attached parts
	Fuel     float64 // kg, over attached active-or-pending parts
	Thrust   float64 // N, over active parts
	FuelFlow float64 // kg/s at full throttle, over active parts
	Isp      float64 // s, thrust weighted over active parts
}

// Vehicle is a connected tree of parts with kinematic state expressed in the
// frame of its current reference body. All mutations go through the graph and
// staging methods, which keep the cached aggregate consistent.
type Vehicle struct {
	Name      string
	parts     map[string]*Part
	order     []string // insertion order, for deterministic iteration
	rootID    string
	stage     int
	maxStage  int
	autoStage bool

	// Kinematic state, current body frame.
	R, V     []float64
	Attitude Quaternion
	AngVel   []float64
	Body     *CelestialObject
	Throttle float64

	agg      Aggregate
	aggDirty bool
	flagged  bool
	logger   kitlog.Logger
}

// NewVehicle returns a vehicle built around the provided command root part.
// The root is never staged away and is active from the start.
func NewVehicle(name string, root Part) *Vehicle {
	klog := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	klog = kitlog.With(klog, "vehicle", name)
	root.Stage = -1
	root.status = PartActive
	root.parent = ""
	root.children = nil
	v := &Vehicle{
		Name:      name,
		parts:     map[string]*Part{root.ID: &root},
		order:     []string{root.ID},
		rootID:    root.ID,
		stage:     0,
		maxStage:  -1,
		autoStage: simConfig().AutoStage,
		R:         []float64{0, 0, 0},
		V:         []float64{0, 0, 0},
		Attitude:  IdentityQuaternion(),
		AngVel:    []float64{0, 0, 0},
		aggDirty:  true,
		logger:    klog,
	}
	return v
}

// SetLogger replaces the vehicle logger (tests and embedding consumers).
func (v *Vehicle) SetLogger(l kitlog.Logger) { v.logger = l }

// SetAutoStage overrides the configured auto-stage policy for this vehicle.
func (v *Vehicle) SetAutoStage(enabled bool) { v.autoStage = enabled }

// Root returns the command root part.
func (v *Vehicle) Root() *Part { return v.parts[v.rootID] }

// Part returns the identified part, or nil.
func (v *Vehicle) Part(id string) *Part { return v.parts[id] }

// Stage returns the current stage index.
func (v *Vehicle) Stage() int { return v.stage }

// Flagged reports whether the last propagation step failed for this vehicle
// and its state was rolled back to the last known good one.
func (v *Vehicle) Flagged() bool { return v.flagged }

// Attach adds the part under the identified parent, or re-parents it if it is
// already part of the graph. Fails with ErrUnknownParent if the parent is
// absent, ErrCycleDetected if the attachment would create a cycle, and
// ErrDuplicatePart when inserting a part whose id is already taken.
func (v *Vehicle) Attach(part Part, parentID string) error {
	parent, found := v.parts[parentID]
	if !found || parent.status == PartDetached {
		return ErrUnknownParent
	}
	if existing, present := v.parts[part.ID]; present {
		if existing.status == PartDetached {
			return ErrDuplicatePart
		}
		return v.reparent(existing, parent)
	}
	p := part
	if p.Stage >= 0 && p.Stage == v.stage {
		p.status = PartActive
	} else {
		p.status = PartInactive
	}
	p.parent = parentID
	p.children = nil
	v.parts[p.ID] = &p
	v.order = append(v.order, p.ID)
	parent.children = append(parent.children, p.ID)
	if p.Stage > v.maxStage {
		v.maxStage = p.Stage
	}
	v.invalidate()
	return nil
}

// reparent moves an existing part (and its subtree) under a new parent. The
// cycle check is an O(depth) walk over ids from the new parent to the root.
func (v *Vehicle) reparent(part, parent *Part) error {
	if part.ID == v.rootID {
		return ErrCycleDetected // the root cannot hang off its own descendants
	}
	for cursor := parent; cursor != nil; cursor = v.parts[cursor.parent] {
		if cursor.ID == part.ID {
			return ErrCycleDetected
		}
		if cursor.parent == "" {
			break
		}
	}
	old := v.parts[part.parent]
	old.children = removeID(old.children, part.ID)
	part.parent = parent.ID
	parent.children = append(parent.children, part.ID)
	v.invalidate()
	return nil
}

// Detach removes the identified part and its whole subtree from the vehicle.
// Fails with ErrRootDetach for the command root and ErrUnknownPart otherwise.
func (v *Vehicle) Detach(id string) error {
	part, found := v.parts[id]
	if !found || part.status == PartDetached {
		return ErrUnknownPart
	}
	if id == v.rootID {
		return ErrRootDetach
	}
	parent := v.parts[part.parent]
	parent.children = removeID(parent.children, id)
	v.markDetached(part)
	v.invalidate()
	return nil
}

func (v *Vehicle) markDetached(part *Part) {
	part.status = PartDetached
	for _, child := range part.children {
		v.markDetached(v.parts[child])
	}
}

func removeID(ids []string, id string) []string {
	for i, candidate := range ids {
		if candidate == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// invalidate marks the cached aggregate dirty. Called by every mutation.
func (v *Vehicle) invalidate() { v.aggDirty = true }

// Aggregate returns the cached vehicle totals, recomputed on first access
// after any mutation of the part graph or fuel state.
func (v *Vehicle) Aggregate() Aggregate {
	if !v.aggDirty {
		return v.agg
	}
	var agg Aggregate
	var flowOverIsp float64
	for _, id := range v.order {
		p := v.parts[id]
		if p.status == PartDetached {
			continue
		}
		agg.Mass += p.Mass()
		agg.Fuel += p.Fuel
		if p.status == PartActive && p.Thrust > 0 {
			agg.Thrust += p.Thrust
			agg.FuelFlow += p.fuelFlow()
			flowOverIsp += p.Thrust / p.Isp
		}
	}
	if flowOverIsp > 0 {
		agg.Isp = agg.Thrust / flowOverIsp
	}
	v.agg = agg
	v.aggDirty = false
	return agg
}

// ActiveFuel returns the fuel mass currently drainable, over active parts
// only. Pending stages keep their fuel until activation.
func (v *Vehicle) ActiveFuel() float64 {
	var fuel float64
	for _, id := range v.order {
		if p := v.parts[id]; p.status == PartActive {
			fuel += p.Fuel
		}
	}
	return fuel
}

// ConsumeFuel drains the provided fuel mass proportionally from the active
// parts which still hold fuel. Returns the mass actually drained, which may
// be less than requested when the tanks run dry.
func (v *Vehicle) ConsumeFuel(mass float64) float64 {
	if mass <= 0 {
		return 0
	}
	var available float64
	for _, id := range v.order {
		p := v.parts[id]
		if p.status == PartActive && p.Fuel > 0 {
			available += p.Fuel
		}
	}
	if available == 0 {
		return 0
	}
	drained := mass
	if drained > available {
		drained = available
	}
	ratio := drained / available
	for _, id := range v.order {
		p := v.parts[id]
		if p.status == PartActive && p.Fuel > 0 {
			p.Fuel -= p.Fuel * ratio
			if p.Fuel < 0 {
				p.Fuel = 0
			}
		}
	}
	v.invalidate()
	return drained
}

// ThrustDirection returns the thrust unit vector in the current body frame:
// the vehicle +X axis rotated by its attitude.
func (v *Vehicle) ThrustDirection() []float64 {
	return v.Attitude.Normalized().Rotate([]float64{1, 0, 0})
}

// LogKV logs key value pairs through this vehicle's logger.
func (v *Vehicle) LogKV(keyvals ...interface{}) {
	v.logger.Log(keyvals...)
}

func (v *Vehicle) String() string {
	return fmt.Sprintf("%s [%d parts, stage %d]", v.Name, len(v.order), v.stage)
}
