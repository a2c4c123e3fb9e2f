package spacecore

import (
	"errors"
	"testing"
	"time"
)

func newTestSimulation(t *testing.T) (*Simulation, *Vehicle) {
	registry := NewSolarSystem()
	earth := registry.MustBody("Earth")
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sim := NewSimulation(registry, start, ExportConfig{})
	v := newOrbitingVehicle("kestrel-1", earth)
	sim.Track(v)
	return sim, v
}

func TestStepCoast(t *testing.T) {
	sim, v := newTestSimulation(t)
	start := sim.Clock().Epoch()
	R0 := append([]float64{}, v.R...)
	snapshots, stepErrs := sim.Step(time.Second, nil)
	if len(stepErrs) != 0 {
		t.Fatalf("coast step errors: %v", stepErrs)
	}
	snap, found := snapshots[v.Name]
	if !found {
		t.Fatal("missing snapshot for tracked vehicle")
	}
	if !snap.Epoch.Equal(start.Add(time.Second)) {
		t.Fatalf("snapshot epoch = %s", snap.Epoch)
	}
	if vectorsEqual(snap.R, R0, 1e-12) {
		t.Fatal("one second of coast must move the vehicle")
	}
	if snap.Flagged {
		t.Fatal("clean step must not flag")
	}
	if snap.Body != "Earth" || snap.Stage != 0 {
		t.Fatalf("snapshot %+v", snap)
	}
}

func TestCommandBatchAtBoundary(t *testing.T) {
	sim, v := newTestSimulation(t)
	throttle := 0.5
	attitude := NewQuaternionFromAxisAngle([]float64{0, 0, 1}, 0.3)
	snapshots, stepErrs := sim.Step(time.Second, map[string]Command{
		v.Name: {Throttle: &throttle, Attitude: &attitude},
	})
	if len(stepErrs) != 0 {
		t.Fatalf("command step errors: %v", stepErrs)
	}
	if v.Throttle != 0.5 {
		t.Fatalf("throttle = %f", v.Throttle)
	}
	snap := snapshots[v.Name]
	if snap.FuelRemaining >= 100 {
		t.Fatalf("half throttle burned nothing, fuel = %f", snap.FuelRemaining)
	}
	// Commands for untracked vehicles are ignored, not errors.
	_, stepErrs = sim.Step(time.Second, map[string]Command{"ghost": {StageAdvance: true}})
	if len(stepErrs) != 0 {
		t.Fatalf("untracked command errors: %v", stepErrs)
	}
}

func TestWarpRejectedMidBurn(t *testing.T) {
	sim, v := newTestSimulation(t)
	throttle := 1.0
	warp := 100
	_, stepErrs := sim.Step(time.Second, map[string]Command{
		v.Name: {Throttle: &throttle, WarpRequest: &warp},
	})
	if !errors.Is(stepErrs[v.Name], ErrUnsafeContext) {
		t.Fatalf("expected ErrUnsafeContext, got %v", stepErrs[v.Name])
	}
	if sim.Clock().WarpFactor() != 1 {
		t.Fatalf("factor = %d after a rejected warp", sim.Clock().WarpFactor())
	}
}

func TestWarpCoast(t *testing.T) {
	sim, v := newTestSimulation(t)
	start := sim.Clock().Epoch()
	warp := 100
	_, stepErrs := sim.Step(time.Second, map[string]Command{v.Name: {WarpRequest: &warp}})
	if len(stepErrs) != 0 {
		t.Fatalf("warp step errors: %v", stepErrs)
	}
	if sim.Clock().WarpFactor() != 100 || sim.Clock().Regime() != RegimeOnRails {
		t.Fatalf("factor=%d regime=%s", sim.Clock().WarpFactor(), sim.Clock().Regime())
	}
	if got := sim.Clock().Epoch(); !got.Equal(start.Add(100 * time.Second)) {
		t.Fatalf("warped epoch = %s", got)
	}
	if fuel := v.Aggregate().Fuel; fuel != 100 {
		t.Fatalf("an on-rails coast must not burn fuel, got %f", fuel)
	}
}

func TestThrottleDropsWarp(t *testing.T) {
	sim, v := newTestSimulation(t)
	warp := 100
	if _, stepErrs := sim.Step(time.Second, map[string]Command{v.Name: {WarpRequest: &warp}}); len(stepErrs) != 0 {
		t.Fatalf("warp step errors: %v", stepErrs)
	}
	throttle := 1.0
	sim.Step(time.Second, map[string]Command{v.Name: {Throttle: &throttle}})
	if sim.Clock().WarpFactor() != 1 {
		t.Fatalf("thrust must drop warp to 1, factor = %d", sim.Clock().WarpFactor())
	}
}

func TestWarpBlockedByOtherVehicleBurn(t *testing.T) {
	registry := NewSolarSystem()
	earth := registry.MustBody("Earth")
	mars := registry.MustBody("Mars")
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sim := NewSimulation(registry, start, ExportConfig{})
	coaster := newOrbitingVehicle("coaster", earth)
	burner := newOrbitingVehicle("burner", mars)
	sim.Track(coaster)
	sim.Track(burner)
	throttle := 1.0
	if _, stepErrs := sim.Step(time.Second, map[string]Command{"burner": {Throttle: &throttle}}); len(stepErrs) != 0 {
		t.Fatalf("burn step errors: %v", stepErrs)
	}
	// Warp skips integrated steps for every vehicle, so the coasting one
	// cannot raise the factor while another vehicle is mid-burn.
	warp := 100
	_, stepErrs := sim.Step(time.Second, map[string]Command{"coaster": {WarpRequest: &warp}})
	if !errors.Is(stepErrs["coaster"], ErrUnsafeContext) {
		t.Fatalf("expected ErrUnsafeContext during another vehicle's burn, got %v", stepErrs["coaster"])
	}
	if sim.Clock().WarpFactor() != 1 {
		t.Fatalf("factor = %d after a rejected warp", sim.Clock().WarpFactor())
	}
}

func TestStageCommand(t *testing.T) {
	sim, v := newTestSimulation(t)
	_, stepErrs := sim.Step(time.Second, map[string]Command{v.Name: {StageAdvance: true}})
	if len(stepErrs) != 0 {
		t.Fatalf("staging step errors: %v", stepErrs)
	}
	if v.Stage() != 1 {
		t.Fatalf("stage = %d", v.Stage())
	}
	// The vehicle is now terminal: a further staging request is an error but
	// the step itself still propagates.
	snapshots, stepErrs := sim.Step(time.Second, map[string]Command{v.Name: {StageAdvance: true}})
	if !errors.Is(stepErrs[v.Name], ErrNoStagesRemain) {
		t.Fatalf("expected ErrNoStagesRemain, got %v", stepErrs[v.Name])
	}
	if snapshots[v.Name].Flagged {
		t.Fatal("a rejected command must not flag the vehicle")
	}
}

func TestParallelVehicles(t *testing.T) {
	registry := NewSolarSystem()
	earth := registry.MustBody("Earth")
	mars := registry.MustBody("Mars")
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sim := NewSimulation(registry, start, ExportConfig{})
	a := newOrbitingVehicle("alpha", earth)
	b := newOrbitingVehicle("beta", mars)
	sim.Track(a)
	sim.Track(b)
	snapshots, stepErrs := sim.Step(time.Second, nil)
	if len(stepErrs) != 0 {
		t.Fatalf("step errors: %v", stepErrs)
	}
	if len(snapshots) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snapshots))
	}
	if snapshots["alpha"].Body != "Earth" || snapshots["beta"].Body != "Mars" {
		t.Fatalf("bodies: %s, %s", snapshots["alpha"].Body, snapshots["beta"].Body)
	}
}

func TestProximityBlocksWarp(t *testing.T) {
	registry := NewSolarSystem()
	earth := registry.MustBody("Earth")
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sim := NewSimulation(registry, start, ExportConfig{})
	a := newOrbitingVehicle("lead", earth)
	b := newOrbitingVehicle("chase", earth)
	// Within the proximity bubble of each other.
	b.R = add(a.R, []float64{1, 0, 0})
	b.V = append([]float64{}, a.V...)
	sim.Track(a)
	sim.Track(b)
	warp := 10
	_, stepErrs := sim.Step(time.Second, map[string]Command{"lead": {WarpRequest: &warp}})
	if !errors.Is(stepErrs["lead"], ErrUnsafeContext) {
		t.Fatalf("expected ErrUnsafeContext near another vehicle, got %v", stepErrs["lead"])
	}
}
