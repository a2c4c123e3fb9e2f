package main

import (
	"fmt"
	"time"

	"github.com/Davidian1024/spacecore"
)

// Runs a two stage burn and coast scenario: a vehicle in low Earth orbit
// burns its first stage dry, auto-stages, then warps through the coast.
func main() {
	registry := spacecore.NewSolarSystem()
	earth := registry.MustBody("Earth")

	vehicle := spacecore.NewVehicle("demo", spacecore.Part{ID: "pod", DryMass: 250})
	vehicle.Attach(spacecore.Part{ID: "tank", DryMass: 150, Fuel: 100, FuelCapacity: 100, Stage: 0}, "pod")
	vehicle.Attach(spacecore.Part{ID: "engine", DryMass: 80, Thrust: 9806.65, Isp: 100, Stage: 0}, "tank")

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	orbit := spacecore.NewOrbitFromOE(earth.Radius+300, 1e-7, 28.5, 10, 5, 0, earth)
	vehicle.R, vehicle.V = orbit.RV()
	vehicle.Body = earth

	sim := spacecore.NewSimulation(registry, start, spacecore.ExportConfig{Filename: "launchsim", AsCSV: true, Timestamp: true})
	defer sim.Close()
	sim.Track(vehicle)

	// Point prograde and hold full throttle until the first stage runs dry.
	prograde := spacecore.AttitudeFacing(spacecore.LVLH2Inertial(orbit, []float64{0, 1, 0}))
	throttle := 1.0
	snaps, _ := sim.Step(1*time.Second, map[string]spacecore.Command{"demo": {Throttle: &throttle, Attitude: &prograde}})
	for snaps["demo"].FuelRemaining > 0 {
		snaps, _ = sim.Step(1*time.Second, nil)
	}
	fmt.Printf("burn complete: stage=%d fuel=%.1f kg\n", snaps["demo"].Stage, snaps["demo"].FuelRemaining)

	// Cut throttle and warp through a coast.
	throttle = 0
	sim.Step(1*time.Second, map[string]spacecore.Command{"demo": {Throttle: &throttle}})
	warp := 100
	if _, errs := sim.Step(1*time.Second, map[string]spacecore.Command{"demo": {WarpRequest: &warp}}); len(errs) > 0 {
		fmt.Printf("warp rejected: %v\n", errs["demo"])
		return
	}
	for i := 0; i < 60; i++ {
		snaps, _ = sim.Step(1*time.Second, nil)
	}
	final := snaps["demo"]
	fmt.Printf("coast complete at %s: body=%s r=%.1f km v=%.3f km/s\n",
		final.Epoch, final.Body, spacecore.Norm(final.R), spacecore.Norm(final.V))
}
