package spacecore

import (
	"math"
	"testing"
	"time"

	"github.com/gonum/floats"
)

func TestSolarSystemRegistry(t *testing.T) {
	registry := NewSolarSystem()
	sun := registry.Root()
	if sun.Name != "Sun" || sun.Parent() != nil {
		t.Fatal("the Sun must be the parentless root")
	}
	if !math.IsInf(sun.SOI(), 1) {
		t.Fatal("the root body SOI must be infinite")
	}
	earth := registry.MustBody("Earth")
	if !earth.Parent().Equals(sun) {
		t.Fatal("Earth must orbit the Sun")
	}
	moon := registry.MustBody("moon") // lookup is case insensitive
	if !moon.Parent().Equals(earth) {
		t.Fatal("the Moon must orbit Earth")
	}
	// SOI = a*(μ/μparent)^(2/5): the Moon's is about 66,200 km.
	if !floats.EqualWithinAbs(moon.SOI(), 66200, 500) {
		t.Fatalf("Moon SOI = %f km", moon.SOI())
	}
	// Earth's is about 925,000 km (Vallado).
	if !floats.EqualWithinAbs(earth.SOI(), 925000, 5000) {
		t.Fatalf("Earth SOI = %f km", earth.SOI())
	}
	if _, err := registry.Body("Vesta"); err == nil {
		t.Fatal("unknown bodies must error")
	}
	assertPanic(t, func() { registry.MustBody("Vesta") })
	if len(registry.Bodies()) != 11 {
		t.Fatalf("expected 11 bodies, got %d", len(registry.Bodies()))
	}
	proxima := registry.MustBody("Proxima Centauri")
	neptune := registry.MustBody("Neptune")
	if proxima.a <= neptune.a {
		t.Fatal("Proxima Centauri must sit beyond Neptune")
	}
	if math.IsInf(proxima.SOI(), 1) || proxima.SOI() <= 0 {
		t.Fatalf("Proxima Centauri SOI = %f km", proxima.SOI())
	}
}

func TestGravitationalAcceleration(t *testing.T) {
	registry := NewSolarSystem()
	earth := registry.MustBody("Earth")
	// Surface gravity is about 9.8 m/s^2, i.e. 9.8e-3 km/s^2, pointing down.
	R := []float64{earth.Radius, 0, 0}
	acc := earth.AccelerationAt(R)
	if !floats.EqualWithinAbs(norm(acc), 9.8e-3, 1e-4) {
		t.Fatalf("surface gravity = %f km/s^2", norm(acc))
	}
	if acc[0] >= 0 {
		t.Fatal("gravity must point toward the body center")
	}
	// Inverse square: doubling the distance quarters the pull.
	farAcc := earth.AccelerationAt([]float64{2 * earth.Radius, 0, 0})
	if !floats.EqualWithinAbs(norm(farAcc), norm(acc)/4, 1e-9) {
		t.Fatalf("inverse square law broken: %f vs %f", norm(farAcc), norm(acc)/4)
	}
}

func TestBodyEphemeris(t *testing.T) {
	registry := NewSolarSystem()
	earth := registry.MustBody("Earth")
	dt := time.Date(2026, 3, 20, 14, 45, 0, 0, time.UTC)
	R, V := earth.PositionVelocityAt(dt)
	// Earth stays near 1 AU from the Sun at about 30 km/s.
	if r := norm(R); r < 0.97*AU || r > 1.03*AU {
		t.Fatalf("Earth heliocentric radius = %f km", r)
	}
	if v := norm(V); v < 29 || v > 31 {
		t.Fatalf("Earth heliocentric speed = %f km/s", v)
	}
	// A minute later the state has barely moved.
	R1, _ := earth.PositionVelocityAt(dt.Add(time.Minute))
	if math.Abs(norm(R1)-norm(R)) > 1e2 {
		t.Fatal("radius changed by more than 100 km in a minute")
	}
	assertPanic(t, func() { registry.Root().OrbitAround(dt) })
}

func TestRegistryValidation(t *testing.T) {
	if _, err := NewBodyRegistry(nil); err == nil {
		t.Fatal("nil root must be rejected")
	}
	badμ := &CelestialObject{Name: "point", Radius: 1}
	if _, err := NewBodyRegistry(badμ); err == nil {
		t.Fatal("a body without μ must be rejected")
	}
	dupe := &CelestialObject{Name: "star", Radius: 1e5, μ: 1e10,
		satellites: []*CelestialObject{{Name: "star", Radius: 10, a: 1e6, μ: 1}}}
	if _, err := NewBodyRegistry(dupe); err == nil {
		t.Fatal("duplicate names must be rejected")
	}
	noOrbit := &CelestialObject{Name: "star2", Radius: 1e5, μ: 1e10,
		satellites: []*CelestialObject{{Name: "rock", Radius: 10, μ: 1}}}
	if _, err := NewBodyRegistry(noOrbit); err == nil {
		t.Fatal("a satellite without a semi major axis must be rejected")
	}
}
