package spacecore

import (
	"testing"
	"time"

	"github.com/gonum/floats"
)

func TestOrbitRVRoundTrip(t *testing.T) {
	registry := NewSolarSystem()
	earth := registry.MustBody("Earth")
	o0 := NewOrbitFromOE(7378.1, 0.01, 38, 10, 5, 1, earth)
	R, V := o0.RV()
	o1 := NewOrbitFromRV(R, V, earth)
	if ok, err := o0.StrictlyEquals(*o1); !ok {
		t.Fatalf("OE -> RV -> OE round trip failed: %s\no0: %s\no1: %s", err, o0, o1)
	}
}

func TestOrbitDerived(t *testing.T) {
	registry := NewSolarSystem()
	earth := registry.MustBody("Earth")
	a := 7378.1
	e := 0.1
	o := NewOrbitFromOE(a, e, 28.5, 10, 5, 0, earth)
	if !floats.EqualWithinAbs(o.Apoapsis(), a*(1+e), 1e-9) {
		t.Fatalf("apoapsis = %f", o.Apoapsis())
	}
	if !floats.EqualWithinAbs(o.Periapsis(), a*(1-e), 1e-9) {
		t.Fatalf("periapsis = %f", o.Periapsis())
	}
	aBack, eBack := Radii2ae(o.Apoapsis(), o.Periapsis())
	if !floats.EqualWithinAbs(aBack, a, 1e-9) || !floats.EqualWithinAbs(eBack, e, 1e-9) {
		t.Fatalf("Radii2ae returned a=%f e=%f", aBack, eBack)
	}
	assertPanic(t, func() { Radii2ae(1, 2) })
	// Period of a ~7378 km orbit is about 105 minutes.
	if period := o.Period(); period < 100*time.Minute || period > 110*time.Minute {
		t.Fatalf("period = %s", period)
	}
}

func TestKeplerEquation(t *testing.T) {
	// The solver must invert MeanAnomaly for a spread of eccentricities.
	for _, e := range []float64{0.001, 0.1, 0.5, 0.9} {
		for _, M := range []float64{0.01, 1, 3, 5} {
			ν := trueAnomalyFromMean(M, e)
			registry := NewSolarSystem()
			o := NewOrbitFromOE(8000, e, 10, 0, 0, Rad2deg(ν), registry.MustBody("Earth"))
			if !floats.EqualWithinAbs(o.MeanAnomaly(), M, 1e-9) {
				t.Fatalf("e=%f M=%f: recovered M=%f", e, M, o.MeanAnomaly())
			}
		}
	}
}

func TestHyperbolicKepler(t *testing.T) {
	registry := NewSolarSystem()
	earth := registry.MustBody("Earth")
	// The hyperbolic solver must invert MeanAnomaly on both branches.
	for _, e := range []float64{1.1, 1.6, 2.5} {
		for _, M := range []float64{-3, -0.5, 0.5, 3} {
			ν := trueAnomalyFromMean(M, e)
			o := NewOrbitFromOE(-8000, e, 10, 0, 0, Rad2deg(ν), earth)
			if !floats.EqualWithinAbs(o.MeanAnomaly(), M, 1e-9) {
				t.Fatalf("e=%f M=%f: recovered M=%f", e, M, o.MeanAnomaly())
			}
		}
	}
}

func TestHyperbolicPropagateBy(t *testing.T) {
	registry := NewSolarSystem()
	earth := registry.MustBody("Earth")
	o := NewOrbitFromOE(-10000, 1.6, 25, 40, 10, 350, earth)
	rBefore := o.RNorm()
	ξ := o.Energyξ()
	if ξ <= 0 {
		t.Fatalf("a hyperbolic orbit must have positive energy, ξ=%f", ξ)
	}
	// Inbound through periapsis and out again. Vis-viva from the converted
	// vectors must still match the orbit energy.
	o.PropagateBy(30 * time.Minute)
	R, V := o.RV()
	if !floats.EqualWithinAbs(norm(V)*norm(V)/2-earth.GM()/norm(R), ξ, 1e-9) {
		t.Fatalf("vis-viva broken after the coast: R=%v V=%v", R, V)
	}
	// And backwards returns to the starting radius.
	o.PropagateBy(-30 * time.Minute)
	if !floats.EqualWithinAbs(o.RNorm(), rBefore, 1e-4) {
		t.Fatalf("radius round trip: %f != %f", o.RNorm(), rBefore)
	}
}

func TestClosedOrbitRoundTrip(t *testing.T) {
	// Propagating an elliptical orbit over one full period must return to the
	// starting state within a small numerical tolerance.
	registry := NewSolarSystem()
	earth := registry.MustBody("Earth")
	o := NewOrbitFromOE(8000, 0.15, 33, 40, 10, 25, earth)
	R0, V0 := o.RV()
	o.PropagateBy(o.Period())
	R1, V1 := o.RV()
	for i := 0; i < 3; i++ {
		if !floats.EqualWithinAbs(R0[i], R1[i], 1e-3) {
			t.Fatalf("R[%d] did not close: %f != %f", i, R0[i], R1[i])
		}
		if !floats.EqualWithinAbs(V0[i], V1[i], 1e-6) {
			t.Fatalf("V[%d] did not close: %f != %f", i, V0[i], V1[i])
		}
	}
}

func TestPropagateByAdvances(t *testing.T) {
	registry := NewSolarSystem()
	earth := registry.MustBody("Earth")
	o := NewOrbitFromOE(8000, 0.1, 33, 40, 10, 0, earth)
	R0 := append([]float64{}, o.R()...)
	o.PropagateBy(5 * time.Minute)
	if vectorsEqual(R0, o.R(), 1e-3) {
		t.Fatal("propagation must move the orbit position")
	}
	// All elements but the anomaly are untouched on a coast.
	a, e, i, Ω, ω, _, _, _, _ := o.Elements()
	if !floats.EqualWithinAbs(a, 8000, distanceε) || !floats.EqualWithinAbs(e, 0.1, eccentricityε) ||
		!floats.EqualWithinAbs(i, Deg2rad(33), angleε) || !floats.EqualWithinAbs(Ω, Deg2rad(40), angleε) ||
		!floats.EqualWithinAbs(ω, Deg2rad(10), angleε) {
		t.Fatalf("coast mutated an element: %s", o)
	}
}

func TestOrbitEquality(t *testing.T) {
	registry := NewSolarSystem()
	earth := registry.MustBody("Earth")
	mars := registry.MustBody("Mars")
	o := NewOrbitFromOE(8000, 0.1, 33, 40, 10, 0, earth)
	other := NewOrbitFromOE(8000, 0.1, 33, 40, 10, 120, earth)
	if ok, _ := o.Equals(*other); !ok {
		t.Fatal("orbits differing only in anomaly must be Equals")
	}
	if ok, _ := o.StrictlyEquals(*other); ok {
		t.Fatal("StrictlyEquals must check the anomaly")
	}
	foreign := NewOrbitFromOE(8000, 0.1, 33, 40, 10, 0, mars)
	if ok, _ := o.Equals(*foreign); ok {
		t.Fatal("orbits about different bodies are never equal")
	}
}
