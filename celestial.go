package spacecore

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/soniakeys/meeus/julian"
)

const (
	// AU is one astronomical unit in kilometers.
	AU = 1.49597870700e8
	// J2000 is the Julian date of the catalog reference epoch.
	J2000 = 2451545.0
)

// CelestialObject defines a gravitating body. Bodies are immutable after the
// registry is built: their state at a given epoch is derived from the catalog
// elements, never stored.
type CelestialObject struct {
	Name       string
	Radius     float64 // km
	a          float64 // semi major axis about the parent, km
	e          float64 // eccentricity of the orbit about the parent
	i          float64 // inclination, radians
	Ω          float64 // RAAN, radians
	ω          float64 // argument of periapsis, radians
	M0         float64 // mean anomaly at J2000, radians
	μ          float64 // gravitational parameter, km^3/s^2
	tilt       float64 // axial tilt, degrees
	atmosAlt   float64 // atmosphere ceiling altitude, km (0 if airless)
	soi        float64 // sphere of influence radius, km
	parent     *CelestialObject
	satellites []*CelestialObject
}

// GM returns μ (which is unexported because it's a lowercase letter).
func (c *CelestialObject) GM() float64 {
	return c.μ
}

// SOI returns the sphere of influence radius in km. Infinite for the root body.
func (c *CelestialObject) SOI() float64 {
	return c.soi
}

// Parent returns the body this object orbits, or nil for the root.
func (c *CelestialObject) Parent() *CelestialObject {
	return c.parent
}

// Satellites returns the bodies orbiting this object.
func (c *CelestialObject) Satellites() []*CelestialObject {
	return c.satellites
}

// AtmosphereCeiling returns the altitude in km below which warp is unsafe.
func (c *CelestialObject) AtmosphereCeiling() float64 {
	return c.atmosAlt
}

// String implements the Stringer interface.
func (c *CelestialObject) String() string {
	return c.Name + " body"
}

// Equals returns whether the provided celestial object is the same.
func (c *CelestialObject) Equals(b *CelestialObject) bool {
	if c == nil || b == nil {
		return c == b
	}
	return c.Name == b.Name && c.Radius == b.Radius && c.a == b.a && c.μ == b.μ
}

// AccelerationAt returns the gravitational acceleration vector in km/s^2
// exerted by this body at the provided body-centered position. Under the
// patched conic approximation this is the only gravity source for a vehicle
// whose current reference body is c.
func (c *CelestialObject) AccelerationAt(R []float64) []float64 {
	r := norm(R)
	f := -c.μ / math.Pow(r, 3)
	return vscale(f, R)
}

// OrbitAround returns the body's catalog orbit about its parent at the given
// epoch. Panics if called on the root body, which orbits nothing.
func (c *CelestialObject) OrbitAround(dt time.Time) *Orbit {
	if c.parent == nil {
		panic(fmt.Errorf("%s is the root body and has no orbit", c.Name))
	}
	n := math.Sqrt(c.parent.μ / math.Pow(c.a, 3))
	Δs := (julian.TimeToJD(dt.UTC()) - J2000) * 86400
	M := math.Mod(c.M0+n*Δs, 2*math.Pi)
	if M < 0 {
		M += 2 * math.Pi
	}
	ν := trueAnomalyFromMean(M, c.e)
	return NewOrbitFromOE(c.a, c.e, Rad2deg(c.i), Rad2deg(c.Ω), Rad2deg(c.ω), Rad2deg(ν), c.parent)
}

// PositionVelocityAt returns the body's position and velocity relative to its
// parent at the given epoch.
func (c *CelestialObject) PositionVelocityAt(dt time.Time) ([]float64, []float64) {
	return c.OrbitAround(dt).RV()
}

// BodyRegistry holds the static tree of gravitating bodies for a session.
// Built once at world init, never mutated afterwards.
type BodyRegistry struct {
	root   *CelestialObject
	byName map[string]*CelestialObject
}

// Root returns the root body of the hierarchy.
func (reg *BodyRegistry) Root() *CelestialObject {
	return reg.root
}

// Body returns the named body.
func (reg *BodyRegistry) Body(name string) (*CelestialObject, error) {
	b, found := reg.byName[strings.ToLower(name)]
	if !found {
		return nil, fmt.Errorf("undefined body '%s'", name)
	}
	return b, nil
}

// MustBody returns the named body and panics if it is not in the registry.
func (reg *BodyRegistry) MustBody(name string) *CelestialObject {
	b, err := reg.Body(name)
	if err != nil {
		panic(err)
	}
	return b
}

// Bodies returns all registered bodies.
func (reg *BodyRegistry) Bodies() []*CelestialObject {
	bodies := make([]*CelestialObject, 0, len(reg.byName))
	var walk func(c *CelestialObject)
	walk = func(c *CelestialObject) {
		bodies = append(bodies, c)
		for _, sat := range c.satellites {
			walk(sat)
		}
	}
	walk(reg.root)
	return bodies
}

// NewBodyRegistry builds a registry from a root body definition tree. The SOI
// radius of each non-root body is precomputed as a*(m/M)^(2/5): the mass ratio
// equals the μ ratio since G cancels.
func NewBodyRegistry(root *CelestialObject) (*BodyRegistry, error) {
	if root == nil {
		return nil, fmt.Errorf("registry requires a root body")
	}
	reg := &BodyRegistry{root: root, byName: make(map[string]*CelestialObject)}
	var register func(c, parent *CelestialObject) error
	register = func(c, parent *CelestialObject) error {
		key := strings.ToLower(c.Name)
		if _, dupe := reg.byName[key]; dupe {
			return fmt.Errorf("duplicate body '%s'", c.Name)
		}
		if c.μ <= 0 || c.Radius <= 0 {
			return fmt.Errorf("body '%s' needs positive μ and radius", c.Name)
		}
		c.parent = parent
		if parent == nil {
			c.soi = math.Inf(1)
		} else {
			if c.a <= 0 {
				return fmt.Errorf("body '%s' needs a positive semi major axis", c.Name)
			}
			c.soi = c.a * math.Pow(c.μ/parent.μ, 2./5.)
		}
		reg.byName[key] = c
		for _, sat := range c.satellites {
			if err := register(sat, c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := register(root, nil); err != nil {
		return nil, err
	}
	return reg, nil
}

// NewSolarSystem returns the built-in catalog: the Sun, the eight planets,
// the Moon and Proxima Centauri as a far marker beyond Neptune. Values from
// Vallado and the JPL fact sheets, km and km^3/s^2.
func NewSolarSystem() *BodyRegistry {
	moon := &CelestialObject{Name: "Moon", Radius: 1737.4, a: 384400, e: 0.0549, i: Deg2rad(5.145), M0: Deg2rad(135.27), μ: 4902.800066, tilt: 6.68}
	sun := &CelestialObject{
		Name: "Sun", Radius: 695700, μ: 1.32712440017987e11,
		satellites: []*CelestialObject{
			{Name: "Mercury", Radius: 2439.7, a: 57909050, e: 0.2056, i: Deg2rad(7.005), Ω: Deg2rad(48.331), ω: Deg2rad(29.124), M0: Deg2rad(174.796), μ: 2.2032e4, tilt: 0.034},
			{Name: "Venus", Radius: 6051.8, a: 108208601, e: 0.0068, i: Deg2rad(3.39458), Ω: Deg2rad(76.680), ω: Deg2rad(54.884), M0: Deg2rad(50.115), μ: 3.24858599e5, tilt: 177.36, atmosAlt: 250},
			{Name: "Earth", Radius: 6378.1363, a: 149598023, e: 0.0167, i: Deg2rad(0.00005), Ω: Deg2rad(-11.26064), ω: Deg2rad(114.20783), M0: Deg2rad(358.617), μ: 3.98600433e5, tilt: 23.4, atmosAlt: 140,
				satellites: []*CelestialObject{moon}},
			{Name: "Mars", Radius: 3396.19, a: 227939282.5616, e: 0.0934, i: Deg2rad(1.85), Ω: Deg2rad(49.558), ω: Deg2rad(286.502), M0: Deg2rad(19.412), μ: 4.28283100e4, tilt: 25.19, atmosAlt: 125},
			{Name: "Jupiter", Radius: 71492.0, a: 778298361, e: 0.0489, i: Deg2rad(1.30326966), Ω: Deg2rad(100.464), ω: Deg2rad(273.867), M0: Deg2rad(20.020), μ: 1.266865361e8, tilt: 3.13, atmosAlt: 5000},
			{Name: "Saturn", Radius: 60268.0, a: 1429394133, e: 0.0565, i: Deg2rad(2.485), Ω: Deg2rad(113.665), ω: Deg2rad(339.392), M0: Deg2rad(317.020), μ: 3.7931208e7, tilt: 26.73, atmosAlt: 4000},
			{Name: "Uranus", Radius: 25559.0, a: 2875038615, e: 0.0457, i: Deg2rad(0.773), Ω: Deg2rad(74.006), ω: Deg2rad(96.998), M0: Deg2rad(142.2386), μ: 5.7939513e6, tilt: 97.77, atmosAlt: 3000},
			{Name: "Neptune", Radius: 24764.0, a: 4498396441, e: 0.0113, i: Deg2rad(1.767975), Ω: Deg2rad(131.784), ω: Deg2rad(276.336), M0: Deg2rad(256.228), μ: 6.836529e6, tilt: 28.32, atmosAlt: 3500},
			{Name: "Proxima Centauri", Radius: 107280, a: 4.017e13, e: 0, i: 0, μ: 1.6204e10},
		},
	}
	reg, err := NewBodyRegistry(sun)
	if err != nil {
		panic(err) // the built-in catalog is always valid
	}
	return reg
}
