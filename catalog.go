package spacecore

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogBody mirrors one body entry of a YAML catalog file. Angles are in
// degrees in the file, distances in km, μ in km^3/s^2.
type catalogBody struct {
	Name          string        `yaml:"name"`
	Radius        float64       `yaml:"radius"`
	Mu            float64       `yaml:"mu"`
	SemiMajorAxis float64       `yaml:"semi_major_axis"`
	Eccentricity  float64       `yaml:"eccentricity"`
	Inclination   float64       `yaml:"inclination"`
	RAAN          float64       `yaml:"raan"`
	ArgPeriapsis  float64       `yaml:"arg_periapsis"`
	MeanAnomaly   float64       `yaml:"mean_anomaly"`
	AxialTilt     float64       `yaml:"axial_tilt"`
	AtmosphereAlt float64       `yaml:"atmosphere_alt"`
	Satellites    []catalogBody `yaml:"satellites"`
}

type catalogFile struct {
	Root catalogBody `yaml:"root"`
}

func (cb catalogBody) toObject() *CelestialObject {
	obj := &CelestialObject{
		Name:     cb.Name,
		Radius:   cb.Radius,
		a:        cb.SemiMajorAxis,
		e:        cb.Eccentricity,
		i:        Deg2rad(cb.Inclination),
		Ω:        Deg2rad(cb.RAAN),
		ω:        Deg2rad(cb.ArgPeriapsis),
		M0:       Deg2rad(cb.MeanAnomaly),
		μ:        cb.Mu,
		tilt:     cb.AxialTilt,
		atmosAlt: cb.AtmosphereAlt,
	}
	for _, sat := range cb.Satellites {
		obj.satellites = append(obj.satellites, sat.toObject())
	}
	return obj
}

// LoadCatalog reads a celestial body catalog from the provided reader and
// builds the registry from it. The file supplies the same static data as
// NewSolarSystem, for worlds assembled outside this core.
func LoadCatalog(r io.Reader) (*BodyRegistry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("could not read catalog: %s", err)
	}
	var file catalogFile
	if err = yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("could not parse catalog: %s", err)
	}
	if file.Root.Name == "" {
		return nil, fmt.Errorf("catalog has no root body")
	}
	return NewBodyRegistry(file.Root.toObject())
}

// LoadCatalogFile reads a celestial body catalog from a YAML file.
func LoadCatalogFile(path string) (*BodyRegistry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open catalog: %s", err)
	}
	defer f.Close()
	return LoadCatalog(f)
}
