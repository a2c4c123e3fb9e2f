package spacecore

import (
	"os"
	"sync"

	"github.com/spf13/viper"
)

var (
	cfgMutex  sync.Mutex
	cfgLoaded = false
	config    = _simconfig{}
)

// _simconfig is a "hidden" struct, just use `simConfig`.
type _simconfig struct {
	WarpLadder     []int   // allowed warp factors, ascending, first entry must be 1
	AutoStage      bool    // default auto-stage policy for new vehicles
	SOIHysteresis  float64 // fraction of the target SOI radius required beyond the boundary
	ProximityKm    float64 // distance to another tracked vehicle below which warp is unsafe
	MaxOnRailsStep float64 // longest single on-rails advance, seconds
	OutputDir      string  // where state exports are written
}

// simConfig returns the simulation policy configuration. A configuration file
// is optional: the core ships playable defaults and only overrides them when
// SPACECORE_CONFIG points to a directory holding a conf.toml.
func simConfig() _simconfig {
	cfgMutex.Lock()
	defer cfgMutex.Unlock()
	if cfgLoaded {
		return config
	}
	config = _simconfig{
		WarpLadder:     []int{1, 5, 10, 50, 100, 1000, 10000},
		AutoStage:      true,
		SOIHysteresis:  0.01,
		ProximityKm:    2.5,
		MaxOnRailsStep: 3600,
		OutputDir:      ".",
	}
	if confPath := os.Getenv("SPACECORE_CONFIG"); confPath != "" {
		viper.SetConfigName("conf")
		viper.AddConfigPath(confPath)
		if err := viper.ReadInConfig(); err == nil {
			if viper.IsSet("warp.ladder") {
				config.WarpLadder = viper.GetIntSlice("warp.ladder")
			}
			if viper.IsSet("warp.proximity_km") {
				config.ProximityKm = viper.GetFloat64("warp.proximity_km")
			}
			if viper.IsSet("staging.auto") {
				config.AutoStage = viper.GetBool("staging.auto")
			}
			if viper.IsSet("propagation.soi_hysteresis") {
				config.SOIHysteresis = viper.GetFloat64("propagation.soi_hysteresis")
			}
			if viper.IsSet("propagation.max_onrails_step") {
				config.MaxOnRailsStep = viper.GetFloat64("propagation.max_onrails_step")
			}
			if viper.IsSet("general.output_path") {
				config.OutputDir = viper.GetString("general.output_path")
			}
		}
	}
	cfgLoaded = true
	return config
}
