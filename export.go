package spacecore

import (
	"fmt"
	"os"
	"time"
)

// State stores one propagated data point for the export stream.
type State struct {
	DT      time.Time
	Vehicle string
	Body    string
	Stage   int
	R, V    []float64
	Agg     Aggregate
}

// ExportConfig configures the exporting of the simulation history.
type ExportConfig struct {
	Filename     string
	AsCSV        bool
	Timestamp    bool
	CSVAppend    func(st State) string // Custom export (do not include leading comma)
	CSVAppendHdr func() string         // Header for the custom export
}

// IsUseless returns whether this config doesn't actually do anything.
func (c ExportConfig) IsUseless() bool {
	return !c.AsCSV
}

func createCSVFile(filename string, conf ExportConfig, stamp time.Time) *os.File {
	name := fmt.Sprintf("%s/prop-%s.csv", simConfig().OutputDir, filename)
	if conf.Timestamp {
		name = fmt.Sprintf("%s/prop-%s-%s.csv", simConfig().OutputDir, filename, stamp.UTC().Format("2006-01-02-15.04.05"))
	}
	f, err := os.Create(name)
	if err != nil {
		panic(err)
	}
	hdr := "time,vehicle,body,stage,rx,ry,rz,vx,vy,vz,mass,fuel"
	if conf.CSVAppendHdr != nil {
		hdr += "," + conf.CSVAppendHdr()
	}
	if _, err := f.WriteString(hdr); err != nil {
		panic(err)
	}
	return f
}

// stateStream is the open trajectory file of one vehicle.
type stateStream struct {
	f      *os.File
	body   string
	fileNo int
	lastDT time.Time
}

func (st *stateStream) closeWithTrailer() {
	st.f.WriteString(fmt.Sprintf("\n# Simulation time end (UTC): %s\n", st.lastDT.UTC()))
	st.f.Close()
}

// StreamStates consumes the propagation history channel and writes one CSV
// row per received state. Each vehicle streams to its own file, and a new
// file is started whenever that vehicle's reference body changes, so each
// file holds a single-frame trajectory. Close the channel to flush and stop.
func StreamStates(conf ExportConfig, stateChan <-chan State) {
	if conf.IsUseless() {
		for range stateChan {
			// Drain so the producers never block.
		}
		return
	}
	streams := make(map[string]*stateStream)
	for state := range stateChan {
		st, found := streams[state.Vehicle]
		if !found {
			st = &stateStream{}
			streams[state.Vehicle] = st
		}
		if st.f == nil || st.body != state.Body {
			if st.f != nil {
				st.closeWithTrailer()
			}
			st.f = createCSVFile(fmt.Sprintf("%s-%s-%d", conf.Filename, state.Vehicle, st.fileNo), conf, state.DT)
			st.body = state.Body
			st.fileNo++
		}
		row := fmt.Sprintf("%s,%s,%s,%d,%.6f,%.6f,%.6f,%.9f,%.9f,%.9f,%.3f,%.3f",
			state.DT.UTC().Format("2006-01-02 15:04:05"), state.Vehicle, state.Body, state.Stage,
			state.R[0], state.R[1], state.R[2], state.V[0], state.V[1], state.V[2],
			state.Agg.Mass, state.Agg.Fuel)
		if conf.CSVAppend != nil {
			row += "," + conf.CSVAppend(state)
		}
		if _, err := st.f.WriteString("\n" + row); err != nil {
			panic(err)
		}
		st.lastDT = state.DT
	}
	for _, st := range streams {
		if st.f != nil {
			st.closeWithTrailer()
		}
	}
}
