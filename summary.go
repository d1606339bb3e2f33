package pfcboost

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// RunSummary condenses a recorded trace into the regulation and
// power-quality figures checked first on a bench: bus statistics,
// input RMS quantities, real and apparent power, power factor, duty
// saturation, and where the cycles went.
type RunSummary struct {
	Cycles int

	VdcMean   float64 // volts
	VdcMin    float64
	VdcMax    float64
	VdcRipple float64 // max minus min, volts

	VacRMS   float64 // volts
	InputRMS float64 // amps

	RealPower     float64 // watts
	ApparentPower float64 // volt-amperes
	PowerFactor   float64

	DutySaturated float64 // fraction of cycles at or above MaxDuty
	StateCycles   [5]int  // indexed by ControlState
	FaultCycles   int
}

// Summarize reduces a trace to a RunSummary. voltsFullScale and
// ampsFullScale are the sensor scales mapping 32768 counts to SI
// units; maxDuty marks the saturation count. Input quantities come
// from the rectified line column, which carries the same RMS as the
// signed waveform.
func Summarize(t *TraceRecorder, voltsFullScale, ampsFullScale float64, maxDuty uint16) RunSummary {
	var r RunSummary
	r.Cycles = t.Rows()
	if r.Cycles == 0 {
		return r
	}

	vPerCount := voltsFullScale / 32768
	aPerCount := ampsFullScale / 32768

	vdc := t.Column(TraceColVdc)
	floats.Scale(vPerCount, vdc)
	r.VdcMean = stat.Mean(vdc, nil)
	r.VdcMin = floats.Min(vdc)
	r.VdcMax = floats.Max(vdc)
	r.VdcRipple = r.VdcMax - r.VdcMin

	rect := t.Column(TraceColRectVac)
	il := t.Column(TraceColIL)
	n := float64(r.Cycles)
	floats.Scale(vPerCount, rect)
	floats.Scale(aPerCount, il)

	r.VacRMS = math.Sqrt(floats.Dot(rect, rect) / n)
	r.InputRMS = math.Sqrt(floats.Dot(il, il) / n)
	r.RealPower = floats.Dot(rect, il) / n
	r.ApparentPower = r.VacRMS * r.InputRMS
	if r.ApparentPower > 0 {
		r.PowerFactor = r.RealPower / r.ApparentPower
	}

	saturated := 0
	for _, d := range t.Column(TraceColDuty) {
		if d >= float64(maxDuty) {
			saturated++
		}
	}
	r.DutySaturated = float64(saturated) / n

	for _, s := range t.Column(TraceColState) {
		if i := int(s); i >= 0 && i < len(r.StateCycles) {
			r.StateCycles[i]++
		}
	}
	for _, f := range t.Column(TraceColFaults) {
		if f != 0 {
			r.FaultCycles++
		}
	}
	return r
}

func (r RunSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cycles: %d\n", r.Cycles)
	fmt.Fprintf(&b, "dc bus: mean %.1f V  min %.1f V  max %.1f V  ripple %.1f V\n",
		r.VdcMean, r.VdcMin, r.VdcMax, r.VdcRipple)
	fmt.Fprintf(&b, "input: %.1f Vrms  %.2f Arms\n", r.VacRMS, r.InputRMS)
	fmt.Fprintf(&b, "power: %.1f W real  %.1f VA apparent  PF %.3f\n",
		r.RealPower, r.ApparentPower, r.PowerFactor)
	fmt.Fprintf(&b, "duty saturated: %.1f%% of cycles\n", 100*r.DutySaturated)
	states := make([]string, 0, len(r.StateCycles))
	for i, nc := range r.StateCycles {
		if nc > 0 {
			states = append(states, fmt.Sprintf("%s %d", ControlState(i), nc))
		}
	}
	fmt.Fprintf(&b, "states: %s\n", strings.Join(states, "  "))
	fmt.Fprintf(&b, "fault cycles: %d\n", r.FaultCycles)
	return b.String()
}
