package pfcboost

import (
	"fmt"
	"strings"
)

// Fault is a bitmask of latched converter faults. Bits are set by
// detection in the run state and cleared individually by hysteretic
// recovery in the fault state; setting an already-set bit changes
// nothing.
type Fault uint16

// The individual fault bits.
const (
	// FaultOutputOverVoltage trips when the averaged DC bus crosses
	// the output limit. Recovery never clears it; only a full
	// controller Reset does.
	FaultOutputOverVoltage Fault = 1 << iota

	// FaultInputUnderVoltage and FaultInputOverVoltage trip on the
	// squared-RMS line measurement and clear once it re-enters the
	// hysteresis band.
	FaultInputUnderVoltage
	FaultInputOverVoltage
)

// FaultNone is the empty mask.
const FaultNone Fault = 0

// Set returns the mask with the bits of f latched in.
func (m Fault) Set(f Fault) Fault { return m | f }

// Clear returns the mask with the bits of f removed.
func (m Fault) Clear(f Fault) Fault { return m &^ f }

// Has reports whether every bit of f is set in m.
func (m Fault) Has(f Fault) bool { return m&f == f }

func (m Fault) String() string {
	if m == FaultNone {
		return "none"
	}
	var parts []string
	if m.Has(FaultOutputOverVoltage) {
		parts = append(parts, "output-overvoltage")
	}
	if m.Has(FaultInputUnderVoltage) {
		parts = append(parts, "input-undervoltage")
	}
	if m.Has(FaultInputOverVoltage) {
		parts = append(parts, "input-overvoltage")
	}
	known := FaultOutputOverVoltage | FaultInputUnderVoltage | FaultInputOverVoltage
	if unknown := m &^ known; unknown != 0 {
		parts = append(parts, fmt.Sprintf("unknown(%#x)", uint16(unknown)))
	}
	return strings.Join(parts, "+")
}

// detectFaults compares the filtered measurements against the trip
// limits, latching any that are crossed. Runs every cycle while
// regulating.
func (c *Controller) detectFaults() {
	if c.vdcAvg.Output() >= c.cfg.OutputOverVoltageLimit {
		c.faults = c.faults.Set(FaultOutputOverVoltage)
	}
	sqr := c.vacRMS.Output()
	if sqr < c.cfg.InputUnderVoltageLimitLo {
		c.faults = c.faults.Set(FaultInputUnderVoltage)
	}
	if sqr >= c.cfg.InputOverVoltageLimitHi {
		c.faults = c.faults.Set(FaultInputOverVoltage)
	}
}

// recoverFaults clears input fault bits whose measurements have come
// back through the recovery side of their hysteresis bands. Runs
// only in the fault state. Output over-voltage has no clearing path
// here.
func (c *Controller) recoverFaults() {
	sqr := c.vacRMS.Output()
	if sqr >= c.cfg.InputUnderVoltageLimitHi {
		c.faults = c.faults.Clear(FaultInputUnderVoltage)
	}
	if sqr < c.cfg.InputOverVoltageLimitLo {
		c.faults = c.faults.Clear(FaultInputOverVoltage)
	}
}
