package pfcboost

import (
	"fmt"

	"github.com/voltlab/pfcboost/internal/q15"
)

// ControlState is the converter state machine's position.
type ControlState int

// Values of ControlState, in startup order.
const (
	StateInit          ControlState = iota // reset working state, outputs held off
	StateOffsetMeasure                     // measuring the current-sense zero offset
	StateWaitCycle                         // waiting out the first full RMS window
	StateRun                               // closed-loop regulation
	StateFault                             // outputs off, waiting for fault recovery
)

func (s ControlState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateOffsetMeasure:
		return "OFFSET_MEASURE"
	case StateWaitCycle:
		return "WAIT_1CYCLE"
	case StateRun:
		return "RUN"
	case StateFault:
		return "FAULT"
	}
	return fmt.Sprintf("ControlState(%d)", int(s))
}

// Controller is the boost PFC control core. It owns the entire
// control context: the signal-conditioning filters, both PI loops,
// the soft-start ramp, the fault latches, and the state machine.
// Cycle is designed to be called once per PWM period from a single
// goroutine (on hardware it would be the sampling interrupt); no
// method is safe for concurrent use.
type Controller struct {
	cfg   Config
	stage PowerStage
	cal   OffsetCalibrator

	state  ControlState
	faults Fault

	vdcAvg *MovingAverage
	vacAvg *MovingAverage
	vacRMS *MeanSquare

	piVoltage PI
	piCurrent PI

	// Working values of the current cycle, kept for the snapshot.
	sample         Sample
	iL             int16
	offsetVac      int16
	rectifiedVac   int16
	currentRef     int16
	averageCurrent int16
	boostDutyRatio int16
	duty           uint16

	voltLoopCount uint16
	rampCount     uint16
}

// NewController builds a controller from a validated configuration
// and its two hardware collaborators. The returned controller is in
// the initialization state; the first Cycle call starts the startup
// sequence.
func NewController(cfg Config, stage PowerStage, cal OffsetCalibrator) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if stage == nil {
		return nil, fmt.Errorf("pfcboost: nil PowerStage")
	}
	if cal == nil {
		return nil, fmt.Errorf("pfcboost: nil OffsetCalibrator")
	}

	c := &Controller{
		cfg:       cfg,
		stage:     stage,
		cal:       cal,
		state:     StateInit,
		vdcAvg:    NewMovingAverage(1 << cfg.VdcAvgScaler),
		vacAvg:    NewMovingAverage(cfg.VacAvgSamples),
		vacRMS:    NewMeanSquare(cfg.RmsSquareSamples),
		piVoltage: newPI(cfg.VoltageLoop),
		piCurrent: newPI(cfg.CurrentLoop),
	}
	return c, nil
}

// Cycle executes one control period on the given raw sample: the
// conditioning pipeline runs first, then the state machine, and the
// resulting duty is written to the power stage. Exactly one SetDuty
// call is made per Cycle.
func (c *Controller) Cycle(s Sample) {
	c.sample = s
	c.iL = s.IL

	// The conditioning pipeline runs in every state so the filters
	// are warm by the time regulation starts.
	c.vdcAvg.Add(s.Vdc)
	c.vacAvg.Add(s.Vac)
	c.offsetVac = c.vacAvg.Output()
	c.rectifiedVac = Rectify(s.Vac, c.offsetVac)
	c.vacRMS.Add(c.rectifiedVac)

	switch c.state {
	case StateInit:
		c.resetWorkingState()
		c.stage.DisableOutputs()
		c.cal.Begin()
		c.state = StateOffsetMeasure

	case StateOffsetMeasure:
		c.cal.Step(s.IL)
		// Hold until the AC average has one full line period, so
		// the offset and the seeded bus reference are meaningful.
		if c.cal.Ready() && c.vacAvg.Ready() {
			c.piVoltage.Reference = c.vdcAvg.Output()
			c.state = StateWaitCycle
		}

	case StateWaitCycle:
		if c.vacRMS.Ready() {
			c.stage.EnableOutputs()
			c.state = StateRun
			UpdateLogger.Printf("startup complete: current offset %d counts, bus average %d counts, entering regulation",
				c.cal.Offset(), c.vdcAvg.Output())
		}

	case StateRun:
		c.runCycle(s)

	case StateFault:
		c.duty = 0
		c.stage.DisableOutputs()
		c.recoverFaults()
		if c.faults == FaultNone {
			c.piVoltage.ResetIntegral()
			c.piCurrent.ResetIntegral()
			// Resume from the actual bus voltage and let the ramp
			// carry it back to the target.
			c.piVoltage.Reference = c.vdcAvg.Output()
			c.state = StateRun
			c.stage.EnableOutputs()
			UpdateLogger.Printf("faults cleared, resuming regulation from bus average %d counts",
				c.vdcAvg.Output())
		}
	}

	if c.cfg.DebugDutyEnable {
		c.stage.EnableOutputs()
		c.duty = c.cfg.DebugDuty
	}
	c.stage.SetDuty(c.duty)
}

// runCycle is the regulation state: fault detection, soft-start
// ramp, reference generation, and the inner current loop.
func (c *Controller) runCycle(s Sample) {
	if c.cfg.CurrentOffsetCorrection {
		c.iL = s.IL - c.cal.Offset()
	}

	c.detectFaults()
	if c.faults != FaultNone {
		ProblemLogger.Printf("fault latched: %s (bus average %d, line rms-square %d)",
			c.faults, c.vdcAvg.Output(), c.vacRMS.Output())
		// The duty written this cycle is the previous one; the
		// fault state zeroes it next cycle.
		c.state = StateFault
		return
	}

	c.advanceRamp()
	c.generateCurrentReference()

	if s.Vdc > 0 {
		// Ideal boost duty ratio (Vdc-Vac)/Vdc from this cycle's
		// measurements, used by the DCM sample correction.
		c.boostDutyRatio = q15.Div(s.Vdc-c.rectifiedVac, s.Vdc)
	}

	c.runCurrentLoop()

	// Zero-crossing / no-load cutoff: with the voltage loop asking
	// for almost nothing, switching is suppressed entirely.
	if c.piVoltage.Output < c.cfg.MinCurrentRefPeak {
		c.duty = 0
		c.piCurrent.ResetIntegral()
	}
}

// advanceRamp walks the voltage reference toward the regulation
// target, one step every RampRate+1 cycles, stopping exactly on the
// target.
func (c *Controller) advanceRamp() {
	if c.piVoltage.Reference < c.cfg.OutputVoltageReference {
		if c.rampCount == 0 {
			ref := int32(c.piVoltage.Reference) + int32(c.cfg.RampStep)
			if ref > int32(c.cfg.OutputVoltageReference) {
				ref = int32(c.cfg.OutputVoltageReference)
			}
			c.piVoltage.Reference = int16(ref)
			c.rampCount = c.cfg.RampRate
		} else {
			c.rampCount--
		}
	} else {
		c.piVoltage.Reference = c.cfg.OutputVoltageReference
	}
}

// resetWorkingState clears the filter accumulators, both PI
// integrators, and the duty. Published filter outputs and the fault
// mask are left alone.
func (c *Controller) resetWorkingState() {
	c.vdcAvg.Reset()
	c.vacAvg.Reset()
	c.vacRMS.Reset()
	c.piVoltage.ResetIntegral()
	c.piCurrent.ResetIntegral()
	c.duty = 0
}

// Reset forces the controller back to the initialization state and
// clears every fault latch, including output over-voltage, which has
// no other clearing path. The next Cycle restarts the startup
// sequence from scratch.
func (c *Controller) Reset() {
	c.state = StateInit
	c.faults = FaultNone
}

// State returns the state machine's position.
func (c *Controller) State() ControlState { return c.state }

// Faults returns the latched fault mask.
func (c *Controller) Faults() Fault { return c.faults }

// Duty returns the duty written on the most recent cycle, in PWM
// counts.
func (c *Controller) Duty() uint16 { return c.duty }

// CycleSnapshot is a copy of one cycle's observable control values,
// for traces, tests, and debug dumps.
type CycleSnapshot struct {
	State  ControlState
	Faults Fault

	Sample       Sample
	IL           int16 // after offset correction
	OffsetVac    int16
	RectifiedVac int16
	VdcAverage   int16
	RmsSquare    int16

	VoltageReference int16
	VoltagePIOutput  int16
	CurrentReference int16
	AverageCurrent   int16
	CurrentPIOutput  int16
	BoostDutyRatio   int16
	Duty             uint16
}

// Snapshot returns the observable values of the most recent cycle.
func (c *Controller) Snapshot() CycleSnapshot {
	return CycleSnapshot{
		State:            c.state,
		Faults:           c.faults,
		Sample:           c.sample,
		IL:               c.iL,
		OffsetVac:        c.offsetVac,
		RectifiedVac:     c.rectifiedVac,
		VdcAverage:       c.vdcAvg.Output(),
		RmsSquare:        c.vacRMS.Output(),
		VoltageReference: c.piVoltage.Reference,
		VoltagePIOutput:  c.piVoltage.Output,
		CurrentReference: c.currentRef,
		AverageCurrent:   c.averageCurrent,
		CurrentPIOutput:  c.piCurrent.Output,
		BoostDutyRatio:   c.boostDutyRatio,
		Duty:             c.duty,
	}
}
