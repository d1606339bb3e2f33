package pfcboost

import (
	"fmt"
	"math"
	"math/rand"
)

// clampCounts converts a float64 count value to int16 with rounding
// and saturation.
func clampCounts(x float64) int16 {
	v := int32(math.Round(x))
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// BoostPlant is a software boost converter plus AC line, the
// simulator's stand-in for real hardware. It integrates an averaged
// switch model (inductor, output capacitor, resistive load) one PWM
// period per Step in float64 SI units and hands back the feedback
// Sample in Q15 counts on the configured sensor scales. The model is
// crude but carries the behaviors the controller cares about: diode
// precharge, boost action proportional to duty, bus droop under
// load, and line amplitude changes.
type BoostPlant struct {
	Inductance  float64 // H
	Capacitance float64 // F
	SeriesR     float64 // inductor resistance, ohms
	Load        float64 // output load, ohms

	LineAmplitude float64 // volts peak
	LineFrequency float64 // Hz
	SampleRate    float64 // control cycles per second

	VoltsFullScale float64 // volts at 32768 counts, both dividers
	AmpsFullScale  float64 // amps at 32768 counts
	SensorBias     int16   // counts added to the AC reading
	PWMPeriod      uint16
	NoiseSigma     float64 // gaussian counts on the AC reading

	vdc float64 // capacitor voltage
	il  float64 // inductor current
	n   int64
	rng *rand.Rand
}

// NewBoostPlant returns a plant at the 230 VAC, 50 Hz, 380 V class
// design point used throughout: 1 mH / 470 uF / 200 ohm, 64 kHz
// cycle rate, sensors scaled 460 V and 15 A full scale. The bus
// starts precharged near the line peak, as a rectifier front end
// leaves it.
func NewBoostPlant() *BoostPlant {
	return &BoostPlant{
		Inductance:     1e-3,
		Capacitance:    470e-6,
		SeriesR:        0.2,
		Load:           200,
		LineAmplitude:  230 * math.Sqrt2,
		LineFrequency:  50,
		SampleRate:     64000,
		VoltsFullScale: 460,
		AmpsFullScale:  15,
		SensorBias:     300,
		PWMPeriod:      2000,
		vdc:            310,
		rng:            rand.New(rand.NewSource(977)),
	}
}

// SetLoad changes the output load resistance, for load-step
// scenarios.
func (p *BoostPlant) SetLoad(ohms float64) { p.Load = ohms }

// SetLineAmplitude changes the AC peak voltage, for dip and surge
// scenarios.
func (p *BoostPlant) SetLineAmplitude(voltsPeak float64) { p.LineAmplitude = voltsPeak }

// Vdc returns the model bus voltage in volts.
func (p *BoostPlant) Vdc() float64 { return p.vdc }

// Inductor returns the model inductor current in amps.
func (p *BoostPlant) Inductor() float64 { return p.il }

// Step advances the model by one PWM period under the given duty and
// output-enable, then returns the feedback sample the controller
// sees for its next cycle.
func (p *BoostPlant) Step(duty uint16, enabled bool) Sample {
	dt := 1 / p.SampleRate
	theta := 2 * math.Pi * p.LineFrequency * float64(p.n) / p.SampleRate
	vline := p.LineAmplitude * math.Sin(theta)
	vin := math.Abs(vline)

	d := 0.0
	if enabled {
		d = float64(duty) / float64(p.PWMPeriod)
		if d > 1 {
			d = 1
		}
	}

	// Averaged boost model with the diode as an ideal rectifier:
	// current can only flow forward, so the bus precharges to the
	// line peak even with the switch idle.
	dil := (vin - (1-d)*p.vdc - p.SeriesR*p.il) / p.Inductance
	p.il += dil * dt
	if p.il < 0 {
		p.il = 0
	}
	dvdc := ((1-d)*p.il - p.vdc/p.Load) / p.Capacitance
	p.vdc += dvdc * dt
	if p.vdc < 0 {
		p.vdc = 0
	}
	p.n++

	cpv := 32768 / p.VoltsFullScale
	cpa := 32768 / p.AmpsFullScale
	vac := float64(p.SensorBias) + vline*cpv
	if p.NoiseSigma > 0 {
		vac += p.rng.NormFloat64() * p.NoiseSigma
	}
	return Sample{
		Vdc: clampCounts(p.vdc * cpv),
		Vac: clampCounts(vac),
		IL:  clampCounts(p.il * cpa),
	}
}

// SimPowerStage records what the controller commands: the latest
// duty, the output-enable state, and call counts for tests.
type SimPowerStage struct {
	duty    uint16
	enabled bool

	SetDutyCalls int
	EnableCalls  int
	DisableCalls int
}

// SetDuty records the commanded duty.
func (s *SimPowerStage) SetDuty(duty uint16) {
	s.duty = duty
	s.SetDutyCalls++
}

// EnableOutputs records an enable request.
func (s *SimPowerStage) EnableOutputs() {
	s.enabled = true
	s.EnableCalls++
}

// DisableOutputs records a disable request.
func (s *SimPowerStage) DisableOutputs() {
	s.enabled = false
	s.DisableCalls++
}

// Duty returns the most recently commanded duty.
func (s *SimPowerStage) Duty() uint16 { return s.duty }

// Enabled reports whether the outputs are currently enabled.
func (s *SimPowerStage) Enabled() bool { return s.enabled }

// SimOffsetCalibrator averages a fixed number of startup current
// samples into a zero offset, mirroring the observable contract of
// the hardware calibration routine.
type SimOffsetCalibrator struct {
	want   int
	n      int
	sum    int32
	offset int16
	ready  bool
}

// NewSimOffsetCalibrator returns a calibrator that is Ready after
// averaging the given number of samples. It panics if samples is not
// positive.
func NewSimOffsetCalibrator(samples int) *SimOffsetCalibrator {
	if samples <= 0 {
		panic(fmt.Sprintf("NewSimOffsetCalibrator: samples=%d, expect positive", samples))
	}
	return &SimOffsetCalibrator{want: samples}
}

// Begin restarts the measurement.
func (c *SimOffsetCalibrator) Begin() {
	c.n = 0
	c.sum = 0
	c.offset = 0
	c.ready = false
}

// Step feeds one raw current sample. Samples after completion are
// ignored until the next Begin.
func (c *SimOffsetCalibrator) Step(iL int16) {
	if c.ready {
		return
	}
	c.sum += int32(iL)
	c.n++
	if c.n >= c.want {
		c.offset = int16(c.sum / int32(c.want))
		c.ready = true
	}
}

// Ready reports whether the measurement is complete.
func (c *SimOffsetCalibrator) Ready() bool { return c.ready }

// Offset returns the measured zero offset in counts.
func (c *SimOffsetCalibrator) Offset() int16 { return c.offset }

// Simulator ties a Controller to the software plant and its fake
// collaborators, one control cycle per Step.
type Simulator struct {
	Controller *Controller
	Plant      *BoostPlant
	Stage      *SimPowerStage
	Cal        *SimOffsetCalibrator
	Trace      *TraceRecorder // nil disables in-memory tracing
	Stream     *TraceWriter   // nil disables streaming npy export

	cycles int
}

// NewSimulator wires a controller with the given configuration to
// the plant.
func NewSimulator(cfg Config, plant *BoostPlant) (*Simulator, error) {
	stage := &SimPowerStage{}
	cal := NewSimOffsetCalibrator(256)
	ctrl, err := NewController(cfg, stage, cal)
	if err != nil {
		return nil, err
	}
	return &Simulator{
		Controller: ctrl,
		Plant:      plant,
		Stage:      stage,
		Cal:        cal,
	}, nil
}

// Step runs one plant period and one control cycle, recording a
// trace row when tracing is on.
func (s *Simulator) Step() {
	sample := s.Plant.Step(s.Stage.Duty(), s.Stage.Enabled())
	s.Controller.Cycle(sample)
	if s.Trace != nil || s.Stream != nil {
		snap := s.Controller.Snapshot()
		if s.Trace != nil {
			s.Trace.Record(snap)
		}
		if s.Stream != nil {
			s.Stream.Record(snap)
		}
	}
	s.cycles++
}

// Run executes n cycles.
func (s *Simulator) Run(n int) {
	for i := 0; i < n; i++ {
		s.Step()
	}
}

// Cycles returns the number of cycles run so far.
func (s *Simulator) Cycles() int { return s.cycles }
