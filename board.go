package pfcboost

// Sample holds one cycle's raw feedback readings in signed Q15
// counts: the DC bus voltage, the (bipolar, offset-biased) AC line
// voltage, and the inductor current. Acquisition hardware delivers
// one Sample per PWM period; the controller never reads anything
// else.
type Sample struct {
	Vdc int16
	Vac int16
	IL  int16
}

// PowerStage is the controller's actuation surface: a PWM generator
// driving the boost switch. SetDuty is called exactly once per cycle
// with the duty in PWM counts; Enable/DisableOutputs gate the gate
// driver independently of the duty register.
type PowerStage interface {
	SetDuty(duty uint16)
	EnableOutputs()
	DisableOutputs()
}

// OffsetCalibrator measures the current-sense zero offset while the
// power stage is idle. Begin restarts a measurement, Step feeds it
// one raw current sample, Ready reports completion, and Offset
// returns the measured zero in counts. The controller drives it
// during the offset-measurement state and afterwards only reads
// Offset.
type OffsetCalibrator interface {
	Begin()
	Step(iL int16)
	Ready() bool
	Offset() int16
}
