package pfcboost

import "github.com/voltlab/pfcboost/internal/q15"

// PI is a fixed-point proportional-integral controller. Gains are
// Q15 mantissas paired with arithmetic right-shift scales, the form
// the loop tuning constants are published in. The same primitive
// serves both the outer voltage loop and the inner current loop; the
// caller decides when it runs, so loop decimation lives outside.
//
// Output is clamped to [MinOutput, MaxOutput] on every Run. When the
// sum saturates, the integral accumulator is clamped to the same
// bound so it cannot wind up while the output sits on a rail.
type PI struct {
	Kp      int16
	Ki      int16
	KpScale uint
	KiScale uint

	MinOutput int16
	MaxOutput int16

	// Reference is the setpoint for callers that track one here.
	// The voltage loop stores its ramped DC-bus target in it; the
	// current loop keeps its reference elsewhere and leaves this 0.
	Reference int16

	// Error and Output hold the values of the most recent Run, for
	// diagnostics and tracing.
	Error  int16
	Output int16

	integral int32
}

// newPI builds a controller from one loop's configuration, with the
// integral accumulator and diagnostics zeroed.
func newPI(pc PIConfig) PI {
	return PI{
		Kp:        pc.Kp,
		Ki:        pc.Ki,
		KpScale:   pc.KpScale,
		KiScale:   pc.KiScale,
		MinOutput: pc.MinOutput,
		MaxOutput: pc.MaxOutput,
	}
}

// Run advances the controller by one step with the given error and
// returns the new output.
func (p *PI) Run(err int16) int16 {
	prop := q15.MulScale(err, p.Kp, p.KpScale)
	p.integral += q15.MulScale(err, p.Ki, p.KiScale)

	sum := prop + p.integral
	if sum > int32(p.MaxOutput) {
		sum = int32(p.MaxOutput)
		if p.integral > int32(p.MaxOutput) {
			p.integral = int32(p.MaxOutput)
		}
	} else if sum < int32(p.MinOutput) {
		sum = int32(p.MinOutput)
		if p.integral < int32(p.MinOutput) {
			p.integral = int32(p.MinOutput)
		}
	}

	p.Error = err
	p.Output = int16(sum)
	return p.Output
}

// Integral returns the current integral accumulator.
func (p *PI) Integral() int32 { return p.integral }

// SetIntegral overwrites the integral accumulator. The duty limiter
// uses this to pin the current loop at its anti-windup ceiling.
func (p *PI) SetIntegral(v int32) { p.integral = v }

// ResetIntegral zeroes the integral accumulator.
func (p *PI) ResetIntegral() { p.integral = 0 }
