package pfcboost

import "github.com/voltlab/pfcboost/internal/q15"

// correctedCurrent estimates the average inductor current in
// discontinuous conduction. A single mid-period current sample reads
// high in DCM; scaling it by the ratio of the commanded duty to the
// ideal boost duty ratio recovers the true average. Uses the current
// PI output of the previous cycle, which is the duty actually applied.
func (c *Controller) correctedCurrent() int16 {
	ratio := int16(q15.AlmostOne)
	if c.boostDutyRatio > 0 {
		ratio = q15.Div(c.piCurrent.Output, c.boostDutyRatio)
	}
	if ratio > 0 {
		return q15.Mul(c.iL, ratio)
	}
	return c.iL
}

// runCurrentLoop executes the inner current loop and converts its
// output into the PWM duty register value.
func (c *Controller) runCurrentLoop() {
	// Negative current readings are sense noise; treat them as one
	// positive count so the loop never chases a negative input.
	if c.iL < 0 {
		c.iL = 1
	}
	if c.cfg.SampleCorrection {
		c.averageCurrent = c.correctedCurrent()
	} else {
		c.averageCurrent = c.iL
	}

	c.piCurrent.Run(c.currentRef - c.averageCurrent)

	duty := q15.MulScale(c.piCurrent.Output, int16(c.cfg.PWMPeriod), 15)
	switch {
	case duty > int32(c.cfg.MaxDuty):
		c.duty = c.cfg.MaxDuty
		// Anti-windup: the integral is pinned at its configured
		// ceiling while the duty rails.
		c.piCurrent.SetIntegral(c.cfg.CurrentIntegralMax)
	case duty < int32(c.cfg.MinDuty):
		c.duty = c.cfg.MinDuty
	default:
		c.duty = uint16(duty)
	}
}
