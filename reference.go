package pfcboost

import "github.com/voltlab/pfcboost/internal/q15"

// generateCurrentReference runs the decimated voltage loop, then
// shapes the cycle's current reference from the loop output and the
// rectified line voltage. The reference is what makes the inductor
// current track the line waveform: it is largest at the line crest
// and zero at the crossings.
func (c *Controller) generateCurrentReference() {
	// The outer loop runs once per VoltageLoopRate+2 cycles; the
	// counter only advances on the cycles it skips.
	if c.voltLoopCount > c.cfg.VoltageLoopRate {
		err := c.piVoltage.Reference - c.vdcAvg.Output()
		// Gain scheduling: large bus errors run with half the
		// integral gain to limit overshoot on transients.
		if err > c.cfg.VoltageErrorGainBreak || err < -c.cfg.VoltageErrorGainBreak {
			c.piVoltage.Ki = c.cfg.VoltageLoop.Ki >> 1
		} else {
			c.piVoltage.Ki = c.cfg.VoltageLoop.Ki
		}
		c.piVoltage.Run(err)
		c.voltLoopCount = 0
	} else {
		c.voltLoopCount++
	}

	var ref int16
	switch c.cfg.Shaping {
	case ShapingDirect:
		ref = q15.Mul(c.piVoltage.Output, c.rectifiedVac)
	default:
		// Power control: reference = VPI·rect/RMS² · KMul.
		// The >>18 (15+3) keeps the numerator below RMS² so the
		// fractional divide stays in range; KMul at Q12 restores
		// the extra 3 bits.
		t := int16(q15.MulScale(c.piVoltage.Output, c.rectifiedVac, 18))
		if sqr := c.vacRMS.Output(); sqr > 0 {
			t = q15.Div(t, sqr)
		}
		ref = int16(q15.MulScale(t, c.cfg.KMul, 12))
	}

	if ref > q15.NearUnity {
		ref = q15.NearUnity
	} else if ref < 0 {
		ref = 0
	}
	c.currentRef = ref
}
