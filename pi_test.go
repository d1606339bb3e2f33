package pfcboost

import (
	"testing"
)

func TestPIPureProportional(t *testing.T) {
	pi := PI{Kp: 16384, KpScale: 15, MinOutput: -1000, MaxOutput: 1000}

	if got := pi.Run(100); got != 50 {
		t.Errorf("Run(100) = %d, want 50", got)
	}
	if got := pi.Run(-100); got != -50 {
		t.Errorf("Run(-100) = %d, want -50", got)
	}
	if got := pi.Run(30000); got != 1000 {
		t.Errorf("Run(30000) = %d, want clamp to 1000", got)
	}
	if got := pi.Run(-30000); got != -1000 {
		t.Errorf("Run(-30000) = %d, want clamp to -1000", got)
	}
	if pi.Integral() != 0 {
		t.Errorf("Integral() = %d with ki=0, want 0", pi.Integral())
	}
}

func TestPIIntegralAccumulates(t *testing.T) {
	pi := PI{Ki: 32767, KiScale: 15, MinOutput: -30000, MaxOutput: 30000}

	if got := pi.Run(100); got != 99 {
		t.Errorf("first Run(100) = %d, want 99", got)
	}
	if got := pi.Run(100); got != 198 {
		t.Errorf("second Run(100) = %d, want 198", got)
	}
	// Zero error leaves the accumulated output in place.
	if got := pi.Run(0); got != 198 {
		t.Errorf("Run(0) = %d, want held 198", got)
	}
	if pi.Integral() != 198 {
		t.Errorf("Integral() = %d, want 198", pi.Integral())
	}
}

func TestPIAntiWindup(t *testing.T) {
	pi := PI{Ki: 32767, KiScale: 5, MinOutput: -1000, MaxOutput: 1000}

	if got := pi.Run(10); got != 1000 {
		t.Errorf("Run(10) = %d, want saturated 1000", got)
	}
	if pi.Integral() != 1000 {
		t.Errorf("Integral() = %d after saturation, want clamped 1000", pi.Integral())
	}
	// With the integral held at the rail, a small reverse error
	// unsaturates immediately instead of burning off windup.
	if got := pi.Run(-1); got != -24 {
		t.Errorf("Run(-1) = %d, want -24", got)
	}
}

func TestPIBothTerms(t *testing.T) {
	pi := PI{Kp: 16384, KpScale: 15, Ki: 3277, KiScale: 15, MinOutput: 0, MaxOutput: 32767}

	if got := pi.Run(1000); got != 600 { // 500 proportional + 100 integral
		t.Errorf("Run(1000) = %d, want 600", got)
	}
	if pi.Error != 1000 {
		t.Errorf("Error = %d, want 1000", pi.Error)
	}
	if pi.Output != 600 {
		t.Errorf("Output = %d, want 600", pi.Output)
	}
}

func TestPIIntegralAccessors(t *testing.T) {
	pi := PI{Ki: 32767, KiScale: 15, MinOutput: -30000, MaxOutput: 30000}
	pi.SetIntegral(500)
	if got := pi.Run(0); got != 500 {
		t.Errorf("Run(0) after SetIntegral(500) = %d, want 500", got)
	}
	pi.ResetIntegral()
	if got := pi.Run(0); got != 0 {
		t.Errorf("Run(0) after ResetIntegral = %d, want 0", got)
	}
}

func TestPIOutputAlwaysBounded(t *testing.T) {
	pi := PI{Kp: 30000, KpScale: 10, Ki: 20000, KiScale: 8, MinOutput: -500, MaxOutput: 1500}
	errs := []int16{0, 1, -1, 100, -100, 32767, -32768, 5000, -5000, 0, 0, 12345, -12345}
	for i, e := range errs {
		out := pi.Run(e)
		if out < pi.MinOutput || out > pi.MaxOutput {
			t.Errorf("step %d: Run(%d) = %d, outside [%d, %d]", i, e, out, pi.MinOutput, pi.MaxOutput)
		}
	}
}
