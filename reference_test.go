package pfcboost

import (
	"testing"

	"github.com/voltlab/pfcboost/internal/q15"
)

// The voltage PI runs once every VoltageLoopRate+2 calls: the counter
// is compared before it increments, and a run resets it to zero.
func TestVoltageLoopDecimation(t *testing.T) {
	ctrl, _, _ := newTestController(t, testConfig())
	ctrl.piVoltage.Reference = 1000
	for i := 0; i < 4; i++ {
		ctrl.vdcAvg.Add(0)
	}

	var runs []int
	last := int16(0)
	for call := 1; call <= 33; call++ {
		ctrl.generateCurrentReference()
		if out := ctrl.piVoltage.Output; out != last {
			runs = append(runs, call)
			last = out
		}
	}
	want := []int{11, 22, 33}
	if len(runs) != len(want) {
		t.Fatalf("voltage loop ran on calls %v, want %v", runs, want)
	}
	for i := range want {
		if runs[i] != want[i] {
			t.Fatalf("voltage loop ran on calls %v, want %v", runs, want)
		}
	}
	// err=1000 is above the 700 break, so Ki runs halved at 64:
	// each run adds prop 2000 once and integral 15, giving
	// 2015, 2030, 2045.
	if last != 2045 {
		t.Errorf("voltage PI output after 3 runs = %d, want 2045", last)
	}
}

// Gain scheduling halves Ki strictly above the break on either side.
func TestVoltageLoopGainSchedule(t *testing.T) {
	// err exactly at the break keeps the nominal gain:
	// prop = 700*8192>>12 = 1400, integral = 700*128>>12 = 21.
	ctrl, _, _ := newTestController(t, testConfig())
	for i := 0; i < 4; i++ {
		ctrl.vdcAvg.Add(0)
	}
	ctrl.piVoltage.Reference = 700
	ctrl.voltLoopCount = 10 // force a loop run on the next call
	ctrl.generateCurrentReference()
	if ctrl.piVoltage.Ki != 128 {
		t.Errorf("Ki at the break = %d, want nominal 128", ctrl.piVoltage.Ki)
	}
	if out := ctrl.piVoltage.Output; out != 1421 {
		t.Errorf("voltage PI output = %d, want 1421", out)
	}

	// One count above: Ki drops to 64, integral contributes only 10.
	ctrl2, _, _ := newTestController(t, testConfig())
	for i := 0; i < 4; i++ {
		ctrl2.vdcAvg.Add(0)
	}
	ctrl2.piVoltage.Reference = 701
	ctrl2.voltLoopCount = 10
	ctrl2.generateCurrentReference()
	if ctrl2.piVoltage.Ki != 64 {
		t.Errorf("Ki above the break = %d, want halved 64", ctrl2.piVoltage.Ki)
	}
	if out := ctrl2.piVoltage.Output; out != 1412 {
		t.Errorf("voltage PI output = %d, want 1412", out)
	}

	// Large negative error also schedules, and the output clamps at
	// the loop's zero floor.
	ctrl3, _, _ := newTestController(t, testConfig())
	for i := 0; i < 4; i++ {
		ctrl3.vdcAvg.Add(0)
	}
	ctrl3.piVoltage.Reference = -701
	ctrl3.voltLoopCount = 10
	ctrl3.generateCurrentReference()
	if ctrl3.piVoltage.Ki != 64 {
		t.Errorf("Ki below the break = %d, want halved 64", ctrl3.piVoltage.Ki)
	}
	if out := ctrl3.piVoltage.Output; out != 0 {
		t.Errorf("voltage PI output = %d, want clamped 0", out)
	}
}

func TestShapingDirect(t *testing.T) {
	cfg := testConfig()
	cfg.Shaping = ShapingDirect
	ctrl, _, _ := newTestController(t, cfg)
	ctrl.piVoltage.Output = 16384
	ctrl.rectifiedVac = 16384
	ctrl.generateCurrentReference()
	// Plain Q15 product: 0.5 * 0.5 = 0.25.
	if ctrl.currentRef != 8192 {
		t.Errorf("direct-shaped reference = %d, want 8192", ctrl.currentRef)
	}
}

func TestShapingPowerControl(t *testing.T) {
	ctrl, _, _ := newTestController(t, testConfig())
	ctrl.piVoltage.Output = 4037
	ctrl.rectifiedVac = 12000
	for i := 0; i < 4; i++ {
		ctrl.vacRMS.Add(12000) // publishes rms-square 4394
	}
	ctrl.generateCurrentReference()
	// 4037*12000>>18 = 184; (184<<15)/4394 = 1372; *4096>>12 = 1372.
	if ctrl.currentRef != 1372 {
		t.Errorf("power-shaped reference = %d, want 1372", ctrl.currentRef)
	}

	// With no rms-square published yet, the divide is skipped and the
	// raw product (scaled by KMul) stands.
	ctrl2, _, _ := newTestController(t, testConfig())
	ctrl2.piVoltage.Output = 4037
	ctrl2.rectifiedVac = 12000
	ctrl2.generateCurrentReference()
	if ctrl2.currentRef != 184 {
		t.Errorf("reference without rms normalization = %d, want 184", ctrl2.currentRef)
	}
}

func TestCurrentReferenceClamped(t *testing.T) {
	// A tiny rms-square blows the divide up to full scale; the
	// reference must stop at the shaped ceiling.
	ctrl, _, _ := newTestController(t, testConfig())
	ctrl.piVoltage.Output = 32767
	ctrl.rectifiedVac = 32767
	for i := 0; i < 4; i++ {
		ctrl.vacRMS.Add(600) // publishes rms-square 10
	}
	ctrl.generateCurrentReference()
	if ctrl.currentRef != q15.NearUnity {
		t.Errorf("reference = %d, want clamped to %d", ctrl.currentRef, q15.NearUnity)
	}

	// A negative product clamps to zero.
	cfg := testConfig()
	cfg.Shaping = ShapingDirect
	ctrl2, _, _ := newTestController(t, cfg)
	ctrl2.piVoltage.Output = -1000
	ctrl2.rectifiedVac = 16384
	ctrl2.generateCurrentReference()
	if ctrl2.currentRef != 0 {
		t.Errorf("reference = %d, want clamped to 0", ctrl2.currentRef)
	}
}
