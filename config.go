package pfcboost

import (
	"fmt"

	"github.com/spf13/viper"
)

// ShapingMode selects how the current reference is shaped from the
// voltage-loop output and the rectified line voltage.
type ShapingMode int

const (
	// ShapingPowerControl normalizes the feed-forward product by the
	// squared RMS of the line voltage, so the commanded power stays
	// constant when the line amplitude moves.
	ShapingPowerControl ShapingMode = iota

	// ShapingDirect uses the plain Q15 product of voltage-loop
	// output and rectified line voltage, with no RMS normalization.
	ShapingDirect
)

func (m ShapingMode) String() string {
	switch m {
	case ShapingPowerControl:
		return "PowerControl"
	case ShapingDirect:
		return "Direct"
	}
	return fmt.Sprintf("ShapingMode(%d)", int(m))
}

// PIConfig carries one loop's gains as a Q15 mantissa paired with an
// arithmetic right-shift scale, plus the clamp applied to the loop's
// output. Both loops in this converter drive non-negative quantities,
// so MinOutput must not be negative.
type PIConfig struct {
	Kp        int16
	Ki        int16
	KpScale   uint
	KiScale   uint
	MinOutput int16
	MaxOutput int16
}

// Config collects every tuning constant of the control core. Values
// are Q15 counts on the feedback full scales documented on
// DefaultConfig, except duty values, which are PWM counts. Load one
// from a file with LoadConfig or start from DefaultConfig; a Config
// is supplied once to NewController and never changed while running.
type Config struct {
	VoltageLoop PIConfig
	CurrentLoop PIConfig

	// Filter windows. The DC bus average window is 1<<VdcAvgScaler
	// samples; the AC average window should span one full mains
	// period and the mean-square window half of one (the rectified
	// waveform repeats at twice line frequency).
	VdcAvgScaler     uint
	VacAvgSamples    int
	RmsSquareSamples int

	// Regulation target and fault thresholds. The input limits
	// compare against mean-square (RMS²) counts; each input fault
	// pairs a detection bound with a recovery bound on the other
	// side of a hysteresis band.
	OutputVoltageReference   int16
	OutputOverVoltageLimit   int16
	InputUnderVoltageLimitLo int16 // detect below this
	InputUnderVoltageLimitHi int16 // recover at or above this
	InputOverVoltageLimitLo  int16 // recover below this
	InputOverVoltageLimitHi  int16 // detect at or above this

	// Soft start: the voltage reference rises RampStep counts once
	// every RampRate+1 cycles until it reaches the target.
	RampStep int16
	RampRate uint16

	// VoltageLoopRate decimates the outer loop: the voltage PI runs
	// once each time the cycle counter exceeds it.
	VoltageLoopRate       uint16
	VoltageErrorGainBreak int16
	MinCurrentRefPeak     int16
	KMul                  int16

	// PWM timing, in timer counts per switching period.
	PWMPeriod          uint16
	MinDuty            uint16
	MaxDuty            uint16
	CurrentIntegralMax int32

	SampleCorrection        bool
	CurrentOffsetCorrection bool
	Shaping                 ShapingMode

	// DebugDutyEnable bypasses the computed duty with DebugDuty and
	// forces the outputs on, while the state machine keeps running.
	// Open-loop bring-up only.
	DebugDutyEnable bool
	DebugDuty       uint16
}

// DefaultConfig returns the nominal 230 VAC / 380 VDC tuning. Both
// voltage dividers are scaled so 460 V peak reads full scale (32767
// counts) and the current sense so 15 A reads full scale. On those
// scales: the 380 V regulation target is 27069 counts, the 414 V
// output trip is 29491, and nominal line gives mean-square counts
// near 8192 (0.25 in Q15). Sampling is one cycle per PWM period at
// 64 kHz with a 50 Hz line, hence the 1280-sample line-period window
// and its 640-sample half-period mean-square window.
func DefaultConfig() Config {
	return Config{
		VoltageLoop: PIConfig{
			Kp: 8192, Ki: 128, KpScale: 12, KiScale: 12,
			MinOutput: 0, MaxOutput: 32767,
		},
		CurrentLoop: PIConfig{
			Kp: 16384, Ki: 600, KpScale: 13, KiScale: 13,
			MinOutput: 0, MaxOutput: 32767,
		},

		VdcAvgScaler:     6, // 64-sample DC bus average
		VacAvgSamples:    1280,
		RmsSquareSamples: 640,

		OutputVoltageReference:   27069,
		OutputOverVoltageLimit:   29491,
		InputUnderVoltageLimitLo: 3400,  // ~148 Vrms
		InputUnderVoltageLimitHi: 4300,  // ~166 Vrms
		InputOverVoltageLimitLo:  11000, // ~266 Vrms
		InputOverVoltageLimitHi:  12100, // ~279 Vrms

		RampStep: 1,
		RampRate: 3,

		VoltageLoopRate:       9,
		VoltageErrorGainBreak: 700,
		MinCurrentRefPeak:     655, // Q15(0.02)
		KMul:                  4096,

		PWMPeriod:          2000,
		MinDuty:            24,
		MaxDuty:            1900,
		CurrentIntegralMax: 27853, // Q15(0.85)

		SampleCorrection:        false,
		CurrentOffsetCorrection: true,
		Shaping:                 ShapingPowerControl,
	}
}

// Validate reports the first problem found in the configuration.
func (c *Config) Validate() error {
	if c.VdcAvgScaler > 15 {
		return fmt.Errorf("config: VdcAvgScaler=%d, expect 0-15", c.VdcAvgScaler)
	}
	if c.VacAvgSamples <= 0 || c.VacAvgSamples > 32768 {
		return fmt.Errorf("config: VacAvgSamples=%d, expect 1-32768", c.VacAvgSamples)
	}
	if c.RmsSquareSamples <= 0 || c.RmsSquareSamples > 32768 {
		return fmt.Errorf("config: RmsSquareSamples=%d, expect 1-32768", c.RmsSquareSamples)
	}
	for _, loop := range []struct {
		name string
		pi   PIConfig
	}{{"VoltageLoop", c.VoltageLoop}, {"CurrentLoop", c.CurrentLoop}} {
		if loop.pi.KpScale > 30 || loop.pi.KiScale > 30 {
			return fmt.Errorf("config: %s scales (%d, %d), expect 0-30",
				loop.name, loop.pi.KpScale, loop.pi.KiScale)
		}
		if loop.pi.MinOutput < 0 || loop.pi.MinOutput >= loop.pi.MaxOutput {
			return fmt.Errorf("config: %s output bounds [%d, %d], expect 0 <= min < max",
				loop.name, loop.pi.MinOutput, loop.pi.MaxOutput)
		}
	}
	if c.OutputVoltageReference <= 0 {
		return fmt.Errorf("config: OutputVoltageReference=%d, expect positive", c.OutputVoltageReference)
	}
	if c.OutputOverVoltageLimit <= c.OutputVoltageReference {
		return fmt.Errorf("config: OutputOverVoltageLimit=%d not above reference %d",
			c.OutputOverVoltageLimit, c.OutputVoltageReference)
	}
	if c.InputUnderVoltageLimitLo >= c.InputUnderVoltageLimitHi {
		return fmt.Errorf("config: under-voltage limits (%d, %d) lack hysteresis",
			c.InputUnderVoltageLimitLo, c.InputUnderVoltageLimitHi)
	}
	if c.InputOverVoltageLimitLo >= c.InputOverVoltageLimitHi {
		return fmt.Errorf("config: over-voltage limits (%d, %d) lack hysteresis",
			c.InputOverVoltageLimitLo, c.InputOverVoltageLimitHi)
	}
	if c.RampStep <= 0 {
		return fmt.Errorf("config: RampStep=%d, expect positive", c.RampStep)
	}
	if c.PWMPeriod == 0 || c.PWMPeriod > 32767 {
		return fmt.Errorf("config: PWMPeriod=%d, expect 1-32767", c.PWMPeriod)
	}
	if c.MinDuty > c.MaxDuty || c.MaxDuty > c.PWMPeriod {
		return fmt.Errorf("config: duty bounds [%d, %d] not within period %d",
			c.MinDuty, c.MaxDuty, c.PWMPeriod)
	}
	if c.CurrentIntegralMax < 0 || c.CurrentIntegralMax > 32767 {
		return fmt.Errorf("config: CurrentIntegralMax=%d, expect 0-32767", c.CurrentIntegralMax)
	}
	if c.MinCurrentRefPeak < 0 {
		return fmt.Errorf("config: MinCurrentRefPeak=%d, expect non-negative", c.MinCurrentRefPeak)
	}
	if c.KMul <= 0 {
		return fmt.Errorf("config: KMul=%d, expect positive", c.KMul)
	}
	if c.Shaping != ShapingPowerControl && c.Shaping != ShapingDirect {
		return fmt.Errorf("config: unknown shaping mode %d", c.Shaping)
	}
	if c.DebugDuty > c.PWMPeriod {
		return fmt.Errorf("config: DebugDuty=%d above period %d", c.DebugDuty, c.PWMPeriod)
	}
	return nil
}

// LoadConfig returns DefaultConfig with the "pfc" key of the loaded
// viper configuration applied on top, validated. Callers set up
// viper (config name and search paths) before calling, as the
// simulator binary does.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := viper.UnmarshalKey("pfc", &cfg); err != nil {
		return cfg, fmt.Errorf("could not unmarshal pfc configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
