package pfcboost

import (
	"fmt"

	"github.com/voltlab/pfcboost/internal/q15"
)

// MovingAverage is a block-averaging filter over a fixed window of
// samples. Each Add accumulates one sample; when the window fills,
// the mean is published and the accumulator restarts. The published
// output holds between window completions, so the filter behaves as
// a decimating low-pass: the DC bus average updates once per window
// and is flat in between.
type MovingAverage struct {
	sum     int32
	samples int
	window  int
	output  int16
	ready   bool
}

// NewMovingAverage returns a filter averaging over window samples.
// It panics if window is not positive; window sizes are fixed at
// configuration time, so a bad one is a programming error.
func NewMovingAverage(window int) *MovingAverage {
	if window <= 0 {
		panic(fmt.Sprintf("NewMovingAverage: window=%d, expect positive", window))
	}
	return &MovingAverage{window: window}
}

// Add accumulates one sample, publishing a new mean every window-th
// call.
func (m *MovingAverage) Add(v int16) {
	m.sum += int32(v)
	m.samples++
	if m.samples >= m.window {
		m.output = int16(m.sum / int32(m.window))
		m.ready = true
		m.sum = 0
		m.samples = 0
	}
}

// Output returns the most recently published mean, zero until the
// first window completes.
func (m *MovingAverage) Output() int16 { return m.output }

// Ready reports whether at least one full window has been published
// since construction or the last Reset.
func (m *MovingAverage) Ready() bool { return m.ready }

// Reset discards the partial window and clears the ready latch. The
// last published output is retained.
func (m *MovingAverage) Reset() {
	m.sum = 0
	m.samples = 0
	m.ready = false
}

// MeanSquare computes the windowed mean of squares of a Q15 signal,
// along with the peak input seen during the window. Fed with the
// rectified line voltage, the published output approximates RMS² and
// drives both the reference-shaping divide and the input-voltage
// fault comparators.
type MeanSquare struct {
	sum        int32
	samples    int
	window     int
	output     int16
	peak       int16
	peakWindow int16
	ready      bool
}

// NewMeanSquare returns a mean-square filter over window samples.
// It panics if window is not positive.
func NewMeanSquare(window int) *MeanSquare {
	if window <= 0 {
		panic(fmt.Sprintf("NewMeanSquare: window=%d, expect positive", window))
	}
	return &MeanSquare{window: window}
}

// Add accumulates the Q15 square of one sample. Every window-th call
// publishes the mean of squares and the window's peak input, then
// restarts the accumulator.
func (m *MeanSquare) Add(v int16) {
	if v > m.peakWindow {
		m.peakWindow = v
	}
	m.sum += q15.MulScale(v, v, 15)
	m.samples++
	if m.samples >= m.window {
		m.output = int16(m.sum / int32(m.window))
		m.peak = m.peakWindow
		m.ready = true
		m.sum = 0
		m.samples = 0
		m.peakWindow = 0
	}
}

// Output returns the most recently published mean of squares, zero
// until the first window completes.
func (m *MeanSquare) Output() int16 { return m.output }

// Peak returns the largest input of the most recently completed
// window.
func (m *MeanSquare) Peak() int16 { return m.peak }

// Ready reports whether at least one full window has been published
// since construction or the last Reset.
func (m *MeanSquare) Ready() bool { return m.ready }

// Reset discards the partial window, the published peak, and the
// ready latch, keeping the last published output.
func (m *MeanSquare) Reset() {
	m.sum = 0
	m.samples = 0
	m.peak = 0
	m.peakWindow = 0
	m.ready = false
}

// Rectify returns |vac - offset|, the full-wave rectified line
// voltage about its measured DC offset. Arithmetic is int16 like the
// raw samples; offsets sit near midscale, so the difference cannot
// wrap in practice.
func Rectify(vac, offset int16) int16 {
	out := vac - offset
	if out < 0 {
		out = -out
	}
	return out
}
