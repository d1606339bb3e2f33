package pfcboost

import (
	"fmt"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// Trace column indices, one row per control cycle. Kept stable so
// NumPy-side analysis scripts can index by position.
const (
	TraceColVac = iota
	TraceColRectVac
	TraceColIL
	TraceColVdc
	TraceColVdcAverage
	TraceColRmsSquare
	TraceColVoltageRef
	TraceColVoltagePIOut
	TraceColCurrentRef
	TraceColDuty
	TraceColState
	TraceColFaults
	traceColumns
)

// TraceRecorder accumulates one row of observable control values per
// cycle, for post-run analysis and NumPy export.
type TraceRecorder struct {
	data []float64 // row-major
	rows int
}

// NewTraceRecorder returns an empty recorder.
func NewTraceRecorder() *TraceRecorder {
	return &TraceRecorder{}
}

// traceRow flattens a snapshot into the column order above.
func traceRow(s CycleSnapshot) [traceColumns]float64 {
	return [traceColumns]float64{
		float64(s.Sample.Vac),
		float64(s.RectifiedVac),
		float64(s.IL),
		float64(s.Sample.Vdc),
		float64(s.VdcAverage),
		float64(s.RmsSquare),
		float64(s.VoltageReference),
		float64(s.VoltagePIOutput),
		float64(s.CurrentReference),
		float64(s.Duty),
		float64(s.State),
		float64(s.Faults),
	}
}

// Record appends one cycle's snapshot as a trace row.
func (t *TraceRecorder) Record(s CycleSnapshot) {
	row := traceRow(s)
	t.data = append(t.data, row[:]...)
	t.rows++
}

// Rows returns the number of recorded cycles.
func (t *TraceRecorder) Rows() int { return t.rows }

// Column returns a copy of one column across all recorded rows.
func (t *TraceRecorder) Column(col int) []float64 {
	if col < 0 || col >= traceColumns {
		panic(fmt.Sprintf("TraceRecorder.Column(%d): column out of range", col))
	}
	out := make([]float64, t.rows)
	for i := 0; i < t.rows; i++ {
		out[i] = t.data[i*traceColumns+col]
	}
	return out
}

// Matrix returns the recorded trace as a rows x columns dense
// matrix. It panics if nothing was recorded.
func (t *TraceRecorder) Matrix() *mat.Dense {
	if t.rows == 0 {
		panic("TraceRecorder.Matrix: no rows recorded")
	}
	return mat.NewDense(t.rows, traceColumns, t.data)
}

// WriteNpy writes the trace as a 2-D NumPy array file.
func (t *TraceRecorder) WriteNpy(path string) error {
	if t.rows == 0 {
		return fmt.Errorf("trace: no rows recorded, nothing to write")
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("trace: could not create %s: %v", path, err)
	}
	if err := npyio.Write(f, t.Matrix()); err != nil {
		f.Close()
		return fmt.Errorf("trace: could not write %s: %v", path, err)
	}
	return f.Close()
}
