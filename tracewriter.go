package pfcboost

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strings"
)

// npy headers are padded to a multiple of 64 bytes, and the row count
// gets a fixed 10-digit field so it can be patched in place as the
// file grows.
const (
	npyHeaderUnit  = 64
	npyCountDigits = 10
)

// TraceWriter streams trace rows straight to a NumPy .npy file, one
// Record per control cycle. The header carries a placeholder row
// count that is patched on every flush, so the file is a readable 2-D
// float64 array even if the run is cut short. Unlike TraceRecorder it
// holds only a small buffer, which is what a multi-minute run wants.
// Write errors stick and come back from Close.
type TraceWriter struct {
	f       *os.File
	buf     []byte
	rows    int
	countAt int64
	err     error
}

// NewTraceWriter creates path and writes the placeholder npy header.
func NewTraceWriter(path string) (*TraceWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("trace: could not create %s: %v", path, err)
	}

	// Preheader: magic, format version 1.0, then the 2-byte
	// little-endian length of the padded dict that follows.
	pre := []byte{0x93, 'N', 'U', 'M', 'P', 'Y', 0x01, 0x00, 0, 0}
	dict := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': (%-*d, %d), }",
		npyCountDigits, 0, traceColumns)
	total := ((len(pre) + len(dict) + npyHeaderUnit) / npyHeaderUnit) * npyHeaderUnit
	padded := make([]byte, total-len(pre))
	for i := range padded {
		padded[i] = ' '
	}
	copy(padded, dict)
	padded[len(padded)-1] = '\n'
	pre[8] = byte(len(padded) % 256)
	pre[9] = byte(len(padded) / 256)

	if _, err := f.Write(pre); err != nil {
		f.Close()
		return nil, fmt.Errorf("trace: could not write header to %s: %v", path, err)
	}
	if _, err := f.Write(padded); err != nil {
		f.Close()
		return nil, fmt.Errorf("trace: could not write header to %s: %v", path, err)
	}
	return &TraceWriter{
		f:       f,
		countAt: int64(len(pre) + strings.Index(dict, "(") + 1),
	}, nil
}

// Record appends one cycle. After a write error it does nothing.
func (w *TraceWriter) Record(s CycleSnapshot) {
	if w.err != nil {
		return
	}
	row := traceRow(s)
	var b [8]byte
	for _, v := range row {
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
		w.buf = append(w.buf, b[:]...)
	}
	w.rows++
	if len(w.buf) >= 1<<18 {
		w.err = w.flush()
	}
}

// flush appends the buffered rows and patches the row count in the
// header. WriteAt leaves the append offset where it was.
func (w *TraceWriter) flush() error {
	if len(w.buf) > 0 {
		if _, err := w.f.Write(w.buf); err != nil {
			return err
		}
		w.buf = w.buf[:0]
	}
	count := fmt.Sprintf("%-*d", npyCountDigits, w.rows)
	if _, err := w.f.WriteAt([]byte(count), w.countAt); err != nil {
		return err
	}
	return nil
}

// Rows returns the number of rows recorded so far.
func (w *TraceWriter) Rows() int { return w.rows }

// Close flushes the remaining rows, patches the final row count, and
// closes the file.
func (w *TraceWriter) Close() error {
	if w.err != nil {
		w.f.Close()
		return w.err
	}
	if err := w.flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
