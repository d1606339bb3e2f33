package q15

import (
	"testing"
)

func assertPanic(t *testing.T, f func()) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("The code did not panic")
		}
	}()
	f()
}

func TestMul(t *testing.T) {
	tests := []struct {
		a, b, want int16
	}{
		{0, 0, 0},
		{16384, 16384, 8192},
		{32767, 32767, 32766},
		{-16384, 16384, -8192},
		{-32768, 16384, -16384},
		{32735, 32767, 32734},
		{-32767, 32767, -32767}, // arithmetic shift floors negative products
	}
	for _, tc := range tests {
		if got := Mul(tc.a, tc.b); got != tc.want {
			t.Errorf("Mul(%d, %d) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestMulScale(t *testing.T) {
	tests := []struct {
		a, b  int16
		scale uint
		want  int32
	}{
		{16384, 16384, 18, 1024},
		{16384, 16384, 15, 8192},
		{-16384, 16384, 18, -1024},
		{24576, 20000, 12, 120000},
		{32767, 32767, 0, 1073676289},
	}
	for _, tc := range tests {
		if got := MulScale(tc.a, tc.b, tc.scale); got != tc.want {
			t.Errorf("MulScale(%d, %d, %d) = %d, want %d", tc.a, tc.b, tc.scale, got, tc.want)
		}
	}
	for _, tc := range []struct{ a, b int16 }{{12345, 6789}, {-12345, 6789}, {32767, -32768}} {
		if got, want := int16(MulScale(tc.a, tc.b, 15)), Mul(tc.a, tc.b); got != want {
			t.Errorf("MulScale(%d, %d, 15) = %d, want Mul result %d", tc.a, tc.b, got, want)
		}
	}
}

func TestDiv(t *testing.T) {
	tests := []struct {
		num, den, want int16
	}{
		{0, 5, 0},
		{1, 2, 16384},
		{3, 4, 24576},
		{16384, 32767, 16384},
		{-1, 2, -16384},
		{100, 100, Max},     // ratios >= 1 saturate
		{32767, 1, Max},     // far above range
		{-32768, 1, Min},    // far below range
		{-100, 100, -32768}, // exactly -1.0 is representable
	}
	for _, tc := range tests {
		if got := Div(tc.num, tc.den); got != tc.want {
			t.Errorf("Div(%d, %d) = %d, want %d", tc.num, tc.den, got, tc.want)
		}
	}
	assertPanic(t, func() { Div(1, 0) })
}

func TestSat(t *testing.T) {
	tests := []struct {
		v    int32
		want int16
	}{
		{0, 0},
		{123, 123},
		{32767, 32767},
		{32768, 32767},
		{400000, 32767},
		{-32768, -32768},
		{-32769, -32768},
		{-400000, -32768},
	}
	for _, tc := range tests {
		if got := Sat(tc.v); got != tc.want {
			t.Errorf("Sat(%d) = %d, want %d", tc.v, got, tc.want)
		}
	}
}

func TestFromFloat(t *testing.T) {
	tests := []struct {
		x    float64
		want int16
	}{
		{0, 0},
		{0.5, 16384},
		{-0.5, -16384},
		{0.999, 32735},
		{0.9999, 32764},
		{-1, -32768},
	}
	for _, tc := range tests {
		if got := FromFloat(tc.x); got != tc.want {
			t.Errorf("FromFloat(%v) = %d, want %d", tc.x, got, tc.want)
		}
	}
	assertPanic(t, func() { FromFloat(1.0) })
	assertPanic(t, func() { FromFloat(-1.0001) })
	assertPanic(t, func() { FromFloat(2) })
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		v    int16
		want float64
	}{
		{0, 0},
		{16384, 0.5},
		{-16384, -0.5},
		{-32768, -1},
	}
	for _, tc := range tests {
		if got := ToFloat(tc.v); got != tc.want {
			t.Errorf("ToFloat(%d) = %v, want %v", tc.v, got, tc.want)
		}
	}
}

func BenchmarkMul(b *testing.B) {
	var acc int16
	for i := 0; i < b.N; i++ {
		acc += Mul(int16(i), 24576)
	}
	_ = acc
}

func BenchmarkDiv(b *testing.B) {
	var acc int16
	for i := 0; i < b.N; i++ {
		acc += Div(int16(i&0x3fff), 32767)
	}
	_ = acc
}
