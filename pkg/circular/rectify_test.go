package circular

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRectify_Wraparound(t *testing.T) {
	out := Rectify([]float64{179, 1, 2, 178}, 180)

	assert.InDeltaSlice(t, []float64{-1, 1, 2, -2}, out, 1e-9)
	assert.InDelta(t, 4, Range(out), 1e-9)
	assert.Equal(t, 2.0, BestShift([]float64{179, 1, 2, 178}, 180))
}

func TestRectify_AlreadyCompact(t *testing.T) {
	in := []float64{40, 42, 45, 41}
	out := Rectify(in, 180)

	assert.InDeltaSlice(t, in, out, 1e-9)
	assert.Equal(t, 0.0, BestShift(in, 180))
}

func TestRectify_NeverWidensRange(t *testing.T) {
	cases := [][]float64{
		{10, 170, 90},
		{0, 90, 179.5},
		{-30, 200, 5, 95},
		{359, 1, 0.5},
	}

	for _, in := range cases {
		out := Rectify(in, 180)
		assert.Len(t, out, len(in))
		assert.LessOrEqual(t, Range(out), Range(in)+1e-9, "input %v", in)
	}
}

func TestRectify_PreservesCongruence(t *testing.T) {
	in := []float64{179, 1, 2, 178, 90, -45}
	out := Rectify(in, 180)

	for i := range in {
		assert.InDelta(t, 0, pmod(out[i]-in[i], 180), 1e-9)
	}
}

func TestRectify_DoesNotModifyInput(t *testing.T) {
	in := []float64{179, 1}
	Rectify(in, 180)
	assert.Equal(t, []float64{179, 1}, in)
}

func TestRectify_Empty(t *testing.T) {
	assert.Empty(t, Rectify(nil, 180))
	assert.Equal(t, 0.0, Range(nil))
}

func TestRectify_BadPeriod(t *testing.T) {
	assert.Panics(t, func() { Rectify([]float64{1}, 0) })
}

func TestPmod(t *testing.T) {
	assert.Equal(t, 1.0, pmod(181, 180))
	assert.Equal(t, 179.0, pmod(-1, 180))
	assert.Equal(t, 0.0, pmod(180, 180))
}
