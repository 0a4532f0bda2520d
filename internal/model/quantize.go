package model

import "math"

// quantScale maps the float embedding space [-1, 1] onto int8 [-127, 127].
// Symmetric quantization: zero-point is 0, -128 is never produced.
const quantScale = 127

// Quantize converts a float32 embedding to the stored int8 representation.
// Values outside [-1, 1] are clamped.
func Quantize(v []float32) []int8 {
	q := make([]int8, len(v))
	for i, f := range v {
		scaled := math.Round(float64(f) * quantScale)
		if scaled > 127 {
			scaled = 127
		} else if scaled < -127 {
			scaled = -127
		}
		q[i] = int8(scaled)
	}
	return q
}

// Dequantize converts a stored int8 embedding back to float32.
func Dequantize(q []int8) []float32 {
	v := make([]float32, len(q))
	for i, b := range q {
		v[i] = float32(b) / quantScale
	}
	return v
}
