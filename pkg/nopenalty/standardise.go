package nopenalty

// Standardise rescales v linearly from [srcMin, srcMax] to [dstMin, dstMax].
// A degenerate source or target range yields dstMax.
func Standardise(v, srcMin, srcMax, dstMin, dstMax float64) float64 {
	if srcMax == srcMin || dstMin == dstMax {
		return dstMax
	}
	factor := (v - srcMin) / (srcMax - srcMin)
	return factor*(dstMax-dstMin) + dstMin
}
