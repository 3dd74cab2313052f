package bloch

// Sample is the piecewise-constant drive over one propagation interval.
type Sample struct {
	Amplitude  float64 // rad/s
	Phase      float64 // rad
	FreqOffset float64 // Hz
	Gradient   float64 // mT/m
}

// Free reports whether the sample carries no RF.
func (s Sample) Free() bool {
	return s.Amplitude == 0
}
