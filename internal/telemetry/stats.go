package telemetry

// Summarize computes min, max, mean and count in one pass. An empty input
// yields the zero Summary.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}

	s := Summary{Min: values[0], Max: values[0], Count: len(values)}
	var sum float64
	for _, v := range values {
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
		sum += v
	}
	s.Average = sum / float64(s.Count)

	return s
}
