package prediction

// Confidence averages vibration consistency, temperature stability and data quality.
func Confidence(f Features) float64 {
	return (f.VibrationConsistency + f.TemperatureStability + f.DataQualityScore) / 3
}
