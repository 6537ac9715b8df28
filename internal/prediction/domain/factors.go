package prediction

// Factor descriptions, in reporting order.
const (
	FactorHighVibration          = "high vibration"
	FactorTemperatureFluctuation = "temperature fluctuation"
	FactorHighMoisture           = "high moisture"
	FactorPressureVariation      = "pressure variation"
)

// Factor thresholds are independent of the classifier tiers.
const (
	factorVibrationAbove   = 50.0
	factorTemperatureAbove = 10.0
	factorMoistureAbove    = 80.0
	factorPressureAbove    = 5.0
)

// ContributingFactors lists the qualitative factors breached by f.
func ContributingFactors(f Features) []string {
	factors := []string{}
	if f.Vibration.Mean > factorVibrationAbove {
		factors = append(factors, FactorHighVibration)
	}
	if f.TemperatureVariation > factorTemperatureAbove {
		factors = append(factors, FactorTemperatureFluctuation)
	}
	if f.Moisture.Mean > factorMoistureAbove {
		factors = append(factors, FactorHighMoisture)
	}
	if f.PressureChanges > factorPressureAbove {
		factors = append(factors, FactorPressureVariation)
	}
	return factors
}
