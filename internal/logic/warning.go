package logic

// Thresholds are the fixed warning limits. A value strictly above High or
// strictly below Low raises the corresponding bit.
type Thresholds struct {
	HighTemp     float32
	LowTemp      float32
	HighHumidity float32
	LowHumidity  float32
}

// DefaultThresholds are the limits the node ships with.
var DefaultThresholds = Thresholds{
	HighTemp:     30,
	LowTemp:      25,
	HighHumidity: 80,
	LowHumidity:  60,
}

// Evaluate maps a reading to a warning mask and reports whether it differs from
// prior. An invalid reading yields only WarnSensorFault: thresholds are not
// checked against untrustworthy values.
func Evaluate(r SensorReading, prior WarningMask, t Thresholds) (WarningMask, bool) {
	var mask WarningMask

	if !r.Valid {
		mask = WarnSensorFault
		return mask, mask != prior
	}

	if r.Temperature > t.HighTemp {
		mask |= WarnHighTemp
	}
	if r.Temperature < t.LowTemp {
		mask |= WarnLowTemp
	}
	if r.Humidity > t.HighHumidity {
		mask |= WarnHighHumidity
	}
	if r.Humidity < t.LowHumidity {
		mask |= WarnLowHumidity
	}

	return mask, mask != prior
}
