package models

// WeatherReading is the current conditions plus a five-point hourly outlook for a location.
type WeatherReading struct {
	Location    string           `json:"location"`
	Temperature float64          `json:"temperature"`
	Unit        string           `json:"unit"` // "C" or "F"
	Condition   string           `json:"condition"`
	Hourly      []HourlyForecast `json:"hourly"`
}

type HourlyForecast struct {
	Time        string  `json:"time"`
	Temperature float64 `json:"temperature"`
	Condition   string  `json:"condition"`
}

// HourlyPoints is the number of hourly forecast entries a reading carries.
const HourlyPoints = 5
