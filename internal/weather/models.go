package weather

import "time"

// Current is a normalized current-conditions reading for one place.
type Current struct {
	// City is the place name as resolved by the provider. For coordinate
	// lookups this is the only source of the city name.
	City        string
	Temperature float64
	FeelsLike   float64
	Description string
	Humidity    float64
	Pressure    float64
	WindSpeed   float64
}

// ForecastDay is one calendar date of a multi-day forecast. The values come
// from the first 3-hour bucket of that date in the provider series.
type ForecastDay struct {
	Date        string // "YYYY-MM-DD"
	TempMin     float64
	TempMax     float64
	Description string
	Humidity    float64
	WindSpeed   float64
}

// Forecast is up to five forecast days in order of appearance.
type Forecast struct {
	City string
	Days []ForecastDay
}

// Point is a single 3-hour temperature sample used for charting.
type Point struct {
	Time        time.Time
	Temperature float64
}
