package weather

import (
	"fmt"
	"strings"
)

// FormatCurrent renders current conditions for a city lookup.
func FormatCurrent(c Current) string {
	return fmt.Sprintf(
		"🏙 Weather in %s:\n\n%s",
		c.City, formatConditions(c),
	)
}

// FormatCurrentAtLocation renders current conditions for a shared location,
// naming the resolved place.
func FormatCurrentAtLocation(c Current) string {
	return fmt.Sprintf(
		"📍 Weather at your location (%s):\n\n%s",
		c.City, formatConditions(c),
	)
}

func formatConditions(c Current) string {
	return fmt.Sprintf(
		"🌡 Temperature: %.1f°C\n"+
			"🌡 Feels like: %.1f°C\n"+
			"☁️ Conditions: %s\n"+
			"💧 Humidity: %.0f%%\n"+
			"🌪 Wind speed: %.1f m/s\n"+
			"🔵 Pressure: %.0f hPa",
		c.Temperature, c.FeelsLike, c.Description, c.Humidity, c.WindSpeed, c.Pressure,
	)
}

// FormatForecast renders the multi-day digest.
func FormatForecast(f Forecast) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📅 %d-day forecast for %s:\n\n", len(f.Days), f.City)
	for _, d := range f.Days {
		fmt.Fprintf(&b,
			"📆 %s\n"+
				"🌡 Temperature: %.1f°C – %.1f°C\n"+
				"☁️ %s\n"+
				"💧 Humidity: %.0f%%\n"+
				"🌪 Wind: %.1f m/s\n\n",
			d.Date, d.TempMin, d.TempMax, d.Description, d.Humidity, d.WindSpeed,
		)
	}
	return strings.TrimRight(b.String(), "\n")
}
