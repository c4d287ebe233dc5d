// Package chart renders forecast series into PNG images sent to the chat.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	chartlib "github.com/wcharczuk/go-chart/v2"

	"github.com/Prost0Name/WeatherBot/internal/weather"
)

// ErrNotEnoughData is returned when the series is too short to plot.
var ErrNotEnoughData = errors.New("not enough data points for a chart")

// Temperature renders the 3-hour temperature series for a city as a PNG
// line chart.
func Temperature(city string, pts []weather.Point) ([]byte, error) {
	if len(pts) < 2 {
		return nil, ErrNotEnoughData
	}

	xs := make([]time.Time, 0, len(pts))
	ys := make([]float64, 0, len(pts))
	for _, p := range pts {
		xs = append(xs, p.Time)
		ys = append(ys, p.Temperature)
	}

	graph := chartlib.Chart{
		Title: fmt.Sprintf("Temperature in %s, °C", city),
		XAxis: chartlib.XAxis{
			ValueFormatter: chartlib.TimeValueFormatterWithFormat("02 Jan 15:04"),
		},
		Series: []chartlib.Series{
			chartlib.TimeSeries{
				Name:    city,
				XValues: xs,
				YValues: ys,
				Style: chartlib.Style{
					StrokeColor: chartlib.ColorBlue,
					FillColor:   chartlib.ColorBlue.WithAlpha(40),
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chartlib.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}
