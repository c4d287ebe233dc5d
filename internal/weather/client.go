package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
)

const (
	defaultCurrentURL  = "https://api.openweathermap.org/data/2.5/weather"
	defaultForecastURL = "https://api.openweathermap.org/data/2.5/forecast"

	// The forecast endpoint returns 3-hour buckets; five distinct dates is
	// the digest depth.
	maxForecastDays = 5
)

var (
	// ErrCityNotFound means the provider could not resolve the requested
	// city or coordinates.
	ErrCityNotFound = errors.New("city not found")
	// ErrProvider covers every other provider failure: bad status,
	// malformed payload, transport error, open circuit.
	ErrProvider = errors.New("weather provider failure")
)

// Client queries the OpenWeatherMap HTTP API.
type Client struct {
	apiKey      string
	currentURL  string
	forecastURL string
	httpClient  *http.Client
	circuit     *gobreaker.CircuitBreaker
}

// NewClient creates a Client with the production endpoints.
func NewClient(httpClient *http.Client, apiKey string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
	return &Client{
		apiKey:      apiKey,
		currentURL:  defaultCurrentURL,
		forecastURL: defaultForecastURL,
		httpClient:  httpClient,
		circuit:     cb,
	}
}

// NewClientWithBaseURLs is used by tests to point the client at a stub server.
func NewClientWithBaseURLs(httpClient *http.Client, apiKey, currentURL, forecastURL string) *Client {
	c := NewClient(httpClient, apiKey)
	c.currentURL = currentURL
	c.forecastURL = forecastURL
	return c
}

// currentPayload is the subset of the /weather response we consume.
type currentPayload struct {
	Name    string `json:"name"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  float64 `json:"humidity"`
		Pressure  float64 `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

// forecastPayload is the subset of the /forecast response we consume.
type forecastPayload struct {
	List []struct {
		DtTxt string `json:"dt_txt"`
		Main  struct {
			Temp     float64 `json:"temp"`
			TempMin  float64 `json:"temp_min"`
			TempMax  float64 `json:"temp_max"`
			Humidity float64 `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
	} `json:"list"`
	City struct {
		Name string `json:"name"`
	} `json:"city"`
}

// CurrentByCity returns current conditions for a city name. A successful
// lookup is also how city names are validated.
func (c *Client) CurrentByCity(ctx context.Context, city string) (Current, error) {
	values := url.Values{}
	values.Set("q", city)
	return c.fetchCurrent(ctx, values)
}

// CurrentByCoords returns current conditions for a coordinate pair; the
// returned Current.City carries the provider-resolved place name.
func (c *Client) CurrentByCoords(ctx context.Context, lat, lon float64) (Current, error) {
	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	return c.fetchCurrent(ctx, values)
}

func (c *Client) fetchCurrent(ctx context.Context, values url.Values) (Current, error) {
	var payload currentPayload
	if err := c.get(ctx, c.currentURL, values, &payload); err != nil {
		return Current{}, err
	}

	cur := Current{
		City:        payload.Name,
		Temperature: payload.Main.Temp,
		FeelsLike:   payload.Main.FeelsLike,
		Humidity:    payload.Main.Humidity,
		Pressure:    payload.Main.Pressure,
		WindSpeed:   payload.Wind.Speed,
	}
	if len(payload.Weather) > 0 {
		cur.Description = payload.Weather[0].Description
	}
	return cur, nil
}

// Forecast returns up to five forecast days for a city. Each 3-hour series
// is bucketed by calendar date; the first bucket of a date represents the
// whole day, matching the digest the bot has always sent.
func (c *Client) Forecast(ctx context.Context, city string) (Forecast, error) {
	payload, err := c.fetchForecast(ctx, city)
	if err != nil {
		return Forecast{}, err
	}

	f := Forecast{City: payload.City.Name}
	if f.City == "" {
		f.City = city
	}

	seen := make(map[string]bool)
	for _, item := range payload.List {
		date, _, ok := splitDtTxt(item.DtTxt)
		if !ok || seen[date] {
			continue
		}
		seen[date] = true

		day := ForecastDay{
			Date:      date,
			TempMin:   item.Main.TempMin,
			TempMax:   item.Main.TempMax,
			Humidity:  item.Main.Humidity,
			WindSpeed: item.Wind.Speed,
		}
		if len(item.Weather) > 0 {
			day.Description = item.Weather[0].Description
		}
		f.Days = append(f.Days, day)
		if len(f.Days) == maxForecastDays {
			break
		}
	}

	return f, nil
}

// Series returns the raw 3-hour temperature points for charting.
func (c *Client) Series(ctx context.Context, city string) ([]Point, error) {
	payload, err := c.fetchForecast(ctx, city)
	if err != nil {
		return nil, err
	}

	pts := make([]Point, 0, len(payload.List))
	for _, item := range payload.List {
		ts, err := time.Parse("2006-01-02 15:04:05", item.DtTxt)
		if err != nil {
			continue
		}
		pts = append(pts, Point{Time: ts, Temperature: item.Main.Temp})
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("%w: empty forecast series", ErrProvider)
	}
	return pts, nil
}

func (c *Client) fetchForecast(ctx context.Context, city string) (forecastPayload, error) {
	values := url.Values{}
	values.Set("q", city)

	var payload forecastPayload
	if err := c.get(ctx, c.forecastURL, values, &payload); err != nil {
		return forecastPayload{}, err
	}
	return payload, nil
}

// get performs one GET through the circuit breaker and decodes the body.
func (c *Client) get(ctx context.Context, baseURL string, values url.Values, out any) error {
	values.Set("appid", c.apiKey)
	values.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?"+values.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}

	result, err := c.circuit.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, ErrCityNotFound
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decode payload: %v", err)
		}
		return nil, nil
	})
	_ = result

	if errors.Is(err, ErrCityNotFound) {
		return ErrCityNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}
	return nil
}

// splitDtTxt extracts the date part of a "YYYY-MM-DD HH:MM:SS" stamp.
func splitDtTxt(s string) (date, clock string, ok bool) {
	if len(s) < 11 || s[10] != ' ' {
		return "", "", false
	}
	return s[:10], s[11:], true
}
