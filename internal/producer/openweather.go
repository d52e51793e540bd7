package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/wearable-weather-sync/internal/weather"
)

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
	errUnexpected  = errors.New("unexpected status code")
	errCircuitOpen = errors.New("circuit breaker open")
)

// retryPolicy controls exponential backoff between fetch attempts.
type retryPolicy struct {
	retries int
	base    time.Duration
	ceiling time.Duration
}

func (r retryPolicy) delay(attempt int) time.Duration {
	d := r.base << attempt
	if r.ceiling > 0 && (d > r.ceiling || d <= 0) {
		d = r.ceiling
	}
	return d
}

// OpenWeatherSource reads current conditions from OpenWeatherMap.
type OpenWeatherSource struct {
	apiKey  string
	baseURL string
	client  *http.Client
	retry   retryPolicy
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherSource(client *http.Client, apiKey string) *OpenWeatherSource {
	if client == nil {
		client = http.DefaultClient
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &OpenWeatherSource{
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/2.5/weather",
		client:  client,
		retry:   retryPolicy{retries: 3, base: 500 * time.Millisecond, ceiling: 5 * time.Second},
		circuit: cb,
	}
}

// Current returns today's condition code and temperature range in metric
// units for loc.
func (p *OpenWeatherSource) Current(ctx context.Context, loc weather.Location) (weather.Snapshot, error) {
	if p.apiKey == "" {
		return weather.Snapshot{}, fmt.Errorf("openweather api key is not configured")
	}

	values := url.Values{}
	values.Set("appid", p.apiKey)
	values.Set("units", "metric")
	values.Set("q", loc.Query())

	resp, err := p.fetch(ctx, p.baseURL+"?"+values.Encode())
	if err != nil {
		return weather.Snapshot{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Main struct {
			TempMin float64 `json:"temp_min"`
			TempMax float64 `json:"temp_max"`
		} `json:"main"`
		Weather []struct {
			ID int `json:"id"`
		} `json:"weather"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Snapshot{}, fmt.Errorf("decode openweather response: %w", err)
	}

	id := weather.UnknownCondition
	if len(payload.Weather) > 0 {
		id = payload.Weather[0].ID
	}

	return weather.Snapshot{
		ConditionID: id,
		MaxTemp:     payload.Main.TempMax,
		MinTemp:     payload.Main.TempMin,
	}, nil
}

// fetch GETs target through the breaker, backing off on rate limiting,
// server errors and transport failures. Other client errors fail at once.
func (p *OpenWeatherSource) fetch(ctx context.Context, target string) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}

		result, err := p.circuit.Execute(func() (interface{}, error) {
			return p.do(req)
		})
		if err == nil {
			return result.(*http.Response), nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		if errors.Is(err, errUnexpected) || attempt >= p.retry.retries {
			return nil, err
		}

		timer := time.NewTimer(p.retry.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (p *OpenWeatherSource) do(req *http.Request) (*http.Response, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		err = errRateLimited
	case resp.StatusCode >= 500:
		err = errServerError
	default:
		err = fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
	}
	resp.Body.Close()
	return nil, err
}
