package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/i474232898/wearable-weather-sync/internal/datalayer"
	"github.com/i474232898/wearable-weather-sync/internal/producer"
	"github.com/i474232898/wearable-weather-sync/internal/weather"
)

type PublishCmd struct {
	WeatherID *int          `name:"weather-id" help:"Condition code to publish instead of fetching from OpenWeatherMap."`
	MaxTemp   *float64      `name:"max-temp" help:"Maximum temperature (required with --weather-id)."`
	MinTemp   *float64      `name:"min-temp" help:"Minimum temperature (required with --weather-id)."`
	Timeout   time.Duration `default:"30s" help:"Overall deadline for fetching and publishing."`
}

func (p *PublishCmd) Run(g *Globals) error {
	cfg, log := g.Config, g.Log

	ctx, cancel := context.WithTimeout(context.Background(), p.Timeout)
	defer cancel()

	conn, err := datalayer.Dial(cfg.NATSURL, "weather-producer")
	if err != nil {
		return err
	}
	defer conn.Close()

	httpClient := &http.Client{Timeout: 10 * time.Second}
	prod := producer.New(
		producer.NewOpenWeatherSource(httpClient, cfg.OpenWeatherAPIKey),
		datalayer.NewPublisher(conn, cfg.Subject),
		log.Named("producer"),
	)

	if p.WeatherID != nil {
		if p.MaxTemp == nil || p.MinTemp == nil {
			return errors.New("--max-temp and --min-temp are required with --weather-id")
		}
		return prod.Publish(ctx, weather.Snapshot{
			ConditionID: *p.WeatherID,
			MaxTemp:     *p.MaxTemp,
			MinTemp:     *p.MinTemp,
		})
	}

	if cfg.Location.City == "" {
		return errors.New("WEATHER_LOCATION_CITY must be set to fetch current weather")
	}
	_, err = prod.Sync(ctx, cfg.Location)
	return err
}
