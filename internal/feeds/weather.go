package feeds

import (
	"context"
	"errors"
	"fmt"

	"github.com/kjstillabower/glancecast/internal/completion"
	"github.com/kjstillabower/glancecast/internal/models"
	"github.com/kjstillabower/glancecast/internal/schema"
)

// WeatherUnavailableMsg is shown when the model's reply cannot be used.
const WeatherUnavailableMsg = "Could not get weather data from AI."

// Weather asks the completion model for current conditions and a five-hour outlook.
type Weather struct {
	model completion.Model
}

func NewWeather(model completion.Model) *Weather {
	return &Weather{model: model}
}

func weatherPrompt(location string) string {
	return fmt.Sprintf("Get the current weather and a 5-hour forecast for %s.", location)
}

// Fetch returns a contract-valid reading or an error. There is no fallback reading.
func (w *Weather) Fetch(ctx context.Context, location string) (Outcome[models.WeatherReading], error) {
	raw, err := w.model.Generate(ctx, completion.Request{
		Name:     "weather",
		Prompt:   weatherPrompt(location),
		Contract: schema.Weather(),
	})
	if err != nil {
		if errors.Is(err, completion.ErrEmptyOutput) {
			return Outcome[models.WeatherReading]{}, &PublicError{Msg: WeatherUnavailableMsg, Err: fmt.Errorf("%w: %w", ErrUpstreamMalformed, err)}
		}
		return Outcome[models.WeatherReading]{}, fmt.Errorf("%w: weather for %s: %w", ErrUpstreamUnavailable, location, err)
	}

	reading, err := schema.Decode[models.WeatherReading](schema.Weather(), raw)
	if err != nil {
		return Outcome[models.WeatherReading]{}, &PublicError{Msg: WeatherUnavailableMsg, Err: fmt.Errorf("%w: %w", ErrUpstreamMalformed, err)}
	}
	return fresh(reading), nil
}
