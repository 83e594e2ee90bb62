package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/petrijr/toolflow/pkg/api"
)

const (
	UnitsCelsius    = "celsius"
	UnitsFahrenheit = "fahrenheit"
)

// Weather is a mock weather lookup. It never leaves the process and always
// reports the same sunny day.
type Weather struct{}

var _ api.Tool = Weather{}

func NewWeather() Weather { return Weather{} }

func (Weather) Name() string        { return "weather" }
func (Weather) Description() string { return "Gets the current weather for a given location" }

func (w Weather) Schema() api.ToolSchema {
	return api.ToolSchema{
		Name:        w.Name(),
		Description: w.Description(),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"location": map[string]any{
					"type":        "string",
					"description": "The city and state, e.g. San Francisco, CA",
				},
				"units": map[string]any{
					"type":        "string",
					"enum":        []string{UnitsCelsius, UnitsFahrenheit},
					"description": "Temperature units",
					"default":     UnitsCelsius,
				},
			},
			"required": []string{"location"},
		},
	}
}

// Validate requires a non-empty location.
func (Weather) Validate(params map[string]any) bool {
	loc, ok := params["location"].(string)
	return ok && strings.TrimSpace(loc) != ""
}

func (Weather) Execute(ctx context.Context, params map[string]any) (any, error) {
	location, _ := params["location"].(string)
	units, _ := params["units"].(string)
	if units == "" {
		units = UnitsCelsius
	}

	temperature := 72
	if units == UnitsCelsius {
		temperature = 22
	}
	return fmt.Sprintf("Weather in %s: %d°%s, Sunny, Humidity: 65%%",
		location, temperature, strings.ToUpper(units[:1])), nil
}
