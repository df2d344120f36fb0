package examples

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/core"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

// Forecast returns the temperature of city in °C.
type Forecast func(ctx context.Context, city string) (float64, error)

// RandomForecast makes up a temperature between 0 and 30.
func RandomForecast(context.Context, string) (float64, error) {
	return math.Round(rand.Float64()*3000) / 100, nil
}

// Weather is an agent that answers weather questions about the cities of
// its city entity.
func Weather(forecast Forecast) Builder {
	return func(a *core.Agent) error {
		s0, err := a.NewState("s0", core.Initial())
		if err != nil {
			return err
		}
		weatherState, err := a.NewState("weather_state")
		if err != nil {
			return err
		}

		city, err := a.NewEntity("city_entity", "A city name",
			types.Entry("Barcelona", "BCN", "barna"),
			types.Entry("Madrid"),
			types.Entry("Luxembourg", "LUX"),
		)
		if err != nil {
			return err
		}
		weatherIntent, err := a.NewIntent("weather_intent", []string{
			"what is the weather in CITY?",
			"weather in CITY",
		}, types.Param("city1", "CITY", city))
		if err != nil {
			return err
		}

		s0.SetBody(reply("Waiting..."))
		if err := s0.WhenIntentMatchedGoTo(weatherIntent, weatherState); err != nil {
			return err
		}
		weatherState.SetBody(func(ctx context.Context, s *core.Session) error {
			p := s.Prediction().Parameter("city1")
			if p == nil || p.Value == nil {
				return s.Reply(ctx, "Sorry, I didn't get the city")
			}
			name := fmt.Sprint(p.Value)
			temperature, err := forecast(ctx, name)
			if err != nil {
				return err
			}
			if err := s.Reply(ctx, fmt.Sprintf("The weather in %s is %.2f°C", name, temperature)); err != nil {
				return err
			}
			if temperature < 15 {
				return s.Reply(ctx, "🥶")
			}
			return s.Reply(ctx, "🥵")
		})
		return weatherState.GoTo(s0)
	}
}
