package weather

import (
	"time"
)

// FieldPresence records which scored fields a provider payload actually
// carried before any coercion.
type FieldPresence struct {
	Temperature bool
	Humidity    bool
	WindSpeed   bool
	Forecast    bool
}

func fahrenheitToCelsius(f float64) float64 { return (f - 32) * 5 / 9 }

func kphToMS(k float64) float64 { return k / 3.6 }

func mphToMS(m float64) float64 { return m * 0.44704 }

// hpaToMMHg converts only values that look like hectopascals; readings
// already in mmHg sit well below 900.
func hpaToMMHg(p float64) float64 {
	if p > 900 {
		return p * 0.75
	}
	return p
}

// metresToKm converts only values that look like metres.
func metresToKm(v float64) float64 {
	if v > 100 {
		return v / 1000
	}
	return v
}

var (
	temperatureFields = []field{
		at("current.temperature"), at("current.temp"), at("current.temp_c"),
		conv("current.temp_f", fahrenheitToCelsius),
		at("current_weather.temperature"),
		at("main.temp"), at("temperature"), at("temp"), at("temp_c"),
		conv("temp_f", fahrenheitToCelsius),
	}
	feelsLikeFields = []field{
		at("current.feelsLike"), at("current.feels_like"), at("current.feelslike_c"),
		conv("current.feelslike_f", fahrenheitToCelsius),
		at("main.feels_like"), at("feelsLike"), at("feels_like"), at("feelslike_c"),
	}
	humidityFields = []field{
		at("current.humidity"), at("main.humidity"), at("humidity"),
	}
	windSpeedFields = []field{
		at("current.windSpeed"), at("current.wind_speed"), at("current.wind.speed"),
		conv("current.wind_kph", kphToMS), conv("current.wind_mph", mphToMS),
		conv("current_weather.windspeed", kphToMS),
		at("wind.speed"), at("windSpeed"), at("wind_speed"),
		conv("wind_kph", kphToMS), conv("wind_mph", mphToMS),
	}
	windDegreeFields = []field{
		at("current.windDeg"), at("current.wind_deg"), at("current.wind_degree"),
		at("current.wind.deg"), at("current_weather.winddirection"),
		at("wind.deg"), at("windDeg"), at("wind_deg"),
	}
	weatherCodeFields = []field{
		at("current_weather.weathercode"), at("current.weather_code"),
	}
	pressureFields = []field{
		conv("current.pressure", hpaToMMHg), conv("current.pressure_mb", hpaToMMHg),
		conv("main.pressure", hpaToMMHg), conv("pressure", hpaToMMHg),
	}
	visibilityFields = []field{
		conv("current.visibility", metresToKm), at("current.vis_km"),
		conv("visibility", metresToKm), at("vis_km"),
	}
	descriptionPaths = []string{
		"current.description", "current.condition.text", "current.condition",
		"current.conditions", "weather.0.description", "weather.0.main",
		"description", "condition", "conditions",
	}
	forecastPaths = []string{"forecast", "forecast.forecastday", "daily", "days"}

	forecastMinFields = []field{
		at("temperatureMin"), at("temperature.min"), at("tempMin"), at("temp_min"),
		at("temp.min"), at("min"), at("low"), at("day.mintemp_c"),
	}
	forecastMaxFields = []field{
		at("temperatureMax"), at("temperature.max"), at("tempMax"), at("temp_max"),
		at("temp.max"), at("max"), at("high"), at("day.maxtemp_c"),
	}
	forecastHumidityFields = []field{
		at("humidity"), at("day.avghumidity"),
	}
	forecastWindFields = []field{
		at("windSpeed"), at("wind_speed"), at("wind.speed"), at("wind"),
		conv("day.maxwind_kph", kphToMS),
	}
	forecastDescriptionPaths = []string{
		"description", "conditions", "condition", "condition.text",
		"day.condition.text", "weather.0.description",
	}
)

// Normalize turns one raw provider response into a canonical reading.
// It returns false when the text holds no parseable payload or when the
// resulting reading fails the validity bounds.
func Normalize(raw RawResponse, d ProviderDescriptor) (Reading, FieldPresence, bool) {
	p, ok := extractPayload(raw.Text)
	if !ok {
		return Reading{}, FieldPresence{}, false
	}

	var presence FieldPresence
	current := Current{}
	current.Temperature, presence.Temperature = p.number(temperatureFields...)
	current.FeelsLike, _ = p.number(feelsLikeFields...)
	current.Humidity, presence.Humidity = p.number(humidityFields...)
	current.WindSpeed, presence.WindSpeed = p.number(windSpeedFields...)
	current.Description = CanonicalCondition(p.text(descriptionPaths...))
	if current.Description == ConditionUnknown {
		if code, ok := p.number(weatherCodeFields...); ok {
			current.Description = ConditionFromWMOCode(int(code))
		}
	}
	current.Pressure = p.optionalNumber(pressureFields...)
	current.Visibility = p.optionalNumber(visibilityFields...)
	if deg, ok := p.number(windDegreeFields...); ok {
		current.WindDirection = CompassDirection(deg)
	}

	items, hasForecast := p.list(forecastPaths...)
	presence.Forecast = hasForecast

	reading := Reading{
		Source:    d.Name,
		Timestamp: raw.FetchedAt,
		Current:   current,
		Forecast:  normalizeForecast(items, raw.FetchedAt),
	}

	if !reading.Valid() {
		return Reading{}, presence, false
	}
	return reading, presence, true
}

func normalizeForecast(items []any, base time.Time) []ForecastDay {
	if len(items) > MaxForecastDays {
		items = items[:MaxForecastDays]
	}

	days := make([]ForecastDay, 0, len(items))
	for offset, item := range items {
		obj, _ := item.(map[string]any)
		entry := payload(obj)

		day := ForecastDay{
			Date:        base.AddDate(0, 0, offset).Format("2006-01-02"),
			DayLabel:    DayLabel(base, offset),
			Description: CanonicalCondition(entry.text(forecastDescriptionPaths...)),
		}
		day.TemperatureMin, _ = entry.number(forecastMinFields...)
		day.TemperatureMax, _ = entry.number(forecastMaxFields...)
		day.Humidity, _ = entry.number(forecastHumidityFields...)
		day.WindSpeed, _ = entry.number(forecastWindFields...)
		days = append(days, day)
	}
	return days
}

// DayLabel names a forecast day by its offset from base: "Today",
// "Tomorrow", then the weekday's short name.
func DayLabel(base time.Time, offset int) string {
	switch offset {
	case 0:
		return "Today"
	case 1:
		return "Tomorrow"
	default:
		return base.AddDate(0, 0, offset).Weekday().String()[:3]
	}
}
