package weather

import (
	"time"
)

// Condition represents a normalized high-level weather condition.
// Text that matches no known synonym is carried through as-is.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// Validity bounds for a normalized reading.
const (
	minTemperature = -60.0
	maxTemperature = 60.0
	maxHumidity    = 100.0
	maxWindSpeed   = 200.0
)

// MaxForecastDays is the number of daily entries a reading keeps.
const MaxForecastDays = 7

// ProviderDescriptor describes one configured weather source.
// Lower Priority means a more trusted source.
type ProviderDescriptor struct {
	Name        string `json:"name" yaml:"name"`
	Locator     string `json:"locator" yaml:"locator"`
	Instruction string `json:"instruction" yaml:"instruction"`
	Priority    int    `json:"priority" yaml:"priority"`
	Enabled     bool   `json:"enabled" yaml:"enabled"`
}

// RawResponse is the untouched text one provider returned for one fetch.
type RawResponse struct {
	Provider  string
	Text      string
	FetchedAt time.Time
}

// Current holds the present conditions of a reading.
// Pressure is in mmHg and Visibility in km when set.
type Current struct {
	Temperature   float64   `json:"temperature"`
	FeelsLike     float64   `json:"feelsLike"`
	Description   Condition `json:"description"`
	Humidity      float64   `json:"humidity"`
	WindSpeed     float64   `json:"windSpeed"`
	WindDirection string    `json:"windDirection,omitempty"`
	Pressure      *float64  `json:"pressure,omitempty"`
	Visibility    *float64  `json:"visibility,omitempty"`
}

// ForecastDay is one daily forecast entry. Date and DayLabel are always
// derived from the entry's position, never from provider text.
type ForecastDay struct {
	Date           string    `json:"date"`
	DayLabel       string    `json:"dayLabel"`
	TemperatureMin float64   `json:"temperatureMin"`
	TemperatureMax float64   `json:"temperatureMax"`
	Description    Condition `json:"description"`
	Humidity       float64   `json:"humidity"`
	WindSpeed      float64   `json:"windSpeed"`
}

// Reading is one provider's normalized and scored view of the weather.
type Reading struct {
	Source      string        `json:"source"`
	Timestamp   time.Time     `json:"timestamp"`
	Current     Current       `json:"current"`
	Forecast    []ForecastDay `json:"forecast"`
	Reliability int           `json:"reliability"`
}

// Valid reports whether the reading's current conditions are physically plausible.
func (r Reading) Valid() bool {
	c := r.Current
	return c.Temperature > minTemperature && c.Temperature < maxTemperature &&
		c.Humidity >= 0 && c.Humidity <= maxHumidity &&
		c.WindSpeed >= 0 && c.WindSpeed < maxWindSpeed
}

// Origin tells where an aggregated reading came from.
type Origin string

const (
	OriginLive     Origin = "live"
	OriginCache    Origin = "cache"
	OriginFallback Origin = "fallback"
)

// AggregatedReading is the engine's public output. Source carries a
// synthetic label; Sources lists the contributing providers in rank order.
type AggregatedReading struct {
	Reading
	Sources []string `json:"sources"`
	Origin  Origin   `json:"origin"`
}

// CacheEntry is a cached reading with its expiry.
type CacheEntry struct {
	Reading   Reading   `json:"reading"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SourceStatus is a read-only snapshot of one provider for display.
type SourceStatus struct {
	Name        string     `json:"name"`
	Enabled     bool       `json:"enabled"`
	LastUpdate  *time.Time `json:"lastUpdate,omitempty"`
	Reliability int        `json:"reliability"`
	Fresh       bool       `json:"fresh"`
}
