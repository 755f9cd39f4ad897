package weather

import (
	"math"
	"sort"
	"strings"
	"time"
)

// FallbackReliability is the reliability of the fixed fallback reading.
const FallbackReliability = 20

// agreementBonus rewards a second source backing the primary one.
const agreementBonus = 10

// Fusion merges two or more readings, ranked by reliability descending,
// into one. It returns the merged reading and the sources it drew from.
type Fusion interface {
	Fuse(ranked []Reading) (Reading, []string)
}

// TopTwoBlend averages temperature and feels-like of the two best readings
// and takes everything else, forecast included, from the best one.
// Readings ranked below second place do not contribute.
type TopTwoBlend struct{}

// Fuse implements Fusion.
func (TopTwoBlend) Fuse(ranked []Reading) (Reading, []string) {
	primary, secondary := ranked[0], ranked[1]

	merged := primary
	merged.Current.Temperature = math.Round((primary.Current.Temperature + secondary.Current.Temperature) / 2)
	merged.Current.FeelsLike = math.Round((primary.Current.FeelsLike + secondary.Current.FeelsLike) / 2)
	merged.Reliability = min(100, primary.Reliability+agreementBonus)

	return merged, []string{primary.Source, secondary.Source}
}

// Aggregator turns one round's readings into a single public reading,
// degrading to the cache and then to a fixed fallback.
type Aggregator struct {
	cache  Cache
	fusion Fusion
	now    func() time.Time
}

// NewAggregator creates an Aggregator. A nil fusion selects TopTwoBlend.
func NewAggregator(cache Cache, fusion Fusion) *Aggregator {
	if fusion == nil {
		fusion = TopTwoBlend{}
	}
	return &Aggregator{
		cache:  cache,
		fusion: fusion,
		now:    time.Now,
	}
}

// Aggregate never fails: an empty round yields the best still-valid cached
// reading, or the fallback reading when the cache has nothing fresh.
func (a *Aggregator) Aggregate(readings []Reading) AggregatedReading {
	switch len(readings) {
	case 0:
		if a.cache != nil {
			if cached, ok := a.cache.BestValid(); ok {
				return relabel(cached, OriginCache, []string{cached.Source})
			}
		}
		return FallbackReading(a.now())
	case 1:
		return relabel(readings[0], OriginLive, []string{readings[0].Source})
	}

	ranked := make([]Reading, len(readings))
	copy(ranked, readings)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Reliability != ranked[j].Reliability {
			return ranked[i].Reliability > ranked[j].Reliability
		}
		return ranked[i].Source < ranked[j].Source
	})

	merged, sources := a.fusion.Fuse(ranked)
	return relabel(merged, OriginLive, sources)
}

func relabel(r Reading, origin Origin, sources []string) AggregatedReading {
	switch origin {
	case OriginCache:
		r.Source = "cache:" + strings.Join(sources, "+")
	case OriginFallback:
		r.Source = "fallback"
	default:
		r.Source = "aggregate:" + strings.Join(sources, "+")
	}
	return AggregatedReading{
		Reading: r,
		Sources: sources,
		Origin:  origin,
	}
}

// FallbackReading is the fixed reading served when no provider and no
// cache entry can answer. Its forecast covers five days.
func FallbackReading(now time.Time) AggregatedReading {
	pressure := 760.0
	visibility := 10.0

	descriptions := []Condition{ConditionRain, ConditionRain, ConditionCloudy, ConditionCloudy, ConditionClear}
	forecast := make([]ForecastDay, 0, len(descriptions))
	for offset, desc := range descriptions {
		forecast = append(forecast, ForecastDay{
			Date:           now.AddDate(0, 0, offset).Format("2006-01-02"),
			DayLabel:       DayLabel(now, offset),
			TemperatureMin: 10,
			TemperatureMax: 18,
			Description:    desc,
			Humidity:       70,
			WindSpeed:      3,
		})
	}

	reading := Reading{
		Timestamp: now,
		Current: Current{
			Temperature: 17,
			FeelsLike:   13,
			Description: ConditionRain,
			Humidity:    70,
			WindSpeed:   3,
			Pressure:    &pressure,
			Visibility:  &visibility,
		},
		Forecast:    forecast,
		Reliability: FallbackReliability,
	}
	return relabel(reading, OriginFallback, []string{})
}
