package weather

// Scorer assigns a 0-100 reliability to a normalized reading.
type Scorer interface {
	Score(presence FieldPresence, d ProviderDescriptor) int
}

// HeuristicScorer rewards trusted providers and complete payloads.
// Identical inputs always produce identical scores.
type HeuristicScorer struct{}

const (
	baseScore         = 50
	priorityPivot     = 6
	priorityWeight    = 10
	temperatureWeight = 15
	humidityWeight    = 10
	windSpeedWeight   = 10
	forecastWeight    = 15
)

// Score implements Scorer. Only the final sum is clamped; the priority
// term may be negative on its own.
func (HeuristicScorer) Score(presence FieldPresence, d ProviderDescriptor) int {
	score := baseScore + (priorityPivot-d.Priority)*priorityWeight
	if presence.Temperature {
		score += temperatureWeight
	}
	if presence.Humidity {
		score += humidityWeight
	}
	if presence.WindSpeed {
		score += windSpeedWeight
	}
	if presence.Forecast {
		score += forecastWeight
	}
	return min(100, max(0, score))
}
