package weather

import (
	"math"
	"strings"

	"github.com/i474232898/weather-monitor/internal/common"
)

// conditionSynonyms is checked in order; the first rule with a matching
// substring wins, so more specific phenomena come first.
var conditionSynonyms = []struct {
	condition Condition
	synonyms  []string
}{
	{ConditionStorm, []string{"thunder", "storm", "lightning", "гроз"}},
	{ConditionSnow, []string{"blizzard", "snow", "sleet", "flurr", "снег", "метел", "вьюг"}},
	{ConditionRain, []string{"shower", "rain", "drizzle", "дожд", "ливень", "морос"}},
	{ConditionMist, []string{"haze", "fog", "mist", "smoke", "туман", "дымк", "мгла"}},
	{ConditionCloudy, []string{"overcast", "cloud", "пасмурно", "облач"}},
	{ConditionClear, []string{"sun", "clear", "fair", "ясно", "солн"}},
}

// CanonicalCondition maps free-text condition phrases onto a canonical
// label. Unmatched text is returned unchanged.
func CanonicalCondition(text string) Condition {
	text = strings.TrimSpace(text)
	if text == "" {
		return ConditionUnknown
	}
	for _, rule := range conditionSynonyms {
		if common.HasAny(text, rule.synonyms...) {
			return rule.condition
		}
	}
	return Condition(text)
}

// ConditionFromWMOCode maps a WMO weather interpretation code, as served
// by Open-Meteo, onto a canonical label.
func ConditionFromWMOCode(code int) Condition {
	switch {
	case code == 0:
		return ConditionClear
	case code >= 1 && code <= 3:
		return ConditionCloudy
	case code == 45 || code == 48:
		return ConditionMist
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return ConditionSnow
	case code >= 95:
		return ConditionStorm
	default:
		return ConditionUnknown
	}
}

var compassPoints = []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// CompassDirection converts a wind bearing in degrees to an 8-point label.
func CompassDirection(deg float64) string {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return compassPoints[int(math.Round(deg/45))%len(compassPoints)]
}
