package history

import (
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-monitor/internal/weather"
)

func sample() weather.AggregatedReading {
	return weather.AggregatedReading{
		Reading: weather.Reading{
			Source:    "aggregate:alpha+beta",
			Timestamp: time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC),
			Current: weather.Current{
				Temperature: 12,
				Humidity:    60,
				WindSpeed:   3,
				Description: weather.ConditionCloudy,
			},
			Reliability: 90,
		},
		Sources: []string{"alpha", "beta"},
		Origin:  weather.OriginLive,
	}
}

func TestInsertQuery(t *testing.T) {
	logger, _ := test.NewNullLogger()
	repo := NewPostgresRepository(nil, logger)

	query, args, err := repo.insertQuery(sample())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(query, "INSERT INTO aggregated_readings "), query)
	assert.Contains(t, query, "$9")
	assert.NotContains(t, query, "?")

	require.Len(t, args, 9)
	assert.Equal(t, time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC), args[0])
	assert.Equal(t, "aggregate:alpha+beta", args[1])
	assert.Equal(t, "live", args[2])
	assert.Equal(t, 12.0, args[3])
	assert.Equal(t, "cloudy", args[6])
	assert.Equal(t, 90, args[7])

	var payload weather.AggregatedReading
	require.NoError(t, json.Unmarshal([]byte(args[8].(string)), &payload))
	assert.Equal(t, []string{"alpha", "beta"}, payload.Sources)
}

func TestSubscriberLogsFailures(t *testing.T) {
	db, err := sql.Open("postgres", "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1")
	require.NoError(t, err)

	logger, hook := test.NewNullLogger()
	repo := NewPostgresRepository(db, logger)
	defer repo.Close()

	assert.NotPanics(t, func() { repo.Subscriber()(sample()) })

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "history", entry.Data["component"])
}
