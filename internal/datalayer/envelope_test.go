package datalayer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/wearable-weather-sync/internal/datasync"
	"github.com/i474232898/wearable-weather-sync/internal/weather"
)

func TestDecode_KeepsIntegerConditionCodes(t *testing.T) {
	batch, err := Decode([]byte(`{"events":[
		{"path":"/weather","data":{"weatherID":800,"maxTemp":25,"minTemp":15.5}},
		{"path":"/settings","data":{"units":"metric"}}
	]}`))
	require.NoError(t, err)
	require.Len(t, batch, 2)

	assert.Equal(t, weather.Topic, batch[0].Path)
	assert.Equal(t, json.Number("800"), batch[0].Data[weather.KeyConditionID])

	snap, err := batch[0].Snapshot()
	require.NoError(t, err)
	assert.Equal(t, weather.Snapshot{ConditionID: 800, MaxTemp: 25, MinTemp: 15.5}, snap)
	assert.Equal(t, "/settings", batch[1].Path)
}

func TestDecode_AcceptsWholeFloatConditionCodes(t *testing.T) {
	batch, err := Decode([]byte(`{"events":[
		{"path":"/weather","data":{"weatherID":800.0,"maxTemp":25,"minTemp":15}},
		{"path":"/weather","data":{"weatherID":800.5,"maxTemp":25,"minTemp":15}}
	]}`))
	require.NoError(t, err)
	require.Len(t, batch, 2)

	snap, err := batch[0].Snapshot()
	require.NoError(t, err)
	assert.Equal(t, weather.Snapshot{ConditionID: 800, MaxTemp: 25, MinTemp: 15}, snap)

	_, err = batch[1].Snapshot()
	assert.ErrorIs(t, err, datasync.ErrWrongType)
}

func TestDecode_RejectsBadEnvelopes(t *testing.T) {
	for name, payload := range map[string]string{
		"not json":     `weather`,
		"no events":    `{}`,
		"missing path": `{"events":[{"data":{"weatherID":800}}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(payload))
			assert.Error(t, err)
		})
	}
}

func TestEncode_ProducesDecodableEnvelope(t *testing.T) {
	want := weather.Snapshot{ConditionID: 502, MaxTemp: 18.25, MinTemp: 11}
	data, err := Encode(datasync.Batch{datasync.NewWeatherEvent(want)})
	require.NoError(t, err)

	batch, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	got, err := batch[0].Snapshot()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
