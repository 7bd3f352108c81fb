package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockTime_ParseAndFormat(t *testing.T) {
	ct, err := ParseClockTime("10:15")
	require.NoError(t, err)
	assert.Equal(t, 615, ct.Minutes())
	assert.Equal(t, "10:15", ct.String())

	ct, err = ParseClockTime("09:30:00")
	require.NoError(t, err)
	assert.Equal(t, NewClockTime(9, 30), ct)

	_, err = ParseClockTime("25:00")
	assert.Error(t, err)
}

func TestClockTime_Scan(t *testing.T) {
	var ct ClockTime
	require.NoError(t, ct.Scan([]byte("14:45:00")))
	assert.Equal(t, NewClockTime(14, 45), ct)

	require.NoError(t, ct.Scan("08:05:00.000000"))
	assert.Equal(t, NewClockTime(8, 5), ct)

	require.NoError(t, ct.Scan(time.Date(0, 1, 1, 16, 20, 0, 0, time.UTC)))
	assert.Equal(t, NewClockTime(16, 20), ct)

	v, err := ct.Value()
	require.NoError(t, err)
	assert.Equal(t, "16:20:00", v)
}

func TestDate_JSONRoundTrip(t *testing.T) {
	var payload struct {
		Date Date      `json:"date"`
		Time ClockTime `json:"time"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2024-03-05","time":"10:00"}`), &payload))
	assert.Equal(t, Date{Year: 2024, Month: time.March, Day: 5}, payload.Date)
	assert.Equal(t, NewClockTime(10, 0), payload.Time)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-03-05","time":"10:00"}`, string(out))
}

func TestDate_ScanAndValue(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-12-31", d.String())

	require.NoError(t, d.Scan([]byte("2025-01-02T00:00:00Z")))
	assert.Equal(t, "2025-01-02", d.String())

	v, err := Date{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestPage_Normalize(t *testing.T) {
	p := Page{Page: 0, Limit: 500}.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, MaxPageLimit, p.Limit)

	assert.Equal(t, 40, Page{Page: 3, Limit: 20}.Offset())
	assert.Equal(t, DefaultPageLimit, Page{}.Normalize().Limit)
}

func TestFormatPatientNumber(t *testing.T) {
	assert.Equal(t, "PAT000001", FormatPatientNumber(1))
	assert.Equal(t, "PAT123456", FormatPatientNumber(123456))
}

func TestAppointmentStatus_Terminal(t *testing.T) {
	assert.True(t, AppointmentStatusCompleted.Terminal())
	assert.True(t, AppointmentStatusCancelled.Terminal())
	assert.True(t, AppointmentStatusNoShow.Terminal())
	assert.False(t, AppointmentStatusConfirmed.Terminal())
	assert.False(t, AppointmentStatus("bogus").Valid())
}
