package weather

import (
	"math"
)

// Sentinel values marking fields that have never been synchronized.
const (
	UnknownCondition = -1
	UnknownMaxTemp   = math.MaxFloat64
	UnknownMinTemp   = -math.MaxFloat64
)

// Protocol-level keys shared by the producer and the display. The same keys
// are used for the event payload and for the persisted namespace.
const (
	Topic     = "/weather"
	Namespace = "weather"

	KeyConditionID = "weatherID"
	KeyMaxTemp     = "maxTemp"
	KeyMinTemp     = "minTemp"
)

// Snapshot is the full synchronized weather state. All three fields are
// written together; a partially updated Snapshot is never observable.
type Snapshot struct {
	ConditionID int     `json:"weatherID"`
	MaxTemp     float64 `json:"maxTemp"`
	MinTemp     float64 `json:"minTemp"`
}

// Unknown returns the snapshot a store reports before its first commit.
func Unknown() Snapshot {
	return Snapshot{
		ConditionID: UnknownCondition,
		MaxTemp:     UnknownMaxTemp,
		MinTemp:     UnknownMinTemp,
	}
}

// HasCondition reports whether a condition code has been synchronized.
func (s Snapshot) HasCondition() bool {
	return s.ConditionID != UnknownCondition
}

// HasTemperatures reports whether both temperatures have been synchronized.
func (s Snapshot) HasTemperatures() bool {
	return s.MaxTemp != UnknownMaxTemp && s.MinTemp != UnknownMinTemp
}

// Location is a place weather is reported for.
type Location struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

// Query returns the "city,country" form used by weather APIs.
func (l Location) Query() string {
	if l.Country == "" {
		return l.City
	}
	return l.City + "," + l.Country
}
