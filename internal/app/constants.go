package app

import "time"

// Countdown defaults: three ticks, half a second apart.
const (
	DefaultCountdownFrom     = 3
	DefaultCountdownInterval = 500 * time.Millisecond
)

// Stale room sweep defaults.
const (
	DefaultRoomMaxAge    = time.Hour
	DefaultPurgeInterval = time.Hour
)

// Metric and analytics event names.
const (
	MetricRoomsCreated    = "rps_rooms_created"
	MetricRoundsResolved  = "rps_rounds_resolved"
	MetricIntentsRejected = "rps_intents_rejected"
	MetricRoomsActive     = "rps_rooms_active"

	AnalyticsRoundResolved = "round_resolved"
)
