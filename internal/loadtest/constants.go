package loadtest

import "time"

// HTTP status code constants.
const (
	StatusOK                 = 200
	StatusServiceUnavailable = 503
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	SettleDelay          = 2 * time.Second
	PercentageMultiplier = 100
)
