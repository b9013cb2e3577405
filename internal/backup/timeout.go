package backup

import (
	"math"
	"time"
)

// Timeout curve constants, calibrated against observed server timings.
// Creation waits on the server's copy machinery and grows steeper with
// size than the transfer leg, which only moves bytes.
const (
	timeoutBase  = 60.0
	timeoutScale = 15.0
	createExp    = 1.40
	uploadExp    = 1.30
	sizeDivisor  = 1e6
)

func estimate(size int64, exponent float64) time.Duration {
	if size <= 0 {
		return time.Duration(timeoutBase) * time.Second
	}

	seconds := timeoutBase + math.Round(timeoutScale*math.Pow(float64(size)/sizeDivisor, exponent))
	if seconds < timeoutBase {
		seconds = timeoutBase
	}

	return time.Duration(seconds * float64(time.Second))
}

// CreateTimeout is the budget for the server to produce a backup of a
// resource of the given size.
func CreateTimeout(size int64) time.Duration {
	return estimate(size, createExp)
}

// UploadTimeout is the budget for one transfer leg (download or upload)
// of a backup of the given size.
func UploadTimeout(size int64) time.Duration {
	return estimate(size, uploadExp)
}
