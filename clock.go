package pinauth

import "time"

// TimeSource supplies the single timestamp authority for every expiry and
// lockout computation in the engine. Implementations may return a time in any
// location; the engine normalizes through [unixUTC] before storing or comparing,
// so a stored expiry is never compared against a differently-zoned "now".
type TimeSource interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// unixUTC is the normalization chokepoint: all persisted timestamps and all
// comparisons against them go through this function.
func unixUTC(t time.Time) int64 {
	return t.UTC().Unix()
}
