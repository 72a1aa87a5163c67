package policy

import "time"

// Clock supplies the wall time used to derive the work-hours feature.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system time.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// TestClock is pinned to CurrentTime. The check command also uses it to
// evaluate a URL at a chosen hour.
type TestClock struct {
	CurrentTime time.Time
}

func (t *TestClock) Now() time.Time {
	return t.CurrentTime
}

// Hour returns the local hour of c.Now().
func Hour(c Clock) int {
	return c.Now().Hour()
}

// WorkHours reports whether hour falls within [start, end], both inclusive.
func WorkHours(hour, start, end int) bool {
	return hour >= start && hour <= end
}
