package types

import "time"

// Millis is a point in time stored as epoch milliseconds. Account documents
// written by earlier clients use this representation for every timestamp.
type Millis int64

// MillisOf converts t to epoch milliseconds.
func MillisOf(t time.Time) Millis { return Millis(t.UnixMilli()) }

// Time converts m back to a UTC time.Time.
func (m Millis) Time() time.Time { return time.UnixMilli(int64(m)).UTC() }

// IsZero reports whether m was never set.
func (m Millis) IsZero() bool { return m == 0 }

// Sub returns the duration m-other.
func (m Millis) Sub(other Millis) time.Duration {
	return time.Duration(int64(m)-int64(other)) * time.Millisecond
}

// Add returns m shifted by d, truncated to whole milliseconds.
func (m Millis) Add(d time.Duration) Millis {
	return m + Millis(d.Milliseconds())
}
