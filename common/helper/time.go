package helper

import "time"

// GetTimestamp returns the current unix time in seconds.
func GetTimestamp() int64 {
	return time.Now().Unix()
}

// CalcElapsedTime returns the milliseconds since start. Any positive duration
// reports at least 1 so fast requests are distinguishable from skipped ones.
func CalcElapsedTime(start time.Time) int64 {
	elapsed := time.Since(start)
	if ms := elapsed.Milliseconds(); ms > 0 || elapsed <= 0 {
		return ms
	}
	return 1
}
