package types

import "time"

// Windows FILETIME epoch: January 1, 1601 UTC
// Difference from Unix epoch (January 1, 1970) in 100-nanosecond intervals
const filetimeUnixDiff = 116444736000000000

// TimeToFiletime converts Go time.Time to Windows FILETIME, the number of
// 100-nanosecond intervals since January 1, 1601 UTC.
func TimeToFiletime(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixNano()/100) + filetimeUnixDiff
}

// FiletimeToTime converts Windows FILETIME to Go time.Time.
func FiletimeToTime(ft uint64) time.Time {
	if ft < filetimeUnixDiff {
		return time.Time{}
	}
	nsec := int64(ft-filetimeUnixDiff) * 100
	return time.Unix(0, nsec).UTC()
}

// TimeZoneMinutes returns the ServerTimeZone value for t: the offset of t's
// location from UTC in minutes, positive west of Greenwich.
func TimeZoneMinutes(t time.Time) int16 {
	_, offset := t.Zone()
	return int16(-offset / 60)
}
