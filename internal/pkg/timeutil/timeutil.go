package timeutil

import "time"

func NowUnix() int64 {
	return time.Now().Unix()
}

// DayOf formats a unix timestamp as a YYYY-MM-DD calendar day in loc.
func DayOf(ts int64, loc *time.Location) string {
	return time.Unix(ts, 0).In(loc).Format("2006-01-02")
}

// HourOf returns the hour of day (0-23) of a unix timestamp in loc.
func HourOf(ts int64, loc *time.Location) int {
	return time.Unix(ts, 0).In(loc).Hour()
}

// StartOfDay returns the unix timestamp of midnight of ts's day in loc.
func StartOfDay(ts int64, loc *time.Location) int64 {
	t := time.Unix(ts, 0).In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc).Unix()
}

// StartOfWeek returns midnight of the Monday of ts's week in loc.
func StartOfWeek(ts int64, loc *time.Location) int64 {
	t := time.Unix(ts, 0).In(loc)
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return day.AddDate(0, 0, -(weekday - 1)).Unix()
}

// StartOfMonth returns midnight of the first day of ts's month in loc.
func StartOfMonth(ts int64, loc *time.Location) int64 {
	t := time.Unix(ts, 0).In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc).Unix()
}
