package dto

import "time"

// AttendanceQuery captures list and export query parameters.
type AttendanceQuery struct {
	Status   string     `form:"status"`
	DeviceID string     `form:"device_id"`
	From     *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To       *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit    int        `form:"limit"`
	Format   string     `form:"format"`
}
