package models

import "time"

// ScheduleWindow is one row of the class timetable.
type ScheduleWindow struct {
	ID              string    `db:"id" json:"id"`
	DayOfWeek       int       `db:"day_of_week" json:"day_of_week"`
	TimeStart       string    `db:"time_start" json:"time_start"`
	TimeEnd         string    `db:"time_end" json:"time_end"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	SubjectName     *string   `db:"subject_name" json:"subject_name,omitempty"`
	ClassName       *string   `db:"class_name" json:"class_name,omitempty"`
	IsActive        bool      `db:"is_active" json:"is_active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Reconciliation is the schedule reconciler's decision for one session.
type Reconciliation struct {
	IsAbsent   bool             `json:"is_absent"`
	Status     AttendanceStatus `json:"status"`
	ScheduleID *string          `json:"schedule_id,omitempty"`
	Schedule   *ScheduleWindow  `json:"schedule,omitempty"`
}
