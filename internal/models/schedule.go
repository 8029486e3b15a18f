package models

import (
	"strings"
	"time"
)

// RegularPeriod is one weekly timetable entry taught by a teacher.
type RegularPeriod struct {
	TeacherID    string `db:"teacher_id" json:"teacherId"`
	DayOfWeek    string `db:"day_of_week" json:"dayOfWeek"`
	PeriodNumber int    `db:"period_number" json:"periodNumber"`
	Subject      string `db:"subject" json:"subject"`
	ClassName    string `db:"class_name" json:"className"`
}

// SlotCommitment is a (day, period) a teacher has promised to cover through
// an outstanding or accepted substitution offer.
type SlotCommitment struct {
	DayOfWeek    string      `db:"day_of_week" json:"dayOfWeek"`
	PeriodNumber int         `db:"period_number" json:"periodNumber"`
	VacancyDate  time.Time   `db:"vacancy_date" json:"vacancyDate"`
	Status       OfferStatus `db:"status" json:"status"`
}

var weekdayNames = map[time.Weekday]string{
	time.Sunday:    "sunday",
	time.Monday:    "monday",
	time.Tuesday:   "tuesday",
	time.Wednesday: "wednesday",
	time.Thursday:  "thursday",
	time.Friday:    "friday",
	time.Saturday:  "saturday",
}

var knownDays = map[string]bool{
	"sunday": true, "monday": true, "tuesday": true, "wednesday": true,
	"thursday": true, "friday": true, "saturday": true,
}

// NormalizeDay lowercases and validates a weekday name.
func NormalizeDay(raw string) (string, bool) {
	day := strings.ToLower(strings.TrimSpace(raw))
	return day, knownDays[day]
}

// DayOf returns the lowercase weekday name of date.
func DayOf(date time.Time) string {
	return weekdayNames[date.Weekday()]
}

// TruncateDate strips the clock component keeping the calendar date in UTC.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
