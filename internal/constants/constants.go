// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Attendance record formats
const (
	// DateLayout is the calendar date format stored on attendance records
	DateLayout = "2006-01-02"

	// TimeLayout is the wall clock format stored on attendance records,
	// millisecond precision
	TimeLayout = "15:04:05.000"

	// StampLayout is the second-resolution part of crop file timestamps;
	// a millisecond suffix is appended separately
	StampLayout = "20060102_150405"
)
