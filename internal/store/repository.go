package store

import (
	"context"
)

// StudentReader provides read-only access to enrolled students
type StudentReader interface {
	// Get retrieves a student by roll number, ErrNotFound when absent
	Get(ctx context.Context, rollNo string) (*Student, error)
	// ListByScope returns the students matching the scope, ordered by roll number
	ListByScope(ctx context.Context, scope Scope) ([]Student, error)
	// List returns all enrolled students ordered by roll number
	List(ctx context.Context) ([]Student, error)
	// Count returns the total number of enrolled students
	Count(ctx context.Context) (int, error)
	// FindNearest returns up to limit students closest to the query
	// embedding together with their cosine distances, nearest first
	FindNearest(ctx context.Context, embedding []float32, limit int) ([]Student, []float64, error)
}

// StudentWriter provides write access to enrolled students
type StudentWriter interface {
	StudentReader

	// Upsert inserts the student or fully replaces the row with the same
	// roll number (last write wins, no merge)
	Upsert(ctx context.Context, student Student) error

	// Delete removes a student and cascades to all attendance records with
	// that roll number; ErrNotFound when the student does not exist
	Delete(ctx context.Context, rollNo string) error

	// DeleteByScope removes every student matching the scope together with
	// their attendance history and returns how many students were removed;
	// ErrNotFound when no student matches
	DeleteByScope(ctx context.Context, scope Scope) (int, error)

	// Truncate removes all students and all attendance records
	Truncate(ctx context.Context) error
}

// AttendanceReader provides read-only access to attendance records
type AttendanceReader interface {
	// ListAttendance returns all records, newest first
	ListAttendance(ctx context.Context) ([]AttendanceRecord, error)
	// ListAttendanceByScope returns the records matching the scope, newest first
	ListAttendanceByScope(ctx context.Context, scope Scope) ([]AttendanceRecord, error)
	// CountAttendance returns the total number of attendance records
	CountAttendance(ctx context.Context) (int, error)
}

// AttendanceWriter provides write access to attendance records
type AttendanceWriter interface {
	AttendanceReader

	// Append writes the records in a single transaction
	Append(ctx context.Context, records []AttendanceRecord) error
}
