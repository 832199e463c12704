package store

import (
	"fmt"
	"time"
)

// Student is an enrolled identity together with its canonical face embedding.
type Student struct {
	RollNo      string
	Name        string
	ClassName   string
	Section     string
	Subject     string // empty when enrollment was class+section wide
	FacePath    string // folder the enrollment samples came from
	Embedding   []float32
	SampleCount int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AttendanceRecord is one append-only attendance event. Date and Time use
// the layouts from the constants package.
type AttendanceRecord struct {
	ID         int64
	RollNo     string
	Name       string
	ClassName  string
	Section    string
	Subject    string
	Similarity float64
	SessionID  string
	Date       string
	Time       string
}

// Scope restricts an operation to a class, optionally narrowed further by
// section and subject. An empty field means "any".
type Scope struct {
	ClassName string
	Section   string
	Subject   string
}

// Validate rejects filter combinations that cannot address any rows.
func (s Scope) Validate() error {
	if s.ClassName == "" {
		return fmt.Errorf("%w: class name is required", ErrInvalidScope)
	}
	if s.Subject != "" && s.Section == "" {
		return fmt.Errorf("%w: subject filter requires a section", ErrInvalidScope)
	}
	return nil
}

// Matches reports whether the student falls inside the scope filter.
func (s Scope) Matches(student *Student) bool {
	if student.ClassName != s.ClassName {
		return false
	}
	if s.Section != "" && student.Section != s.Section {
		return false
	}
	if s.Subject != "" && student.Subject != s.Subject {
		return false
	}
	return true
}

// MatchesRecord reports whether the attendance record falls inside the
// scope filter.
func (s Scope) MatchesRecord(rec *AttendanceRecord) bool {
	if rec.ClassName != s.ClassName {
		return false
	}
	if s.Section != "" && rec.Section != s.Section {
		return false
	}
	if s.Subject != "" && rec.Subject != s.Subject {
		return false
	}
	return true
}
