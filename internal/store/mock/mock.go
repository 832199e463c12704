// Package mock provides in-memory implementations of the store interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/klasio/rollcall/internal/store"
)

// MockStudentStore is a mock implementation of store.StudentWriter
type MockStudentStore struct {
	mu       sync.RWMutex
	students map[string]*store.Student

	// Attendance, when set, receives the cascade deletes that the SQL
	// backends run inside the same transaction
	Attendance *MockAttendanceStore

	// Track calls
	UpsertCalls        []store.Student
	DeleteCalls        []string
	DeleteByScopeCalls []store.Scope

	// Error injection
	GetError           error
	ListError          error
	CountError         error
	FindNearestError   error
	UpsertError        error
	DeleteError        error
	DeleteByScopeError error
	TruncateError      error
}

// NewMockStudentStore creates a new mock student store
func NewMockStudentStore() *MockStudentStore {
	return &MockStudentStore{
		students: make(map[string]*store.Student),
	}
}

// AddStudent seeds the mock store without going through Upsert
func (m *MockStudentStore) AddStudent(student store.Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[student.RollNo] = &student
}

// Get retrieves a student by roll number
func (m *MockStudentStore) Get(ctx context.Context, rollNo string) (*store.Student, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	student, ok := m.students[rollNo]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *student
	return &copied, nil
}

// ListByScope returns the students matching the scope, ordered by roll number
func (m *MockStudentStore) ListByScope(ctx context.Context, scope store.Scope) ([]store.Student, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []store.Student
	for _, student := range m.students {
		if scope.Matches(student) {
			results = append(results, *student)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].RollNo < results[j].RollNo })
	return results, nil
}

// List returns all enrolled students ordered by roll number
func (m *MockStudentStore) List(ctx context.Context) ([]store.Student, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []store.Student
	for _, student := range m.students {
		results = append(results, *student)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].RollNo < results[j].RollNo })
	return results, nil
}

// Count returns the total number of enrolled students
func (m *MockStudentStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.students), nil
}

// FindNearest returns up to limit students closest to the query embedding
func (m *MockStudentStore) FindNearest(ctx context.Context, embedding []float32, limit int) ([]store.Student, []float64, error) {
	if m.FindNearestError != nil {
		return nil, nil, m.FindNearestError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []store.Student
	for _, student := range m.students {
		results = append(results, *student)
	}
	sort.Slice(results, func(i, j int) bool {
		return store.CosineDistance(embedding, results[i].Embedding) <
			store.CosineDistance(embedding, results[j].Embedding)
	})
	if len(results) > limit {
		results = results[:limit]
	}

	distances := make([]float64, len(results))
	for i := range results {
		distances[i] = store.CosineDistance(embedding, results[i].Embedding)
	}
	return results, distances, nil
}

// Upsert inserts the student or fully replaces the row with the same roll number
func (m *MockStudentStore) Upsert(ctx context.Context, student store.Student) error {
	if m.UpsertError != nil {
		return m.UpsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls = append(m.UpsertCalls, student)
	m.students[student.RollNo] = &student
	return nil
}

// Delete removes a student and cascades to their attendance records
func (m *MockStudentStore) Delete(ctx context.Context, rollNo string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls = append(m.DeleteCalls, rollNo)
	if _, ok := m.students[rollNo]; !ok {
		return store.ErrNotFound
	}
	delete(m.students, rollNo)
	if m.Attendance != nil {
		m.Attendance.removeByRoll(rollNo)
	}
	return nil
}

// DeleteByScope removes every student matching the scope together with
// their attendance history
func (m *MockStudentStore) DeleteByScope(ctx context.Context, scope store.Scope) (int, error) {
	if m.DeleteByScopeError != nil {
		return 0, m.DeleteByScopeError
	}
	if err := scope.Validate(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteByScopeCalls = append(m.DeleteByScopeCalls, scope)

	var rolls []string
	for roll, student := range m.students {
		if scope.Matches(student) {
			rolls = append(rolls, roll)
		}
	}
	if len(rolls) == 0 {
		return 0, store.ErrNotFound
	}
	for _, roll := range rolls {
		delete(m.students, roll)
		if m.Attendance != nil {
			m.Attendance.removeByRoll(roll)
		}
	}
	return len(rolls), nil
}

// Truncate removes all students and all attendance records
func (m *MockStudentStore) Truncate(ctx context.Context) error {
	if m.TruncateError != nil {
		return m.TruncateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students = make(map[string]*store.Student)
	if m.Attendance != nil {
		m.Attendance.clear()
	}
	return nil
}

// MockAttendanceStore is a mock implementation of store.AttendanceWriter
type MockAttendanceStore struct {
	mu      sync.RWMutex
	records []store.AttendanceRecord
	nextID  int64

	// Track calls
	AppendCalls [][]store.AttendanceRecord

	// Error injection
	AppendError error
	ListError   error
	CountError  error
}

// NewMockAttendanceStore creates a new mock attendance store
func NewMockAttendanceStore() *MockAttendanceStore {
	return &MockAttendanceStore{nextID: 1}
}

// Append writes the records in one batch, assigning sequential IDs
func (m *MockAttendanceStore) Append(ctx context.Context, records []store.AttendanceRecord) error {
	if m.AppendError != nil {
		return m.AppendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendCalls = append(m.AppendCalls, records)
	for _, rec := range records {
		rec.ID = m.nextID
		m.nextID++
		m.records = append(m.records, rec)
	}
	return nil
}

// ListAttendance returns all records, newest first
func (m *MockAttendanceStore) ListAttendance(ctx context.Context) ([]store.AttendanceRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]store.AttendanceRecord, 0, len(m.records))
	for i := len(m.records) - 1; i >= 0; i-- {
		results = append(results, m.records[i])
	}
	return results, nil
}

// ListAttendanceByScope returns the records matching the scope, newest first
func (m *MockAttendanceStore) ListAttendanceByScope(ctx context.Context, scope store.Scope) ([]store.AttendanceRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []store.AttendanceRecord
	for i := len(m.records) - 1; i >= 0; i-- {
		if scope.MatchesRecord(&m.records[i]) {
			results = append(results, m.records[i])
		}
	}
	return results, nil
}

// CountAttendance returns the total number of attendance records
func (m *MockAttendanceStore) CountAttendance(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// Records returns a snapshot of the stored records in insertion order
func (m *MockAttendanceStore) Records() []store.AttendanceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]store.AttendanceRecord(nil), m.records...)
}

func (m *MockAttendanceStore) removeByRoll(rollNo string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var remaining []store.AttendanceRecord
	for _, rec := range m.records {
		if rec.RollNo != rollNo {
			remaining = append(remaining, rec)
		}
	}
	m.records = remaining
}

func (m *MockAttendanceStore) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
}

// Verify interface compliance
var _ store.StudentReader = (*MockStudentStore)(nil)
var _ store.StudentWriter = (*MockStudentStore)(nil)
var _ store.AttendanceReader = (*MockAttendanceStore)(nil)
var _ store.AttendanceWriter = (*MockAttendanceStore)(nil)
