package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/klasio/rollcall/internal/store"
)

// StudentRepository provides MySQL-backed storage for enrolled students.
type StudentRepository struct {
	pool *Pool
	dim  int
}

// NewStudentRepository creates a student repository. Embeddings passed to
// Upsert must have exactly dim values.
func NewStudentRepository(pool *Pool, dim int) *StudentRepository {
	return &StudentRepository{pool: pool, dim: dim}
}

const studentColumns = `roll_no, name, class_name, section, subject, face_path,
	       embedding, sample_count, created_at, updated_at`

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func scopeFilter(scope store.Scope) (string, []any) {
	where := "class_name = ?"
	args := []any{scope.ClassName}

	if scope.Section != "" {
		where += " AND section = ?"
		args = append(args, scope.Section)
	}
	if scope.Subject != "" {
		where += " AND subject = ?"
		args = append(args, scope.Subject)
	}
	return where, args
}

func (r *StudentRepository) scanStudent(scanner interface{ Scan(...any) error }) (store.Student, error) {
	var s store.Student
	var subject, facePath sql.NullString
	var blob []byte

	err := scanner.Scan(
		&s.RollNo,
		&s.Name,
		&s.ClassName,
		&s.Section,
		&subject,
		&facePath,
		&blob,
		&s.SampleCount,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return s, fmt.Errorf("scan student: %w", err)
	}

	embedding, err := store.DecodeEmbedding(blob, r.dim)
	if err != nil {
		return s, fmt.Errorf("student %s: %w", s.RollNo, err)
	}
	s.Embedding = embedding

	if subject.Valid {
		s.Subject = subject.String
	}
	if facePath.Valid {
		s.FacePath = facePath.String
	}
	return s, nil
}

func (r *StudentRepository) scanStudents(rows *sql.Rows) ([]store.Student, error) {
	var students []store.Student
	for rows.Next() {
		s, err := r.scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return students, nil
}

// Get retrieves a student by roll number.
func (r *StudentRepository) Get(ctx context.Context, rollNo string) (*store.Student, error) {
	row := r.pool.db.QueryRowContext(ctx,
		"SELECT "+studentColumns+" FROM students WHERE roll_no = ?", rollNo)

	s, err := r.scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("student %s: %w", rollNo, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns all enrolled students ordered by roll number.
func (r *StudentRepository) List(ctx context.Context) ([]store.Student, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		"SELECT "+studentColumns+" FROM students ORDER BY roll_no")
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	return r.scanStudents(rows)
}

// ListByScope returns the students matching the scope, ordered by roll number.
func (r *StudentRepository) ListByScope(ctx context.Context, scope store.Scope) ([]store.Student, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	where, args := scopeFilter(scope)
	rows, err := r.pool.db.QueryContext(ctx,
		"SELECT "+studentColumns+" FROM students WHERE "+where+" ORDER BY roll_no", args...)
	if err != nil {
		return nil, fmt.Errorf("query students by scope: %w", err)
	}
	defer rows.Close()

	return r.scanStudents(rows)
}

// Count returns the total number of enrolled students.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM students").Scan(&count); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return count, nil
}

// FindNearest scans all students and ranks them by cosine distance. Without
// a vector index this is O(N), fine for roster-sized tables.
func (r *StudentRepository) FindNearest(
	ctx context.Context, embedding []float32, limit int,
) ([]store.Student, []float64, error) {
	students, err := r.List(ctx)
	if err != nil {
		return nil, nil, err
	}

	type ranked struct {
		student  store.Student
		distance float64
	}
	candidates := make([]ranked, 0, len(students))
	for _, s := range students {
		candidates = append(candidates, ranked{s, store.CosineDistance(embedding, s.Embedding)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	if limit > len(candidates) {
		limit = len(candidates)
	}
	nearest := make([]store.Student, 0, limit)
	distances := make([]float64, 0, limit)
	for _, c := range candidates[:limit] {
		nearest = append(nearest, c.student)
		distances = append(distances, c.distance)
	}
	return nearest, distances, nil
}

// Upsert inserts the student or fully replaces the row with the same roll
// number.
func (r *StudentRepository) Upsert(ctx context.Context, student store.Student) error {
	if len(student.Embedding) != r.dim {
		return fmt.Errorf("%w: embedding has %d values, want %d",
			store.ErrDimensionMismatch, len(student.Embedding), r.dim)
	}

	query := `
		INSERT INTO students (roll_no, name, class_name, section, subject, face_path,
		                      embedding, sample_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name),
			class_name = VALUES(class_name),
			section = VALUES(section),
			subject = VALUES(subject),
			face_path = VALUES(face_path),
			embedding = VALUES(embedding),
			sample_count = VALUES(sample_count)
	`

	_, err := r.pool.db.ExecContext(ctx, query,
		student.RollNo,
		student.Name,
		student.ClassName,
		student.Section,
		nullString(student.Subject),
		nullString(student.FacePath),
		store.EncodeEmbedding(student.Embedding),
		student.SampleCount,
	)
	if err != nil {
		return fmt.Errorf("upsert student %s: %w", student.RollNo, err)
	}
	return nil
}

// Delete removes a student and all attendance records with that roll number
// in one transaction.
func (r *StudentRepository) Delete(ctx context.Context, rollNo string) error {
	tx, err := r.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM students WHERE roll_no = ?", rollNo)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("student %s: %w", rollNo, store.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM attendance WHERE roll_no = ?", rollNo); err != nil {
		return fmt.Errorf("delete attendance for %s: %w", rollNo, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// DeleteByScope removes every student matching the scope together with
// their attendance history. Returns the number of students removed.
func (r *StudentRepository) DeleteByScope(ctx context.Context, scope store.Scope) (int, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}

	where, args := scopeFilter(scope)

	tx, err := r.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	attendanceQuery := "DELETE FROM attendance WHERE roll_no IN (SELECT roll_no FROM students WHERE " + where + ")"
	if _, err := tx.ExecContext(ctx, attendanceQuery, args...); err != nil {
		return 0, fmt.Errorf("delete attendance by scope: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM students WHERE "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete students by scope: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return 0, fmt.Errorf("no students match scope: %w", store.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return int(affected), nil
}

// Truncate removes all students and all attendance records. MySQL TRUNCATE
// commits implicitly, so the two statements run back to back.
func (r *StudentRepository) Truncate(ctx context.Context) error {
	if _, err := r.pool.db.ExecContext(ctx, "TRUNCATE attendance"); err != nil {
		return fmt.Errorf("truncate attendance: %w", err)
	}
	if _, err := r.pool.db.ExecContext(ctx, "TRUNCATE students"); err != nil {
		return fmt.Errorf("truncate students: %w", err)
	}
	return nil
}

// Verify interface compliance.
var _ store.StudentReader = (*StudentRepository)(nil)
var _ store.StudentWriter = (*StudentRepository)(nil)
