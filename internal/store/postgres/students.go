package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/klasio/rollcall/internal/store"
	"github.com/pgvector/pgvector-go"
)

// hnswEfSearch is the pgvector candidate pool size for nearest neighbor
// queries. Higher values improve recall but slow down search.
const hnswEfSearch = 100

// StudentRepository provides PostgreSQL-backed storage for enrolled students.
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

// nullString maps empty strings to SQL NULL.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// scopeFilter builds a WHERE clause narrowing by class, then section, then
// subject, in the order the filters are supplied.
func scopeFilter(scope store.Scope) (string, []any) {
	where := "class_name = $1"
	args := []any{scope.ClassName}

	if scope.Section != "" {
		args = append(args, scope.Section)
		where += fmt.Sprintf(" AND section = $%d", len(args))
	}
	if scope.Subject != "" {
		args = append(args, scope.Subject)
		where += fmt.Sprintf(" AND subject = $%d", len(args))
	}
	return where, args
}

func scanStudent(scanner interface{ Scan(...any) error }, extraDest ...any) (store.Student, error) {
	var s store.Student
	var vec pgvector.Vector
	var subject, facePath sql.NullString

	dest := make([]any, 0, 10+len(extraDest))
	dest = append(dest,
		&s.RollNo,
		&s.Name,
		&s.ClassName,
		&s.Section,
		&subject,
		&facePath,
		&vec,
		&s.SampleCount,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	dest = append(dest, extraDest...)

	if err := scanner.Scan(dest...); err != nil {
		return s, fmt.Errorf("scan student: %w", err)
	}

	s.Embedding = vec.Slice()
	if subject.Valid {
		s.Subject = subject.String
	}
	if facePath.Valid {
		s.FacePath = facePath.String
	}
	return s, nil
}

func scanStudents(rows *sql.Rows) ([]store.Student, error) {
	var students []store.Student
	for rows.Next() {
		s, err := scanStudent(rows)
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
	row := r.pool.QueryRow(ctx, "SELECT "+studentColumns+" FROM students WHERE roll_no = $1", rollNo)

	s, err := scanStudent(row)
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
	rows, err := r.pool.Query(ctx, "SELECT "+studentColumns+" FROM students ORDER BY roll_no")
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	return scanStudents(rows)
}

// ListByScope returns the students matching the scope, ordered by roll number.
func (r *StudentRepository) ListByScope(ctx context.Context, scope store.Scope) ([]store.Student, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	where, args := scopeFilter(scope)
	query := "SELECT " + studentColumns + " FROM students WHERE " + where + " ORDER BY roll_no"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query students by scope: %w", err)
	}
	defer rows.Close()

	return scanStudents(rows)
}

// Count returns the total number of enrolled students.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM students").Scan(&count); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return count, nil
}

// FindNearest returns up to limit students closest to the query embedding
// by cosine distance, nearest first.
func (r *StudentRepository) FindNearest(
	ctx context.Context, embedding []float32, limit int,
) ([]store.Student, []float64, error) {
	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", hnswEfSearch)); err != nil {
		return nil, nil, fmt.Errorf("set ef_search: %w", err)
	}

	query := `
		SELECT ` + studentColumns + `,
		       embedding <=> $1::vector AS distance
		FROM students
		ORDER BY distance
		LIMIT $2
	`

	rows, err := tx.QueryContext(ctx, query, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, nil, fmt.Errorf("query nearest students: %w", err)
	}
	defer rows.Close()

	var students []store.Student
	var distances []float64
	for rows.Next() {
		var dist float64
		s, err := scanStudent(rows, &dist)
		if err != nil {
			return nil, nil, err
		}
		students = append(students, s)
		distances = append(distances, dist)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate nearest students: %w", err)
	}

	return students, distances, nil
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
		VALUES ($1, $2, $3, $4, $5, $6, $7::vector, $8)
		ON CONFLICT (roll_no) DO UPDATE SET
			name = EXCLUDED.name,
			class_name = EXCLUDED.class_name,
			section = EXCLUDED.section,
			subject = EXCLUDED.subject,
			face_path = EXCLUDED.face_path,
			embedding = EXCLUDED.embedding,
			sample_count = EXCLUDED.sample_count,
			updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query,
		student.RollNo,
		student.Name,
		student.ClassName,
		student.Section,
		nullString(student.Subject),
		nullString(student.FacePath),
		pgvector.NewVector(student.Embedding),
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
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM students WHERE roll_no = $1", rollNo)
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

	if _, err := tx.ExecContext(ctx, "DELETE FROM attendance WHERE roll_no = $1", rollNo); err != nil {
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

	tx, err := r.pool.BeginTx(ctx, nil)
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

// Truncate removes all students and all attendance records.
func (r *StudentRepository) Truncate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, "TRUNCATE attendance, students"); err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}

// Verify interface compliance.
var _ store.StudentReader = (*StudentRepository)(nil)
var _ store.StudentWriter = (*StudentRepository)(nil)
