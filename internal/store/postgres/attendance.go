package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/klasio/rollcall/internal/store"
)

// AttendanceRepository provides PostgreSQL-backed storage for attendance
// records. Records are append-only, never updated in place.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates an attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

const attendanceColumns = `id, roll_no, student_name, class_name, section, subject,
	       similarity_score, session_id, date, time`

func scanRecords(rows *sql.Rows) ([]store.AttendanceRecord, error) {
	var records []store.AttendanceRecord
	for rows.Next() {
		var rec store.AttendanceRecord
		var subject sql.NullString

		err := rows.Scan(
			&rec.ID,
			&rec.RollNo,
			&rec.Name,
			&rec.ClassName,
			&rec.Section,
			&subject,
			&rec.Similarity,
			&rec.SessionID,
			&rec.Date,
			&rec.Time,
		)
		if err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		if subject.Valid {
			rec.Subject = subject.String
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance records: %w", err)
	}
	return records, nil
}

// Append writes the records in a single transaction. An empty batch is a
// no-op.
func (r *AttendanceRepository) Append(ctx context.Context, records []store.AttendanceRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO attendance (roll_no, student_name, class_name, section, subject,
		                        similarity_score, session_id, date, time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.ExecContext(ctx,
			rec.RollNo,
			rec.Name,
			rec.ClassName,
			rec.Section,
			nullString(rec.Subject),
			rec.Similarity,
			rec.SessionID,
			rec.Date,
			rec.Time,
		)
		if err != nil {
			return fmt.Errorf("insert attendance for %s: %w", rec.RollNo, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListAttendance returns all records, newest first.
func (r *AttendanceRepository) ListAttendance(ctx context.Context) ([]store.AttendanceRecord, error) {
	query := "SELECT " + attendanceColumns + " FROM attendance ORDER BY id DESC"

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ListAttendanceByScope returns the records matching the scope, newest first.
func (r *AttendanceRepository) ListAttendanceByScope(
	ctx context.Context, scope store.Scope,
) ([]store.AttendanceRecord, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	where, args := scopeFilter(scope)
	query := "SELECT " + attendanceColumns + " FROM attendance WHERE " + where + " ORDER BY id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attendance by scope: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// CountAttendance returns the total number of attendance records.
func (r *AttendanceRepository) CountAttendance(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM attendance").Scan(&count); err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return count, nil
}

// Verify interface compliance.
var _ store.AttendanceReader = (*AttendanceRepository)(nil)
var _ store.AttendanceWriter = (*AttendanceRepository)(nil)
