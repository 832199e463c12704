// Package mysql backs the store interfaces with MySQL or MariaDB for
// deployments without the pgvector extension. Embeddings are stored as
// little endian float32 blobs and nearest neighbor queries fall back to a
// linear scan.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Pool manages a MySQL connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new MySQL connection pool and verifies the connection.
func NewPool(dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("MySQL DSN is required")
	}

	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	// timestamp columns scan into time.Time
	cfg.ParseTime = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	return &Pool{db: db}, nil
}

// Open creates a pool and ensures the schema exists.
func Open(dsn string) (*Pool, error) {
	pool, err := NewPool(dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.ensureSchema(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// ensureSchema creates the tables on first start. MySQL has no vector type,
// so embeddings land in a BLOB column.
func (p *Pool) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS students (
			roll_no      VARCHAR(64) PRIMARY KEY,
			name         VARCHAR(255) NOT NULL,
			class_name   VARCHAR(128) NOT NULL,
			section      VARCHAR(64) NOT NULL,
			subject      VARCHAR(128),
			face_path    VARCHAR(512),
			embedding    BLOB NOT NULL,
			sample_count INT NOT NULL DEFAULT 0,
			created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			INDEX idx_students_scope (class_name, section, subject)
		)`,
		`CREATE TABLE IF NOT EXISTS attendance (
			id               BIGINT AUTO_INCREMENT PRIMARY KEY,
			roll_no          VARCHAR(64) NOT NULL,
			student_name     VARCHAR(255) NOT NULL,
			class_name       VARCHAR(128) NOT NULL,
			section          VARCHAR(64) NOT NULL,
			subject          VARCHAR(128),
			similarity_score DOUBLE NOT NULL,
			session_id       CHAR(36) NOT NULL,
			date             VARCHAR(10) NOT NULL,
			time             VARCHAR(12) NOT NULL,
			INDEX idx_attendance_roll_no (roll_no),
			INDEX idx_attendance_class (class_name, section, date)
		)`,
	}

	for _, stmt := range statements {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
