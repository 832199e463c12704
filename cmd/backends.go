package cmd

import (
	"errors"
	"fmt"

	"github.com/klasio/rollcall/internal/config"
	"github.com/klasio/rollcall/internal/faceapi"
	"github.com/klasio/rollcall/internal/store"
	"github.com/klasio/rollcall/internal/store/mysql"
	"github.com/klasio/rollcall/internal/store/postgres"
	"github.com/spf13/cobra"
)

// backends bundles the repositories a command works against.
type backends struct {
	students store.StudentWriter
	records  store.AttendanceWriter
	close    func() error
}

// openBackends connects to MySQL when MYSQL_DSN is set and to PostgreSQL
// otherwise. The schema is created or migrated on open.
func openBackends(cfg *config.Config) (*backends, error) {
	if cfg.MySQL.DSN != "" {
		pool, err := mysql.Open(cfg.MySQL.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
		}
		return &backends{
			students: mysql.NewStudentRepository(pool, cfg.Embedding.Dim),
			records:  mysql.NewAttendanceRepository(pool),
			close:    pool.Close,
		}, nil
	}

	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL or MYSQL_DSN environment variable is required")
	}
	pool, err := postgres.Open(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	return &backends{
		students: postgres.NewStudentRepository(pool, cfg.Embedding.Dim),
		records:  postgres.NewAttendanceRepository(pool),
		close:    pool.Close,
	}, nil
}

// newDetector builds the client for the face embedding service.
func newDetector(cfg *config.Config) *faceapi.Client {
	return faceapi.NewClient(cfg.Embedding.URL, cfg.Embedding.Dim, cfg.Embedding.Timeout)
}

// addScopeFlags registers the class scope flags shared by several commands.
func addScopeFlags(cmd *cobra.Command) {
	cmd.Flags().String("class", "", "Class name")
	cmd.Flags().String("section", "", "Section within the class")
	cmd.Flags().String("subject", "", "Subject (optional)")
}

// scopeFromFlags reads the scope flags into a store.Scope.
func scopeFromFlags(cmd *cobra.Command) store.Scope {
	return store.Scope{
		ClassName: mustGetString(cmd, "class"),
		Section:   mustGetString(cmd, "section"),
		Subject:   mustGetString(cmd, "subject"),
	}
}

// describeScope renders a scope for user-facing messages.
func describeScope(scope store.Scope) string {
	s := scope.ClassName
	if scope.Section != "" {
		s += "/" + scope.Section
	}
	if scope.Subject != "" {
		s += "/" + scope.Subject
	}
	return s
}
