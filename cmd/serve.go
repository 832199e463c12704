package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/klasio/rollcall/internal/config"
	"github.com/klasio/rollcall/internal/store"
	"github.com/klasio/rollcall/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance API server",
	Long: `Start the Rollcall HTTP API.

The server exposes enrollment, attendance marking, identification and
listing endpoints, and keeps an in-memory HNSW index of all enrolled
students for fast cross-class identification.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves host and port from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (string, int) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return host, port
}

// buildIndex loads every enrolled student into an in-memory HNSW index.
// A nil return means identification falls back to database scans.
func buildIndex(ctx context.Context, students store.StudentReader) *store.StudentIndex {
	fmt.Println("Building in-memory HNSW index for identification...")
	all, err := students.List(ctx)
	if err != nil {
		fmt.Printf("Warning: failed to load students for the index: %v\n", err)
		fmt.Println("Identification will scan the database instead (slower)")
		return nil
	}

	index := store.NewStudentIndex()
	index.Build(all)
	fmt.Printf("HNSW index built with %d student(s)\n", index.Count())
	return index
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	fmt.Println("Connecting to the database...")
	backends, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer backends.close()

	detector := newDetector(cfg)
	index := buildIndex(cmd.Context(), backends.students)
	host, port := resolveServeHostPort(cmd)

	server := web.NewServer(cfg, host, port, backends.students, backends.records, detector, index)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Rollcall API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
