package cmd

import (
	"fmt"

	"github.com/klasio/rollcall/internal/config"
	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove all students and attendance records",
	Long: `Remove every student and every attendance record from the database.
The schema itself stays in place.

Example:
  rollcall reset --yes`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
	resetCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
}

func runReset(cmd *cobra.Command, args []string) error {
	if !mustGetBool(cmd, "yes") &&
		!confirmAction("This removes ALL students and attendance records. Continue? [y/N]: ") {
		fmt.Println("Cancelled.")
		return nil
	}

	cfg := config.Load()
	backends, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer backends.close()

	if err := backends.students.Truncate(cmd.Context()); err != nil {
		return fmt.Errorf("failed to reset: %w", err)
	}

	fmt.Println("Done! All students and attendance records removed.")
	return nil
}
