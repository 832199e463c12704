package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/klasio/rollcall/internal/config"
	"github.com/klasio/rollcall/internal/store"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete students together with their attendance records",
}

var deleteStudentCmd = &cobra.Command{
	Use:   "student <roll-no>",
	Short: "Delete one student and their attendance records",
	Long: `Delete one student by roll number. Their attendance records are
removed in the same transaction.

Example:
  rollcall delete student 21045001
  rollcall delete student 21045001 --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runDeleteStudent,
}

var deleteClassCmd = &cobra.Command{
	Use:   "class",
	Short: "Delete every student in a class scope",
	Long: `Delete every student matching the class scope, together with their
attendance records.

Example:
  rollcall delete class --class 10
  rollcall delete class --class 10 --section A --yes`,
	Args: cobra.NoArgs,
	RunE: runDeleteClass,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.AddCommand(deleteStudentCmd)
	deleteCmd.AddCommand(deleteClassCmd)

	deleteStudentCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
	addScopeFlags(deleteClassCmd)
	deleteClassCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
}

func confirmAction(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func runDeleteStudent(cmd *cobra.Command, args []string) error {
	rollNo := args[0]

	if !mustGetBool(cmd, "yes") &&
		!confirmAction(fmt.Sprintf("Delete student %s and their attendance records? [y/N]: ", rollNo)) {
		fmt.Println("Cancelled.")
		return nil
	}

	cfg := config.Load()
	backends, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer backends.close()

	if err := backends.students.Delete(cmd.Context(), rollNo); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("student %s not found", rollNo)
		}
		return fmt.Errorf("failed to delete student: %w", err)
	}

	fmt.Printf("Deleted student %s\n", rollNo)
	return nil
}

func runDeleteClass(cmd *cobra.Command, args []string) error {
	scope := scopeFromFlags(cmd)
	if err := scope.Validate(); err != nil {
		return err
	}

	if !mustGetBool(cmd, "yes") &&
		!confirmAction(fmt.Sprintf("Delete every student in %s and their attendance records? [y/N]: ", describeScope(scope))) {
		fmt.Println("Cancelled.")
		return nil
	}

	cfg := config.Load()
	backends, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer backends.close()

	count, err := backends.students.DeleteByScope(cmd.Context(), scope)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fmt.Println("No students matched.")
			return nil
		}
		return fmt.Errorf("failed to delete class: %w", err)
	}

	fmt.Printf("Deleted %d student(s)\n", count)
	return nil
}
