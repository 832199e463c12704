package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/klasio/rollcall/internal/config"
	"github.com/klasio/rollcall/internal/store"
	"github.com/spf13/cobra"
)

var studentsCmd = &cobra.Command{
	Use:   "students",
	Short: "List enrolled students",
	Long: `List enrolled students, optionally narrowed to a class scope.

Example:
  rollcall students
  rollcall students --class 10 --section A`,
	Args: cobra.NoArgs,
	RunE: runStudents,
}

func init() {
	rootCmd.AddCommand(studentsCmd)
	addScopeFlags(studentsCmd)
}

func runStudents(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	backends, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer backends.close()

	scope := scopeFromFlags(cmd)
	var students []store.Student
	if scope != (store.Scope{}) {
		students, err = backends.students.ListByScope(cmd.Context(), scope)
	} else {
		students, err = backends.students.List(cmd.Context())
	}
	if err != nil {
		return fmt.Errorf("failed to list students: %w", err)
	}

	if len(students) == 0 {
		fmt.Println("No students found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROLL\tNAME\tCLASS\tSECTION\tSUBJECT\tSAMPLES\tENROLLED")
	fmt.Fprintln(w, "----\t----\t-----\t-------\t-------\t-------\t--------")
	for _, s := range students {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			s.RollNo, s.Name, s.ClassName, s.Section, s.Subject, s.SampleCount,
			s.CreatedAt.Format("2006-01-02"))
	}
	w.Flush()

	fmt.Printf("\nTotal: %d student(s)\n", len(students))
	return nil
}
