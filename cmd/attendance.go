package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/klasio/rollcall/internal/config"
	"github.com/klasio/rollcall/internal/store"
	"github.com/spf13/cobra"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "List attendance records",
	Long: `List attendance records, newest first, optionally narrowed to a
class scope.

Example:
  rollcall attendance
  rollcall attendance --class 10 --section A`,
	Args: cobra.NoArgs,
	RunE: runAttendance,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	addScopeFlags(attendanceCmd)
}

func runAttendance(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	backends, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer backends.close()

	scope := scopeFromFlags(cmd)
	var records []store.AttendanceRecord
	if scope != (store.Scope{}) {
		records, err = backends.records.ListAttendanceByScope(cmd.Context(), scope)
	} else {
		records, err = backends.records.ListAttendance(cmd.Context())
	}
	if err != nil {
		return fmt.Errorf("failed to list attendance: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No attendance records found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tTIME\tROLL\tNAME\tCLASS\tSECTION\tSIMILARITY")
	fmt.Fprintln(w, "----\t----\t----\t----\t-----\t-------\t----------")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%.3f\n",
			r.Date, r.Time, r.RollNo, r.Name, r.ClassName, r.Section, r.Similarity)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d record(s)\n", len(records))
	return nil
}
