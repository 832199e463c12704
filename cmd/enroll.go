package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/klasio/rollcall/internal/archive"
	"github.com/klasio/rollcall/internal/config"
	"github.com/klasio/rollcall/internal/enroll"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <folder-path>",
	Short: "Enroll students from a directory of face photos",
	Long: `Enroll students from a directory laid out as one subdirectory per
student, named <roll>_<name>, with face photos inside.

Every usable photo must contain exactly one face. The embeddings of all
usable photos of a student are averaged into one canonical embedding.
Re-running enrollment for a roll number replaces the stored embedding.

Example:
  rollcall enroll --class 10 --section A ./students
  rollcall enroll --class 10 --section A --subject math ./students`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
	addScopeFlags(enrollCmd)
}

func runEnroll(cmd *cobra.Command, args []string) error {
	dir := args[0]
	scope := scopeFromFlags(cmd)

	folders, err := archive.ReadFolders(dir)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", dir, err)
	}
	if len(folders) == 0 {
		fmt.Println("No student folders found.")
		return nil
	}
	fmt.Printf("Found %d student folder(s)\n", len(folders))

	cfg := config.Load()
	backends, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer backends.close()

	bar := progressbar.NewOptions(len(folders),
		progressbar.OptionSetDescription("Enrolling"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("folders"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	aggregator := enroll.New(newDetector(cfg), backends.students)
	report, err := aggregator.Enroll(cmd.Context(), scope, folders, enroll.Options{
		Concurrency: cfg.Enrollment.Concurrency,
		OnProgress:  func(enroll.ProgressInfo) { bar.Add(1) },
	})
	if report == nil {
		return err
	}
	fmt.Println()

	if len(report.Enrolled) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ROLL\tNAME\tIMAGES")
		fmt.Fprintln(w, "----\t----\t------")
		for _, e := range report.Enrolled {
			fmt.Fprintf(w, "%s\t%s\t%d\n", e.RollNo, e.Name, e.ImagesProcessed)
		}
		w.Flush()
	}
	for _, s := range report.Skipped {
		fmt.Printf("Skipped %s: %s\n", s.Folder, s.Reason)
	}

	fmt.Printf("\nEnrolled %d student(s), skipped %d folder(s)\n",
		len(report.Enrolled), len(report.Skipped))
	return err
}
