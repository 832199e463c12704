package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/klasio/rollcall/internal/archive"
	"github.com/klasio/rollcall/internal/attendance"
	"github.com/klasio/rollcall/internal/config"
	"github.com/klasio/rollcall/internal/match"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var markCmd = &cobra.Command{
	Use:   "mark <photo|folder-path>",
	Short: "Mark attendance from group photos",
	Long: `Mark attendance for a class from one group photo or a folder of
group photos.

Every detected face is matched against the students enrolled for the
class scope. Matches at or above the similarity threshold become
attendance records, at most once per student per run, and a crop of
each matched face is saved for review.

Example:
  rollcall mark --class 10 --section A ./photos/monday.jpg
  rollcall mark --class 10 --section A --threshold 0.5 ./photos`,
	Args: cobra.ExactArgs(1),
	RunE: runMark,
}

func init() {
	rootCmd.AddCommand(markCmd)
	addScopeFlags(markCmd)
	markCmd.Flags().Float64("threshold", 0, "Minimum cosine similarity (defaults to the configured threshold)")
}

// collectPhotoFiles loads the photo argument, which may be a single image
// or a directory of images (non-recursive).
func collectPhotoFiles(path string) ([]archive.Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot access %s: %w", path, err)
	}

	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", path, err)
		}
		return []archive.Image{{Name: filepath.Base(path), Data: data}}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read folder %s: %w", path, err)
	}
	var photos []archive.Image
	for _, entry := range entries {
		if entry.IsDir() || !archive.IsImageFile(entry.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(path, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", entry.Name(), err)
		}
		photos = append(photos, archive.Image{Name: entry.Name(), Data: data})
	}
	return photos, nil
}

func runMark(cmd *cobra.Command, args []string) error {
	scope := scopeFromFlags(cmd)

	cfg := config.Load()
	threshold := cfg.Matching.Threshold
	if cmd.Flags().Changed("threshold") {
		threshold = mustGetFloat64(cmd, "threshold")
	}
	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %v", threshold)
	}

	photos, err := collectPhotoFiles(args[0])
	if err != nil {
		return err
	}
	if len(photos) == 0 {
		fmt.Println("No photos found.")
		return nil
	}

	backends, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer backends.close()

	engine := match.New(newDetector(cfg), backends.students, nil)
	ledger := attendance.New(backends.records, cfg.Attendance.CropsDir, cfg.Attendance.CropPadding)
	session := ledger.NewSession()

	var bar *progressbar.ProgressBar
	if len(photos) > 1 {
		bar = progressbar.NewOptions(len(photos),
			progressbar.OptionSetDescription("Marking"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("photos"),
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
	}

	var marked []attendance.MarkedStudent
	var alreadyMarked []string
	for _, photo := range photos {
		assignments, err := engine.Match(cmd.Context(), scope, photo.Data, threshold)
		if err != nil {
			return fmt.Errorf("photo %s: %w", photo.Name, err)
		}
		report, err := session.Record(cmd.Context(), scope, photo.Data, assignments, time.Now())
		if err != nil {
			return fmt.Errorf("photo %s: %w", photo.Name, err)
		}
		marked = append(marked, report.Marked...)
		alreadyMarked = append(alreadyMarked, report.AlreadyMarked...)

		if bar != nil {
			bar.Add(1)
		} else {
			fmt.Printf("%s: %d face(s) matched\n", photo.Name, len(assignments))
		}
	}
	if bar != nil {
		fmt.Println()
	}

	if len(marked) == 0 {
		fmt.Println("\nNo students marked.")
		return nil
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROLL\tNAME\tSIMILARITY")
	fmt.Fprintln(w, "----\t----\t----------")
	for _, m := range marked {
		fmt.Fprintf(w, "%s\t%s\t%.3f\n", m.RollNo, m.Name, m.Similarity)
	}
	w.Flush()

	fmt.Printf("\nSession %s: marked %d student(s)", session.ID, len(marked))
	if len(alreadyMarked) > 0 {
		fmt.Printf(", %d already marked", len(alreadyMarked))
	}
	fmt.Println()
	return nil
}
