package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/klasio/rollcall/internal/config"
	"github.com/klasio/rollcall/internal/match"
	"github.com/spf13/cobra"
)

var identifyCmd = &cobra.Command{
	Use:   "identify <photo>",
	Short: "Identify faces in a photo across all classes",
	Long: `Identify shows the nearest enrolled students for every face in a
photo, across all classes and without a similarity cutoff. Useful to
check match quality before marking attendance with a photo.

Example:
  rollcall identify ./photos/monday.jpg
  rollcall identify --top 5 ./photos/monday.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)
	identifyCmd.Flags().Int("top", 0, "Candidates per face (defaults to the configured top-k)")
}

func runIdentify(cmd *cobra.Command, args []string) error {
	photo, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", args[0], err)
	}

	cfg := config.Load()
	k := cfg.Matching.IdentifyTopK
	if cmd.Flags().Changed("top") {
		k = mustGetInt(cmd, "top")
	}
	if k <= 0 {
		return fmt.Errorf("top must be a positive integer, got %d", k)
	}

	backends, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer backends.close()

	index := buildIndex(cmd.Context(), backends.students)
	engine := match.New(newDetector(cfg), backends.students, index)

	faces, err := engine.Identify(cmd.Context(), photo, k)
	if err != nil {
		return err
	}
	if len(faces) == 0 {
		fmt.Println("No faces detected.")
		return nil
	}

	for _, face := range faces {
		fmt.Printf("\nFace %d", face.FaceIndex+1)
		if len(face.Face.BBox) == 4 {
			fmt.Printf(" at (%.0f, %.0f)", face.Face.BBox[0], face.Face.BBox[1])
		}
		fmt.Println(":")

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  ROLL\tNAME\tCLASS\tSECTION\tSIMILARITY")
		for _, c := range face.Candidates {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%.3f\n",
				c.Student.RollNo, c.Student.Name, c.Student.ClassName, c.Student.Section, c.Similarity)
		}
		w.Flush()
	}

	fmt.Printf("\nTotal: %d face(s)\n", len(faces))
	return nil
}
