package cmd

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/klasio/rollcall/internal/config"
	"github.com/klasio/rollcall/internal/store"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert a test student with a random embedding",
	Long: `Insert a student with a random unit-length embedding, for testing
the storage backend without the embedding service.

A seeded student will not match any real face, but shows up in
listings, identification results and deletions like a real one.

Example:
  rollcall seed --roll 21045001 --name "Aman Meena" --class 10 --section A`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().String("roll", "", "Roll number")
	seedCmd.Flags().String("name", "", "Student name")
	addScopeFlags(seedCmd)
}

// randomUnitEmbedding samples a vector uniformly from the unit hypersphere.
func randomUnitEmbedding(dim int) []float32 {
	emb := make([]float32, dim)
	for i := range emb {
		emb[i] = float32(rand.NormFloat64())
	}
	return store.L2Normalize(emb)
}

func runSeed(cmd *cobra.Command, args []string) error {
	rollNo := mustGetString(cmd, "roll")
	name := mustGetString(cmd, "name")
	if rollNo == "" || name == "" {
		return errors.New("--roll and --name are required")
	}

	scope := scopeFromFlags(cmd)
	if err := scope.Validate(); err != nil {
		return err
	}

	cfg := config.Load()
	backends, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer backends.close()

	student := store.Student{
		RollNo:      rollNo,
		Name:        name,
		ClassName:   scope.ClassName,
		Section:     scope.Section,
		Subject:     scope.Subject,
		Embedding:   randomUnitEmbedding(cfg.Embedding.Dim),
		SampleCount: 1,
	}
	if err := backends.students.Upsert(cmd.Context(), student); err != nil {
		return fmt.Errorf("failed to seed student: %w", err)
	}

	fmt.Printf("Seeded student %s (%s) in %s\n", name, rollNo, describeScope(scope))
	return nil
}
