// Package enroll turns per-student sample folders into enrolled identities,
// one canonical embedding per student.
package enroll

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/klasio/rollcall/internal/archive"
	"github.com/klasio/rollcall/internal/faceapi"
	"github.com/klasio/rollcall/internal/identity"
	"github.com/klasio/rollcall/internal/store"
)

// Skip reasons reported for folders that could not be enrolled.
const (
	ReasonMissingSeparator = "MissingSeparator"
	ReasonEmptyField       = "EmptyField"
	ReasonInvalidRollCode  = "InvalidRollCode"
	ReasonDuplicateInBatch = "DuplicateInBatch"
	ReasonNoUsableImages   = "NoUsableImages"
)

const defaultConcurrency = 4

// Aggregator enrolls students from labeled sample folders.
type Aggregator struct {
	detector faceapi.Detector
	students store.StudentWriter
}

// ProgressInfo contains progress information for callbacks
type ProgressInfo struct {
	Current int
	Total   int
	Folder  string
}

// Options tune a single enrollment batch.
type Options struct {
	Concurrency int                // number of folders processed in parallel
	OnProgress  func(ProgressInfo) // optional progress callback
}

// EnrolledStudent describes one successful enrollment.
type EnrolledStudent struct {
	RollNo          string `json:"roll_no"`
	Name            string `json:"name"`
	ImagesProcessed int    `json:"images_processed"`
}

// SkippedFolder names a folder that was rejected and why.
type SkippedFolder struct {
	Folder string `json:"folder"`
	Reason string `json:"reason"`
}

// Report covers every folder of a batch: each one lands either in Enrolled
// or in Skipped, in the order the folders arrived.
type Report struct {
	Enrolled []EnrolledStudent `json:"enrolled"`
	Skipped  []SkippedFolder   `json:"skipped"`
}

func New(detector faceapi.Detector, students store.StudentWriter) *Aggregator {
	return &Aggregator{
		detector: detector,
		students: students,
	}
}

// job pairs a folder with its parsed identity.
type job struct {
	index    int
	folder   archive.Folder
	identity identity.Identity
}

// folderResult holds the outcome for a single folder
type folderResult struct {
	enrolled *EnrolledStudent
	skip     *SkippedFolder
	err      error
}

// Enroll processes every folder of the batch and reports the outcome for
// each. Labels are parsed and deduplicated up front; the surviving folders
// run through the detector concurrently, and each student is committed
// atomically once all of their images are in. A folder that fails never
// aborts its siblings.
func (a *Aggregator) Enroll(ctx context.Context, scope store.Scope, folders []archive.Folder, opts Options) (*Report, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	// Pre-pass: parse labels and drop duplicate roll numbers, first folder
	// wins. Runs sequentially so batch order decides the winner.
	results := make([]folderResult, len(folders))
	seen := make(map[string]int, len(folders))
	var jobs []job

	for i, folder := range folders {
		id, err := identity.Parse(folder.Label)
		if err != nil {
			results[i] = folderResult{skip: &SkippedFolder{Folder: folder.Label, Reason: parseReason(err)}}
			continue
		}
		if first, dup := seen[id.RollNo]; dup {
			log.Printf("enroll: folder %q duplicates roll number %s from folder %q, skipping",
				folder.Label, id.RollNo, folders[first].Label)
			results[i] = folderResult{skip: &SkippedFolder{Folder: folder.Label, Reason: ReasonDuplicateInBatch}}
			continue
		}
		seen[id.RollNo] = i
		jobs = append(jobs, job{index: i, folder: folder, identity: id})
	}

	semaphore := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var progressMu sync.Mutex
	var processed int

	reportProgress := func(folder string) {
		progressMu.Lock()
		processed++
		current := processed
		progressMu.Unlock()
		if opts.OnProgress != nil {
			opts.OnProgress(ProgressInfo{Current: current, Total: len(jobs), Folder: folder})
		}
	}

	for _, j := range jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			results[j.index] = a.enrollFolder(ctx, scope, j)
			reportProgress(j.folder.Label)
		}(j)
	}
	wg.Wait()

	report := &Report{}
	var errs []error
	for _, r := range results {
		switch {
		case r.enrolled != nil:
			report.Enrolled = append(report.Enrolled, *r.enrolled)
		case r.skip != nil:
			report.Skipped = append(report.Skipped, *r.skip)
		case r.err != nil:
			errs = append(errs, r.err)
		}
	}
	return report, errors.Join(errs...)
}

// enrollFolder runs every image of one folder through the detector and
// commits the student once, after the whole folder is processed. Images
// the detector cannot use are skipped individually; only a folder without
// a single usable image is rejected.
func (a *Aggregator) enrollFolder(ctx context.Context, scope store.Scope, j job) folderResult {
	var samples [][]float32

	for _, img := range j.folder.Images {
		if ctx.Err() != nil {
			return folderResult{err: fmt.Errorf("enroll %s: %w", j.folder.Label, ctx.Err())}
		}

		faces, err := a.detector.DetectFaces(ctx, img.Data)
		if err != nil {
			if ctx.Err() != nil {
				return folderResult{err: fmt.Errorf("enroll %s: %w", j.folder.Label, ctx.Err())}
			}
			log.Printf("enroll %s: skipping %s: %v", j.folder.Label, img.Name, err)
			continue
		}
		if len(faces) == 0 {
			log.Printf("enroll %s: no face found in %s", j.folder.Label, img.Name)
			continue
		}

		face := faces[0]
		if len(faces) > 1 {
			face = faceapi.LargestFace(faces)
			log.Printf("enroll %s: %d faces in %s, using the largest", j.folder.Label, len(faces), img.Name)
		}
		samples = append(samples, face.Embedding)
	}

	if len(samples) == 0 {
		return folderResult{skip: &SkippedFolder{Folder: j.folder.Label, Reason: ReasonNoUsableImages}}
	}

	embedding, err := store.MeanEmbedding(samples)
	if err != nil {
		return folderResult{err: fmt.Errorf("enroll %s: %w", j.folder.Label, err)}
	}

	student := store.Student{
		RollNo:      j.identity.RollNo,
		Name:        j.identity.Name,
		ClassName:   scope.ClassName,
		Section:     scope.Section,
		Subject:     scope.Subject,
		FacePath:    facePath(scope, j.folder),
		Embedding:   embedding,
		SampleCount: len(samples),
	}
	if err := a.students.Upsert(ctx, student); err != nil {
		return folderResult{err: fmt.Errorf("enroll %s: save student %s: %w", j.folder.Label, student.RollNo, err)}
	}

	return folderResult{enrolled: &EnrolledStudent{
		RollNo:          student.RollNo,
		Name:            student.Name,
		ImagesProcessed: len(samples),
	}}
}

// facePath records where the enrollment samples came from: the source
// directory for disk batches, a class-relative label path for uploads.
func facePath(scope store.Scope, folder archive.Folder) string {
	if folder.Path != "" {
		return folder.Path
	}
	return fmt.Sprintf("%s_%s/%s", scope.ClassName, scope.Section, folder.Label)
}

func parseReason(err error) string {
	switch {
	case errors.Is(err, identity.ErrMissingSeparator):
		return ReasonMissingSeparator
	case errors.Is(err, identity.ErrEmptyField):
		return ReasonEmptyField
	case errors.Is(err, identity.ErrInvalidRollCode):
		return ReasonInvalidRollCode
	default:
		return err.Error()
	}
}
