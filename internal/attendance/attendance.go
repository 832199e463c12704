// Package attendance turns confirmed face assignments into persisted
// attendance records and face crop files.
package attendance

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/klasio/rollcall/internal/constants"
	"github.com/klasio/rollcall/internal/identity"
	"github.com/klasio/rollcall/internal/match"
	"github.com/klasio/rollcall/internal/store"

	// imaging registers JPEG, PNG, GIF, TIFF and BMP; WebP group photos
	// need the extra decoder.
	_ "golang.org/x/image/webp"
)

// MarkedStudent is one student recorded present.
type MarkedStudent struct {
	RollNo     string  `json:"roll_no"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
}

// Report summarizes what one photo contributed to a marking session.
type Report struct {
	Marked []MarkedStudent `json:"marked"`
	// AlreadyMarked lists rolls skipped because an earlier photo of the
	// same session recorded them.
	AlreadyMarked []string `json:"already_marked,omitempty"`
}

// Ledger appends attendance records and writes face crops beside them.
type Ledger struct {
	records  store.AttendanceWriter
	cropsDir string
	padding  int
}

// New creates a ledger writing crops under cropsDir with the given box
// padding in pixels.
func New(records store.AttendanceWriter, cropsDir string, padding int) *Ledger {
	return &Ledger{
		records:  records,
		cropsDir: cropsDir,
		padding:  padding,
	}
}

// Session is one marking invocation. All photos of the invocation share the
// session, so a student matched in several of them is recorded once. A new
// session never blocks on records from previous sessions; whether to mark
// the same class twice on one date is the caller's call.
type Session struct {
	ID     string
	ledger *Ledger
	marked map[string]bool
}

// NewSession starts a marking session with a fresh dedup set.
func (l *Ledger) NewSession() *Session {
	return &Session{
		ID:     uuid.NewString(),
		ledger: l,
		marked: make(map[string]bool),
	}
}

// Record appends one attendance record per assignment whose student is not
// yet marked in this session. The batch goes to the store in a single
// transaction; the session's dedup set advances only after that commit, so
// a failed write can be retried. Face crops are saved afterwards; a crop
// that cannot be written is logged and its record stands.
func (s *Session) Record(ctx context.Context, scope store.Scope, photo []byte, assignments []match.Assignment, now time.Time) (*Report, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	report := &Report{}
	pending := make(map[string]bool)
	var batch []store.AttendanceRecord
	var accepted []match.Assignment
	for _, a := range assignments {
		roll := a.Student.RollNo
		if s.marked[roll] || pending[roll] {
			report.AlreadyMarked = append(report.AlreadyMarked, roll)
			continue
		}
		pending[roll] = true
		batch = append(batch, store.AttendanceRecord{
			RollNo:     roll,
			Name:       a.Student.Name,
			ClassName:  scope.ClassName,
			Section:    scope.Section,
			Subject:    scope.Subject,
			Similarity: a.Similarity,
			SessionID:  s.ID,
			Date:       now.Format(constants.DateLayout),
			Time:       now.Format(constants.TimeLayout),
		})
		accepted = append(accepted, a)
	}
	if len(batch) == 0 {
		return report, nil
	}

	if err := s.ledger.records.Append(ctx, batch); err != nil {
		return nil, fmt.Errorf("append attendance: %w", err)
	}
	for roll := range pending {
		s.marked[roll] = true
	}
	for _, rec := range batch {
		report.Marked = append(report.Marked, MarkedStudent{
			RollNo:     rec.RollNo,
			Name:       rec.Name,
			Similarity: rec.Similarity,
		})
	}

	s.ledger.saveCrops(photo, scope, accepted, now)
	return report, nil
}

// CropPath returns where the face crop of one marked student is written:
//
//	{cropsDir}/{date}/{class}/{section}[/{subject}]/{roll}_{safeName}_{stamp}.jpg
//
// with a millisecond-resolution stamp, so the crops of a day sort into one
// folder per class scope.
func (l *Ledger) CropPath(scope store.Scope, rollNo, name string, now time.Time) string {
	dir := filepath.Join(l.cropsDir, now.Format(constants.DateLayout), scope.ClassName, scope.Section)
	if scope.Subject != "" {
		dir = filepath.Join(dir, scope.Subject)
	}
	stamp := fmt.Sprintf("%s_%03d", now.Format(constants.StampLayout), now.Nanosecond()/int(time.Millisecond))
	return filepath.Join(dir, fmt.Sprintf("%s_%s_%s.jpg", rollNo, identity.SafeName(name), stamp))
}

func (l *Ledger) saveCrops(photo []byte, scope store.Scope, assignments []match.Assignment, now time.Time) {
	if len(assignments) == 0 {
		return
	}

	img, err := imaging.Decode(bytes.NewReader(photo))
	if err != nil {
		log.Printf("attendance: decode photo for crops: %v", err)
		return
	}

	for _, a := range assignments {
		rect, ok := cropRect(img.Bounds(), a.Face.BBox, l.padding)
		if !ok {
			log.Printf("attendance: unusable crop box for %s, skipping crop", a.Student.RollNo)
			continue
		}
		path := l.CropPath(scope, a.Student.RollNo, a.Student.Name, now)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			log.Printf("attendance: create crop directory: %v", err)
			continue
		}
		if err := imaging.Save(imaging.Crop(img, rect), path); err != nil {
			log.Printf("attendance: save crop for %s: %v", a.Student.RollNo, err)
		}
	}
}

// cropRect pads the detector's box and clamps it to the image. A box that
// is malformed or falls outside the image is reported unusable.
func cropRect(bounds image.Rectangle, bbox []float64, pad int) (image.Rectangle, bool) {
	if len(bbox) != 4 {
		return image.Rectangle{}, false
	}
	r := image.Rect(
		int(math.Floor(bbox[0]))-pad,
		int(math.Floor(bbox[1]))-pad,
		int(math.Ceil(bbox[2]))+pad,
		int(math.Ceil(bbox[3]))+pad,
	)
	r = r.Intersect(bounds)
	if r.Empty() {
		return image.Rectangle{}, false
	}
	return r, true
}
