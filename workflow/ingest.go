package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmdatafocus/easytask_backend/config"
	"github.com/mmdatafocus/easytask_backend/models"
	"github.com/mmdatafocus/easytask_backend/utils"
	"gorm.io/gorm"
)

// Row is one normalized input pair. Name == "" means the name is missing.
// Position is the 1-based row number in the original sheet (data rows start at
// 2 because of the header); zero means "not from a sheet" and the engine falls
// back to the in-batch position.
type Row struct {
	IndexNumber string
	Name        string
	Position    int
}

type RowError struct {
	Row         int    `json:"row"`
	IndexNumber string `json:"index_number"`
	Issue       string `json:"issue"`
}

// UploadResult is the complete accounting for a batch: every processed row is
// exactly one of added/incremented/flagged.
type UploadResult struct {
	Processed   int        `json:"processed"`
	Added       int        `json:"added"`
	Incremented int        `json:"incremented"`
	Flagged     int        `json:"flagged"`
	Errors      []RowError `json:"errors"`
}

// ManualEntryResult is the single-row form returned to the entry screen.
type ManualEntryResult struct {
	Success     bool             `json:"success"`
	Created     bool             `json:"created,omitempty"`
	Incremented bool             `json:"incremented,omitempty"`
	Flagged     bool             `json:"flagged,omitempty"`
	FlaggedId   int              `json:"flagged_id,omitempty"`
	IssueType   models.IssueType `json:"issue_type,omitempty"`
	Message     string           `json:"message"`
}

// studentRef is the per-student slice of the snapshot the engine classifies
// against. Loaded once per batch, never mutated during classification.
type studentRef struct {
	ID              int
	Name            *string
	AssignmentCount int
}

// ingestPlan is the staged three-way write set produced by classification.
// By construction no index number appears in both creates and increments.
type ingestPlan struct {
	creates    []*models.Student
	increments map[int]int // student id -> count to add
	flags      []*models.FlaggedRecord
}

const (
	issueDuplicateIndex = "Duplicate index in file"
	issueConflict       = "Conflict with existing flagged record"
	issueMissingName    = "Missing student name"
)

// buildIngestPlan classifies rows against read-only snapshots. Pure: no I/O,
// deterministic, first matching rule wins per row.
//
// Rule order per row:
//  1. index already seen in this batch        -> flag DUPLICATE_INDEX
//  2. index in student snapshot               -> stage increment
//  3. index in unresolved-flag snapshot       -> flag CONFLICT
//  4. name missing                            -> flag MISSING_NAME
//  5. otherwise                               -> stage new student
//
// Only the second and later occurrences of an in-batch duplicate are flagged;
// the first occurrence is classified by rules 2-5 as if it were alone.
func buildIngestPlan(rows []Row, source models.FlagSource, students map[string]studentRef, unresolvedFlags map[string]bool) (*ingestPlan, *UploadResult) {

	plan := &ingestPlan{increments: make(map[int]int)}
	result := &UploadResult{Errors: []RowError{}}
	seen := make(map[string]bool, len(rows))

	for i, row := range rows {
		indexNumber := strings.TrimSpace(row.IndexNumber)
		name := strings.TrimSpace(row.Name)
		position := row.Position
		if position == 0 {
			position = i + 1
		}
		result.Processed++

		var namePtr *string
		if name != "" {
			namePtr = &name
		}

		if seen[indexNumber] {
			plan.flags = append(plan.flags, &models.FlaggedRecord{
				IndexNumber:     indexNumber,
				Name:            namePtr,
				IssueType:       models.IssueTypeDuplicateIndex,
				Source:          source,
				AssignmentCount: 1,
			})
			result.Flagged++
			result.Errors = append(result.Errors, RowError{Row: position, IndexNumber: indexNumber, Issue: issueDuplicateIndex})
			continue
		}
		seen[indexNumber] = true

		if existing, ok := students[indexNumber]; ok {
			plan.increments[existing.ID]++
			result.Incremented++
			continue
		}

		if unresolvedFlags[indexNumber] {
			plan.flags = append(plan.flags, &models.FlaggedRecord{
				IndexNumber:     indexNumber,
				Name:            namePtr,
				IssueType:       models.IssueTypeConflict,
				Source:          source,
				AssignmentCount: 1,
			})
			result.Flagged++
			result.Errors = append(result.Errors, RowError{Row: position, IndexNumber: indexNumber, Issue: issueConflict})
			continue
		}

		if name == "" {
			plan.flags = append(plan.flags, &models.FlaggedRecord{
				IndexNumber:     indexNumber,
				Name:            nil,
				IssueType:       models.IssueTypeMissingName,
				Source:          source,
				AssignmentCount: 1,
			})
			result.Flagged++
			result.Errors = append(result.Errors, RowError{Row: position, IndexNumber: indexNumber, Issue: issueMissingName})
			continue
		}

		plan.creates = append(plan.creates, &models.Student{
			IndexNumber:     indexNumber,
			Name:            namePtr,
			AssignmentCount: 1,
		})
		result.Added++
	}

	return plan, result
}

// loadSnapshots reads the student set and the unresolved-flag set once per
// batch. All in-batch lookups are in-memory after this.
func loadSnapshots(ctx context.Context, db *gorm.DB) (map[string]studentRef, map[string]bool, error) {

	var students []*models.Student
	if err := db.WithContext(ctx).
		Select("id", "index_number", "name", "assignment_count").
		Find(&students).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load student snapshot: %w", err)
	}
	studentsByIndex := make(map[string]studentRef, len(students))
	for _, s := range students {
		studentsByIndex[s.IndexNumber] = studentRef{ID: s.ID, Name: s.Name, AssignmentCount: s.AssignmentCount}
	}

	var flagIndexes []string
	if err := db.WithContext(ctx).Model(&models.FlaggedRecord{}).
		Where("resolved = ?", false).
		Distinct().
		Pluck("index_number", &flagIndexes).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load flagged snapshot: %w", err)
	}
	unresolved := make(map[string]bool, len(flagIndexes))
	for _, idx := range flagIndexes {
		unresolved[idx] = true
	}

	return studentsByIndex, unresolved, nil
}

// applyIngestPlan writes the staged sets in one transaction. A duplicate-key
// rejection (snapshot raced with a concurrent writer) fails the whole batch
// with ErrorDuplicateKey so the caller can retry; nothing is partially kept.
func applyIngestPlan(ctx context.Context, db *gorm.DB, plan *ingestPlan) error {

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(plan.creates) > 0 {
			if err := tx.CreateInBatches(plan.creates, 100).Error; err != nil {
				if utils.IsDuplicateKeyError(err) {
					return fmt.Errorf("%w: concurrent ingestion created the same index number", utils.ErrorDuplicateKey)
				}
				return err
			}
		}

		// Relative increment, not snapshot writeback: concurrent increments
		// cannot clobber each other.
		for id, delta := range plan.increments {
			if err := tx.Model(&models.Student{}).
				Where("id = ?", id).
				UpdateColumn("assignment_count", gorm.Expr("assignment_count + ?", delta)).Error; err != nil {
				return err
			}
		}

		if len(plan.flags) > 0 {
			if err := tx.CreateInBatches(plan.flags, 100).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// IngestBatch runs the reconciliation engine over a normalized batch:
// snapshot once, classify in memory, apply the plan transactionally.
// On error no counters are authoritative and nothing was persisted.
func IngestBatch(ctx context.Context, rows []Row, source models.FlagSource) (*UploadResult, error) {

	db := config.GetDB()

	studentsByIndex, unresolved, err := loadSnapshots(ctx, db)
	if err != nil {
		return nil, err
	}

	plan, result := buildIngestPlan(rows, source, studentsByIndex, unresolved)

	if err := applyIngestPlan(ctx, db, plan); err != nil {
		return nil, err
	}

	return result, nil
}

// IngestManual is the batch engine with a batch of one. A missing-name new
// index is always flagged; there is no unnamed clean-new-row path.
func IngestManual(ctx context.Context, indexNumber string, name string) (*ManualEntryResult, error) {

	trimmedIndex := strings.TrimSpace(indexNumber)
	trimmedName := strings.TrimSpace(name)
	if trimmedIndex == "" {
		return nil, fmt.Errorf("index number is required")
	}

	db := config.GetDB()
	studentsByIndex, unresolved, err := loadSnapshots(ctx, db)
	if err != nil {
		return nil, err
	}

	rows := []Row{{IndexNumber: trimmedIndex, Name: trimmedName}}
	plan, _ := buildIngestPlan(rows, models.FlagSourceManual, studentsByIndex, unresolved)

	if err := applyIngestPlan(ctx, db, plan); err != nil {
		return nil, err
	}

	switch {
	case len(plan.increments) > 0:
		existing := studentsByIndex[trimmedIndex]
		display := trimmedIndex
		if existing.Name != nil && *existing.Name != "" {
			display = *existing.Name
		}
		return &ManualEntryResult{
			Success:     true,
			Incremented: true,
			Message:     fmt.Sprintf("Assignment count updated for %s.", display),
		}, nil
	case len(plan.flags) > 0:
		flag := plan.flags[0]
		message := "New index number without name – record flagged for resolution."
		if flag.IssueType == models.IssueTypeConflict {
			message = "Index number matches a pending flagged record – flagged for resolution."
		}
		return &ManualEntryResult{
			Success:   true,
			Flagged:   true,
			FlaggedId: flag.ID,
			IssueType: flag.IssueType,
			Message:   message,
		}, nil
	default:
		return &ManualEntryResult{
			Success: true,
			Created: true,
			Message: fmt.Sprintf("New student %s (%s) added.", trimmedName, trimmedIndex),
		}, nil
	}
}
