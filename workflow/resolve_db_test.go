package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/mmdatafocus/easytask_backend/config"
	"github.com/mmdatafocus/easytask_backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database and installs it as the
// global handle. The enum column types in the model tags are MySQL-only, so
// the tables are created directly.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}

	ddl := []string{
		`CREATE TABLE students (
			id integer primary key autoincrement,
			index_number text not null unique,
			name text,
			assignment_count integer not null default 0,
			created_at datetime,
			updated_at datetime
		)`,
		`CREATE TABLE flagged_records (
			id integer primary key autoincrement,
			index_number text not null,
			name text,
			issue_type text not null,
			source text not null,
			assignment_count integer not null default 1,
			resolved numeric not null default 0,
			resolution text,
			created_at datetime,
			updated_at datetime
		)`,
	}
	for _, stmt := range ddl {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatal(err)
		}
	}

	config.SetDB(db)
	t.Cleanup(func() { config.SetDB(nil) })
	return db
}

func TestResolveFlagApprove(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	flag := models.FlaggedRecord{
		IndexNumber:     "100",
		Name:            strPtr("Alice"),
		IssueType:       models.IssueTypeMissingName,
		Source:          models.FlagSourceExcel,
		AssignmentCount: 2,
	}
	if err := db.Create(&flag).Error; err != nil {
		t.Fatal(err)
	}

	result, err := ResolveFlag(ctx, flag.ID, models.ResolutionActionApprove, ResolveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("unexpected result: %+v", result)
	}

	var student models.Student
	if err := db.Where("index_number = ?", "100").Take(&student).Error; err != nil {
		t.Fatalf("approved student missing: %v", err)
	}
	if student.AssignmentCount != 2 {
		t.Errorf("expected count 2, got %d", student.AssignmentCount)
	}

	var stored models.FlaggedRecord
	if err := db.Take(&stored, flag.ID).Error; err != nil {
		t.Fatal(err)
	}
	if !stored.Resolved {
		t.Error("flag should be resolved")
	}
	if stored.Resolution == nil || *stored.Resolution != models.FlagResolutionApproved {
		t.Errorf("unexpected resolution: %v", stored.Resolution)
	}
}

func TestResolveFlagMergeAccumulatesCount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	target := models.Student{IndexNumber: "900", Name: strPtr("Bob"), AssignmentCount: 2}
	if err := db.Create(&target).Error; err != nil {
		t.Fatal(err)
	}
	flag := models.FlaggedRecord{
		IndexNumber:     "100",
		IssueType:       models.IssueTypeDuplicateIndex,
		Source:          models.FlagSourceExcel,
		AssignmentCount: 3,
	}
	if err := db.Create(&flag).Error; err != nil {
		t.Fatal(err)
	}

	if _, err := ResolveFlag(ctx, flag.ID, models.ResolutionActionMerge, ResolveOptions{TargetStudentId: target.ID}); err != nil {
		t.Fatal(err)
	}

	var stored models.Student
	if err := db.Take(&stored, target.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.AssignmentCount != 5 {
		t.Errorf("expected merged count 5, got %d", stored.AssignmentCount)
	}
}

func TestResolveFlagRejectsSecondResolution(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	flag := models.FlaggedRecord{
		IndexNumber:     "100",
		Name:            strPtr("Alice"),
		IssueType:       models.IssueTypeMissingName,
		Source:          models.FlagSourceManual,
		AssignmentCount: 1,
	}
	if err := db.Create(&flag).Error; err != nil {
		t.Fatal(err)
	}

	if _, err := ResolveFlag(ctx, flag.ID, models.ResolutionActionApprove, ResolveOptions{}); err != nil {
		t.Fatal(err)
	}

	var approved models.Student
	if err := db.Where("index_number = ?", "100").Take(&approved).Error; err != nil {
		t.Fatal(err)
	}

	_, err := ResolveFlag(ctx, flag.ID, models.ResolutionActionMerge, ResolveOptions{TargetStudentId: approved.ID})
	if !errors.Is(err, ErrFlagNotFound) {
		t.Fatalf("expected ErrFlagNotFound, got %v", err)
	}

	// The losing call must leave all state untouched.
	var stored models.Student
	if err := db.Take(&stored, approved.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.AssignmentCount != approved.AssignmentCount {
		t.Errorf("second resolution mutated the student: %d -> %d", approved.AssignmentCount, stored.AssignmentCount)
	}
	var storedFlag models.FlaggedRecord
	if err := db.Take(&storedFlag, flag.ID).Error; err != nil {
		t.Fatal(err)
	}
	if storedFlag.Resolution == nil || *storedFlag.Resolution != models.FlagResolutionApproved {
		t.Errorf("second resolution overwrote the stamp: %v", storedFlag.Resolution)
	}
}

func TestResolveFlagUnknownId(t *testing.T) {
	newTestDB(t)

	_, err := ResolveFlag(context.Background(), 12345, models.ResolutionActionApprove, ResolveOptions{})
	if !errors.Is(err, ErrFlagNotFound) {
		t.Fatalf("expected ErrFlagNotFound, got %v", err)
	}
}

func TestCompleteResolutionRollsBackLoser(t *testing.T) {
	// A resolver that loses the transition race must not keep its student
	// mutation: the guard error aborts the surrounding transaction.
	db := newTestDB(t)

	flag := models.FlaggedRecord{
		IndexNumber: "100",
		IssueType:   models.IssueTypeMissingName,
		Source:      models.FlagSourceExcel,
		Resolved:    true,
	}
	if err := db.Create(&flag).Error; err != nil {
		t.Fatal(err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&models.Student{IndexNumber: "100", AssignmentCount: 1}).Error; err != nil {
			return err
		}
		return completeResolution(tx, flag.ID, models.FlagResolutionApproved)
	})
	if !errors.Is(err, ErrFlagNotFound) {
		t.Fatalf("expected ErrFlagNotFound, got %v", err)
	}

	var count int64
	if err := db.Model(&models.Student{}).Where("index_number = ?", "100").Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("student mutation survived the rollback, count %d", count)
	}
}

func TestReopenFlag(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	resolution := models.FlagResolutionApproved
	flag := models.FlaggedRecord{
		IndexNumber: "100",
		IssueType:   models.IssueTypeConflict,
		Source:      models.FlagSourceManual,
		Resolved:    true,
		Resolution:  &resolution,
	}
	if err := db.Create(&flag).Error; err != nil {
		t.Fatal(err)
	}

	if err := ReopenFlag(ctx, flag.ID); err != nil {
		t.Fatal(err)
	}
	var stored models.FlaggedRecord
	if err := db.Take(&stored, flag.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.Resolved {
		t.Error("flag should be pending again")
	}
	if stored.Resolution != nil {
		t.Errorf("resolution should be cleared, got %v", *stored.Resolution)
	}

	// A pending flag cannot be reopened.
	if err := ReopenFlag(ctx, flag.ID); err == nil {
		t.Fatal("expected error reopening a pending flag")
	}
}
