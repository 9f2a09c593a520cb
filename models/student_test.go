package models

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/mmdatafocus/easytask_backend/config"
	"github.com/mmdatafocus/easytask_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	err = db.Exec(`CREATE TABLE students (
		id integer primary key autoincrement,
		index_number text not null unique,
		name text,
		assignment_count integer not null default 0,
		created_at datetime,
		updated_at datetime
	)`).Error
	if err != nil {
		t.Fatal(err)
	}

	config.SetDB(db)
	t.Cleanup(func() { config.SetDB(nil) })
	return db
}

func seedStudent(t *testing.T, db *gorm.DB, indexNumber, name string, count int) *Student {
	t.Helper()
	s := &Student{IndexNumber: indexNumber, Name: &name, AssignmentCount: count}
	if err := db.Create(s).Error; err != nil {
		t.Fatal(err)
	}
	return s
}

func TestUpdateStudentTrimsInput(t *testing.T) {
	db := newTestDB(t)
	s := seedStudent(t, db, "100", "Alice", 1)

	updated, err := UpdateStudent(context.Background(), s.ID, EditStudent{
		Name:        "  Alice B.  ",
		IndexNumber: "  200  ",
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.IndexNumber != "200" {
		t.Errorf("index number not trimmed: %q", updated.IndexNumber)
	}
	if updated.Name == nil || *updated.Name != "Alice B." {
		t.Errorf("name not trimmed: %v", updated.Name)
	}

	var stored Student
	if err := db.Take(&stored, s.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.IndexNumber != "200" {
		t.Errorf("stored index number not trimmed: %q", stored.IndexNumber)
	}
}

func TestUpdateStudentRejectsBlankInput(t *testing.T) {
	db := newTestDB(t)
	s := seedStudent(t, db, "100", "Alice", 1)

	if _, err := UpdateStudent(context.Background(), s.ID, EditStudent{Name: "Alice", IndexNumber: "   "}); err == nil {
		t.Fatal("blank index number must be rejected")
	}
	if _, err := UpdateStudent(context.Background(), s.ID, EditStudent{Name: "   ", IndexNumber: "100"}); err == nil {
		t.Fatal("blank name must be rejected")
	}
}

func TestUpdateStudentPaddedDuplicateRejected(t *testing.T) {
	// " 100 " and "100" are the same index number after trimming; the edit
	// path must not create a second holder the unique index cannot see.
	db := newTestDB(t)
	seedStudent(t, db, "100", "Alice", 1)
	other := seedStudent(t, db, "200", "Bob", 1)

	_, err := UpdateStudent(context.Background(), other.ID, EditStudent{
		Name:        "Bob",
		IndexNumber: "  100  ",
	})
	if !errors.Is(err, utils.ErrorDuplicateKey) {
		t.Fatalf("expected ErrorDuplicateKey, got %v", err)
	}

	var stored Student
	if err := db.Take(&stored, other.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.IndexNumber != "200" {
		t.Errorf("rejected edit mutated the row: %q", stored.IndexNumber)
	}
}

func TestUpdateStudentNotFound(t *testing.T) {
	newTestDB(t)

	_, err := UpdateStudent(context.Background(), 999, EditStudent{Name: "Alice", IndexNumber: "100"})
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected ErrorRecordNotFound, got %v", err)
	}
}
