package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/easytask_backend/config"
	"github.com/mmdatafocus/easytask_backend/utils"
	"gorm.io/gorm"
)

// Student is the canonical per-student record. IndexNumber is the natural key;
// the unique index is the write-time backstop for the reconciliation engine's
// snapshot-then-apply pattern.
type Student struct {
	ID              int       `gorm:"primary_key" json:"id"`
	IndexNumber     string    `gorm:"size:100;not null;uniqueIndex" json:"index_number" binding:"required"`
	Name            *string   `gorm:"size:100" json:"name"`
	AssignmentCount int       `gorm:"not null;default:0" json:"assignment_count"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type EditStudent struct {
	Name        string `json:"name" binding:"required"`
	IndexNumber string `json:"index_number" binding:"required"`
}

// ListStudents returns every student ordered by index number.
func ListStudents(ctx context.Context) ([]*Student, error) {
	db := config.GetDB()
	var results []*Student
	if err := db.WithContext(ctx).Order("index_number asc").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func GetStudentById(ctx context.Context, id int) (*Student, error) {
	db := config.GetDB()
	var result Student
	if err := db.WithContext(ctx).First(&result, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

// UpdateStudent edits name and index number. The uniqueness re-check and the
// write happen in one transaction so a concurrent ingestion cannot sneak in a
// second student with the same index number.
func UpdateStudent(ctx context.Context, id int, input EditStudent) (*Student, error) {
	db := config.GetDB()

	// Edits canonicalize the same way ingestion does; a padded index number
	// must not slip past the trimmed-equality rule into a second row.
	input.IndexNumber = strings.TrimSpace(input.IndexNumber)
	input.Name = strings.TrimSpace(input.Name)
	if input.IndexNumber == "" {
		return nil, errors.New("index number is required")
	}
	if input.Name == "" {
		return nil, errors.New("name is required")
	}

	var updated Student
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Student
		if err := tx.First(&existing, id).Error; err != nil {
			return utils.ErrorRecordNotFound
		}

		if input.IndexNumber != existing.IndexNumber {
			var count int64
			if err := tx.Model(&Student{}).
				Where("index_number = ? AND id != ?", input.IndexNumber, id).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return utils.ErrorDuplicateKey
			}
		}

		existing.Name = &input.Name
		existing.IndexNumber = input.IndexNumber
		if err := tx.Save(&existing).Error; err != nil {
			if utils.IsDuplicateKeyError(err) {
				return utils.ErrorDuplicateKey
			}
			return err
		}
		updated = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteStudent removes a student permanently. Deletion is operator-initiated
// only; reconciliation never deletes.
func DeleteStudent(ctx context.Context, id int) error {
	db := config.GetDB()

	var existing Student
	if err := db.WithContext(ctx).First(&existing, id).Error; err != nil {
		return utils.ErrorRecordNotFound
	}
	return db.WithContext(ctx).Delete(&Student{}, id).Error
}

// LookupStudentByIndexNumber is the public-lookup read path. It returns only
// the fields exposed to students themselves.
func LookupStudentByIndexNumber(ctx context.Context, indexNumber string) (*Student, error) {
	db := config.GetDB()
	var result Student
	err := db.WithContext(ctx).
		Where("index_number = ?", indexNumber).
		Select("index_number", "name", "assignment_count").
		Take(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}
