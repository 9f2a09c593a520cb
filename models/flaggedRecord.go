package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/easytask_backend/config"
	"github.com/mmdatafocus/easytask_backend/utils"
)

// FlaggedRecord quarantines an input row the reconciliation engine could not
// safely auto-merge. While resolved=false it carries exactly what a later merge
// needs; once resolved=true it is immutable history.
type FlaggedRecord struct {
	ID              int             `gorm:"primary_key" json:"id"`
	IndexNumber     string          `gorm:"size:100;not null;index" json:"index_number"`
	Name            *string         `gorm:"size:100" json:"name"`
	IssueType       IssueType       `gorm:"type:enum('MISSING_NAME','DUPLICATE_INDEX','CONFLICT');not null" json:"issue_type"`
	Source          FlagSource      `gorm:"type:enum('manual','excel');not null" json:"source"`
	AssignmentCount int             `gorm:"not null;default:1" json:"assignment_count"`
	Resolved        bool            `gorm:"not null;default:false;index" json:"resolved"`
	Resolution      *FlagResolution `gorm:"type:enum('approved','edit','merge')" json:"resolution"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// ListUnresolvedFlags returns the pending queue, newest first.
func ListUnresolvedFlags(ctx context.Context) ([]*FlaggedRecord, error) {
	db := config.GetDB()
	var results []*FlaggedRecord
	err := db.WithContext(ctx).
		Where("resolved = ?", false).
		Order("created_at desc").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func GetFlaggedRecordById(ctx context.Context, id int) (*FlaggedRecord, error) {
	db := config.GetDB()
	var result FlaggedRecord
	if err := db.WithContext(ctx).First(&result, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

// ListAllFlags returns resolved and unresolved records for export, newest first.
func ListAllFlags(ctx context.Context) ([]*FlaggedRecord, error) {
	db := config.GetDB()
	var results []*FlaggedRecord
	if err := db.WithContext(ctx).Order("created_at desc").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
