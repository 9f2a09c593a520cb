package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/easytask_backend/config"
	"github.com/mmdatafocus/easytask_backend/utils"
	"gorm.io/gorm"
)

// LookupLink is a lecturer-issued token that lets students check their own
// submission count on the public lookup page without an account.
type LookupLink struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Token     string    `gorm:"size:64;not null;uniqueIndex" json:"token"`
	CreatedBy int       `gorm:"index;not null" json:"created_by"`
	Active    *bool     `gorm:"not null;default:true" json:"active"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// LookupLinkStatus adds the derived status the dashboard shows per link.
type LookupLinkStatus struct {
	LookupLink
	IsExpired bool   `json:"is_expired"`
	Status    string `json:"status"`
}

var validLinkDurations = map[int]bool{1: true, 3: true, 6: true, 12: true, 24: true, 48: true}

func IsValidLinkDuration(hours int) bool {
	return validLinkDurations[hours]
}

func CreateLookupLink(ctx context.Context, createdBy int, durationHours int) (*LookupLink, error) {
	if !IsValidLinkDuration(durationHours) {
		return nil, errors.New("invalid duration: must be 1, 3, 6, 12, 24 or 48 hours")
	}

	link := LookupLink{
		Token:     uuid.NewString(),
		CreatedBy: createdBy,
		Active:    utils.NewTrue(),
		ExpiresAt: time.Now().Add(time.Duration(durationHours) * time.Hour),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

// ListLookupLinks returns the caller's links, active first, then newest.
func ListLookupLinks(ctx context.Context, createdBy int) ([]*LookupLinkStatus, error) {
	db := config.GetDB()
	var links []*LookupLink
	err := db.WithContext(ctx).
		Where("created_by = ?", createdBy).
		Order("active desc").
		Order("created_at desc").
		Find(&links).Error
	if err != nil {
		return nil, err
	}

	now := time.Now()
	results := make([]*LookupLinkStatus, 0, len(links))
	for _, link := range links {
		s := &LookupLinkStatus{LookupLink: *link}
		s.IsExpired = link.ExpiresAt.Before(now)
		switch {
		case s.IsExpired:
			s.Status = "expired"
		case utils.DereferencePtr(link.Active, false):
			s.Status = "active"
		default:
			s.Status = "inactive"
		}
		results = append(results, s)
	}
	return results, nil
}

// ToggleLookupLink enables/disables a link. Links are owner-scoped.
func ToggleLookupLink(ctx context.Context, createdBy int, id int, active bool) (*LookupLink, error) {
	db := config.GetDB()
	var link LookupLink
	if err := db.WithContext(ctx).First(&link, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if link.CreatedBy != createdBy {
		return nil, errors.New("you can only modify your own lookup links")
	}
	link.Active = &active
	if err := db.WithContext(ctx).Save(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

func DeleteLookupLink(ctx context.Context, createdBy int, id int) error {
	db := config.GetDB()
	var link LookupLink
	if err := db.WithContext(ctx).First(&link, id).Error; err != nil {
		return utils.ErrorRecordNotFound
	}
	if link.CreatedBy != createdBy {
		return errors.New("you can only delete your own lookup links")
	}
	return db.WithContext(ctx).Delete(&LookupLink{}, id).Error
}

// ValidateLookupToken resolves a public token to a usable link. Missing,
// inactive and expired all return RecordNotFound so the handler can answer
// with one generic message (prevents token enumeration).
func ValidateLookupToken(ctx context.Context, token string) (*LookupLink, error) {
	db := config.GetDB()
	var link LookupLink
	err := db.WithContext(ctx).Where("token = ?", token).Take(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if !utils.DereferencePtr(link.Active, false) {
		return nil, utils.ErrorRecordNotFound
	}
	if link.ExpiresAt.Before(time.Now()) {
		return nil, utils.ErrorRecordNotFound
	}
	return &link, nil
}
