package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/easytask_backend/config"
	"github.com/mmdatafocus/easytask_backend/models"
	"github.com/mmdatafocus/easytask_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrFlagNotFound covers both an unknown flaggedId and an already-resolved
// record: resolution is a one-shot PENDING -> RESOLVED transition.
var ErrFlagNotFound = errors.New("record not found or already resolved")

type ResolveOptions struct {
	Name            string
	TargetStudentId int
}

type ResolveResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// resolutionPlan is the staged effect of one resolution decision. Exactly one
// of createStudent / updateStudentId is set.
type resolutionPlan struct {
	createStudent   *models.Student
	updateStudentId int
	setName         *string
	countDelta      int
	resolution      models.FlagResolution
	message         string
}

// planResolution maps (flag, action, options, current student state) to a
// write plan. Pure; lookups are done by the caller inside the transaction.
//
//   - approve: create a fresh student from the flag (optional name override);
//     fails if the index number is already taken.
//   - edit: requires a name; merges into the student holding the flagged index
//     number, or creates one if none exists.
//   - merge: folds the flagged count into an explicit target student; the
//     flagged index number and name are discarded.
func planResolution(flag *models.FlaggedRecord, action models.ResolutionAction, opts ResolveOptions, existingByIndex *models.Student, target *models.Student) (*resolutionPlan, error) {

	switch action {
	case models.ResolutionActionApprove:
		if existingByIndex != nil {
			return nil, fmt.Errorf("a student with index number %s already exists", flag.IndexNumber)
		}
		name := strings.TrimSpace(opts.Name)
		var namePtr *string
		if name != "" {
			namePtr = &name
		} else {
			namePtr = flag.Name
		}
		return &resolutionPlan{
			createStudent: &models.Student{
				IndexNumber:     flag.IndexNumber,
				Name:            namePtr,
				AssignmentCount: flag.AssignmentCount,
			},
			resolution: action.Resolution(),
			message:    "Approved into main records.",
		}, nil

	case models.ResolutionActionEdit:
		name := strings.TrimSpace(opts.Name)
		if name == "" {
			return nil, errors.New("name is required for edit")
		}
		if existingByIndex != nil {
			return &resolutionPlan{
				updateStudentId: existingByIndex.ID,
				setName:         &name,
				countDelta:      flag.AssignmentCount,
				resolution:      action.Resolution(),
				message:         "Updated and merged.",
			}, nil
		}
		return &resolutionPlan{
			createStudent: &models.Student{
				IndexNumber:     flag.IndexNumber,
				Name:            &name,
				AssignmentCount: flag.AssignmentCount,
			},
			resolution: action.Resolution(),
			message:    "Added to main records.",
		}, nil

	case models.ResolutionActionMerge:
		if opts.TargetStudentId <= 0 {
			return nil, errors.New("target student is required for merge")
		}
		if target == nil {
			return nil, errors.New("target student not found")
		}
		return &resolutionPlan{
			updateStudentId: target.ID,
			countDelta:      flag.AssignmentCount,
			resolution:      action.Resolution(),
			message:         "Merged into existing student.",
		}, nil
	}

	return nil, errors.New("invalid resolution action")
}

// ResolveFlag applies an operator decision to one pending flagged record.
// The student mutation and the PENDING -> RESOLVED transition commit together;
// the guarded UPDATE (id AND resolved = false) makes re-resolution a no-op
// that reports not-found. A per-flag redis lock shortens the conflict window
// but correctness does not depend on it.
func ResolveFlag(ctx context.Context, flaggedId int, action models.ResolutionAction, opts ResolveOptions) (*ResolveResult, error) {

	logger := config.GetLogger()
	db := config.GetDB()

	// Best-effort lock; the transactional guard below is the real serializer.
	if redisLock := config.GetRedisLock(); redisLock != nil {
		lock, err := redisLock.Obtain(ctx, fmt.Sprintf("flag:%d", flaggedId), 30*time.Second, nil)
		if err == nil {
			defer func() {
				if releaseErr := lock.Release(ctx); releaseErr != nil {
					logger.WithFields(logrus.Fields{
						"field":      "ResolveFlag",
						"flagged_id": flaggedId,
					}).Warn("failed to release redis lock: " + releaseErr.Error())
				}
			}()
		} else if err != redislock.ErrNotObtained {
			logger.WithFields(logrus.Fields{
				"field":      "ResolveFlag",
				"flagged_id": flaggedId,
			}).Warn("error obtaining redis lock; proceeding without redis lock: " + err.Error())
		}
	}

	var message string
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {

		var flag models.FlaggedRecord
		if err := tx.Where("id = ? AND resolved = ?", flaggedId, false).Take(&flag).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrFlagNotFound
			}
			return err
		}

		var existingByIndex *models.Student
		var found models.Student
		err := tx.Where("index_number = ?", flag.IndexNumber).Take(&found).Error
		if err == nil {
			existingByIndex = &found
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var target *models.Student
		if action == models.ResolutionActionMerge && opts.TargetStudentId > 0 {
			var t models.Student
			err := tx.First(&t, opts.TargetStudentId).Error
			if err == nil {
				target = &t
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		plan, err := planResolution(&flag, action, opts, existingByIndex, target)
		if err != nil {
			return err
		}

		if plan.createStudent != nil {
			if err := tx.Create(plan.createStudent).Error; err != nil {
				if utils.IsDuplicateKeyError(err) {
					return fmt.Errorf("%w: index number %s was taken concurrently", utils.ErrorDuplicateKey, flag.IndexNumber)
				}
				return err
			}
		} else if plan.updateStudentId > 0 {
			updates := map[string]interface{}{
				"assignment_count": gorm.Expr("assignment_count + ?", plan.countDelta),
			}
			if plan.setName != nil {
				updates["name"] = *plan.setName
			}
			if err := tx.Model(&models.Student{}).
				Where("id = ?", plan.updateStudentId).
				Updates(updates).Error; err != nil {
				return err
			}
		}

		if err := completeResolution(tx, flaggedId, plan.resolution); err != nil {
			// Lost a race with a concurrent resolver; roll everything back.
			return err
		}

		message = plan.message
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &ResolveResult{Success: true, Message: message}, nil
}

// completeResolution stamps the one-shot PENDING -> RESOLVED transition.
// The resolved=false guard picks the single winner under concurrency:
// anything other than exactly one affected row means another resolver got
// there first, and the caller must roll back its student mutation.
func completeResolution(tx *gorm.DB, flaggedId int, resolution models.FlagResolution) error {
	res := tx.Model(&models.FlaggedRecord{}).
		Where("id = ? AND resolved = ?", flaggedId, false).
		Updates(map[string]interface{}{
			"resolved":   true,
			"resolution": resolution,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrFlagNotFound
	}
	return nil
}

// ReopenFlag clears the resolution on a record, returning it to the pending
// queue. Ops tooling only; the resolution state machine itself never reopens.
func ReopenFlag(ctx context.Context, flaggedId int) error {
	db := config.GetDB()
	res := db.WithContext(ctx).Model(&models.FlaggedRecord{}).
		Where("id = ? AND resolved = ?", flaggedId, true).
		Updates(map[string]interface{}{
			"resolved":   false,
			"resolution": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return utils.ErrorRecordNotFound
	}
	return nil
}
