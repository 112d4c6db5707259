package services

import (
	"time"

	"github.com/fieldops/backend/internal/models"
	"gorm.io/gorm"
)

// CascadePolicy names the direction completion state propagates between a
// step and its sub-steps.
type CascadePolicy string

const (
	// CascadeUp recomputes the parent step from its sub-steps after every
	// sub-step mutation. Step un-completion deliberately does not cascade
	// down to sub-steps.
	CascadeUp CascadePolicy = "CASCADE_UP"
)

// StepCascadePolicy is the policy in effect. Down-cascading was considered
// and rejected: reopening a step should not discard sub-step evidence.
const StepCascadePolicy = CascadeUp

// GateService enforces ordering and completeness rules on step and sub-step
// completion and cascades sub-step state up to the owning step.
type GateService struct {
	db *gorm.DB
}

func NewGateService(db *gorm.DB) *GateService {
	return &GateService{db: db}
}

// recomputeStepCompletion derives a step's completion from its sub-steps:
// complete iff every sub-step is complete.
func recomputeStepCompletion(subSteps []models.JobSubStep) bool {
	for _, s := range subSteps {
		if !s.IsCompleted {
			return false
		}
	}
	return true
}

// ToggleSubStep flips a sub-step's completion. Sibling order is not
// enforced. Completing stamps completedAt and, if never started, startedAt
// (toggling to done implicitly starts). Un-completing clears completedAt
// only. The parent step is recomputed inside the same transaction.
func (gs *GateService) ToggleSubStep(subStepID uint, actor Actor, clientVersion *time.Time) (*models.JobSubStep, error) {
	if !actor.Role.CanToggleProgress() {
		return nil, ErrForbidden("you are not allowed to update checklist progress")
	}

	var sub models.JobSubStep
	err := gs.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sub, subStepID).Error; err != nil {
			if isNotFound(err) {
				return ErrNotFound("sub-step")
			}
			return err
		}

		if err := CheckConflict(clientVersion, sub.UpdatedAt); err != nil {
			return err
		}

		now := time.Now()
		updates := map[string]interface{}{}
		if !sub.IsCompleted {
			updates["is_completed"] = true
			updates["completed_at"] = &now
			if sub.StartedAt == nil {
				updates["started_at"] = &now
			}
		} else {
			updates["is_completed"] = false
			updates["completed_at"] = nil
		}
		if err := tx.Model(&sub).Updates(updates).Error; err != nil {
			return err
		}

		if err := cascadeStepCompletion(tx, sub.StepID, now); err != nil {
			return err
		}

		return tx.First(&sub, sub.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// cascadeStepCompletion recomputes the owning step's completion from the
// current sub-step rows and stamps or clears the step accordingly.
func cascadeStepCompletion(tx *gorm.DB, stepID uint, now time.Time) error {
	var siblings []models.JobSubStep
	if err := tx.Where("step_id = ?", stepID).Find(&siblings).Error; err != nil {
		return err
	}

	var step models.JobStep
	if err := tx.First(&step, stepID).Error; err != nil {
		return err
	}

	complete := recomputeStepCompletion(siblings)
	if complete == step.IsCompleted {
		return nil
	}

	updates := map[string]interface{}{"is_completed": complete}
	if complete {
		updates["completed_at"] = &now
	} else {
		updates["completed_at"] = nil
		updates["completed_by_id"] = nil
	}
	return tx.Model(&step).Updates(updates).Error
}

// ToggleStep flips a step's completion. Completing requires the preceding
// step (by order) to be complete and every sub-step of this step to be
// complete. Un-completing has no preconditions and does not touch startedAt
// or the sub-steps.
func (gs *GateService) ToggleStep(stepID uint, actor Actor, clientVersion *time.Time) (*models.JobStep, error) {
	if !actor.Role.CanToggleProgress() {
		return nil, ErrForbidden("you are not allowed to update checklist progress")
	}

	var step models.JobStep
	err := gs.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&step, stepID).Error; err != nil {
			if isNotFound(err) {
				return ErrNotFound("step")
			}
			return err
		}

		if err := CheckConflict(clientVersion, step.UpdatedAt); err != nil {
			return err
		}

		now := time.Now()
		updates := map[string]interface{}{}
		if !step.IsCompleted {
			if step.Order > 1 {
				var prev models.JobStep
				err := tx.Where("job_id = ? AND step_order = ?", step.JobID, step.Order-1).
					First(&prev).Error
				if err != nil && !isNotFound(err) {
					return err
				}
				if err == nil && !prev.IsCompleted {
					return newError(CodeSequenceViolation,
						"cannot complete step before completing previous step")
				}
			}

			var incomplete int64
			if err := tx.Model(&models.JobSubStep{}).
				Where("step_id = ? AND is_completed = ?", step.ID, false).
				Count(&incomplete).Error; err != nil {
				return err
			}
			if incomplete > 0 {
				return newError(CodeIncompleteSubSteps,
					"cannot complete step while sub-steps are incomplete")
			}

			updates["is_completed"] = true
			updates["completed_at"] = &now
			updates["completed_by_id"] = actor.ID
			if step.StartedAt == nil {
				updates["started_at"] = &now
			}
		} else {
			updates["is_completed"] = false
			updates["completed_at"] = nil
			updates["completed_by_id"] = nil
		}

		if err := tx.Model(&step).Updates(updates).Error; err != nil {
			return err
		}

		return tx.First(&step, step.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &step, nil
}

// AddStep appends a step to a job at the next order position.
func (gs *GateService) AddStep(jobID uint, title string, actor Actor) (*models.JobStep, error) {
	if !actor.Role.IsElevated() {
		return nil, ErrForbidden("only admins and managers may modify the checklist")
	}
	if title == "" {
		return nil, ErrValidation("step title is required")
	}

	var step models.JobStep
	err := gs.db.Transaction(func(tx *gorm.DB) error {
		var job models.Job
		if err := tx.First(&job, jobID).Error; err != nil {
			if isNotFound(err) {
				return ErrNotFound("job")
			}
			return err
		}

		var maxOrder int
		row := tx.Model(&models.JobStep{}).Where("job_id = ?", jobID).
			Select("COALESCE(MAX(step_order), 0)").Row()
		if err := row.Scan(&maxOrder); err != nil {
			return err
		}

		step = models.JobStep{JobID: jobID, Title: title, Order: maxOrder + 1}
		return tx.Create(&step).Error
	})
	if err != nil {
		return nil, err
	}
	return &step, nil
}

// AddSubStep appends a sub-step to a step.
func (gs *GateService) AddSubStep(stepID uint, title string, actor Actor) (*models.JobSubStep, error) {
	if !actor.Role.IsElevated() {
		return nil, ErrForbidden("only admins and managers may modify the checklist")
	}
	if title == "" {
		return nil, ErrValidation("sub-step title is required")
	}

	var sub models.JobSubStep
	err := gs.db.Transaction(func(tx *gorm.DB) error {
		var step models.JobStep
		if err := tx.First(&step, stepID).Error; err != nil {
			if isNotFound(err) {
				return ErrNotFound("step")
			}
			return err
		}

		var maxOrder int
		row := tx.Model(&models.JobSubStep{}).Where("step_id = ?", stepID).
			Select("COALESCE(MAX(sub_step_order), 0)").Row()
		if err := row.Scan(&maxOrder); err != nil {
			return err
		}

		sub = models.JobSubStep{StepID: stepID, Title: title, Order: maxOrder + 1}
		if err := tx.Create(&sub).Error; err != nil {
			return err
		}

		// A newly added incomplete sub-step reopens a completed parent.
		return cascadeStepCompletion(tx, stepID, time.Now())
	})
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// AttachPhotos appends photo evidence to a sub-step.
func (gs *GateService) AttachPhotos(subStepID uint, photos []models.Photo, actor Actor) (*models.JobSubStep, error) {
	if !actor.Role.CanToggleProgress() {
		return nil, ErrForbidden("you are not allowed to update checklist progress")
	}
	if len(photos) == 0 {
		return nil, ErrValidation("at least one photo is required")
	}

	var sub models.JobSubStep
	err := gs.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sub, subStepID).Error; err != nil {
			if isNotFound(err) {
				return ErrNotFound("sub-step")
			}
			return err
		}

		sub.PhotoURLs = append(sub.PhotoURLs, photos...)
		return tx.Model(&sub).Update("photo_urls", sub.PhotoURLs).Error
	})
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
