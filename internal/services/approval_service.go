package services

import (
	"fmt"
	"time"

	"github.com/fieldops/backend/internal/models"
	"gorm.io/gorm"
)

// ApprovalService processes manager decisions on completed work: steps,
// sub-steps, cost entries and the job-completion approval itself. All
// approvable entities share the embedded Approvable value, so one pair of
// update builders serves every entity type.
type ApprovalService struct {
	db       *gorm.DB
	notifier *NotificationService
}

func NewApprovalService(db *gorm.DB, notifier *NotificationService) *ApprovalService {
	return &ApprovalService{db: db, notifier: notifier}
}

// approveUpdates builds the column set for approving any Approvable entity.
func approveUpdates(approverID uint, now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"approval_status":  models.ApprovalApproved,
		"approved_by_id":   approverID,
		"approved_at":      &now,
		"rejection_reason": nil,
	}
}

// rejectUpdates builds the column set for rejecting any Approvable entity.
func rejectUpdates(approverID uint, reason string, now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"approval_status":  models.ApprovalRejected,
		"approved_by_id":   approverID,
		"approved_at":      &now,
		"rejection_reason": reason,
	}
}

func requireApprover(actor Actor) error {
	if !actor.Role.IsElevated() {
		return ErrForbidden("only admins and managers may review work")
	}
	return nil
}

// ApproveStep marks a completed step as reviewed and notifies whoever
// completed it. Job status is not affected.
func (as *ApprovalService) ApproveStep(stepID uint, approver Actor) (*models.JobStep, error) {
	if err := requireApprover(approver); err != nil {
		return nil, err
	}

	var step models.JobStep
	var eventIDs []uint

	err := as.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&step, stepID).Error; err != nil {
			if isNotFound(err) {
				return ErrNotFound("step")
			}
			return err
		}

		now := time.Now()
		if err := tx.Model(&step).Updates(approveUpdates(approver.ID, now)).Error; err != nil {
			return err
		}

		if step.CompletedByID != nil {
			ev := &models.JobEvent{
				JobID:        &step.JobID,
				Audience:     models.AudienceUser,
				TargetUserID: step.CompletedByID,
				Title:        "Step approved",
				Message:      fmt.Sprintf("Your work on step %q was approved", step.Title),
				Type:         models.NotificationSuccess,
				Link:         fmt.Sprintf("/jobs/%d", step.JobID),
			}
			if err := as.notifier.Enqueue(tx, ev); err != nil {
				return err
			}
			eventIDs = append(eventIDs, ev.ID)
		}

		return tx.First(&step, step.ID).Error
	})
	if err != nil {
		return nil, err
	}

	as.notifier.Dispatch(eventIDs...)
	return &step, nil
}

// RejectStep rejects a completed step with a reason, reopening it. The
// step's sub-steps keep their state (no downward cascade). Everyone assigned
// to the owning job is notified.
func (as *ApprovalService) RejectStep(stepID uint, approver Actor, reason string) (*models.JobStep, error) {
	if err := requireApprover(approver); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, ErrValidation("rejection reason is required")
	}

	var step models.JobStep
	var eventIDs []uint

	err := as.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&step, stepID).Error; err != nil {
			if isNotFound(err) {
				return ErrNotFound("step")
			}
			return err
		}

		now := time.Now()
		updates := rejectUpdates(approver.ID, reason, now)
		updates["is_completed"] = false
		updates["completed_at"] = nil
		updates["completed_by_id"] = nil
		if err := tx.Model(&step).Updates(updates).Error; err != nil {
			return err
		}

		ev := &models.JobEvent{
			JobID:    &step.JobID,
			Audience: models.AudienceAssignees,
			Title:    "Step rejected",
			Message:  fmt.Sprintf("Step %q was rejected: %s", step.Title, reason),
			Type:     models.NotificationError,
			Link:     fmt.Sprintf("/jobs/%d", step.JobID),
		}
		if err := as.notifier.Enqueue(tx, ev); err != nil {
			return err
		}
		eventIDs = append(eventIDs, ev.ID)

		return tx.First(&step, step.ID).Error
	})
	if err != nil {
		return nil, err
	}

	as.notifier.Dispatch(eventIDs...)
	return &step, nil
}

// ApproveSubStep marks a sub-step as reviewed.
func (as *ApprovalService) ApproveSubStep(subStepID uint, approver Actor) (*models.JobSubStep, error) {
	if err := requireApprover(approver); err != nil {
		return nil, err
	}

	var sub models.JobSubStep
	err := as.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sub, subStepID).Error; err != nil {
			if isNotFound(err) {
				return ErrNotFound("sub-step")
			}
			return err
		}

		if err := tx.Model(&sub).Updates(approveUpdates(approver.ID, time.Now())).Error; err != nil {
			return err
		}
		return tx.First(&sub, sub.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// RejectSubStep rejects a sub-step with a reason. This is the only path
// that reopens a completed sub-step: completion and startedAt are reset so
// the work can be redone. The parent step is recomputed in the same
// transaction and every job recipient is notified with the reason.
func (as *ApprovalService) RejectSubStep(subStepID uint, approver Actor, reason string) (*models.JobSubStep, error) {
	if err := requireApprover(approver); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, ErrValidation("rejection reason is required")
	}

	var sub models.JobSubStep
	var jobID uint
	var eventIDs []uint

	err := as.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sub, subStepID).Error; err != nil {
			if isNotFound(err) {
				return ErrNotFound("sub-step")
			}
			return err
		}

		var step models.JobStep
		if err := tx.First(&step, sub.StepID).Error; err != nil {
			return err
		}
		jobID = step.JobID

		now := time.Now()
		updates := rejectUpdates(approver.ID, reason, now)
		updates["is_completed"] = false
		updates["completed_at"] = nil
		updates["started_at"] = nil
		if err := tx.Model(&sub).Updates(updates).Error; err != nil {
			return err
		}

		if err := cascadeStepCompletion(tx, sub.StepID, now); err != nil {
			return err
		}

		ev := &models.JobEvent{
			JobID:    &jobID,
			Audience: models.AudienceAssignees,
			Title:    "Sub-step rejected",
			Message:  fmt.Sprintf("Sub-step %q was rejected: %s", sub.Title, reason),
			Type:     models.NotificationError,
			Link:     fmt.Sprintf("/jobs/%d", jobID),
		}
		if err := as.notifier.Enqueue(tx, ev); err != nil {
			return err
		}
		eventIDs = append(eventIDs, ev.ID)

		return tx.First(&sub, sub.ID).Error
	})
	if err != nil {
		return nil, err
	}

	as.notifier.Dispatch(eventIDs...)
	return &sub, nil
}

// ResolveJobApproval settles a pending job-completion approval. Approving
// finalizes the completed job; rejecting reverts it to IN_PROGRESS and
// clears its completion date. The requester is notified either way.
func (as *ApprovalService) ResolveJobApproval(approvalID uint, approver Actor, approve bool, reason string) (*models.Approval, error) {
	if err := requireApprover(approver); err != nil {
		return nil, err
	}
	if !approve && reason == "" {
		return nil, ErrValidation("rejection reason is required")
	}

	var approval models.Approval
	var eventIDs []uint

	err := as.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&approval, approvalID).Error; err != nil {
			if isNotFound(err) {
				return ErrNotFound("approval")
			}
			return err
		}

		if approval.Status != models.ApprovalPending {
			return ErrInvalidTransition("approval is already resolved")
		}

		var job models.Job
		if err := tx.First(&job, approval.JobID).Error; err != nil {
			return err
		}

		now := time.Now()
		updates := map[string]interface{}{"resolved_at": &now}
		var ev *models.JobEvent
		if approve {
			updates["status"] = models.ApprovalApproved
			ev = &models.JobEvent{
				JobID:        &job.ID,
				Audience:     models.AudienceUser,
				TargetUserID: &approval.RequesterID,
				Title:        "Job completion approved",
				Message:      fmt.Sprintf("Completion of job %q was approved", job.Title),
				Type:         models.NotificationSuccess,
				Link:         fmt.Sprintf("/jobs/%d", job.ID),
			}
		} else {
			updates["status"] = models.ApprovalRejected
			updates["reason"] = reason
			if err := tx.Model(&job).Updates(map[string]interface{}{
				"status":         models.JobStatusInProgress,
				"completed_date": nil,
			}).Error; err != nil {
				return err
			}
			ev = &models.JobEvent{
				JobID:        &job.ID,
				Audience:     models.AudienceUser,
				TargetUserID: &approval.RequesterID,
				Title:        "Job completion rejected",
				Message:      fmt.Sprintf("Completion of job %q was rejected: %s", job.Title, reason),
				Type:         models.NotificationError,
				Link:         fmt.Sprintf("/jobs/%d", job.ID),
			}
		}

		if err := tx.Model(&approval).Updates(updates).Error; err != nil {
			return err
		}

		if err := as.notifier.Enqueue(tx, ev); err != nil {
			return err
		}
		eventIDs = append(eventIDs, ev.ID)

		return tx.First(&approval, approval.ID).Error
	})
	if err != nil {
		return nil, err
	}

	as.notifier.Dispatch(eventIDs...)
	return &approval, nil
}

// ApproveCost approves a cost entry. Cost decisions never cascade into job
// or step state.
func (as *ApprovalService) ApproveCost(costID uint, approver Actor) (*models.CostTracking, error) {
	if err := requireApprover(approver); err != nil {
		return nil, err
	}

	var cost models.CostTracking
	err := as.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&cost, costID).Error; err != nil {
			if isNotFound(err) {
				return ErrNotFound("cost entry")
			}
			return err
		}

		if err := tx.Model(&cost).Updates(approveUpdates(approver.ID, time.Now())).Error; err != nil {
			return err
		}
		return tx.First(&cost, cost.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &cost, nil
}

// RejectCost rejects a cost entry with a reason.
func (as *ApprovalService) RejectCost(costID uint, approver Actor, reason string) (*models.CostTracking, error) {
	if err := requireApprover(approver); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, ErrValidation("rejection reason is required")
	}

	var cost models.CostTracking
	err := as.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&cost, costID).Error; err != nil {
			if isNotFound(err) {
				return ErrNotFound("cost entry")
			}
			return err
		}

		if err := tx.Model(&cost).Updates(rejectUpdates(approver.ID, reason, time.Now())).Error; err != nil {
			return err
		}
		return tx.First(&cost, cost.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &cost, nil
}
