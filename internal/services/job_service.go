package services

import (
	"fmt"
	"time"

	"github.com/fieldops/backend/internal/models"
	"gorm.io/gorm"
)

// JobService owns the job-level state machine and orchestrates approval
// creation and notification fan-out on completion.
type JobService struct {
	db       *gorm.DB
	notifier *NotificationService
}

func NewJobService(db *gorm.DB, notifier *NotificationService) *JobService {
	return &JobService{db: db, notifier: notifier}
}

type SubStepInput struct {
	Title string `json:"title" binding:"required"`
}

type StepInput struct {
	Title    string         `json:"title" binding:"required"`
	SubSteps []SubStepInput `json:"subSteps"`
}

type CreateJobInput struct {
	Title            string             `json:"title" binding:"required"`
	Description      string             `json:"description"`
	Priority         models.JobPriority `json:"priority"`
	ScheduledDate    *time.Time         `json:"scheduledDate"`
	ScheduledEndDate *time.Time         `json:"scheduledEndDate"`
	Steps            []StepInput        `json:"steps"`
}

// Create builds a job with its initial ordered checklist.
func (js *JobService) Create(input CreateJobInput, actor Actor) (*models.Job, error) {
	if !actor.Role.IsElevated() {
		return nil, ErrForbidden("only admins and managers may create jobs")
	}

	priority := input.Priority
	if priority == "" {
		priority = models.JobPriorityMedium
	}

	job := models.Job{
		Title:            input.Title,
		Description:      input.Description,
		Status:           models.JobStatusPending,
		Priority:         priority,
		ScheduledDate:    input.ScheduledDate,
		ScheduledEndDate: input.ScheduledEndDate,
		CreatedByID:      actor.ID,
	}
	for i, s := range input.Steps {
		step := models.JobStep{Title: s.Title, Order: i + 1}
		for j, ss := range s.SubSteps {
			step.SubSteps = append(step.SubSteps, models.JobSubStep{Title: ss.Title, Order: j + 1})
		}
		job.Steps = append(job.Steps, step)
	}

	if err := js.db.Create(&job).Error; err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return &job, nil
}

// Get loads a job with its checklist and assignments.
func (js *JobService) Get(jobID uint) (*models.Job, error) {
	var job models.Job
	err := js.db.
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_order") }).
		Preload("Steps.SubSteps", func(db *gorm.DB) *gorm.DB { return db.Order("sub_step_order") }).
		Preload("Assignments").
		First(&job, jobID).Error
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound("job")
		}
		return nil, err
	}
	return &job, nil
}

type ListJobsFilter struct {
	Status   models.JobStatus
	Priority models.JobPriority
	Page     int
	Limit    int
}

// List returns jobs matching the filter, newest first.
func (js *JobService) List(filter ListJobsFilter) ([]models.Job, int64, error) {
	query := js.db.Model(&models.Job{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 20
	}

	var jobs []models.Job
	err := query.Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// Start transitions PENDING -> IN_PROGRESS. Calling Start on a job that is
// already IN_PROGRESS is an idempotent success, absorbing duplicate client
// retries; any other non-PENDING status is an invalid transition. Callers
// without an elevated role must hold an assignment to the job.
func (js *JobService) Start(jobID uint, actor Actor, clientVersion *time.Time) (*models.Job, error) {
	var job models.Job
	var eventIDs []uint

	err := js.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&job, jobID).Error; err != nil {
			if isNotFound(err) {
				return ErrNotFound("job")
			}
			return err
		}

		if err := CheckConflict(clientVersion, job.UpdatedAt); err != nil {
			return err
		}

		if !actor.Role.IsElevated() {
			assigned, err := holdsAssignment(tx, jobID, actor.ID)
			if err != nil {
				return err
			}
			if !assigned {
				return ErrForbidden("you are not assigned to this job")
			}
		}

		if job.Status == models.JobStatusInProgress {
			return nil // idempotent: duplicate start is not an error
		}
		if job.Status != models.JobStatusPending {
			return ErrInvalidTransition(
				fmt.Sprintf("cannot start a job in status %s", job.Status))
		}

		now := time.Now()
		if err := tx.Model(&job).Updates(map[string]interface{}{
			"status":     models.JobStatusInProgress,
			"started_at": &now,
		}).Error; err != nil {
			return err
		}

		ev := &models.JobEvent{
			JobID:         &job.ID,
			Audience:      models.AudienceAdmins,
			ExcludeUserID: &actor.ID,
			Title:         "Job started",
			Message:       fmt.Sprintf("Work on job %q has started", job.Title),
			Type:          models.NotificationInfo,
			Link:          fmt.Sprintf("/jobs/%d", job.ID),
		}
		if err := js.notifier.Enqueue(tx, ev); err != nil {
			return err
		}
		eventIDs = append(eventIDs, ev.ID)

		return tx.First(&job, job.ID).Error
	})
	if err != nil {
		return nil, err
	}

	js.notifier.Dispatch(eventIDs...)
	return &job, nil
}

// RequestCompletion marks the job complete and opens a PENDING approval for
// a resolved admin or manager. The job update and the approval creation are
// one transaction: if no approver exists, nothing is applied.
func (js *JobService) RequestCompletion(jobID uint, actor Actor, clientVersion *time.Time) (*models.Job, *models.Approval, error) {
	if !actor.Role.CanToggleProgress() {
		return nil, nil, ErrForbidden("you are not allowed to complete jobs")
	}

	var job models.Job
	var approval models.Approval
	var eventIDs []uint

	err := js.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&job, jobID).Error; err != nil {
			if isNotFound(err) {
				return ErrNotFound("job")
			}
			return err
		}

		if err := CheckConflict(clientVersion, job.UpdatedAt); err != nil {
			return err
		}

		if !actor.Role.IsElevated() {
			assigned, err := holdsAssignment(tx, jobID, actor.ID)
			if err != nil {
				return err
			}
			if !assigned {
				return ErrForbidden("you are not assigned to this job")
			}
		}

		var incomplete int64
		if err := tx.Model(&models.JobStep{}).
			Where("job_id = ? AND is_completed = ?", jobID, false).
			Count(&incomplete).Error; err != nil {
			return err
		}
		if incomplete > 0 {
			return newError(CodeStepsIncomplete,
				"cannot complete job while steps are incomplete")
		}

		approver, err := resolveApprover(tx)
		if err != nil {
			return err
		}

		now := time.Now()
		if err := tx.Model(&job).Updates(map[string]interface{}{
			"status":         models.JobStatusCompleted,
			"completed_date": &now,
		}).Error; err != nil {
			return err
		}

		approval = models.Approval{
			JobID:       job.ID,
			RequesterID: actor.ID,
			ApproverID:  approver.ID,
			Status:      models.ApprovalPending,
			Type:        models.ApprovalTypeJobCompletion,
		}
		if err := tx.Create(&approval).Error; err != nil {
			return err
		}

		ev := &models.JobEvent{
			JobID:        &job.ID,
			Audience:     models.AudienceUser,
			TargetUserID: &approver.ID,
			Title:        "Job completion requires approval",
			Message:      fmt.Sprintf("Job %q was marked complete and awaits your approval", job.Title),
			Type:         models.NotificationInfo,
			Link:         fmt.Sprintf("/jobs/%d", job.ID),
		}
		if err := js.notifier.Enqueue(tx, ev); err != nil {
			return err
		}
		eventIDs = append(eventIDs, ev.ID)

		return tx.First(&job, job.ID).Error
	})
	if err != nil {
		return nil, nil, err
	}

	js.notifier.Dispatch(eventIDs...)
	return &job, &approval, nil
}

// resolveApprover picks the user who reviews a job completion: the first
// active admin, falling back to the first active manager. None existing is a
// fatal configuration error.
func resolveApprover(tx *gorm.DB) (*models.User, error) {
	var approver models.User
	err := tx.Where("role = ? AND is_active = ?", models.RoleAdmin, true).
		Order("id").First(&approver).Error
	if err == nil {
		return &approver, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	err = tx.Where("role = ? AND is_active = ?", models.RoleManager, true).
		Order("id").First(&approver).Error
	if err == nil {
		return &approver, nil
	}
	if !isNotFound(err) {
		return nil, err
	}
	return nil, newError(CodeNoApproverAvailable, "no admin or manager available to approve")
}

// SetStatus applies a role-restricted manual status change and self-notifies
// the actor. Workers and team leads may move between PENDING, IN_PROGRESS
// and COMPLETED; ON_HOLD and CANCELLED are administrative.
func (js *JobService) SetStatus(jobID uint, newStatus models.JobStatus, actor Actor, clientVersion *time.Time) (*models.Job, error) {
	switch newStatus {
	case models.JobStatusPending, models.JobStatusInProgress, models.JobStatusCompleted:
		if !actor.Role.CanToggleProgress() {
			return nil, ErrForbidden("you are not allowed to change job status")
		}
	case models.JobStatusOnHold, models.JobStatusCancelled:
		if !actor.Role.IsElevated() {
			return nil, ErrForbidden("only admins and managers may hold or cancel jobs")
		}
	default:
		return nil, ErrValidation(fmt.Sprintf("unknown status %q", newStatus))
	}

	var job models.Job
	var eventIDs []uint

	err := js.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&job, jobID).Error; err != nil {
			if isNotFound(err) {
				return ErrNotFound("job")
			}
			return err
		}

		if err := CheckConflict(clientVersion, job.UpdatedAt); err != nil {
			return err
		}

		now := time.Now()
		updates := map[string]interface{}{"status": newStatus}
		switch newStatus {
		case models.JobStatusPending:
			// a PENDING job has not started
			updates["started_at"] = nil
			updates["completed_date"] = nil
		case models.JobStatusInProgress:
			if job.StartedAt == nil {
				updates["started_at"] = &now
			}
			updates["completed_date"] = nil
		case models.JobStatusCompleted:
			var incomplete int64
			if err := tx.Model(&models.JobStep{}).
				Where("job_id = ? AND is_completed = ?", jobID, false).
				Count(&incomplete).Error; err != nil {
				return err
			}
			if incomplete > 0 {
				return newError(CodeStepsIncomplete,
					"cannot complete job while steps are incomplete")
			}
			updates["completed_date"] = &now
		}

		if err := tx.Model(&job).Updates(updates).Error; err != nil {
			return err
		}

		ev := &models.JobEvent{
			JobID:        &job.ID,
			Audience:     models.AudienceUser,
			TargetUserID: &actor.ID,
			Title:        "Job status updated",
			Message:      fmt.Sprintf("Job %q is now %s", job.Title, newStatus),
			Type:         models.NotificationInfo,
			Link:         fmt.Sprintf("/jobs/%d", job.ID),
		}
		if err := js.notifier.Enqueue(tx, ev); err != nil {
			return err
		}
		eventIDs = append(eventIDs, ev.ID)

		return tx.First(&job, job.ID).Error
	})
	if err != nil {
		return nil, err
	}

	js.notifier.Dispatch(eventIDs...)
	return &job, nil
}

type UpdateJobInput struct {
	Title            *string             `json:"title"`
	Description      *string             `json:"description"`
	Priority         *models.JobPriority `json:"priority"`
	ScheduledDate    *time.Time          `json:"scheduledDate"`
	ScheduledEndDate *time.Time          `json:"scheduledEndDate"`
}

// Update edits schedule and priority fields under the conflict check.
func (js *JobService) Update(jobID uint, input UpdateJobInput, actor Actor, clientVersion *time.Time) (*models.Job, error) {
	if !actor.Role.IsElevated() {
		return nil, ErrForbidden("only admins and managers may edit jobs")
	}

	var job models.Job
	err := js.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&job, jobID).Error; err != nil {
			if isNotFound(err) {
				return ErrNotFound("job")
			}
			return err
		}

		if err := CheckConflict(clientVersion, job.UpdatedAt); err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if input.Title != nil {
			updates["title"] = *input.Title
		}
		if input.Description != nil {
			updates["description"] = *input.Description
		}
		if input.Priority != nil {
			updates["priority"] = *input.Priority
		}
		if input.ScheduledDate != nil {
			updates["scheduled_date"] = input.ScheduledDate
		}
		if input.ScheduledEndDate != nil {
			updates["scheduled_end_date"] = input.ScheduledEndDate
		}
		if len(updates) == 0 {
			return nil
		}

		if err := tx.Model(&job).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&job, job.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Assign binds the job to a worker or a team, never both in one assignment.
func (js *JobService) Assign(jobID uint, workerID, teamID *uint, actor Actor) (*models.JobAssignment, error) {
	if !actor.Role.IsElevated() {
		return nil, ErrForbidden("only admins and managers may assign jobs")
	}
	if (workerID == nil) == (teamID == nil) {
		return nil, ErrValidation("exactly one of workerId or teamId is required")
	}

	var assignment models.JobAssignment
	var eventIDs []uint

	err := js.db.Transaction(func(tx *gorm.DB) error {
		var job models.Job
		if err := tx.First(&job, jobID).Error; err != nil {
			if isNotFound(err) {
				return ErrNotFound("job")
			}
			return err
		}

		if workerID != nil {
			var worker models.User
			if err := tx.First(&worker, *workerID).Error; err != nil {
				if isNotFound(err) {
					return ErrNotFound("worker")
				}
				return err
			}
		}
		if teamID != nil {
			var team models.Team
			if err := tx.First(&team, *teamID).Error; err != nil {
				if isNotFound(err) {
					return ErrNotFound("team")
				}
				return err
			}
		}

		assignment = models.JobAssignment{JobID: jobID, WorkerID: workerID, TeamID: teamID}
		if err := tx.Create(&assignment).Error; err != nil {
			return err
		}

		ev := &models.JobEvent{
			JobID:    &job.ID,
			Audience: models.AudienceAssignees,
			Title:    "New job assignment",
			Message:  fmt.Sprintf("You have been assigned to job %q", job.Title),
			Type:     models.NotificationInfo,
			Link:     fmt.Sprintf("/jobs/%d", job.ID),
		}
		if err := js.notifier.Enqueue(tx, ev); err != nil {
			return err
		}
		eventIDs = append(eventIDs, ev.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	js.notifier.Dispatch(eventIDs...)
	return &assignment, nil
}
