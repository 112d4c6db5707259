package services

import (
	"testing"
	"time"

	"github.com/fieldops/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newJobService(db *gorm.DB) *JobService {
	return NewJobService(db, NewNotificationService(db, nil, nil))
}

func TestJobStart(t *testing.T) {
	db := newTestDB(t)
	js := newJobService(db)
	admin := createUser(t, db, models.RoleAdmin)
	worker := createUser(t, db, models.RoleWorker)
	outsider := createUser(t, db, models.RoleWorker)
	job := createJob(t, db, admin.ID, models.JobStatusPending)
	assignWorker(t, db, job.ID, worker.ID)

	// Unassigned worker is refused
	_, err := js.Start(job.ID, actorFor(outsider), nil)
	requireServiceError(t, err, CodeForbidden)

	started, err := js.Start(job.ID, actorFor(worker), nil)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusInProgress, started.Status)
	require.NotNil(t, started.StartedAt)
	firstStart := *started.StartedAt

	// Duplicate start is an idempotent success, not a second transition
	again, err := js.Start(job.ID, actorFor(worker), nil)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusInProgress, again.Status)
	require.NotNil(t, again.StartedAt)
	assert.Equal(t, firstStart.Unix(), again.StartedAt.Unix())

	// Admins were notified of the start, the actor was not
	assert.Len(t, notificationsFor(t, db, admin.ID), 1)
	assert.Empty(t, notificationsFor(t, db, worker.ID))
}

func TestJobStart_InvalidFromTerminalStatus(t *testing.T) {
	db := newTestDB(t)
	js := newJobService(db)
	admin := createUser(t, db, models.RoleAdmin)
	job := createJob(t, db, admin.ID, models.JobStatusCancelled)

	_, err := js.Start(job.ID, actorFor(admin), nil)
	requireServiceError(t, err, CodeInvalidTransition)
}

func TestRequestCompletion(t *testing.T) {
	db := newTestDB(t)
	js := newJobService(db)
	admin := createUser(t, db, models.RoleAdmin)
	worker := createUser(t, db, models.RoleWorker)
	job := createJob(t, db, admin.ID, models.JobStatusInProgress)
	assignWorker(t, db, job.ID, worker.ID)
	step := createStep(t, db, job.ID, 1, "Replace seal")

	// Incomplete steps block completion
	_, _, err := js.RequestCompletion(job.ID, actorFor(worker), nil)
	requireServiceError(t, err, CodeStepsIncomplete)

	markStepComplete(t, db, step.ID, worker.ID)

	completed, approval, err := js.RequestCompletion(job.ID, actorFor(worker), nil)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, completed.Status)
	assert.NotNil(t, completed.CompletedDate)

	require.NotNil(t, approval)
	assert.Equal(t, models.ApprovalPending, approval.Status)
	assert.Equal(t, models.ApprovalTypeJobCompletion, approval.Type)
	assert.Equal(t, worker.ID, approval.RequesterID)
	assert.Equal(t, admin.ID, approval.ApproverID)

	// Exactly one notification, to the approver
	assert.Len(t, notificationsFor(t, db, admin.ID), 1)
	assert.Empty(t, notificationsFor(t, db, worker.ID))
}

func TestRequestCompletion_NoApproverRollsBack(t *testing.T) {
	db := newTestDB(t)
	js := newJobService(db)
	lead := createUser(t, db, models.RoleTeamLead)
	job := createJob(t, db, lead.ID, models.JobStatusInProgress)
	assignWorker(t, db, job.ID, lead.ID)

	_, _, err := js.RequestCompletion(job.ID, actorFor(lead), nil)
	requireServiceError(t, err, CodeNoApproverAvailable)

	// Nothing was applied: job untouched, no approval row
	var reloaded models.Job
	require.NoError(t, db.First(&reloaded, job.ID).Error)
	assert.Equal(t, models.JobStatusInProgress, reloaded.Status)
	assert.Nil(t, reloaded.CompletedDate)

	var approvals int64
	require.NoError(t, db.Model(&models.Approval{}).Count(&approvals).Error)
	assert.Zero(t, approvals)
}

func TestResolveApprover_PrefersAdminThenManager(t *testing.T) {
	db := newTestDB(t)

	inactiveAdmin := createUser(t, db, models.RoleAdmin)
	require.NoError(t, db.Model(inactiveAdmin).Update("is_active", false).Error)
	manager := createUser(t, db, models.RoleManager)

	approver, err := resolveApprover(db)
	require.NoError(t, err)
	assert.Equal(t, manager.ID, approver.ID, "inactive admins are skipped")

	admin := createUser(t, db, models.RoleAdmin)
	approver, err = resolveApprover(db)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, approver.ID, "active admin wins over manager")
}

func TestSetStatus(t *testing.T) {
	db := newTestDB(t)
	js := newJobService(db)
	admin := createUser(t, db, models.RoleAdmin)
	worker := createUser(t, db, models.RoleWorker)
	job := createJob(t, db, admin.ID, models.JobStatusPending)
	assignWorker(t, db, job.ID, worker.ID)

	// ON_HOLD is administrative
	_, err := js.SetStatus(job.ID, models.JobStatusOnHold, actorFor(worker), nil)
	requireServiceError(t, err, CodeForbidden)

	held, err := js.SetStatus(job.ID, models.JobStatusOnHold, actorFor(admin), nil)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusOnHold, held.Status)

	inProgress, err := js.SetStatus(job.ID, models.JobStatusInProgress, actorFor(worker), nil)
	require.NoError(t, err)
	assert.NotNil(t, inProgress.StartedAt)

	// Back to PENDING clears the start mark
	pending, err := js.SetStatus(job.ID, models.JobStatusPending, actorFor(worker), nil)
	require.NoError(t, err)
	assert.Nil(t, pending.StartedAt)
	assert.Nil(t, pending.CompletedDate)

	_, err = js.SetStatus(job.ID, models.JobStatus("BOGUS"), actorFor(admin), nil)
	requireServiceError(t, err, CodeValidation)
}

func TestSetStatus_CompletedRequiresStepsDone(t *testing.T) {
	db := newTestDB(t)
	js := newJobService(db)
	admin := createUser(t, db, models.RoleAdmin)
	job := createJob(t, db, admin.ID, models.JobStatusInProgress)
	step := createStep(t, db, job.ID, 1, "Bleed line")

	_, err := js.SetStatus(job.ID, models.JobStatusCompleted, actorFor(admin), nil)
	requireServiceError(t, err, CodeStepsIncomplete)

	markStepComplete(t, db, step.ID, admin.ID)

	done, err := js.SetStatus(job.ID, models.JobStatusCompleted, actorFor(admin), nil)
	require.NoError(t, err)
	assert.NotNil(t, done.CompletedDate)
}

func TestJobUpdate_ConflictDetection(t *testing.T) {
	db := newTestDB(t)
	js := newJobService(db)
	admin := createUser(t, db, models.RoleAdmin)
	job := createJob(t, db, admin.ID, models.JobStatusPending)

	stale := job.UpdatedAt.Add(-ConflictSlack - time.Second)
	title := "Rescheduled"
	_, err := js.Update(job.ID, UpdateJobInput{Title: &title}, actorFor(admin), &stale)
	svcErr := requireServiceError(t, err, CodeConflict)
	assert.NotNil(t, svcErr.ServerVersion)

	fresh := job.UpdatedAt
	updated, err := js.Update(job.ID, UpdateJobInput{Title: &title}, actorFor(admin), &fresh)
	require.NoError(t, err)
	assert.Equal(t, "Rescheduled", updated.Title)
}

func TestAssign_ExactlyOneTarget(t *testing.T) {
	db := newTestDB(t)
	js := newJobService(db)
	admin := createUser(t, db, models.RoleAdmin)
	worker := createUser(t, db, models.RoleWorker)
	job := createJob(t, db, admin.ID, models.JobStatusPending)
	team := createTeam(t, db, worker.ID)

	_, err := js.Assign(job.ID, nil, nil, actorFor(admin))
	requireServiceError(t, err, CodeValidation)

	_, err = js.Assign(job.ID, &worker.ID, &team.ID, actorFor(admin))
	requireServiceError(t, err, CodeValidation)

	assignment, err := js.Assign(job.ID, &worker.ID, nil, actorFor(admin))
	require.NoError(t, err)
	require.NotNil(t, assignment.WorkerID)
	assert.Equal(t, worker.ID, *assignment.WorkerID)

	// Assignment notifies the assignee
	assert.Len(t, notificationsFor(t, db, worker.ID), 1)
}

func TestJobCreate_BuildsOrderedChecklist(t *testing.T) {
	db := newTestDB(t)
	js := newJobService(db)
	admin := createUser(t, db, models.RoleAdmin)
	worker := createUser(t, db, models.RoleWorker)

	_, err := js.Create(CreateJobInput{Title: "x"}, actorFor(worker))
	requireServiceError(t, err, CodeForbidden)

	job, err := js.Create(CreateJobInput{
		Title: "Install heat pump",
		Steps: []StepInput{
			{Title: "Site prep", SubSteps: []SubStepInput{{Title: "Clear area"}, {Title: "Mark anchors"}}},
			{Title: "Mounting"},
		},
	}, actorFor(admin))
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, models.JobPriorityMedium, job.Priority)

	loaded, err := js.Get(job.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Steps, 2)
	assert.Equal(t, 1, loaded.Steps[0].Order)
	assert.Equal(t, 2, loaded.Steps[1].Order)
	require.Len(t, loaded.Steps[0].SubSteps, 2)
	assert.Equal(t, 1, loaded.Steps[0].SubSteps[0].Order)
}

func TestJobStart_TeamAssignmentCounts(t *testing.T) {
	db := newTestDB(t)
	js := newJobService(db)
	admin := createUser(t, db, models.RoleAdmin)
	member := createUser(t, db, models.RoleWorker)
	job := createJob(t, db, admin.ID, models.JobStatusPending)
	team := createTeam(t, db, member.ID)
	assignTeam(t, db, job.ID, team.ID)

	started, err := js.Start(job.ID, actorFor(member), nil)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusInProgress, started.Status)
}
