package services

import (
	"testing"
	"time"

	"github.com/fieldops/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleStep_OrderingAndSubStepGates(t *testing.T) {
	db := newTestDB(t)
	gs := NewGateService(db)
	worker := createUser(t, db, models.RoleWorker)
	admin := createUser(t, db, models.RoleAdmin)
	job := createJob(t, db, admin.ID, models.JobStatusInProgress)

	s1 := createStep(t, db, job.ID, 1, "Drain system")
	s2 := createStep(t, db, job.ID, 2, "Install pump")
	t1 := createSubStep(t, db, s1.ID, 1, "Close inlet valve")

	// S2 cannot complete before S1
	_, err := gs.ToggleStep(s2.ID, actorFor(worker), nil)
	requireServiceError(t, err, CodeSequenceViolation)

	// S1 cannot complete while T1 is incomplete
	_, err = gs.ToggleStep(s1.ID, actorFor(worker), nil)
	requireServiceError(t, err, CodeIncompleteSubSteps)

	// Completing T1 cascades: S1 completes automatically
	sub, err := gs.ToggleSubStep(t1.ID, actorFor(worker), nil)
	require.NoError(t, err)
	assert.True(t, sub.IsCompleted)
	assert.NotNil(t, sub.CompletedAt)
	assert.NotNil(t, sub.StartedAt, "toggling to done implicitly starts")

	var reloaded models.JobStep
	require.NoError(t, db.First(&reloaded, s1.ID).Error)
	assert.True(t, reloaded.IsCompleted)
	assert.NotNil(t, reloaded.CompletedAt)

	// Now S2 is unblocked
	step2, err := gs.ToggleStep(s2.ID, actorFor(worker), nil)
	require.NoError(t, err)
	assert.True(t, step2.IsCompleted)
	require.NotNil(t, step2.CompletedByID)
	assert.Equal(t, worker.ID, *step2.CompletedByID)
	assert.NotNil(t, step2.StartedAt)
}

func TestToggleSubStep_UncompleteReopensParent(t *testing.T) {
	db := newTestDB(t)
	gs := NewGateService(db)
	worker := createUser(t, db, models.RoleWorker)
	job := createJob(t, db, worker.ID, models.JobStatusInProgress)
	step := createStep(t, db, job.ID, 1, "Inspect wiring")
	sub := createSubStep(t, db, step.ID, 1, "Photograph panel")

	_, err := gs.ToggleSubStep(sub.ID, actorFor(worker), nil)
	require.NoError(t, err)

	var parent models.JobStep
	require.NoError(t, db.First(&parent, step.ID).Error)
	require.True(t, parent.IsCompleted)

	// Un-toggling the sub-step reopens the step but keeps startedAt
	reopened, err := gs.ToggleSubStep(sub.ID, actorFor(worker), nil)
	require.NoError(t, err)
	assert.False(t, reopened.IsCompleted)
	assert.Nil(t, reopened.CompletedAt)
	assert.NotNil(t, reopened.StartedAt, "startedAt survives un-completion")

	parent = models.JobStep{} // gorm does not zero a reused dest on NULL columns
	require.NoError(t, db.First(&parent, step.ID).Error)
	assert.False(t, parent.IsCompleted)
	assert.Nil(t, parent.CompletedAt)
	assert.Nil(t, parent.CompletedByID)
}

func TestToggleStep_UncompleteKeepsSubSteps(t *testing.T) {
	db := newTestDB(t)
	gs := NewGateService(db)
	worker := createUser(t, db, models.RoleWorker)
	job := createJob(t, db, worker.ID, models.JobStatusInProgress)
	step := createStep(t, db, job.ID, 1, "Test circuit")
	sub := createSubStep(t, db, step.ID, 1, "Measure voltage")

	_, err := gs.ToggleSubStep(sub.ID, actorFor(worker), nil)
	require.NoError(t, err)

	// Un-complete the cascaded step directly
	reopened, err := gs.ToggleStep(step.ID, actorFor(worker), nil)
	require.NoError(t, err)
	assert.False(t, reopened.IsCompleted)

	// No downward cascade: the sub-step stays complete
	var kept models.JobSubStep
	require.NoError(t, db.First(&kept, sub.ID).Error)
	assert.True(t, kept.IsCompleted)
}

func TestToggleSubStep_RoleAndConflictChecks(t *testing.T) {
	db := newTestDB(t)
	gs := NewGateService(db)
	customer := createUser(t, db, models.RoleCustomer)
	worker := createUser(t, db, models.RoleWorker)
	job := createJob(t, db, worker.ID, models.JobStatusInProgress)
	step := createStep(t, db, job.ID, 1, "Clean filters")
	sub := createSubStep(t, db, step.ID, 1, "Remove cover")

	_, err := gs.ToggleSubStep(sub.ID, actorFor(customer), nil)
	requireServiceError(t, err, CodeForbidden)

	var fresh models.JobSubStep
	require.NoError(t, db.First(&fresh, sub.ID).Error)
	stale := fresh.UpdatedAt.Add(-ConflictSlack - time.Second)
	_, err = gs.ToggleSubStep(sub.ID, actorFor(worker), &stale)
	requireServiceError(t, err, CodeConflict)

	// Conflict must leave the row untouched
	require.NoError(t, db.First(&fresh, sub.ID).Error)
	assert.False(t, fresh.IsCompleted)
}

func TestAddStepAndSubStep(t *testing.T) {
	db := newTestDB(t)
	gs := NewGateService(db)
	admin := createUser(t, db, models.RoleAdmin)
	worker := createUser(t, db, models.RoleWorker)
	job := createJob(t, db, admin.ID, models.JobStatusPending)
	createStep(t, db, job.ID, 1, "Existing step")

	_, err := gs.AddStep(job.ID, "New step", actorFor(worker))
	requireServiceError(t, err, CodeForbidden)

	_, err = gs.AddStep(job.ID, "", actorFor(admin))
	requireServiceError(t, err, CodeValidation)

	step, err := gs.AddStep(job.ID, "Final inspection", actorFor(admin))
	require.NoError(t, err)
	assert.Equal(t, 2, step.Order, "appended at the next order position")

	sub, err := gs.AddSubStep(step.ID, "Sign-off photo", actorFor(admin))
	require.NoError(t, err)
	assert.Equal(t, 1, sub.Order)
}

func TestAddSubStep_ReopensCompletedParent(t *testing.T) {
	db := newTestDB(t)
	gs := NewGateService(db)
	admin := createUser(t, db, models.RoleAdmin)
	job := createJob(t, db, admin.ID, models.JobStatusInProgress)
	step := createStep(t, db, job.ID, 1, "Calibrate sensor")
	sub := createSubStep(t, db, step.ID, 1, "Zero reading")

	_, err := gs.ToggleSubStep(sub.ID, actorFor(admin), nil)
	require.NoError(t, err)

	_, err = gs.AddSubStep(step.ID, "Span reading", actorFor(admin))
	require.NoError(t, err)

	var parent models.JobStep
	require.NoError(t, db.First(&parent, step.ID).Error)
	assert.False(t, parent.IsCompleted, "new incomplete sub-step reopens the step")
}

func TestStepOrderUniquePerJob(t *testing.T) {
	db := newTestDB(t)
	admin := createUser(t, db, models.RoleAdmin)
	job := createJob(t, db, admin.ID, models.JobStatusPending)
	step := createStep(t, db, job.ID, 1, "First")

	// The database refuses a second step at the same position, so two
	// concurrent AddStep calls cannot both land on MAX+1.
	err := db.Create(&models.JobStep{JobID: job.ID, Title: "Dup", Order: 1}).Error
	require.Error(t, err)

	// Same order on a different job is fine
	other := createJob(t, db, admin.ID, models.JobStatusPending)
	require.NoError(t, db.Create(&models.JobStep{JobID: other.ID, Title: "First", Order: 1}).Error)

	// Sub-step order is unique within its step
	createSubStep(t, db, step.ID, 1, "Sub")
	err = db.Create(&models.JobSubStep{StepID: step.ID, Title: "Dup", Order: 1}).Error
	require.Error(t, err)
}

func TestRecomputeStepCompletion(t *testing.T) {
	assert.True(t, recomputeStepCompletion(nil))
	assert.True(t, recomputeStepCompletion([]models.JobSubStep{{IsCompleted: true}}))
	assert.False(t, recomputeStepCompletion([]models.JobSubStep{
		{IsCompleted: true}, {IsCompleted: false},
	}))
}
