package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/fieldops/backend/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens a fresh in-memory database per test. A single connection
// keeps the in-memory database alive across gorm's pooled calls.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.TeamMember{},
		&models.Job{},
		&models.JobStep{},
		&models.JobSubStep{},
		&models.JobAssignment{},
		&models.Approval{},
		&models.Notification{},
		&models.CostTracking{},
		&models.JobEvent{},
	))
	return db
}

var testUserSeq int

func createUser(t *testing.T, db *gorm.DB, role models.UserRole) *models.User {
	t.Helper()
	testUserSeq++
	user := &models.User{
		Email:     fmt.Sprintf("user%d@test.local", testUserSeq),
		Password:  "hashed",
		FirstName: "Test",
		LastName:  string(role),
		Role:      role,
		IsActive:  true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createJob(t *testing.T, db *gorm.DB, createdBy uint, status models.JobStatus) *models.Job {
	t.Helper()
	job := &models.Job{
		Title:       "Replace pump unit",
		Status:      status,
		Priority:    models.JobPriorityMedium,
		CreatedByID: createdBy,
	}
	require.NoError(t, db.Create(job).Error)
	return job
}

func createStep(t *testing.T, db *gorm.DB, jobID uint, order int, title string) *models.JobStep {
	t.Helper()
	step := &models.JobStep{JobID: jobID, Title: title, Order: order}
	require.NoError(t, db.Create(step).Error)
	return step
}

func createSubStep(t *testing.T, db *gorm.DB, stepID uint, order int, title string) *models.JobSubStep {
	t.Helper()
	sub := &models.JobSubStep{StepID: stepID, Title: title, Order: order}
	require.NoError(t, db.Create(sub).Error)
	return sub
}

func assignWorker(t *testing.T, db *gorm.DB, jobID, workerID uint) {
	t.Helper()
	require.NoError(t, db.Create(&models.JobAssignment{JobID: jobID, WorkerID: &workerID}).Error)
}

func assignTeam(t *testing.T, db *gorm.DB, jobID, teamID uint) {
	t.Helper()
	require.NoError(t, db.Create(&models.JobAssignment{JobID: jobID, TeamID: &teamID}).Error)
}

func createTeam(t *testing.T, db *gorm.DB, memberIDs ...uint) *models.Team {
	t.Helper()
	team := &models.Team{Name: "Crew A"}
	require.NoError(t, db.Create(team).Error)
	for _, id := range memberIDs {
		require.NoError(t, db.Create(&models.TeamMember{TeamID: team.ID, UserID: id}).Error)
	}
	return team
}

func actorFor(u *models.User) Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

// markStepComplete short-circuits the gate for tests that need a job in a
// completable state.
func markStepComplete(t *testing.T, db *gorm.DB, stepID uint, byID uint) {
	t.Helper()
	now := time.Now()
	require.NoError(t, db.Model(&models.JobStep{}).Where("id = ?", stepID).Updates(map[string]interface{}{
		"is_completed":    true,
		"completed_at":    &now,
		"completed_by_id": byID,
	}).Error)
}

func notificationsFor(t *testing.T, db *gorm.DB, userID uint) []models.Notification {
	t.Helper()
	var rows []models.Notification
	require.NoError(t, db.Where("user_id = ?", userID).Find(&rows).Error)
	return rows
}

func requireServiceError(t *testing.T, err error, code ErrorCode) *Error {
	t.Helper()
	require.Error(t, err)
	svcErr, ok := AsServiceError(err)
	require.True(t, ok, "expected a service error, got %v", err)
	require.Equal(t, code, svcErr.Code)
	return svcErr
}
